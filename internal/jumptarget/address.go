package jumptarget

import (
	"fmt"
	"math"
)

// Address is a location in the virtual address space of the decoded binary.
type Address uint64

// Undefined marks an unknown address, for example the origin of an entry point.
const Undefined Address = math.MaxUint64

// IsDefined returns whether the address is not the Undefined sentinel.
func (a Address) IsDefined() bool {
	return a != Undefined
}

func (a Address) String() string {
	if a == Undefined {
		return "UNDEFINED"
	}
	return fmt.Sprintf("0x%x", uint64(a))
}
