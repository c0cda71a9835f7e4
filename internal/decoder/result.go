package decoder

import (
	"github.com/retroenv/retrodecode/internal/arch"
	"github.com/retroenv/retrodecode/internal/jumptarget"
)

// Result contains the outcome of a decoding run.
type Result struct {
	Instructions []*arch.Instruction                    // decoded instructions sorted by address
	Labels       map[jumptarget.Address]jumptarget.Type // type that decoding entered an address with
	Edges        []Edge                                 // discovered jump targets in discovery order
	Data         []Data                                 // mapped bytes not decoded as instructions
	Stats        Stats
}

// Edge is a jump target discovered by an instruction.
type Edge struct {
	From jumptarget.Address
	To   jumptarget.Address
	Type jumptarget.Type
}

// Data is a contiguous range of bytes that were not decoded as instructions.
type Data struct {
	Address jumptarget.Address
	Bytes   []byte
}

// Stats contains decoding statistics.
type Stats struct {
	Targets              map[jumptarget.Type]int // processed jump targets per type
	Instructions         int
	Dropped              int // jump targets outside of mapped memory
	JumpsIntoInstruction int
}

func newStats() Stats {
	return Stats{
		Targets: map[jumptarget.Type]int{},
	}
}
