// Package jumptarget implements the jump target model of the decoder and
// the priority worklist that decides which address gets decoded next.
package jumptarget

import (
	"cmp"
	"fmt"
	"reflect"
)

// Instruction is an already decoded instruction that produced a jump target.
// Targets only keep a reference to it to derive the origin address, they do
// not own it. A worklist must not be used after the decoding run that owns
// the referenced instructions has finished.
type Instruction interface {
	Address() Address
}

// Target is an address that will be tried to be decoded. It is immutable
// after creation.
type Target struct {
	address     Address
	typ         Type
	mode        Mode
	fromAddress Address
	fromInst    Instruction

	defined bool // set by the constructors, distinguishes the zero value
}

// New returns a target that records the address it was discovered from.
func New(address Address, typ Type, mode Mode, from Address) Target {
	return Target{
		address:     address,
		typ:         typ,
		mode:        mode,
		fromAddress: from,
		defined:     true,
	}
}

// NewFromInstruction returns a target that references the instruction it was
// discovered from. The origin address is read from the instruction on demand.
// A nil instruction, including a typed nil pointer, leaves the origin Undefined.
func NewFromInstruction(address Address, typ Type, mode Mode, from Instruction) Target {
	if isNilInstruction(from) {
		from = nil
	}
	return Target{
		address:     address,
		typ:         typ,
		mode:        mode,
		fromAddress: Undefined,
		fromInst:    from,
		defined:     true,
	}
}

// Default returns the default target, it has no address and no origin.
func Default() Target {
	return Target{}
}

// Address returns the address to decode. It is Undefined for a default target.
func (t Target) Address() Address {
	if !t.defined {
		return Undefined
	}
	return t.address
}

// Type returns the reason the target was discovered for.
func (t Target) Type() Type {
	return t.typ
}

// Mode returns the disassembly mode to use for decoding the target.
func (t Target) Mode() Mode {
	return t.mode
}

// FromInstruction returns the instruction that produced the target, if any.
func (t Target) FromInstruction() Instruction {
	return t.fromInst
}

// FromAddress returns the address the target was discovered from.
func (t Target) FromAddress() Address {
	if t.fromInst != nil {
		return t.fromInst.Address()
	}
	if !t.defined {
		return Undefined
	}
	return t.fromAddress
}

func (t Target) String() string {
	return fmt.Sprintf("%s (%s, %s) from %s", t.Address(), t.typ, t.mode, t.FromAddress())
}

// Compare orders targets by the priority of their type first and their
// address second. Two targets compare equal if type and address match,
// mode and origin are not considered.
func Compare(a, b Target) int {
	if c := cmp.Compare(a.typ.Priority(), b.typ.Priority()); c != 0 {
		return c
	}
	return cmp.Compare(a.Address(), b.Address())
}

func isNilInstruction(ins Instruction) bool {
	if ins == nil {
		return true
	}
	v := reflect.ValueOf(ins)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
