// Package arch contains types and functions used for multi architecture support.
// It acts as a bridge between the decoding driver and the architecture specific
// instruction decoders.
package arch

import (
	"errors"

	"github.com/retroenv/retrodecode/internal/jumptarget"
)

var (
	// ErrInvalidInstruction is returned when the bytes at an address do not form a valid instruction.
	ErrInvalidInstruction = errors.New("invalid instruction")
	// ErrOutOfRange is returned when an address is not part of the mapped memory.
	ErrOutOfRange = errors.New("address out of range")
)

// Memory provides read access to the mapped address space of a binary.
type Memory interface {
	// Read returns size bytes starting at the given address.
	Read(address jumptarget.Address, size int) ([]byte, error)
	// Contains returns whether the address is mapped.
	Contains(address jumptarget.Address) bool
}

// Decoder decodes a single instruction of an architecture.
type Decoder interface {
	// Decode decodes the instruction at the given address using the given mode.
	// Decoding errors wrap ErrInvalidInstruction or ErrOutOfRange.
	Decode(mem Memory, address jumptarget.Address, mode jumptarget.Mode) (*Instruction, error)
	// Modes returns the disassembly modes that the decoder supports.
	Modes() []jumptarget.Mode
}

// Successor is a jump target discovered by decoding an instruction.
type Successor struct {
	Address jumptarget.Address
	Type    jumptarget.Type
	Mode    jumptarget.Mode
}

var _ jumptarget.Instruction = &Instruction{}

// Instruction is a decoded instruction.
type Instruction struct {
	Addr jumptarget.Address // address of the first instruction byte
	Mode jumptarget.Mode    // mode the instruction was decoded with
	Data []byte             // instruction bytes
	Code string             // textual representation

	Successors []Successor // jump targets discovered by this instruction
	Terminates bool        // execution does not continue at the next instruction
}

// Address returns the address of the instruction.
func (i *Instruction) Address() jumptarget.Address {
	return i.Addr
}

// Size returns the length of the instruction in bytes.
func (i *Instruction) Size() int {
	return len(i.Data)
}

// Next returns the address following the instruction.
func (i *Instruction) Next() jumptarget.Address {
	return i.Addr + jumptarget.Address(len(i.Data))
}

// AddSuccessor adds a discovered jump target that uses the mode of the instruction.
func (i *Instruction) AddSuccessor(address jumptarget.Address, typ jumptarget.Type) {
	i.Successors = append(i.Successors, Successor{
		Address: address,
		Type:    typ,
		Mode:    i.Mode,
	})
}

// AddConditionalBranch adds both sides of a conditional branch.
func (i *Instruction) AddConditionalBranch(taken jumptarget.Address) {
	i.AddSuccessor(i.Next(), jumptarget.BranchNotTaken)
	i.AddSuccessor(taken, jumptarget.BranchTaken)
	i.Terminates = true
}

// AddCall adds the destination of a call and its return site. A call with an
// unknown destination only adds the return site.
func (i *Instruction) AddCall(destination jumptarget.Address) {
	if destination.IsDefined() {
		i.AddSuccessor(destination, jumptarget.CallTarget)
	}
	i.AddSuccessor(i.Next(), jumptarget.ReturnTarget)
	i.Terminates = true
}
