// Package m6502 provides the 6502 instruction decoder.
package m6502

import (
	"fmt"

	"github.com/retroenv/retrodecode/internal/arch"
	"github.com/retroenv/retrodecode/internal/jumptarget"
	"github.com/retroenv/retrogolib/arch/cpu/cpu6502"
	"github.com/retroenv/retrogolib/arch/system/nes/parameter"
)

var _ arch.Decoder = (*Arch6502)(nil)

// Options configures the 6502 decoder.
type Options struct {
	// StopAtUnofficial treats unofficial opcodes as invalid instructions.
	StopAtUnofficial bool
}

// Arch6502 decodes 6502 instructions.
type Arch6502 struct {
	converter parameter.Converter
	options   Options
}

// New returns a new 6502 decoder that formats instruction parameters
// using the given converter.
func New(converter parameter.Converter, options Options) *Arch6502 {
	return &Arch6502{
		converter: converter,
		options:   options,
	}
}

// Modes returns the disassembly modes supported by the decoder.
func (ar *Arch6502) Modes() []jumptarget.Mode {
	return []jumptarget.Mode{jumptarget.Mode6502}
}

// Decode decodes the instruction at the given address and determines the
// jump targets that its execution can lead to.
func (ar *Arch6502) Decode(mem arch.Memory, address jumptarget.Address, mode jumptarget.Mode) (*arch.Instruction, error) {
	b, err := mem.Read(address, 1)
	if err != nil {
		return nil, fmt.Errorf("reading opcode: %w", err)
	}

	opcode := cpu6502.Opcodes[b[0]]
	instruction := Instruction{ins: opcode.Instruction}
	if instruction.IsNil() {
		return nil, fmt.Errorf("opcode %02X at address %s: %w", b[0], address, arch.ErrInvalidInstruction)
	}
	if instruction.Unofficial() && ar.options.StopAtUnofficial {
		return nil, fmt.Errorf("unofficial opcode %02X at address %s: %w", b[0], address, arch.ErrInvalidInstruction)
	}

	size := opcodeSize(opcode.Addressing)
	data, err := mem.Read(address, size)
	if err != nil {
		return nil, fmt.Errorf("reading %s parameters: %w", instruction.Name(), err)
	}

	param := readParam(data)
	ins := &arch.Instruction{
		Addr: address,
		Mode: mode,
		Data: data,
	}
	ins.Code, err = ar.formatCode(instruction, opcode.Addressing, param, ins.Next())
	if err != nil {
		return nil, fmt.Errorf("formatting %s at address %s: %w", instruction.Name(), address, err)
	}

	handleControlFlow(mem, ins, instruction, opcode.Addressing, param)
	return ins, nil
}

// handleControlFlow adds the successors of an instruction based on its type.
func handleControlFlow(mem arch.Memory, ins *arch.Instruction, instruction Instruction,
	addressing cpu6502.AddressingMode, param uint16) {

	switch {
	case instruction.IsBranch():
		ins.AddConditionalBranch(relativeTarget(ins.Next(), param))

	case instruction.IsCall():
		ins.AddCall(jumptarget.Address(param))

	case instruction.IsJump():
		ins.Terminates = true
		if addressing == cpu6502.IndirectAddressing {
			// the indirect vector is resolved if it points to loaded data
			if target, err := readWordBug(mem, param); err == nil {
				ins.AddSuccessor(target, jumptarget.SwitchCase)
			}
			return
		}
		ins.AddSuccessor(jumptarget.Address(param), jumptarget.BranchTaken)

	case instruction.StopsExecution():
		ins.Terminates = true
	}
}

// relativeTarget returns the destination of a relative branch, the offset is
// relative to the address of the following instruction.
func relativeTarget(next jumptarget.Address, param uint16) jumptarget.Address {
	offset := int8(param)
	return jumptarget.Address(uint16(int(next) + int(offset)))
}

// readWordBug reads a word from a memory address and emulates a 6502 bug that caused
// the low byte to wrap without incrementing the high byte.
func readWordBug(mem arch.Memory, address uint16) (jumptarget.Address, error) {
	low, err := mem.Read(jumptarget.Address(address), 1)
	if err != nil {
		return 0, fmt.Errorf("reading vector low byte: %w", err)
	}
	address = (address & 0xFF00) | uint16(byte(address)+1)
	high, err := mem.Read(jumptarget.Address(address), 1)
	if err != nil {
		return 0, fmt.Errorf("reading vector high byte: %w", err)
	}
	return jumptarget.Address(uint16(high[0])<<8 | uint16(low[0])), nil
}
