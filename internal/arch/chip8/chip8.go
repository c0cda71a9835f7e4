// Package chip8 provides the CHIP-8 instruction decoder.
// CHIP-8 is an interpreted programming language from the 1970s designed for simple games.
package chip8

import (
	"fmt"

	"github.com/retroenv/retrodecode/internal/arch"
	"github.com/retroenv/retrodecode/internal/jumptarget"
	"github.com/retroenv/retrogolib/arch/cpu/chip8"
)

// CHIP-8 memory layout constants.
//
// CHIP-8 memory map (4KB total):
//
//	0x000-0x1FF: Interpreter and font data (512 bytes)
//	0x200-0xFFF: User program space (3584 bytes)
const (
	// ProgramStart is the memory address where CHIP-8 programs begin execution.
	// CHIP-8 programs are loaded at address 0x200 in the virtual machine's memory space,
	// but stored starting at offset 0x0 in ROM files.
	ProgramStart = 0x200

	// MaxAddress is the highest valid address in CHIP-8 memory space (4KB total).
	MaxAddress = 0xFFF
)

// opcodeSize is the size of CHIP-8 instructions in bytes.
const opcodeSize = 2

// Compile-time check to ensure Chip8 implements arch.Decoder.
var _ arch.Decoder = (*Chip8)(nil)

// Chip8 decodes CHIP-8 instructions.
type Chip8 struct{}

// New returns a new CHIP-8 decoder.
func New() *Chip8 {
	return &Chip8{}
}

// Modes returns the disassembly modes supported by the decoder.
func (c *Chip8) Modes() []jumptarget.Mode {
	return []jumptarget.Mode{jumptarget.ModeChip8}
}

// Decode decodes the 2 byte CHIP-8 instruction at the given address and
// determines the jump targets that its execution can lead to.
func (c *Chip8) Decode(mem arch.Memory, address jumptarget.Address, mode jumptarget.Mode) (*arch.Instruction, error) {
	data, err := mem.Read(address, opcodeSize)
	if err != nil {
		return nil, fmt.Errorf("reading instruction: %w", err)
	}

	w, _ := decodeOpcode(data)
	opcode, ok := lookupOpcode(w)
	if !ok {
		return nil, fmt.Errorf("opcode %04X at address %s: %w", w, address, arch.ErrInvalidInstruction)
	}

	instr := Instruction{ins: opcode.Instruction}
	ins := &arch.Instruction{
		Addr: address,
		Mode: mode,
		Data: data,
		Code: formatCode(instr.Name(), w),
	}
	handleControlFlow(ins, instr, w)
	return ins, nil
}

// lookupOpcode returns the opcode table entry matching the instruction word.
func lookupOpcode(w uint16) (chip8.Opcode, bool) {
	firstNibble := (w & 0xF000) >> 12
	for _, op := range chip8.Opcodes[int(firstNibble)] {
		if op.Info.Mask&w == op.Info.Value && op.Instruction != nil {
			return op, true
		}
	}
	return chip8.Opcode{}, false
}

// handleControlFlow adds the successors of an instruction based on its type.
func handleControlFlow(ins *arch.Instruction, instr Instruction, opcode uint16) {
	switch {
	case instr.IsJump():
		ins.Terminates = true
		if opcode&0xF000 == 0xB000 {
			return // jp V0, addr target depends on a register value
		}
		if target, ok := extractTargetAddress(opcode); ok {
			ins.AddSuccessor(target, jumptarget.BranchTaken)
		}

	case instr.IsCall():
		target := jumptarget.Undefined
		if address, ok := extractTargetAddress(opcode); ok {
			target = address
		}
		ins.AddCall(target)

	case instr.IsSkip():
		// the skipped instruction is the not taken side of the condition
		ins.AddConditionalBranch(ins.Next() + opcodeSize)

	case instr.IsReturn():
		ins.Terminates = true
	}
}

// decodeOpcode extracts the 16-bit opcode from instruction bytes.
func decodeOpcode(data []byte) (uint16, bool) {
	if len(data) < opcodeSize {
		return 0, false
	}
	return uint16(data[0])<<8 | uint16(data[1]), true
}

// extractTargetAddress extracts the target address from a CHIP-8 instruction
// and returns false if it targets interpreter memory (< $200).
func extractTargetAddress(opcode uint16) (jumptarget.Address, bool) {
	target := opcode & 0x0FFF
	if target < ProgramStart {
		return 0, false
	}
	return jumptarget.Address(target), true
}
