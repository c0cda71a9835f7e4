// Package x86 provides the x86 instruction decoder for 16, 32 and 64 bit code.
package x86

import (
	"errors"
	"fmt"

	"github.com/retroenv/retrodecode/internal/arch"
	"github.com/retroenv/retrodecode/internal/jumptarget"
	"golang.org/x/arch/x86/x86asm"
)

const (
	// maxInstructionSize is the longest legal x86 instruction encoding.
	maxInstructionSize = 15

	// maxJumpTableEntries limits the entries read from a detected jump table.
	maxJumpTableEntries = 256
)

var _ arch.Decoder = (*X86)(nil)

// X86 decodes x86 instructions.
type X86 struct{}

// New returns a new x86 decoder.
func New() *X86 {
	return &X86{}
}

// Modes returns the disassembly modes supported by the decoder.
func (x *X86) Modes() []jumptarget.Mode {
	return []jumptarget.Mode{jumptarget.ModeX86_16, jumptarget.ModeX86_32, jumptarget.ModeX86_64}
}

// Decode decodes the instruction at the given address and determines the
// jump targets that its execution can lead to.
func (x *X86) Decode(mem arch.Memory, address jumptarget.Address, mode jumptarget.Mode) (*arch.Instruction, error) {
	bits, err := cpuMode(mode)
	if err != nil {
		return nil, err
	}

	src, err := readAvailable(mem, address)
	if err != nil {
		return nil, err
	}

	inst, err := x86asm.Decode(src, bits)
	if err != nil {
		if errors.Is(err, x86asm.ErrTruncated) {
			return nil, fmt.Errorf("instruction at address %s: %w", address, arch.ErrOutOfRange)
		}
		return nil, fmt.Errorf("instruction at address %s: %w: %w", address, arch.ErrInvalidInstruction, err)
	}
	if inst.Op == 0 {
		// x86asm reports truncated and unknown encodings as a lone prefix byte
		if len(src) < maxInstructionSize {
			return nil, fmt.Errorf("truncated instruction at address %s: %w", address, arch.ErrOutOfRange)
		}
		return nil, fmt.Errorf("instruction at address %s: %w", address, arch.ErrInvalidInstruction)
	}

	ins := &arch.Instruction{
		Addr: address,
		Mode: mode,
		Data: src[:inst.Len],
		Code: x86asm.IntelSyntax(inst, uint64(address), nil),
	}
	handleControlFlow(mem, ins, inst, bits)
	return ins, nil
}

// cpuMode converts a disassembly mode to the x86asm cpu mode.
func cpuMode(mode jumptarget.Mode) (int, error) {
	switch mode {
	case jumptarget.ModeX86_16:
		return 16, nil
	case jumptarget.ModeX86_32:
		return 32, nil
	case jumptarget.ModeX86_64:
		return 64, nil
	default:
		return 0, fmt.Errorf("unsupported x86 mode %s", mode)
	}
}

// readAvailable reads up to the maximum instruction size of bytes, returning
// fewer bytes when the mapped memory ends before.
func readAvailable(mem arch.Memory, address jumptarget.Address) ([]byte, error) {
	var err error
	for size := maxInstructionSize; size > 0; size-- {
		var data []byte
		data, err = mem.Read(address, size)
		if err == nil {
			return data, nil
		}
	}
	return nil, fmt.Errorf("reading instruction: %w", err)
}

// handleControlFlow adds the successors of an instruction based on its type.
func handleControlFlow(mem arch.Memory, ins *arch.Instruction, inst x86asm.Inst, bits int) {
	switch inst.Op {
	case x86asm.LOOP, x86asm.LOOPE, x86asm.LOOPNE,
		x86asm.JA, x86asm.JAE, x86asm.JB, x86asm.JBE, x86asm.JCXZ, x86asm.JE, x86asm.JECXZ,
		x86asm.JG, x86asm.JGE, x86asm.JL, x86asm.JLE, x86asm.JNE, x86asm.JNO, x86asm.JNP,
		x86asm.JNS, x86asm.JO, x86asm.JP, x86asm.JRCXZ, x86asm.JS:
		if target, ok := relativeTarget(ins, inst, bits); ok {
			ins.AddConditionalBranch(target)
		}

	case x86asm.JMP:
		ins.Terminates = true
		if target, ok := relativeTarget(ins, inst, bits); ok {
			ins.AddSuccessor(target, jumptarget.BranchTaken)
			return
		}
		for _, target := range jumpTable(mem, inst, bits) {
			ins.AddSuccessor(target, jumptarget.SwitchCase)
		}

	case x86asm.CALL:
		target, ok := relativeTarget(ins, inst, bits)
		if !ok {
			target = jumptarget.Undefined
		}
		ins.AddCall(target)

	case x86asm.RET, x86asm.LRET, x86asm.IRET, x86asm.IRETD, x86asm.IRETQ,
		x86asm.HLT, x86asm.UD2, x86asm.LJMP:
		ins.Terminates = true
	}
}

// relativeTarget returns the destination of a relative jump or call, the
// offset is relative to the address of the following instruction.
func relativeTarget(ins *arch.Instruction, inst x86asm.Inst, bits int) (jumptarget.Address, bool) {
	rel, ok := inst.Args[0].(x86asm.Rel)
	if !ok {
		return 0, false
	}
	target := uint64(int64(ins.Next()) + int64(rel))
	if bits == 16 {
		target &= 0xFFFF
	}
	return jumptarget.Address(target), true
}

// jumpTable returns the destinations of an indirect jump through a table of
// absolute pointers, like jmp [table + index*pointerSize]. Reading stops at the
// first entry that is not loaded or points outside of loaded memory.
func jumpTable(mem arch.Memory, inst x86asm.Inst, bits int) []jumptarget.Address {
	m, ok := inst.Args[0].(x86asm.Mem)
	if !ok || m.Base != 0 || m.Disp < 0 {
		return nil
	}
	pointerSize := bits / 8

	entries := maxJumpTableEntries
	switch {
	case m.Index == 0:
		entries = 1 // jump through a single pointer
	case int(m.Scale) != pointerSize:
		return nil
	}

	var targets []jumptarget.Address
	for i := range entries {
		address := jumptarget.Address(m.Disp) + jumptarget.Address(i*pointerSize)
		data, err := mem.Read(address, pointerSize)
		if err != nil {
			break
		}
		target := jumptarget.Address(littleEndian(data))
		if !mem.Contains(target) {
			break
		}
		targets = append(targets, target)
	}
	return targets
}

func littleEndian(data []byte) uint64 {
	var value uint64
	for i := len(data) - 1; i >= 0; i-- {
		value = value<<8 | uint64(data[i])
	}
	return value
}
