// Package arm64 provides the AArch64 instruction decoder.
package arm64

import (
	"fmt"

	"github.com/retroenv/retrodecode/internal/arch"
	"github.com/retroenv/retrodecode/internal/jumptarget"
	"golang.org/x/arch/arm64/arm64asm"
)

// instructionSize is the fixed size of AArch64 instructions in bytes.
const instructionSize = 4

var _ arch.Decoder = (*Arm64)(nil)

// Arm64 decodes AArch64 instructions.
type Arm64 struct{}

// New returns a new AArch64 decoder.
func New() *Arm64 {
	return &Arm64{}
}

// Modes returns the disassembly modes supported by the decoder.
func (a *Arm64) Modes() []jumptarget.Mode {
	return []jumptarget.Mode{jumptarget.ModeARM64}
}

// Decode decodes the instruction at the given address and determines the
// jump targets that its execution can lead to.
func (a *Arm64) Decode(mem arch.Memory, address jumptarget.Address, mode jumptarget.Mode) (*arch.Instruction, error) {
	if address%instructionSize != 0 {
		return nil, fmt.Errorf("unaligned address %s: %w", address, arch.ErrInvalidInstruction)
	}

	data, err := mem.Read(address, instructionSize)
	if err != nil {
		return nil, fmt.Errorf("reading instruction: %w", err)
	}

	inst, err := arm64asm.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("instruction at address %s: %w: %w", address, arch.ErrInvalidInstruction, err)
	}

	ins := &arch.Instruction{
		Addr: address,
		Mode: mode,
		Data: data,
		Code: arm64asm.GNUSyntax(inst),
	}
	handleControlFlow(ins, inst)
	return ins, nil
}

// handleControlFlow adds the successors of an instruction based on its type.
func handleControlFlow(ins *arch.Instruction, inst arm64asm.Inst) {
	target, hasTarget := pcRelativeTarget(ins.Address(), inst)

	switch inst.Op {
	case arm64asm.B:
		if isConditional(inst) {
			if hasTarget {
				ins.AddConditionalBranch(target)
			}
			return
		}
		ins.Terminates = true
		if hasTarget {
			ins.AddSuccessor(target, jumptarget.BranchTaken)
		}

	case arm64asm.CBZ, arm64asm.CBNZ, arm64asm.TBZ, arm64asm.TBNZ:
		if hasTarget {
			ins.AddConditionalBranch(target)
		}

	case arm64asm.BL:
		if !hasTarget {
			target = jumptarget.Undefined
		}
		ins.AddCall(target)

	case arm64asm.BLR:
		ins.AddCall(jumptarget.Undefined)

	case arm64asm.BR, arm64asm.RET:
		ins.Terminates = true
	}
}

// pcRelativeTarget returns the destination of a branch, the offset is
// relative to the address of the branch instruction itself.
func pcRelativeTarget(address jumptarget.Address, inst arm64asm.Inst) (jumptarget.Address, bool) {
	for _, arg := range inst.Args {
		if arg == nil {
			break
		}
		if rel, ok := arg.(arm64asm.PCRel); ok {
			return jumptarget.Address(int64(address) + int64(rel)), true
		}
	}
	return 0, false
}

// isConditional returns whether a B instruction carries a condition code.
func isConditional(inst arm64asm.Inst) bool {
	for _, arg := range inst.Args {
		if arg == nil {
			break
		}
		if _, ok := arg.(arm64asm.Cond); ok {
			return true
		}
	}
	return false
}
