package m6502

import (
	"github.com/retroenv/retrogolib/arch/cpu/cpu6502"
)

// Instruction wraps a retrogolib 6502 instruction definition and classifies
// its control flow behavior.
type Instruction struct {
	ins *cpu6502.Instruction
}

// IsCall returns true if the instruction is a call.
func (i Instruction) IsCall() bool {
	return i.ins != nil && i.ins.Name == cpu6502.JsrInst.Name
}

// IsJump returns true if the instruction is an unconditional jump.
func (i Instruction) IsJump() bool {
	return i.ins != nil && i.ins.Name == cpu6502.JmpInst.Name
}

// IsBranch returns true if the instruction is a conditional relative branch.
func (i Instruction) IsBranch() bool {
	if i.ins == nil {
		return false
	}
	_, ok := conditionalBranches[i.ins.Name]
	return ok
}

// StopsExecution returns true if the instruction does not continue
// execution at the following opcode.
func (i Instruction) StopsExecution() bool {
	if i.ins == nil {
		return false
	}
	_, ok := cpu6502.NotExecutingFollowingOpcodeInstructions[i.ins.Name]
	return ok
}

// IsNil returns true if the instruction is nil.
func (i Instruction) IsNil() bool {
	return i.ins == nil
}

// Name returns the instruction name.
func (i Instruction) Name() string {
	return i.ins.Name
}

// Unofficial returns true if the instruction is not official.
func (i Instruction) Unofficial() bool {
	return i.ins.Unofficial
}

// conditionalBranches maps every conditional branch to its complementary branch.
var conditionalBranches = map[string]string{
	cpu6502.BccInst.Name: cpu6502.BcsInst.Name,
	cpu6502.BcsInst.Name: cpu6502.BccInst.Name,
	cpu6502.BeqInst.Name: cpu6502.BneInst.Name,
	cpu6502.BneInst.Name: cpu6502.BeqInst.Name,
	cpu6502.BmiInst.Name: cpu6502.BplInst.Name,
	cpu6502.BplInst.Name: cpu6502.BmiInst.Name,
	cpu6502.BvcInst.Name: cpu6502.BvsInst.Name,
	cpu6502.BvsInst.Name: cpu6502.BvcInst.Name,
}
