package m6502

import (
	"errors"
	"testing"

	"github.com/retroenv/retrodecode/internal/arch"
	"github.com/retroenv/retrodecode/internal/jumptarget"
	"github.com/retroenv/retrodecode/internal/memory"
	"github.com/retroenv/retrogolib/arch/cpu/cpu6502"
	"github.com/retroenv/retrogolib/arch/system/nes/parameter"
	"github.com/retroenv/retrogolib/assert"
)

const codeBase = 0x8000

func newTestMemory(t *testing.T, code ...byte) *memory.Image {
	t.Helper()
	mem := memory.New()
	assert.NoError(t, mem.Map(codeBase, code))
	return mem
}

func TestArch6502_Decode(t *testing.T) {
	tests := []struct {
		name       string
		code       []byte
		expected   string
		size       int
		successors []arch.Successor
		terminates bool
	}{
		{
			name:     "implied",
			code:     []byte{0xea},
			expected: "nop",
			size:     1,
		},
		{
			name:     "immediate",
			code:     []byte{0xa9, 0x10},
			expected: "lda #$10",
			size:     2,
		},
		{
			name:     "absolute indexed",
			code:     []byte{0x9d, 0x00, 0x02},
			expected: "sta $0200,X",
			size:     3,
		},
		{
			name:     "branch forward",
			code:     []byte{0xd0, 0x04},
			expected: "bne $8006",
			size:     2,
			successors: []arch.Successor{
				{Address: 0x8002, Type: jumptarget.BranchNotTaken, Mode: jumptarget.Mode6502},
				{Address: 0x8006, Type: jumptarget.BranchTaken, Mode: jumptarget.Mode6502},
			},
			terminates: true,
		},
		{
			name:     "branch backward",
			code:     []byte{0xf0, 0xfe},
			expected: "beq $8000",
			size:     2,
			successors: []arch.Successor{
				{Address: 0x8002, Type: jumptarget.BranchNotTaken, Mode: jumptarget.Mode6502},
				{Address: 0x8000, Type: jumptarget.BranchTaken, Mode: jumptarget.Mode6502},
			},
			terminates: true,
		},
		{
			name:       "jump absolute",
			code:       []byte{0x4c, 0x34, 0x12},
			expected:   "jmp $1234",
			size:       3,
			successors: []arch.Successor{{Address: 0x1234, Type: jumptarget.BranchTaken, Mode: jumptarget.Mode6502}},
			terminates: true,
		},
		{
			name:       "jump indirect through loaded vector",
			code:       []byte{0x6c, 0x03, 0x80, 0x00, 0x90},
			expected:   "jmp ($8003)",
			size:       3,
			successors: []arch.Successor{{Address: 0x9000, Type: jumptarget.SwitchCase, Mode: jumptarget.Mode6502}},
			terminates: true,
		},
		{
			name:       "jump indirect through ram",
			code:       []byte{0x6c, 0x00, 0x03},
			expected:   "jmp ($0300)",
			size:       3,
			terminates: true,
		},
		{
			name:     "call",
			code:     []byte{0x20, 0x00, 0x90},
			expected: "jsr $9000",
			size:     3,
			successors: []arch.Successor{
				{Address: 0x9000, Type: jumptarget.CallTarget, Mode: jumptarget.Mode6502},
				{Address: 0x8003, Type: jumptarget.ReturnTarget, Mode: jumptarget.Mode6502},
			},
			terminates: true,
		},
		{
			name:     "accumulator",
			code:     []byte{0x0a},
			expected: "asl a",
			size:     1,
		},
		{
			name:     "zero page indexed",
			code:     []byte{0xb5, 0x10},
			expected: "lda $10,X",
			size:     2,
		},
		{
			name:     "indirect indexed",
			code:     []byte{0xb1, 0x20},
			expected: "lda ($0020),Y",
			size:     2,
		},
		{
			name:       "return",
			code:       []byte{0x60},
			expected:   "rts",
			size:       1,
			terminates: true,
		},
		{
			name:       "return from interrupt",
			code:       []byte{0x40},
			expected:   "rti",
			size:       1,
			terminates: true,
		},
	}

	dec := New(parameter.New(ParamConfig), Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := newTestMemory(t, tt.code...)

			ins, err := dec.Decode(mem, codeBase, jumptarget.Mode6502)
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, ins.Code)
			assert.Equal(t, tt.size, ins.Size())
			assert.Equal(t, tt.terminates, ins.Terminates)
			assert.Equal(t, len(tt.successors), len(ins.Successors))
			for i, successor := range tt.successors {
				assert.Equal(t, successor, ins.Successors[i])
			}
		})
	}
}

func TestArch6502_DecodeErrors(t *testing.T) {
	dec := New(parameter.New(ParamConfig), Options{})

	// truncated absolute instruction
	mem := newTestMemory(t, 0xad, 0x00)
	_, err := dec.Decode(mem, codeBase, jumptarget.Mode6502)
	assert.True(t, errors.Is(err, arch.ErrOutOfRange))

	_, err = dec.Decode(mem, 0x100, jumptarget.Mode6502)
	assert.True(t, errors.Is(err, arch.ErrOutOfRange))
}

func TestArch6502_StopAtUnofficial(t *testing.T) {
	mem := newTestMemory(t, 0x04, 0x10) // unofficial nop zero page

	_, err := New(parameter.New(ParamConfig), Options{}).Decode(mem, codeBase, jumptarget.Mode6502)
	assert.NoError(t, err)

	_, err = New(parameter.New(ParamConfig), Options{StopAtUnofficial: true}).Decode(mem, codeBase, jumptarget.Mode6502)
	assert.True(t, errors.Is(err, arch.ErrInvalidInstruction))
}

func TestArch6502_DecodeParamConfig(t *testing.T) {
	mem := newTestMemory(t, 0xad, 0x30, 0x80, 0xa5, 0x10)
	dec := New(parameter.New(parameter.Config{
		ZeroPagePrefix: "z:",
		AbsolutePrefix: "a:",
	}), Options{})

	ins, err := dec.Decode(mem, codeBase, jumptarget.Mode6502)
	assert.NoError(t, err)
	assert.Equal(t, "lda a:$8030", ins.Code)

	ins, err = dec.Decode(mem, codeBase+3, jumptarget.Mode6502)
	assert.NoError(t, err)
	assert.Equal(t, "lda z:$10", ins.Code)
}

func TestTypedParam(t *testing.T) {
	param, err := typedParam(cpu6502.RelativeAddressing, 0xfe, 0x8002)
	assert.NoError(t, err)
	assert.Equal(t, any(cpu6502.Absolute(0x8000)), param)

	param, err = typedParam(cpu6502.IndirectYAddressing, 0x20, 0)
	assert.NoError(t, err)
	assert.Equal(t, any(cpu6502.IndirectY(0x20)), param)

	_, err = typedParam(cpu6502.ZeroPageIndirectAddressing, 0x20, 0)
	assert.ErrorContains(t, err, "unsupported addressing mode")
}

func TestReadWordBug(t *testing.T) {
	mem := memory.New()
	assert.NoError(t, mem.Map(0x0200, []byte{0x12}))
	assert.NoError(t, mem.Map(0x02ff, []byte{0x34}))

	// the high byte is read from the start of the same page
	w, err := readWordBug(mem, 0x02ff)
	assert.NoError(t, err)
	assert.Equal(t, jumptarget.Address(0x1234), w)
}

func TestRelativeTarget(t *testing.T) {
	assert.Equal(t, jumptarget.Address(0x8010), relativeTarget(0x8002, 0x0e))
	assert.Equal(t, jumptarget.Address(0x7f82), relativeTarget(0x8002, 0x80))
	assert.Equal(t, jumptarget.Address(0x0001), relativeTarget(0xfff0, 0x11))
}

func TestInstruction_Classification(t *testing.T) {
	var nilInstruction Instruction
	assert.True(t, nilInstruction.IsNil())
	assert.False(t, nilInstruction.IsBranch())
	assert.False(t, nilInstruction.IsCall())
	assert.False(t, nilInstruction.StopsExecution())
}
