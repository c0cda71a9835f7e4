package m6502

import (
	"fmt"

	"github.com/retroenv/retrodecode/internal/jumptarget"
	"github.com/retroenv/retrogolib/arch/cpu/cpu6502"
	"github.com/retroenv/retrogolib/arch/system/nes/parameter"
)

// ParamConfig configures the parameter converter for the listing output.
var ParamConfig = parameter.Config{
	IndirectPrefix: "(",
	IndirectSuffix: ")",
}

// paramReaderFunc translates the raw parameter of an instruction into the
// typed parameter that the retrogolib converter formats.
type paramReaderFunc func(value uint16, next jumptarget.Address) any

var paramReader = map[cpu6502.AddressingMode]paramReaderFunc{
	cpu6502.ImpliedAddressing:     paramReaderImplied,
	cpu6502.ImmediateAddressing:   paramReaderImmediate,
	cpu6502.AccumulatorAddressing: paramReaderAccumulator,
	cpu6502.AbsoluteAddressing:    paramReaderAbsolute,
	cpu6502.AbsoluteXAddressing:   paramReaderAbsoluteX,
	cpu6502.AbsoluteYAddressing:   paramReaderAbsoluteY,
	cpu6502.ZeroPageAddressing:    paramReaderZeroPage,
	cpu6502.ZeroPageXAddressing:   paramReaderZeroPageX,
	cpu6502.ZeroPageYAddressing:   paramReaderZeroPageY,
	cpu6502.RelativeAddressing:    paramReaderRelative,
	cpu6502.IndirectAddressing:    paramReaderIndirect,
	cpu6502.IndirectXAddressing:   paramReaderIndirectX,
	cpu6502.IndirectYAddressing:   paramReaderIndirectY,
}

// opcodeSize returns the instruction size in bytes for an addressing mode.
func opcodeSize(addressing cpu6502.AddressingMode) int {
	switch addressing {
	case cpu6502.ImpliedAddressing, cpu6502.AccumulatorAddressing:
		return 1
	case cpu6502.AbsoluteAddressing, cpu6502.AbsoluteXAddressing, cpu6502.AbsoluteYAddressing,
		cpu6502.IndirectAddressing:
		return 3
	default:
		return 2
	}
}

// readParam returns the little endian parameter that follows the opcode byte.
func readParam(data []byte) uint16 {
	switch len(data) {
	case 2:
		return uint16(data[1])
	case 3:
		return uint16(data[2])<<8 | uint16(data[1])
	default:
		return 0
	}
}

// typedParam returns the typed parameter of an instruction, relative branch
// offsets are resolved to the absolute destination.
func typedParam(addressing cpu6502.AddressingMode, value uint16, next jumptarget.Address) (any, error) {
	fun, ok := paramReader[addressing]
	if !ok {
		return nil, fmt.Errorf("unsupported addressing mode %d", addressing)
	}
	return fun(value, next), nil
}

// formatCode returns the instruction name followed by its parameter as
// formatted by the converter.
func (ar *Arch6502) formatCode(instruction Instruction, addressing cpu6502.AddressingMode, value uint16,
	next jumptarget.Address) (string, error) {

	param, err := typedParam(addressing, value, next)
	if err != nil {
		return "", err
	}
	params, err := parameter.String(ar.converter, addressing, param)
	if err != nil {
		return "", fmt.Errorf("getting parameter as string: %w", err)
	}
	if params == "" {
		return instruction.Name(), nil
	}
	return fmt.Sprintf("%s %s", instruction.Name(), params), nil
}

func paramReaderImplied(uint16, jumptarget.Address) any {
	return nil
}

func paramReaderImmediate(value uint16, _ jumptarget.Address) any {
	return int(value)
}

func paramReaderAccumulator(uint16, jumptarget.Address) any {
	return cpu6502.Accumulator(0)
}

func paramReaderAbsolute(value uint16, _ jumptarget.Address) any {
	return cpu6502.Absolute(value)
}

func paramReaderAbsoluteX(value uint16, _ jumptarget.Address) any {
	return cpu6502.AbsoluteX(value)
}

func paramReaderAbsoluteY(value uint16, _ jumptarget.Address) any {
	return cpu6502.AbsoluteY(value)
}

func paramReaderZeroPage(value uint16, _ jumptarget.Address) any {
	return cpu6502.ZeroPage(value)
}

func paramReaderZeroPageX(value uint16, _ jumptarget.Address) any {
	return cpu6502.ZeroPageX(value)
}

func paramReaderZeroPageY(value uint16, _ jumptarget.Address) any {
	return cpu6502.ZeroPageY(value)
}

func paramReaderRelative(value uint16, next jumptarget.Address) any {
	return cpu6502.Absolute(uint16(relativeTarget(next, value)))
}

func paramReaderIndirect(value uint16, _ jumptarget.Address) any {
	// the vector is not dereferenced for the listing
	return cpu6502.Indirect(value)
}

func paramReaderIndirectX(value uint16, _ jumptarget.Address) any {
	return cpu6502.IndirectX(value)
}

func paramReaderIndirectY(value uint16, _ jumptarget.Address) any {
	return cpu6502.IndirectY(value)
}
