package jumptarget

import (
	"fmt"
	"strings"
)

// Mode selects the instruction set variant that is used to decode a target.
// The worklist only stores it, the decoders interpret it.
type Mode uint8

// Supported disassembly modes.
const (
	ModeDefault Mode = iota // baseline mode of a default constructed target
	ModeChip8
	Mode6502
	ModeX86_16
	ModeX86_32
	ModeX86_64
	ModeARM64
)

var modeNames = map[Mode]string{
	ModeDefault: "default",
	ModeChip8:   "chip8",
	Mode6502:    "6502",
	ModeX86_16:  "x86-16",
	ModeX86_32:  "x86-32",
	ModeX86_64:  "x86-64",
	ModeARM64:   "arm64",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// ParseMode returns the mode matching the given name.
func ParseMode(name string) (Mode, error) {
	name = strings.ToLower(name)
	for mode, modeName := range modeNames {
		if modeName == name {
			return mode, nil
		}
	}
	return ModeDefault, fmt.Errorf("unsupported disassembly mode '%s'", name)
}
