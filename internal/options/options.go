// Package options contains the program options.
package options

import (
	"github.com/retroenv/retrodecode/internal/jumptarget"
)

// Parameters contains file path options.
type Parameters struct {
	Input  string `flag:"i" usage:"input binary file"`
	Output string `flag:"o" usage:"output listing file (default: stdout)"`
	Graph  string `flag:"dot" usage:"output Graphviz DOT file of the discovered jump targets"`
	Batch  string `flag:"batch" usage:"batch process files matching pattern (e.g. *.ch8)"`

	CodeDataLog string `flag:"cdl" usage:"Code/Data log file (.cdl) of a NES ROM"`
}

// Flags contains behavior options.
type Flags struct {
	System  string `flag:"s" usage:"target system: nes, chip8, 6502, x86-16, x86-32, x86-64, arm64 (default: auto-detect)"`
	Base    string `flag:"base" usage:"load address of raw binaries (default: per system)"`
	Entries string `flag:"entry" usage:"comma separated entry point addresses with optional :mode suffix (default: load address)"`

	Leftover         bool `flag:"leftover" usage:"decode code that was not reached from any entry point"`
	StopAtUnofficial bool `flag:"stop-at-unofficial" usage:"stop tracing at unofficial 6502 opcodes"`
	Debug            bool `flag:"debug" usage:"enable debug logging"`
	Quiet            bool `flag:"q" usage:"quiet mode"`
}

// OutputFlags contains output formatting options.
type OutputFlags struct {
	NoHexComments bool `flag:"nohexcomments" usage:"omit hex opcode bytes in comments"`
	NoOffsets     bool `flag:"nooffsets" usage:"omit addresses in comments"`
}

// Program options of the decoder.
type Program struct {
	Parameters
	Flags
	OutputFlags
}

// Decoder defines options to control the decoding and listing output.
type Decoder struct {
	DefaultMode jumptarget.Mode // mode used for targets without an explicit mode

	HexComments      bool
	Leftover         bool // decode unreached gaps as leftover code after the worklist drains
	OffsetComments   bool
	StopAtUnofficial bool // treat unofficial 6502 opcodes as invalid
}

// NewDecoder returns a new options instance with default options.
func NewDecoder(mode jumptarget.Mode) Decoder {
	return Decoder{
		DefaultMode: mode,

		HexComments:    true,
		OffsetComments: true,
	}
}
