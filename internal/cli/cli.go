// Package cli handles command line interface logic
package cli

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/retroenv/retrodecode/internal/detector"
	"github.com/retroenv/retrodecode/internal/loader"
	"github.com/retroenv/retrodecode/internal/options"
)

// ParseFlags parses command line flags and returns program and decoder options
func ParseFlags() (options.Program, options.Decoder, error) {
	flags := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	var opts options.Program
	readOptionFlags(flags, &opts)
	readOutputFlags(flags, &opts)

	err := flags.Parse(os.Args[1:])
	args := flags.Args()
	if err != nil || (len(args) == 0 && opts.Batch == "" && opts.Input == "") {
		return opts, options.Decoder{}, &UsageError{flags: flags}
	}

	if err := validateArgs(args); err != nil {
		return opts, options.Decoder{}, err
	}

	if err := normalizeOptions(&opts); err != nil {
		return opts, options.Decoder{}, err
	}

	if opts.Batch == "" && len(args) > 0 {
		opts.Input = args[0]
	}

	return opts, createDecoderOptions(opts), nil
}

// UsageError represents an error that should show usage information
type UsageError struct {
	flags *flag.FlagSet
	msg   string
}

func (e *UsageError) Error() string {
	return e.msg
}

func (e *UsageError) ShowUsage() {
	fmt.Printf("usage: retrodecode [options] <file to decode>\n\n")
	if e.flags != nil {
		e.flags.PrintDefaults()
	}
	fmt.Println()
}

// validateArgs checks if arguments are in correct order
func validateArgs(args []string) error {
	for i, arg := range args {
		if i > 0 && strings.HasPrefix(arg, "-") {
			return &UsageError{
				msg: fmt.Sprintf("Potential argument %s found after file to decode, please pass the file to decode as last argument", arg),
			}
		}
	}
	return nil
}

// normalizeOptions normalizes and validates option values
func normalizeOptions(opts *options.Program) error {
	if opts.System != "" {
		system, err := detector.ParseSystem(opts.System)
		if err != nil {
			return err
		}
		opts.System = system.String()
	}

	if opts.Base != "" {
		if _, err := loader.ParseAddress(opts.Base); err != nil {
			return fmt.Errorf("invalid base address: %w", err)
		}
	}
	if opts.Entries != "" {
		if _, err := loader.ParseEntryPoints(opts.Entries); err != nil {
			return fmt.Errorf("invalid entry points: %w", err)
		}
	}

	if opts.Batch != "" && opts.Graph != "" {
		return fmt.Errorf("the -dot option can not be combined with -batch")
	}
	if opts.Batch != "" && opts.CodeDataLog != "" {
		return fmt.Errorf("the -cdl option can not be combined with -batch")
	}
	return nil
}

// createDecoderOptions creates decoder options based on program options,
// the default mode is set once the system of the input file is known.
func createDecoderOptions(opts options.Program) options.Decoder {
	decoderOptions := options.NewDecoder(0)
	decoderOptions.HexComments = !opts.NoHexComments
	decoderOptions.OffsetComments = !opts.NoOffsets
	decoderOptions.Leftover = opts.Leftover
	decoderOptions.StopAtUnofficial = opts.StopAtUnofficial
	return decoderOptions
}

func readOptionFlags(flags *flag.FlagSet, opts *options.Program) {
	flags.StringVar(&opts.Input, "i", "", "name of the input binary file")
	flags.StringVar(&opts.Output, "o", "", "name of the output listing file, printed on console if no name given")
	flags.StringVar(&opts.Graph, "dot", "", "name of the Graphviz DOT file to write the discovered jump targets to")
	flags.StringVar(&opts.Batch, "batch", "", "process a batch of given path and file mask and automatically .lst file naming, for example *.ch8")
	flags.StringVar(&opts.CodeDataLog, "cdl", "", "name of the .cdl Code/Data log file to load, adds logged code of NES ROMs as entry points")
	flags.StringVar(&opts.System, "s", "", "system to decode for (nes, chip8, 6502, x86-16, x86-32, x86-64, arm64) - if not auto-detected from file extension")
	flags.StringVar(&opts.Base, "base", "", "load address of raw binaries, defaults to the system specific program start")
	flags.StringVar(&opts.Entries, "entry", "", "comma separated list of entry point addresses, an address can be suffixed with :mode to decode it in another mode, defaults to the load address")
	flags.BoolVar(&opts.Leftover, "leftover", false, "decode gaps that are not reachable from any entry point as leftover code")
	flags.BoolVar(&opts.StopAtUnofficial, "stop-at-unofficial", false, "stop tracing at unofficial 6502 opcodes")
	flags.BoolVar(&opts.Debug, "debug", false, "enable debugging options for extended logging")
	flags.BoolVar(&opts.Quiet, "q", false, "perform operations quietly")
}

func readOutputFlags(flags *flag.FlagSet, opts *options.Program) {
	flags.BoolVar(&opts.NoHexComments, "nohexcomments", false, "do not output opcode bytes as hex values in comments")
	flags.BoolVar(&opts.NoOffsets, "nooffsets", false, "do not output addresses in comments")
}
