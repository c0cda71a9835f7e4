// Package pipeline orchestrates the decoding workflow stages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/retroenv/retrodecode/internal/arch"
	"github.com/retroenv/retrodecode/internal/arch/arm64"
	"github.com/retroenv/retrodecode/internal/arch/chip8"
	"github.com/retroenv/retrodecode/internal/arch/m6502"
	"github.com/retroenv/retrodecode/internal/arch/x86"
	"github.com/retroenv/retrodecode/internal/decoder"
	"github.com/retroenv/retrodecode/internal/detector"
	"github.com/retroenv/retrodecode/internal/graph"
	"github.com/retroenv/retrodecode/internal/loader"
	"github.com/retroenv/retrodecode/internal/options"
	"github.com/retroenv/retrodecode/internal/writer"
	"github.com/retroenv/retrogolib/arch/system/nes/parameter"
	"github.com/retroenv/retrogolib/log"
)

var errNoEntryPoints = errors.New("no valid entry points")

// Pipeline orchestrates the complete decoding workflow.
type Pipeline struct {
	logger   *log.Logger
	detector *detector.Detector
	loader   *loader.Loader
}

// Output contains the writers that the results are written to.
type Output struct {
	Listing io.Writer
	Graph   io.Writer // optional
}

// New creates a new decoding pipeline.
func New(logger *log.Logger) *Pipeline {
	return &Pipeline{
		logger:   logger,
		detector: detector.New(logger),
		loader:   loader.New(),
	}
}

// Execute runs the complete decoding pipeline.
func (p *Pipeline) Execute(ctx context.Context, opts options.Program, decoderOpts options.Decoder,
	output Output) (*decoder.Result, error) {

	system, err := p.detector.Detect(opts)
	if err != nil {
		return nil, fmt.Errorf("detecting system: %w", err)
	}

	bin, err := p.loader.Load(opts, system)
	if err != nil {
		return nil, fmt.Errorf("loading binary: %w", err)
	}

	return p.ExecuteWithBinary(ctx, bin, system, opts, decoderOpts, output)
}

// ExecuteWithBinary runs the decoding pipeline with a pre-loaded binary.
// This is useful for testing and programmatic usage where the binary is already in memory.
func (p *Pipeline) ExecuteWithBinary(ctx context.Context, bin *loader.Binary, system detector.System,
	opts options.Program, decoderOpts options.Decoder, output Output) (*decoder.Result, error) {

	decoderOpts.DefaultMode = system.Mode()

	dec, err := decoder.New(p.logger, bin.Memory, decoderOpts, createDecoders(decoderOpts)...)
	if err != nil {
		return nil, fmt.Errorf("creating decoder: %w", err)
	}
	if err := p.addEntryPoints(dec, bin.EntryPoints); err != nil {
		return nil, err
	}

	p.printInfo(opts, bin, system)

	result, err := dec.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("decoding: %w", err)
	}
	p.printStats(opts, result)

	w := writer.New(result, output.Listing, writer.Options{
		HexComments:    decoderOpts.HexComments,
		OffsetComments: decoderOpts.OffsetComments,
	})
	if err := w.Write(); err != nil {
		return nil, fmt.Errorf("writing listing: %w", err)
	}

	if output.Graph != nil {
		if err := graph.Write(output.Graph, result); err != nil {
			return nil, fmt.Errorf("writing graph: %w", err)
		}
	}

	return result, nil
}

// createDecoders returns the instruction decoders of all supported architectures.
func createDecoders(opts options.Decoder) []arch.Decoder {
	return []arch.Decoder{
		chip8.New(),
		m6502.New(parameter.New(m6502.ParamConfig), m6502.Options{StopAtUnofficial: opts.StopAtUnofficial}),
		x86.New(),
		arm64.New(),
	}
}

// addEntryPoints adds all entry points that are inside of mapped memory.
func (p *Pipeline) addEntryPoints(dec *decoder.Decoder, entryPoints []loader.EntryPoint) error {
	added := 0
	for _, entry := range entryPoints {
		if err := dec.AddEntryPoint(entry.Address, entry.Mode); err != nil {
			p.logger.Warn("Skipping entry point", log.Stringer("address", entry.Address), log.Err(err))
			continue
		}
		added++
	}
	if added == 0 {
		return errNoEntryPoints
	}
	return nil
}

// printInfo prints information about the binary being processed.
func (p *Pipeline) printInfo(opts options.Program, bin *loader.Binary, system detector.System) {
	if opts.Quiet {
		return
	}

	switch system {
	case detector.NES:
		p.logger.Info("Processing NES ROM",
			log.String("file", opts.Input),
			log.Uint16("mapper", bin.Mapper),
		)
		if bin.Mapper != 0 && bin.Mapper != 3 {
			p.logger.Warn("Bank switching is not supported, only the last PRG banks are decoded")
		}

	default:
		p.logger.Info("Processing binary",
			log.String("file", opts.Input),
			log.Stringer("system", system),
			log.Int("size", bin.Memory.Size()),
		)
	}
}

func (p *Pipeline) printStats(opts options.Program, result *decoder.Result) {
	if opts.Quiet {
		return
	}

	p.logger.Info("Decoding finished",
		log.Int("instructions", result.Stats.Instructions),
		log.Int("data_blocks", len(result.Data)),
		log.Int("dropped_targets", result.Stats.Dropped),
		log.Int("jumps_into_instructions", result.Stats.JumpsIntoInstruction),
	)
}
