// Package fileprocessor handles file loading and processing operations
package fileprocessor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/retroenv/retrodecode/internal/options"
	"github.com/retroenv/retrodecode/internal/pipeline"
	"github.com/retroenv/retrogolib/buildinfo"
	"github.com/retroenv/retrogolib/log"
)

// ProcessFile handles the complete file processing workflow
func ProcessFile(ctx context.Context, logger *log.Logger, opts options.Program, decoderOpts options.Decoder) error {
	listing, err := createWriter(opts.Output)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}
	defer closeWriter(listing)

	output := pipeline.Output{
		Listing: listing,
	}
	if opts.Graph != "" {
		graph, err := createWriter(opts.Graph)
		if err != nil {
			return fmt.Errorf("creating graph writer: %w", err)
		}
		defer closeWriter(graph)
		output.Graph = graph
	}

	p := pipeline.New(logger)
	if _, err := p.Execute(ctx, opts, decoderOpts, output); err != nil {
		return fmt.Errorf("processing file %s: %w", opts.Input, err)
	}
	return nil
}

// GetFilesToProcess returns list of files to process based on options
func GetFilesToProcess(opts *options.Program) ([]string, error) {
	if opts.Batch != "" {
		matches, err := filepath.Glob(opts.Batch)
		if err != nil {
			return nil, fmt.Errorf("globbing batch pattern: %w", err)
		}
		return matches, nil
	}
	return []string{opts.Input}, nil
}

// GenerateOutputFilename generates output filename for a given input file
func GenerateOutputFilename(inputFile string) string {
	ext := filepath.Ext(inputFile)
	return inputFile[:len(inputFile)-len(ext)] + ".lst"
}

func createWriter(name string) (io.Writer, error) {
	if name == "" {
		return os.Stdout, nil
	}

	file, err := os.Create(name)
	if err != nil {
		return nil, fmt.Errorf("creating output file %s: %w", name, err)
	}
	return file, nil
}

func closeWriter(w io.Writer) {
	if w == os.Stdout {
		return
	}
	if closer, ok := w.(io.Closer); ok {
		_ = closer.Close()
	}
}

// PrintBanner prints application version information
func PrintBanner(logger *log.Logger, opts options.Program, version, commit, date string) {
	if opts.Quiet {
		return
	}

	logger.Info("retrodecode", log.String("version", buildinfo.Version(version, commit, date)))

	if date != "" && !strings.Contains(date, "unknown") {
		logger.Info("Build", log.String("date", date))
	}
}
