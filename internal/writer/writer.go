// Package writer implements the listing output of decoded binaries.
package writer

import (
	"fmt"
	"io"
	"strings"

	"github.com/retroenv/retrodecode/internal/arch"
	"github.com/retroenv/retrodecode/internal/decoder"
	"github.com/retroenv/retrodecode/internal/jumptarget"
)

const dataBytesPerLine = 16

type lineWriterFunc func(line string, byteCount int) error

// label prefixes per jump target type.
var labelPrefixes = map[jumptarget.Type]string{
	jumptarget.BranchNotTaken: "_label_",
	jumptarget.BranchTaken:    "_label_",
	jumptarget.SwitchCase:     "_case_",
	jumptarget.CallTarget:     "_func_",
	jumptarget.ReturnTarget:   "_ret_",
	jumptarget.EntryPoint:     "_entry_",
	jumptarget.Leftover:       "_leftover_",
}

// Writer writes a listing of a decoding result.
type Writer struct {
	result  *decoder.Result
	options Options
	writer  io.Writer
}

// Options of the writer.
type Options struct {
	HexComments    bool
	OffsetComments bool
}

// New creates a new writer.
func New(result *decoder.Result, writer io.Writer, options Options) *Writer {
	return &Writer{
		result:  result,
		options: options,
		writer:  writer,
	}
}

// LabelName returns the label name of an address that decoding entered with
// the given jump target type.
func LabelName(address jumptarget.Address, typ jumptarget.Type) string {
	prefix, ok := labelPrefixes[typ]
	if !ok {
		prefix = "_label_"
	}
	return fmt.Sprintf("%s%04x", prefix, uint64(address))
}

// Write writes the header, all instructions with their labels and the data
// bytes that were not decoded, ordered by address.
func (w Writer) Write() error {
	if err := w.writeCommentHeader(); err != nil {
		return err
	}

	instructions := w.result.Instructions
	data := w.result.Data
	var previousLineWasCode bool

	for first := true; len(instructions) > 0 || len(data) > 0; first = false {
		nextIsCode := len(data) == 0 ||
			(len(instructions) > 0 && instructions[0].Address() < data[0].Address)

		if nextIsCode {
			ins := instructions[0]
			instructions = instructions[1:]

			labeled, err := w.writeLabel(ins.Address(), first)
			if err != nil {
				return err
			}
			// print an empty line in case of code after data
			if !first && !labeled && !previousLineWasCode {
				if _, err := fmt.Fprintln(w.writer); err != nil {
					return fmt.Errorf("writing line: %w", err)
				}
			}
			if err := w.writeCodeLine(ins); err != nil {
				return fmt.Errorf("writing code line: %w", err)
			}
			previousLineWasCode = true
			continue
		}

		block := data[0]
		data = data[1:]
		if !first {
			if _, err := fmt.Fprintln(w.writer); err != nil {
				return fmt.Errorf("writing line: %w", err)
			}
		}
		if err := w.writeData(block); err != nil {
			return err
		}
		previousLineWasCode = false
	}
	return nil
}

func (w Writer) writeCommentHeader() error {
	stats := w.result.Stats
	if _, err := fmt.Fprintf(w.writer, "; Instructions: %d\n", stats.Instructions); err != nil {
		return fmt.Errorf("writing instruction count: %w", err)
	}

	for _, typ := range jumptarget.Types() {
		count := stats.Targets[typ]
		if count == 0 {
			continue
		}
		if _, err := fmt.Fprintf(w.writer, "; %s targets: %d\n", typ, count); err != nil {
			return fmt.Errorf("writing target count: %w", err)
		}
	}

	if _, err := fmt.Fprintln(w.writer); err != nil {
		return fmt.Errorf("writing line: %w", err)
	}
	return nil
}

// writeLabel writes the label of an address if it has one and returns whether
// a label was written.
func (w Writer) writeLabel(address jumptarget.Address, first bool) (bool, error) {
	typ, ok := w.result.Labels[address]
	if !ok {
		return false, nil
	}

	if !first {
		if _, err := fmt.Fprintln(w.writer); err != nil {
			return false, fmt.Errorf("writing line: %w", err)
		}
	}

	if _, err := fmt.Fprintf(w.writer, "%-32s ; %s\n", LabelName(address, typ)+":", typ); err != nil {
		return false, fmt.Errorf("writing label: %w", err)
	}
	return true, nil
}

func (w Writer) writeCodeLine(ins *arch.Instruction) error {
	comment := w.comment(ins.Address(), ins.Data)
	if comment == "" {
		if _, err := fmt.Fprintf(w.writer, "  %s\n", ins.Code); err != nil {
			return fmt.Errorf("writing line: %w", err)
		}
	} else {
		if _, err := fmt.Fprintf(w.writer, "  %-30s ; %s\n", ins.Code, comment); err != nil {
			return fmt.Errorf("writing line: %w", err)
		}
	}
	return nil
}

// writeData writes a data block as bundled byte directives.
func (w Writer) writeData(block decoder.Data) error {
	address := block.Address
	lineWriter := func(line string, byteCount int) error {
		var err error
		if w.options.OffsetComments {
			_, err = fmt.Fprintf(w.writer, "%-32s ; $%04X\n", line, uint64(address))
		} else {
			_, err = fmt.Fprintf(w.writer, "%s\n", line)
		}
		if err != nil {
			return fmt.Errorf("writing data line: %w", err)
		}
		address += jumptarget.Address(byteCount)
		return nil
	}

	if err := w.BundleDataWrites(block.Bytes, lineWriter); err != nil {
		return fmt.Errorf("writing data at %s: %w", block.Address, err)
	}
	return nil
}

// BundleDataWrites bundles writes of data bytes to print dataBytesPerLine bytes per line.
func (w Writer) BundleDataWrites(data []byte, lineWriter lineWriterFunc) error {
	remaining := len(data)
	for i := 0; remaining > 0; {
		toWrite := min(remaining, dataBytesPerLine)

		buf := &strings.Builder{}
		buf.WriteString(".byte ")
		for j := range toWrite {
			if _, err := fmt.Fprintf(buf, "$%02x, ", data[i+j]); err != nil {
				return fmt.Errorf("writing data byte: %w", err)
			}
		}

		line := strings.TrimRight(buf.String(), ", ")

		if lineWriter != nil {
			if err := lineWriter(line, toWrite); err != nil {
				return fmt.Errorf("writing data line using custom writer: %w", err)
			}
		} else {
			if _, err := fmt.Fprintf(w.writer, "%s\n", line); err != nil {
				return fmt.Errorf("writing data line: %w", err)
			}
		}

		i += toWrite
		remaining -= toWrite
	}

	return nil
}

// comment returns the address and hex byte comment of an instruction.
func (w Writer) comment(address jumptarget.Address, data []byte) string {
	var parts []string
	if w.options.OffsetComments {
		parts = append(parts, fmt.Sprintf("$%04X", uint64(address)))
	}
	if w.options.HexComments {
		hex := make([]string, 0, len(data))
		for _, b := range data {
			hex = append(hex, fmt.Sprintf("%02X", b))
		}
		parts = append(parts, strings.Join(hex, " "))
	}
	return strings.Join(parts, "  ")
}
