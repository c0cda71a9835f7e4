// Package loader handles loading binaries into a mapped address space.
package loader

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/retroenv/retrodecode/internal/arch/chip8"
	"github.com/retroenv/retrodecode/internal/detector"
	"github.com/retroenv/retrodecode/internal/jumptarget"
	"github.com/retroenv/retrodecode/internal/memory"
	"github.com/retroenv/retrodecode/internal/options"
	"github.com/retroenv/retrogolib/arch"
	"github.com/retroenv/retrogolib/arch/cpu/cpu6502"
	"github.com/retroenv/retrogolib/arch/system/nes/cartridge"
	"github.com/retroenv/retrogolib/arch/system/nes/codedatalog"
)

const (
	nesCodeBaseAddress = 0x8000
	nesPRGBankSize     = 0x4000
	nesPRGWindowSize   = 0x8000

	comBaseAddress = 0x100
)

// Binary is a loaded binary.
type Binary struct {
	Memory      *memory.Image
	EntryPoints []EntryPoint
	Mapper      uint16 // NES mapper number
}

// EntryPoint is an address that decoding starts from.
type EntryPoint struct {
	Address jumptarget.Address
	Mode    jumptarget.Mode // ModeDefault decodes in the mode of the system
}

// Loader handles loading binary files from disk.
type Loader struct{}

// New creates a new binary loader.
func New() *Loader {
	return &Loader{}
}

// Load loads a binary file based on the system type and options.
// NES files are parsed as iNES cartridges, all other systems are loaded
// as raw binaries at the base address.
func (l *Loader) Load(opts options.Program, system detector.System) (*Binary, error) {
	file, err := os.Open(opts.Input)
	if err != nil {
		return nil, fmt.Errorf("opening file %s: %w", opts.Input, err)
	}
	defer func() { _ = file.Close() }()

	return l.LoadReader(file, opts, system)
}

// LoadReader loads a binary from a reader.
func (l *Loader) LoadReader(reader io.Reader, opts options.Program, system detector.System) (*Binary, error) {
	var bin *Binary
	var err error
	if system.RetroSystem() == arch.NES {
		bin, err = loadNES(reader, opts)
	} else {
		bin, err = loadRaw(reader, opts, system)
	}
	if err != nil {
		return nil, err
	}

	if opts.Entries != "" {
		entries, err := ParseEntryPoints(opts.Entries)
		if err != nil {
			return nil, fmt.Errorf("parsing entry points: %w", err)
		}
		bin.EntryPoints = entries
	}
	return bin, nil
}

// loadNES maps the PRG of a cartridge into the CPU address space and uses the
// interrupt vectors as entry points. Code logged in an optional Code/Data log
// file adds further entry points.
func loadNES(reader io.Reader, opts options.Program) (*Binary, error) {
	cart, err := cartridge.LoadFile(reader)
	if err != nil {
		return nil, fmt.Errorf("loading cartridge: %w", err)
	}

	mem := memory.New()
	prg := cart.PRG
	switch {
	case len(prg) == nesPRGBankSize:
		// 16 KiB PRG is mirrored into both halves of the window
		if err := mem.Map(nesCodeBaseAddress, prg); err != nil {
			return nil, fmt.Errorf("mapping prg: %w", err)
		}
		if err := mem.Map(nesCodeBaseAddress+nesPRGBankSize, prg); err != nil {
			return nil, fmt.Errorf("mapping prg mirror: %w", err)
		}
	case len(prg) > nesPRGWindowSize:
		// only the last banks are mapped, bank switching is not supported
		if err := mem.Map(nesCodeBaseAddress, prg[len(prg)-nesPRGWindowSize:]); err != nil {
			return nil, fmt.Errorf("mapping prg: %w", err)
		}
	default:
		if err := mem.Map(jumptarget.Address(0x10000-len(prg)), prg); err != nil {
			return nil, fmt.Errorf("mapping prg: %w", err)
		}
	}

	bin := &Binary{
		Memory: mem,
		Mapper: cart.Mapper,
	}
	vectors := []jumptarget.Address{
		jumptarget.Address(cpu6502.NMIAddress),
		jumptarget.Address(cpu6502.ResetAddress),
		jumptarget.Address(cpu6502.IrqAddress),
	}
	for _, vector := range vectors {
		address, err := mem.ReadWord(vector)
		if err != nil {
			continue
		}
		bin.EntryPoints = append(bin.EntryPoints, EntryPoint{Address: jumptarget.Address(address)})
	}

	if opts.CodeDataLog != "" {
		entries, err := loadCodeDataLog(cart, opts.CodeDataLog)
		if err != nil {
			return nil, err
		}
		for _, address := range entries {
			bin.EntryPoints = append(bin.EntryPoints, EntryPoint{Address: address})
		}
	}
	return bin, nil
}

// loadCodeDataLog loads the Code/Data log file of a cartridge and returns the
// logged code entry points.
func loadCodeDataLog(cart *cartridge.Cartridge, fileName string) ([]jumptarget.Address, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("opening CDL file %s: %w", fileName, err)
	}
	defer func() { _ = file.Close() }()

	prgFlags, err := codedatalog.LoadFile(cart, file)
	if err != nil {
		return nil, fmt.Errorf("loading code/data log file: %w", err)
	}
	return codeDataLogEntries(prgFlags, len(cart.PRG)), nil
}

// codeDataLogEntries returns the CPU addresses of logged subroutine entry
// points and of the first byte of every logged code run.
func codeDataLogEntries(prgFlags []codedatalog.PrgFlag, prgSize int) []jumptarget.Address {
	var entries []jumptarget.Address
	previousCode := false
	for index, flags := range prgFlags {
		isCode := flags&codedatalog.Code != 0
		isEntry := flags&codedatalog.SubEntryPoint != 0 || (isCode && !previousCode)
		previousCode = isCode
		if !isEntry {
			continue
		}
		if address, ok := prgAddress(prgSize, index); ok {
			entries = append(entries, address)
		}
	}
	return entries
}

// prgAddress converts a PRG offset to the CPU address it is mapped at by
// loadNES. Offsets of banks that are not mapped are reported as not ok.
func prgAddress(prgSize, index int) (jumptarget.Address, bool) {
	if index < 0 || index >= prgSize {
		return 0, false
	}
	switch {
	case prgSize == nesPRGBankSize:
		return jumptarget.Address(nesCodeBaseAddress + index), true
	case prgSize > nesPRGWindowSize:
		offset := index - (prgSize - nesPRGWindowSize)
		if offset < 0 {
			return 0, false
		}
		return jumptarget.Address(nesCodeBaseAddress + offset), true
	default:
		return jumptarget.Address(0x10000 - prgSize + index), true
	}
}

// loadRaw maps a raw binary at the base address.
func loadRaw(reader io.Reader, opts options.Program, system detector.System) (*Binary, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading binary: %w", err)
	}

	base := defaultBaseAddress(system, opts.Input)
	if opts.Base != "" {
		base, err = ParseAddress(opts.Base)
		if err != nil {
			return nil, fmt.Errorf("parsing base address: %w", err)
		}
	}

	mem := memory.New()
	if err := mem.Map(base, data); err != nil {
		return nil, fmt.Errorf("mapping binary: %w", err)
	}

	return &Binary{
		Memory:      mem,
		EntryPoints: []EntryPoint{{Address: base}},
	}, nil
}

// defaultBaseAddress returns the address that raw binaries of a system are loaded to.
func defaultBaseAddress(system detector.System, filename string) jumptarget.Address {
	if architecture, ok := system.Architecture(); ok {
		switch architecture {
		case arch.CHIP8:
			return chip8.ProgramStart
		case arch.CPU6502:
			return nesCodeBaseAddress
		}
	}
	if system.RetroSystem() == arch.DOS && strings.EqualFold(filepath.Ext(filename), ".com") {
		return comBaseAddress
	}
	return 0
}

// ParseAddress parses an address in decimal, 0x prefixed or $ prefixed hex notation.
func ParseAddress(s string) (jumptarget.Address, error) {
	s = strings.TrimSpace(s)
	if hex, ok := strings.CutPrefix(s, "$"); ok {
		s = "0x" + hex
	}
	value, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address '%s': %w", s, err)
	}
	address := jumptarget.Address(value)
	if !address.IsDefined() {
		return 0, fmt.Errorf("invalid address '%s'", s)
	}
	return address, nil
}

// ParseEntryPoints parses a comma separated list of entry point addresses.
// Every address can be followed by a colon and the disassembly mode to decode
// it with, for example 0x1000:arm64.
func ParseEntryPoints(s string) ([]EntryPoint, error) {
	var entries []EntryPoint
	for _, part := range strings.Split(s, ",") {
		addressPart, modeName, hasMode := strings.Cut(part, ":")
		address, err := ParseAddress(addressPart)
		if err != nil {
			return nil, err
		}

		entry := EntryPoint{Address: address}
		if hasMode {
			entry.Mode, err = jumptarget.ParseMode(strings.TrimSpace(modeName))
			if err != nil {
				return nil, err
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
