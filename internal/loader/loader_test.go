package loader

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/retroenv/retrodecode/internal/detector"
	"github.com/retroenv/retrodecode/internal/jumptarget"
	"github.com/retroenv/retrodecode/internal/options"
	"github.com/retroenv/retrogolib/arch/system/nes/codedatalog"
	"github.com/retroenv/retrogolib/assert"
)

func TestLoad(t *testing.T) {
	t.Run("load CHIP8 file", func(t *testing.T) {
		tmpFile := createTempFile(t, "pong.ch8", []byte{0x12, 0x34, 0x56, 0x78})

		opts := options.Program{
			Parameters: options.Parameters{Input: tmpFile},
		}

		bin, err := New().Load(opts, detector.Chip8)
		assert.NoError(t, err)
		assert.Equal(t, entryPoints(0x200), bin.EntryPoints)
		assert.True(t, bin.Memory.Contains(0x203))
		assert.False(t, bin.Memory.Contains(0x204))
	})

	t.Run("load COM file", func(t *testing.T) {
		tmpFile := createTempFile(t, "tool.com", []byte{0xc3})

		opts := options.Program{
			Parameters: options.Parameters{Input: tmpFile},
		}

		bin, err := New().Load(opts, detector.X86_16)
		assert.NoError(t, err)
		assert.Equal(t, entryPoints(0x100), bin.EntryPoints)
	})

	t.Run("load with base and entry points", func(t *testing.T) {
		tmpFile := createTempFile(t, "test.bin", make([]byte, 0x20))

		opts := options.Program{
			Parameters: options.Parameters{Input: tmpFile},
			Flags: options.Flags{
				Base:    "$1000",
				Entries: "0x1000, 0x1010",
			},
		}

		bin, err := New().Load(opts, detector.ARM64)
		assert.NoError(t, err)
		assert.Equal(t, entryPoints(0x1000, 0x1010), bin.EntryPoints)
		assert.True(t, bin.Memory.Contains(0x101f))
	})

	t.Run("error on non-existent file", func(t *testing.T) {
		opts := options.Program{
			Parameters: options.Parameters{Input: "/nonexistent/file.nes"},
		}

		_, err := New().Load(opts, detector.NES)
		assert.Error(t, err)
	})
}

func TestLoadReader_NES(t *testing.T) {
	t.Run("16KB PRG is mirrored", func(t *testing.T) {
		rom := buildMinimalNESROM(1, 0)
		prg := rom[nesHeaderSize:]
		setVector(prg, 0x3ffa, 0x8010) // NMI
		setVector(prg, 0x3ffc, 0x8000) // reset
		setVector(prg, 0x3ffe, 0x8020) // IRQ

		bin, err := New().LoadReader(bytes.NewReader(rom), options.Program{}, detector.NES)
		assert.NoError(t, err)
		assert.Equal(t, entryPoints(0x8010, 0x8000, 0x8020), bin.EntryPoints)
		assert.True(t, bin.Memory.Contains(0x8000))
		assert.True(t, bin.Memory.Contains(0xffff))

		b, err := bin.Memory.Byte(0xfffc)
		assert.NoError(t, err)
		assert.Equal(t, byte(0x00), b)
	})

	t.Run("mapper is passed through", func(t *testing.T) {
		rom := buildMinimalNESROM(2, 1)

		bin, err := New().LoadReader(bytes.NewReader(rom), options.Program{}, detector.NES)
		assert.NoError(t, err)
		assert.Equal(t, uint16(1), bin.Mapper)
		assert.Equal(t, 0x8000, bin.Memory.Size())
	})

	t.Run("error on missing code/data log file", func(t *testing.T) {
		rom := buildMinimalNESROM(1, 0)
		opts := options.Program{
			Parameters: options.Parameters{CodeDataLog: "/nonexistent/file.cdl"},
		}

		_, err := New().LoadReader(bytes.NewReader(rom), opts, detector.NES)
		assert.ErrorContains(t, err, "opening CDL file")
	})

	t.Run("error on invalid NES header", func(t *testing.T) {
		_, err := New().LoadReader(bytes.NewReader([]byte{0x01, 0x02}), options.Program{}, detector.NES)
		assert.Error(t, err)
	})
}

func TestDefaultBaseAddress(t *testing.T) {
	tests := []struct {
		system   detector.System
		filename string
		expected jumptarget.Address
	}{
		{detector.Chip8, "pong.ch8", 0x200},
		{detector.M6502, "demo.prg", 0x8000},
		{detector.X86_16, "TOOL.COM", 0x100},
		{detector.X86_16, "boot.bin", 0},
		{detector.X86_32, "tool.com", 0},
		{detector.ARM64, "kernel.bin", 0},
	}

	for _, tt := range tests {
		t.Run(tt.system.String()+" "+tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.expected, defaultBaseAddress(tt.system, tt.filename))
		})
	}
}

func TestCodeDataLogEntries(t *testing.T) {
	prgFlags := []codedatalog.PrgFlag{
		codedatalog.Code, // start of a code run
		codedatalog.Code,
		0, // data
		codedatalog.Code, // start of a second code run
		codedatalog.SubEntryPoint,
		codedatalog.Code | codedatalog.SubEntryPoint,
	}

	entries := codeDataLogEntries(prgFlags, nesPRGBankSize)
	assert.Equal(t, []jumptarget.Address{0x8000, 0x8003, 0x8004, 0x8005}, entries)
}

func TestPrgAddress(t *testing.T) {
	tests := []struct {
		name     string
		prgSize  int
		index    int
		expected jumptarget.Address
		ok       bool
	}{
		{"16KB bank", 0x4000, 0x10, 0x8010, true},
		{"32KB window", 0x8000, 0x4000, 0xc000, true},
		{"8KB mapped to the top", 0x2000, 0x0, 0xe000, true},
		{"last bank of large PRG", 0x20000, 0x1c000, 0xc000, true},
		{"unmapped bank of large PRG", 0x20000, 0x100, 0, false},
		{"offset past PRG end", 0x4000, 0x4000, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			address, ok := prgAddress(tt.prgSize, tt.index)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, address)
		})
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		input    string
		expected jumptarget.Address
		wantErr  bool
	}{
		{"512", 512, false},
		{"0x200", 0x200, false},
		{"$C000", 0xc000, false},
		{" 0x10 ", 0x10, false},
		{"xyz", 0, true},
		{"0xffffffffffffffff", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			address, err := ParseAddress(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, address)
		})
	}
}

func TestParseEntryPoints(t *testing.T) {
	entries, err := ParseEntryPoints("0x200,$300")
	assert.NoError(t, err)
	assert.Equal(t, entryPoints(0x200, 0x300), entries)

	entries, err = ParseEntryPoints("0x1000:arm64, $8000:6502")
	assert.NoError(t, err)
	assert.Equal(t, []EntryPoint{
		{Address: 0x1000, Mode: jumptarget.ModeARM64},
		{Address: 0x8000, Mode: jumptarget.Mode6502},
	}, entries)

	_, err = ParseEntryPoints("0x200,")
	assert.Error(t, err)

	_, err = ParseEntryPoints("0x200:z80")
	assert.ErrorContains(t, err, "unsupported disassembly mode")
}

func entryPoints(addresses ...jumptarget.Address) []EntryPoint {
	entries := make([]EntryPoint, 0, len(addresses))
	for _, address := range addresses {
		entries = append(entries, EntryPoint{Address: address})
	}
	return entries
}

func createTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	tmpFile := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	return tmpFile
}

const nesHeaderSize = 16

// buildMinimalNESROM creates a minimal valid NES ROM in iNES format with specified PRG size.
// The mapper parameter is placed in the header at the correct position.
func buildMinimalNESROM(prgBanks, mapper byte) []byte {
	const prgBankSize = 16384 // 16KB

	data := make([]byte, nesHeaderSize+int(prgBanks)*prgBankSize)

	// iNES header
	copy(data[0:4], []byte{'N', 'E', 'S', 0x1A}) // Magic number
	data[4] = prgBanks                           // Number of 16KB PRG-ROM banks
	data[5] = 0                                  // Number of 8KB CHR-ROM banks
	data[6] = mapper << 4                        // Mapper low nibble
	data[7] = mapper & 0xF0                      // Mapper high nibble

	return data
}

func setVector(prg []byte, offset int, address uint16) {
	prg[offset] = byte(address)
	prg[offset+1] = byte(address >> 8)
}
