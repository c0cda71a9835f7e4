// Package detector handles system architecture detection.
package detector

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/retroenv/retrodecode/internal/jumptarget"
	"github.com/retroenv/retrodecode/internal/options"
	"github.com/retroenv/retrogolib/arch"
	"github.com/retroenv/retrogolib/log"
)

// System is a supported target system.
type System string

// Supported systems.
const (
	NES    System = "nes"
	Chip8  System = "chip8"
	M6502  System = "6502"
	X86_16 System = "x86-16"
	X86_32 System = "x86-32"
	X86_64 System = "x86-64"
	ARM64  System = "arm64"
)

// systemInfo links a system to the retrogolib system and architecture that
// describe it. retrogolib has no arm64 architecture and does not distinguish
// the x86 operand sizes, the disassembly mode carries that information.
type systemInfo struct {
	system          arch.System
	architecture    arch.Architecture
	hasArchitecture bool
	mode            jumptarget.Mode
}

var systems = map[System]systemInfo{
	NES:    {system: arch.NES, architecture: arch.CPU6502, hasArchitecture: true, mode: jumptarget.Mode6502},
	Chip8:  {system: arch.CHIP8System, architecture: arch.CHIP8, hasArchitecture: true, mode: jumptarget.ModeChip8},
	M6502:  {system: arch.Generic, architecture: arch.CPU6502, hasArchitecture: true, mode: jumptarget.Mode6502},
	X86_16: {system: arch.DOS, architecture: arch.X86, hasArchitecture: true, mode: jumptarget.ModeX86_16},
	X86_32: {system: arch.Generic, architecture: arch.X86, hasArchitecture: true, mode: jumptarget.ModeX86_32},
	X86_64: {system: arch.Generic, architecture: arch.X86, hasArchitecture: true, mode: jumptarget.ModeX86_64},
	ARM64:  {system: arch.Generic, mode: jumptarget.ModeARM64},
}

// retroSystems maps retrogolib systems to the system that handles them.
var retroSystems = map[arch.System]System{
	arch.NES:         NES,
	arch.CHIP8System: Chip8,
	arch.DOS:         X86_16,
}

var extensionSystems = map[string]System{
	".ch8":  Chip8,
	".c8":   Chip8,
	".rom":  Chip8,
	".nes":  NES,
	".6502": M6502,
	".prg":  M6502,
	".com":  X86_16,
}

// String returns the system name.
func (s System) String() string {
	return string(s)
}

// Mode returns the disassembly mode that code of the system is decoded with.
func (s System) Mode() jumptarget.Mode {
	return systems[s].mode
}

// RetroSystem returns the retrogolib system, raw binaries use arch.Generic.
func (s System) RetroSystem() arch.System {
	return systems[s].system
}

// Architecture returns the retrogolib CPU architecture of the system and
// whether retrogolib defines it.
func (s System) Architecture() (arch.Architecture, bool) {
	info := systems[s]
	return info.architecture, info.hasArchitecture
}

// Systems returns all supported system names sorted alphabetically.
func Systems() []string {
	names := make([]string, 0, len(systems))
	for system := range systems {
		names = append(names, string(system))
	}
	slices.Sort(names)
	return names
}

// ParseSystem returns the system matching the given name, ignoring case.
// retrogolib system names like "dos" are accepted as well.
func ParseSystem(name string) (System, error) {
	system := System(strings.ToLower(name))
	if _, ok := systems[system]; ok {
		return system, nil
	}

	retroSystem, _ := arch.SystemFromString(name)
	if system, ok := retroSystems[retroSystem]; ok {
		return system, nil
	}
	return "", fmt.Errorf("unsupported system '%s', valid options: %s",
		name, strings.Join(Systems(), ", "))
}

// Detector handles system architecture detection from file extensions and options.
type Detector struct {
	logger *log.Logger
}

// New creates a new system detector.
func New(logger *log.Logger) *Detector {
	return &Detector{
		logger: logger,
	}
}

// Detect determines the system architecture from options or file auto-detection.
// It first checks if a system is explicitly specified in options, otherwise
// attempts to detect the system from the input filename extension.
func (d *Detector) Detect(opts options.Program) (System, error) {
	if opts.System != "" {
		return ParseSystem(opts.System)
	}

	system, ok := d.detectFromFile(opts.Input)
	if !ok {
		return "", fmt.Errorf("unable to detect system of file '%s', specify it using -s", opts.Input)
	}
	d.logger.Debug("Auto-detected system",
		log.Stringer("system", system),
		log.String("file", opts.Input))
	return system, nil
}

// detectFromFile determines the system type based on file extension.
func (d *Detector) detectFromFile(filename string) (System, bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	system, ok := extensionSystems[ext]
	return system, ok
}
