// Package memory provides the mapped address space of a binary.
package memory

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/retroenv/retrodecode/internal/arch"
	"github.com/retroenv/retrodecode/internal/jumptarget"
)

var _ arch.Memory = &Image{}

// Segment is a continuous block of bytes mapped at a base address.
type Segment struct {
	Base jumptarget.Address
	Data []byte
}

// End returns the first address after the segment.
func (s Segment) End() jumptarget.Address {
	return s.Base + jumptarget.Address(len(s.Data))
}

func (s Segment) contains(address jumptarget.Address) bool {
	return address >= s.Base && address < s.End()
}

// Image is an address space made of non overlapping segments.
type Image struct {
	segments []Segment // sorted by base address
}

// New returns an empty image.
func New() *Image {
	return &Image{}
}

// Map maps the data at the given base address.
func (m *Image) Map(base jumptarget.Address, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	seg := Segment{Base: base, Data: data}
	if seg.End() < base {
		return fmt.Errorf("segment at %s with size %d overflows the address space", base, len(data))
	}

	for _, existing := range m.segments {
		if seg.Base < existing.End() && existing.Base < seg.End() {
			return fmt.Errorf("segment at %s overlaps segment at %s", base, existing.Base)
		}
	}

	m.segments = append(m.segments, seg)
	slices.SortFunc(m.segments, func(a, b Segment) int {
		return cmp.Compare(a.Base, b.Base)
	})
	return nil
}

// Segments returns all mapped segments sorted by address.
func (m *Image) Segments() []Segment {
	return slices.Clone(m.segments)
}

// Size returns the count of all mapped bytes.
func (m *Image) Size() int {
	size := 0
	for _, seg := range m.segments {
		size += len(seg.Data)
	}
	return size
}

// Contains returns whether the address is mapped.
func (m *Image) Contains(address jumptarget.Address) bool {
	_, ok := m.segment(address)
	return ok
}

// Read returns size bytes starting at the given address. Reads can not span
// multiple segments.
func (m *Image) Read(address jumptarget.Address, size int) ([]byte, error) {
	seg, ok := m.segment(address)
	if !ok {
		return nil, fmt.Errorf("reading memory at address %s: %w", address, arch.ErrOutOfRange)
	}

	offset := int(address - seg.Base)
	if size > len(seg.Data)-offset {
		return nil, fmt.Errorf("reading %d bytes at address %s: %w", size, address, arch.ErrOutOfRange)
	}
	return seg.Data[offset : offset+size], nil
}

// Byte returns the byte at the given address.
func (m *Image) Byte(address jumptarget.Address) (byte, error) {
	b, err := m.Read(address, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadWord reads a little endian 16 bit word.
func (m *Image) ReadWord(address jumptarget.Address) (uint16, error) {
	return ReadWord(m, address)
}

// ReadWord reads a little endian 16 bit word from any memory.
func ReadWord(mem arch.Memory, address jumptarget.Address) (uint16, error) {
	b, err := mem.Read(address, 2)
	if err != nil {
		return 0, err
	}
	return uint16(b[1])<<8 | uint16(b[0]), nil
}

func (m *Image) segment(address jumptarget.Address) (Segment, bool) {
	i, found := slices.BinarySearchFunc(m.segments, address, func(seg Segment, address jumptarget.Address) int {
		switch {
		case seg.End() <= address:
			return -1
		case seg.Base > address:
			return 1
		default:
			return 0
		}
	})
	if !found {
		return Segment{}, false
	}
	return m.segments[i], true
}
