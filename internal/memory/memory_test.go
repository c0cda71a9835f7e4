package memory

import (
	"errors"
	"testing"

	"github.com/retroenv/retrodecode/internal/arch"
	"github.com/retroenv/retrodecode/internal/jumptarget"
	"github.com/retroenv/retrogolib/assert"
)

func TestImage_Read(t *testing.T) {
	img := New()
	assert.NoError(t, img.Map(0xc000, []byte{0x01, 0x02, 0x03, 0x04}))
	assert.NoError(t, img.Map(0x8000, []byte{0xaa, 0xbb}))

	tests := []struct {
		name     string
		address  jumptarget.Address
		size     int
		expected []byte
		err      bool
	}{
		{"first segment", 0x8000, 2, []byte{0xaa, 0xbb}, false},
		{"second segment offset", 0xc001, 3, []byte{0x02, 0x03, 0x04}, false},
		{"read past segment end", 0xc002, 3, nil, true},
		{"unmapped gap", 0x9000, 1, nil, true},
		{"below all segments", 0x10, 1, nil, true},
		{"after last segment", 0xc004, 1, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := img.Read(tt.address, tt.size)
			if tt.err {
				assert.True(t, errors.Is(err, arch.ErrOutOfRange))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, data)
		})
	}
}

func TestImage_Map(t *testing.T) {
	img := New()
	assert.NoError(t, img.Map(0x1000, make([]byte, 0x100)))
	assert.NoError(t, img.Map(0x1100, make([]byte, 0x10)))
	assert.Error(t, img.Map(0x10ff, []byte{0}))
	assert.Error(t, img.Map(jumptarget.Undefined, []byte{0, 1}))
	assert.NoError(t, img.Map(0x5000, nil))

	segments := img.Segments()
	assert.Len(t, segments, 2)
	assert.Equal(t, jumptarget.Address(0x1000), segments[0].Base)
	assert.Equal(t, jumptarget.Address(0x1110), segments[1].End())
	assert.Equal(t, 0x110, img.Size())

	assert.True(t, img.Contains(0x110f))
	assert.False(t, img.Contains(0x1110))
}

func TestImage_ReadWord(t *testing.T) {
	img := New()
	assert.NoError(t, img.Map(0xfffa, []byte{0x00, 0x80, 0x34, 0x12}))

	w, err := img.ReadWord(0xfffc)
	assert.NoError(t, err)
	assert.Equal(t, uint16(0x1234), w)

	b, err := img.Byte(0xfffb)
	assert.NoError(t, err)
	assert.Equal(t, byte(0x80), b)

	_, err = img.ReadWord(0xfffd)
	assert.Error(t, err)
}
