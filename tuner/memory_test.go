package tuner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoryGrid_LenAndAt(t *testing.T) {
	g := MemoryGrid{Min: 128, Max: 1024, Step: 64}
	assert.Equal(t, 15, g.Len())
	assert.Equal(t, MemorySize(128), g.At(0))
	assert.Equal(t, MemorySize(1024), g.At(14))
	assert.Equal(t, MemorySize(576), g.At(7))
	// Out of range indices clamp to the ends.
	assert.Equal(t, MemorySize(128), g.At(-3))
	assert.Equal(t, MemorySize(1024), g.At(99))
}

func TestMemoryGrid_SinglePoint(t *testing.T) {
	g := MemoryGrid{Min: 512, Max: 512, Step: 64}
	assert.Equal(t, 1, g.Len())
	assert.Equal(t, MemorySize(512), g.At(0))
	assert.Equal(t, 0, g.Index(4096))
}

func TestMemoryGrid_IndexSnapsToNearest(t *testing.T) {
	g := MemoryGrid{Min: 128, Max: 1024, Step: 64}
	tests := []struct {
		in   MemorySize
		want MemorySize
	}{
		{in: 100, want: 128},
		{in: 128, want: 128},
		{in: 150, want: 128},
		{in: 160, want: 128}, // exact midpoint rounds down
		{in: 161, want: 192},
		{in: 1000, want: 1024},
		{in: 4096, want: 1024},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, g.Snap(tc.in), "snap(%d)", tc.in)
	}
}

func TestMemoryGrid_Contains(t *testing.T) {
	g := MemoryGrid{Min: 128, Max: 1024, Step: 64}
	assert.True(t, g.Contains(128))
	assert.True(t, g.Contains(512))
	assert.True(t, g.Contains(1024))
	assert.False(t, g.Contains(130))
	assert.False(t, g.Contains(64))
	assert.False(t, g.Contains(1088))
}

func TestMemoryGrid_EmptyWhenInverted(t *testing.T) {
	assert.Equal(t, 0, MemoryGrid{Min: 1024, Max: 128, Step: 64}.Len())
	assert.Equal(t, 0, MemoryGrid{Min: 128, Max: 1024, Step: 0}.Len())
}

func TestMemorySize_String(t *testing.T) {
	assert.Equal(t, "512MB", MemorySize(512).String())
}
