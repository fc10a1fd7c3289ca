package tuner

import "fmt"

// MemorySize is a function memory configuration in megabytes.
type MemorySize int

const (
	// MinProviderMemory is the smallest memory size the provider accepts.
	MinProviderMemory MemorySize = 128
	// MaxProviderMemory is the largest memory size the provider accepts.
	MaxProviderMemory MemorySize = 10240
	// LegacyMemoryStep is the historical fixed memory increment.
	LegacyMemoryStep MemorySize = 64
)

// String renders the size as "512MB".
func (m MemorySize) String() string {
	return fmt.Sprintf("%dMB", int(m))
}

// MemoryGrid is the ordered set of valid memory sizes min, min+step, ..., max.
// Search strategies work on grid indices so every candidate is on the grid.
type MemoryGrid struct {
	Min  MemorySize
	Max  MemorySize
	Step MemorySize
}

// NewMemoryGrid builds the grid for a validated Config.
func NewMemoryGrid(cfg Config) MemoryGrid {
	return MemoryGrid{Min: cfg.MinMemory, Max: cfg.MaxMemory, Step: cfg.MemoryStep}
}

// Len returns the number of valid sizes.
func (g MemoryGrid) Len() int {
	if g.Step <= 0 || g.Max < g.Min {
		return 0
	}
	return int((g.Max-g.Min)/g.Step) + 1
}

// At returns the size at index i. Indices are clamped to the grid.
func (g MemoryGrid) At(i int) MemorySize {
	if i < 0 {
		i = 0
	}
	if n := g.Len(); i >= n {
		i = n - 1
	}
	return g.Min + MemorySize(i)*g.Step
}

// Index returns the index of the grid point nearest to m (ties round down).
func (g MemoryGrid) Index(m MemorySize) int {
	if m <= g.Min {
		return 0
	}
	if m >= g.Max {
		return g.Len() - 1
	}
	off := m - g.Min
	i := int(off / g.Step)
	if off%g.Step*2 > g.Step {
		i++
	}
	return i
}

// Snap returns the grid point nearest to m.
func (g MemoryGrid) Snap(m MemorySize) MemorySize {
	return g.At(g.Index(m))
}

// Contains reports whether m is exactly on the grid.
func (g MemoryGrid) Contains(m MemorySize) bool {
	return m >= g.Min && m <= g.Max && (m-g.Min)%g.Step == 0
}
