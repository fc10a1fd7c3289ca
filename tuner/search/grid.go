package search

import (
	"math"

	"github.com/lambda-tuner/lambda-tuner/tuner"
)

// Grid sweeps the memory grid in ascending order. When the grid has more
// points than the MaxCandidates budget, it samples that many evenly spaced
// points including both endpoints and ends Exhausted; otherwise every point is
// sampled and it ends Converged.
type Grid struct {
	trail
	queue    []int
	complete bool
}

// NewGrid returns a Grid over grid.
func NewGrid(grid tuner.MemoryGrid, cfg tuner.Config) *Grid {
	n := grid.Len()
	g := &Grid{trail: newTrail(grid, cfg)}
	k := cfg.MaxCandidates
	if k <= 0 || k >= n {
		g.complete = true
		for i := 0; i < n; i++ {
			g.queue = append(g.queue, i)
		}
		return g
	}
	if k == 1 {
		g.queue = []int{0}
		return g
	}
	last := -1
	for j := 0; j < k; j++ {
		i := int(math.Round(float64(j) * float64(n-1) / float64(k-1)))
		if i != last {
			g.queue = append(g.queue, i)
			last = i
		}
	}
	return g
}

// Name implements tuner.SearchStrategy.
func (g *Grid) Name() string { return "grid" }

// State implements tuner.SearchStrategy.
func (g *Grid) State() tuner.SearchState { return g.snapshot() }

// Next implements tuner.SearchStrategy.
func (g *Grid) Next() (tuner.MemorySize, bool) {
	if g.state.Phase.Terminal() {
		return 0, false
	}
	if g.pending >= 0 {
		return g.grid.At(g.pending), true
	}
	for len(g.queue) > 0 && !g.budgetSpent() {
		i := g.queue[0]
		g.queue = g.queue[1:]
		if g.tested[i] {
			continue
		}
		g.state.Phase = tuner.PhaseExploring
		g.pending = i
		return g.grid.At(i), true
	}
	if g.complete && len(g.tested) == g.grid.Len() {
		g.finish(tuner.PhaseConverged, "every memory size on the grid was sampled")
	} else {
		g.finish(tuner.PhaseExhausted, "candidate budget spent before covering the grid")
	}
	return 0, false
}

// Record implements tuner.SearchStrategy.
func (g *Grid) Record(m tuner.Measurement) {
	g.add(m)
}
