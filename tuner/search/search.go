// Package search provides SearchStrategy implementations for the tuner:
// Bisection (bracketing search, the default) and Grid (evenly spaced sweep).
package search

import (
	"fmt"

	"github.com/lambda-tuner/lambda-tuner/tuner"
)

// New returns the strategy registered under name.
func New(name string, grid tuner.MemoryGrid, cfg tuner.Config) (tuner.SearchStrategy, error) {
	if grid.Len() == 0 {
		return nil, fmt.Errorf("empty memory grid %d..%d step %d", grid.Min, grid.Max, grid.Step)
	}
	switch name {
	case "", "bisection":
		return NewBisection(grid, cfg), nil
	case "grid":
		return NewGrid(grid, cfg), nil
	}
	return nil, fmt.Errorf("unknown search strategy %q", name)
}

// trail is the bookkeeping shared by strategies: measurements in record order
// and distinct grid indices in first-tested order.
type trail struct {
	grid         tuner.MemoryGrid
	cfg          tuner.Config
	measurements []tuner.Measurement
	tested       map[int]bool
	order        []tuner.MemorySize
	pending      int // grid index proposed and not yet recorded; -1 if none
	state        tuner.SearchState
}

func newTrail(grid tuner.MemoryGrid, cfg tuner.Config) trail {
	return trail{
		grid:    grid,
		cfg:     cfg,
		tested:  make(map[int]bool),
		pending: -1,
		state:   tuner.SearchState{Phase: tuner.PhaseInitializing},
	}
}

// add records m and returns its grid index and whether it answered the
// pending candidate.
func (t *trail) add(m tuner.Measurement) (int, bool) {
	t.measurements = append(t.measurements, m)
	idx := t.grid.Index(m.Memory)
	onGrid := t.grid.Contains(m.Memory)
	if onGrid && !t.tested[idx] {
		t.tested[idx] = true
		t.order = append(t.order, m.Memory)
	}
	answered := onGrid && idx == t.pending
	if answered {
		t.pending = -1
	}
	if !t.state.Phase.Terminal() {
		best, err := tuner.SelectBest(t.measurements, t.cfg)
		if err != nil {
			best = nil
		}
		t.state.Best = best
		t.state.Tested = append([]tuner.MemorySize(nil), t.order...)
	}
	return idx, answered
}

func (t *trail) budgetSpent() bool {
	return len(t.tested) >= t.cfg.MaxCandidates
}

func (t *trail) finish(phase tuner.Phase, reason string) {
	t.pending = -1
	t.state = tuner.Conclude(t.measurements, t.order, t.cfg, phase, reason)
}

func (t *trail) snapshot() tuner.SearchState {
	s := t.state
	s.Tested = append([]tuner.MemorySize(nil), t.state.Tested...)
	if s.Best != nil {
		best := *s.Best
		s.Best = &best
	}
	return s
}
