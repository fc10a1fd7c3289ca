package search

import (
	"github.com/lambda-tuner/lambda-tuner/tuner"
)

// Bisection is a bracketing search over grid indices.
//
// It samples min, max and the midpoint first, then keeps a bracket (a, b, c)
// whose centre b is the best of its points. Each step probes the midpoint of
// the larger sub-interval that still has an untested interior index: a better
// probe becomes the new centre, a worse one the new bound on its side. This is
// ternary search for a unimodal cost curve; because the recommendation is
// taken from the global best of every measurement (tuner.SelectBest), a local
// dip on the curve cannot hide an earlier, better sample.
//
// The bracket shrinks on every probe, so the search converges within
// grid.Len() candidates even without the MaxCandidates budget.
type Bisection struct {
	trail
	queue     []int // initial candidates not yet proposed
	bracketed bool
	a, b, c   int
}

// NewBisection returns a Bisection over grid.
func NewBisection(grid tuner.MemoryGrid, cfg tuner.Config) *Bisection {
	n := grid.Len()
	s := &Bisection{trail: newTrail(grid, cfg)}
	seen := make(map[int]bool, 3)
	for _, i := range []int{0, n - 1, (n - 1) / 2} {
		if !seen[i] {
			seen[i] = true
			s.queue = append(s.queue, i)
		}
	}
	return s
}

// Name implements tuner.SearchStrategy.
func (s *Bisection) Name() string { return "bisection" }

// State implements tuner.SearchStrategy.
func (s *Bisection) State() tuner.SearchState { return s.snapshot() }

// Next implements tuner.SearchStrategy.
func (s *Bisection) Next() (tuner.MemorySize, bool) {
	if s.state.Phase.Terminal() {
		return 0, false
	}
	if s.pending >= 0 {
		return s.grid.At(s.pending), true
	}
	if s.budgetSpent() {
		s.finish(tuner.PhaseExhausted, "candidate budget spent before the interval converged")
		return 0, false
	}
	for len(s.queue) > 0 {
		i := s.queue[0]
		s.queue = s.queue[1:]
		if !s.tested[i] {
			s.pending = i
			return s.grid.At(i), true
		}
	}
	if !s.bracketed {
		s.initBracket()
	}
	x, ok := s.probe()
	if !ok {
		s.finish(tuner.PhaseConverged, "search interval narrower than one memory step")
		return 0, false
	}
	s.state.Phase = tuner.PhaseExploring
	s.pending = x
	return s.grid.At(x), true
}

// Record implements tuner.SearchStrategy.
func (s *Bisection) Record(m tuner.Measurement) {
	idx, answered := s.add(m)
	if answered && s.bracketed && !s.state.Phase.Terminal() {
		s.narrow(idx)
	}
}

// initBracket centres the bracket on the best tested point and bounds it by
// the nearest tested points on either side.
func (s *Bisection) initBracket() {
	s.bracketed = true
	ranker := tuner.NewRanker(s.measurements, s.cfg)
	tested := s.testedIndices()
	if len(tested) == 0 {
		return
	}
	best := tested[0]
	for _, i := range tested[1:] {
		if ranker.Better(s.grid.At(i), s.grid.At(best)) {
			best = i
		}
	}
	s.a, s.b, s.c = best, best, best
	for _, i := range tested {
		if i < best {
			s.a = i
		}
		if i > best && s.c == best {
			s.c = i
		}
	}
}

// testedIndices returns tested grid indices in ascending order.
func (s *Bisection) testedIndices() []int {
	out := make([]int, 0, len(s.tested))
	for i := 0; i < s.grid.Len(); i++ {
		if s.tested[i] {
			out = append(out, i)
		}
	}
	return out
}

// probe picks the next index: the untested interior point nearest the
// midpoint of the larger of (a,b) and (b,c). Ties favour the lower side.
func (s *Bisection) probe() (int, bool) {
	left, lok := s.interior(s.a, s.b)
	right, rok := s.interior(s.b, s.c)
	switch {
	case lok && rok:
		if s.b-s.a >= s.c-s.b {
			return left, true
		}
		return right, true
	case lok:
		return left, true
	case rok:
		return right, true
	}
	return 0, false
}

// interior returns the untested index strictly inside (lo, hi) closest to
// the midpoint.
func (s *Bisection) interior(lo, hi int) (int, bool) {
	if hi-lo < 2 {
		return 0, false
	}
	mid := (lo + hi) / 2
	for d := 0; mid-d > lo || mid+d < hi; d++ {
		if i := mid - d; i > lo && !s.tested[i] {
			return i, true
		}
		if i := mid + d; i < hi && !s.tested[i] {
			return i, true
		}
	}
	return 0, false
}

// narrow updates the bracket with the freshly recorded probe x.
func (s *Bisection) narrow(x int) {
	if x <= s.a || x >= s.c || x == s.b {
		return
	}
	ranker := tuner.NewRanker(s.measurements, s.cfg)
	if ranker.Better(s.grid.At(x), s.grid.At(s.b)) {
		if x < s.b {
			s.c, s.b = s.b, x
		} else {
			s.a, s.b = s.b, x
		}
		return
	}
	if x < s.b {
		s.a = x
	} else {
		s.c = x
	}
}
