package tuner

import "errors"

// Phase is the state of a search. Initializing → Exploring → one of the
// terminal phases Converged, Exhausted or Failed.
type Phase string

const (
	PhaseInitializing Phase = "initializing" // no samples yet / sampling the initial candidates
	PhaseExploring    Phase = "exploring"    // narrowing the search interval
	PhaseConverged    Phase = "converged"    // interval narrower than one step
	PhaseExhausted    Phase = "exhausted"    // candidate budget spent; best-so-far reported
	PhaseFailed       Phase = "failed"       // no eligible memory size
)

// Terminal reports whether no further candidates will be proposed.
func (p Phase) Terminal() bool {
	return p == PhaseConverged || p == PhaseExhausted || p == PhaseFailed
}

// SearchState is a snapshot of a strategy's progress.
type SearchState struct {
	Phase  Phase        `json:"phase"`
	Tested []MemorySize `json:"tested"`         // distinct sizes in the order they were first recorded
	Best   *Measurement `json:"best,omitempty"` // current best eligible measurement
	Reason string       `json:"reason,omitempty"`
}

// Done reports whether the search reached a terminal phase.
func (s SearchState) Done() bool {
	return s.Phase.Terminal()
}

// SearchStrategy decides which memory size to sample next and when to stop.
// A strategy instance belongs to exactly one session and is not safe for
// concurrent use.
type SearchStrategy interface {
	// Name returns the registered strategy name.
	Name() string
	// Next returns the next candidate, or false when the search is done.
	// Calling Next again before Record returns the same candidate.
	Next() (MemorySize, bool)
	// Record feeds a measurement back into the search.
	Record(m Measurement)
	// State returns a snapshot of the search.
	State() SearchState
}

// NewSearchStrategyFunc constructs a strategy by name. It is set by
// tuner/search's init() to break the import cycle between the interface owner
// and its implementations.
var NewSearchStrategyFunc func(name string, grid MemoryGrid, cfg Config) (SearchStrategy, error)

// NewSearchStrategy builds the strategy named by cfg.Strategy over cfg's grid.
func NewSearchStrategy(cfg Config) (SearchStrategy, error) {
	if NewSearchStrategyFunc == nil {
		return nil, errors.New("no search strategies registered: import github.com/lambda-tuner/lambda-tuner/tuner/search")
	}
	return NewSearchStrategyFunc(cfg.Strategy, NewMemoryGrid(cfg), cfg)
}

// Conclude builds the terminal state of a search from its measurements. If
// nothing is eligible the phase becomes PhaseFailed with the selection error
// as reason.
func Conclude(ms []Measurement, tested []MemorySize, cfg Config, phase Phase, reason string) SearchState {
	order := make([]MemorySize, len(tested))
	copy(order, tested)
	best, err := SelectBest(ms, cfg)
	if err != nil {
		return SearchState{Phase: PhaseFailed, Tested: order, Reason: err.Error()}
	}
	return SearchState{Phase: phase, Tested: order, Best: best, Reason: reason}
}

// Replay drives s through a recorded trail, asking for a candidate before each
// measurement the way a session does, and returns the final state.
func Replay(s SearchStrategy, ms []Measurement) SearchState {
	for _, m := range ms {
		s.Next()
		s.Record(m)
	}
	s.Next()
	return s.State()
}
