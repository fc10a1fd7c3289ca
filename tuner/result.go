package tuner

import "time"

// TuningResult is the outcome of one session. It is built by the session and
// not modified after Run returns.
//
// Phase is terminal for a session that ran to completion. A cancelled session
// keeps the phase its search had reached (initializing or exploring); the
// interruption is carried by Reason, which then starts with "interrupted: ",
// and Recommended holds the best-so-far.
type TuningResult struct {
	SessionID      string        `json:"session_id"`
	FunctionID     string        `json:"function_id"`
	OriginalMemory MemorySize    `json:"original_memory_mb"`
	Objective      Objective     `json:"objective"`
	Strategy       string        `json:"strategy"`
	Phase          Phase         `json:"phase"`
	Reason         string        `json:"reason,omitempty"`
	Recommended    *Measurement  `json:"recommended,omitempty"`
	Measurements   []Measurement `json:"measurements"`
	Restored       bool          `json:"restored"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`
}

// Baseline returns the latest measurement taken at the function's original
// memory size, if that size was sampled.
func (r *TuningResult) Baseline() *Measurement {
	for i := len(r.Measurements) - 1; i >= 0; i-- {
		if r.Measurements[i].Memory == r.OriginalMemory {
			m := r.Measurements[i]
			return &m
		}
	}
	return nil
}

// InvocationCount returns the number of invocations issued by the session.
func (r *TuningResult) InvocationCount() int {
	n := 0
	for _, m := range r.Measurements {
		n += m.Count
	}
	return n
}
