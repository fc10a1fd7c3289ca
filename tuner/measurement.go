package tuner

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/lambda-tuner/lambda-tuner/tuner/cost"
)

// DurationStats summarizes successful invocation durations in milliseconds.
type DurationStats struct {
	Mean   float64 `json:"mean_ms"`
	P50    float64 `json:"p50_ms"`
	P95    float64 `json:"p95_ms"`
	Min    float64 `json:"min_ms"`
	Max    float64 `json:"max_ms"`
	StdDev float64 `json:"stddev_ms"`
}

// CostEstimate prices a measurement at its mean billed duration.
type CostEstimate struct {
	PerInvocation float64 `json:"per_invocation"`
	PerMillion    float64 `json:"per_million"`
	Monthly       float64 `json:"monthly"` // at Config.InvocationsPerMonth
}

// Measurement aggregates the invocations of one function at one memory size.
// It is never modified once recorded; re-sampling a size appends a new one.
type Measurement struct {
	FunctionID           string             `json:"function_id"`
	Memory               MemorySize         `json:"memory_mb"`
	Sequence             int                `json:"sequence"`
	Count                int                `json:"count"`
	SuccessCount         int                `json:"success_count"`
	Duration             DurationStats      `json:"duration"`
	BilledDuration       float64            `json:"billed_duration_ms"` // mean over successes
	InitDuration         float64            `json:"init_duration_ms,omitempty"`
	MaxMemoryUsed        MemorySize         `json:"max_memory_used_mb,omitempty"`
	Cost                 CostEstimate       `json:"cost"`
	ExceedsCeiling       bool               `json:"exceeds_ceiling,omitempty"`
	ReconfigurationError string             `json:"reconfiguration_error,omitempty"`
	Failures             map[ErrorKind]int  `json:"failures,omitempty"`
	Results              []InvocationResult `json:"results,omitempty"`
}

// Usable reports whether the measurement carries at least one successful
// invocation. A size that is unusable must never be treated as cheap or fast.
func (m Measurement) Usable() bool {
	return m.ReconfigurationError == "" && m.SuccessCount > 0
}

// Eligible reports whether the measurement may be recommended.
func (m Measurement) Eligible() bool {
	return m.Usable() && !m.ExceedsCeiling
}

// FailureCount returns the number of failed invocations.
func (m Measurement) FailureCount() int {
	return m.Count - m.SuccessCount
}

// SuccessRate returns SuccessCount/Count, or 0 when nothing ran.
func (m Measurement) SuccessRate() float64 {
	if m.Count == 0 {
		return 0
	}
	return float64(m.SuccessCount) / float64(m.Count)
}

// NewMeasurement aggregates results into a Measurement, pricing it with model
// and flagging it against cfg's price ceiling. It is a pure function of its
// inputs.
func NewMeasurement(functionID string, memory MemorySize, results []InvocationResult, model *cost.Model, cfg Config) Measurement {
	m := Measurement{
		FunctionID: functionID,
		Memory:     memory,
		Count:      len(results),
		Results:    results,
	}

	durations := make([]float64, 0, len(results))
	var billedSum, costSum, initSum float64
	var inits int
	for _, r := range results {
		if !r.Success {
			if m.Failures == nil {
				m.Failures = make(map[ErrorKind]int)
			}
			m.Failures[r.ErrorKind]++
			continue
		}
		m.SuccessCount++
		durations = append(durations, r.Duration)
		billed := r.BilledDuration
		if billed <= 0 {
			billed = model.BilledDuration(r.Duration)
		}
		billedSum += billed
		costSum += model.EstimateCost(int(memory), billed)
		if r.InitDuration > 0 {
			initSum += r.InitDuration
			inits++
		}
		if r.MaxMemoryUsed > m.MaxMemoryUsed {
			m.MaxMemoryUsed = r.MaxMemoryUsed
		}
	}
	if len(durations) == 0 {
		return m
	}

	m.Duration = summarizeDurations(durations)
	m.BilledDuration = billedSum / float64(len(durations))
	if inits > 0 {
		m.InitDuration = initSum / float64(inits)
	}

	// Each invocation is billed on its own rounded duration; pricing the
	// mean would round it up a second time.
	perInvocation := costSum / float64(len(durations))
	m.Cost = CostEstimate{
		PerInvocation: perInvocation,
		PerMillion:    perInvocation * 1_000_000,
	}
	if cfg.InvocationsPerMonth > 0 {
		m.Cost.Monthly = perInvocation * float64(cfg.InvocationsPerMonth)
	}
	if cfg.MaxPrice != nil && m.Cost.Monthly > *cfg.MaxPrice {
		m.ExceedsCeiling = true
	}
	return m
}

// unusableMeasurement records a memory size that could not be configured.
func unusableMeasurement(functionID string, memory MemorySize, err error) Measurement {
	return Measurement{
		FunctionID:           functionID,
		Memory:               memory,
		ReconfigurationError: err.Error(),
	}
}

func summarizeDurations(durations []float64) DurationStats {
	sorted := make([]float64, len(durations))
	copy(sorted, durations)
	sort.Float64s(sorted)

	s := DurationStats{
		Mean: stat.Mean(sorted, nil),
		P50:  stat.Quantile(0.5, stat.LinInterp, sorted, nil),
		P95:  stat.Quantile(0.95, stat.LinInterp, sorted, nil),
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
	}
	if len(sorted) > 1 {
		s.StdDev = stat.StdDev(sorted, nil)
	}
	if math.IsNaN(s.StdDev) {
		s.StdDev = 0
	}
	return s
}
