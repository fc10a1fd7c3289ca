package tuner

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lambda-tuner/lambda-tuner/tuner/cost"
)

func testModel(t *testing.T, cfg Config) *cost.Model {
	t.Helper()
	m, err := cost.NewModel(cfg.Pricing)
	require.NoError(t, err)
	return m
}

func successes(durations ...float64) []InvocationResult {
	out := make([]InvocationResult, 0, len(durations))
	for _, d := range durations {
		out = append(out, InvocationResult{Duration: d, BilledDuration: math.Ceil(d), Success: true})
	}
	return out
}

// measure builds a Measurement of successful invocations at mem.
func measure(t *testing.T, cfg Config, mem MemorySize, durations ...float64) Measurement {
	t.Helper()
	return NewMeasurement("fn", mem, successes(durations...), testModel(t, cfg), cfg)
}

func TestNewMeasurement_DurationStats(t *testing.T) {
	cfg := DefaultConfig()
	m := measure(t, cfg, 512, 500, 100, 300, 200, 400)

	assert.Equal(t, 5, m.Count)
	assert.Equal(t, 5, m.SuccessCount)
	assert.InDelta(t, 300, m.Duration.Mean, 1e-9)
	assert.Equal(t, 100.0, m.Duration.Min)
	assert.Equal(t, 500.0, m.Duration.Max)
	assert.Greater(t, m.Duration.StdDev, 0.0)
	assert.LessOrEqual(t, m.Duration.Min, m.Duration.P50)
	assert.LessOrEqual(t, m.Duration.P50, m.Duration.P95)
	assert.LessOrEqual(t, m.Duration.P95, m.Duration.Max)
	assert.True(t, m.Usable())
	assert.True(t, m.Eligible())
}

func TestNewMeasurement_PricesEachInvocation(t *testing.T) {
	cfg := DefaultConfig()
	model := testModel(t, cfg)

	// GIVEN results without billed duration
	results := []InvocationResult{
		{Duration: 99.2, Success: true},
		{Duration: 100.4, Success: true},
	}
	m := NewMeasurement("fn", 1024, results, model, cfg)

	// THEN billed duration falls back to the model's rounding: (100 + 101) / 2
	assert.InDelta(t, 100.5, m.BilledDuration, 1e-9)
	want := (model.EstimateCost(1024, 100) + model.EstimateCost(1024, 101)) / 2
	assert.InDelta(t, want, m.Cost.PerInvocation, 1e-15)
	assert.InDelta(t, m.Cost.PerInvocation*1e6, m.Cost.PerMillion, 1e-12)
	assert.InDelta(t, want*float64(cfg.InvocationsPerMonth), m.Cost.Monthly, 1e-9)
}

func TestNewMeasurement_CoarseBillingIncrementIsNotRoundedTwice(t *testing.T) {
	// GIVEN a 100ms billing increment and invocations billed 100ms and 200ms
	cfg := DefaultConfig()
	cfg.Pricing.BillingIncrementMs = 100
	model := testModel(t, cfg)
	results := []InvocationResult{
		{Duration: 95, BilledDuration: 100, Success: true},
		{Duration: 180, BilledDuration: 200, Success: true},
	}

	// WHEN they are aggregated
	m := NewMeasurement("fn", 1024, results, model, cfg)

	// THEN the cost is the mean of the two invocation costs, i.e. a 150ms price
	assert.InDelta(t, 150, m.BilledDuration, 1e-9)
	want := 1.0*0.15*cost.DefaultPricePerGBSecond + cost.DefaultPricePerRequest
	assert.InDelta(t, want, m.Cost.PerInvocation, 1e-15)
	assert.Less(t, m.Cost.PerInvocation, model.EstimateCost(1024, 200))
	assert.InDelta(t, want*float64(cfg.InvocationsPerMonth), m.Cost.Monthly, 1e-9)
}

func TestNewMeasurement_FailuresAreDataPoints(t *testing.T) {
	cfg := DefaultConfig()
	results := append(successes(200, 300),
		InvocationResult{Success: false, ErrorKind: ErrorKindFunction, Error: "boom"},
		InvocationResult{Success: false, ErrorKind: ErrorKindTimeout, Error: "timeout"},
		InvocationResult{Success: false, ErrorKind: ErrorKindFunction, Error: "boom"},
	)
	m := NewMeasurement("fn", 256, results, testModel(t, cfg), cfg)

	assert.Equal(t, 5, m.Count)
	assert.Equal(t, 2, m.SuccessCount)
	assert.Equal(t, 3, m.FailureCount())
	assert.InDelta(t, 0.4, m.SuccessRate(), 1e-9)
	assert.Equal(t, map[ErrorKind]int{ErrorKindFunction: 2, ErrorKindTimeout: 1}, m.Failures)
	// Failed invocations never pull the mean down.
	assert.InDelta(t, 250, m.Duration.Mean, 1e-9)
	assert.Len(t, m.Results, 5)
}

func TestNewMeasurement_AllFailedIsUnusable(t *testing.T) {
	cfg := DefaultConfig()
	results := []InvocationResult{
		{Success: false, ErrorKind: ErrorKindFunction},
		{Success: false, ErrorKind: ErrorKindFunction},
	}
	m := NewMeasurement("fn", 128, results, testModel(t, cfg), cfg)

	assert.False(t, m.Usable())
	assert.False(t, m.Eligible())
	assert.Zero(t, m.Cost.PerInvocation)
}

func TestNewMeasurement_FlagsCeiling(t *testing.T) {
	cfg := DefaultConfig()
	ceiling := 5.0
	cfg.MaxPrice = &ceiling

	// 1024MB for 1s costs ~$16.87 per million invocations
	over := measure(t, cfg, 1024, 1000)
	// 128MB for 100ms costs ~$0.41 per million invocations
	under := measure(t, cfg, 128, 100)

	assert.True(t, over.ExceedsCeiling)
	assert.True(t, over.Usable())
	assert.False(t, over.Eligible())
	assert.False(t, under.ExceedsCeiling)
	assert.True(t, under.Eligible())
}

func TestNewMeasurement_IsPure(t *testing.T) {
	cfg := DefaultConfig()
	a := measure(t, cfg, 512, 120, 130, 125)
	b := measure(t, cfg, 512, 120, 130, 125)
	assert.Equal(t, a, b)
}

func TestUnusableMeasurement_CarriesReconfigurationError(t *testing.T) {
	err := &ReconfigurationError{FunctionID: "fn", Memory: 2048, Err: assert.AnError}
	m := unusableMeasurement("fn", 2048, err)
	assert.False(t, m.Usable())
	assert.Contains(t, m.ReconfigurationError, "reconfigure fn to 2048MB")
	assert.Zero(t, m.Count)
}
