package tuner

import (
	"fmt"
	"math"
	"time"

	"github.com/lambda-tuner/lambda-tuner/tuner/cost"
)

// Objective is the scalar goal the search optimizes toward.
type Objective string

const (
	// ObjectiveCost minimizes cost per invocation.
	ObjectiveCost Objective = "cost"
	// ObjectiveSpeed minimizes mean execution duration.
	ObjectiveSpeed Objective = "speed"
	// ObjectiveBalanced minimizes a weighted sum of min-max normalized cost
	// and duration (see Config.CostWeight).
	ObjectiveBalanced Objective = "balanced"
)

// ValidObjectives is the set of recognized objective names.
var ValidObjectives = map[Objective]bool{ObjectiveCost: true, ObjectiveSpeed: true, ObjectiveBalanced: true}

// ValidStrategies is the set of recognized search strategy names.
// Shared by Validate() and the tuner/search factory.
var ValidStrategies = map[string]bool{"bisection": true, "grid": true}

// Defaults applied by DefaultConfig.
const (
	DefaultSampleCount             = 5
	DefaultConcurrency             = 3
	DefaultMaxCandidates           = 10
	DefaultTolerance               = 0.02
	DefaultCostWeight              = 0.5
	DefaultInvocationsPerMonth     = 1_000_000
	DefaultThrottleRetries         = 4
	DefaultStrategy                = "bisection"
	DefaultUpdateTimeout           = 2 * time.Minute
	DefaultInvocationTimeoutMargin = 5 * time.Second
)

// Config is the validated configuration of a tuning run. It is shared
// read-only by every session in a batch.
type Config struct {
	MinMemory  MemorySize // lowest memory size to test (MB)
	MaxMemory  MemorySize // highest memory size to test (MB)
	MemoryStep MemorySize // grid granularity; 1 = continuous model

	// MaxPrice is the optional ceiling in dollars for InvocationsPerMonth
	// invocations. Nil means no ceiling.
	MaxPrice            *float64
	InvocationsPerMonth int64

	Objective     Objective
	Strategy      string
	SampleCount   int     // invocations per candidate
	Concurrency   int     // max sessions running in parallel
	MaxCandidates int     // max distinct memory sizes per session
	Tolerance     float64 // relative difference treated as a tie; balanced compares raw cost and mean duration
	CostWeight    float64 // weight of normalized cost in the balanced objective

	ThrottleRetries         int
	RequestsPerSecond       float64 // shared provider call rate; 0 = unlimited
	UpdateTimeout           time.Duration
	InvocationTimeoutMargin time.Duration

	Pricing cost.Pricing
}

// DefaultConfig returns the configuration used when nothing is overridden:
// 128-1024 MB in 64 MB steps, cost objective, bisection search.
func DefaultConfig() Config {
	return Config{
		MinMemory:               MinProviderMemory,
		MaxMemory:               1024,
		MemoryStep:              LegacyMemoryStep,
		InvocationsPerMonth:     DefaultInvocationsPerMonth,
		Objective:               ObjectiveCost,
		Strategy:                DefaultStrategy,
		SampleCount:             DefaultSampleCount,
		Concurrency:             DefaultConcurrency,
		MaxCandidates:           DefaultMaxCandidates,
		Tolerance:               DefaultTolerance,
		CostWeight:              DefaultCostWeight,
		ThrottleRetries:         DefaultThrottleRetries,
		UpdateTimeout:           DefaultUpdateTimeout,
		InvocationTimeoutMargin: DefaultInvocationTimeoutMargin,
		Pricing:                 cost.DefaultPricing(),
	}
}

func configErr(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks every field once, before any sampling. It also rejects a
// price ceiling that no invocation could satisfy: one billing increment at
// the minimum memory size.
func (c Config) Validate() error {
	if c.MemoryStep <= 0 {
		return configErr("memory_step", "must be > 0, got %d", c.MemoryStep)
	}
	if c.MinMemory < MinProviderMemory || c.MinMemory > MaxProviderMemory {
		return configErr("min_memory", "must be within %d..%d MB, got %d", MinProviderMemory, MaxProviderMemory, c.MinMemory)
	}
	if c.MaxMemory < MinProviderMemory || c.MaxMemory > MaxProviderMemory {
		return configErr("max_memory", "must be within %d..%d MB, got %d", MinProviderMemory, MaxProviderMemory, c.MaxMemory)
	}
	if c.MinMemory > c.MaxMemory {
		return configErr("min_memory", "must be <= max_memory (%d > %d)", c.MinMemory, c.MaxMemory)
	}
	if c.MinMemory%c.MemoryStep != 0 || c.MaxMemory%c.MemoryStep != 0 {
		return configErr("memory_step", "min_memory %d and max_memory %d must be multiples of %d", c.MinMemory, c.MaxMemory, c.MemoryStep)
	}
	if !ValidObjectives[c.Objective] {
		return configErr("objective", "unknown objective %q", c.Objective)
	}
	if !ValidStrategies[c.Strategy] {
		return configErr("strategy", "unknown strategy %q", c.Strategy)
	}
	if c.SampleCount < 1 {
		return configErr("sample_count", "must be >= 1, got %d", c.SampleCount)
	}
	if c.Concurrency < 1 {
		return configErr("concurrency", "must be >= 1, got %d", c.Concurrency)
	}
	if c.MaxCandidates < 1 {
		return configErr("max_candidates", "must be >= 1, got %d", c.MaxCandidates)
	}
	if math.IsNaN(c.Tolerance) || c.Tolerance < 0 || c.Tolerance >= 1 {
		return configErr("tolerance", "must be within [0, 1), got %v", c.Tolerance)
	}
	if math.IsNaN(c.CostWeight) || c.CostWeight < 0 || c.CostWeight > 1 {
		return configErr("cost_weight", "must be within [0, 1], got %v", c.CostWeight)
	}
	if c.ThrottleRetries < 0 {
		return configErr("throttle_retries", "must be non-negative, got %d", c.ThrottleRetries)
	}
	if math.IsNaN(c.RequestsPerSecond) || c.RequestsPerSecond < 0 {
		return configErr("requests_per_second", "must be non-negative, got %v", c.RequestsPerSecond)
	}
	if c.UpdateTimeout <= 0 {
		return configErr("update_timeout", "must be > 0, got %v", c.UpdateTimeout)
	}
	if c.InvocationTimeoutMargin < 0 {
		return configErr("invocation_timeout_margin", "must be non-negative, got %v", c.InvocationTimeoutMargin)
	}
	model, err := cost.NewModel(c.Pricing)
	if err != nil {
		return &ConfigurationError{Field: "pricing", Reason: "invalid pricing", Err: err}
	}
	if c.MaxPrice != nil {
		if c.InvocationsPerMonth <= 0 {
			return configErr("invocations_per_month", "must be > 0 when max_price is set, got %d", c.InvocationsPerMonth)
		}
		if math.IsNaN(*c.MaxPrice) || *c.MaxPrice < 0 {
			return configErr("max_price", "must be non-negative, got %v", *c.MaxPrice)
		}
		floor := model.EstimateMonthlyCost(int(c.MinMemory), c.Pricing.BillingIncrementMs, c.InvocationsPerMonth)
		if *c.MaxPrice < floor {
			return configErr("max_price", "ceiling $%.4f is unreachable: the cheapest possible invocation volume costs $%.4f", *c.MaxPrice, floor)
		}
	}
	return nil
}
