// Package cost converts memory size and billed duration into dollar estimates
// using linear memory×duration pricing plus a flat per-request charge.
// It has no dependency on the tuner package so both the engine and the CLI
// can price measurements without an import cycle.
package cost

import (
	"fmt"
	"math"
)

const (
	// DefaultPricePerGBSecond is the public x86 price per GB-second.
	DefaultPricePerGBSecond = 0.0000166667
	// DefaultPricePerRequest is the public price per invocation request.
	DefaultPricePerRequest = 0.0000002
	// DefaultBillingIncrementMs is the duration billing granularity.
	DefaultBillingIncrementMs = 1.0
	// DefaultMemoryUnitMB is the granularity memory is billed at.
	DefaultMemoryUnitMB = 1
)

// Pricing groups the price constants of the billing model. Zero values are not
// substituted; use DefaultPricing and override individual fields.
type Pricing struct {
	PricePerGBSecond   float64 `json:"price_per_gb_second"`
	PricePerRequest    float64 `json:"price_per_request"`
	BillingIncrementMs float64 `json:"billing_increment_ms"`
	MemoryUnitMB       int     `json:"memory_unit_mb"`
}

// DefaultPricing returns the currently published on-demand prices.
func DefaultPricing() Pricing {
	return Pricing{
		PricePerGBSecond:   DefaultPricePerGBSecond,
		PricePerRequest:    DefaultPricePerRequest,
		BillingIncrementMs: DefaultBillingIncrementMs,
		MemoryUnitMB:       DefaultMemoryUnitMB,
	}
}

// Validate checks that all prices are finite and non-negative and that the
// rounding granularities are positive.
func (p Pricing) Validate() error {
	if math.IsNaN(p.PricePerGBSecond) || math.IsInf(p.PricePerGBSecond, 0) || p.PricePerGBSecond < 0 {
		return fmt.Errorf("price_per_gb_second must be a finite non-negative number, got %v", p.PricePerGBSecond)
	}
	if math.IsNaN(p.PricePerRequest) || math.IsInf(p.PricePerRequest, 0) || p.PricePerRequest < 0 {
		return fmt.Errorf("price_per_request must be a finite non-negative number, got %v", p.PricePerRequest)
	}
	if math.IsNaN(p.BillingIncrementMs) || math.IsInf(p.BillingIncrementMs, 0) || p.BillingIncrementMs <= 0 {
		return fmt.Errorf("billing_increment_ms must be > 0, got %v", p.BillingIncrementMs)
	}
	if p.MemoryUnitMB <= 0 {
		return fmt.Errorf("memory_unit_mb must be > 0, got %d", p.MemoryUnitMB)
	}
	return nil
}

// Model prices invocations. It is immutable and safe for concurrent use.
type Model struct {
	pricing Pricing
}

// NewModel returns a Model for the given pricing, or an error if the pricing
// is invalid.
func NewModel(p Pricing) (*Model, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("cost model: %w", err)
	}
	return &Model{pricing: p}, nil
}

// Pricing returns the price constants the model was built with.
func (m *Model) Pricing() Pricing {
	return m.pricing
}

// BilledDuration rounds a measured duration up to the billing increment.
// Negative durations bill as zero.
func (m *Model) BilledDuration(durationMs float64) float64 {
	if durationMs <= 0 {
		return 0
	}
	inc := m.pricing.BillingIncrementMs
	return math.Ceil(durationMs/inc) * inc
}

// billedGB rounds memory up to the memory billing unit and converts to GB.
func (m *Model) billedGB(memoryMB int) float64 {
	if memoryMB <= 0 {
		return 0
	}
	unit := m.pricing.MemoryUnitMB
	rounded := ((memoryMB + unit - 1) / unit) * unit
	return float64(rounded) / 1024.0
}

// EstimateCost returns the dollar cost of one invocation at memoryMB that was
// billed for billedDurationMs. The duration is rounded up to the billing
// increment, so callers may pass either a raw or an already-billed duration.
func (m *Model) EstimateCost(memoryMB int, billedDurationMs float64) float64 {
	seconds := m.BilledDuration(billedDurationMs) / 1000.0
	return m.billedGB(memoryMB)*seconds*m.pricing.PricePerGBSecond + m.pricing.PricePerRequest
}

// EstimateMonthlyCost returns the cost of invocationsPerMonth invocations.
func (m *Model) EstimateMonthlyCost(memoryMB int, billedDurationMs float64, invocationsPerMonth int64) float64 {
	if invocationsPerMonth <= 0 {
		return 0
	}
	return m.EstimateCost(memoryMB, billedDurationMs) * float64(invocationsPerMonth)
}
