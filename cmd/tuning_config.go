package cmd

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lambda-tuner/lambda-tuner/tuner"
	"github.com/lambda-tuner/lambda-tuner/tuner/cost"
)

// TuningFile is the optional YAML configuration passed with --config. Absent
// fields keep their defaults; flags given on the command line override it.
// All fields must be listed to satisfy KnownFields(true) strict parsing.
type TuningFile struct {
	MinMemory               *int              `yaml:"min_memory"`
	MaxMemory               *int              `yaml:"max_memory"`
	MemoryStep              *int              `yaml:"memory_step"`
	MaxPrice                *float64          `yaml:"max_price"`
	InvocationsPerMonth     *int64            `yaml:"invocations_per_month"`
	Objective               *string           `yaml:"objective"`
	Strategy                *string           `yaml:"strategy"`
	SampleCount             *int              `yaml:"sample_count"`
	Concurrency             *int              `yaml:"concurrency"`
	MaxCandidates           *int              `yaml:"max_candidates"`
	Tolerance               *float64          `yaml:"tolerance"`
	CostWeight              *float64          `yaml:"cost_weight"`
	ThrottleRetries         *int              `yaml:"throttle_retries"`
	RequestsPerSecond       *float64          `yaml:"requests_per_second"`
	UpdateTimeout           *time.Duration    `yaml:"update_timeout"`
	InvocationTimeoutMargin *time.Duration    `yaml:"invocation_timeout_margin"`
	Pricing                 PricingFile       `yaml:"pricing"`
	Events                  map[string]string `yaml:"events"` // function name (or "*") -> JSON payload file
}

// PricingFile overrides individual price constants of cost.DefaultPricing.
type PricingFile struct {
	PricePerGBSecond   *float64 `yaml:"price_per_gb_second"`
	PricePerRequest    *float64 `yaml:"price_per_request"`
	BillingIncrementMs *float64 `yaml:"billing_increment_ms"`
	MemoryUnitMB       *int     `yaml:"memory_unit_mb"`
}

func (p PricingFile) apply(pricing *cost.Pricing) {
	if p.PricePerGBSecond != nil {
		pricing.PricePerGBSecond = *p.PricePerGBSecond
	}
	if p.PricePerRequest != nil {
		pricing.PricePerRequest = *p.PricePerRequest
	}
	if p.BillingIncrementMs != nil {
		pricing.BillingIncrementMs = *p.BillingIncrementMs
	}
	if p.MemoryUnitMB != nil {
		pricing.MemoryUnitMB = *p.MemoryUnitMB
	}
}

// loadTuningFile parses path with strict field checking: typos are errors.
func loadTuningFile(path string) (TuningFile, error) {
	var f TuningFile
	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("read config file: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return f, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return f, nil
}

// apply overlays the fields present in f onto cfg.
func (f TuningFile) apply(cfg *tuner.Config) {
	if f.MinMemory != nil {
		cfg.MinMemory = tuner.MemorySize(*f.MinMemory)
	}
	if f.MaxMemory != nil {
		cfg.MaxMemory = tuner.MemorySize(*f.MaxMemory)
	}
	if f.MemoryStep != nil {
		cfg.MemoryStep = tuner.MemorySize(*f.MemoryStep)
	}
	if f.MaxPrice != nil {
		v := *f.MaxPrice
		cfg.MaxPrice = &v
	}
	if f.InvocationsPerMonth != nil {
		cfg.InvocationsPerMonth = *f.InvocationsPerMonth
	}
	if f.Objective != nil {
		cfg.Objective = tuner.Objective(*f.Objective)
	}
	if f.Strategy != nil {
		cfg.Strategy = *f.Strategy
	}
	if f.SampleCount != nil {
		cfg.SampleCount = *f.SampleCount
	}
	if f.Concurrency != nil {
		cfg.Concurrency = *f.Concurrency
	}
	if f.MaxCandidates != nil {
		cfg.MaxCandidates = *f.MaxCandidates
	}
	if f.Tolerance != nil {
		cfg.Tolerance = *f.Tolerance
	}
	if f.CostWeight != nil {
		cfg.CostWeight = *f.CostWeight
	}
	if f.ThrottleRetries != nil {
		cfg.ThrottleRetries = *f.ThrottleRetries
	}
	if f.RequestsPerSecond != nil {
		cfg.RequestsPerSecond = *f.RequestsPerSecond
	}
	if f.UpdateTimeout != nil {
		cfg.UpdateTimeout = *f.UpdateTimeout
	}
	if f.InvocationTimeoutMargin != nil {
		cfg.InvocationTimeoutMargin = *f.InvocationTimeoutMargin
	}
	f.Pricing.apply(&cfg.Pricing)
}
