package tuner

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/lambda-tuner/lambda-tuner/tuner/cost"
)

// Outcome is the per-function result of a batch. Result may be set even when
// Err is non-nil (failed search, cancellation, restore failure).
type Outcome struct {
	Result *TuningResult
	Err    error
}

// Coordinator runs one Session per target with bounded concurrency. A failing
// session never cancels the others.
type Coordinator struct {
	cfg      Config
	invoker  *Invoker
	model    *cost.Model
	observer Observer
}

// NewCoordinator validates cfg and wires the shared Invoker and cost model.
// An invalid configuration is reported as *ConfigurationError before any
// provider call is made.
func NewCoordinator(cfg Config, client FunctionClient, observer Observer, opts ...InvokerOption) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	model, err := cost.NewModel(cfg.Pricing)
	if err != nil {
		return nil, &ConfigurationError{Field: "pricing", Reason: "invalid pricing", Err: err}
	}
	if observer == nil {
		observer = NopObserver{}
	}
	return &Coordinator{
		cfg:      cfg,
		invoker:  NewInvoker(client, cfg, opts...),
		model:    model,
		observer: observer,
	}, nil
}

// Config returns the validated configuration.
func (c *Coordinator) Config() Config { return c.cfg }

// CostModel returns the cost model used to price measurements.
func (c *Coordinator) CostModel() *cost.Model { return c.model }

// Run tunes every target and returns one Outcome per function ID. The error
// is non-nil only when the batch itself is invalid (empty or duplicate
// function IDs), in which case nothing is invoked.
func (c *Coordinator) Run(ctx context.Context, targets []Target) (map[string]Outcome, error) {
	seen := make(map[string]bool, len(targets))
	for _, t := range targets {
		id := t.Function.ID
		if id == "" {
			return nil, &ConfigurationError{Field: "functions", Reason: "empty function identifier"}
		}
		if seen[id] {
			return nil, &ConfigurationError{Field: "functions", Reason: id, Err: ErrDuplicateFunction}
		}
		seen[id] = true
	}

	var (
		mu  sync.Mutex
		out = make(map[string]Outcome, len(targets))
	)
	var g errgroup.Group
	g.SetLimit(c.cfg.Concurrency)
	for _, t := range targets {
		t := t
		g.Go(func() error {
			res, err := c.runOne(ctx, t)
			if err != nil {
				logrus.WithField("function", t.Function.ID).Warnf("session ended with error: %v", err)
			}
			mu.Lock()
			out[t.Function.ID] = Outcome{Result: res, Err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

func (c *Coordinator) runOne(ctx context.Context, t Target) (*TuningResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, err := NewSession(c.cfg, t, c.invoker, c.model, c.observer)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx)
}
