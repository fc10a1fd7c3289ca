package tuner

import (
	"context"
	"errors"

	"github.com/lambda-tuner/lambda-tuner/tuner/cost"
)

// Sampler turns a memory size into a Measurement by invoking the function
// SampleCount times. Invocations run sequentially so measured durations are
// not skewed by concurrent executions competing for the same account limits.
type Sampler struct {
	invoker *Invoker
	model   *cost.Model
	cfg     Config
}

// NewSampler creates a Sampler pricing its measurements with model.
func NewSampler(invoker *Invoker, model *cost.Model, cfg Config) *Sampler {
	return &Sampler{invoker: invoker, model: model, cfg: cfg}
}

// Sample invokes fn count times at memory and aggregates the results. Failed
// invocations are kept as data points. If the function cannot be configured
// to memory the returned Measurement has no invocations and carries the
// reconfiguration error, which makes it unusable. The error is non-nil only
// when ctx is cancelled.
func (s *Sampler) Sample(ctx context.Context, fn FunctionInformation, memory MemorySize, payload []byte, count int) (Measurement, error) {
	if err := s.invoker.Configure(ctx, fn.ID, memory); err != nil {
		var rerr *ReconfigurationError
		if errors.As(err, &rerr) {
			return unusableMeasurement(fn.ID, memory, rerr), nil
		}
		return Measurement{}, err
	}

	results := make([]InvocationResult, 0, count)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return Measurement{}, err
		}
		r, err := s.invoker.Invoke(ctx, fn, memory, payload)
		if err != nil {
			var rerr *ReconfigurationError
			if errors.As(err, &rerr) {
				return unusableMeasurement(fn.ID, memory, rerr), nil
			}
			return Measurement{}, err
		}
		results = append(results, r)
	}
	return NewMeasurement(fn.ID, memory, results, s.model, s.cfg), nil
}
