package tuner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lambda-tuner/lambda-tuner/tuner/cost"
)

// restoreGrace is added to UpdateTimeout for the final restore, which also
// issues a confirming describe call.
const restoreGrace = 30 * time.Second

// Target is one function to tune and the payload used for every invocation.
type Target struct {
	Function FunctionInformation
	Payload  []byte
}

// Session runs the search for one function. It owns its SearchStrategy and
// measurement trail exclusively.
type Session struct {
	id       string
	cfg      Config
	target   Target
	invoker  *Invoker
	sampler  *Sampler
	strategy SearchStrategy
	observer Observer
	log      *logrus.Entry
}

// NewSession prepares a session. cfg must already be validated.
func NewSession(cfg Config, target Target, invoker *Invoker, model *cost.Model, observer Observer) (*Session, error) {
	if target.Function.ID == "" {
		return nil, &ConfigurationError{Field: "function", Reason: "empty function identifier"}
	}
	strategy, err := NewSearchStrategy(cfg)
	if err != nil {
		return nil, err
	}
	if observer == nil {
		observer = NopObserver{}
	}
	id := uuid.NewString()
	return &Session{
		id:       id,
		cfg:      cfg,
		target:   target,
		invoker:  invoker,
		sampler:  NewSampler(invoker, model, cfg),
		strategy: strategy,
		observer: observer,
		log:      logrus.WithFields(logrus.Fields{"session": id, "function": target.Function.ID}),
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Run tunes the function until the strategy is done or ctx is cancelled, then
// restores the original memory size on every exit path.
//
// The result is non-nil whenever the function could be described, even when
// err is non-nil. err joins: ErrCeilingExceeded or ErrNoUsableMemory when the
// search failed, the context error on cancellation, and *RestoreError when the
// original memory could not be restored.
func (s *Session) Run(ctx context.Context) (res *TuningResult, err error) {
	fn := s.target.Function
	if fn.Memory == 0 || fn.Timeout == 0 {
		info, derr := s.invoker.Describe(ctx, fn.ID)
		if derr != nil {
			return nil, fmt.Errorf("describe %s: %w", fn.ID, derr)
		}
		if fn.Memory == 0 {
			fn.Memory = info.Memory
		}
		if fn.Timeout == 0 {
			fn.Timeout = info.Timeout
		}
	}

	res = &TuningResult{
		SessionID:      s.id,
		FunctionID:     fn.ID,
		OriginalMemory: fn.Memory,
		Objective:      s.cfg.Objective,
		Strategy:       s.strategy.Name(),
		Phase:          PhaseInitializing,
		Measurements:   make([]Measurement, 0, s.cfg.MaxCandidates),
		StartedAt:      time.Now(),
	}
	s.log.Infof("tuning between %s and %s (original %s, objective %s)", s.cfg.MinMemory, s.cfg.MaxMemory, fn.Memory, s.cfg.Objective)
	s.observer.SessionStarted(s.id, fn)

	defer func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.UpdateTimeout+restoreGrace)
		defer cancel()
		if rerr := s.invoker.Restore(rctx, fn); rerr != nil {
			s.log.Errorf("function left at a tuning memory size: %v", rerr)
			err = errors.Join(err, rerr)
		} else {
			res.Restored = true
		}
		res.FinishedAt = time.Now()
		s.observer.SessionFinished(res, err)
	}()

	return res, s.search(ctx, fn, res)
}

func (s *Session) search(ctx context.Context, fn FunctionInformation, res *TuningResult) error {
	for {
		if err := ctx.Err(); err != nil {
			return s.interrupted(res, err)
		}
		memory, ok := s.strategy.Next()
		if !ok {
			break
		}
		m, err := s.sampler.Sample(ctx, fn, memory, s.target.Payload, s.cfg.SampleCount)
		if err != nil {
			return s.interrupted(res, err)
		}
		m.Sequence = len(res.Measurements)
		s.strategy.Record(m)
		res.Measurements = append(res.Measurements, m)
		s.observer.MeasurementRecorded(s.id, m)

		log := s.log.WithField("memory", memory)
		switch {
		case m.ReconfigurationError != "":
			log.Warnf("memory size unusable: %s", m.ReconfigurationError)
		case !m.Usable():
			log.Warnf("all %d invocations failed", m.Count)
		default:
			log.Debugf("mean %.2fms, $%.8f per invocation", m.Duration.Mean, m.Cost.PerInvocation)
		}
	}

	state := s.strategy.State()
	res.Phase = state.Phase
	res.Reason = state.Reason
	res.Recommended = state.Best
	if state.Phase != PhaseFailed {
		s.log.Infof("recommended %s (%s)", res.Recommended.Memory, state.Phase)
		return nil
	}
	_, err := SelectBest(res.Measurements, s.cfg)
	if err == nil {
		err = errors.New(state.Reason)
	}
	s.log.Warnf("tuning failed: %v", err)
	return fmt.Errorf("tune %s: %w", fn.ID, err)
}

// interrupted records the best-so-far on a cancelled session. The phase stays
// at the search's last, non-terminal phase.
func (s *Session) interrupted(res *TuningResult, err error) error {
	state := s.strategy.State()
	res.Phase = state.Phase
	res.Reason = fmt.Sprintf("interrupted: %v", err)
	if best, serr := SelectBest(res.Measurements, s.cfg); serr == nil {
		res.Recommended = best
	}
	s.log.Warnf("tuning interrupted after %d measurements: %v", len(res.Measurements), err)
	return err
}
