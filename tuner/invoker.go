package tuner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// MaxFunctionTimeout bounds an invocation whose function timeout is unknown.
const MaxFunctionTimeout = 15 * time.Minute

var errUpdatePending = errors.New("memory update not yet applied")

// RetryPolicy shapes the exponential backoff used for throttling retries and
// for polling configuration updates.
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy is used unless overridden with WithRetryPolicy.
var DefaultRetryPolicy = RetryPolicy{InitialInterval: 250 * time.Millisecond, MaxInterval: 5 * time.Second}

// InvokerOption customizes an Invoker.
type InvokerOption func(*Invoker)

// WithRetryPolicy overrides the backoff intervals.
func WithRetryPolicy(p RetryPolicy) InvokerOption {
	return func(inv *Invoker) { inv.retry = p }
}

// Invoker runs single invocations at a requested memory size. It reconfigures
// the function when needed and waits until the update is applied, retries
// throttled calls with exponential backoff, and bounds each call with the
// function timeout plus a margin. One Invoker is shared by all sessions of a
// batch so the rate limiter applies across functions.
type Invoker struct {
	client  FunctionClient
	cfg     Config
	limiter *rate.Limiter
	retry   RetryPolicy

	mu      sync.Mutex
	current map[string]MemorySize // last confirmed memory per function
}

// NewInvoker creates an Invoker driving client with the retry, timeout and
// rate settings of cfg.
func NewInvoker(client FunctionClient, cfg Config, opts ...InvokerOption) *Invoker {
	inv := &Invoker{
		client:  client,
		cfg:     cfg,
		retry:   DefaultRetryPolicy,
		current: make(map[string]MemorySize),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(math.Ceil(cfg.RequestsPerSecond))
		inv.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

func (inv *Invoker) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = inv.retry.InitialInterval
	b.MaxInterval = inv.retry.MaxInterval
	b.MaxElapsedTime = 0 // bounded by retries or context instead
	return b
}

func (inv *Invoker) wait(ctx context.Context) error {
	if inv.limiter == nil {
		return nil
	}
	return inv.limiter.Wait(ctx)
}

func (inv *Invoker) cached(id string) (MemorySize, bool) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	m, ok := inv.current[id]
	return m, ok
}

func (inv *Invoker) remember(id string, memory MemorySize) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.current[id] = memory
}

func (inv *Invoker) forget(id string) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	delete(inv.current, id)
}

// Describe returns the function's current configuration.
func (inv *Invoker) Describe(ctx context.Context, id string) (FunctionInformation, error) {
	if err := inv.wait(ctx); err != nil {
		return FunctionInformation{}, err
	}
	return inv.client.GetFunction(ctx, id)
}

// Configure makes sure the function runs at memory, updating it and waiting
// for the update to be applied when it does not. Failures are returned as
// *ReconfigurationError; cancellation of ctx returns the context error.
func (inv *Invoker) Configure(ctx context.Context, id string, memory MemorySize) error {
	if cur, ok := inv.cached(id); ok && cur == memory {
		return nil
	}
	if err := inv.reconfigure(ctx, id, memory); err != nil {
		inv.forget(id)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &ReconfigurationError{FunctionID: id, Memory: memory, Err: err}
	}
	inv.remember(id, memory)
	return nil
}

func (inv *Invoker) reconfigure(ctx context.Context, id string, memory MemorySize) error {
	ctx, cancel := context.WithTimeout(ctx, inv.cfg.UpdateTimeout)
	defer cancel()

	log := logrus.WithFields(logrus.Fields{"function": id, "memory": memory})
	if info, err := inv.Describe(ctx, id); err == nil && info.UpdateApplied(memory) {
		return nil
	}

	requested := false
	op := func() error {
		if !requested {
			if err := inv.wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
			err := inv.client.UpdateMemory(ctx, id, memory)
			switch {
			case errors.Is(err, ErrResourceConflict), errors.Is(err, ErrThrottled):
				return err
			case err != nil:
				return backoff.Permanent(err)
			}
			requested = true
			log.Debug("memory update requested")
		}
		info, err := inv.Describe(ctx, id)
		if err != nil {
			if errors.Is(err, ErrThrottled) {
				return err
			}
			return backoff.Permanent(err)
		}
		if info.LastUpdateStatus == UpdateStatusFailed || info.State == FunctionStateFailed {
			return backoff.Permanent(fmt.Errorf("provider reported update failure: %s", info.UpdateReason))
		}
		if !info.UpdateApplied(memory) {
			return errUpdatePending
		}
		return nil
	}
	notify := func(err error, next time.Duration) {
		log.Debugf("waiting for memory update: %v (next poll in %v)", err, next)
	}
	return backoff.RetryNotify(op, backoff.WithContext(inv.newBackOff(), ctx), notify)
}

// Invoke runs fn once at memory with payload. Function errors, exhausted
// throttling retries, timeouts and transport failures come back as a failed
// InvocationResult with a nil error. The error is non-nil only for a failed
// reconfiguration (*ReconfigurationError) or cancellation of ctx.
func (inv *Invoker) Invoke(ctx context.Context, fn FunctionInformation, memory MemorySize, payload []byte) (InvocationResult, error) {
	if err := inv.Configure(ctx, fn.ID, memory); err != nil {
		return InvocationResult{}, err
	}

	timeout := fn.Timeout
	if timeout <= 0 {
		timeout = MaxFunctionTimeout
	}
	timeout += inv.cfg.InvocationTimeoutMargin

	attempts := 0
	var res InvocationResult
	op := func() error {
		attempts++
		if err := inv.wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		r, err := inv.client.Invoke(callCtx, fn.ID, payload)
		if err == nil {
			res = r
			return nil
		}
		if errors.Is(err, ErrThrottled) {
			return err
		}
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return backoff.Permanent(&InvocationError{FunctionID: fn.ID, Memory: memory, Kind: ErrorKindTimeout,
				Err: fmt.Errorf("no response within %v: %w", timeout, err)})
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, next time.Duration) {
		logrus.WithFields(logrus.Fields{"function": fn.ID, "memory": memory}).
			Debugf("invocation throttled, retrying in %v: %v", next, err)
	}
	b := backoff.WithContext(backoff.WithMaxRetries(inv.newBackOff(), uint64(inv.cfg.ThrottleRetries)), ctx)
	err := backoff.RetryNotify(op, b, notify)
	if err == nil {
		res.Memory = memory
		return res, nil
	}
	if ctx.Err() != nil {
		return InvocationResult{}, ctx.Err()
	}

	var invErr *InvocationError
	switch {
	case errors.As(err, &invErr):
	case errors.Is(err, ErrThrottled):
		invErr = &InvocationError{FunctionID: fn.ID, Memory: memory, Kind: ErrorKindThrottled,
			Err: &ThrottlingError{FunctionID: fn.ID, Attempts: attempts, Err: err}}
	default:
		invErr = &InvocationError{FunctionID: fn.ID, Memory: memory, Kind: ErrorKindInvoke, Err: err}
	}
	return failedResult(memory, invErr), nil
}

// Restore reconfigures fn back to fn.Memory and confirms the post-condition
// with a fresh describe call.
func (inv *Invoker) Restore(ctx context.Context, fn FunctionInformation) error {
	inv.forget(fn.ID)
	if err := inv.reconfigure(ctx, fn.ID, fn.Memory); err != nil {
		return &RestoreError{FunctionID: fn.ID, Memory: fn.Memory, Err: err}
	}
	info, err := inv.Describe(ctx, fn.ID)
	if err != nil {
		return &RestoreError{FunctionID: fn.ID, Memory: fn.Memory, Err: err}
	}
	if info.Memory != fn.Memory {
		return &RestoreError{FunctionID: fn.ID, Memory: fn.Memory,
			Err: fmt.Errorf("function reports %s after restore", info.Memory)}
	}
	inv.remember(fn.ID, fn.Memory)
	return nil
}
