package tuner

import (
	"errors"
	"fmt"
)

var (
	// ErrThrottled is returned by a FunctionClient when the provider rejected a
	// call because of rate limits. The Invoker retries it with backoff.
	ErrThrottled = errors.New("request throttled")
	// ErrResourceConflict is returned by a FunctionClient when a configuration
	// update is rejected because another update is still in progress.
	ErrResourceConflict = errors.New("function update already in progress")
	// ErrCeilingExceeded ends a session whose usable measurements all exceed
	// the configured max price.
	ErrCeilingExceeded = errors.New("every usable memory size exceeds the price ceiling")
	// ErrNoUsableMemory ends a session where no tested memory size produced a
	// successful invocation.
	ErrNoUsableMemory = errors.New("no usable memory size")
	// ErrDuplicateFunction rejects a batch that names a function twice.
	ErrDuplicateFunction = errors.New("function scheduled more than once")
)

// ConfigurationError reports an invalid tuning configuration. It is returned
// before any invocation is issued.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ReconfigurationError reports that a memory update was rejected or could not
// be confirmed. The memory size is unusable for the rest of the session.
type ReconfigurationError struct {
	FunctionID string
	Memory     MemorySize
	Err        error
}

func (e *ReconfigurationError) Error() string {
	return fmt.Sprintf("reconfigure %s to %s: %v", e.FunctionID, e.Memory, e.Err)
}

func (e *ReconfigurationError) Unwrap() error { return e.Err }

// InvocationError describes a failed invocation. It is recorded as data on the
// InvocationResult, never returned from a session.
type InvocationError struct {
	FunctionID string
	Memory     MemorySize
	Kind       ErrorKind
	Err        error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invoke %s at %s (%s): %v", e.FunctionID, e.Memory, e.Kind, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// ThrottlingError is raised after the throttling retry budget is spent. The
// Invoker converts it into a failed InvocationResult of kind ErrorKindThrottled.
type ThrottlingError struct {
	FunctionID string
	Attempts   int
	Err        error
}

func (e *ThrottlingError) Error() string {
	return fmt.Sprintf("invoke %s throttled after %d attempts: %v", e.FunctionID, e.Attempts, e.Err)
}

func (e *ThrottlingError) Unwrap() error { return e.Err }

// RestoreError reports that the function's original memory size could not be
// restored. The tuning result is still valid, but the function was left in a
// modified state.
type RestoreError struct {
	FunctionID string
	Memory     MemorySize
	Err        error
}

func (e *RestoreError) Error() string {
	return fmt.Sprintf("restore %s to original memory %s: %v", e.FunctionID, e.Memory, e.Err)
}

func (e *RestoreError) Unwrap() error { return e.Err }
