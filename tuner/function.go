package tuner

import (
	"context"
	"time"
)

// FunctionState mirrors the provider's lifecycle state of a function.
type FunctionState string

const (
	FunctionStatePending  FunctionState = "Pending"
	FunctionStateActive   FunctionState = "Active"
	FunctionStateInactive FunctionState = "Inactive"
	FunctionStateFailed   FunctionState = "Failed"
)

// UpdateStatus mirrors the provider's status of the last configuration update.
type UpdateStatus string

const (
	UpdateStatusSuccessful UpdateStatus = "Successful"
	UpdateStatusInProgress UpdateStatus = "InProgress"
	UpdateStatusFailed     UpdateStatus = "Failed"
)

// FunctionInformation describes one tunable function. The engine only needs
// ID and Memory (the restore point); Timeout bounds per-invocation timeouts.
type FunctionInformation struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	ARN              string        `json:"arn,omitempty"`
	Description      string        `json:"description,omitempty"`
	Memory           MemorySize    `json:"memory_mb"`
	Runtime          string        `json:"runtime,omitempty"`
	State            FunctionState `json:"state,omitempty"`
	LastUpdateStatus UpdateStatus  `json:"last_update_status,omitempty"`
	Timeout          time.Duration `json:"timeout,omitempty"`
	UpdateReason     string        `json:"update_reason,omitempty"`
}

// UpdateApplied reports whether the function is active, runs at memory, and
// has no configuration update in flight. An empty state is treated as active
// for providers that do not report one.
func (f FunctionInformation) UpdateApplied(memory MemorySize) bool {
	if f.Memory != memory {
		return false
	}
	if f.State != "" && f.State != FunctionStateActive {
		return false
	}
	return f.LastUpdateStatus != UpdateStatusInProgress
}

// FunctionClient is the provider surface the Invoker drives.
// Implementations must be safe for concurrent use.
type FunctionClient interface {
	// GetFunction returns the current configuration of a function.
	GetFunction(ctx context.Context, id string) (FunctionInformation, error)
	// UpdateMemory requests a memory change. It returns once the request was
	// accepted; the update may still be in progress.
	UpdateMemory(ctx context.Context, id string, memory MemorySize) error
	// Invoke runs the function once synchronously. Function errors are
	// reported as a failed InvocationResult with a nil error; throttling is
	// reported as an error wrapping ErrThrottled.
	Invoke(ctx context.Context, id string, payload []byte) (InvocationResult, error)
}

// Catalog lists candidate functions.
type Catalog interface {
	ListFunctions(ctx context.Context) ([]FunctionInformation, error)
}
