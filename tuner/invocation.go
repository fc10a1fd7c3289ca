package tuner

// ErrorKind classifies a failed invocation.
type ErrorKind string

const (
	ErrorKindNone      ErrorKind = ""
	ErrorKindFunction  ErrorKind = "function"  // the function returned an error
	ErrorKindThrottled ErrorKind = "throttled" // throttling retries exhausted
	ErrorKindTimeout   ErrorKind = "timeout"   // exceeded function timeout plus margin
	ErrorKindInvoke    ErrorKind = "invoke"    // transport or API failure
)

// InvocationResult is the telemetry of one invocation. Durations are in
// milliseconds.
type InvocationResult struct {
	Memory         MemorySize `json:"memory_mb"`
	Duration       float64    `json:"duration_ms"`
	BilledDuration float64    `json:"billed_duration_ms"`
	InitDuration   float64    `json:"init_duration_ms,omitempty"`
	MaxMemoryUsed  MemorySize `json:"max_memory_used_mb,omitempty"`
	Success        bool       `json:"success"`
	ErrorKind      ErrorKind  `json:"error_kind,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// failedResult builds a failed InvocationResult from an InvocationError.
func failedResult(memory MemorySize, err *InvocationError) InvocationResult {
	return InvocationResult{
		Memory:    memory,
		Success:   false,
		ErrorKind: err.Kind,
		Error:     err.Error(),
	}
}
