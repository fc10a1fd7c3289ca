// Package testutil provides an in-memory FunctionClient for tests of tuner/
// and cmd/. FakeClient simulates the provider side of tuning: a
// per-function memory setting with asynchronous updates, a duration curve
// over memory, and injectable throttling, timeouts and failures.
package testutil

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/lambda-tuner/lambda-tuner/tuner"
)

// Curve maps memory sizes to execution durations in milliseconds. Durations
// between points are interpolated linearly; outside the points the nearest
// value is used.
type Curve map[tuner.MemorySize]float64

// At returns the duration at memory.
func (c Curve) At(memory tuner.MemorySize) float64 {
	if len(c) == 0 {
		return 0
	}
	keys := make([]tuner.MemorySize, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	if memory <= keys[0] {
		return c[keys[0]]
	}
	if memory >= keys[len(keys)-1] {
		return c[keys[len(keys)-1]]
	}
	for i := 1; i < len(keys); i++ {
		lo, hi := keys[i-1], keys[i]
		if memory <= hi {
			frac := float64(memory-lo) / float64(hi-lo)
			return c[lo] + (c[hi]-c[lo])*frac
		}
	}
	return c[keys[len(keys)-1]]
}

// FakeFunction configures one simulated function. Fields must be set before
// the function is added to a FakeClient.
type FakeFunction struct {
	ID      string
	Memory  tuner.MemorySize // initial (original) memory size
	Timeout time.Duration
	Curve   Curve

	PendingPolls    int                       // describe calls reporting InProgress after each update
	ConflictUpdates int                       // first N updates fail with ErrResourceConflict
	RejectAt        map[tuner.MemorySize]bool // updates to these sizes are rejected outright
	UpdateFailAt    map[tuner.MemorySize]bool // updates to these sizes are accepted, then reported Failed
	FailAt          map[tuner.MemorySize]bool // invocations at these sizes return a function error
	FailAll         bool                      // every invocation returns a function error
	ThrottleInvokes int                       // first N invocations are throttled
	InvokeDelay     time.Duration             // wall time per invocation, honouring ctx
}

type functionState struct {
	spec        FakeFunction
	info        tuner.FunctionInformation
	pendingLeft int
	conflicts   int
	throttles   int
	updates     []tuner.MemorySize
	invocations map[tuner.MemorySize]int
}

// FakeClient is a concurrency-safe tuner.FunctionClient and tuner.Catalog.
type FakeClient struct {
	mu        sync.Mutex
	functions map[string]*functionState
	order     []string

	describes   int
	inFlight    int
	maxInFlight int
}

// NewFakeClient returns a client serving fns.
func NewFakeClient(fns ...FakeFunction) *FakeClient {
	c := &FakeClient{functions: make(map[string]*functionState)}
	for _, fn := range fns {
		c.Add(fn)
	}
	return c
}

// Add registers fn, replacing any function with the same ID.
func (c *FakeClient) Add(fn FakeFunction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.functions[fn.ID]; !ok {
		c.order = append(c.order, fn.ID)
	}
	c.functions[fn.ID] = &functionState{
		spec: fn,
		info: tuner.FunctionInformation{
			ID:               fn.ID,
			Name:             fn.ID,
			ARN:              "arn:aws:lambda:us-east-1:123456789012:function:" + fn.ID,
			Memory:           fn.Memory,
			Runtime:          "provided.al2023",
			State:            tuner.FunctionStateActive,
			LastUpdateStatus: tuner.UpdateStatusSuccessful,
			Timeout:          fn.Timeout,
		},
		conflicts:   fn.ConflictUpdates,
		throttles:   fn.ThrottleInvokes,
		invocations: make(map[tuner.MemorySize]int),
	}
}

func (c *FakeClient) lookup(id string) (*functionState, error) {
	f, ok := c.functions[id]
	if !ok {
		return nil, fmt.Errorf("function not found: %s", id)
	}
	return f, nil
}

// ListFunctions implements tuner.Catalog.
func (c *FakeClient) ListFunctions(ctx context.Context) ([]tuner.FunctionInformation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]tuner.FunctionInformation, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.functions[id].info)
	}
	return out, nil
}

// GetFunction implements tuner.FunctionClient. Each call advances a pending
// update by one poll.
func (c *FakeClient) GetFunction(ctx context.Context, id string) (tuner.FunctionInformation, error) {
	if err := ctx.Err(); err != nil {
		return tuner.FunctionInformation{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.describes++
	f, err := c.lookup(id)
	if err != nil {
		return tuner.FunctionInformation{}, err
	}
	info := f.info
	if f.info.LastUpdateStatus == tuner.UpdateStatusInProgress {
		if f.pendingLeft > 0 {
			f.pendingLeft--
		}
		if f.pendingLeft == 0 {
			f.info.LastUpdateStatus = tuner.UpdateStatusSuccessful
		}
	}
	return info, nil
}

// UpdateMemory implements tuner.FunctionClient.
func (c *FakeClient) UpdateMemory(ctx context.Context, id string, memory tuner.MemorySize) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	f, err := c.lookup(id)
	if err != nil {
		return err
	}
	if f.conflicts > 0 {
		f.conflicts--
		return fmt.Errorf("update %s: %w", id, tuner.ErrResourceConflict)
	}
	if f.spec.RejectAt[memory] {
		return fmt.Errorf("InvalidParameterValueException: memory size %d rejected", memory)
	}
	f.updates = append(f.updates, memory)
	if f.spec.UpdateFailAt[memory] {
		f.info.LastUpdateStatus = tuner.UpdateStatusFailed
		f.info.UpdateReason = fmt.Sprintf("simulated failure at %s", memory)
		return nil
	}
	f.info.Memory = memory
	f.info.UpdateReason = ""
	f.pendingLeft = f.spec.PendingPolls
	if f.pendingLeft > 0 {
		f.info.LastUpdateStatus = tuner.UpdateStatusInProgress
	} else {
		f.info.LastUpdateStatus = tuner.UpdateStatusSuccessful
	}
	return nil
}

// Invoke implements tuner.FunctionClient.
func (c *FakeClient) Invoke(ctx context.Context, id string, payload []byte) (tuner.InvocationResult, error) {
	c.mu.Lock()
	f, err := c.lookup(id)
	if err != nil {
		c.mu.Unlock()
		return tuner.InvocationResult{}, err
	}
	if f.info.LastUpdateStatus == tuner.UpdateStatusInProgress {
		c.mu.Unlock()
		return tuner.InvocationResult{}, fmt.Errorf("invoke %s: %w", id, tuner.ErrResourceConflict)
	}
	memory := f.info.Memory
	f.invocations[memory]++
	if f.throttles > 0 {
		f.throttles--
		c.mu.Unlock()
		return tuner.InvocationResult{}, fmt.Errorf("invoke %s: %w", id, tuner.ErrThrottled)
	}
	spec := f.spec
	c.inFlight++
	if c.inFlight > c.maxInFlight {
		c.maxInFlight = c.inFlight
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight--
		c.mu.Unlock()
	}()

	if spec.InvokeDelay > 0 {
		timer := time.NewTimer(spec.InvokeDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return tuner.InvocationResult{}, ctx.Err()
		case <-timer.C:
		}
	}

	d := spec.Curve.At(memory)
	if spec.FailAll || spec.FailAt[memory] {
		return tuner.InvocationResult{
			Memory:         memory,
			Duration:       d,
			BilledDuration: math.Ceil(d),
			Success:        false,
			ErrorKind:      tuner.ErrorKindFunction,
			Error:          "Unhandled: simulated function error",
		}, nil
	}
	return tuner.InvocationResult{
		Memory:         memory,
		Duration:       d,
		BilledDuration: math.Ceil(d),
		MaxMemoryUsed:  64,
		Success:        true,
	}, nil
}

// Memory returns the function's current memory size.
func (c *FakeClient) Memory(id string) tuner.MemorySize {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.functions[id]; ok {
		return f.info.Memory
	}
	return 0
}

// Updates returns the accepted memory updates of a function in order.
func (c *FakeClient) Updates(id string) []tuner.MemorySize {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.functions[id]; ok {
		return append([]tuner.MemorySize(nil), f.updates...)
	}
	return nil
}

// Invocations returns the number of invoke attempts at memory, including
// throttled ones.
func (c *FakeClient) Invocations(id string, memory tuner.MemorySize) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.functions[id]; ok {
		return f.invocations[memory]
	}
	return 0
}

// TotalInvocations returns the number of invoke attempts of a function.
func (c *FakeClient) TotalInvocations(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	if f, ok := c.functions[id]; ok {
		for _, v := range f.invocations {
			n += v
		}
	}
	return n
}

// InvokedSizes returns the distinct memory sizes a function was invoked at.
func (c *FakeClient) InvokedSizes(id string) []tuner.MemorySize {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []tuner.MemorySize
	if f, ok := c.functions[id]; ok {
		for m := range f.invocations {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Describes returns the number of GetFunction calls.
func (c *FakeClient) Describes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.describes
}

// MaxInFlight returns the peak number of concurrent invocations.
func (c *FakeClient) MaxInFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxInFlight
}
