// Package tuner provides the memory tuning engine for lambda-tuner.
//
// # Reading Guide
//
// Start with these files to understand the engine:
//   - session.go: one function's tuning run (search loop, trail, restore)
//   - strategy.go: the SearchStrategy contract and its state machine
//   - sampler.go: N invocations at one memory size aggregated into a Measurement
//   - invoker.go: reconfigure-and-wait, throttling backoff, per-call timeouts
//
// # Architecture
//
// The tuner package defines the data model, interfaces and orchestration;
// implementations live in sub-packages:
//   - tuner/cost/: memory×duration pricing
//   - tuner/search/: search strategies (bisection, grid)
//   - tuner/awslambda/: FunctionClient and Catalog on the AWS Lambda API
//   - tuner/metrics/: Prometheus Observer
//
// tuner/search registers its strategies via init(), setting the package-level
// factory variable NewSearchStrategyFunc. Import it (blank import is enough)
// before constructing sessions.
//
// # Key Interfaces
//   - FunctionClient: describe, update memory, invoke once
//   - Catalog: list candidate functions
//   - SearchStrategy: choose the next memory size, record measurements
//   - Observer: receive measurements and session results as they happen
package tuner
