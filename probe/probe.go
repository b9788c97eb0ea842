package probe

import (
	"context"
	"fmt"
	"time"
)

// DefaultTimeout is the per-probe execution timeout applied when a probe
// is configured without one.
const DefaultTimeout = 10 * time.Second

// DetailTimeout is the detail string recorded when a probe hits its own
// execution timeout.
const DetailTimeout = "timeout"

// State represents the outcome of a single probe execution.
type State int

const (
	// StatePass indicates the target responded as expected.
	StatePass State = iota
	// StateWarn indicates the target is reachable but did not satisfy the
	// configured expectation.
	StateWarn
	// StateFail indicates the target is unreachable, timed out, or returned
	// a hard failure.
	StateFail
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StatePass:
		return "pass"
	case StateWarn:
		return "warn"
	case StateFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Result contains the outcome of one probe execution. Results are created
// once and never mutated.
type Result struct {
	// Probe is the name of the probe that produced this result.
	Probe string

	// State is the tri-state outcome.
	State State

	// Detail provides additional context about the outcome.
	Detail string

	// Latency is how long the execution took.
	Latency time.Duration

	// Timestamp is when the execution started.
	Timestamp time.Time

	// Err is the underlying error for failed executions.
	Err error
}

// Pass creates a passing result.
func Pass(name, detail string) Result {
	return Result{
		Probe:     name,
		State:     StatePass,
		Detail:    detail,
		Timestamp: time.Now(),
	}
}

// Warn creates a warning result.
func Warn(name, detail string) Result {
	return Result{
		Probe:     name,
		State:     StateWarn,
		Detail:    detail,
		Timestamp: time.Now(),
	}
}

// Fail creates a failing result.
func Fail(name, detail string, err error) Result {
	return Result{
		Probe:     name,
		State:     StateFail,
		Detail:    detail,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// WithLatency sets the latency on a result.
func (r Result) WithLatency(d time.Duration) Result {
	r.Latency = d
	return r
}

// Prober is the interface for a single bounded health check against one
// target.
type Prober interface {
	// Name returns the unique name of this probe.
	Name() string

	// Probe executes one check and returns the result. Implementations
	// must not panic and must capture every error into the result.
	Probe(ctx context.Context) Result
}

// ProbeFunc is an adapter to allow ordinary functions to be used as Probers.
type ProbeFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewProbeFunc creates a new ProbeFunc.
func NewProbeFunc(name string, fn func(context.Context) Result) *ProbeFunc {
	return &ProbeFunc{name: name, fn: fn}
}

// Name returns the name of this probe.
func (f *ProbeFunc) Name() string {
	return f.name
}

// Probe executes the wrapped function.
func (f *ProbeFunc) Probe(ctx context.Context) Result {
	return f.fn(ctx)
}

// execute runs fn under the probe's own timeout. The check runs in its own
// goroutine so a hung target cannot stall the caller past the deadline; a
// check that misses the deadline is abandoned and its eventual result is
// discarded.
func execute(ctx context.Context, name string, timeout time.Duration, fn func(context.Context) Result) Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resultCh := make(chan Result, 1)

	go func() {
		defer func() {
			if v := recover(); v != nil {
				resultCh <- Fail(name, fmt.Sprintf("panic: %v", v), ErrProbePanic)
			}
		}()
		resultCh <- fn(ctx)
	}()

	select {
	case result := <-resultCh:
		if result.Timestamp.IsZero() {
			result.Timestamp = start
		}
		return result.WithLatency(time.Since(start))
	case <-ctx.Done():
		return Result{
			Probe:     name,
			State:     StateFail,
			Detail:    DetailTimeout,
			Err:       ErrTimeout,
			Latency:   time.Since(start),
			Timestamp: start,
		}
	}
}
