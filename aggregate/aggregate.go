// Package aggregate runs every registered probe as one bounded batch and
// merges the results into a Snapshot with a derived overall state.
package aggregate

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"vigil/probe"
	"vigil/registry"
)

// DetailBudgetExceeded is recorded on probes that did not settle before
// the overall wall-clock budget expired.
const DetailBudgetExceeded = "budget_exceeded"

// DefaultBudget is the overall wall-clock budget for one run. It must stay
// strictly larger than any single probe timeout so a full batch is never
// abandoned prematurely.
const DefaultBudget = 60 * time.Second

// Config configures the aggregator.
type Config struct {
	// Budget is the overall wall-clock budget for one run.
	// Default: DefaultBudget.
	Budget time.Duration

	// MaxConcurrent bounds the worker pool. Zero means one worker per
	// probe; the checks are network-bound waits, not CPU work.
	MaxConcurrent int
}

// Result is one probe result annotated with its registry entry.
type Result struct {
	probe.Result

	// Group is the service the probe belongs to.
	Group string

	// Mandatory mirrors the registry entry.
	Mandatory bool
}

// Snapshot is the complete set of probe results from one run. Every probe
// handed to Run appears exactly once, in registration order.
type Snapshot struct {
	// Timestamp is when the run started.
	Timestamp time.Time

	// Results holds one entry per probe, in registration order.
	Results []Result

	// Overall is the derived overall state.
	Overall probe.State

	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration
}

// Runner executes probe batches.
type Runner struct {
	config Config
}

// NewRunner creates a new aggregator runner.
func NewRunner(config Config) *Runner {
	if config.Budget <= 0 {
		config.Budget = DefaultBudget
	}
	return &Runner{config: config}
}

// Run executes every entry concurrently and returns the snapshot. Probes
// are independent; each enforces its own timeout inside the run budget. A
// probe that has not settled when the budget expires is abandoned
// fire-and-forget and recorded as FAIL with DetailBudgetExceeded; its
// eventual result, if any, is discarded.
func (r *Runner) Run(ctx context.Context, entries []registry.Entry) Snapshot {
	started := time.Now()

	snap := Snapshot{
		Timestamp: started,
		Results:   make([]Result, len(entries)),
	}
	for i, e := range entries {
		snap.Results[i] = Result{
			Result: probe.Result{
				Probe:     e.Prober.Name(),
				State:     probe.StateFail,
				Detail:    DetailBudgetExceeded,
				Timestamp: started,
			},
			Group:     e.Group,
			Mandatory: e.Mandatory,
		}
	}
	if len(entries) == 0 {
		snap.Overall = probe.StatePass
		return snap
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.Budget)
	defer cancel()

	limit := r.config.MaxConcurrent
	if limit <= 0 || limit > len(entries) {
		limit = len(entries)
	}
	sem := semaphore.NewWeighted(int64(limit))

	type indexed struct {
		i   int
		res probe.Result
	}
	// Buffered so abandoned probes can still send without leaking.
	resultCh := make(chan indexed, len(entries))

	for i, e := range entries {
		go func(i int, e registry.Entry) {
			if err := sem.Acquire(ctx, 1); err != nil {
				return // budget expired while queued
			}
			defer sem.Release(1)
			resultCh <- indexed{i: i, res: e.Prober.Probe(ctx)}
		}(i, e)
	}

	settled := 0
collect:
	for settled < len(entries) {
		select {
		case out := <-resultCh:
			res := out.res
			if res.Probe == "" {
				res.Probe = snap.Results[out.i].Probe
			}
			snap.Results[out.i].Result = res
			settled++
		case <-ctx.Done():
			break collect
		}
	}

	snap.Overall = Overall(snap.Results)
	snap.Elapsed = time.Since(started)
	return snap
}

// Overall derives the overall state: FAIL if any mandatory probe failed;
// else WARN if any probe warned or any non-mandatory probe failed; else
// PASS.
func Overall(results []Result) probe.State {
	overall := probe.StatePass
	for _, res := range results {
		switch res.State {
		case probe.StateFail:
			if res.Mandatory {
				return probe.StateFail
			}
			overall = probe.StateWarn
		case probe.StateWarn:
			overall = probe.StateWarn
		}
	}
	return overall
}

// Counts returns the number of results per state.
func (s Snapshot) Counts() (pass, warn, fail int) {
	for _, res := range s.Results {
		switch res.State {
		case probe.StatePass:
			pass++
		case probe.StateWarn:
			warn++
		case probe.StateFail:
			fail++
		}
	}
	return pass, warn, fail
}
