// Package monitor orchestrates one health-check cycle: run all probes,
// fold the snapshot into persisted failure streaks, fire alerts, and
// trigger recovery actions.
package monitor

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"vigil/aggregate"
	"vigil/alert"
	"vigil/observe"
	"vigil/probe"
	"vigil/recovery"
	"vigil/registry"
	"vigil/state"
)

// Config configures the monitor.
type Config struct {
	// Environment selects which registered probes run.
	Environment string

	// NoRecover disables recovery actions for this monitor.
	NoRecover bool
}

// Deps are the collaborators of a monitor. Notifier and Recovery are
// optional; Logger and Metrics fall back to noops when nil.
type Deps struct {
	Registry *registry.Registry
	Runner   *aggregate.Runner
	Policy   *alert.Policy
	Recovery *recovery.Runner
	Store    *state.Store
	Notifier *alert.Notifier
	Logger   observe.Logger
	Metrics  observe.Metrics
	Tracer   trace.Tracer
}

// RecoveryOutcome pairs a probe name with its recovery decision.
type RecoveryOutcome struct {
	Probe   string
	Outcome recovery.Outcome
}

// Report is everything one cycle produced.
type Report struct {
	Snapshot   aggregate.Snapshot
	Events     []alert.Event
	Recoveries []RecoveryOutcome

	// StateReset is true when the persisted state file was unreadable
	// and all streaks were reset to zero.
	StateReset bool
}

// Monitor runs check cycles against persisted cross-run state.
type Monitor struct {
	config Config
	deps   Deps
}

// New creates a monitor.
func New(config Config, deps Deps) *Monitor {
	if deps.Logger == nil {
		deps.Logger = observe.NewLoggerWithWriter("error", noopWriter{})
	}
	if deps.Metrics == nil {
		deps.Metrics = observe.NoopMetrics()
	}
	if deps.Tracer == nil {
		deps.Tracer = tracenoop.NewTracerProvider().Tracer("noop")
	}
	return &Monitor{config: config, deps: deps}
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }

// RunOnce executes one full cycle. The persisted state lock is held for
// the whole cycle so an overlapping invocation cannot lose streak
// updates. Errors from probes never surface here; only state persistence
// and locking can fail.
func (m *Monitor) RunOnce(ctx context.Context) (Report, error) {
	ctx, span := m.deps.Tracer.Start(ctx, "vigil.run",
		trace.WithAttributes(attribute.String("environment", m.config.Environment)))
	defer span.End()

	log := m.deps.Logger

	release, err := m.deps.Store.Lock(ctx)
	if err != nil {
		return Report{}, err
	}
	defer release()

	doc, err := m.deps.Store.Load()
	report := Report{}
	if err != nil {
		// Corrupt state resets every streak to zero; a blip in the
		// state file must never take the monitor down.
		report.StateReset = true
		log.Warn(ctx, "state file unreadable, resetting streaks",
			observe.Field{Key: "path", Value: m.deps.Store.Path()},
			observe.Field{Key: "error", Value: err.Error()})
	}

	entries := m.deps.Registry.ProbesFor(m.config.Environment)
	report.Snapshot = m.runProbes(ctx, entries)

	now := time.Now()
	doc.Streaks, report.Events = m.deps.Policy.Evaluate(report.Snapshot, doc.Streaks, now)

	m.notify(ctx, report.Events)
	report.Recoveries = m.recover(ctx, &doc, now)

	if err := m.deps.Store.Save(doc); err != nil {
		return report, err
	}

	m.deps.Metrics.RecordRun(ctx, report.Snapshot.Overall, report.Snapshot.Elapsed)
	span.SetAttributes(
		attribute.String("overall", report.Snapshot.Overall.String()),
		attribute.Int("alerts", len(report.Events)),
	)
	return report, nil
}

func (m *Monitor) runProbes(ctx context.Context, entries []registry.Entry) aggregate.Snapshot {
	snap := m.deps.Runner.Run(ctx, entries)
	for _, res := range snap.Results {
		m.deps.Metrics.RecordResult(ctx, res.Result)
		plog := m.deps.Logger.WithProbe(res.Probe)
		fields := []observe.Field{
			{Key: "state", Value: res.State.String()},
			{Key: "latency_ms", Value: res.Latency.Milliseconds()},
			{Key: "detail", Value: res.Detail},
		}
		if res.State == probe.StatePass {
			plog.Debug(ctx, "probe passed", fields...)
		} else {
			plog.Warn(ctx, "probe did not pass", fields...)
		}
	}
	return snap
}

func (m *Monitor) notify(ctx context.Context, events []alert.Event) {
	if m.deps.Notifier == nil || len(events) == 0 {
		return
	}
	if err := m.deps.Notifier.Notify(ctx, events); err != nil {
		// Best effort: a broken webhook must not fail the run.
		m.deps.Logger.Warn(ctx, "alert delivery failed",
			observe.Field{Key: "error", Value: err.Error()},
			observe.Field{Key: "alerts", Value: len(events)})
	}
}

func (m *Monitor) recover(ctx context.Context, doc *state.Document, now time.Time) []RecoveryOutcome {
	if m.deps.Recovery == nil || m.config.NoRecover {
		return nil
	}

	var outcomes []RecoveryOutcome
	for _, streak := range sortedStreaks(doc.Streaks) {
		if streak.Consecutive == 0 {
			continue
		}
		rec, outcome := m.deps.Recovery.MaybeRecover(ctx, streak.Probe, streak, doc.Recoveries[streak.Probe], now)
		doc.Recoveries[streak.Probe] = rec
		if outcome.Reason == recovery.SkipNoAction {
			continue
		}
		outcomes = append(outcomes, RecoveryOutcome{Probe: streak.Probe, Outcome: outcome})

		plog := m.deps.Logger.WithProbe(streak.Probe)
		if outcome.Attempted {
			fields := []observe.Field{{Key: "output", Value: outcome.Output}}
			if outcome.Err != nil {
				fields = append(fields, observe.Field{Key: "error", Value: outcome.Err.Error()})
				plog.Error(ctx, "recovery command failed", fields...)
			} else {
				plog.Info(ctx, "recovery attempted", fields...)
			}
		} else {
			plog.Debug(ctx, "recovery skipped",
				observe.Field{Key: "reason", Value: outcome.Reason})
		}
	}
	return outcomes
}
