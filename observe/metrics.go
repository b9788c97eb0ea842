package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"vigil/probe"
)

// Metrics records health-check metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordResult records one probe execution.
	RecordResult(ctx context.Context, res probe.Result)

	// RecordRun records one aggregator run with its overall state.
	RecordRun(ctx context.Context, overall probe.State, elapsed time.Duration)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	probeCount   metric.Int64Counter
	failCount    metric.Int64Counter
	latencyHist  metric.Float64Histogram
	runCount     metric.Int64Counter
	runElapsedMS metric.Float64Histogram
}

// NewMetrics creates a Metrics instance with the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	probeCount, err := meter.Int64Counter(
		"vigil.probe.runs",
		metric.WithDescription("Total number of probe executions"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, err
	}

	failCount, err := meter.Int64Counter(
		"vigil.probe.failures",
		metric.WithDescription("Total number of non-passing probe executions"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, err
	}

	latencyHist, err := meter.Float64Histogram(
		"vigil.probe.latency_ms",
		metric.WithDescription("Probe execution latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	runCount, err := meter.Int64Counter(
		"vigil.run.total",
		metric.WithDescription("Total number of aggregator runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	runElapsedMS, err := meter.Float64Histogram(
		"vigil.run.elapsed_ms",
		metric.WithDescription("Aggregator run duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		probeCount:   probeCount,
		failCount:    failCount,
		latencyHist:  latencyHist,
		runCount:     runCount,
		runElapsedMS: runElapsedMS,
	}, nil
}

// RecordResult records metrics for one probe execution.
func (m *metricsImpl) RecordResult(ctx context.Context, res probe.Result) {
	opt := metric.WithAttributes(
		attribute.String("probe.name", res.Probe),
		attribute.String("probe.state", res.State.String()),
	)

	m.probeCount.Add(ctx, 1, opt)
	if res.State != probe.StatePass {
		m.failCount.Add(ctx, 1, opt)
	}
	m.latencyHist.Record(ctx, float64(res.Latency.Milliseconds()), opt)
}

// RecordRun records metrics for one aggregator run.
func (m *metricsImpl) RecordRun(ctx context.Context, overall probe.State, elapsed time.Duration) {
	opt := metric.WithAttributes(
		attribute.String("run.overall", overall.String()),
	)
	m.runCount.Add(ctx, 1, opt)
	m.runElapsedMS.Record(ctx, float64(elapsed.Milliseconds()), opt)
}

// NoopMetrics returns a metrics implementation that does nothing.
func NoopMetrics() Metrics {
	return &noopMetrics{}
}

type noopMetrics struct{}

func (m *noopMetrics) RecordResult(ctx context.Context, res probe.Result)                        {}
func (m *noopMetrics) RecordRun(ctx context.Context, overall probe.State, elapsed time.Duration) {}
