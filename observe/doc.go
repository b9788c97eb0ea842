// Package observe provides structured logging and OpenTelemetry telemetry
// for the health monitor.
//
// An Observer bundles a tracer, a meter, and a structured JSON logger
// behind one configuration. Disabled subsystems degrade to noops so
// calling code never branches on whether telemetry is configured.
//
// # Basic Usage
//
//	obs, err := observe.NewObserver(ctx, observe.Config{
//	    ServiceName: "vigil",
//	    Version:     version,
//	    Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
//	    Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "prometheus"},
//	})
//	if err != nil {
//	    return err
//	}
//	defer obs.Shutdown(ctx)
//
//	log := obs.Logger().WithProbe("api")
//	log.Warn(ctx, "probe degraded", observe.Field{Key: "detail", Value: detail})
//
// Metrics wraps the meter with the monitor's instruments: probe run and
// failure counters and latency histograms, plus per-run aggregates.
package observe
