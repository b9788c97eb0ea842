// Package probe provides bounded single-target health checks.
//
// A Prober issues exactly one check against one target and returns a
// tri-state Result: pass, warn, or fail. Errors never escape the probe
// boundary; network failures, timeouts, and unexpected responses are all
// captured into the Result.
//
// # States
//
// StateFail means the target is unreachable or timed out (hard
// connectivity failure). StateWarn means the target answered but the
// response missed the configured Expectation (reachable but degraded).
// The distinction matters downstream: alerting treats the two with
// different urgency.
//
// # Basic Usage
//
//	p := probe.NewHTTPProbe(probe.HTTPConfig{
//	    Name:    "api",
//	    URL:     "https://api.internal/health",
//	    Timeout: 5 * time.Second,
//	    Expect: &probe.Expectation{
//	        JSONField: "status",
//	        JSONValue: "healthy",
//	    },
//	})
//
//	result := p.Probe(ctx)
//	if result.State == probe.StateFail {
//	    log.Printf("api down: %s", result.Detail)
//	}
//
// Besides HTTP, the package ships probes for TCP ports, external commands
// (process liveness), PostgreSQL, and Redis.
package probe
