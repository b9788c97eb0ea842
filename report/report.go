// Package report renders a health snapshot for humans or machines and
// maps the overall state to a process exit code.
package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"vigil/aggregate"
	"vigil/probe"
)

// Config configures the reporter.
type Config struct {
	// FailOnWarn makes a WARN-only snapshot exit nonzero. Default false:
	// routine degraded states should not break cron callers, but they
	// are always visually flagged.
	FailOnWarn bool
}

// Reporter renders snapshots.
type Reporter struct {
	config Config
}

// New creates a reporter.
func New(config Config) *Reporter {
	return &Reporter{config: config}
}

// ExitCode maps the overall state to the process exit code.
func (r *Reporter) ExitCode(overall probe.State) int {
	switch overall {
	case probe.StateFail:
		return 1
	case probe.StateWarn:
		if r.config.FailOnWarn {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// Render returns the human-readable report. Every probe appears exactly
// once, in registration order, followed by an overall summary line.
func (r *Reporter) Render(snap aggregate.Snapshot) string {
	var b strings.Builder

	nameWidth := 0
	for _, res := range snap.Results {
		if len(res.Probe) > nameWidth {
			nameWidth = len(res.Probe)
		}
	}

	for _, res := range snap.Results {
		group := ""
		if res.Group != "" {
			group = dimText.Render(" [" + res.Group + "]")
		}
		optional := ""
		if !res.Mandatory {
			optional = dimText.Render(" (optional)")
		}
		detail := ""
		if res.Detail != "" {
			detail = "  " + dimText.Render(res.Detail)
		}
		fmt.Fprintf(&b, "  %s  %-*s %s  %s%s%s%s\n",
			stateDot(res.State),
			nameWidth, res.Probe,
			stateLabel(res.State),
			latencyText(res.Latency),
			group,
			optional,
			detail,
		)
	}

	pass, warn, fail := snap.Counts()
	summary := fmt.Sprintf("overall: %s (%d pass, %d warn, %d fail) in %s",
		snap.Overall, pass, warn, fail, snap.Elapsed.Round(time.Millisecond))

	b.WriteString("\n")
	switch snap.Overall {
	case probe.StatePass:
		b.WriteString(healthy.Render(summary))
	case probe.StateWarn:
		b.WriteString(warning.Render(summary))
	default:
		b.WriteString(unhealthy.Render(summary))
	}
	b.WriteString("\n")
	return b.String()
}

// JSONReport is the machine-readable snapshot document.
type JSONReport struct {
	Timestamp time.Time    `json:"timestamp"`
	Overall   string       `json:"overall"`
	ElapsedMS int64        `json:"elapsed_ms"`
	Probes    []JSONResult `json:"probes"`
}

// JSONResult is one probe entry in the JSON report.
type JSONResult struct {
	Name      string `json:"name"`
	Group     string `json:"group,omitempty"`
	Mandatory bool   `json:"mandatory"`
	State     string `json:"state"`
	LatencyMS int64  `json:"latency_ms"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RenderJSON returns the machine-readable report.
func (r *Reporter) RenderJSON(snap aggregate.Snapshot) ([]byte, error) {
	doc := JSONReport{
		Timestamp: snap.Timestamp.UTC(),
		Overall:   snap.Overall.String(),
		ElapsedMS: snap.Elapsed.Milliseconds(),
		Probes:    make([]JSONResult, 0, len(snap.Results)),
	}
	for _, res := range snap.Results {
		entry := JSONResult{
			Name:      res.Probe,
			Group:     res.Group,
			Mandatory: res.Mandatory,
			State:     res.State.String(),
			LatencyMS: res.Latency.Milliseconds(),
			Detail:    res.Detail,
		}
		if res.Err != nil {
			entry.Error = res.Err.Error()
		}
		doc.Probes = append(doc.Probes, entry)
	}
	return json.MarshalIndent(doc, "", "  ")
}

func latencyText(d time.Duration) string {
	if d <= 0 {
		return dimText.Render("     -")
	}
	return dimText.Render(fmt.Sprintf("%6s", d.Round(time.Millisecond)))
}
