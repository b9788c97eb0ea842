package probe

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ExecConfig configures a command probe. Command probes cover process
// liveness checks (pgrep, systemctl is-active) and trivial round-trips
// against services without a dedicated client.
type ExecConfig struct {
	// Name is the unique probe name.
	Name string

	// Command is run via the shell; exit status 0 means the target is
	// healthy.
	Command string

	// Timeout is the per-execution timeout. Default: DefaultTimeout.
	Timeout time.Duration
}

// ExecProbe checks an external command's exit status.
type ExecProbe struct {
	config ExecConfig
}

// NewExecProbe creates a new command probe.
func NewExecProbe(config ExecConfig) *ExecProbe {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &ExecProbe{config: config}
}

// Name returns the probe name.
func (p *ExecProbe) Name() string {
	return p.config.Name
}

// Probe runs the command once under the probe timeout.
func (p *ExecProbe) Probe(ctx context.Context) Result {
	return execute(ctx, p.config.Name, p.config.Timeout, func(ctx context.Context) Result {
		cmd := exec.CommandContext(ctx, "/bin/sh", "-c", p.config.Command)
		output, err := cmd.CombinedOutput()
		if err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return Fail(p.config.Name, DetailTimeout, ErrTimeout)
			}
			detail := strings.TrimSpace(string(output))
			if detail == "" {
				detail = err.Error()
			} else {
				detail = fmt.Sprintf("%v: %s", err, firstLine(detail))
			}
			return Fail(p.config.Name, detail, err)
		}
		return Pass(p.config.Name, "exit 0")
	})
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
