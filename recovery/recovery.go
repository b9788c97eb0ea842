// Package recovery maps failing probes to remediation commands, rate
// limited by a per-probe cooldown so a broken remediation cannot turn into
// a restart storm.
package recovery

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"vigil/alert"
)

const (
	// DefaultCooldown is the minimum time between recovery attempts for
	// the same probe.
	DefaultCooldown = 5 * time.Minute

	// DefaultCommandTimeout bounds the remediation command itself.
	DefaultCommandTimeout = 30 * time.Second
)

// Record tracks the last recovery attempt for one probe. It persists
// across invocations.
type Record struct {
	Probe       string    `json:"probe"`
	LastAttempt time.Time `json:"last_attempt,omitzero"`
}

// Action is the remediation configured for one probe.
type Action struct {
	// Command is run via the shell, e.g. a service restart.
	Command string

	// Threshold is the streak length required before firing.
	// Default: the alert default threshold.
	Threshold int

	// Cooldown is the minimum time between attempts. Default:
	// DefaultCooldown.
	Cooldown time.Duration
}

// Outcome describes one MaybeRecover decision.
type Outcome struct {
	// Attempted is true when the remediation command was invoked.
	Attempted bool

	// Reason explains a skip, empty when Attempted.
	Reason string

	// Output is the trimmed combined output of the command.
	Output string

	// Err is the command error, if any. A failed remediation still
	// consumes the cooldown.
	Err error
}

// Skip reasons.
const (
	SkipNoAction       = "no recovery action configured"
	SkipBelowThreshold = "streak below recovery threshold"
	SkipCooldown       = "cooldown active"
)

// Runner fires remediation commands with cooldown enforcement.
type Runner struct {
	actions        map[string]Action
	commandTimeout time.Duration

	// runCommand is swappable for tests.
	runCommand func(ctx context.Context, command string) (string, error)
}

// NewRunner creates a recovery runner for the given per-probe actions.
func NewRunner(actions map[string]Action) *Runner {
	normalized := make(map[string]Action, len(actions))
	for name, action := range actions {
		if action.Threshold <= 0 {
			action.Threshold = alert.DefaultThreshold
		}
		if action.Cooldown <= 0 {
			action.Cooldown = DefaultCooldown
		}
		normalized[name] = action
	}
	return &Runner{
		actions:        normalized,
		commandTimeout: DefaultCommandTimeout,
		runCommand:     runShell,
	}
}

// MaybeRecover fires the probe's remediation when the streak has reached
// the recovery threshold and the cooldown has expired. The attempt time is
// recorded and the cooldown consumed regardless of the command outcome;
// this component never blocks to verify its own fix. Whether the service
// actually recovered shows up as a probe result on the next run.
func (r *Runner) MaybeRecover(ctx context.Context, probeName string, streak alert.Streak, rec Record, now time.Time) (Record, Outcome) {
	rec.Probe = probeName

	action, ok := r.actions[probeName]
	if !ok || action.Command == "" {
		return rec, Outcome{Reason: SkipNoAction}
	}
	if streak.Consecutive < action.Threshold {
		return rec, Outcome{Reason: SkipBelowThreshold}
	}
	if !rec.LastAttempt.IsZero() && now.Sub(rec.LastAttempt) < action.Cooldown {
		return rec, Outcome{Reason: SkipCooldown}
	}

	rec.LastAttempt = now

	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	output, err := r.runCommand(ctx, action.Command)
	return rec, Outcome{Attempted: true, Output: output, Err: err}
}

// CooldownRemaining reports how long until the probe may be recovered
// again.
func (r *Runner) CooldownRemaining(probeName string, rec Record, now time.Time) time.Duration {
	action, ok := r.actions[probeName]
	if !ok || rec.LastAttempt.IsZero() {
		return 0
	}
	remaining := action.Cooldown - now.Sub(rec.LastAttempt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func runShell(ctx context.Context, command string) (string, error) {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	output, err := cmd.CombinedOutput()
	trimmed := strings.TrimSpace(string(output))
	if err != nil {
		return trimmed, fmt.Errorf("recovery command: %w", err)
	}
	return trimmed, nil
}
