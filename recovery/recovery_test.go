package recovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"vigil/alert"
)

func stubRunner(actions map[string]Action, fn func(ctx context.Context, command string) (string, error)) *Runner {
	r := NewRunner(actions)
	r.runCommand = fn
	return r
}

func TestNewRunner_Defaults(t *testing.T) {
	r := NewRunner(map[string]Action{
		"db": {Command: "restart db"},
	})

	action := r.actions["db"]
	if action.Threshold != alert.DefaultThreshold {
		t.Errorf("Threshold = %d, want %d", action.Threshold, alert.DefaultThreshold)
	}
	if action.Cooldown != DefaultCooldown {
		t.Errorf("Cooldown = %v, want %v", action.Cooldown, DefaultCooldown)
	}
}

func TestMaybeRecover_NoAction(t *testing.T) {
	r := NewRunner(nil)
	streak := alert.Streak{Probe: "db", Consecutive: 10}

	_, outcome := r.MaybeRecover(context.Background(), "db", streak, Record{}, time.Now())
	if outcome.Attempted {
		t.Error("Attempted = true, want false without an action")
	}
	if outcome.Reason != SkipNoAction {
		t.Errorf("Reason = %v, want %v", outcome.Reason, SkipNoAction)
	}
}

func TestMaybeRecover_BelowThreshold(t *testing.T) {
	r := stubRunner(map[string]Action{
		"db": {Command: "restart db", Threshold: 3},
	}, func(ctx context.Context, command string) (string, error) {
		t.Fatal("command should not run below threshold")
		return "", nil
	})
	streak := alert.Streak{Probe: "db", Consecutive: 2}

	rec, outcome := r.MaybeRecover(context.Background(), "db", streak, Record{}, time.Now())
	if outcome.Reason != SkipBelowThreshold {
		t.Errorf("Reason = %v, want %v", outcome.Reason, SkipBelowThreshold)
	}
	if !rec.LastAttempt.IsZero() {
		t.Error("LastAttempt should stay zero when skipped")
	}
}

func TestMaybeRecover_Fires(t *testing.T) {
	var ranCommand string
	r := stubRunner(map[string]Action{
		"db": {Command: "systemctl restart db", Threshold: 3},
	}, func(ctx context.Context, command string) (string, error) {
		ranCommand = command
		return "restarted", nil
	})
	streak := alert.Streak{Probe: "db", Consecutive: 3}
	now := time.Unix(1700000000, 0)

	rec, outcome := r.MaybeRecover(context.Background(), "db", streak, Record{}, now)
	if !outcome.Attempted {
		t.Fatalf("Attempted = false, want true (%s)", outcome.Reason)
	}
	if ranCommand != "systemctl restart db" {
		t.Errorf("command = %q, want the configured remediation", ranCommand)
	}
	if outcome.Output != "restarted" {
		t.Errorf("Output = %q, want 'restarted'", outcome.Output)
	}
	if rec.LastAttempt != now {
		t.Errorf("LastAttempt = %v, want %v", rec.LastAttempt, now)
	}
}

func TestMaybeRecover_Cooldown(t *testing.T) {
	calls := 0
	r := stubRunner(map[string]Action{
		"db": {Command: "restart", Threshold: 1, Cooldown: 5 * time.Minute},
	}, func(ctx context.Context, command string) (string, error) {
		calls++
		return "", nil
	})
	streak := alert.Streak{Probe: "db", Consecutive: 5}
	start := time.Unix(1700000000, 0)

	rec, outcome := r.MaybeRecover(context.Background(), "db", streak, Record{}, start)
	if !outcome.Attempted {
		t.Fatalf("first attempt skipped: %s", outcome.Reason)
	}

	// One minute later the cooldown is still active.
	rec, outcome = r.MaybeRecover(context.Background(), "db", streak, rec, start.Add(time.Minute))
	if outcome.Attempted {
		t.Fatal("second attempt inside cooldown should be skipped")
	}
	if outcome.Reason != SkipCooldown {
		t.Errorf("Reason = %v, want %v", outcome.Reason, SkipCooldown)
	}

	// After the cooldown it may fire again.
	_, outcome = r.MaybeRecover(context.Background(), "db", streak, rec, start.Add(5*time.Minute))
	if !outcome.Attempted {
		t.Fatalf("attempt after cooldown skipped: %s", outcome.Reason)
	}
	if calls != 2 {
		t.Errorf("command ran %d times, want 2", calls)
	}
}

func TestMaybeRecover_FailedCommandConsumesCooldown(t *testing.T) {
	cmdErr := errors.New("exit status 1")
	r := stubRunner(map[string]Action{
		"db": {Command: "restart", Threshold: 1, Cooldown: 5 * time.Minute},
	}, func(ctx context.Context, command string) (string, error) {
		return "permission denied", cmdErr
	})
	streak := alert.Streak{Probe: "db", Consecutive: 3}
	now := time.Unix(1700000000, 0)

	rec, outcome := r.MaybeRecover(context.Background(), "db", streak, Record{}, now)
	if !outcome.Attempted {
		t.Fatalf("Attempted = false: %s", outcome.Reason)
	}
	if !errors.Is(outcome.Err, cmdErr) {
		t.Errorf("Err = %v, want the command error", outcome.Err)
	}
	if rec.LastAttempt != now {
		t.Error("a failed remediation must still consume the cooldown")
	}

	_, outcome = r.MaybeRecover(context.Background(), "db", streak, rec, now.Add(time.Minute))
	if outcome.Reason != SkipCooldown {
		t.Errorf("Reason = %v, want %v after a failed attempt", outcome.Reason, SkipCooldown)
	}
}

func TestCooldownRemaining(t *testing.T) {
	r := NewRunner(map[string]Action{
		"db": {Command: "restart", Cooldown: 5 * time.Minute},
	})
	start := time.Unix(1700000000, 0)
	rec := Record{Probe: "db", LastAttempt: start}

	tests := []struct {
		name string
		at   time.Time
		want time.Duration
	}{
		{"just attempted", start, 5 * time.Minute},
		{"halfway", start.Add(150 * time.Second), 150 * time.Second},
		{"expired", start.Add(10 * time.Minute), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.CooldownRemaining("db", rec, tt.at); got != tt.want {
				t.Errorf("CooldownRemaining() = %v, want %v", got, tt.want)
			}
		})
	}

	if got := r.CooldownRemaining("unknown", rec, start); got != 0 {
		t.Errorf("CooldownRemaining(unknown) = %v, want 0", got)
	}
}

func TestRunShell(t *testing.T) {
	out, err := runShell(context.Background(), "echo hello")
	if err != nil {
		t.Fatalf("runShell() error = %v", err)
	}
	if out != "hello" {
		t.Errorf("output = %q, want 'hello'", out)
	}

	out, err = runShell(context.Background(), "echo oops >&2; exit 2")
	if err == nil {
		t.Fatal("runShell() should fail on a nonzero exit")
	}
	if out != "oops" {
		t.Errorf("output = %q, want stderr captured", out)
	}
}
