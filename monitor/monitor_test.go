package monitor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vigil/aggregate"
	"vigil/alert"
	"vigil/probe"
	"vigil/recovery"
	"vigil/registry"
	"vigil/state"
)

// flakyProbe fails until healed.
type flakyProbe struct {
	name   string
	healed bool
}

func (p *flakyProbe) Name() string { return p.name }

func (p *flakyProbe) Probe(ctx context.Context) probe.Result {
	if p.healed {
		return probe.Pass(p.name, "ok")
	}
	return probe.Fail(p.name, "down", nil)
}

func testMonitor(t *testing.T, p probe.Prober, actions map[string]recovery.Action) (*Monitor, *state.Store) {
	t.Helper()

	reg := registry.New()
	if err := reg.Register(registry.Entry{Prober: p, Mandatory: true}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	var rec *recovery.Runner
	if actions != nil {
		rec = recovery.NewRunner(actions)
	}

	store := state.NewStore(filepath.Join(t.TempDir(), "state.json"))
	mon := New(Config{Environment: "local"}, Deps{
		Registry: reg,
		Runner:   aggregate.NewRunner(aggregate.Config{Budget: 5 * time.Second}),
		Policy:   alert.NewPolicy(alert.Rule{Threshold: 3, Suppression: 30 * time.Minute}),
		Recovery: rec,
		Store:    store,
	})
	return mon, store
}

func TestMonitor_StreakAcrossRuns(t *testing.T) {
	p := &flakyProbe{name: "db"}
	mon, store := testMonitor(t, p, nil)
	ctx := context.Background()

	// Two failing runs build the streak without firing.
	for i := 0; i < 2; i++ {
		rep, err := mon.RunOnce(ctx)
		if err != nil {
			t.Fatalf("run %d: RunOnce() error = %v", i+1, err)
		}
		if len(rep.Events) != 0 {
			t.Fatalf("run %d: got %d events, want 0", i+1, len(rep.Events))
		}
	}

	doc, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if doc.Streaks["db"].Consecutive != 2 {
		t.Errorf("persisted Consecutive = %d, want 2", doc.Streaks["db"].Consecutive)
	}

	// Third failing run crosses the threshold.
	rep, err := mon.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if len(rep.Events) != 1 {
		t.Fatalf("got %d events, want 1 at the threshold", len(rep.Events))
	}
	if rep.Events[0].Probe != "db" || rep.Events[0].Consecutive != 3 {
		t.Errorf("event = %+v", rep.Events[0])
	}

	// Recovery resets the streak.
	p.healed = true
	rep, err = mon.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if rep.Snapshot.Overall != probe.StatePass {
		t.Errorf("Overall = %v, want StatePass", rep.Snapshot.Overall)
	}

	doc, _ = store.Load()
	if doc.Streaks["db"].Consecutive != 0 {
		t.Errorf("Consecutive = %d, want 0 after a pass", doc.Streaks["db"].Consecutive)
	}
}

func TestMonitor_RecoveryFiresOnceThenCoolsDown(t *testing.T) {
	p := &flakyProbe{name: "db"}
	marker := filepath.Join(t.TempDir(), "ran")
	mon, store := testMonitor(t, p, map[string]recovery.Action{
		"db": {Command: "echo run >> " + marker, Threshold: 2, Cooldown: time.Hour},
	})
	ctx := context.Background()

	if _, err := mon.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	rep, err := mon.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if len(rep.Recoveries) != 1 || !rep.Recoveries[0].Outcome.Attempted {
		t.Fatalf("Recoveries = %+v, want one attempt at the threshold", rep.Recoveries)
	}

	// Still failing, but the cooldown holds.
	rep, err = mon.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if len(rep.Recoveries) != 1 || rep.Recoveries[0].Outcome.Attempted {
		t.Fatalf("Recoveries = %+v, want one cooldown skip", rep.Recoveries)
	}
	if rep.Recoveries[0].Outcome.Reason != recovery.SkipCooldown {
		t.Errorf("Reason = %v, want %v", rep.Recoveries[0].Outcome.Reason, recovery.SkipCooldown)
	}

	data, err := os.ReadFile(marker)
	if err != nil {
		t.Fatalf("remediation never ran: %v", err)
	}
	if string(data) != "run\n" {
		t.Errorf("remediation output = %q, want a single run", data)
	}

	doc, _ := store.Load()
	if doc.Recoveries["db"].LastAttempt.IsZero() {
		t.Error("LastAttempt should be persisted")
	}
}

func TestMonitor_NoRecoverDisablesActions(t *testing.T) {
	p := &flakyProbe{name: "db"}
	marker := filepath.Join(t.TempDir(), "ran")

	reg := registry.New()
	if err := reg.Register(registry.Entry{Prober: p, Mandatory: true}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	mon := New(Config{Environment: "local", NoRecover: true}, Deps{
		Registry: reg,
		Runner:   aggregate.NewRunner(aggregate.Config{}),
		Policy:   alert.NewPolicy(alert.Rule{Threshold: 1}),
		Recovery: recovery.NewRunner(map[string]recovery.Action{
			"db": {Command: "touch " + marker, Threshold: 1},
		}),
		Store: state.NewStore(filepath.Join(t.TempDir(), "state.json")),
	})

	rep, err := mon.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if len(rep.Recoveries) != 0 {
		t.Errorf("Recoveries = %+v, want none with NoRecover", rep.Recoveries)
	}
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Error("remediation ran despite NoRecover")
	}
}

func TestMonitor_CorruptStateResets(t *testing.T) {
	p := &flakyProbe{name: "db"}
	mon, store := testMonitor(t, p, nil)
	ctx := context.Background()

	if _, err := mon.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if err := os.WriteFile(store.Path(), []byte("garbage"), 0o644); err != nil {
		t.Fatalf("corrupt state file: %v", err)
	}

	rep, err := mon.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce() error = %v, corruption must not be fatal", err)
	}
	if !rep.StateReset {
		t.Error("StateReset = false, want true for a corrupt state file")
	}

	// The rewritten file is valid again and counts from one.
	doc, err := store.Load()
	if err != nil {
		t.Fatalf("Load() after reset error = %v", err)
	}
	if doc.Streaks["db"].Consecutive != 1 {
		t.Errorf("Consecutive = %d, want 1 after reset", doc.Streaks["db"].Consecutive)
	}
}

func TestMonitor_DeletedStateFile(t *testing.T) {
	p := &flakyProbe{name: "db"}
	mon, store := testMonitor(t, p, nil)
	ctx := context.Background()

	if _, err := mon.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if err := os.Remove(store.Path()); err != nil {
		t.Fatalf("remove state file: %v", err)
	}

	rep, err := mon.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if rep.StateReset {
		t.Error("a missing file is a fresh start, not a reset")
	}
}

func TestMonitor_EnvironmentFilter(t *testing.T) {
	reg := registry.New()
	probes := []registry.Entry{
		{Prober: probe.NewProbeFunc("everywhere", func(ctx context.Context) probe.Result {
			return probe.Pass("everywhere", "ok")
		}), Mandatory: true},
		{Prober: probe.NewProbeFunc("prod-only", func(ctx context.Context) probe.Result {
			return probe.Fail("prod-only", "down", nil)
		}), Mandatory: true, Environments: []string{"production"}},
	}
	for _, e := range probes {
		if err := reg.Register(e); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
	}

	mon := New(Config{Environment: "local"}, Deps{
		Registry: reg,
		Runner:   aggregate.NewRunner(aggregate.Config{}),
		Policy:   alert.NewPolicy(alert.Rule{}),
		Store:    state.NewStore(filepath.Join(t.TempDir(), "state.json")),
	})

	rep, err := mon.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if len(rep.Snapshot.Results) != 1 {
		t.Fatalf("got %d results, want 1 for the local environment", len(rep.Snapshot.Results))
	}
	if rep.Snapshot.Overall != probe.StatePass {
		t.Errorf("Overall = %v, want StatePass; the prod-only probe must not run", rep.Snapshot.Overall)
	}
}

func TestWatch_StopsOnContextCancel(t *testing.T) {
	p := &flakyProbe{name: "db", healed: true}
	mon, _ := testMonitor(t, p, nil)

	ctx, cancel := context.WithCancel(context.Background())
	reports := make(chan Report, 16)

	done := make(chan error, 1)
	go func() {
		done <- mon.Watch(ctx, time.Second, func(rep Report) { reports <- rep })
	}()

	// The first cycle runs immediately.
	select {
	case <-reports:
	case <-time.After(5 * time.Second):
		t.Fatal("no report from the immediate first cycle")
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Watch() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch() did not stop after cancel")
	}
}
