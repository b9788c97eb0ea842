package monitor

import (
	"context"
	"sort"
	"time"

	"vigil/alert"
	"vigil/observe"
)

// Watch runs check cycles at a fixed interval until the context is
// canceled. The first cycle runs immediately. onReport, when non-nil, is
// called after every cycle; cycle errors are logged and the loop keeps
// going, matching cron semantics where one bad tick never stops the
// schedule.
func (m *Monitor) Watch(ctx context.Context, interval time.Duration, onReport func(Report)) error {
	if interval < time.Second {
		interval = time.Second
	}

	m.tick(ctx, onReport)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.tick(ctx, onReport)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *Monitor) tick(ctx context.Context, onReport func(Report)) {
	report, err := m.RunOnce(ctx)
	if err != nil {
		m.deps.Logger.Error(ctx, "check cycle failed",
			observe.Field{Key: "error", Value: err.Error()})
		return
	}
	if onReport != nil {
		onReport(report)
	}
}

// sortedStreaks returns the streaks ordered by probe name so recovery
// decisions and their log lines stay deterministic across runs.
func sortedStreaks(streaks map[string]alert.Streak) []alert.Streak {
	out := make([]alert.Streak, 0, len(streaks))
	for _, s := range streaks {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Probe < out[j].Probe })
	return out
}
