// Package alert turns probe results into failure streaks and decides when
// a sustained outage is worth an alert.
package alert

import (
	"time"

	"vigil/aggregate"
	"vigil/probe"
)

const (
	// DefaultThreshold is the number of consecutive non-PASS results
	// before an alert fires.
	DefaultThreshold = 3

	// DefaultSuppression is the minimum time between repeat alerts for
	// the same probe.
	DefaultSuppression = 30 * time.Minute
)

// Streak tracks consecutive non-PASS results for one probe across runs.
// It persists between invocations so repeated cron ticks can tell a
// sustained outage from a single blip.
type Streak struct {
	Probe       string    `json:"probe"`
	Consecutive int       `json:"consecutive_failures"`
	LastAlert   time.Time `json:"last_alert,omitzero"`
}

// Event is a fired alert.
type Event struct {
	Probe       string      `json:"probe"`
	State       probe.State `json:"-"`
	StateText   string      `json:"state"`
	Consecutive int         `json:"consecutive_failures"`
	Detail      string      `json:"detail,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

// Rule is the alerting configuration for one probe.
type Rule struct {
	// Threshold is the streak length that triggers an alert.
	Threshold int

	// Suppression is the minimum time between repeat alerts.
	Suppression time.Duration
}

func (r Rule) withDefaults() Rule {
	if r.Threshold <= 0 {
		r.Threshold = DefaultThreshold
	}
	if r.Suppression <= 0 {
		r.Suppression = DefaultSuppression
	}
	return r
}

// Policy decides when streaks cross their alert threshold. Thresholds and
// suppression windows are per-probe configurable; critical probes may
// alert on the first failure.
type Policy struct {
	defaults Rule
	rules    map[string]Rule
}

// NewPolicy creates a policy with the given default rule.
func NewPolicy(defaults Rule) *Policy {
	return &Policy{
		defaults: defaults.withDefaults(),
		rules:    make(map[string]Rule),
	}
}

// SetRule overrides the rule for one probe. Zero fields fall back to the
// policy defaults.
func (p *Policy) SetRule(probeName string, rule Rule) {
	if rule.Threshold <= 0 {
		rule.Threshold = p.defaults.Threshold
	}
	if rule.Suppression <= 0 {
		rule.Suppression = p.defaults.Suppression
	}
	p.rules[probeName] = rule
}

// RuleFor returns the effective rule for a probe.
func (p *Policy) RuleFor(probeName string) Rule {
	if rule, ok := p.rules[probeName]; ok {
		return rule
	}
	return p.defaults
}

// Evaluate folds a snapshot into the streaks and returns the updated
// streaks plus any fired events. The input map is not mutated.
//
// A FAIL or WARN result increments the probe's streak; a PASS resets it to
// zero. An event fires when the streak reaches the threshold and the probe
// is outside its suppression window, which re-notifies on sustained
// outages without storming on a flapping probe.
func (p *Policy) Evaluate(snap aggregate.Snapshot, streaks map[string]Streak, now time.Time) (map[string]Streak, []Event) {
	updated := make(map[string]Streak, len(snap.Results))
	for name, s := range streaks {
		updated[name] = s
	}

	var events []Event
	for _, res := range snap.Results {
		streak := updated[res.Probe]
		streak.Probe = res.Probe

		if res.State == probe.StatePass {
			streak.Consecutive = 0
			updated[res.Probe] = streak
			continue
		}

		streak.Consecutive++
		rule := p.RuleFor(res.Probe)
		if streak.Consecutive >= rule.Threshold && p.canAlert(streak, rule, now) {
			events = append(events, Event{
				Probe:       res.Probe,
				State:       res.State,
				StateText:   res.State.String(),
				Consecutive: streak.Consecutive,
				Detail:      res.Detail,
				Timestamp:   now,
			})
			streak.LastAlert = now
		}
		updated[res.Probe] = streak
	}
	return updated, events
}

func (p *Policy) canAlert(streak Streak, rule Rule, now time.Time) bool {
	if streak.LastAlert.IsZero() {
		return true
	}
	return now.Sub(streak.LastAlert) >= rule.Suppression
}
