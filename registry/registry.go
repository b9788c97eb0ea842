// Package registry holds the ordered collection of health probes and
// selects the ones enabled for a given environment.
package registry

import (
	"errors"
	"slices"
	"sync"

	"vigil/probe"
)

var (
	// ErrNilProber indicates an entry without a prober.
	ErrNilProber = errors.New("registry: nil prober")

	// ErrDuplicateProbe indicates a probe name was registered twice.
	ErrDuplicateProbe = errors.New("registry: duplicate probe name")

	// ErrUnnamedProbe indicates a prober with an empty name.
	ErrUnnamedProbe = errors.New("registry: empty probe name")
)

// Entry is one registered probe with its grouping and criticality.
type Entry struct {
	// Prober executes the check.
	Prober probe.Prober

	// Group is the service this probe belongs to, used for reporting.
	Group string

	// Mandatory probes flip the overall state to FAIL when they fail.
	// Non-mandatory probes can at most degrade the overall state to WARN.
	Mandatory bool

	// Environments lists where this probe is enabled. Empty means every
	// environment.
	Environments []string
}

// EnabledIn reports whether the entry runs in the given environment.
func (e Entry) EnabledIn(env string) bool {
	if len(e.Environments) == 0 {
		return true
	}
	return slices.Contains(e.Environments, env)
}

// Registry is an ordered collection of named probes. Registration order is
// preserved and is the execution and report order, so output stays
// deterministic and diffable.
type Registry struct {
	mu      sync.RWMutex
	entries []Entry
	names   map[string]struct{}
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{names: make(map[string]struct{})}
}

// Register appends an entry. Probe names must be unique within the
// registry.
func (r *Registry) Register(entry Entry) error {
	if entry.Prober == nil {
		return ErrNilProber
	}
	name := entry.Prober.Name()
	if name == "" {
		return ErrUnnamedProbe
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.names[name]; exists {
		return ErrDuplicateProbe
	}
	r.names[name] = struct{}{}
	r.entries = append(r.entries, entry)
	return nil
}

// ProbesFor returns the entries enabled for the environment, in
// registration order.
func (r *Registry) ProbesFor(env string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.EnabledIn(env) {
			out = append(out, e)
		}
	}
	return out
}

// Names returns every registered probe name in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.Prober.Name()
	}
	return names
}

// Len returns the number of registered probes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
