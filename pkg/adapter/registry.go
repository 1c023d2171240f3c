package adapter

import (
	"fmt"
	"sort"

	"github.com/booomerangs/relay/pkg/api"
)

// Entry pairs an adapter with its availability, decided once at startup.
// An adapter whose profile requires a credential that was not configured
// is registered as unavailable: it stays visible in listings but is never
// attempted.
type Entry struct {
	Adapter   Adapter
	Available bool
}

// Registry is the process-wide, read-only set of registered adapters.
// It is built once at startup from configuration and never mutated;
// concurrent dispatches share it without locking.
type Registry struct {
	byName  map[string]Entry
	ordered []Entry // sorted by (kind, priority, name) for stable iteration
}

// NewRegistry builds a registry from the given entries. Duplicate adapter
// names are rejected.
func NewRegistry(entries []Entry) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]Entry, len(entries)),
	}

	for _, e := range entries {
		name := e.Adapter.Name()
		if name == "" {
			return nil, fmt.Errorf("adapter with empty name")
		}
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("duplicate adapter name %q", name)
		}
		r.byName[name] = e
		r.ordered = append(r.ordered, e)
	}

	sort.SliceStable(r.ordered, func(i, j int) bool {
		a, b := r.ordered[i], r.ordered[j]
		if a.Adapter.Kind() != b.Adapter.Kind() {
			return a.Adapter.Kind() < b.Adapter.Kind()
		}
		if pa, pb := a.Adapter.Profile().Priority, b.Adapter.Profile().Priority; pa != pb {
			return pa < pb
		}
		return a.Adapter.Name() < b.Adapter.Name()
	})

	return r, nil
}

// Get returns the entry for the given adapter name.
func (r *Registry) Get(name string) (Entry, bool) {
	e, ok := r.byName[name]
	return e, ok
}

// Candidates returns the available adapters of the given kind in
// non-decreasing priority order.
func (r *Registry) Candidates(kind Kind) []Adapter {
	var out []Adapter
	for _, e := range r.ordered {
		if e.Adapter.Kind() == kind && e.Available {
			out = append(out, e.Adapter)
		}
	}
	return out
}

// Skipped returns the names of adapters of the given kind that are
// registered but unavailable (missing credential). The dispatcher records
// these as skipped-no-credential without attempting them.
func (r *Registry) Skipped(kind Kind) []string {
	var out []string
	for _, e := range r.ordered {
		if e.Adapter.Kind() == kind && !e.Available {
			out = append(out, e.Adapter.Name())
		}
	}
	return out
}

// List returns provider infos for all registered adapters, in registry order.
func (r *Registry) List() []api.ProviderInfo {
	out := make([]api.ProviderInfo, 0, len(r.ordered))
	for _, e := range r.ordered {
		out = append(out, api.ProviderInfo{
			Name:      e.Adapter.Name(),
			Kind:      string(e.Adapter.Kind()),
			Priority:  e.Adapter.Profile().Priority,
			Available: e.Available,
			Streaming: e.Adapter.Capabilities().Streaming,
		})
	}
	return out
}

// Close closes every registered adapter. The first error is returned;
// remaining adapters are still closed.
func (r *Registry) Close() error {
	var firstErr error
	for _, e := range r.ordered {
		if err := e.Adapter.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
