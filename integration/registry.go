package integration

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the constructed adapter for each configured instance. All
// per-instance mutable state (session credentials, poll caches, connection
// state) hangs off the adapter itself, so replacing a registry entry on a
// config edit replaces that state wholesale without touching other
// instances.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Add registers an adapter under its instance id.
func (r *Registry) Add(a Adapter) error {
	id := a.Instance().ID
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[id]; exists {
		return fmt.Errorf("duplicate instance id %q", id)
	}
	r.adapters[id] = a
	return nil
}

// Replace swaps the adapter for an instance, used on config edits.
func (r *Registry) Replace(a Adapter) {
	r.mu.Lock()
	r.adapters[a.Instance().ID] = a
	r.mu.Unlock()
}

// Get returns the adapter for an instance id.
func (r *Registry) Get(id string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[id]
	return a, ok
}

// Remove drops an instance from the registry.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.adapters, id)
	r.mu.Unlock()
}

// All returns every registered adapter, ordered by instance id for stable
// iteration.
func (r *Registry) All() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Instance().ID < out[j].Instance().ID
	})
	return out
}

// Len returns the number of registered instances.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.adapters)
}
