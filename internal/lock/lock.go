// Package lock provides named mutual-exclusion regions. Each scope owns one
// region; commands against the same scope serialize their parse-mutate-persist
// sequence through it while distinct scopes never contend.
package lock

import "sync"

// Registry vends one mutex per region name. Regions are created on first
// use and live for the registry's lifetime.
type Registry struct {
	mu      sync.Mutex
	regions map[string]*sync.Mutex
}

// NewRegistry creates an empty lock registry.
func NewRegistry() *Registry {
	return &Registry{regions: make(map[string]*sync.Mutex)}
}

// Acquire locks the named region and returns its release function.
func (r *Registry) Acquire(name string) func() {
	r.mu.Lock()
	m, ok := r.regions[name]
	if !ok {
		m = &sync.Mutex{}
		r.regions[name] = m
	}
	r.mu.Unlock()

	m.Lock()
	return m.Unlock
}
