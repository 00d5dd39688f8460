package registry

import (
	"sort"
	"sync"

	"github.com/agentx-labs/pluginhost/internal/failure"
)

// Registry maps unit keys to loaded units.
type Registry struct {
	mu        sync.RWMutex
	units     map[string]*LoadedUnit
	published bool
}

// New returns an empty, unpublished registry.
func New() *Registry {
	return &Registry{units: make(map[string]*LoadedUnit)}
}

// Register adds u. It fails once the registry is published or when the key
// is already registered.
func (r *Registry) Register(u *LoadedUnit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.published {
		return failure.New(failure.InstantiationFailure, "registry is already published, cannot register %s", u.Key())
	}
	if _, dup := r.units[u.Key()]; dup {
		return failure.New(failure.InstantiationFailure, "plugin %s is already registered", u.Key())
	}
	r.units[u.Key()] = u
	return nil
}

// Publish ends the startup phase. Register fails from now on.
func (r *Registry) Publish() {
	r.mu.Lock()
	r.published = true
	r.mu.Unlock()
}

// Published reports whether Publish was called.
func (r *Registry) Published() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.published
}

// Get returns the unit for key or a NotFound failure.
func (r *Registry) Get(key string) (*LoadedUnit, error) {
	if u, ok := r.Find(key); ok {
		return u, nil
	}
	return nil, failure.New(failure.NotFound, "plugin %s is not loaded", key)
}

// Find returns the unit for key, if loaded.
func (r *Registry) Find(key string) (*LoadedUnit, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.units[key]
	return u, ok
}

// All returns every loaded unit sorted by key.
func (r *Registry) All() []*LoadedUnit {
	return r.filter(func(*LoadedUnit) bool { return true })
}

// AllOfType returns the loaded units of type t sorted by key.
func (r *Registry) AllOfType(t Type) []*LoadedUnit {
	return r.filter(func(u *LoadedUnit) bool { return u.Type == t })
}

// Len returns the number of loaded units.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.units)
}

func (r *Registry) filter(keep func(*LoadedUnit) bool) []*LoadedUnit {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*LoadedUnit
	for _, u := range r.units {
		if keep(u) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Remove takes the given keys out of the registry and returns the removed
// units sorted by key. Unknown keys are ignored.
func (r *Registry) Remove(keys ...string) []*LoadedUnit {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*LoadedUnit
	for _, k := range keys {
		if u, ok := r.units[k]; ok {
			out = append(out, u)
			delete(r.units, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Reinstate puts previously removed units back, even after Publish. Units
// whose key is registered again meanwhile are left out.
func (r *Registry) Reinstate(units ...*LoadedUnit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range units {
		if _, ok := r.units[u.Key()]; !ok {
			r.units[u.Key()] = u
		}
	}
}
