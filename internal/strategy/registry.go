// Package strategy resolves strategy identifiers to engines. The registry
// replaces dispatch-by-class-name: every engine is registered once at
// startup and resolved by id before any network call is made.
package strategy

import (
	"fmt"
	"sort"
	"sync"

	"portfolio-rebalancer/internal/model"
)

// Registry maps strategy ids to engines.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]model.StrategyEngine
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{engines: make(map[string]model.StrategyEngine)}
}

// Register adds an engine under its own name. Registering the same name
// twice is a programming error and panics at startup.
func (r *Registry) Register(e model.StrategyEngine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.engines[e.Name()]; dup {
		panic(fmt.Sprintf("strategy: duplicate registration of %q", e.Name()))
	}
	r.engines[e.Name()] = e
}

// Resolve returns the engine registered under id.
func (r *Registry) Resolve(id string) (model.StrategyEngine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[id]
	if !ok {
		return nil, fmt.Errorf("strategy: unknown strategy %q (registered: %v)", id, r.names())
	}
	return e, nil
}

// Names lists registered strategy ids, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names()
}

func (r *Registry) names() []string {
	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
