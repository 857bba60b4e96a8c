package actor

import (
	"context"
	"sync"
)

// Registry is an in-memory Resolver keyed by tenant.
type Registry struct {
	mu       sync.RWMutex
	entities map[string]map[Ref]Entity
}

var _ Resolver = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entities: make(map[string]map[Ref]Entity)}
}

// Add registers an entity for a tenant, replacing any entity with the same reference.
func (r *Registry) Add(tenantID string, e Entity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entities[tenantID] == nil {
		r.entities[tenantID] = make(map[Ref]Entity)
	}
	r.entities[tenantID][RefOf(e)] = e
}

// GetEntity implements Resolver.
func (r *Registry) GetEntity(_ context.Context, tenantID string, t Type, id string) (Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[tenantID][Ref{ID: id, Type: t}]
	if !ok {
		return nil, nil
	}
	return e, nil
}
