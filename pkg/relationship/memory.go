package relationship

import (
	"context"
	"sync"

	"github.com/jwebster45206/rules-engine/pkg/actor"
)

// MemoryStore is an in-memory Store keyed by tenant.
type MemoryStore struct {
	mu   sync.RWMutex
	rels map[string][]Relationship
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rels: make(map[string][]Relationship)}
}

// Add stores a relationship for a tenant.
func (m *MemoryStore) Add(tenantID string, rel Relationship) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rels[tenantID] = append(m.rels[tenantID], rel)
}

// ForEntity implements Store.
func (m *MemoryStore) ForEntity(_ context.Context, tenantID string, ref actor.Ref) ([]Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Relationship
	for _, rel := range m.rels[tenantID] {
		if rel.Involves(ref) {
			out = append(out, rel)
		}
	}
	return out, nil
}

// Between implements Store. The first relationship added wins when several link a and b.
func (m *MemoryStore) Between(_ context.Context, tenantID string, a, b actor.Ref) (*Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rel := range m.rels[tenantID] {
		if rel.Connects(a, b) {
			r := rel
			return &r, nil
		}
	}
	return nil, nil
}
