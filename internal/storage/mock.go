package storage

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"sync"

	"github.com/google/uuid"
	"github.com/jwebster45206/rules-engine/pkg/actor"
	"github.com/jwebster45206/rules-engine/pkg/encounter"
	"github.com/jwebster45206/rules-engine/pkg/relationship"
	"github.com/jwebster45206/rules-engine/pkg/rules"
)

// MockStorage is a mock implementation of Storage for testing
type MockStorage struct {
	mu         sync.RWMutex
	rules      *rules.MapProvider
	ruleKeys   map[string]map[string]bool
	entities   *actor.Registry
	rels       *relationship.MemoryStore
	encounters map[uuid.UUID][]byte
	pingError  error
	loadError  error
	saveError  error
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		rules:      rules.NewMapProvider(),
		ruleKeys:   make(map[string]map[string]bool),
		entities:   actor.NewRegistry(),
		rels:       relationship.NewMemoryStore(),
		encounters: make(map[uuid.UUID][]byte),
	}
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetPingSuccess configures the mock to succeed on ping
func (m *MockStorage) SetPingSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = nil
}

// SetLoadError makes LoadEncounter fail with err
func (m *MockStorage) SetLoadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadError = err
}

// SetSaveError makes SaveEncounter fail with err
func (m *MockStorage) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MockStorage) Close() error {
	return nil
}

func (m *MockStorage) GetRule(ctx context.Context, tenantID, key string, def any) (any, error) {
	return m.rules.GetRule(ctx, tenantID, key, def)
}

func (m *MockStorage) SetRules(ctx context.Context, tenantID string, values map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ruleKeys[tenantID] == nil {
		m.ruleKeys[tenantID] = make(map[string]bool)
	}
	for k, v := range values {
		m.rules.Set(tenantID, k, v)
		m.ruleKeys[tenantID][k] = true
	}
	return nil
}

func (m *MockStorage) ListRules(ctx context.Context, tenantID string) (map[string]any, error) {
	m.mu.RLock()
	keys := maps.Clone(m.ruleKeys[tenantID])
	m.mu.RUnlock()

	out := make(map[string]any, len(keys))
	for k := range keys {
		v, _ := m.rules.GetRule(ctx, tenantID, k, nil)
		out[k] = v
	}
	return out, nil
}

func (m *MockStorage) GetEntity(ctx context.Context, tenantID string, t actor.Type, id string) (actor.Entity, error) {
	return m.entities.GetEntity(ctx, tenantID, t, id)
}

func (m *MockStorage) SaveEntity(ctx context.Context, tenantID string, spec *actor.CharacterSpec) error {
	if spec == nil || spec.ID == "" || spec.Type == "" {
		return errors.New("entity needs an id and a type")
	}
	c, err := actor.NewCharacter(spec)
	if err != nil {
		return err
	}
	m.entities.Add(tenantID, c)
	return nil
}

func (m *MockStorage) ForEntity(ctx context.Context, tenantID string, ref actor.Ref) ([]relationship.Relationship, error) {
	return m.rels.ForEntity(ctx, tenantID, ref)
}

func (m *MockStorage) Between(ctx context.Context, tenantID string, a, b actor.Ref) (*relationship.Relationship, error) {
	return m.rels.Between(ctx, tenantID, a, b)
}

func (m *MockStorage) SaveRelationship(ctx context.Context, tenantID string, rel *relationship.Relationship) error {
	if rel == nil {
		return errors.New("relationship cannot be nil")
	}
	if rel.ID == "" {
		rel.ID = uuid.New().String()
	}
	m.rels.Add(tenantID, *rel)
	return nil
}

// SaveEncounter stores a serialized copy, so later mutations of enc are not
// visible until it is saved again.
func (m *MockStorage) SaveEncounter(ctx context.Context, enc *encounter.Encounter) error {
	if enc == nil {
		return errors.New("encounter cannot be nil")
	}
	data, err := json.Marshal(enc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	m.encounters[enc.ID] = data
	return nil
}

func (m *MockStorage) LoadEncounter(ctx context.Context, tenantID string, id uuid.UUID) (*encounter.Encounter, error) {
	m.mu.RLock()
	data, ok := m.encounters[id]
	loadErr := m.loadError
	m.mu.RUnlock()

	if loadErr != nil {
		return nil, loadErr
	}
	if !ok {
		return nil, nil
	}
	var enc encounter.Encounter
	if err := json.Unmarshal(data, &enc); err != nil {
		return nil, err
	}
	if enc.TenantID != tenantID {
		return nil, nil
	}
	return &enc, nil
}

func (m *MockStorage) DeleteEncounter(ctx context.Context, tenantID string, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.encounters, id)
	return nil
}
