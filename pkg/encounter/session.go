package encounter

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Session is a unit of work over a Store. Encounters loaded through a session are
// cached, so repeated loads return the same record, and Commit saves the ones that
// were modified.
type Session struct {
	store  Store
	loaded map[uuid.UUID]*Encounter
}

var _ Loader = (*Session)(nil)

// NewSession starts a session.
func NewSession(store Store) *Session {
	return &Session{store: store, loaded: make(map[uuid.UUID]*Encounter)}
}

// LoadEncounter implements Loader.
func (s *Session) LoadEncounter(ctx context.Context, tenantID string, id uuid.UUID) (*Encounter, error) {
	if enc, ok := s.loaded[id]; ok {
		if enc.TenantID != tenantID {
			return nil, nil
		}
		return enc, nil
	}
	enc, err := s.store.LoadEncounter(ctx, tenantID, id)
	if err != nil || enc == nil {
		return enc, err
	}
	s.loaded[id] = enc
	return enc, nil
}

// Commit saves every modified encounter and returns how many were written.
func (s *Session) Commit(ctx context.Context) (int, error) {
	saved := 0
	for id, enc := range s.loaded {
		if !enc.Modified() {
			continue
		}
		if err := s.store.SaveEncounter(ctx, enc); err != nil {
			return saved, fmt.Errorf("failed to save encounter %s: %w", id, err)
		}
		enc.MarkClean()
		saved++
	}
	return saved, nil
}
