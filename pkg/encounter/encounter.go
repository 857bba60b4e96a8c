// Package encounter holds the combat encounter record the combat processor mutates.
//
// An Encounter is not safe for concurrent use. Callers must make sure only one action
// is processed against a given encounter at a time.
package encounter

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/rules-engine/pkg/actor"
)

// Status is the lifecycle state of an encounter.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusActive  Status = "ACTIVE"
	StatusEnded   Status = "ENDED"
)

// Participant is one combatant's in-encounter state.
type Participant struct {
	ID        string         `json:"id"`
	Type      actor.Type     `json:"type"`
	CurrentHP int            `json:"current_hp"`
	MaxHP     int            `json:"max_hp,omitempty"`
	Team      string         `json:"team,omitempty"`
	Stats     map[string]int `json:"stats,omitempty"` // per-encounter stat overrides
}

// Ref returns the participant's entity reference.
func (p Participant) Ref() actor.Ref {
	return actor.Ref{ID: p.ID, Type: p.Type}
}

// IsDefeated returns true if the participant's HP is 0 or less.
func (p Participant) IsDefeated() bool {
	return p.CurrentHP <= 0
}

// LogEntry is one append-only combat log record.
type LogEntry struct {
	TurnNumber int            `json:"turn_number"`
	ActorID    string         `json:"actor_id"`
	ActorType  actor.Type     `json:"actor_type"`
	ActionType string         `json:"action_type"`
	Details    map[string]any `json:"details,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Encounter is an ongoing combat.
type Encounter struct {
	ID                  uuid.UUID      `json:"id"`
	TenantID            string         `json:"tenant_id"`
	LocationID          string         `json:"location_id,omitempty"`
	Status              Status         `json:"status"`
	TurnNumber          int            `json:"turn_number"`
	Participants        []Participant  `json:"participants"`
	RulesConfigSnapshot map[string]any `json:"rules_config_snapshot,omitempty"`
	CombatLog           []LogEntry     `json:"combat_log"`
	UpdatedAt           time.Time      `json:"updated_at,omitzero"`

	modified bool
}

// IsActive reports whether the encounter accepts actions.
func (e *Encounter) IsActive() bool {
	return e.Status == StatusActive
}

// Participant returns the participant with the given reference, or nil.
func (e *Encounter) Participant(ref actor.Ref) *Participant {
	for i := range e.Participants {
		if e.Participants[i].ID == ref.ID && e.Participants[i].Type == ref.Type {
			return &e.Participants[i]
		}
	}
	return nil
}

// ApplyDamage reduces a participant's HP by amount, never below 0.
// It returns the HP before and after. ok is false when the participant is not found.
func (e *Encounter) ApplyDamage(ref actor.Ref, amount int) (before, after int, ok bool) {
	p := e.Participant(ref)
	if p == nil {
		return 0, 0, false
	}
	before = p.CurrentHP
	if amount <= 0 {
		return before, before, true
	}
	p.CurrentHP = max(p.CurrentHP-amount, 0)
	e.modified = true
	return before, p.CurrentHP, true
}

// AppendLog appends an entry to the combat log.
func (e *Encounter) AppendLog(entry LogEntry) {
	e.CombatLog = append(e.CombatLog, entry)
	e.modified = true
}

// Modified reports whether the encounter was mutated since it was loaded.
func (e *Encounter) Modified() bool {
	return e.modified
}

// MarkClean clears the modified flag, typically after a save.
func (e *Encounter) MarkClean() {
	e.modified = false
}

// Loader loads an encounter. It returns (nil, nil) when the encounter does not exist.
type Loader interface {
	LoadEncounter(ctx context.Context, tenantID string, id uuid.UUID) (*Encounter, error)
}

// Store loads and persists encounters.
type Store interface {
	Loader
	SaveEncounter(ctx context.Context, enc *Encounter) error
}
