package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jwebster45206/rules-engine/pkg/actor"
	"github.com/jwebster45206/rules-engine/pkg/encounter"
	"github.com/jwebster45206/rules-engine/pkg/relationship"
	"github.com/jwebster45206/rules-engine/pkg/rules"
)

// Storage is every collaborator the engine reads from, plus the writes the
// services and tools need.
type Storage interface {
	Ping(ctx context.Context) error
	Close() error

	rules.Provider
	SetRules(ctx context.Context, tenantID string, values map[string]any) error
	ListRules(ctx context.Context, tenantID string) (map[string]any, error)

	actor.Resolver
	SaveEntity(ctx context.Context, tenantID string, spec *actor.CharacterSpec) error

	relationship.Store
	SaveRelationship(ctx context.Context, tenantID string, rel *relationship.Relationship) error

	encounter.Store
	DeleteEncounter(ctx context.Context, tenantID string, id uuid.UUID) error
}
