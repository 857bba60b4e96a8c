// Package relationship models typed, valued links between two entities.
package relationship

import (
	"context"
	"strings"

	"github.com/jwebster45206/rules-engine/pkg/actor"
)

// hiddenPrefixes mark relationship types whose existence is never shown to the player.
var hiddenPrefixes = []string{
	"secret_",
	"internal_",
	"personal_debt",
	"hidden_fear",
	"betrayal_",
}

// Relationship links two entities with a type such as "friend" or "secret_rival".
type Relationship struct {
	ID      string    `json:"id"`
	Entity1 actor.Ref `json:"entity1"`
	Entity2 actor.Ref `json:"entity2"`
	Type    string    `json:"relationship_type"`
	Value   int       `json:"value"`
}

// IsHiddenType reports whether a relationship type is hidden from players.
func IsHiddenType(relType string) bool {
	for _, prefix := range hiddenPrefixes {
		if strings.HasPrefix(relType, prefix) {
			return true
		}
	}
	return false
}

// IsHidden reports whether the relationship is hidden from players.
func (r Relationship) IsHidden() bool {
	return IsHiddenType(r.Type)
}

// Involves reports whether ref is one side of the relationship.
func (r Relationship) Involves(ref actor.Ref) bool {
	return r.Entity1 == ref || r.Entity2 == ref
}

// Connects reports whether the relationship links a and b, in either direction.
func (r Relationship) Connects(a, b actor.Ref) bool {
	return (r.Entity1 == a && r.Entity2 == b) || (r.Entity1 == b && r.Entity2 == a)
}

// TypePrefix returns the part of the type before the first colon.
func (r Relationship) TypePrefix() string {
	prefix, _, _ := strings.Cut(r.Type, ":")
	return prefix
}

// Store reads relationships for a tenant.
type Store interface {
	// ForEntity returns every relationship the entity takes part in.
	ForEntity(ctx context.Context, tenantID string, ref actor.Ref) ([]Relationship, error)
	// Between returns a relationship linking a and b, or nil when there is none.
	Between(ctx context.Context, tenantID string, a, b actor.Ref) (*Relationship, error)
}
