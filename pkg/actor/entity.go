package actor

import (
	"context"
	"fmt"

	"github.com/jwebster45206/d20"
)

// Type tags the kind of entity an ID refers to.
type Type string

const (
	TypePlayer       Type = "player"
	TypeNPC          Type = "npc"
	TypeGeneratedNPC Type = "generated_npc"
	TypeMonster      Type = "monster"
)

// IsNPCLike reports whether entities of this type are driven by the game rather than a player.
func (t Type) IsNPCLike() bool {
	switch t {
	case TypeNPC, TypeGeneratedNPC, TypeMonster:
		return true
	}
	return false
}

// Ref identifies an entity by ID and type.
type Ref struct {
	ID   string `json:"id"`
	Type Type   `json:"type"`
}

func (r Ref) String() string {
	return fmt.Sprintf("%s:%s", r.Type, r.ID)
}

// IsZero reports whether the reference is empty.
func (r Ref) IsZero() bool {
	return r.ID == "" && r.Type == ""
}

// Entity is the capability set the rules engine needs from a player or NPC.
type Entity interface {
	ID() string
	Type() Type
	Name() string
	// Attribute returns a named numeric attribute and whether the entity has it.
	Attribute(name string) (int, bool)
}

// CombatModified is implemented by entities that carry standing combat modifiers.
type CombatModified interface {
	CombatModifiers() []d20.Modifier
}

// CombatModifiersOf returns e's combat modifiers, or nil when it has none.
func CombatModifiersOf(e Entity) []d20.Modifier {
	if m, ok := e.(CombatModified); ok {
		return m.CombatModifiers()
	}
	return nil
}

// RefOf returns the reference of an entity.
func RefOf(e Entity) Ref {
	return Ref{ID: e.ID(), Type: e.Type()}
}

// Resolver looks up entities by type and ID. It returns (nil, nil) when the entity does not exist.
type Resolver interface {
	GetEntity(ctx context.Context, tenantID string, t Type, id string) (Entity, error)
}

// overlay layers per-encounter stat overrides on top of an entity.
type overlay struct {
	Entity
	stats map[string]int
}

// WithOverrides returns an entity whose attributes are read from stats first, then from e.
func WithOverrides(e Entity, stats map[string]int) Entity {
	if e == nil || len(stats) == 0 {
		return e
	}
	return overlay{Entity: e, stats: stats}
}

func (o overlay) Attribute(name string) (int, bool) {
	if v, ok := o.stats[name]; ok {
		return v, true
	}
	return o.Entity.Attribute(name)
}

func (o overlay) CombatModifiers() []d20.Modifier {
	return CombatModifiersOf(o.Entity)
}
