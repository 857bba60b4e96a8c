package actor

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/jwebster45206/d20"
	"github.com/jwebster45206/rules-engine/pkg/rules"
)

const (
	defaultMaxHP = 1
	defaultAC    = 10
)

// CharacterSpec is the serializable record of a player or NPC.
type CharacterSpec struct {
	ID              string         `json:"id"`
	Type            Type           `json:"type"`
	Name            string         `json:"name,omitempty"`
	Stats           map[string]int `json:"stats,omitempty"`      // core ability scores or modifiers, e.g. "strength": 3
	Attributes      map[string]int `json:"attributes,omitempty"` // skills and other numeric traits
	Properties      map[string]any `json:"properties,omitempty"` // free-form structured data
	HP              int            `json:"hp,omitempty"`         // Current HP (for serialization)
	MaxHP           int            `json:"max_hp,omitempty"`
	AC              int            `json:"ac,omitempty"`
	CombatModifiers map[string]int `json:"combat_modifiers,omitempty"`
}

// Character is the runtime representation of a CharacterSpec.
type Character struct {
	Spec  *CharacterSpec
	Actor *d20.Actor // Built at runtime from Spec
}

var _ Entity = (*Character)(nil)

// NewCharacter builds a Character and its d20.Actor from a spec.
func NewCharacter(spec *CharacterSpec) (*Character, error) {
	if spec == nil {
		return nil, fmt.Errorf("spec cannot be nil")
	}
	if spec.ID == "" {
		return nil, fmt.Errorf("character id cannot be empty")
	}

	// Stats and attributes share one namespace on the actor; attributes win on collision.
	allAttrs := make(map[string]int, len(spec.Stats)+len(spec.Attributes))
	maps.Copy(allAttrs, spec.Stats)
	maps.Copy(allAttrs, spec.Attributes)

	maxHP := spec.MaxHP
	if maxHP <= 0 {
		maxHP = max(spec.HP, defaultMaxHP)
	}
	ac := spec.AC
	if ac <= 0 {
		ac = defaultAC
	}

	a, err := d20.NewActor(spec.ID).
		WithHP(maxHP).
		WithAC(ac).
		WithAttributes(allAttrs).
		WithCombatModifiers(spec.CombatModifiers).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build actor: %w", err)
	}

	if spec.HP > 0 && spec.HP != maxHP {
		if err := a.SetHP(spec.HP); err != nil {
			return nil, fmt.Errorf("failed to set HP: %w", err)
		}
	}

	return &Character{Spec: spec, Actor: a}, nil
}

func (c *Character) ID() string { return c.Spec.ID }

func (c *Character) Type() Type { return c.Spec.Type }

func (c *Character) Name() string {
	if c.Spec.Name != "" {
		return c.Spec.Name
	}
	return c.Spec.ID
}

// Attribute resolves a numeric attribute: actor attributes first, then armor class,
// then the structured properties (either a top-level number or properties.stats).
func (c *Character) Attribute(name string) (int, bool) {
	if c.Actor != nil {
		if v, ok := c.Actor.Attribute(name); ok {
			return v, true
		}
		if (name == "armor_class" || name == "ac") && c.Spec.AC > 0 {
			return c.Actor.AC(), true
		}
	}
	return propertyAttribute(c.Spec.Properties, name)
}

// CombatModifiers returns the actor's standing combat modifiers ordered by reason.
func (c *Character) CombatModifiers() []d20.Modifier {
	if c.Actor == nil {
		return nil
	}
	mods := c.Actor.GetCombatModifiers()
	slices.SortFunc(mods, func(a, b d20.Modifier) int {
		return strings.Compare(a.Reason, b.Reason)
	})
	return mods
}

func propertyAttribute(props map[string]any, name string) (int, bool) {
	if props == nil {
		return 0, false
	}
	if v, ok := props[name]; ok {
		if n, ok := rules.ToInt(v); ok {
			return n, true
		}
	}
	if stats, ok := props["stats"].(map[string]any); ok {
		if n, ok := rules.ToInt(stats[name]); ok {
			return n, true
		}
	}
	return 0, false
}

// MarshalJSON writes the spec with the actor's current HP.
func (c *Character) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}
	spec := *c.Spec
	if c.Actor != nil {
		spec.HP = c.Actor.HP()
		spec.MaxHP = c.Actor.MaxHP()
	}
	return json.Marshal(spec)
}

// UnmarshalJSON reconstructs a Character from JSON and rebuilds its Actor.
func (c *Character) UnmarshalJSON(data []byte) error {
	var spec CharacterSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return fmt.Errorf("failed to unmarshal character spec: %w", err)
	}
	built, err := NewCharacter(&spec)
	if err != nil {
		return fmt.Errorf("failed to rebuild actor: %w", err)
	}
	*c = *built
	return nil
}
