package actor

import (
	"encoding/json"
	"testing"
)

func testSpec() *CharacterSpec {
	return &CharacterSpec{
		ID:   "npc_guard_1",
		Type: TypeNPC,
		Name: "Gate Guard",
		Stats: map[string]int{
			"strength":  3,
			"dexterity": 1,
		},
		Attributes: map[string]int{
			"perception": 4,
		},
		Properties: map[string]any{
			"morale": float64(7),
			"stats": map[string]any{
				"willpower": float64(2),
			},
		},
		HP:    9,
		MaxHP: 12,
		AC:    15,
		CombatModifiers: map[string]int{
			"shield": 2,
		},
	}
}

func TestNewCharacter(t *testing.T) {
	c, err := NewCharacter(testSpec())
	if err != nil {
		t.Fatalf("NewCharacter() error = %v", err)
	}

	if c.ID() != "npc_guard_1" {
		t.Errorf("ID() = %q, want %q", c.ID(), "npc_guard_1")
	}
	if c.Type() != TypeNPC {
		t.Errorf("Type() = %q, want %q", c.Type(), TypeNPC)
	}
	if c.Name() != "Gate Guard" {
		t.Errorf("Name() = %q, want %q", c.Name(), "Gate Guard")
	}
	if c.Actor.HP() != 9 {
		t.Errorf("Actor.HP() = %d, want %d", c.Actor.HP(), 9)
	}
	if c.Actor.MaxHP() != 12 {
		t.Errorf("Actor.MaxHP() = %d, want %d", c.Actor.MaxHP(), 12)
	}
	mods := c.CombatModifiers()
	if len(mods) != 1 || mods[0].Reason != "shield" || mods[0].Value != 2 {
		t.Errorf("CombatModifiers() = %v, want [shield +2]", mods)
	}
	if got := CombatModifiersOf(WithOverrides(c, map[string]int{"strength": 5})); len(got) != 1 {
		t.Errorf("CombatModifiersOf(overlay) = %v, want the character's modifiers", got)
	}
}

func TestCharacter_Attribute(t *testing.T) {
	c, err := NewCharacter(testSpec())
	if err != nil {
		t.Fatalf("NewCharacter() error = %v", err)
	}

	tests := []struct {
		name   string
		want   int
		wantOK bool
	}{
		{"strength", 3, true},
		{"perception", 4, true},
		{"armor_class", 15, true},
		{"morale", 7, true},
		{"willpower", 2, true},
		{"charisma", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := c.Attribute(tt.name)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Attribute(%q) = (%d, %v), want (%d, %v)", tt.name, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNewCharacter_Errors(t *testing.T) {
	if _, err := NewCharacter(nil); err == nil {
		t.Error("NewCharacter(nil) error = nil, want error")
	}
	if _, err := NewCharacter(&CharacterSpec{Type: TypePlayer}); err == nil {
		t.Error("NewCharacter(no id) error = nil, want error")
	}
}

func TestCharacter_JSONRoundTrip(t *testing.T) {
	c, err := NewCharacter(testSpec())
	if err != nil {
		t.Fatalf("NewCharacter() error = %v", err)
	}

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var restored Character
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if restored.Actor == nil {
		t.Fatal("restored.Actor is nil, want non-nil")
	}
	if restored.Actor.HP() != 9 {
		t.Errorf("restored HP = %d, want %d", restored.Actor.HP(), 9)
	}
	if v, ok := restored.Attribute("strength"); !ok || v != 3 {
		t.Errorf("restored strength = (%d, %v), want (3, true)", v, ok)
	}
}

func TestWithOverrides(t *testing.T) {
	c, err := NewCharacter(testSpec())
	if err != nil {
		t.Fatalf("NewCharacter() error = %v", err)
	}

	e := WithOverrides(c, map[string]int{"armor_class": 18})
	if v, _ := e.Attribute("armor_class"); v != 18 {
		t.Errorf("overridden armor_class = %d, want 18", v)
	}
	if v, _ := e.Attribute("strength"); v != 3 {
		t.Errorf("strength through overlay = %d, want 3", v)
	}
	if e.ID() != c.ID() {
		t.Errorf("overlay ID = %q, want %q", e.ID(), c.ID())
	}

	if WithOverrides(c, nil) != Entity(c) {
		t.Error("WithOverrides with no stats should return the entity unchanged")
	}
}

func TestType_IsNPCLike(t *testing.T) {
	for typ, want := range map[Type]bool{
		TypePlayer:       false,
		TypeNPC:          true,
		TypeGeneratedNPC: true,
		TypeMonster:      true,
		Type("item"):     false,
	} {
		if got := typ.IsNPCLike(); got != want {
			t.Errorf("%s.IsNPCLike() = %v, want %v", typ, got, want)
		}
	}
}
