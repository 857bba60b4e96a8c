package world

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jwebster45206/rules-engine/pkg/actor"
	"github.com/jwebster45206/rules-engine/pkg/combat"
	"github.com/jwebster45206/rules-engine/pkg/dice"
	"github.com/jwebster45206/rules-engine/pkg/encounter"
	"github.com/jwebster45206/rules-engine/pkg/formula"
	"github.com/jwebster45206/rules-engine/pkg/locale"
	"github.com/jwebster45206/rules-engine/pkg/rules"
	"golang.org/x/text/language"
)

// formulaVars are the variables relationship formulas may use.
var formulaVars = []string{"value", "rel_value"}

var validIDRegex = regexp.MustCompile(`^[a-z][a-z0-9_-]*[a-z0-9]$|^[a-z]$`)

// Validate reports every defect found, one message per problem. Dice notations
// and formulas are the defects the engine cannot recover from at runtime.
func (w *World) Validate() []string {
	v := &validator{}
	if w.TenantID == "" {
		v.addError("tenant_id is required")
	}

	keys := make([]string, 0, len(w.Rules))
	for k := range w.Rules {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v.validateRule("rules", k, w.Rules[k])
	}

	known := make(map[actor.Ref]bool, len(w.Entities))
	for _, e := range w.Entities {
		v.validateEntity(e)
		known[actor.Ref{ID: e.ID, Type: e.Type}] = true
	}
	for _, r := range w.Relationships {
		for _, side := range []actor.Ref{r.Entity1, r.Entity2} {
			if !known[side] {
				v.addError(fmt.Sprintf("relationship %s references unknown entity %s", r.ID, side))
			}
		}
		if r.Type == "" {
			v.addError(fmt.Sprintf("relationship %s has no relationship_type", r.ID))
		}
	}

	seen := make(map[uuid.UUID]bool, len(w.Encounters))
	for _, enc := range w.Encounters {
		if seen[enc.ID] {
			v.addError(fmt.Sprintf("encounter %s is defined twice", enc.ID))
		}
		seen[enc.ID] = true
		v.validateEncounter(enc, known)
	}
	return v.errors
}

type validator struct {
	errors []string
}

func (v *validator) addError(msg string) {
	v.errors = append(v.errors, msg)
}

func (v *validator) validateRule(scope, key string, value any) {
	where := fmt.Sprintf("%s: %s", scope, key)
	switch {
	case strings.HasPrefix(key, "checks:") && strings.HasSuffix(key, ":dice_notation"),
		key == rules.AttackDamageFormula:
		s, ok := value.(string)
		if !ok {
			v.addError(fmt.Sprintf("%s must be a dice notation string", where))
			return
		}
		if _, err := dice.Parse(s); err != nil {
			v.addError(fmt.Sprintf("%s: %v", where, err))
		}

	case key == rules.CriticalHitEffect:
		switch value {
		case combat.CritMultiplyTotalDamage, combat.CritDoubleDamageDice, combat.CritMaximizeAndAddDice:
		default:
			v.addError(fmt.Sprintf("%s: unknown effect %v (damage will be multiplied)", where, value))
		}

	case key == rules.LocalizationLanguageKey:
		s, _ := value.(string)
		tag, err := language.Parse(s)
		if err != nil {
			v.addError(fmt.Sprintf("%s must be a language tag: %v", where, err))
			return
		}
		if base, _ := tag.Base(); base != mustBase(locale.Match(s)) {
			v.addError(fmt.Sprintf("%s: %s is not supported and falls back to %s", where, s, locale.Default()))
		}

	case strings.HasPrefix(key, rules.HiddenRelationshipEffectsPrefix):
		m, ok := value.(map[string]any)
		if !ok {
			v.addError(fmt.Sprintf("%s must be an object", where))
			return
		}
		v.validateFormula(where, m, "roll_modifier_formula")
		v.validateFormula(where, m, "dc_modifier_formula")

	case strings.HasPrefix(key, rules.RelationshipInfluencePrefix):
		m, ok := value.(map[string]any)
		if !ok {
			v.addError(fmt.Sprintf("%s must be an object", where))
			return
		}
		if raw, ok := m["relationship_type_pattern"]; ok {
			p, isString := raw.(string)
			if !isString {
				v.addError(fmt.Sprintf("%s: relationship_type_pattern must be a string", where))
			} else if _, err := regexp.Compile(p); err != nil {
				v.addError(fmt.Sprintf("%s: invalid relationship_type_pattern: %v", where, err))
			}
		}
		v.validateFormula(where, m, "roll_modifier_formula")
		if raw, ok := m["thresholds"]; ok {
			v.validateThresholds(where, raw)
		}
	}
}

func (v *validator) validateFormula(where string, m map[string]any, field string) {
	raw, ok := m[field]
	if !ok {
		return
	}
	src, ok := raw.(string)
	if !ok {
		v.addError(fmt.Sprintf("%s: %s must be a string", where, field))
		return
	}
	if _, err := formula.Compile(src, formulaVars...); err != nil {
		v.addError(fmt.Sprintf("%s: %s: %v", where, field, err))
	}
}

func (v *validator) validateThresholds(where string, raw any) {
	list, ok := raw.([]any)
	if !ok {
		v.addError(fmt.Sprintf("%s: thresholds must be a list", where))
		return
	}
	for i, item := range list {
		t, ok := item.(map[string]any)
		if !ok {
			v.addError(fmt.Sprintf("%s: thresholds[%d] must be an object", where, i))
			continue
		}
		if _, ok := rules.ToInt(t["modifier"]); !ok {
			v.addError(fmt.Sprintf("%s: thresholds[%d].modifier must be an integer", where, i))
		}
		lo, hasLo := rules.ToInt(t["threshold_min"])
		hi, hasHi := rules.ToInt(t["threshold_max"])
		if hasLo && hasHi && lo > hi {
			v.addError(fmt.Sprintf("%s: thresholds[%d] has threshold_min > threshold_max", where, i))
		}
	}
}

func (v *validator) validateEntity(e actor.CharacterSpec) {
	if !validIDRegex.MatchString(e.ID) {
		v.addError(fmt.Sprintf("entity ID '%s' should be lowercase (letters, digits, '_' or '-')", e.ID))
	}
	switch e.Type {
	case actor.TypePlayer, actor.TypeNPC, actor.TypeGeneratedNPC, actor.TypeMonster:
	default:
		v.addError(fmt.Sprintf("entity %s has unknown type %q", e.ID, e.Type))
	}
	if e.MaxHP > 0 && e.HP > e.MaxHP {
		v.addError(fmt.Sprintf("entity %s has hp above max_hp", e.ID))
	}
}

func (v *validator) validateEncounter(enc encounter.Encounter, known map[actor.Ref]bool) {
	if enc.ID == uuid.Nil {
		v.addError("encounter without id")
	}
	switch enc.Status {
	case encounter.StatusPending, encounter.StatusActive, encounter.StatusEnded:
	default:
		v.addError(fmt.Sprintf("encounter %s has unknown status %q", enc.ID, enc.Status))
	}
	for _, p := range enc.Participants {
		if !known[p.Ref()] {
			v.addError(fmt.Sprintf("encounter %s participant %s is not a defined entity", enc.ID, p.Ref()))
		}
		if p.CurrentHP < 0 {
			v.addError(fmt.Sprintf("encounter %s participant %s has negative current_hp", enc.ID, p.ID))
		}
	}
	for k, val := range enc.RulesConfigSnapshot {
		v.validateRule(fmt.Sprintf("encounter %s snapshot", enc.ID), k, val)
	}
}

func mustBase(t language.Tag) language.Base {
	b, _ := t.Base()
	return b
}
