package check

import (
	"context"
	"regexp"
	"slices"

	"github.com/jwebster45206/rules-engine/pkg/actor"
	"github.com/jwebster45206/rules-engine/pkg/relationship"
	"github.com/jwebster45206/rules-engine/pkg/rules"
)

const (
	effectEnabled        = "enabled"
	effectAppliesTo      = "applies_to_check_types"
	effectRollFormula    = "roll_modifier_formula"
	effectDCFormula      = "dc_modifier_formula"
	influencePattern     = "relationship_type_pattern"
	influenceThresholds  = "thresholds"
	thresholdMin         = "threshold_min"
	thresholdMax         = "threshold_max"
	thresholdModifier    = "modifier"
	thresholdDescription = "description_key"
	anyCheckType         = "*"
)

// hiddenRelationships returns the hidden relationships between the actor and the
// target, found from whichever side is NPC-like.
func (e *Engine) hiddenRelationships(ctx context.Context, req Request) []relationship.Relationship {
	target := *req.Target
	var found []relationship.Relationship
	seen := make(map[string]bool)

	for _, side := range []actor.Ref{req.Actor, target} {
		if !side.Type.IsNPCLike() {
			continue
		}
		rels, err := e.relationships.ForEntity(ctx, req.TenantID, side)
		if err != nil {
			e.logger.Warn("Relationship lookup failed",
				"tenant_id", req.TenantID,
				"entity", side.String(),
				"error", err)
			continue
		}
		for _, rel := range rels {
			if !rel.IsHidden() || !rel.Connects(req.Actor, target) {
				continue
			}
			key := rel.ID
			if key == "" {
				key = rel.Entity1.String() + "|" + rel.Entity2.String() + "|" + rel.Type
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			found = append(found, rel)
		}
	}
	return found
}

// hiddenEffect finds the effect rule for a relationship type, trying the full type
// first and then the part before the first colon.
func hiddenEffect(ctx context.Context, res *rules.Resolver, rel relationship.Relationship) (string, map[string]any, bool) {
	key := rules.HiddenRelationshipEffectsPrefix + rel.Type
	if m, ok := res.Map(ctx, key); ok {
		return key, m, true
	}
	if prefix := rel.TypePrefix(); prefix != rel.Type {
		key = rules.HiddenRelationshipEffectsPrefix + prefix
		if m, ok := res.Map(ctx, key); ok {
			return key, m, true
		}
	}
	return "", nil, false
}

func appliesTo(effect map[string]any, checkType string) bool {
	types := rules.ToStringSlice(effect[effectAppliesTo])
	return slices.Contains(types, anyCheckType) || slices.Contains(types, checkType)
}

func (e *Engine) hiddenRelationshipModifiers(ctx context.Context, res *rules.Resolver, req Request) []ModifierDetail {
	var out []ModifierDetail
	for _, rel := range e.hiddenRelationships(ctx, req) {
		key, effect, ok := hiddenEffect(ctx, res, rel)
		if !ok || !rules.ToBool(effect[effectEnabled]) || !appliesTo(effect, req.CheckType) {
			continue
		}

		if src, ok := effect[effectRollFormula].(string); ok && src != "" {
			if v, ok := e.evalFormula(res, req.TenantID, key+":"+effectRollFormula, src, rel.Value); ok {
				out = append(out, ModifierDetail{
					Source:      "hidden_relationship:" + rel.Type + ":roll",
					Value:       v,
					Description: "Hidden influence",
				})
			}
		}
		// A lower effective DC is applied as a higher roll; each relationship adds its own term.
		if src, ok := effect[effectDCFormula].(string); ok && src != "" {
			if v, ok := e.evalFormula(res, req.TenantID, key+":"+effectDCFormula, src, rel.Value); ok {
				out = append(out, ModifierDetail{
					Source:      "hidden_relationship:" + rel.Type + ":dc",
					Value:       -v,
					Description: "Hidden influence",
				})
			}
		}
	}
	return out
}

func (e *Engine) influenceModifiers(ctx context.Context, res *rules.Resolver, req Request) []ModifierDetail {
	key := rules.RelationshipInfluencePrefix + req.CheckType
	cfg, ok := res.Map(ctx, key)
	if !ok || !rules.ToBool(cfg[effectEnabled]) {
		return nil
	}

	pattern, _ := cfg[influencePattern].(string)
	re, err := regexp.Compile(pattern)
	if err != nil {
		e.logger.Warn("Invalid relationship type pattern",
			"tenant_id", req.TenantID,
			"key", key,
			"pattern", pattern,
			"error", err)
		res.Record(key+":error", err.Error())
		return nil
	}

	rels, err := e.relationships.ForEntity(ctx, req.TenantID, req.Actor)
	if err != nil {
		e.logger.Warn("Relationship lookup failed",
			"tenant_id", req.TenantID,
			"actor", req.Actor.String(),
			"target", req.Target.String(),
			"error", err)
		res.Record(key+":error", err.Error())
		return nil
	}
	var rel *relationship.Relationship
	for i := range rels {
		if rels[i].Connects(req.Actor, *req.Target) && re.MatchString(rels[i].Type) {
			rel = &rels[i]
			break
		}
	}
	if rel == nil {
		return nil
	}

	source := "relationship_influence:" + rel.Type
	if src, ok := cfg[effectRollFormula].(string); ok && src != "" {
		v, ok := e.evalFormula(res, req.TenantID, key+":"+effectRollFormula, src, rel.Value)
		if !ok {
			return nil
		}
		return []ModifierDetail{{Source: source, Value: v, Description: "Relationship influence"}}
	}

	thresholds, _ := cfg[influenceThresholds].([]any)
	for _, raw := range thresholds {
		t, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if lo, ok := rules.ToInt(t[thresholdMin]); ok && rel.Value < lo {
			continue
		}
		if hi, ok := rules.ToInt(t[thresholdMax]); ok && rel.Value > hi {
			continue
		}
		mod, _ := rules.ToInt(t[thresholdModifier])
		desc, _ := t[thresholdDescription].(string)
		if desc == "" {
			desc = "Relationship influence"
		}
		return []ModifierDetail{{Source: source, Value: mod, Description: desc}}
	}
	return nil
}

// evalFormula evaluates a rule formula with the relationship value in scope. Failures
// are logged, recorded in the snapshot under <key>:error, and reported as !ok.
func (e *Engine) evalFormula(res *rules.Resolver, tenantID, key, src string, value int) (int, bool) {
	f, err := e.formulas.Compile(tenantID+"|"+key, src, formulaVarValue, formulaVarRelationship)
	if err == nil {
		var v int
		v, err = f.Eval(map[string]int{formulaVarValue: value, formulaVarRelationship: value})
		if err == nil {
			return v, true
		}
	}
	e.logger.Warn("Rule formula evaluation failed",
		"tenant_id", tenantID,
		"key", key,
		"formula", src,
		"error", err)
	res.Record(key+":error", err.Error())
	return 0, false
}
