package combat

import (
	"context"

	"github.com/jwebster45206/rules-engine/pkg/actor"
	"github.com/jwebster45206/rules-engine/pkg/check"
	"github.com/jwebster45206/rules-engine/pkg/encounter"
	"github.com/jwebster45206/rules-engine/pkg/locale"
	"github.com/jwebster45206/rules-engine/pkg/rules"
)

const (
	defaultAttackCheckType  = "attack_roll"
	defaultAttackAttribute  = "strength"
	defaultDefenseAttribute = "armor_class"
	defaultDefenseValue     = 10
)

// attack carries the state of one attack action.
type attack struct {
	p        *Processor
	req      Request
	enc      *encounter.Encounter
	lang     string
	attacker actor.Entity
	result   *ActionResult
}

// run resolves the attack. logged reports whether the action reached the point
// where it belongs in the combat log.
func (a *attack) run(ctx context.Context) (logged bool, err error) {
	target := a.req.Action.Target()
	if target == nil {
		fail(a.result, locale.Sprintf(a.lang, locale.CombatTargetMissing))
		return false, nil
	}
	targetEnt, ok := a.p.resolve(ctx, a.req.TenantID, *target)
	if !ok {
		fail(a.result, locale.Sprintf(a.lang, locale.CombatLookupFailed))
		return false, nil
	}
	if targetEnt == nil {
		fail(a.result, locale.Sprintf(a.lang, locale.CombatTargetNotFound, target.ID))
		return false, nil
	}
	tp := a.enc.Participant(*target)
	if tp == nil {
		fail(a.result, locale.Sprintf(a.lang, locale.CombatTargetNotInCombat, targetEnt.Name()))
		return false, nil
	}
	if tp.IsDefeated() {
		a.result.Success = true
		a.result.Description = locale.Sprintf(a.lang, locale.CombatTargetDefeated, targetEnt.Name())
		a.result.AdditionalDetails = map[string]any{"target_already_defeated": true}
		return false, nil
	}

	res := rules.NewResolver(a.p.rules, a.req.TenantID, a.enc.RulesConfigSnapshot, a.p.logger)
	checkType := res.String(ctx, rules.AttackCheckType, defaultAttackCheckType)
	mainAttr := res.String(ctx, rules.AttackMainAttribute, defaultAttackAttribute)
	defenseAttr := res.String(ctx, rules.AttackDefenseAttribute, defaultDefenseAttribute)
	defender := actor.WithOverrides(targetEnt, tp.Stats)
	defense, ok := defender.Attribute(defenseAttr)
	if !ok {
		defense = defaultDefenseValue
	}

	chk, err := a.p.checks.ResolveCheck(ctx, check.Request{
		TenantID:      a.req.TenantID,
		CheckType:     checkType,
		Actor:         a.req.Actor,
		ActorEntity:   a.attacker,
		Target:        target,
		Difficulty:    &defense,
		Context:       a.req.Action.Params,
		Modifiers:     combatModifiers(a.attacker),
		RulesSnapshot: a.enc.RulesConfigSnapshot,
		BaseAttribute: mainAttr,
		Language:      a.lang,
	})
	if err != nil {
		return false, err
	}
	a.result.CheckResult = chk

	attackerName := a.attacker.Name()
	targetName := targetEnt.Name()
	details := map[string]any{
		"defense_attribute": defenseAttr,
		"defense_value":     defense,
	}
	a.result.AdditionalDetails = details

	if !chk.Outcome.Status.IsSuccess() {
		a.result.Success = false
		if chk.Outcome.Status == check.StatusCriticalFailure {
			a.result.Description = locale.Sprintf(a.lang, locale.CombatFumble, attackerName, targetName)
		} else {
			a.result.Description = locale.Sprintf(a.lang, locale.CombatMiss, attackerName, targetName)
		}
		return true, nil
	}

	crit := chk.Outcome.Status == check.StatusCriticalSuccess
	dmg := a.p.rollDamage(ctx, res, a.req.TenantID, a.attacker, crit)
	for k, v := range dmg.details {
		details[k] = v
	}

	before, after, _ := a.enc.ApplyDamage(*target, dmg.total)
	damage := dmg.total
	a.result.Success = true
	a.result.DamageDealt = &damage
	details["target_hp_before"] = before
	details["target_hp_after"] = after

	if crit {
		a.result.Description = locale.Sprintf(a.lang, locale.CombatCriticalHit, attackerName, targetName, damage)
	} else {
		a.result.Description = locale.Sprintf(a.lang, locale.CombatHit, attackerName, targetName, damage)
	}
	if before > 0 && after == 0 {
		details["target_defeated"] = true
		a.result.Description += " " + locale.Sprintf(a.lang, locale.CombatTargetFalls, targetName)
	}
	return true, nil
}

// combatModifiers turns the attacker's standing combat modifiers into to-hit terms.
func combatModifiers(e actor.Entity) []check.ModifierDetail {
	var out []check.ModifierDetail
	for _, m := range actor.CombatModifiersOf(e) {
		if m.Value == 0 {
			continue
		}
		out = append(out, check.ModifierDetail{
			Source:      "combat_modifier:" + m.Reason,
			Value:       m.Value,
			Description: "Combat modifier",
		})
	}
	return out
}
