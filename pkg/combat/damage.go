package combat

import (
	"context"
	"log/slog"

	"github.com/jwebster45206/rules-engine/pkg/actor"
	"github.com/jwebster45206/rules-engine/pkg/dice"
	"github.com/jwebster45206/rules-engine/pkg/rules"
)

const (
	defaultDamageFormula   = "1d6"
	defaultDamageAttribute = "strength"
	defaultCritMultiplier  = 2
)

type damageRoll struct {
	total   int
	details map[string]any
}

// rollDamage rolls attack damage, applying the configured crit effect when crit is
// set. The total is never negative. A broken damage formula deals no damage.
func (p *Processor) rollDamage(ctx context.Context, res *rules.Resolver, tenantID string, attacker actor.Entity, crit bool) damageRoll {
	log := p.logger.With("tenant_id", tenantID)
	notation := res.String(ctx, rules.AttackDamageFormula, defaultDamageFormula)
	attr := res.String(ctx, rules.AttackDamageAttribute, defaultDamageAttribute)
	details := map[string]any{
		"damage_formula":   notation,
		"damage_attribute": attr,
	}

	expr, err := dice.Parse(notation)
	if err != nil {
		log.Warn("Invalid damage formula, dealing no damage",
			"formula", notation,
			"error", err)
		details["damage_error"] = err.Error()
		return damageRoll{total: 0, details: details}
	}
	base, ok := p.roll(log, expr, details)
	if !ok {
		return damageRoll{total: 0, details: details}
	}

	attrMod, _ := attacker.Attribute(attr)
	details["damage_rolls"] = base.Rolls
	details["damage_attribute_modifier"] = attrMod
	total := base.Total + attrMod

	if crit {
		effect := res.String(ctx, rules.CriticalHitEffect, CritMultiplyTotalDamage)
		diceOnly := expr.DiceOnly()
		switch effect {
		case CritDoubleDamageDice:
			extra, _ := p.roll(log, diceOnly, details)
			details["crit_extra_rolls"] = extra.Rolls
			total += extra.Total
		case CritMaximizeAndAddDice:
			extra, _ := p.roll(log, diceOnly, details)
			details["crit_extra_rolls"] = extra.Rolls
			total = diceOnly.Max() + expr.Modifier + attrMod + extra.Total
		default:
			if effect != CritMultiplyTotalDamage {
				log.Warn("Unknown critical hit effect, multiplying damage", "effect", effect)
				effect = CritMultiplyTotalDamage
			}
			mult := res.Int(ctx, rules.CriticalHitMultiplier, defaultCritMultiplier)
			details["crit_multiplier"] = mult
			total *= mult
		}
		details["crit_effect"] = effect
	}

	total = max(total, 0)
	details["damage_total"] = total
	return damageRoll{total: total, details: details}
}

// roll rolls a parsed expression through the roller. An expression with no dice
// rolls nothing.
func (p *Processor) roll(log *slog.Logger, expr dice.Expression, details map[string]any) (dice.Roll, bool) {
	if len(expr.Terms) == 0 {
		return dice.Roll{Rolls: []int{}, Modifier: expr.Modifier, Total: expr.Modifier}, true
	}
	r, err := p.roller.Roll(expr.String())
	if err != nil {
		log.Warn("Damage roll failed", "notation", expr.String(), "error", err)
		details["damage_error"] = err.Error()
		return dice.Roll{}, false
	}
	return r, true
}
