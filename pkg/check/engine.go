// Package check resolves dice checks against per-tenant rules.
//
// A check rolls the configured dice for its type, adds modifiers from the actor's
// base attribute, the caller's context, hidden relationships and relationship
// influence, and compares the result against an optional difficulty. Critical
// results are decided on the raw roll alone.
package check

import (
	"context"
	"log/slog"
	"maps"

	"github.com/jwebster45206/rules-engine/pkg/actor"
	"github.com/jwebster45206/rules-engine/pkg/dice"
	"github.com/jwebster45206/rules-engine/pkg/formula"
	"github.com/jwebster45206/rules-engine/pkg/locale"
	"github.com/jwebster45206/rules-engine/pkg/relationship"
	"github.com/jwebster45206/rules-engine/pkg/rules"
)

const (
	defaultDiceNotation    = "1d20"
	defaultCritSuccess     = 20
	defaultCritFailure     = 1
	defaultLanguage        = "en"
	critDieSides           = 20
	formulaVarValue        = "value"
	formulaVarRelationship = "rel_value"
)

// Engine resolves checks. It only reads from its collaborators and is safe for
// concurrent use when they are.
type Engine struct {
	rules         rules.Provider
	roller        dice.Roller
	relationships relationship.Store
	entities      actor.Resolver
	formulas      *formula.Cache
	logger        *slog.Logger
}

// NewEngine creates an engine. relationships and entities may be nil, in which case
// relationship modifiers are skipped and entities must be supplied on the request.
func NewEngine(provider rules.Provider, roller dice.Roller, relationships relationship.Store, entities actor.Resolver, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		rules:         provider,
		roller:        roller,
		relationships: relationships,
		entities:      entities,
		formulas:      formula.NewCache(),
		logger:        logger,
	}
}

// ResolveCheck resolves a single check. The only error it returns is a *Error for a
// syntactically invalid dice notation; every other problem is logged and contributes 0.
func (e *Engine) ResolveCheck(ctx context.Context, req Request) (*Result, error) {
	res := rules.NewResolver(e.rules, req.TenantID, req.RulesSnapshot, e.logger)

	notation := res.String(ctx, rules.CheckDiceNotation(req.CheckType), defaultDiceNotation)
	baseAttr := req.BaseAttribute
	if baseAttr == "" {
		baseAttr = res.String(ctx, rules.CheckBaseAttribute(req.CheckType), "")
	}
	critSuccess := res.Int(ctx, rules.CheckCritSuccessThreshold(req.CheckType), defaultCritSuccess)
	critFailure := res.Int(ctx, rules.CheckCritFailureThreshold(req.CheckType), defaultCritFailure)

	expr, err := dice.Parse(notation)
	if err != nil {
		return nil, &Error{CheckType: req.CheckType, Notation: notation, Err: err}
	}

	actorEntity := req.ActorEntity
	if actorEntity == nil {
		actorEntity = e.lookupEntity(ctx, req.TenantID, req.Actor)
	}

	var details []ModifierDetail
	details = append(details, e.baseModifier(req, actorEntity, baseAttr)...)
	details = append(details, contextModifiers(req.Context)...)
	details = append(details, req.Modifiers...)
	if req.Target != nil && e.relationships != nil {
		details = append(details, e.hiddenRelationshipModifiers(ctx, res, req)...)
		details = append(details, e.influenceModifiers(ctx, res, req)...)
	}

	roll, err := e.roller.Roll(notation)
	if err != nil {
		return nil, &Error{CheckType: req.CheckType, Notation: notation, Err: err}
	}
	rollUsed := roll.Total
	if expr.IsSingleDie() && len(roll.Rolls) == 1 {
		rollUsed = roll.Rolls[0]
	}

	lang := req.Language
	if lang == "" {
		lang = res.String(ctx, rules.LocalizationLanguageKey, defaultLanguage)
	}

	result := newResult(req, notation, roll.Rolls, rollUsed, details)
	result.Outcome = decideOutcome(result, expr.HasDie(critDieSides), critSuccess, critFailure, lang)
	result.RuleConfigSnapshot = res.Consulted()

	e.logger.Debug("Check resolved",
		"tenant_id", req.TenantID,
		"check_type", req.CheckType,
		"actor", req.Actor.String(),
		"roll_used", result.RollUsed,
		"final_value", result.FinalValue,
		"status", result.Outcome.Status)
	return result, nil
}

func (e *Engine) lookupEntity(ctx context.Context, tenantID string, ref actor.Ref) actor.Entity {
	if e.entities == nil || ref.ID == "" {
		return nil
	}
	ent, err := e.entities.GetEntity(ctx, tenantID, ref.Type, ref.ID)
	if err != nil {
		e.logger.Warn("Entity lookup failed",
			"tenant_id", tenantID,
			"entity", ref.String(),
			"error", err)
		return nil
	}
	return ent
}

func (e *Engine) baseModifier(req Request, ent actor.Entity, attr string) []ModifierDetail {
	if attr == "" {
		e.logger.Warn("No base attribute configured for check type",
			"tenant_id", req.TenantID,
			"check_type", req.CheckType)
		return nil
	}
	if ent == nil {
		e.logger.Warn("Actor entity unavailable, base modifier is 0",
			"tenant_id", req.TenantID,
			"actor", req.Actor.String(),
			"attribute", attr)
		return nil
	}
	v, ok := ent.Attribute(attr)
	if !ok {
		e.logger.Warn("Actor has no such attribute, base modifier is 0",
			"tenant_id", req.TenantID,
			"actor", req.Actor.String(),
			"attribute", attr)
		return nil
	}
	return []ModifierDetail{{
		Source:      "base_stat:" + attr,
		Value:       v,
		Description: "Base " + attr,
	}}
}

func contextModifiers(c map[string]any) []ModifierDetail {
	if c == nil {
		return nil
	}
	if raw, ok := c[ContextBonusRollModifier]; ok {
		if v, ok := rules.ToInt(raw); ok {
			return []ModifierDetail{{
				Source:      "context:" + ContextBonusRollModifier,
				Value:       v,
				Description: "Situational roll modifier",
			}}
		}
	}

	var out []ModifierDetail
	if v, ok := rules.ToInt(c[ContextSituationalBonus]); ok && v != 0 {
		out = append(out, ModifierDetail{
			Source:      "context:" + ContextSituationalBonus,
			Value:       v,
			Description: "Situational bonus",
		})
	}
	if v, ok := rules.ToInt(c[ContextSituationalPenalty]); ok && v != 0 {
		out = append(out, ModifierDetail{
			Source:      "context:" + ContextSituationalPenalty,
			Value:       -v,
			Description: "Situational penalty",
		})
	}
	return out
}

// newResult is the only place a Result is built, so FinalValue always equals
// RollUsed + TotalModifier.
func newResult(req Request, notation string, rolls []int, rollUsed int, details []ModifierDetail) *Result {
	total := 0
	for _, d := range details {
		total += d.Value
	}
	if details == nil {
		details = []ModifierDetail{}
	}
	r := &Result{
		TenantID:        req.TenantID,
		CheckType:       req.CheckType,
		ActorID:         req.Actor.ID,
		ActorType:       req.Actor.Type,
		DiceNotation:    notation,
		RawRolls:        rolls,
		RollUsed:        rollUsed,
		TotalModifier:   total,
		ModifierDetails: details,
		FinalValue:      rollUsed + total,
		Context:         maps.Clone(req.Context),
	}
	if req.Target != nil {
		r.TargetID = req.Target.ID
		r.TargetType = req.Target.Type
	}
	if req.Difficulty != nil {
		dc := *req.Difficulty
		r.Difficulty = &dc
	}
	return r
}

func decideOutcome(r *Result, critEligible bool, critSuccess, critFailure int, lang string) Outcome {
	critHigh := critEligible && r.RollUsed >= critSuccess
	critLow := critEligible && !critHigh && r.RollUsed <= critFailure

	if r.Difficulty == nil {
		switch {
		case critHigh:
			return Outcome{StatusCriticalSuccessValue, locale.Sprintf(lang, locale.CheckCriticalSuccessValue, r.RollUsed, r.FinalValue)}
		case critLow:
			return Outcome{StatusCriticalFailureValue, locale.Sprintf(lang, locale.CheckCriticalFailureValue, r.RollUsed, r.FinalValue)}
		}
		return Outcome{StatusValueDetermined, locale.Sprintf(lang, locale.CheckValueDetermined, r.FinalValue)}
	}

	dc := *r.Difficulty
	switch {
	case critHigh:
		return Outcome{StatusCriticalSuccess, locale.Sprintf(lang, locale.CheckCriticalSuccess, r.RollUsed)}
	case critLow:
		return Outcome{StatusCriticalFailure, locale.Sprintf(lang, locale.CheckCriticalFailure, r.RollUsed)}
	case r.FinalValue >= dc:
		return Outcome{StatusSuccess, locale.Sprintf(lang, locale.CheckSuccess, r.FinalValue, dc)}
	}
	return Outcome{StatusFailure, locale.Sprintf(lang, locale.CheckFailure, r.FinalValue, dc)}
}
