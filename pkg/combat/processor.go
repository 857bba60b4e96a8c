// Package combat applies combat actions to encounters.
//
// The Processor performs an unguarded read-modify-write on the encounter it loads.
// It is not safe for concurrent calls against the same encounter: callers must
// serialize actions per encounter and persist the mutation themselves.
package combat

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jwebster45206/rules-engine/pkg/actor"
	"github.com/jwebster45206/rules-engine/pkg/check"
	"github.com/jwebster45206/rules-engine/pkg/dice"
	"github.com/jwebster45206/rules-engine/pkg/encounter"
	"github.com/jwebster45206/rules-engine/pkg/locale"
	"github.com/jwebster45206/rules-engine/pkg/rules"
)

const defaultLanguage = "en"

// Processor applies combat actions.
type Processor struct {
	checks     *check.Engine
	rules      rules.Provider
	roller     dice.Roller
	entities   actor.Resolver
	encounters encounter.Loader
	events     EventLogger
	logger     *slog.Logger
	now        func() time.Time
}

// NewProcessor creates a processor. events may be nil.
func NewProcessor(checks *check.Engine, provider rules.Provider, roller dice.Roller, entities actor.Resolver, encounters encounter.Loader, events EventLogger, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		checks:     checks,
		rules:      provider,
		roller:     roller,
		entities:   entities,
		encounters: encounters,
		events:     events,
		logger:     logger,
		now:        time.Now,
	}
}

// WithEncounters returns a copy of the processor that loads encounters from l,
// typically an encounter.Session scoped to one request.
func (p *Processor) WithEncounters(l encounter.Loader) *Processor {
	cp := *p
	cp.encounters = l
	return &cp
}

// WithEvents returns a copy of the processor that logs events to l.
func (p *Processor) WithEvents(l EventLogger) *Processor {
	cp := *p
	cp.events = l
	return &cp
}

// Events returns the processor's event logger, or nil.
func (p *Processor) Events() EventLogger {
	return p.events
}

// ProcessAction applies one action. Business failures come back as a result with
// Success false. The only error returned is a *check.Error for broken dice rules.
func (p *Processor) ProcessAction(ctx context.Context, req Request) (*ActionResult, error) {
	result := &ActionResult{
		ActionType: req.Action.Type,
		ActorID:    req.Actor.ID,
		ActorType:  req.Actor.Type,
	}
	if t := req.Action.Target(); t != nil {
		result.TargetID = t.ID
		result.TargetType = t.Type
	}

	if req.Action.Type != ActionAttack {
		lang := p.language(ctx, req.TenantID, nil)
		return fail(result, locale.Sprintf(lang, locale.CombatUnknownAction, req.Action.Type)), nil
	}

	enc, err := p.encounters.LoadEncounter(ctx, req.TenantID, req.EncounterID)
	if err != nil {
		p.logger.Error("Failed to load encounter",
			"tenant_id", req.TenantID,
			"encounter_id", req.EncounterID,
			"error", err)
		lang := p.language(ctx, req.TenantID, nil)
		return fail(result, locale.Sprintf(lang, locale.CombatLookupFailed)), nil
	}
	if enc == nil || enc.TenantID != req.TenantID {
		lang := p.language(ctx, req.TenantID, nil)
		return fail(result, locale.Sprintf(lang, locale.CombatEncounterNotFound)), nil
	}

	lang := p.language(ctx, req.TenantID, enc.RulesConfigSnapshot)
	if !enc.IsActive() {
		return fail(result, locale.Sprintf(lang, locale.CombatEncounterInactive)), nil
	}

	actorEnt, ok := p.resolve(ctx, req.TenantID, req.Actor)
	if !ok {
		return fail(result, locale.Sprintf(lang, locale.CombatLookupFailed)), nil
	}
	if actorEnt == nil {
		return fail(result, locale.Sprintf(lang, locale.CombatActorNotFound, req.Actor.ID)), nil
	}
	ap := enc.Participant(req.Actor)
	if ap == nil {
		return fail(result, locale.Sprintf(lang, locale.CombatActorNotInCombat, actorEnt.Name())), nil
	}

	a := attack{
		p:        p,
		req:      req,
		enc:      enc,
		lang:     lang,
		attacker: actor.WithOverrides(actorEnt, ap.Stats),
		result:   result,
	}
	logged, err := a.run(ctx)
	if err != nil {
		return nil, err
	}
	if logged {
		p.bookkeeping(ctx, enc, req, result)
	}
	return result, nil
}

func fail(result *ActionResult, description string) *ActionResult {
	result.Success = false
	result.Description = description
	return result
}

// resolve looks up an entity. ok is false when the lookup itself failed.
func (p *Processor) resolve(ctx context.Context, tenantID string, ref actor.Ref) (actor.Entity, bool) {
	ent, err := p.entities.GetEntity(ctx, tenantID, ref.Type, ref.ID)
	if err != nil {
		p.logger.Error("Failed to resolve entity",
			"tenant_id", tenantID,
			"entity", ref.String(),
			"error", err)
		return nil, false
	}
	return ent, true
}

func (p *Processor) language(ctx context.Context, tenantID string, snapshot map[string]any) string {
	res := rules.NewResolver(p.rules, tenantID, snapshot, p.logger)
	return res.String(ctx, rules.LocalizationLanguageKey, defaultLanguage)
}

// bookkeeping appends the action to the combat log and emits the combat event.
func (p *Processor) bookkeeping(ctx context.Context, enc *encounter.Encounter, req Request, result *ActionResult) {
	details, err := resultMap(result)
	if err != nil {
		p.logger.Error("Failed to encode combat result",
			"tenant_id", req.TenantID,
			"encounter_id", enc.ID,
			"error", err)
		details = map[string]any{"action_type": result.ActionType}
	}

	logDetails := make(map[string]any, len(details))
	for k, v := range details {
		if k == "actor_id" || k == "actor_type" {
			continue
		}
		logDetails[k] = v
	}
	enc.AppendLog(encounter.LogEntry{
		TurnNumber: enc.TurnNumber,
		ActorID:    req.Actor.ID,
		ActorType:  req.Actor.Type,
		ActionType: result.ActionType,
		Details:    logDetails,
		Timestamp:  p.now().UTC(),
	})

	if p.events == nil {
		return
	}
	details["encounter_id"] = enc.ID.String()
	entityIDs := []string{req.Actor.ID}
	if result.TargetID != "" {
		entityIDs = append(entityIDs, result.TargetID)
	}
	if err := p.events.LogEvent(ctx, req.TenantID, EventCombatAction, details, enc.LocationID, entityIDs); err != nil {
		p.logger.Warn("Failed to log combat event",
			"tenant_id", req.TenantID,
			"encounter_id", enc.ID,
			"error", err)
	}
}

func resultMap(result *ActionResult) (map[string]any, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
