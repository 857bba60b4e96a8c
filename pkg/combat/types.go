package combat

import (
	"context"

	"github.com/google/uuid"
	"github.com/jwebster45206/rules-engine/pkg/actor"
	"github.com/jwebster45206/rules-engine/pkg/check"
)

// Action types.
const (
	ActionAttack = "attack"
)

// EventCombatAction is the event type emitted for every processed combat action.
const EventCombatAction = "COMBAT_ACTION"

// Crit effect variants for combat:critical_hit:effect.
const (
	CritMultiplyTotalDamage = "multiply_total_damage"
	CritDoubleDamageDice    = "double_damage_dice"
	CritMaximizeAndAddDice  = "maximize_and_add_dice"
)

// Action is what the actor attempts.
type Action struct {
	Type       string         `json:"type"`
	TargetID   string         `json:"target_id,omitempty"`
	TargetType actor.Type     `json:"target_type,omitempty"`
	Params     map[string]any `json:"params,omitempty"` // passed to the check as its context
}

// Target returns the action's target reference, or nil when none is set.
func (a Action) Target() *actor.Ref {
	if a.TargetID == "" {
		return nil
	}
	return &actor.Ref{ID: a.TargetID, Type: a.TargetType}
}

// Request is one combat action against an encounter.
type Request struct {
	TenantID    string    `json:"tenant_id"`
	EncounterID uuid.UUID `json:"encounter_id"`
	Actor       actor.Ref `json:"actor"`
	Action      Action    `json:"action"`
}

// Cost is a resource spent to perform an action.
type Cost struct {
	Resource string `json:"resource"`
	Amount   int    `json:"amount"`
}

// ActionResult is the outcome of one combat action.
type ActionResult struct {
	Success              bool           `json:"success"`
	ActionType           string         `json:"action_type"`
	ActorID              string         `json:"actor_id"`
	ActorType            actor.Type     `json:"actor_type"`
	TargetID             string         `json:"target_id,omitempty"`
	TargetType           actor.Type     `json:"target_type,omitempty"`
	DamageDealt          *int           `json:"damage_dealt,omitempty"`
	HealingDone          *int           `json:"healing_done,omitempty"`
	StatusEffectsApplied []string       `json:"status_effects_applied,omitempty"`
	StatusEffectsRemoved []string       `json:"status_effects_removed,omitempty"`
	CheckResult          *check.Result  `json:"check_result,omitempty"`
	Description          string         `json:"description"`
	CostsPaid            []Cost         `json:"costs_paid,omitempty"`
	AdditionalDetails    map[string]any `json:"additional_details,omitempty"`
}

// EventLogger is the audit sink for combat events.
type EventLogger interface {
	LogEvent(ctx context.Context, tenantID, eventType string, details map[string]any, locationID string, entityIDs []string) error
}
