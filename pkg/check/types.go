package check

import (
	"fmt"

	"github.com/jwebster45206/rules-engine/pkg/actor"
)

// Status is the outcome class of a check.
type Status string

const (
	StatusSuccess              Status = "success"
	StatusFailure              Status = "failure"
	StatusCriticalSuccess      Status = "critical_success"
	StatusCriticalFailure      Status = "critical_failure"
	StatusCriticalSuccessValue Status = "critical_success_value"
	StatusCriticalFailureValue Status = "critical_failure_value"
	StatusValueDetermined      Status = "value_determined"
)

// IsCritical reports whether the status is one of the critical variants.
func (s Status) IsCritical() bool {
	switch s {
	case StatusCriticalSuccess, StatusCriticalFailure, StatusCriticalSuccessValue, StatusCriticalFailureValue:
		return true
	}
	return false
}

// IsSuccess reports whether the status is a pass against a difficulty.
func (s Status) IsSuccess() bool {
	return s == StatusSuccess || s == StatusCriticalSuccess
}

// Context keys honored by the engine.
const (
	ContextBonusRollModifier  = "bonus_roll_modifier"
	ContextSituationalBonus   = "situational_bonus"
	ContextSituationalPenalty = "situational_penalty"
)

// ModifierDetail is one signed contribution to a check's total.
type ModifierDetail struct {
	Source      string `json:"source"`
	Value       int    `json:"value"`
	Description string `json:"description"`
}

// Outcome is the outcome class plus a short human-readable description.
type Outcome struct {
	Status      Status `json:"status"`
	Description string `json:"description"`
}

// Request describes one check to resolve.
type Request struct {
	TenantID  string
	CheckType string

	Actor actor.Ref
	// ActorEntity skips the entity lookup when set.
	ActorEntity actor.Entity

	// Target only keys relationship lookups; its entity is never loaded.
	Target *actor.Ref

	Difficulty *int
	Context    map[string]any
	// Modifiers are caller-supplied contributions added after the context modifiers.
	Modifiers []ModifierDetail

	// RulesSnapshot takes priority over live rule lookups.
	RulesSnapshot map[string]any
	// BaseAttribute overrides the checks:<type>:base_attribute rule.
	BaseAttribute string
	// Language selects the description language. Empty means the
	// localization:language rule.
	Language string
}

// Result is the immutable record of one resolved check.
//
// FinalValue is always RollUsed + TotalModifier.
type Result struct {
	TenantID           string           `json:"tenant_id"`
	CheckType          string           `json:"check_type"`
	ActorID            string           `json:"actor_id"`
	ActorType          actor.Type       `json:"actor_type"`
	TargetID           string           `json:"target_id,omitempty"`
	TargetType         actor.Type       `json:"target_type,omitempty"`
	Difficulty         *int             `json:"difficulty,omitempty"`
	DiceNotation       string           `json:"dice_notation"`
	RawRolls           []int            `json:"raw_rolls"`
	RollUsed           int              `json:"roll_used"`
	TotalModifier      int              `json:"total_modifier"`
	ModifierDetails    []ModifierDetail `json:"modifier_details"`
	FinalValue         int              `json:"final_value"`
	Outcome            Outcome          `json:"outcome"`
	RuleConfigSnapshot map[string]any   `json:"rule_config_snapshot"`
	Context            map[string]any   `json:"context,omitempty"`
}

// Error reports a configuration defect that makes a check impossible to resolve.
type Error struct {
	CheckType string
	Notation  string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("check %q: invalid dice notation %q: %v", e.CheckType, e.Notation, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
