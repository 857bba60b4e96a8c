package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/rules-engine/pkg/actor"
	"github.com/jwebster45206/rules-engine/pkg/combat"
)

// RequestType identifies the type of request in the queue
type RequestType string

const (
	// RequestTypeCombatAction applies one combat action to an encounter
	RequestTypeCombatAction RequestType = "combat_action"
)

// Request represents a queued combat action
type Request struct {
	RequestID   string        `json:"request_id"`
	Type        RequestType   `json:"type"`
	TenantID    string        `json:"tenant_id"`
	EncounterID uuid.UUID     `json:"encounter_id"`
	Actor       actor.Ref     `json:"actor"`
	Action      combat.Action `json:"action"`

	// Attempts counts how many times the request was re-queued because its
	// encounter was busy.
	Attempts int `json:"attempts,omitempty"`

	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewCombatRequest wraps a combat request for the queue.
func NewCombatRequest(req combat.Request) *Request {
	return &Request{
		RequestID:   uuid.New().String(),
		Type:        RequestTypeCombatAction,
		TenantID:    req.TenantID,
		EncounterID: req.EncounterID,
		Actor:       req.Actor,
		Action:      req.Action,
		EnqueuedAt:  time.Now().UTC(),
	}
}

// CombatRequest converts the queued request back into a combat request
func (r *Request) CombatRequest() combat.Request {
	return combat.Request{
		TenantID:    r.TenantID,
		EncounterID: r.EncounterID,
		Actor:       r.Actor,
		Action:      r.Action,
	}
}

// ToJSON converts the request to JSON bytes for Redis
func (r *Request) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// FromJSON parses a request from JSON bytes
func FromJSON(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	if req.Type == "" {
		return nil, fmt.Errorf("request %s has no type", req.RequestID)
	}
	return &req, nil
}

// ResultStatus is the processing state of a queued request
type ResultStatus string

const (
	ResultStatusQueued    ResultStatus = "queued"
	ResultStatusCompleted ResultStatus = "completed"
	ResultStatusFailed    ResultStatus = "failed"
)

// Result is what the worker records for a processed request
type Result struct {
	RequestID   string               `json:"request_id"`
	Status      ResultStatus         `json:"status"`
	EncounterID uuid.UUID            `json:"encounter_id"`
	Action      *combat.ActionResult `json:"action,omitempty"`
	Error       string               `json:"error,omitempty"`
	CompletedAt time.Time            `json:"completed_at,omitzero"`
}
