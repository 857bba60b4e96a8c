// Package service runs engine operations with the storage and locking a
// deployment needs around them.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jwebster45206/rules-engine/internal/logger"
	"github.com/jwebster45206/rules-engine/pkg/combat"
	"github.com/jwebster45206/rules-engine/pkg/encounter"
)

var (
	// ErrEncounterBusy is returned when another action holds the encounter.
	ErrEncounterBusy = errors.New("encounter is busy")
	// ErrInvalidRequest is returned for requests missing required fields.
	ErrInvalidRequest = errors.New("invalid request")
)

// Locker serializes work per encounter.
type Locker interface {
	Acquire(ctx context.Context, encounterID uuid.UUID, owner string) (bool, error)
	Release(ctx context.Context, encounterID uuid.UUID, owner string)
}

// CombatService applies one combat action at a time per encounter and
// persists the mutation.
type CombatService struct {
	processor *combat.Processor
	store     encounter.Store
	locker    Locker
	owner     string
	logger    *slog.Logger
}

// NewCombatService creates the service. owner names this process in lock records.
func NewCombatService(processor *combat.Processor, store encounter.Store, locker Locker, owner string, log *slog.Logger) *CombatService {
	if owner == "" {
		owner = "api"
	}
	return &CombatService{
		processor: processor,
		store:     store,
		locker:    locker,
		owner:     owner,
		logger:    log,
	}
}

// Execute locks the encounter, processes the action, commits the encounter and
// releases the lock. Business failures are reported in the result.
//
// Events the processor logs are held until the commit succeeds; a failed commit
// drops them, so the event log never describes an unsaved mutation.
func (s *CombatService) Execute(ctx context.Context, req combat.Request) (*combat.ActionResult, error) {
	if req.TenantID == "" || req.EncounterID == uuid.Nil || req.Actor.ID == "" {
		return nil, fmt.Errorf("%w: tenant_id, encounter_id and actor are required", ErrInvalidRequest)
	}
	log := logger.WithTenant(s.logger, req.TenantID, req.EncounterID.String())

	// Each call gets its own lock identity, so two requests in one process still exclude each other.
	owner := fmt.Sprintf("%s:%s", s.owner, uuid.New().String()[:8])
	ok, err := s.locker.Acquire(ctx, req.EncounterID, owner)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Info("Encounter locked, rejecting action", "actor", req.Actor.String())
		return nil, ErrEncounterBusy
	}
	defer s.locker.Release(context.WithoutCancel(ctx), req.EncounterID, owner)

	session := encounter.NewSession(s.store)
	processor := s.processor.WithEncounters(session)
	sink := processor.Events()
	pending := &pendingEvents{}
	if sink != nil {
		processor = processor.WithEvents(pending)
	}
	result, err := processor.ProcessAction(ctx, req)
	if err != nil {
		log.Error("Combat action failed", "error", err, "actor", req.Actor.String())
		return nil, err
	}

	saved, err := session.Commit(ctx)
	if err != nil {
		log.Error("Failed to commit encounter", "error", err)
		return nil, fmt.Errorf("failed to commit encounter: %w", err)
	}
	if sink != nil {
		pending.flush(ctx, sink, log)
	}

	log.Info("Combat action processed",
		"actor", req.Actor.String(),
		"action", req.Action.Type,
		"success", result.Success,
		"saved", saved,
	)
	return result, nil
}

type pendingEvent struct {
	tenantID   string
	eventType  string
	details    map[string]any
	locationID string
	entityIDs  []string
}

// pendingEvents holds combat events until the encounter is committed.
type pendingEvents struct {
	events []pendingEvent
}

func (p *pendingEvents) LogEvent(_ context.Context, tenantID, eventType string, details map[string]any, locationID string, entityIDs []string) error {
	p.events = append(p.events, pendingEvent{tenantID, eventType, details, locationID, entityIDs})
	return nil
}

func (p *pendingEvents) flush(ctx context.Context, sink combat.EventLogger, log *slog.Logger) {
	for _, ev := range p.events {
		if err := sink.LogEvent(ctx, ev.tenantID, ev.eventType, ev.details, ev.locationID, ev.entityIDs); err != nil {
			log.Warn("Failed to log combat event", "event_type", ev.eventType, "error", err)
		}
	}
	p.events = nil
}
