package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeRequestQueued     EventType = "request.queued"
	EventTypeRequestProcessing EventType = "request.processing"
	EventTypeRequestCompleted  EventType = "request.completed"
	EventTypeRequestFailed     EventType = "request.failed"
	EventTypeCombatAction      EventType = "combat.action"
)

// Event represents a generic event structure
type Event struct {
	Type        EventType      `json:"type"`
	RequestID   string         `json:"request_id,omitempty"`
	EncounterID string         `json:"encounter_id,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}

// Broadcaster publishes events to Redis Pub/Sub, one channel per encounter
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// Channel is the Pub/Sub channel for an encounter's events.
func Channel(encounterID uuid.UUID) string {
	return fmt.Sprintf("encounter-events:%s", encounterID.String())
}

// PublishRequestQueued publishes a request.queued event
func (b *Broadcaster) PublishRequestQueued(ctx context.Context, encounterID uuid.UUID, requestID string, requestType string) error {
	event := Event{
		Type:        EventTypeRequestQueued,
		RequestID:   requestID,
		EncounterID: encounterID.String(),
		Data: map[string]any{
			"status": "queued",
			"type":   requestType,
		},
	}
	return b.publishToEncounter(ctx, encounterID, event)
}

// PublishRequestProcessing publishes a request.processing event
func (b *Broadcaster) PublishRequestProcessing(ctx context.Context, encounterID uuid.UUID, requestID string, requestType string) error {
	event := Event{
		Type:        EventTypeRequestProcessing,
		RequestID:   requestID,
		EncounterID: encounterID.String(),
		Data: map[string]any{
			"status": "processing",
			"type":   requestType,
		},
	}
	return b.publishToEncounter(ctx, encounterID, event)
}

// PublishRequestCompleted publishes a request.completed event
func (b *Broadcaster) PublishRequestCompleted(ctx context.Context, encounterID uuid.UUID, requestID string, result map[string]any) error {
	event := Event{
		Type:        EventTypeRequestCompleted,
		RequestID:   requestID,
		EncounterID: encounterID.String(),
		Data: map[string]any{
			"status": "completed",
			"result": result,
		},
	}
	return b.publishToEncounter(ctx, encounterID, event)
}

// PublishRequestFailed publishes a request.failed event
func (b *Broadcaster) PublishRequestFailed(ctx context.Context, encounterID uuid.UUID, requestID string, errorMsg string) error {
	event := Event{
		Type:        EventTypeRequestFailed,
		RequestID:   requestID,
		EncounterID: encounterID.String(),
		Data: map[string]any{
			"status": "failed",
			"error":  errorMsg,
		},
	}
	return b.publishToEncounter(ctx, encounterID, event)
}

// publishToEncounter publishes an event to the encounter-specific channel
func (b *Broadcaster) publishToEncounter(ctx context.Context, encounterID uuid.UUID, event Event) error {
	channel := Channel(encounterID)

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
		"request_id", event.RequestID,
	)

	return nil
}
