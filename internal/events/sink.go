package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/rules-engine/pkg/combat"
	"github.com/redis/go-redis/v9"
)

// maxLogLength caps each tenant's event log.
const maxLogLength = 1000

// Record is one persisted game event.
type Record struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenant_id"`
	EventType  string         `json:"event_type"`
	LocationID string         `json:"location_id,omitempty"`
	EntityIDs  []string       `json:"entity_ids,omitempty"`
	Details    map[string]any `json:"details"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Sink persists game events per tenant and fans combat events out on the
// encounter channel.
type Sink struct {
	redisClient *redis.Client
	logger      *slog.Logger
	now         func() time.Time
}

var _ combat.EventLogger = (*Sink)(nil)

// NewSink creates a Redis-backed event sink
func NewSink(redisClient *redis.Client, logger *slog.Logger) *Sink {
	return &Sink{redisClient: redisClient, logger: logger, now: time.Now}
}

func logKey(tenantID string) string {
	return fmt.Sprintf("events:%s", tenantID)
}

// LogEvent appends the event to the tenant's log. When details carry an
// encounter_id the event is also published to that encounter's channel.
func (s *Sink) LogEvent(ctx context.Context, tenantID, eventType string, details map[string]any, locationID string, entityIDs []string) error {
	rec := Record{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		EventType:  eventType,
		LocationID: locationID,
		EntityIDs:  entityIDs,
		Details:    details,
		CreatedAt:  s.now().UTC(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	pipe := s.redisClient.TxPipeline()
	pipe.RPush(ctx, logKey(tenantID), data)
	pipe.LTrim(ctx, logKey(tenantID), -maxLogLength, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Error("Failed to log event", "error", err, "tenant_id", tenantID, "event_type", eventType)
		return fmt.Errorf("failed to log event: %w", err)
	}

	if encounterID, ok := encounterOf(details); ok {
		event := Event{
			Type:        EventTypeCombatAction,
			EncounterID: encounterID.String(),
			Data: map[string]any{
				"event_type": eventType,
				"details":    details,
				"entity_ids": entityIDs,
			},
		}
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		// The event is already persisted; a failed publish only costs live listeners.
		if err := s.redisClient.Publish(ctx, Channel(encounterID), payload).Err(); err != nil {
			s.logger.Warn("Failed to publish event", "error", err, "encounter_id", encounterID.String())
		}
	}
	return nil
}

// Recent returns up to limit of the tenant's most recent events, oldest first.
func (s *Sink) Recent(ctx context.Context, tenantID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	raw, err := s.redisClient.LRange(ctx, logKey(tenantID), int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	out := make([]Record, 0, len(raw))
	for _, item := range raw {
		var rec Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			s.logger.Warn("Skipping unreadable event", "tenant_id", tenantID, "error", err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func encounterOf(details map[string]any) (uuid.UUID, bool) {
	switch v := details["encounter_id"].(type) {
	case uuid.UUID:
		return v, true
	case string:
		id, err := uuid.Parse(v)
		return id, err == nil
	}
	return uuid.Nil, false
}
