package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/rules-engine/pkg/encounter"
	"github.com/redis/go-redis/v9"
)

// Encounter operations (Redis-backed)

func (r *RedisStorage) SaveEncounter(ctx context.Context, enc *encounter.Encounter) error {
	if enc == nil {
		return errors.New("encounter cannot be nil")
	}
	enc.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(enc)
	if err != nil {
		r.logger.Error("Failed to marshal encounter", "encounter_id", enc.ID, "error", err)
		return fmt.Errorf("failed to marshal encounter: %w", err)
	}

	if err := r.client.Set(ctx, encounterKey(enc.TenantID, enc.ID.String()), data, 0).Err(); err != nil {
		r.logger.Error("Failed to save encounter", "encounter_id", enc.ID, "error", err)
		return fmt.Errorf("failed to save encounter: %w", err)
	}
	return nil
}

func (r *RedisStorage) LoadEncounter(ctx context.Context, tenantID string, id uuid.UUID) (*encounter.Encounter, error) {
	data, err := r.client.Get(ctx, encounterKey(tenantID, id.String())).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.logger.Warn("Encounter not found", "tenant_id", tenantID, "encounter_id", id)
			return nil, nil
		}
		r.logger.Error("Failed to load encounter", "encounter_id", id, "error", err)
		return nil, fmt.Errorf("failed to load encounter: %w", err)
	}

	var enc encounter.Encounter
	if err := json.Unmarshal([]byte(data), &enc); err != nil {
		r.logger.Error("Failed to unmarshal encounter", "encounter_id", id, "error", err)
		return nil, fmt.Errorf("failed to unmarshal encounter: %w", err)
	}
	return &enc, nil
}

func (r *RedisStorage) DeleteEncounter(ctx context.Context, tenantID string, id uuid.UUID) error {
	if err := r.client.Del(ctx, encounterKey(tenantID, id.String())).Err(); err != nil {
		r.logger.Error("Failed to delete encounter", "encounter_id", id, "error", err)
		return fmt.Errorf("failed to delete encounter: %w", err)
	}
	return nil
}
