package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jwebster45206/rules-engine/pkg/actor"
	"github.com/redis/go-redis/v9"
)

// Entity operations (players and NPCs share one keyspace, split by type)

func (r *RedisStorage) GetEntity(ctx context.Context, tenantID string, t actor.Type, id string) (actor.Entity, error) {
	key := entityKey(tenantID, string(t), id)
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.logger.Debug("Entity not found", "tenant_id", tenantID, "type", t, "id", id)
			return nil, nil
		}
		r.logger.Error("Failed to load entity", "tenant_id", tenantID, "type", t, "id", id, "error", err)
		return nil, fmt.Errorf("failed to load entity: %w", err)
	}

	var spec actor.CharacterSpec
	if err := json.Unmarshal([]byte(data), &spec); err != nil {
		r.logger.Error("Failed to unmarshal entity", "key", key, "error", err)
		return nil, fmt.Errorf("failed to unmarshal entity: %w", err)
	}
	// The key is authoritative for identity
	spec.ID = id
	spec.Type = t

	c, err := actor.NewCharacter(&spec)
	if err != nil {
		return nil, fmt.Errorf("failed to build entity %s: %w", key, err)
	}
	return c, nil
}

func (r *RedisStorage) SaveEntity(ctx context.Context, tenantID string, spec *actor.CharacterSpec) error {
	if spec == nil || spec.ID == "" || spec.Type == "" {
		return errors.New("entity needs an id and a type")
	}
	data, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}
	if err := r.client.Set(ctx, entityKey(tenantID, string(spec.Type), spec.ID), data, 0).Err(); err != nil {
		r.logger.Error("Failed to save entity", "tenant_id", tenantID, "id", spec.ID, "error", err)
		return fmt.Errorf("failed to save entity: %w", err)
	}
	return nil
}
