package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Rule operations. Each tenant's rules live in one hash; values are JSON.

func (r *RedisStorage) GetRule(ctx context.Context, tenantID, key string, def any) (any, error) {
	raw, err := r.client.HGet(ctx, rulesKey(tenantID), key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return def, nil
		}
		r.logger.Error("Failed to load rule", "tenant_id", tenantID, "key", key, "error", err)
		return def, fmt.Errorf("failed to load rule: %w", err)
	}

	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		r.logger.Error("Failed to unmarshal rule", "tenant_id", tenantID, "key", key, "error", err)
		return def, fmt.Errorf("failed to unmarshal rule %s: %w", key, err)
	}
	return v, nil
}

func (r *RedisStorage) SetRules(ctx context.Context, tenantID string, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	fields := make(map[string]any, len(values))
	for k, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal rule %s: %w", k, err)
		}
		fields[k] = string(data)
	}
	if err := r.client.HSet(ctx, rulesKey(tenantID), fields).Err(); err != nil {
		r.logger.Error("Failed to save rules", "tenant_id", tenantID, "error", err)
		return fmt.Errorf("failed to save rules: %w", err)
	}
	return nil
}

func (r *RedisStorage) ListRules(ctx context.Context, tenantID string) (map[string]any, error) {
	raw, err := r.client.HGetAll(ctx, rulesKey(tenantID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	out := make(map[string]any, len(raw))
	for k, data := range raw {
		var v any
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			r.logger.Warn("Skipping unreadable rule", "tenant_id", tenantID, "key", k, "error", err)
			continue
		}
		out[k] = v
	}
	return out, nil
}
