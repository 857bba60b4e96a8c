package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/jwebster45206/rules-engine/pkg/actor"
	"github.com/jwebster45206/rules-engine/pkg/relationship"
)

// Relationship operations. Each record is stored once and indexed under both
// of its entities.

func (r *RedisStorage) SaveRelationship(ctx context.Context, tenantID string, rel *relationship.Relationship) error {
	if rel == nil {
		return errors.New("relationship cannot be nil")
	}
	if rel.ID == "" {
		rel.ID = uuid.New().String()
	}
	data, err := json.Marshal(rel)
	if err != nil {
		return fmt.Errorf("failed to marshal relationship: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, relationshipKey(tenantID, rel.ID), data, 0)
	pipe.SAdd(ctx, relationshipIndexKey(tenantID, string(rel.Entity1.Type), rel.Entity1.ID), rel.ID)
	pipe.SAdd(ctx, relationshipIndexKey(tenantID, string(rel.Entity2.Type), rel.Entity2.ID), rel.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to save relationship", "tenant_id", tenantID, "id", rel.ID, "error", err)
		return fmt.Errorf("failed to save relationship: %w", err)
	}
	return nil
}

// ForEntity returns the entity's relationships ordered by ID.
func (r *RedisStorage) ForEntity(ctx context.Context, tenantID string, ref actor.Ref) ([]relationship.Relationship, error) {
	ids, err := r.client.SMembers(ctx, relationshipIndexKey(tenantID, string(ref.Type), ref.ID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list relationships: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	slices.Sort(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = relationshipKey(tenantID, id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load relationships: %w", err)
	}

	rels := make([]relationship.Relationship, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			r.logger.Warn("Relationship index points at a missing record", "tenant_id", tenantID, "id", ids[i])
			continue
		}
		var rel relationship.Relationship
		if err := json.Unmarshal([]byte(s), &rel); err != nil {
			r.logger.Warn("Skipping unreadable relationship", "tenant_id", tenantID, "id", ids[i], "error", err)
			continue
		}
		rels = append(rels, rel)
	}
	return rels, nil
}

// Between returns the relationship with the lowest ID linking a and b.
func (r *RedisStorage) Between(ctx context.Context, tenantID string, a, b actor.Ref) (*relationship.Relationship, error) {
	rels, err := r.ForEntity(ctx, tenantID, a)
	if err != nil {
		return nil, err
	}
	for _, rel := range rels {
		if rel.Connects(a, b) {
			found := rel
			return &found, nil
		}
	}
	return nil, nil
}
