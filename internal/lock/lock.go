package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only when it still belongs to the caller.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// EncounterLock serializes actions per encounter across processes.
type EncounterLock struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewEncounterLock creates a lock manager. Locks expire after ttl if never released.
func NewEncounterLock(client *redis.Client, ttl time.Duration, logger *slog.Logger) *EncounterLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &EncounterLock{client: client, ttl: ttl, logger: logger}
}

func lockKey(encounterID uuid.UUID) string {
	return fmt.Sprintf("encounter-lock:%s", encounterID.String())
}

// Acquire attempts to take the lock for owner.
// Returns true if lock was acquired, false if already locked
func (l *EncounterLock) Acquire(ctx context.Context, encounterID uuid.UUID, owner string) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockKey(encounterID), owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire encounter lock: %w", err)
	}
	return ok, nil
}

// Release frees the lock if owner still holds it.
func (l *EncounterLock) Release(ctx context.Context, encounterID uuid.UUID, owner string) {
	if err := releaseScript.Run(ctx, l.client, []string{lockKey(encounterID)}, owner).Err(); err != nil {
		l.logger.Error("Failed to release encounter lock", "error", err, "encounter_id", encounterID.String())
	}
}

// Holder returns the current owner of the lock, or "" when it is free.
func (l *EncounterLock) Holder(ctx context.Context, encounterID uuid.UUID) (string, error) {
	owner, err := l.client.Get(ctx, lockKey(encounterID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read encounter lock: %w", err)
	}
	return owner, nil
}
