package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jwebster45206/rules-engine/pkg/queue"
	"github.com/redis/go-redis/v9"
)

const requestsKey = "combat-requests"

// ActionQueue is the global queue of combat actions plus the results workers
// record for them.
type ActionQueue struct {
	rdb       *redis.Client
	resultTTL time.Duration
	logger    *slog.Logger
}

// NewActionQueue creates a queue on the given client. Results expire after resultTTL.
func NewActionQueue(rdb *redis.Client, resultTTL time.Duration, logger *slog.Logger) *ActionQueue {
	if resultTTL <= 0 {
		resultTTL = time.Hour
	}
	return &ActionQueue{rdb: rdb, resultTTL: resultTTL, logger: logger}
}

func resultKey(requestID string) string {
	return fmt.Sprintf("combat-result:%s", requestID)
}

// Enqueue adds a request to the end of the queue and records it as queued.
func (q *ActionQueue) Enqueue(ctx context.Context, req *queue.Request) error {
	data, err := req.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize request: %w", err)
	}
	if err := q.rdb.RPush(ctx, requestsKey, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue request: %w", err)
	}
	if req.Attempts == 0 {
		pending := &queue.Result{
			RequestID:   req.RequestID,
			Status:      queue.ResultStatusQueued,
			EncounterID: req.EncounterID,
		}
		if err := q.SaveResult(ctx, pending); err != nil {
			q.logger.Warn("Failed to record queued request", "request_id", req.RequestID, "error", err)
		}
	}
	return nil
}

// Dequeue blocks up to timeout for the next request. Returns nil when none arrived.
func (q *ActionQueue) Dequeue(ctx context.Context, timeout time.Duration) (*queue.Request, error) {
	result, err := q.rdb.BLPop(ctx, timeout, requestsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue request: %w", err)
	}
	// BLPOP returns [key, value]
	if len(result) < 2 {
		return nil, nil
	}

	req, err := queue.FromJSON([]byte(result[1]))
	if err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return req, nil
}

// Depth returns the number of waiting requests
func (q *ActionQueue) Depth(ctx context.Context) (int, error) {
	n, err := q.rdb.LLen(ctx, requestsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue depth: %w", err)
	}
	return int(n), nil
}

// SaveResult records the processing state of a request
func (q *ActionQueue) SaveResult(ctx context.Context, res *queue.Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := q.rdb.Set(ctx, resultKey(res.RequestID), data, q.resultTTL).Err(); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

// GetResult returns the recorded result, or nil if the request is unknown or expired
func (q *ActionQueue) GetResult(ctx context.Context, requestID string) (*queue.Result, error) {
	data, err := q.rdb.Get(ctx, resultKey(requestID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load result: %w", err)
	}
	var res queue.Result
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &res, nil
}
