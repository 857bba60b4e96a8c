package queue

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jwebster45206/rules-engine/pkg/actor"
	"github.com/jwebster45206/rules-engine/pkg/combat"
	"github.com/jwebster45206/rules-engine/pkg/queue"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestQueue(t *testing.T) (*ActionQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewActionQueue(client, time.Minute, logger), mr
}

func sampleRequest() *queue.Request {
	return queue.NewCombatRequest(combat.Request{
		TenantID:    "t1",
		EncounterID: uuid.New(),
		Actor:       actor.Ref{ID: "hero", Type: actor.TypePlayer},
		Action:      combat.Action{Type: combat.ActionAttack, TargetID: "goblin", TargetType: actor.TypeNPC},
	})
}

func TestActionQueue_FIFO(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	first, second := sampleRequest(), sampleRequest()
	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Enqueue(ctx, second))

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, depth)

	got, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.RequestID, got.RequestID)
	assert.Equal(t, "goblin", got.Action.TargetID)
	assert.Equal(t, first.EncounterID, got.CombatRequest().EncounterID)

	got, err = q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, second.RequestID, got.RequestID)

	depth, err = q.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestActionQueue_EnqueueRecordsQueued(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()
	req := sampleRequest()

	require.NoError(t, q.Enqueue(ctx, req))

	res, err := q.GetResult(ctx, req.RequestID)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, queue.ResultStatusQueued, res.Status)
	assert.Equal(t, req.EncounterID, res.EncounterID)
}

func TestActionQueue_RequeueKeepsResult(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()
	req := sampleRequest()

	require.NoError(t, q.SaveResult(ctx, &queue.Result{RequestID: req.RequestID, Status: queue.ResultStatusFailed}))
	req.Attempts = 1
	require.NoError(t, q.Enqueue(ctx, req))

	res, err := q.GetResult(ctx, req.RequestID)
	require.NoError(t, err)
	assert.Equal(t, queue.ResultStatusFailed, res.Status)
}

func TestActionQueue_ResultExpires(t *testing.T) {
	q, mr := setupTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.SaveResult(ctx, &queue.Result{RequestID: "r1", Status: queue.ResultStatusCompleted}))
	mr.FastForward(2 * time.Minute)

	res, err := q.GetResult(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestActionQueue_DequeueEmpty(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	got, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestActionQueue_DequeueMalformed(t *testing.T) {
	q, mr := setupTestQueue(t)
	_, err := mr.RPush(requestsKey, `{"request_id":"x"}`)
	require.NoError(t, err)

	_, err = q.Dequeue(context.Background(), time.Second)
	assert.Error(t, err)
}
