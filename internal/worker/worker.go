package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/rules-engine/internal/events"
	"github.com/jwebster45206/rules-engine/internal/queue"
	"github.com/jwebster45206/rules-engine/internal/service"
	"github.com/jwebster45206/rules-engine/pkg/combat"
	queuePkg "github.com/jwebster45206/rules-engine/pkg/queue"
)

const (
	workerTimeout = 5 * time.Second

	requeueBaseDelay = 50 * time.Millisecond
	requeueMaxDelay  = time.Second
)

// requeueDelay is how long a busy request waits before going back on the
// queue. It doubles per attempt up to requeueMaxDelay.
func requeueDelay(attempts int) time.Duration {
	d := requeueBaseDelay
	for i := 1; i < attempts && d < requeueMaxDelay; i++ {
		d *= 2
	}
	return min(d, requeueMaxDelay)
}

// Executor applies a combat action to its encounter.
type Executor interface {
	Execute(ctx context.Context, req combat.Request) (*combat.ActionResult, error)
}

// Worker processes combat actions from the action queue
type Worker struct {
	id          string
	queue       *queue.ActionQueue
	executor    Executor
	broadcaster *events.Broadcaster
	maxRequeues int
	delay       func(attempts int) time.Duration
	log         *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
}

// New creates a new worker instance
func New(q *queue.ActionQueue, executor Executor, broadcaster *events.Broadcaster, maxRequeues int, log *slog.Logger, workerID string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}

	return &Worker{
		id:          workerID,
		queue:       q,
		executor:    executor,
		broadcaster: broadcaster,
		maxRequeues: maxRequeues,
		delay:       requeueDelay,
		log:         log,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// ID returns the worker's identity
func (w *Worker) ID() string {
	return w.id
}

// Start begins processing requests from the queue
func (w *Worker) Start() error {
	w.log.Info("Worker starting", "worker_id", w.id)

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Worker shutting down", "worker_id", w.id)
			return nil
		default:
			if err := w.processNextRequest(); err != nil {
				w.log.Error("Error processing request", "error", err, "worker_id", w.id)
				// Continue processing even on error
				time.Sleep(1 * time.Second)
			}
		}
	}
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.log.Info("Worker stop requested", "worker_id", w.id)
	w.cancel()
}

// processNextRequest pulls the next request from the queue and processes it
func (w *Worker) processNextRequest() error {
	req, err := w.queue.Dequeue(w.ctx, workerTimeout)
	if err != nil {
		return fmt.Errorf("failed to dequeue request: %w", err)
	}
	if req == nil {
		// Queue is empty or timeout occurred - this is normal
		return nil
	}

	log := w.log.With("worker_id", w.id, "request_id", req.RequestID, "encounter_id", req.EncounterID.String())
	log.Info("Received request from queue", "type", req.Type, "attempts", req.Attempts)

	if req.Type != queuePkg.RequestTypeCombatAction {
		return w.fail(req, fmt.Errorf("unknown request type: %s", req.Type))
	}

	if req.Attempts == 0 {
		if err := w.broadcaster.PublishRequestProcessing(w.ctx, req.EncounterID, req.RequestID, string(req.Type)); err != nil {
			log.Error("Failed to publish processing event", "error", err)
		}
	}

	start := time.Now()
	result, err := w.executor.Execute(w.ctx, req.CombatRequest())
	if errors.Is(err, service.ErrEncounterBusy) {
		if req.Attempts >= w.maxRequeues {
			return w.fail(req, fmt.Errorf("encounter stayed busy after %d attempts", req.Attempts))
		}
		// Another writer holds the encounter; wait, then put the request back at the end.
		req.Attempts++
		delay := w.delay(req.Attempts)
		log.Info("Encounter locked, re-queueing request", "attempts", req.Attempts, "delay_ms", delay.Milliseconds())
		select {
		case <-time.After(delay):
		case <-w.ctx.Done():
		}
		// The request must survive a shutdown during the wait.
		if err := w.queue.Enqueue(context.WithoutCancel(w.ctx), req); err != nil {
			return fmt.Errorf("failed to re-queue request: %w", err)
		}
		return nil
	}
	if err != nil {
		return w.fail(req, err)
	}

	if err := w.queue.SaveResult(w.ctx, &queuePkg.Result{
		RequestID:   req.RequestID,
		Status:      queuePkg.ResultStatusCompleted,
		EncounterID: req.EncounterID,
		Action:      result,
		CompletedAt: time.Now().UTC(),
	}); err != nil {
		log.Error("Failed to save result", "error", err)
	}

	log.Info("Combat action processed",
		"success", result.Success,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if err := w.broadcaster.PublishRequestCompleted(w.ctx, req.EncounterID, req.RequestID, toMap(result)); err != nil {
		log.Error("Failed to publish completion event", "error", err)
	}
	return nil
}

// fail records and announces a request that cannot be processed. The request
// is consumed; the returned error is only for the worker log.
func (w *Worker) fail(req *queuePkg.Request, cause error) error {
	if err := w.queue.SaveResult(w.ctx, &queuePkg.Result{
		RequestID:   req.RequestID,
		Status:      queuePkg.ResultStatusFailed,
		EncounterID: req.EncounterID,
		Error:       cause.Error(),
		CompletedAt: time.Now().UTC(),
	}); err != nil {
		w.log.Error("Failed to save result", "error", err, "request_id", req.RequestID)
	}
	if err := w.broadcaster.PublishRequestFailed(w.ctx, req.EncounterID, req.RequestID, cause.Error()); err != nil {
		w.log.Error("Failed to publish failure event", "error", err)
	}
	return fmt.Errorf("request %s failed: %w", req.RequestID, cause)
}

func toMap(result *combat.ActionResult) map[string]any {
	data, err := json.Marshal(result)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}
