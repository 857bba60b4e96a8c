package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jwebster45206/rules-engine/internal/events"
	"github.com/jwebster45206/rules-engine/pkg/actor"
	"github.com/jwebster45206/rules-engine/pkg/combat"
	"github.com/jwebster45206/rules-engine/pkg/encounter"
	"github.com/jwebster45206/rules-engine/pkg/queue"
)

// ActionExecutor applies a combat action synchronously.
type ActionExecutor interface {
	Execute(ctx context.Context, req combat.Request) (*combat.ActionResult, error)
}

// ActionEnqueuer hands a combat action to the worker queue.
type ActionEnqueuer interface {
	Enqueue(ctx context.Context, req *queue.Request) error
}

// ActionRequest is the body of POST /v1/encounters/{id}/actions
type ActionRequest struct {
	TenantID string        `json:"tenant_id"`
	Actor    actor.Ref     `json:"actor"`
	Action   combat.Action `json:"action"`
}

// QueuedResponse acknowledges an asynchronous action
type QueuedResponse struct {
	RequestID string             `json:"request_id"`
	Status    queue.ResultStatus `json:"status"`
}

type EncounterHandler struct {
	encounters  encounter.Loader
	executor    ActionExecutor
	queue       ActionEnqueuer
	broadcaster *events.Broadcaster
	logger      *slog.Logger
}

// NewEncounterHandler creates the handler. queue and broadcaster may be nil,
// in which case async requests are rejected.
func NewEncounterHandler(encounters encounter.Loader, executor ActionExecutor, q ActionEnqueuer, broadcaster *events.Broadcaster, logger *slog.Logger) *EncounterHandler {
	return &EncounterHandler{
		encounters:  encounters,
		executor:    executor,
		queue:       q,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// ServeHTTP handles HTTP requests for encounters
// Routes:
// GET /v1/encounters/{id}?tenant_id=...        - Read encounter
// POST /v1/encounters/{id}/actions[?async=true] - Apply a combat action
func (h *EncounterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/encounters"), "/"), "/")
	if len(parts) == 0 || parts[0] == "" || len(parts) > 2 || (len(parts) == 2 && parts[1] != "actions") {
		writeError(w, h.logger, http.StatusNotFound, "Invalid path. Expected /v1/encounters/{id} or /v1/encounters/{id}/actions")
		return
	}

	encounterID, err := uuid.Parse(parts[0])
	if err != nil {
		h.logger.Warn("Invalid encounter ID", "id", parts[0], "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid encounter ID format")
		return
	}

	if len(parts) == 2 {
		if r.Method != http.MethodPost {
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
			return
		}
		h.handleAction(w, r, encounterID)
		return
	}

	if r.Method != http.MethodGet {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
		return
	}
	h.handleRead(w, r, encounterID)
}

func (h *EncounterHandler) handleRead(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		writeError(w, h.logger, http.StatusBadRequest, "tenant_id query parameter is required")
		return
	}

	enc, err := h.encounters.LoadEncounter(r.Context(), tenantID, id)
	if err != nil {
		h.logger.Error("Failed to load encounter", "error", err, "encounter_id", id.String())
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load encounter")
		return
	}
	if enc == nil {
		writeError(w, h.logger, http.StatusNotFound, "Encounter not found")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, enc)
}

func (h *EncounterHandler) handleAction(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var body ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'tenant_id', 'actor' and 'action'.")
		return
	}
	req := combat.Request{
		TenantID:    body.TenantID,
		EncounterID: id,
		Actor:       body.Actor,
		Action:      body.Action,
	}

	if r.URL.Query().Get("async") == "true" {
		h.enqueue(w, r, req)
		return
	}

	result, err := h.executor.Execute(r.Context(), req)
	if err != nil {
		status, msg := statusFor(err)
		writeError(w, h.logger, status, msg)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, result)
}

func (h *EncounterHandler) enqueue(w http.ResponseWriter, r *http.Request, req combat.Request) {
	if h.queue == nil {
		writeError(w, h.logger, http.StatusNotImplemented, "Asynchronous actions are not enabled")
		return
	}
	if req.TenantID == "" || req.Actor.ID == "" {
		writeError(w, h.logger, http.StatusBadRequest, "tenant_id and actor are required")
		return
	}

	queued := queue.NewCombatRequest(req)
	if err := h.queue.Enqueue(r.Context(), queued); err != nil {
		h.logger.Error("Failed to enqueue action", "error", err, "encounter_id", req.EncounterID.String())
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to enqueue action")
		return
	}
	if h.broadcaster != nil {
		if err := h.broadcaster.PublishRequestQueued(r.Context(), req.EncounterID, queued.RequestID, string(queued.Type)); err != nil {
			h.logger.Warn("Failed to publish queued event", "error", err)
		}
	}

	h.logger.Info("Combat action queued",
		"request_id", queued.RequestID,
		"tenant_id", req.TenantID,
		"encounter_id", req.EncounterID.String())
	writeJSON(w, h.logger, http.StatusAccepted, QueuedResponse{RequestID: queued.RequestID, Status: queue.ResultStatusQueued})
}
