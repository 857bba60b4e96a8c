package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/rules-engine/internal/service"
	"github.com/jwebster45206/rules-engine/pkg/actor"
	"github.com/jwebster45206/rules-engine/pkg/check"
)

// CheckResolver resolves a check request.
type CheckResolver interface {
	Resolve(ctx context.Context, req check.Request) (*check.Result, error)
}

// CheckRequest is the wire form of a check.
type CheckRequest struct {
	TenantID      string         `json:"tenant_id"`
	CheckType     string         `json:"check_type"`
	Actor         actor.Ref      `json:"actor"`
	Target        *actor.Ref     `json:"target,omitempty"`
	Difficulty    *int           `json:"difficulty,omitempty"`
	Context       map[string]any `json:"context,omitempty"`
	BaseAttribute string         `json:"base_attribute,omitempty"`
	Language      string         `json:"language,omitempty"`
}

func (c CheckRequest) toCheck() check.Request {
	return check.Request{
		TenantID:      c.TenantID,
		CheckType:     c.CheckType,
		Actor:         c.Actor,
		Target:        c.Target,
		Difficulty:    c.Difficulty,
		Context:       c.Context,
		BaseAttribute: c.BaseAttribute,
		Language:      c.Language,
	}
}

type CheckHandler struct {
	checks CheckResolver
	logger *slog.Logger
}

func NewCheckHandler(checks CheckResolver, logger *slog.Logger) *CheckHandler {
	return &CheckHandler{checks: checks, logger: logger}
}

// ServeHTTP handles POST /v1/checks
func (h *CheckHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		h.logger.Warn("Method not allowed for checks endpoint", "method", r.Method)
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
		return
	}

	var request CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'tenant_id', 'check_type' and 'actor'.")
		return
	}

	result, err := h.checks.Resolve(r.Context(), request.toCheck())
	if err != nil {
		status, msg := statusFor(err)
		writeError(w, h.logger, status, msg)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, result)
}

// statusFor maps service errors onto HTTP responses.
func statusFor(err error) (int, string) {
	var checkErr *check.Error
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrEncounterBusy):
		return http.StatusConflict, "Encounter is processing another action. Try again."
	case errors.As(err, &checkErr):
		return http.StatusUnprocessableEntity, checkErr.Error()
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
