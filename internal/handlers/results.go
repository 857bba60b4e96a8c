package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/rules-engine/pkg/queue"
)

// ResultReader looks up the recorded outcome of a queued action.
type ResultReader interface {
	GetResult(ctx context.Context, requestID string) (*queue.Result, error)
}

type ResultHandler struct {
	results ResultReader
	logger  *slog.Logger
}

func NewResultHandler(results ResultReader, logger *slog.Logger) *ResultHandler {
	return &ResultHandler{results: results, logger: logger}
}

// ServeHTTP handles GET /v1/actions/{request_id}
func (h *ResultHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
		return
	}

	requestID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/actions"), "/")
	if requestID == "" || strings.Contains(requestID, "/") {
		writeError(w, h.logger, http.StatusBadRequest, "Request ID is required")
		return
	}

	res, err := h.results.GetResult(r.Context(), requestID)
	if err != nil {
		h.logger.Error("Failed to load action result", "error", err, "request_id", requestID)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load action result")
		return
	}
	if res == nil {
		writeError(w, h.logger, http.StatusNotFound, "Action result not found or expired")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, res)
}
