package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

type HealthResponse struct {
	Status     string         `json:"status"`
	Timestamp  time.Time      `json:"timestamp"`
	Service    string         `json:"service"`
	Components map[string]any `json:"components"`
}

// Pinger is anything the health check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// QueueDepther reports the number of waiting actions.
type QueueDepther interface {
	Depth(ctx context.Context) (int, error)
}

type HealthHandler struct {
	storage Pinger
	queue   QueueDepther
	logger  *slog.Logger
}

// NewHealthHandler creates the health handler. queue may be nil.
func NewHealthHandler(storage Pinger, queue QueueDepther, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		storage: storage,
		queue:   queue,
		logger:  logger,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	h.logger.Debug("Health check requested",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr)

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	components := make(map[string]any)
	overallStatus := "healthy"

	if err := h.storage.Ping(ctx); err != nil {
		h.logger.Warn("Storage health check failed", "error", err)
		components["storage"] = "unhealthy"
		overallStatus = "degraded"
	} else {
		components["storage"] = "healthy"
	}

	if h.queue != nil {
		if depth, err := h.queue.Depth(ctx); err != nil {
			h.logger.Warn("Queue health check failed", "error", err)
			components["queue"] = map[string]any{"status": "unhealthy"}
			overallStatus = "degraded"
		} else {
			components["queue"] = map[string]any{"status": "healthy", "depth": depth}
		}
	}

	response := HealthResponse{
		Status:     overallStatus,
		Timestamp:  time.Now(),
		Service:    "rules-engine",
		Components: components,
	}

	statusCode := http.StatusOK
	if overallStatus != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Error encoding health response",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path)
	}
}
