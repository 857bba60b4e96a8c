package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/rules-engine/internal/handlers"
	"github.com/jwebster45206/rules-engine/pkg/encounter"
	"github.com/jwebster45206/rules-engine/pkg/queue"
)

const (
	// PollInterval is how often to check for a queued action's result
	PollInterval = 100 * time.Millisecond
	// ResultTimeout is max time to wait for the worker to finish an action
	ResultTimeout = 15 * time.Second
)

// PostJSON posts body and returns the status and raw response.
func PostJSON(ctx context.Context, client *http.Client, url string, body any) (int, []byte, error) {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(reqBody))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// PostActionAsync queues an action and returns the request_id
func PostActionAsync(ctx context.Context, client *http.Client, baseURL string, encounterID uuid.UUID, action handlers.ActionRequest) (string, error) {
	url := fmt.Sprintf("%s/v1/encounters/%s/actions?async=true", baseURL, encounterID)
	status, body, err := PostJSON(ctx, client, url, action)
	if err != nil {
		return "", err
	}
	if status != http.StatusAccepted {
		return "", fmt.Errorf("actions endpoint returned %d (expected 202): %s", status, string(body))
	}

	var queued handlers.QueuedResponse
	if err := json.Unmarshal(body, &queued); err != nil {
		return "", fmt.Errorf("failed to parse queued response: %w", err)
	}
	if queued.RequestID == "" {
		return "", fmt.Errorf("queued response has no request_id: %s", string(body))
	}
	return queued.RequestID, nil
}

// GetEncounter retrieves an encounter. A missing encounter is nil, not an error.
func GetEncounter(ctx context.Context, client *http.Client, baseURL, tenantID string, encounterID uuid.UUID) (*encounter.Encounter, error) {
	url := fmt.Sprintf("%s/v1/encounters/%s?tenant_id=%s", baseURL, encounterID, tenantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create encounter request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send encounter request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("encounter endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var enc encounter.Encounter
	if err := json.NewDecoder(resp.Body).Decode(&enc); err != nil {
		return nil, fmt.Errorf("failed to decode encounter: %w", err)
	}
	return &enc, nil
}

// PollForResult polls the result endpoint until the request leaves the queued state
func PollForResult(ctx context.Context, client *http.Client, baseURL, requestID string) (*queue.Result, error) {
	timeout := time.After(ResultTimeout)
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	url := fmt.Sprintf("%s/v1/actions/%s", baseURL, requestID)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout:
			return nil, fmt.Errorf("timeout waiting for action result (waited %v)", ResultTimeout)
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return nil, fmt.Errorf("failed to create result request: %w", err)
			}
			resp, err := client.Do(req)
			if err != nil {
				// Keep polling; the API may be momentarily busy
				continue
			}
			var res queue.Result
			decodeErr := json.NewDecoder(resp.Body).Decode(&res)
			_ = resp.Body.Close()
			if resp.StatusCode != http.StatusOK || decodeErr != nil {
				continue
			}
			if res.Status != queue.ResultStatusQueued {
				return &res, nil
			}
		}
	}
}
