package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jwebster45206/rules-engine/internal/handlers"
	"github.com/jwebster45206/rules-engine/pkg/check"
	"github.com/jwebster45206/rules-engine/pkg/combat"
	"github.com/jwebster45206/rules-engine/pkg/encounter"
)

type apiClient struct {
	client  *http.Client
	baseURL string
}

func newAPIClient(client *http.Client, baseURL string) *apiClient {
	return &apiClient{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (a *apiClient) testConnection() bool {
	resp, err := a.client.Get(a.baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

// call sends body (if any) and returns the raw response body. Any status other
// than want is turned into an error carrying the API's error message.
func (a *apiClient) call(method, path string, body any, want int) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, a.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != want {
		var errorResp handlers.ErrorResponse
		if err := json.Unmarshal(data, &errorResp); err != nil || errorResp.Error == "" {
			return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(data))
		}
		return nil, fmt.Errorf("%s (status %d)", errorResp.Error, resp.StatusCode)
	}
	return data, nil
}

func (a *apiClient) getEncounter(tenantID string, id uuid.UUID) (*encounter.Encounter, []byte, error) {
	data, err := a.call(http.MethodGet, fmt.Sprintf("/v1/encounters/%s?tenant_id=%s", id, tenantID), nil, http.StatusOK)
	if err != nil {
		return nil, nil, err
	}
	var enc encounter.Encounter
	if err := json.Unmarshal(data, &enc); err != nil {
		return nil, nil, fmt.Errorf("failed to parse encounter response: %w", err)
	}
	return &enc, data, nil
}

func (a *apiClient) resolveCheck(req handlers.CheckRequest) (*check.Result, []byte, error) {
	data, err := a.call(http.MethodPost, "/v1/checks", req, http.StatusOK)
	if err != nil {
		return nil, nil, err
	}
	var res check.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, nil, fmt.Errorf("failed to parse check response: %w", err)
	}
	return &res, data, nil
}

func (a *apiClient) performAction(encounterID uuid.UUID, req handlers.ActionRequest) (*combat.ActionResult, []byte, error) {
	data, err := a.call(http.MethodPost, fmt.Sprintf("/v1/encounters/%s/actions", encounterID), req, http.StatusOK)
	if err != nil {
		return nil, nil, err
	}
	var res combat.ActionResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, nil, fmt.Errorf("failed to parse action response: %w", err)
	}
	return &res, data, nil
}

func (a *apiClient) queueAction(encounterID uuid.UUID, req handlers.ActionRequest) (string, error) {
	data, err := a.call(http.MethodPost, fmt.Sprintf("/v1/encounters/%s/actions?async=true", encounterID), req, http.StatusAccepted)
	if err != nil {
		return "", err
	}
	var queued handlers.QueuedResponse
	if err := json.Unmarshal(data, &queued); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	return queued.RequestID, nil
}

// SSEEvent represents an event from the SSE stream
type SSEEvent struct {
	Type string
	Data map[string]any
}

// listenToSSE connects to the encounter event stream and forwards events until
// ctx is cancelled or the stream ends.
func (a *apiClient) listenToSSE(ctx context.Context, encounterID uuid.UUID, eventChan chan<- SSEEvent) error {
	url := fmt.Sprintf("%s/v1/events/encounters/%s", a.baseURL, encounterID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// The stream outlives any request timeout.
	resp, err := (&http.Client{Transport: a.client.Transport}).Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to SSE: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("SSE connection failed with status %d: %s", resp.StatusCode, string(body))
	}

	scanner := bufio.NewScanner(resp.Body)
	var current SSEEvent
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if current.Type != "" {
				select {
				case eventChan <- current:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			current = SSEEvent{}
		case strings.HasPrefix(line, "event: "):
			current.Type = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			var data map[string]any
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &data); err == nil {
				current.Data = data
			}
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("error reading SSE stream: %w", err)
	}
	return nil
}
