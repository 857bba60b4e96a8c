package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jwebster45206/rules-engine/internal/events"
	internalqueue "github.com/jwebster45206/rules-engine/internal/queue"
	"github.com/jwebster45206/rules-engine/internal/service"
	"github.com/jwebster45206/rules-engine/internal/storage"
	"github.com/jwebster45206/rules-engine/pkg/actor"
	"github.com/jwebster45206/rules-engine/pkg/check"
	"github.com/jwebster45206/rules-engine/pkg/combat"
	"github.com/jwebster45206/rules-engine/pkg/dice"
	"github.com/jwebster45206/rules-engine/pkg/encounter"
	"github.com/jwebster45206/rules-engine/pkg/queue"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

type stubExecutor struct {
	result *combat.ActionResult
	err    error
	got    combat.Request
}

func (s *stubExecutor) Execute(_ context.Context, req combat.Request) (*combat.ActionResult, error) {
	s.got = req
	return s.result, s.err
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp.Error
}

func TestCheckHandler(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMockStorage()
	require.NoError(t, store.SaveEntity(ctx, "t1", &actor.CharacterSpec{
		ID: "hero", Type: actor.TypePlayer, Stats: map[string]int{"dexterity": 2},
	}))
	engine := check.NewEngine(store, dice.NewMockRoller(9), store, store, testLogger())
	h := NewCheckHandler(service.NewCheckService(engine, testLogger()), testLogger())

	t.Run("resolves", func(t *testing.T) {
		rr := postJSON(t, h, "/v1/checks", CheckRequest{
			TenantID: "t1", CheckType: "stealth", BaseAttribute: "dexterity",
			Actor:   actor.Ref{ID: "hero", Type: actor.TypePlayer},
			Context: map[string]any{"situational_bonus": 1},
		})
		require.Equal(t, http.StatusOK, rr.Code)

		var res check.Result
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		assert.Equal(t, 9, res.RollUsed)
		assert.Equal(t, 12, res.FinalValue)
		assert.Equal(t, check.StatusValueDetermined, res.Outcome.Status)
	})

	t.Run("missing check type", func(t *testing.T) {
		rr := postJSON(t, h, "/v1/checks", CheckRequest{TenantID: "t1", Actor: actor.Ref{ID: "hero"}})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("bad body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/checks", strings.NewReader("{"))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("broken notation", func(t *testing.T) {
		require.NoError(t, store.SetRules(ctx, "t1", map[string]any{"checks:broken:dice_notation": "2x6"}))
		rr := postJSON(t, h, "/v1/checks", CheckRequest{TenantID: "t1", CheckType: "broken", Actor: actor.Ref{ID: "hero", Type: actor.TypePlayer}})
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Contains(t, decodeError(t, rr), "invalid dice notation")
	})

	t.Run("method not allowed", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/checks", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	})
}

func TestEncounterHandler_Action(t *testing.T) {
	encID := uuid.New()
	path := "/v1/encounters/" + encID.String() + "/actions"
	body := ActionRequest{
		TenantID: "t1",
		Actor:    actor.Ref{ID: "hero", Type: actor.TypePlayer},
		Action:   combat.Action{Type: combat.ActionAttack, TargetID: "goblin", TargetType: actor.TypeMonster},
	}

	tests := []struct {
		name       string
		exec       *stubExecutor
		wantStatus int
	}{
		{"hit", &stubExecutor{result: &combat.ActionResult{Success: true, ActionType: "attack", Description: "Kara hits Goblin for 7 damage."}}, http.StatusOK},
		{"business failure is still 200", &stubExecutor{result: &combat.ActionResult{Success: false, Description: "The encounter is not active."}}, http.StatusOK},
		{"busy", &stubExecutor{err: service.ErrEncounterBusy}, http.StatusConflict},
		{"invalid", &stubExecutor{err: service.ErrInvalidRequest}, http.StatusBadRequest},
		{"rule defect", &stubExecutor{err: &check.Error{CheckType: "attack_roll", Notation: "d", Err: dice.ErrInvalidNotation}}, http.StatusUnprocessableEntity},
		{"storage failure", &stubExecutor{err: errors.New("failed to commit encounter")}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewEncounterHandler(storage.NewMockStorage(), tt.exec, nil, nil, testLogger())
			rr := postJSON(t, h, path, body)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, encID, tt.exec.got.EncounterID)
			assert.Equal(t, "goblin", tt.exec.got.Action.TargetID)
			if tt.wantStatus == http.StatusOK {
				var res combat.ActionResult
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
				assert.Equal(t, tt.exec.result.Description, res.Description)
			}
		})
	}
}

func TestEncounterHandler_AsyncAction(t *testing.T) {
	client := setupRedis(t)
	q := internalqueue.NewActionQueue(client, time.Minute, testLogger())
	exec := &stubExecutor{}
	h := NewEncounterHandler(storage.NewMockStorage(), exec, q, events.NewBroadcaster(client, testLogger()), testLogger())
	encID := uuid.New()

	rr := postJSON(t, h, "/v1/encounters/"+encID.String()+"/actions?async=true", ActionRequest{
		TenantID: "t1",
		Actor:    actor.Ref{ID: "hero", Type: actor.TypePlayer},
		Action:   combat.Action{Type: combat.ActionAttack, TargetID: "goblin"},
	})
	require.Equal(t, http.StatusAccepted, rr.Code)

	var resp QueuedResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, queue.ResultStatusQueued, resp.Status)
	assert.Empty(t, exec.got.TenantID, "async path must not execute inline")

	ctx := context.Background()
	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)

	queued, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, resp.RequestID, queued.RequestID)
	assert.Equal(t, encID, queued.EncounterID)

	results := NewResultHandler(q, testLogger())
	rr = httptest.NewRecorder()
	results.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/actions/"+resp.RequestID, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var res queue.Result
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.Equal(t, queue.ResultStatusQueued, res.Status)
}

func TestEncounterHandler_AsyncDisabled(t *testing.T) {
	h := NewEncounterHandler(storage.NewMockStorage(), &stubExecutor{}, nil, nil, testLogger())
	rr := postJSON(t, h, "/v1/encounters/"+uuid.NewString()+"/actions?async=true", ActionRequest{TenantID: "t1", Actor: actor.Ref{ID: "hero"}})
	assert.Equal(t, http.StatusNotImplemented, rr.Code)
}

func TestEncounterHandler_Read(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMockStorage()
	enc := &encounter.Encounter{
		ID:       uuid.New(),
		TenantID: "t1",
		Status:   encounter.StatusActive,
		Participants: []encounter.Participant{
			{ID: "goblin", Type: actor.TypeMonster, CurrentHP: 4, MaxHP: 10},
		},
	}
	require.NoError(t, store.SaveEncounter(ctx, enc))
	h := NewEncounterHandler(store, &stubExecutor{}, nil, nil, testLogger())

	tests := []struct {
		name       string
		path       string
		method     string
		wantStatus int
	}{
		{"found", "/v1/encounters/" + enc.ID.String() + "?tenant_id=t1", http.MethodGet, http.StatusOK},
		{"other tenant", "/v1/encounters/" + enc.ID.String() + "?tenant_id=t2", http.MethodGet, http.StatusNotFound},
		{"missing tenant", "/v1/encounters/" + enc.ID.String(), http.MethodGet, http.StatusBadRequest},
		{"bad id", "/v1/encounters/not-a-uuid?tenant_id=t1", http.MethodGet, http.StatusBadRequest},
		{"no id", "/v1/encounters/", http.MethodGet, http.StatusNotFound},
		{"unknown subresource", "/v1/encounters/" + enc.ID.String() + "/log", http.MethodGet, http.StatusNotFound},
		{"delete not allowed", "/v1/encounters/" + enc.ID.String() + "?tenant_id=t1", http.MethodDelete, http.StatusMethodNotAllowed},
		{"get on actions", "/v1/encounters/" + enc.ID.String() + "/actions", http.MethodGet, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus == http.StatusOK {
				var got encounter.Encounter
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
				assert.Equal(t, 4, got.Participants[0].CurrentHP)
			}
		})
	}

	store.SetLoadError(errors.New("connection refused"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/encounters/"+enc.ID.String()+"?tenant_id=t1", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestResultHandler(t *testing.T) {
	client := setupRedis(t)
	q := internalqueue.NewActionQueue(client, time.Minute, testLogger())
	h := NewResultHandler(q, testLogger())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/actions/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/actions/", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/actions/x", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestEventsHandler_Stream(t *testing.T) {
	client := setupRedis(t)
	h := NewEventsHandler(client, testLogger())
	server := httptest.NewServer(h)
	defer server.Close()
	encID := uuid.New()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/v1/events/encounters/"+encID.String(), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() string {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		// skip the data line and the blank separator
		_, err = reader.ReadString('\n')
		require.NoError(t, err)
		_, err = reader.ReadString('\n')
		require.NoError(t, err)
		return strings.TrimSpace(line)
	}

	assert.Equal(t, "event: connected", readEvent())

	b := events.NewBroadcaster(client, testLogger())
	require.NoError(t, b.PublishRequestQueued(ctx, encID, "r1", "combat_action"))
	assert.Equal(t, "event: request.queued", readEvent())
}

func TestEventsHandler_BadPath(t *testing.T) {
	h := NewEventsHandler(nil, testLogger())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/events/games/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/events/encounters/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/events/encounters/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
