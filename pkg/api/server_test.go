package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcmartin/flowexec/pkg/config"
	"github.com/tcmartin/flowexec/pkg/models"
	"github.com/tcmartin/flowexec/pkg/registry"
	"github.com/tcmartin/flowexec/pkg/runtime"
	"github.com/tcmartin/flowexec/pkg/storage"
	"github.com/tcmartin/flowexec/pkg/triggers"
)

type serverEnv struct {
	server  *Server
	engine  *runtime.Engine
	graphs  *registry.GraphRegistry
	manager *triggers.Manager
	bus     *triggers.EventBus
}

func newTestServer(t *testing.T, cfg *config.Config) *serverEnv {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	executors := runtime.NewExecutorRegistry()
	executors.SetFallback(runtime.ExecutorFunc(func(_ context.Context, node models.Node, _ models.RunContext) (runtime.Result, error) {
		return runtime.Result{Output: map[string]interface{}{"node": node.ID}}, nil
	}))

	engine := runtime.NewEngine(executors, storage.NewMemoryHistoryStore())
	graphs := registry.NewGraphRegistry()
	bus := triggers.NewEventBus()

	manager, err := triggers.NewManager(triggers.NewMemoryStore(), graphs, engine, bus, cfg.ResolveBaseURL())
	require.NoError(t, err)

	return &serverEnv{
		server:  NewServer(cfg, engine, graphs, manager, bus),
		engine:  engine,
		graphs:  graphs,
		manager: manager,
		bus:     bus,
	}
}

func (env *serverEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func linearFlowRequest(flowID string) map[string]interface{} {
	return map[string]interface{}{
		"flowId": flowID,
		"nodes": []map[string]interface{}{
			{"id": "a", "kind": "api_call"},
			{"id": "b", "kind": "api_call"},
		},
		"edges": []map[string]interface{}{
			{"source": "a", "target": "b"},
		},
	}
}

func (env *serverEnv) waitTerminal(t *testing.T, executionID string) models.Run {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		run, err := env.engine.Status(executionID)
		require.NoError(t, err)
		if run.Status.Terminal() {
			return run
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("run did not reach a terminal status in time")
	return models.Run{}
}

func TestExecuteFlowAndStatus(t *testing.T) {
	env := newTestServer(t, nil)

	rec := env.do(t, http.MethodPost, "/executeFlow", linearFlowRequest("wf-1"))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp struct {
		ExecutionID string `json:"executionId"`
		Status      string `json:"status"`
		Message     string `json:"message"`
		StartTime   string `json:"startTime"`
	}
	decodeBody(t, rec, &resp)
	require.NotEmpty(t, resp.ExecutionID)
	assert.Equal(t, "Workflow execution started", resp.Message)
	assert.NotEmpty(t, resp.StartTime)

	env.waitTerminal(t, resp.ExecutionID)

	rec = env.do(t, http.MethodGet, "/execution/"+resp.ExecutionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var run models.Run
	decodeBody(t, rec, &run)
	assert.Equal(t, models.RunCompleted, run.Status)
	assert.Equal(t, float64(100), run.Progress)
	assert.Len(t, run.NodeStates, 2)
	assert.Equal(t, models.NodeCompleted, run.NodeStates["a"].Status)
	assert.NotEmpty(t, run.Logs)

	// The graph is remembered for trigger-started runs.
	g, err := env.graphs.Get("wf-1")
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 2)
}

func TestExecuteFlowRejectsInvalidGraph(t *testing.T) {
	env := newTestServer(t, nil)

	body := map[string]interface{}{
		"flowId": "wf-1",
		"nodes": []map[string]interface{}{
			{"id": "a", "kind": "api_call"},
		},
		"edges": []map[string]interface{}{
			{"source": "a", "target": "ghost"},
		},
	}
	rec := env.do(t, http.MethodPost, "/executeFlow", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Invalid graphs are never remembered.
	_, err := env.graphs.Get("wf-1")
	assert.Error(t, err)
}

func TestExecuteFlowRequiresFlowID(t *testing.T) {
	env := newTestServer(t, nil)

	body := linearFlowRequest("")
	rec := env.do(t, http.MethodPost, "/executeFlow", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetExecutionNotFound(t *testing.T) {
	env := newTestServer(t, nil)

	rec := env.do(t, http.MethodGet, "/execution/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelExecution(t *testing.T) {
	env := newTestServer(t, nil)

	rec := env.do(t, http.MethodPost, "/executeFlow", linearFlowRequest("wf-1"))
	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp struct {
		ExecutionID string `json:"executionId"`
	}
	decodeBody(t, rec, &resp)

	env.waitTerminal(t, resp.ExecutionID)

	// Terminal runs report success=false.
	rec = env.do(t, http.MethodPost, "/execution/"+resp.ExecutionID+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cancelResp struct {
		Success bool `json:"success"`
	}
	decodeBody(t, rec, &cancelResp)
	assert.False(t, cancelResp.Success)

	rec = env.do(t, http.MethodPost, "/execution/unknown/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &cancelResp)
	assert.False(t, cancelResp.Success)
}

func TestHistoryEndpoint(t *testing.T) {
	env := newTestServer(t, nil)

	rec := env.do(t, http.MethodPost, "/executeFlow", linearFlowRequest("wf-1"))
	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp struct {
		ExecutionID string `json:"executionId"`
	}
	decodeBody(t, rec, &resp)
	env.waitTerminal(t, resp.ExecutionID)

	// History writes land shortly after the run goes terminal.
	deadline := time.Now().Add(2 * time.Second)
	var entries []models.HistoryEntry
	for time.Now().Before(deadline) {
		rec = env.do(t, http.MethodGet, "/workflow/wf-1/history", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		decodeBody(t, rec, &entries)
		if len(entries) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Len(t, entries, 1)
	assert.Equal(t, resp.ExecutionID, entries[0].ExecutionID)
	assert.Equal(t, models.RunCompleted, entries[0].Status)
	assert.Equal(t, 2, entries[0].NodeCount)

	rec = env.do(t, http.MethodGet, "/workflow/wf-1/history?limit=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/workflow/empty/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &entries)
	assert.Empty(t, entries)
}

func TestRegisterAndListTriggers(t *testing.T) {
	env := newTestServer(t, nil)

	rec := env.do(t, http.MethodPost, "/workflows/wf-1/schedule", map[string]interface{}{
		"frequency": "daily",
		"time":      "09:00",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var schedule models.ScheduleTrigger
	decodeBody(t, rec, &schedule)
	assert.NotEmpty(t, schedule.ID)
	assert.False(t, schedule.NextExecution.IsZero())

	rec = env.do(t, http.MethodPost, "/workflows/wf-1/webhook", map[string]interface{}{})
	require.Equal(t, http.StatusCreated, rec.Code)
	var webhook models.WebhookTrigger
	decodeBody(t, rec, &webhook)
	assert.Equal(t, "/hooks/"+webhook.ID, webhook.Path)
	assert.NotEmpty(t, webhook.Secret)
	assert.NotEmpty(t, webhook.URL)

	rec = env.do(t, http.MethodPost, "/workflows/wf-1/event-trigger", map[string]interface{}{
		"event_type": "user.created",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/workflows/wf-1/triggers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var set triggers.TriggerSet
	decodeBody(t, rec, &set)
	assert.Len(t, set.Schedules, 1)
	assert.Len(t, set.Webhooks, 1)
	assert.Len(t, set.Events, 1)
}

func TestRegisterTriggerValidation(t *testing.T) {
	env := newTestServer(t, nil)

	// Weekly schedule without days cannot compute a next execution.
	rec := env.do(t, http.MethodPost, "/workflows/wf-1/schedule", map[string]interface{}{
		"frequency": "weekly",
		"time":      "09:00",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/workflows/wf-1/event-trigger", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoveTrigger(t *testing.T) {
	env := newTestServer(t, nil)

	rec := env.do(t, http.MethodPost, "/workflows/wf-1/webhook", map[string]interface{}{})
	require.Equal(t, http.StatusCreated, rec.Code)
	var webhook models.WebhookTrigger
	decodeBody(t, rec, &webhook)

	rec = env.do(t, http.MethodDelete, "/triggers/"+webhook.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodDelete, "/triggers/"+webhook.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInboundWebhookStartsRun(t *testing.T) {
	env := newTestServer(t, nil)

	// Seed the graph the trigger will start.
	rec := env.do(t, http.MethodPost, "/executeFlow", linearFlowRequest("wf-1"))
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = env.do(t, http.MethodPost, "/workflows/wf-1/webhook", map[string]interface{}{})
	require.Equal(t, http.StatusCreated, rec.Code)
	var webhook models.WebhookTrigger
	decodeBody(t, rec, &webhook)

	req := httptest.NewRequest(http.MethodPost, webhook.Path, nil)
	req.Header.Set("X-Webhook-Secret", webhook.Secret)
	recorder := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(recorder, req)
	require.Equal(t, http.StatusAccepted, recorder.Code)

	var resp struct {
		ExecutionID string `json:"executionId"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ExecutionID)

	run := env.waitTerminal(t, resp.ExecutionID)
	assert.Equal(t, models.TriggerWebhook, run.Context.TriggerType)
}

func TestInboundWebhookRejections(t *testing.T) {
	env := newTestServer(t, nil)

	env.do(t, http.MethodPost, "/executeFlow", linearFlowRequest("wf-1"))
	rec := env.do(t, http.MethodPost, "/workflows/wf-1/webhook", map[string]interface{}{})
	require.Equal(t, http.StatusCreated, rec.Code)
	var webhook models.WebhookTrigger
	decodeBody(t, rec, &webhook)

	tests := []struct {
		name     string
		method   string
		path     string
		secret   string
		wantCode int
	}{
		{"unknown trigger", http.MethodPost, "/hooks/ghost", "x", http.StatusNotFound},
		{"bad secret", http.MethodPost, webhook.Path, "wrong", http.StatusUnauthorized},
		{"wrong method", http.MethodGet, webhook.Path, webhook.Secret, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.Header.Set("X-Webhook-Secret", tt.secret)
			recorder := httptest.NewRecorder()
			env.server.Handler().ServeHTTP(recorder, req)
			assert.Equal(t, tt.wantCode, recorder.Code)
		})
	}

	// Secret via query parameter works too.
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("%s?secret=%s", webhook.Path, webhook.Secret), nil)
	recorder := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusAccepted, recorder.Code)
}

func TestPublishEventFiresTrigger(t *testing.T) {
	env := newTestServer(t, nil)

	env.do(t, http.MethodPost, "/executeFlow", linearFlowRequest("wf-1"))
	rec := env.do(t, http.MethodPost, "/workflows/wf-1/event-trigger", map[string]interface{}{
		"event_type": "user.created",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/events", map[string]interface{}{
		"type":   "user.created",
		"fields": map[string]interface{}{"plan": "pro"},
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	// The event run lands in history alongside the manual seed run.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		entries, err := env.engine.History("wf-1", storage.HistoryQuery{})
		require.NoError(t, err)
		if len(entries) >= 2 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("event-triggered run never finished")
}

func TestPublishEventRequiresType(t *testing.T) {
	env := newTestServer(t, nil)

	rec := env.do(t, http.MethodPost, "/events", map[string]interface{}{
		"fields": map[string]interface{}{"plan": "pro"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestServer(t, nil)

	rec := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	decodeBody(t, rec, &resp)
	assert.Equal(t, "ok", resp["status"])
}

func TestAuthProtectsAPIButNotHooks(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Auth.JWTSecret = "api-secret"
	env := newTestServer(t, cfg)

	// No token: API rejected, health open.
	rec := env.do(t, http.MethodPost, "/executeFlow", linearFlowRequest("wf-1"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// With a signed token the API works.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "cli",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte("api-secret"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(linearFlowRequest("wf-1")))
	req := httptest.NewRequest(http.MethodPost, "/executeFlow", &buf)
	req.Header.Set("Authorization", "Bearer "+signed)
	recorder := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusAccepted, recorder.Code)

	// Webhook delivery stays open; its own secret is the gate.
	webhook, err := env.manager.RegisterWebhook("wf-1", models.WebhookTrigger{})
	require.NoError(t, err)
	hookReq := httptest.NewRequest(http.MethodPost, webhook.Path, nil)
	hookReq.Header.Set("X-Webhook-Secret", webhook.Secret)
	hookRec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(hookRec, hookReq)
	assert.Equal(t, http.StatusAccepted, hookRec.Code)
}
