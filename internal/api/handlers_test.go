package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trinity/internal/agents"
	"trinity/internal/tasks"
	"trinity/internal/tools"
	"trinity/internal/workers"
	"trinity/pkg/errors"
)

func newTestHandlers(t *testing.T) (*Handlers, *agents.Registry) {
	t.Helper()

	registry := tools.NewRegistry()
	echo := tools.New("echo",
		"Returns its input unchanged",
		tools.Schema{"text": {Type: "string", Required: true}},
		func(_ context.Context, args map[string]interface{}) (interface{}, error) {
			return args["text"], nil
		},
	)
	require.NoError(t, registry.Register(echo))

	failing := tools.New("boom",
		"Always fails",
		tools.Schema{},
		func(_ context.Context, _ map[string]interface{}) (interface{}, error) {
			return nil, errors.New("kaboom")
		},
	)
	require.NoError(t, registry.Register(failing))

	agent, err := agents.NewBaseAgent("echoer", "test", "echoes input", "you echo", registry)
	require.NoError(t, err)

	agentRegistry := agents.NewRegistry()
	require.NoError(t, agentRegistry.Register(agent))

	engine := tasks.NewEngine(agentRegistry, 2, 5*time.Second)
	health := NewHealthHandler(agentRegistry, "trinity-test", "0.0.0")

	return NewHandlers(agentRegistry, engine, health, "trinity-test", "0.0.0"), agentRegistry
}

func doJSON(t *testing.T, mux http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandleRoot(t *testing.T) {
	handlers, _ := newTestHandlers(t)
	rec := doJSON(t, handlers.Routes(), http.MethodGet, "/", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "trinity-test", body["service"])
	assert.Equal(t, "running", body["status"])
}

func TestHandleListAgents(t *testing.T) {
	handlers, _ := newTestHandlers(t)
	rec := doJSON(t, handlers.Routes(), http.MethodGet, "/agents", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Agents []agentDescriptor `json:"agents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Agents, 1)
	assert.Equal(t, "echoer", body.Agents[0].Name)

	names := make([]string, 0, len(body.Agents[0].Tools))
	for _, d := range body.Agents[0].Tools {
		names = append(names, d.Name)
	}
	assert.ElementsMatch(t, []string{"echo", "boom"}, names)
}

func TestHandleAgentRun_DirectDispatch(t *testing.T) {
	handlers, _ := newTestHandlers(t)
	mux := handlers.Routes()

	rec := doJSON(t, mux, http.MethodPost, "/agent/echoer/run", runRequest{
		Tool: "echo",
		Args: map[string]interface{}{"text": "hi"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "hi", body["result"])
}

func TestHandleAgentRun_ErrorMapping(t *testing.T) {
	handlers, _ := newTestHandlers(t)
	mux := handlers.Routes()

	cases := []struct {
		name string
		path string
		req  runRequest
		code int
	}{
		{"unknown agent", "/agent/nobody/run", runRequest{Tool: "echo"}, http.StatusNotFound},
		{"unknown tool", "/agent/echoer/run", runRequest{Tool: "missing"}, http.StatusNotFound},
		{"invalid arguments", "/agent/echoer/run", runRequest{Tool: "echo"}, http.StatusBadRequest},
		{"execution failure", "/agent/echoer/run", runRequest{Tool: "boom"}, http.StatusInternalServerError},
		{"missing task and tool", "/agent/echoer/run", runRequest{}, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, mux, http.MethodPost, tc.path, tc.req)
			assert.Equal(t, tc.code, rec.Code)

			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestHandleAgentRun_EmptyBody(t *testing.T) {
	handlers, _ := newTestHandlers(t)
	rec := doJSON(t, handlers.Routes(), http.MethodPost, "/agent/echoer/run", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAgentRun_FullLoopDegraded(t *testing.T) {
	handlers, _ := newTestHandlers(t)
	rec := doJSON(t, handlers.Routes(), http.MethodPost, "/agent/echoer/run", runRequest{
		Task: "say something",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var thought agents.Thought
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &thought))
	assert.Equal(t, "echoer", thought.AgentName)
	assert.Contains(t, thought.Result, "no LLM provider")
}

func TestHandleAgentHistory(t *testing.T) {
	handlers, registry := newTestHandlers(t)
	mux := handlers.Routes()

	agent, err := registry.Get("echoer")
	require.NoError(t, err)
	_, err = agent.Dispatch(context.Background(), "echo", map[string]interface{}{"text": "one"})
	require.NoError(t, err)

	rec := doJSON(t, mux, http.MethodGet, "/agent/echoer/history?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Records []agents.InvocationRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Records, 1)
	assert.Equal(t, "echo", body.Records[0].ToolName)

	rec = doJSON(t, mux, http.MethodGet, "/agent/echoer/history?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/agent/nobody/history", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTaskEndpoints(t *testing.T) {
	handlers, _ := newTestHandlers(t)
	mux := handlers.Routes()

	rec := doJSON(t, mux, http.MethodPost, "/tasks", taskRequest{
		Name:        "probe",
		Description: "say something",
		Agent:       "echoer",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created tasks.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, tasks.StatusPending, created.Status)
	assert.Equal(t, agents.PriorityMedium, created.Priority)

	rec = doJSON(t, mux, http.MethodGet, "/tasks/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/tasks/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/tasks", taskRequest{Description: "x", Agent: "nobody"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/tasks", taskRequest{Agent: "echoer"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/tasks/run", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/tasks?status=completed", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listed struct {
		Tasks []tasks.Task `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Tasks, 1)
	assert.Contains(t, listed.Tasks[0].Result, "no LLM provider")
}

func TestHandleSystemStatus_IncludesWorkers(t *testing.T) {
	handlers, _ := newTestHandlers(t)

	scheduler := workers.NewScheduler()
	scheduler.RegisterWorker(workers.NewHistoryPruner(nil, 0, time.Minute))
	handlers.SetScheduler(scheduler)

	rec := doJSON(t, handlers.Routes(), http.MethodGet, "/system/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Workers []workerStatus `json:"workers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Workers, 1)
	assert.Equal(t, "history_pruner", body.Workers[0].Name)
	assert.False(t, body.Workers[0].Enabled)
}

type failingChecker struct{}

func (failingChecker) Health(context.Context) error { return errors.New("connection refused") }

type okChecker struct{}

func (okChecker) Health(context.Context) error { return nil }

func TestHandleHealth(t *testing.T) {
	handlers, _ := newTestHandlers(t)
	rec := doJSON(t, handlers.Routes(), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, []string{"echoer"}, status.Agents)
}

func TestHandleHealth_Degraded(t *testing.T) {
	handlers, _ := newTestHandlers(t)
	handlers.health.AddChecker("redis", failingChecker{})
	handlers.health.AddChecker("postgres", okChecker{})

	rec := doJSON(t, handlers.Routes(), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "degraded", status.Status)
	assert.Equal(t, "unhealthy", status.Checks["redis"].Status)
}

func TestHandleHealth_Unhealthy(t *testing.T) {
	handlers, _ := newTestHandlers(t)
	handlers.health.AddChecker("redis", failingChecker{})

	rec := doJSON(t, handlers.Routes(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleAgentStream(t *testing.T) {
	handlers, _ := newTestHandlers(t)
	server := httptest.NewServer(handlers.Routes())
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/agent/echoer/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(streamRequest{Task: "say something"}))

	var types []agents.RunEventType
	for {
		var event agents.RunEvent
		require.NoError(t, conn.ReadJSON(&event))
		types = append(types, event.Type)
		if event.Type == agents.RunEventCompleted || event.Type == agents.RunEventFailed {
			assert.Contains(t, event.Result, "no LLM provider")
			break
		}
	}

	assert.Equal(t, agents.RunEventStarted, types[0])
	assert.Contains(t, types, agents.RunEventStep)
	assert.Equal(t, agents.RunEventCompleted, types[len(types)-1])
}

func TestHandleAgentStream_UnknownAgent(t *testing.T) {
	handlers, _ := newTestHandlers(t)
	server := httptest.NewServer(handlers.Routes())
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/agent/nobody/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil) //nolint:bodyclose
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Nil(t, conn)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
