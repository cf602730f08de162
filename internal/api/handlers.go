package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"trinity/internal/agents"
	"trinity/internal/metrics"
	"trinity/internal/tasks"
	"trinity/internal/tools"
	"trinity/internal/workers"
	"trinity/pkg/errors"
	"trinity/pkg/logger"
)

const maxRequestBody = 1 << 20

// Handlers owns the HTTP surface over the agent registry and task engine.
type Handlers struct {
	agents    *agents.Registry
	engine    *tasks.Engine
	health    *HealthHandler
	scheduler *workers.Scheduler
	log       *logger.Logger
	service   string
	version   string
}

// NewHandlers builds the handler set.
func NewHandlers(registry *agents.Registry, engine *tasks.Engine, health *HealthHandler, service, version string) *Handlers {
	return &Handlers{
		agents:  registry,
		engine:  engine,
		health:  health,
		log:     logger.Get().With("component", "api"),
		service: service,
		version: version,
	}
}

// SetScheduler includes worker health in the system status report.
func (h *Handlers) SetScheduler(s *workers.Scheduler) {
	h.scheduler = s
}

// Routes wires every endpoint onto a fresh mux.
func (h *Handlers) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.handleRoot)
	mux.HandleFunc("GET /health", h.health.HandleHealth)
	mux.HandleFunc("GET /agents", h.handleListAgents)
	mux.HandleFunc("GET /system/status", h.handleSystemStatus)
	mux.HandleFunc("POST /agent/{name}/run", h.handleAgentRun)
	mux.HandleFunc("GET /agent/{name}/history", h.handleAgentHistory)
	mux.HandleFunc("GET /agent/{name}/stream", h.handleAgentStream)
	mux.HandleFunc("POST /tasks", h.handleSubmitTask)
	mux.HandleFunc("GET /tasks", h.handleListTasks)
	mux.HandleFunc("GET /tasks/{id}", h.handleGetTask)
	mux.HandleFunc("POST /tasks/run", h.handleRunTasks)
	mux.Handle("GET /metrics", metrics.Handler())

	return mux
}

func (h *Handlers) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": h.service,
		"version": h.version,
		"status":  "running",
		"agents":  h.agents.Names(),
	})
}

type agentDescriptor struct {
	Name        string             `json:"name"`
	Role        string             `json:"role"`
	Description string             `json:"description"`
	Tools       []tools.Descriptor `json:"tools"`
}

func (h *Handlers) handleListAgents(w http.ResponseWriter, r *http.Request) {
	list := h.agents.List()
	descriptors := make([]agentDescriptor, 0, len(list))
	for _, agent := range list {
		descriptors = append(descriptors, agentDescriptor{
			Name:        agent.Name(),
			Role:        agent.Role(),
			Description: agent.Description(),
			Tools:       agent.Tools().List(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"agents": descriptors})
}

type workerStatus struct {
	Name       string    `json:"name"`
	Enabled    bool      `json:"enabled"`
	Runs       int64     `json:"runs"`
	Errors     int64     `json:"errors"`
	LastRun    time.Time `json:"last_run,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
	AvgRunTime string    `json:"avg_run_time,omitempty"`
}

func (h *Handlers) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	list := h.agents.List()
	reports := make([]agents.StatusReport, 0, len(list))
	for _, agent := range list {
		reports = append(reports, agent.StatusReport())
	}

	payload := map[string]interface{}{
		"service": h.service,
		"version": h.version,
		"agents":  reports,
		"tasks":   len(h.engine.List()),
	}
	if h.scheduler != nil {
		payload["workers"] = h.workerStatuses()
	}

	writeJSON(w, http.StatusOK, payload)
}

func (h *Handlers) workerStatuses() []workerStatus {
	registered := h.scheduler.GetWorkers()
	statuses := make([]workerStatus, 0, len(registered))
	for _, worker := range registered {
		status := workerStatus{
			Name:    worker.Name(),
			Enabled: worker.Enabled(),
		}
		if tracked, ok := worker.(workers.WorkerWithHealth); ok {
			health := tracked.Health()
			status.Runs = health.RunCount
			status.Errors = health.ErrorCount
			status.LastRun = health.LastRun
			status.AvgRunTime = health.AvgDuration.String()
			if health.LastError != nil {
				status.LastError = health.LastError.Error()
			}
		}
		statuses = append(statuses, status)
	}
	return statuses
}

type runRequest struct {
	Task          string                 `json:"task"`
	Context       map[string]interface{} `json:"context,omitempty"`
	Tool          string                 `json:"tool,omitempty"`
	Args          map[string]interface{} `json:"args,omitempty"`
	MaxIterations int                    `json:"max_iterations,omitempty"`
}

// handleAgentRun runs a task through the full think/act loop, or dispatches
// a single tool directly when "tool" is set in the body.
func (h *Handlers) handleAgentRun(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req runRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if req.Tool != "" {
		agent, err := h.agents.Get(name)
		if err != nil {
			writeMappedError(w, err)
			return
		}

		result, err := agent.Dispatch(r.Context(), req.Tool, req.Args)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"agent":  name,
			"tool":   req.Tool,
			"result": result,
		})
		return
	}

	if req.Task == "" {
		writeError(w, http.StatusBadRequest, "task or tool is required", nil)
		return
	}

	thought, err := h.engine.RunTask(r.Context(), name, req.Task, req.Context, req.MaxIterations)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, thought)
}

func (h *Handlers) handleAgentHistory(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	agent, err := h.agents.Get(name)
	if err != nil {
		writeMappedError(w, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = parsePositiveInt(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"agent":    name,
		"thoughts": agent.History(limit),
		"records":  agent.Records(limit),
	})
}

type taskRequest struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Priority    string                 `json:"priority,omitempty"`
	Agent       string                 `json:"agent"`
	Params      map[string]interface{} `json:"params,omitempty"`
}

func (h *Handlers) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	task, err := h.engine.Submit(tasks.Spec{
		Name:        req.Name,
		Description: req.Description,
		Priority:    agents.TaskPriority(req.Priority),
		AgentName:   req.Agent,
		Params:      req.Params,
	})
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *Handlers) handleListTasks(w http.ResponseWriter, r *http.Request) {
	var filter []tasks.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		filter = append(filter, tasks.Status(raw))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": h.engine.List(filter...)})
}

func (h *Handlers) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.engine.Get(r.PathValue("id"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleRunTasks executes every pending task within the concurrency bound and
// returns the resulting task states.
func (h *Handlers) handleRunTasks(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.RunAll(r.Context()); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": h.engine.List()})
}

func decodeBody(r *http.Request, dest interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return errors.Wrap(err, "read request body")
	}
	if len(body) == 0 {
		return errors.Wrap(errors.ErrInvalidInput, "empty request body")
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return errors.Wrap(err, "parse request body")
	}
	return nil
}

func parsePositiveInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrInvalidInput, "not a number: %q", raw)
	}
	if n <= 0 {
		return 0, errors.Wrap(errors.ErrInvalidInput, "must be positive")
	}
	return n, nil
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// writeMappedError translates dispatch and registry failures into HTTP
// status codes: unknown agent or tool to 404, bad arguments to 400,
// everything else to 500.
func writeMappedError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errors.ErrAgentNotFound) || errors.Is(err, errors.ErrToolNotFound) || errors.Is(err, errors.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found", err)
	case errors.Is(err, errors.ErrInvalidArguments) || errors.Is(err, errors.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid arguments", err)
	default:
		writeError(w, http.StatusInternalServerError, "execution failed", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := errorResponse{Error: message}
	if err != nil {
		resp.Detail = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Get().Warn("Failed to encode response", "error", err)
	}
}
