package api

import (
	"context"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"trinity/internal/agents"
	"trinity/pkg/logger"
)

// HealthChecker verifies connectivity of one backing component.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler reports process health plus the state of optional backing
// components. Agents run degraded without them, so a failing component
// degrades the status instead of failing it outright.
type HealthHandler struct {
	agents    *agents.Registry
	checkers  map[string]HealthChecker
	startTime time.Time
	service   string
	version   string
	log       *logger.Logger
}

// NewHealthHandler builds the health endpoint.
func NewHealthHandler(registry *agents.Registry, service, version string) *HealthHandler {
	return &HealthHandler{
		agents:    registry,
		checkers:  make(map[string]HealthChecker),
		startTime: time.Now(),
		service:   service,
		version:   version,
		log:       logger.Get().With("component", "health"),
	}
}

// AddChecker registers a named component check. Nil checkers are ignored so
// callers can pass optional clients directly.
func (h *HealthHandler) AddChecker(name string, checker HealthChecker) {
	if checker == nil {
		return
	}
	h.checkers[name] = checker
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string                     `json:"status"`
	Service   string                     `json:"service"`
	Version   string                     `json:"version"`
	Uptime    string                     `json:"uptime"`
	Started   string                     `json:"started"`
	Timestamp string                     `json:"timestamp"`
	Agents    []string                   `json:"agents"`
	Checks    map[string]ComponentHealth `json:"checks,omitempty"`
}

// HandleHealth returns overall status: healthy when every component check
// passes, degraded when some fail, unhealthy only when all of them do.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]ComponentHealth, len(h.checkers))
	healthy := 0
	for name, checker := range h.checkers {
		result := h.check(ctx, name, checker)
		checks[name] = result
		if result.Status == "healthy" {
			healthy++
		}
	}

	status := HealthStatus{
		Status:    "healthy",
		Service:   h.service,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Started:   humanize.Time(h.startTime),
		Timestamp: time.Now().Format(time.RFC3339),
		Agents:    h.agents.Names(),
		Checks:    checks,
	}

	statusCode := http.StatusOK
	if len(checks) > 0 && healthy == 0 {
		status.Status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	} else if healthy < len(checks) {
		status.Status = "degraded"
	}

	writeJSON(w, statusCode, status)
}

func (h *HealthHandler) check(ctx context.Context, name string, checker HealthChecker) ComponentHealth {
	start := time.Now()
	err := checker.Health(ctx)
	elapsed := time.Since(start)

	if err != nil {
		h.log.Warn("Component health check failed", "component", name, "error", err)
		return ComponentHealth{
			Status:       "unhealthy",
			ResponseTime: elapsed.String(),
			Error:        err.Error(),
		}
	}
	return ComponentHealth{
		Status:       "healthy",
		ResponseTime: elapsed.String(),
	}
}
