package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Tool metrics
	ToolDispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trinity_tool_dispatches_total",
			Help: "Total number of tool dispatches",
		},
		[]string{"agent", "tool", "status"}, // status: success|error|not_found|invalid_args
	)

	ToolLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trinity_tool_latency_seconds",
			Help:    "Tool execution latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"agent", "tool"},
	)

	// Agent metrics
	AgentRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trinity_agent_runs_total",
			Help: "Total number of agent run loops",
		},
		[]string{"agent", "status"}, // status: success|error
	)

	AgentRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trinity_agent_run_duration_seconds",
			Help:    "Agent run loop duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"agent"},
	)

	// LLM metrics
	LLMCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trinity_llm_calls_total",
			Help: "Total number of LLM completion calls",
		},
		[]string{"provider", "model", "status"}, // status: success|error|rate_limited
	)

	LLMTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trinity_llm_tokens_total",
			Help: "Total tokens consumed by LLM calls",
		},
		[]string{"provider", "model", "type"}, // type: input|output
	)

	LLMLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trinity_llm_latency_seconds",
			Help:    "LLM call latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"provider", "model"},
	)

	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trinity_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trinity_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"worker"},
	)

	WorkerLastRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trinity_worker_last_run_timestamp",
			Help: "Unix timestamp of last worker execution",
		},
		[]string{"worker"},
	)

	// Task metrics
	TasksSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trinity_tasks_submitted_total",
			Help: "Total number of tasks submitted to the engine",
		},
		[]string{"agent"},
	)

	TasksCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trinity_tasks_completed_total",
			Help: "Total number of tasks finished by the engine",
		},
		[]string{"agent", "status"}, // status: completed|failed|cancelled
	)
)

// Init registers all metrics with Prometheus
func Init() {
	prometheus.MustRegister(ToolDispatches)
	prometheus.MustRegister(ToolLatency)

	prometheus.MustRegister(AgentRuns)
	prometheus.MustRegister(AgentRunDuration)

	prometheus.MustRegister(LLMCalls)
	prometheus.MustRegister(LLMTokens)
	prometheus.MustRegister(LLMLatency)

	prometheus.MustRegister(WorkerExecutions)
	prometheus.MustRegister(WorkerDuration)
	prometheus.MustRegister(WorkerLastRun)

	prometheus.MustRegister(TasksSubmitted)
	prometheus.MustRegister(TasksCompleted)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordToolDispatch records a single tool dispatch outcome
func RecordToolDispatch(agent, tool, status string, duration time.Duration) {
	ToolDispatches.WithLabelValues(agent, tool, status).Inc()
	if status == "success" || status == "error" {
		ToolLatency.WithLabelValues(agent, tool).Observe(duration.Seconds())
	}
}

// RecordAgentRun records a completed agent run loop
func RecordAgentRun(agent string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	AgentRuns.WithLabelValues(agent, status).Inc()
	AgentRunDuration.WithLabelValues(agent).Observe(duration.Seconds())
}

// RecordLLMCall records an LLM completion call
func RecordLLMCall(provider, model string, latency time.Duration, inputTokens, outputTokens int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	LLMCalls.WithLabelValues(provider, model, status).Inc()
	LLMLatency.WithLabelValues(provider, model).Observe(latency.Seconds())
	LLMTokens.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	LLMTokens.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
}

// RecordWorkerExecution records a worker execution
func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	WorkerExecutions.WithLabelValues(worker, status).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
	WorkerLastRun.WithLabelValues(worker).SetToCurrentTime()
}
