package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"trinity/internal/agents"
	"trinity/internal/metrics"
	"trinity/pkg/errors"
	"trinity/pkg/logger"
)

const defaultMaxConcurrent = 5

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Task is one unit of work queued against an agent.
type Task struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Priority    agents.TaskPriority    `json:"priority"`
	AgentName   string                 `json:"agent_name"`
	Params      map[string]interface{} `json:"params,omitempty"`
	Status      Status                 `json:"status"`
	Result      string                 `json:"result,omitempty"`
	Error       string                 `json:"error,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	StartedAt   time.Time              `json:"started_at,omitempty"`
	CompletedAt time.Time              `json:"completed_at,omitempty"`
}

// Spec describes a task to submit.
type Spec struct {
	Name        string
	Description string
	Priority    agents.TaskPriority
	AgentName   string
	Params      map[string]interface{}
}

// Engine queues tasks and executes them against the agent registry with
// bounded concurrency.
type Engine struct {
	registry *agents.Registry
	sem      chan struct{}
	timeout  time.Duration
	log      *logger.Logger

	mu    sync.RWMutex
	tasks map[string]*Task
	order []string
}

// NewEngine creates a task engine. maxConcurrent <= 0 falls back to 5.
func NewEngine(registry *agents.Registry, maxConcurrent int, timeout time.Duration) *Engine {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	return &Engine{
		registry: registry,
		sem:      make(chan struct{}, maxConcurrent),
		timeout:  timeout,
		tasks:    make(map[string]*Task),
		log:      logger.Get().With("component", "tasks"),
	}
}

// Submit queues a task. The referenced agent must exist.
func (e *Engine) Submit(spec Spec) (*Task, error) {
	if spec.Description == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "task description cannot be empty")
	}
	if _, err := e.registry.Get(spec.AgentName); err != nil {
		return nil, err
	}

	priority := spec.Priority
	if priority == "" {
		priority = agents.PriorityMedium
	}

	task := &Task{
		ID:          uuid.NewString(),
		Name:        spec.Name,
		Description: spec.Description,
		Priority:    priority,
		AgentName:   spec.AgentName,
		Params:      spec.Params,
		Status:      StatusPending,
		CreatedAt:   time.Now().UTC(),
	}

	e.mu.Lock()
	e.tasks[task.ID] = task
	e.order = append(e.order, task.ID)
	e.mu.Unlock()

	metrics.TasksSubmitted.WithLabelValues(spec.AgentName).Inc()

	return e.snapshot(task.ID), nil
}

// Get returns a copy of the task by id.
func (e *Engine) Get(id string) (*Task, error) {
	task := e.snapshot(id)
	if task == nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "task %s not found", id)
	}
	return task, nil
}

// List returns copies of all tasks in submission order, optionally filtered
// by status.
func (e *Engine) List(filter ...Status) []*Task {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*Task, 0, len(e.order))
	for _, id := range e.order {
		task := e.tasks[id]
		if len(filter) > 0 && !statusIn(task.Status, filter) {
			continue
		}
		cp := *task
		out = append(out, &cp)
	}
	return out
}

// RunTask executes one agent run under the engine's concurrency bound. Used
// by the API layer so request bursts cannot saturate the providers.
func (e *Engine) RunTask(ctx context.Context, agentName, task string, taskContext map[string]interface{}, maxIterations int) (*agents.Thought, error) {
	agent, err := e.registry.Get(agentName)
	if err != nil {
		return nil, err
	}

	select {
	case e.sem <- struct{}{}:
		defer func() { <-e.sem }()
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "waiting for execution slot")
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	return agent.Run(ctx, task, taskContext, maxIterations)
}

// RunAll executes every pending task concurrently within the bound and blocks
// until all of them finish or ctx is cancelled.
func (e *Engine) RunAll(ctx context.Context) error {
	pending := e.List(StatusPending)

	var wg sync.WaitGroup
	for _, task := range pending {
		if ctx.Err() != nil {
			e.markCancelled(task.ID, ctx.Err())
			continue
		}
		select {
		case <-ctx.Done():
			e.markCancelled(task.ID, ctx.Err())
			continue
		case e.sem <- struct{}{}:
		}

		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer func() { <-e.sem }()
			e.execute(ctx, id)
		}(task.ID)
	}
	wg.Wait()

	return ctx.Err()
}

func (e *Engine) execute(ctx context.Context, id string) {
	e.mu.Lock()
	task, ok := e.tasks[id]
	if !ok || task.Status != StatusPending {
		e.mu.Unlock()
		return
	}
	task.Status = StatusRunning
	task.StartedAt = time.Now().UTC()
	agentName := task.AgentName
	description := task.Description
	params := task.Params
	e.mu.Unlock()

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	agent, err := e.registry.Get(agentName)
	if err != nil {
		e.finish(id, "", err)
		return
	}

	thought, err := agent.Run(runCtx, description, params, 0)
	if err != nil {
		e.finish(id, "", err)
		return
	}
	e.finish(id, thought.Result, nil)
}

func (e *Engine) finish(id, result string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	task, ok := e.tasks[id]
	if !ok {
		return
	}
	task.CompletedAt = time.Now().UTC()

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			task.Status = StatusCancelled
		} else {
			task.Status = StatusFailed
		}
		task.Error = err.Error()
		metrics.TasksCompleted.WithLabelValues(task.AgentName, string(task.Status)).Inc()
		e.log.Warn("Task failed", "task", id, "agent", task.AgentName, "error", err)
		return
	}

	task.Status = StatusCompleted
	task.Result = result
	metrics.TasksCompleted.WithLabelValues(task.AgentName, string(StatusCompleted)).Inc()
}

func (e *Engine) markCancelled(id string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	task, ok := e.tasks[id]
	if !ok || task.Status != StatusPending {
		return
	}
	task.Status = StatusCancelled
	if err != nil {
		task.Error = err.Error()
	}
	task.CompletedAt = time.Now().UTC()
	metrics.TasksCompleted.WithLabelValues(task.AgentName, string(StatusCancelled)).Inc()
}

func (e *Engine) snapshot(id string) *Task {
	e.mu.RLock()
	defer e.mu.RUnlock()

	task, ok := e.tasks[id]
	if !ok {
		return nil
	}
	cp := *task
	return &cp
}

func statusIn(s Status, list []Status) bool {
	for _, item := range list {
		if s == item {
			return true
		}
	}
	return false
}
