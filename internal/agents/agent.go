package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"trinity/internal/adapters/ai"
	"trinity/internal/memory"
	"trinity/internal/metrics"
	"trinity/internal/tools"
	"trinity/pkg/errors"
	"trinity/pkg/logger"
)

const defaultMaxIterations = 10

// Agent is the execution contract exposed to the API and task layers.
type Agent interface {
	Name() string
	Role() string
	Description() string
	Status() Status
	Tools() *tools.Registry

	// Dispatch runs a single named tool with validated arguments.
	Dispatch(ctx context.Context, toolName string, args map[string]interface{}) (interface{}, error)

	// Run executes the full think/act loop for a task.
	Run(ctx context.Context, task string, taskContext map[string]interface{}, maxIterations int) (*Thought, error)

	History(limit int) []Thought
	Records(limit int) []InvocationRecord
	PruneThoughts(max int) int
	ClearHistory()
	StatusReport() StatusReport

	// Subscribe returns a channel of live run events and a cancel func.
	Subscribe() (<-chan RunEvent, func())
}

// BaseAgent implements the tool registry dispatch contract plus an LLM-driven
// think/act loop. Concrete agents embed it and register their tools at
// construction time; the registry is immutable afterwards.
type BaseAgent struct {
	name         string
	role         string
	description  string
	systemPrompt string

	tools    *tools.Registry
	provider ai.ChatProvider
	model    string
	memory   *memory.Manager
	history  *history
	sink     RecordSink
	events   *eventHub

	maxIterations int
	log           *logger.Logger

	mu         sync.RWMutex
	status     Status
	lastActive time.Time
}

// RecordSink receives a copy of every completed dispatch record, typically
// backed by the Postgres archive. Writes are best effort and off the
// dispatch path.
type RecordSink interface {
	Save(ctx context.Context, record InvocationRecord) error
}

// Option configures a BaseAgent at construction.
type Option func(*BaseAgent)

// WithRecordSink mirrors dispatch records into durable storage.
func WithRecordSink(sink RecordSink) Option {
	return func(a *BaseAgent) { a.sink = sink }
}

// WithProvider attaches the LLM provider used by Think.
func WithProvider(provider ai.ChatProvider, model string) Option {
	return func(a *BaseAgent) {
		a.provider = provider
		a.model = model
	}
}

// WithMemory attaches a memory manager for learning from completed runs.
func WithMemory(m *memory.Manager) Option {
	return func(a *BaseAgent) { a.memory = m }
}

// WithMaxIterations bounds the think/act loop.
func WithMaxIterations(n int) Option {
	return func(a *BaseAgent) {
		if n > 0 {
			a.maxIterations = n
		}
	}
}

// WithMaxThoughts caps how many thoughts the in-memory history retains.
func WithMaxThoughts(n int) Option {
	return func(a *BaseAgent) { a.history = newHistory(n) }
}

// NewBaseAgent constructs an agent around an already-populated tool registry.
func NewBaseAgent(name, role, description, systemPrompt string, registry *tools.Registry, opts ...Option) (*BaseAgent, error) {
	if name == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "agent name cannot be empty")
	}
	if registry == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "tool registry is required")
	}

	agent := &BaseAgent{
		name:          name,
		role:          role,
		description:   description,
		systemPrompt:  systemPrompt,
		tools:         registry,
		history:       newHistory(0),
		events:        newEventHub(),
		maxIterations: defaultMaxIterations,
		status:        StatusIdle,
		lastActive:    time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(agent)
	}
	agent.log = logger.Get().With("agent", name)

	return agent, nil
}

func (a *BaseAgent) Name() string           { return a.name }
func (a *BaseAgent) Role() string           { return a.role }
func (a *BaseAgent) Description() string    { return a.description }
func (a *BaseAgent) Tools() *tools.Registry { return a.tools }

// Status returns the agent's current status.
func (a *BaseAgent) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

func (a *BaseAgent) setStatus(s Status) {
	a.mu.Lock()
	a.status = s
	a.lastActive = time.Now().UTC()
	a.mu.Unlock()
}

// Dispatch resolves a tool by name, validates arguments against its schema,
// and invokes the handler. Lookup and validation failures are reported without
// touching the history; handler failures append a failed record.
func (a *BaseAgent) Dispatch(ctx context.Context, toolName string, args map[string]interface{}) (interface{}, error) {
	tool, ok := a.tools.Get(toolName)
	if !ok {
		metrics.RecordToolDispatch(a.name, toolName, "not_found", 0)
		return nil, errors.Wrapf(errors.ErrToolNotFound, "tool %s not registered on agent %s", toolName, a.name)
	}

	validated, err := tool.Schema().Validate(args)
	if err != nil {
		metrics.RecordToolDispatch(a.name, toolName, "invalid_arguments", 0)
		return nil, errors.Wrapf(err, "tool %s", toolName)
	}

	a.setStatus(StatusActing)
	defer a.setStatus(StatusIdle)

	start := time.Now()
	result, err := a.executeTool(ctx, tool, validated)
	duration := time.Since(start)

	if err != nil {
		wrapped := errors.Wrapf(errors.ErrToolExecution, "tool %s failed: %v", toolName, err)
		record := InvocationRecord{
			ID:        newRecordID(),
			AgentName: a.name,
			ToolName:  toolName,
			Arguments: validated,
			Error:     err.Error(),
			Status:    RecordStatusFailed,
			Duration:  duration,
			Timestamp: time.Now().UTC(),
		}
		a.history.appendRecord(record)
		a.archiveRecord(record)
		metrics.RecordToolDispatch(a.name, toolName, "failed", duration)
		a.log.Warn("Tool dispatch failed", "tool", toolName, "error", err)
		return nil, wrapped
	}

	record := InvocationRecord{
		ID:        newRecordID(),
		AgentName: a.name,
		ToolName:  toolName,
		Arguments: validated,
		Result:    result,
		Status:    RecordStatusSuccess,
		Duration:  duration,
		Timestamp: time.Now().UTC(),
	}
	a.history.appendRecord(record)
	a.archiveRecord(record)
	metrics.RecordToolDispatch(a.name, toolName, "success", duration)

	return result, nil
}

// archiveRecord mirrors a record into the configured sink without blocking
// the dispatch path.
func (a *BaseAgent) archiveRecord(record InvocationRecord) {
	if a.sink == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.sink.Save(ctx, record); err != nil {
			a.log.Warn("Failed to archive dispatch record", "tool", record.ToolName, "error", err)
		}
	}()
}

// executeTool runs the handler, converting panics into errors so a misbehaving
// tool cannot take the process down.
func (a *BaseAgent) executeTool(ctx context.Context, tool tools.Tool, args map[string]interface{}) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return tool.Execute(ctx, args)
}

// Think sends the task and conversation so far to the LLM with the agent's
// tool definitions attached.
func (a *BaseAgent) Think(ctx context.Context, messages []ai.Message) (*ai.ChatResponse, error) {
	if a.provider == nil {
		// Degraded mode: no provider configured, answer with a canned
		// notice instead of failing the whole run
		return &ai.ChatResponse{
			Choices: []ai.Choice{{
				Message: ai.Message{
					Role:    ai.RoleAssistant,
					Content: fmt.Sprintf("no LLM provider is configured for agent %s; available tools: %v", a.name, a.tools.Names()),
				},
				FinishReason: ai.FinishReasonStop,
			}},
		}, nil
	}

	a.setStatus(StatusThinking)
	defer a.setStatus(StatusIdle)

	req := ai.ChatRequest{
		Model:    a.model,
		Messages: messages,
		Tools:    a.toolDefinitions(),
	}

	start := time.Now()
	resp, err := a.provider.Chat(ctx, req)
	latency := time.Since(start)

	if err != nil {
		metrics.RecordLLMCall(string(a.provider.Name()), a.model, latency, 0, 0, err)
		return nil, err
	}
	metrics.RecordLLMCall(string(a.provider.Name()), a.model, latency, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, nil)

	return resp, nil
}

// Act dispatches each requested tool call and renders the outcomes as tool
// messages for the next Think round.
func (a *BaseAgent) Act(ctx context.Context, toolCalls []ai.ToolCall) ([]ai.Message, []StepCall) {
	replies := make([]ai.Message, 0, len(toolCalls))
	calls := make([]StepCall, 0, len(toolCalls))

	for _, tc := range toolCalls {
		call := StepCall{ToolName: tc.Function.Name, Args: tc.Function.Arguments}

		var args map[string]interface{}
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil && tc.Function.Arguments != "" {
			call.Error = fmt.Sprintf("invalid tool arguments: %v", err)
			replies = append(replies, ai.Message{
				Role:       ai.RoleTool,
				ToolCallID: tc.ID,
				Name:       tc.Function.Name,
				Content:    call.Error,
			})
			calls = append(calls, call)
			continue
		}

		result, err := a.Dispatch(ctx, tc.Function.Name, args)
		if err != nil {
			call.Error = err.Error()
			replies = append(replies, ai.Message{
				Role:       ai.RoleTool,
				ToolCallID: tc.ID,
				Name:       tc.Function.Name,
				Content:    "error: " + err.Error(),
			})
			calls = append(calls, call)
			continue
		}

		rendered := renderResult(result)
		call.Result = rendered
		replies = append(replies, ai.Message{
			Role:       ai.RoleTool,
			ToolCallID: tc.ID,
			Name:       tc.Function.Name,
			Content:    rendered,
		})
		calls = append(calls, call)
	}

	return replies, calls
}

// Run executes the think/act loop until the model produces a final answer or
// the iteration budget is exhausted.
func (a *BaseAgent) Run(ctx context.Context, task string, taskContext map[string]interface{}, maxIterations int) (*Thought, error) {
	if task == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "task cannot be empty")
	}
	if maxIterations <= 0 {
		maxIterations = a.maxIterations
	}

	start := time.Now()
	thought := &Thought{
		ID:        uuid.NewString(),
		AgentName: a.name,
		Task:      task,
		CreatedAt: start.UTC(),
	}

	messages := []ai.Message{
		{Role: ai.RoleSystem, Content: a.systemPrompt},
		{Role: ai.RoleUser, Content: renderTask(task, taskContext)},
	}

	a.events.publish(RunEvent{
		Type:      RunEventStarted,
		AgentName: a.name,
		ThoughtID: thought.ID,
		Task:      task,
		Timestamp: start.UTC(),
	})

	var runErr error
	for i := 0; i < maxIterations; i++ {
		resp, err := a.Think(ctx, messages)
		if err != nil {
			runErr = err
			break
		}
		if len(resp.Choices) == 0 {
			runErr = errors.Wrap(errors.ErrExternal, "provider returned no choices")
			break
		}

		choice := resp.Choices[0]
		step := ThoughtStep{
			Iteration: i + 1,
			Content:   choice.Message.Content,
			Timestamp: time.Now().UTC(),
		}

		if len(choice.Message.ToolCalls) == 0 {
			thought.Steps = append(thought.Steps, step)
			a.publishStep(thought.ID, step)
			thought.Result = choice.Message.Content
			break
		}

		messages = append(messages, choice.Message)
		replies, calls := a.Act(ctx, choice.Message.ToolCalls)
		step.ToolCalls = calls
		thought.Steps = append(thought.Steps, step)
		a.publishStep(thought.ID, step)
		messages = append(messages, replies...)

		if i == maxIterations-1 {
			thought.Result = choice.Message.Content
		}
	}

	thought.Duration = time.Since(start)

	if runErr != nil {
		a.setStatus(StatusError)
		thought.Error = runErr.Error()
		a.history.appendThought(*thought)
		a.events.publish(RunEvent{
			Type:      RunEventFailed,
			AgentName: a.name,
			ThoughtID: thought.ID,
			Error:     thought.Error,
			Timestamp: time.Now().UTC(),
		})
		metrics.RecordAgentRun(a.name, thought.Duration, runErr)
		return thought, runErr
	}

	a.learn(ctx, thought)
	a.history.appendThought(*thought)
	a.setStatus(StatusIdle)
	a.events.publish(RunEvent{
		Type:      RunEventCompleted,
		AgentName: a.name,
		ThoughtID: thought.ID,
		Result:    thought.Result,
		Timestamp: time.Now().UTC(),
	})
	metrics.RecordAgentRun(a.name, thought.Duration, nil)

	return thought, nil
}

func (a *BaseAgent) publishStep(thoughtID string, step ThoughtStep) {
	s := step
	a.events.publish(RunEvent{
		Type:      RunEventStep,
		AgentName: a.name,
		ThoughtID: thoughtID,
		Step:      &s,
		Timestamp: step.Timestamp,
	})
}

// Subscribe returns a channel of live run events and a cancel func that
// releases the subscription.
func (a *BaseAgent) Subscribe() (<-chan RunEvent, func()) {
	return a.events.subscribe()
}

// learn stores the run outcome in memory, weighted by how much work it took.
func (a *BaseAgent) learn(ctx context.Context, thought *Thought) {
	if a.memory == nil || thought.Result == "" {
		return
	}

	a.setStatus(StatusLearning)
	importance := 0.5 + float64(len(thought.Steps))*0.05
	if importance > 1.0 {
		importance = 1.0
	}

	_, err := a.memory.Remember(ctx, a.name, fmt.Sprintf("task: %s\nresult: %s", thought.Task, thought.Result), importance, map[string]interface{}{
		"thought_id": thought.ID,
		"steps":      len(thought.Steps),
	})
	if err != nil {
		a.log.Warn("Failed to store run outcome", "error", err)
	}
}

// complete is a single-shot LLM call used by tool handlers that generate
// text. Unlike Think it carries no tool definitions.
func (a *BaseAgent) complete(ctx context.Context, prompt string) (string, error) {
	if a.provider == nil {
		return "", errors.Wrapf(errors.ErrProviderUnavailable, "agent %s has no LLM provider", a.name)
	}

	start := time.Now()
	resp, err := a.provider.Chat(ctx, ai.ChatRequest{
		Model: a.model,
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: a.systemPrompt},
			{Role: ai.RoleUser, Content: prompt},
		},
	})
	latency := time.Since(start)

	if err != nil {
		metrics.RecordLLMCall(string(a.provider.Name()), a.model, latency, 0, 0, err)
		return "", err
	}
	metrics.RecordLLMCall(string(a.provider.Name()), a.model, latency, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, nil)

	if len(resp.Choices) == 0 {
		return "", errors.Wrap(errors.ErrExternal, "provider returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// History returns recent thoughts, newest last.
func (a *BaseAgent) History(limit int) []Thought {
	return a.history.recentThoughts(limit)
}

// Records returns recent invocation records, newest last.
func (a *BaseAgent) Records(limit int) []InvocationRecord {
	return a.history.recentRecords(limit)
}

// PruneThoughts drops the oldest thoughts beyond max.
func (a *BaseAgent) PruneThoughts(max int) int {
	return a.history.prune(max)
}

// ClearHistory drops all thoughts and records.
func (a *BaseAgent) ClearHistory() {
	a.history.clear()
}

// StatusReport snapshots the agent for the system status endpoint.
func (a *BaseAgent) StatusReport() StatusReport {
	a.mu.RLock()
	status := a.status
	lastActive := a.lastActive
	a.mu.RUnlock()

	records, thoughts := a.history.counts()

	return StatusReport{
		Name:         a.name,
		Role:         a.role,
		Description:  a.description,
		Status:       status,
		ToolCount:    a.tools.Len(),
		ThoughtCount: thoughts,
		RecordCount:  records,
		LastActive:   lastActive,
	}
}

func (a *BaseAgent) toolDefinitions() []ai.ToolDefinition {
	defs := a.tools.FunctionDefinitions()
	out := make([]ai.ToolDefinition, 0, len(defs))
	for _, def := range defs {
		out = append(out, ai.ToolDefinition{
			Type: "function",
			Function: ai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}
	return out
}

func renderTask(task string, taskContext map[string]interface{}) string {
	if len(taskContext) == 0 {
		return task
	}
	ctxJSON, err := json.Marshal(taskContext)
	if err != nil {
		return task
	}
	return fmt.Sprintf("%s\n\nContext:\n%s", task, string(ctxJSON))
}

func renderResult(result interface{}) string {
	switch v := result.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
