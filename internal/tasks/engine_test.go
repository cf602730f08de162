package tasks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trinity/internal/adapters/ai"
	"trinity/internal/agents"
	"trinity/internal/tools"
	"trinity/pkg/errors"
)

func newTestRegistry(t *testing.T) *agents.Registry {
	t.Helper()

	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(tools.New("noop", "does nothing", tools.Schema{},
		func(_ context.Context, _ map[string]interface{}) (interface{}, error) {
			return "ok", nil
		})))

	agent, err := agents.NewBaseAgent("worker", "test", "", "", registry)
	require.NoError(t, err)

	agentRegistry := agents.NewRegistry()
	require.NoError(t, agentRegistry.Register(agent))

	return agentRegistry
}

func TestEngine_SubmitAndRunAll(t *testing.T) {
	registry := newTestRegistry(t)
	engine := NewEngine(registry, 2, time.Minute)

	for i := 0; i < 4; i++ {
		task, err := engine.Submit(Spec{
			Name:        "job",
			Description: "do the thing",
			AgentName:   "worker",
		})
		require.NoError(t, err)
		assert.Equal(t, StatusPending, task.Status)
		assert.Equal(t, agents.PriorityMedium, task.Priority)
	}

	require.NoError(t, engine.RunAll(context.Background()))

	completed := engine.List(StatusCompleted)
	require.Len(t, completed, 4)
	for _, task := range completed {
		// Agents run degraded without a provider and still complete
		assert.Contains(t, task.Result, "no LLM provider")
		assert.False(t, task.CompletedAt.IsZero())
	}
}

func TestEngine_SubmitValidation(t *testing.T) {
	registry := newTestRegistry(t)
	engine := NewEngine(registry, 2, 0)

	_, err := engine.Submit(Spec{Description: "x", AgentName: "nobody"})
	assert.ErrorIs(t, err, errors.ErrAgentNotFound)

	_, err = engine.Submit(Spec{AgentName: "worker"})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestEngine_GetAndList(t *testing.T) {
	registry := newTestRegistry(t)
	engine := NewEngine(registry, 1, 0)

	task, err := engine.Submit(Spec{Description: "first", AgentName: "worker"})
	require.NoError(t, err)

	got, err := engine.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Description)

	_, err = engine.Get("missing")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	// Returned tasks are copies, not live references
	got.Description = "mutated"
	again, err := engine.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", again.Description)

	assert.Len(t, engine.List(), 1)
	assert.Len(t, engine.List(StatusPending), 1)
	assert.Empty(t, engine.List(StatusCompleted))
}

// slowProvider sleeps in Chat so concurrent runs overlap measurably.
type slowProvider struct {
	mu      sync.Mutex
	running int32
	peak    int32
}

func (p *slowProvider) Name() ai.ProviderName { return ai.ProviderNameOpenAI }
func (p *slowProvider) GetModel(_ context.Context, _ string) (ai.ModelInfo, error) {
	return ai.ModelInfo{}, nil
}
func (p *slowProvider) ListModels(_ context.Context) ([]ai.ModelInfo, error) { return nil, nil }
func (p *slowProvider) SupportsTools() bool                                  { return true }
func (p *slowProvider) Chat(_ context.Context, _ ai.ChatRequest) (*ai.ChatResponse, error) {
	p.mu.Lock()
	p.running++
	if p.running > p.peak {
		p.peak = p.running
	}
	p.mu.Unlock()

	time.Sleep(20 * time.Millisecond)

	p.mu.Lock()
	p.running--
	p.mu.Unlock()

	return &ai.ChatResponse{Choices: []ai.Choice{{
		Message:      ai.Message{Role: ai.RoleAssistant, Content: "done"},
		FinishReason: ai.FinishReasonStop,
	}}}, nil
}

func TestEngine_RunTaskBoundsConcurrency(t *testing.T) {
	provider := &slowProvider{}

	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(tools.New("noop", "does nothing", tools.Schema{},
		func(_ context.Context, _ map[string]interface{}) (interface{}, error) {
			return "ok", nil
		})))

	agent, err := agents.NewBaseAgent("slowpoke", "test", "", "", registry,
		agents.WithProvider(provider, "test-model"))
	require.NoError(t, err)
	agentRegistry := agents.NewRegistry()
	require.NoError(t, agentRegistry.Register(agent))

	engine := NewEngine(agentRegistry, 2, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.RunTask(ctx, "slowpoke", "run slow", nil, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	provider.mu.Lock()
	defer provider.mu.Unlock()
	assert.LessOrEqual(t, provider.peak, int32(2))
}

func TestEngine_RunTaskUnknownAgent(t *testing.T) {
	registry := newTestRegistry(t)
	engine := NewEngine(registry, 1, 0)

	_, err := engine.RunTask(context.Background(), "ghost", "task", nil, 1)
	assert.ErrorIs(t, err, errors.ErrAgentNotFound)
}

func TestEngine_RunAllCancelledContext(t *testing.T) {
	registry := newTestRegistry(t)
	engine := NewEngine(registry, 1, 0)

	_, err := engine.Submit(Spec{Description: "never runs", AgentName: "worker"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = engine.RunAll(ctx)
	assert.Error(t, err)

	cancelled := engine.List(StatusCancelled)
	assert.Len(t, cancelled, 1)
}
