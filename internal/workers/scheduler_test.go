package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trinity/pkg/errors"
)

type mockWorker struct {
	*BaseWorker
	runCount int32
	runFunc  func(ctx context.Context) error
}

func newMockWorker(name string, interval time.Duration, enabled bool) *mockWorker {
	return &mockWorker{
		BaseWorker: NewBaseWorker(name, interval, enabled),
	}
}

func (m *mockWorker) Run(ctx context.Context) error {
	atomic.AddInt32(&m.runCount, 1)
	if m.runFunc != nil {
		return m.runFunc(ctx)
	}
	return nil
}

func (m *mockWorker) GetRunCount() int {
	return int(atomic.LoadInt32(&m.runCount))
}

func TestScheduler_StartStop(t *testing.T) {
	scheduler := NewScheduler()

	worker := newMockWorker("test-worker", 100*time.Millisecond, true)
	scheduler.RegisterWorker(worker)

	err := scheduler.Start(context.Background())
	require.NoError(t, err)
	assert.True(t, scheduler.IsRunning())

	time.Sleep(250 * time.Millisecond)

	err = scheduler.Stop()
	require.NoError(t, err)
	assert.False(t, scheduler.IsRunning())

	// Immediate run plus at least two ticks
	assert.GreaterOrEqual(t, worker.GetRunCount(), 2)
}

func TestScheduler_SkipsDisabledWorker(t *testing.T) {
	scheduler := NewScheduler()

	enabled := newMockWorker("enabled", 50*time.Millisecond, true)
	disabled := newMockWorker("disabled", 50*time.Millisecond, false)
	scheduler.RegisterWorker(enabled)
	scheduler.RegisterWorker(disabled)

	require.NoError(t, scheduler.Start(context.Background()))
	time.Sleep(120 * time.Millisecond)
	require.NoError(t, scheduler.Stop())

	assert.GreaterOrEqual(t, enabled.GetRunCount(), 1)
	assert.Equal(t, 0, disabled.GetRunCount())
}

func TestScheduler_DoubleStart(t *testing.T) {
	scheduler := NewScheduler()
	scheduler.RegisterWorker(newMockWorker("w", time.Second, true))

	require.NoError(t, scheduler.Start(context.Background()))
	defer scheduler.Stop() //nolint:errcheck

	err := scheduler.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInternal))
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	scheduler := NewScheduler()

	err := scheduler.Stop()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInternal))
}

func TestScheduler_SurvivesPanickingWorker(t *testing.T) {
	scheduler := NewScheduler()

	panicking := newMockWorker("panicking", 40*time.Millisecond, true)
	panicking.runFunc = func(ctx context.Context) error {
		panic("worker blew up")
	}
	healthy := newMockWorker("healthy", 40*time.Millisecond, true)
	scheduler.RegisterWorker(panicking)
	scheduler.RegisterWorker(healthy)

	require.NoError(t, scheduler.Start(context.Background()))
	time.Sleep(150 * time.Millisecond)
	require.NoError(t, scheduler.Stop())

	// The panicking worker keeps ticking and the healthy one is unaffected
	assert.GreaterOrEqual(t, panicking.GetRunCount(), 2)
	assert.GreaterOrEqual(t, healthy.GetRunCount(), 2)
}

func TestScheduler_RegisterAfterStart(t *testing.T) {
	scheduler := NewScheduler()
	scheduler.RegisterWorker(newMockWorker("early", time.Second, true))

	require.NoError(t, scheduler.Start(context.Background()))
	defer scheduler.Stop() //nolint:errcheck

	scheduler.RegisterWorker(newMockWorker("late", time.Second, true))
	assert.Len(t, scheduler.GetWorkers(), 1)
}

func TestBaseWorker_Health(t *testing.T) {
	worker := NewBaseWorker("tracked", time.Minute, true)

	worker.RecordRun(100 * time.Millisecond)
	worker.RecordError(errors.New("boom"), 300*time.Millisecond)

	health := worker.Health()
	assert.Equal(t, int64(2), health.RunCount)
	assert.Equal(t, int64(1), health.ErrorCount)
	assert.Equal(t, 200*time.Millisecond, health.AvgDuration)
	assert.EqualError(t, health.LastError, "boom")
	assert.True(t, health.Enabled)

	worker.SetEnabled(false)
	assert.False(t, worker.Enabled())
}
