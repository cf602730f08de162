package workers

import (
	"context"
	"time"

	"trinity/internal/memory"
)

// MemoryConsolidator periodically flushes short-term memory into
// long-term storage for every agent that has accumulated entries.
type MemoryConsolidator struct {
	*BaseWorker
	manager *memory.Manager
}

// NewMemoryConsolidator creates a consolidation worker for the given manager.
func NewMemoryConsolidator(manager *memory.Manager, interval time.Duration) *MemoryConsolidator {
	return &MemoryConsolidator{
		BaseWorker: NewBaseWorker("memory_consolidator", interval, manager != nil),
		manager:    manager,
	}
}

// Run consolidates short-term memory for all agents.
func (w *MemoryConsolidator) Run(ctx context.Context) error {
	start := time.Now()

	err := w.manager.ConsolidateAll(ctx)
	duration := time.Since(start)
	if err != nil {
		w.RecordError(err, duration)
		return err
	}

	w.RecordRun(duration)
	return nil
}
