package workers

import (
	"context"
	"time"

	"trinity/internal/agents"
)

// HistoryPruner trims each agent's thought history down to a configured
// cap so long-running sessions do not grow memory without bound.
type HistoryPruner struct {
	*BaseWorker
	registry    *agents.Registry
	maxThoughts int
}

// NewHistoryPruner creates a pruning worker over the given agent registry.
func NewHistoryPruner(registry *agents.Registry, maxThoughts int, interval time.Duration) *HistoryPruner {
	return &HistoryPruner{
		BaseWorker:  NewBaseWorker("history_pruner", interval, registry != nil && maxThoughts > 0),
		registry:    registry,
		maxThoughts: maxThoughts,
	}
}

// Run prunes thought history for every registered agent.
func (w *HistoryPruner) Run(ctx context.Context) error {
	start := time.Now()

	total := 0
	for _, agent := range w.registry.List() {
		if err := ctx.Err(); err != nil {
			w.RecordError(err, time.Since(start))
			return err
		}

		dropped := agent.PruneThoughts(w.maxThoughts)
		if dropped > 0 {
			w.Log().Debugw("Pruned agent history",
				"agent", agent.Name(),
				"dropped", dropped,
			)
		}
		total += dropped
	}

	if total > 0 {
		w.Log().Infow("History pruning completed", "dropped", total)
	}

	w.RecordRun(time.Since(start))
	return nil
}
