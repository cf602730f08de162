package agents

import (
	"github.com/shopspring/decimal"

	"trinity/internal/adapters/ai"
	"trinity/internal/adapters/config"
	"trinity/internal/memory"
	"trinity/internal/workspace"
	"trinity/pkg/logger"
)

// Deps carries everything the agent factory wires into the three agents.
type Deps struct {
	Providers *ai.ProviderRegistry
	Memory    *memory.Manager
	Workspace *workspace.Workspace
	Searcher  Searcher
	Fetcher   PageFetcher
	Archive   RecordSink
}

// defaultCEOBudget is the starting ledger when none is configured.
var defaultCEOBudget = decimal.NewFromInt(100000)

// Build constructs and registers the three agents. A missing LLM provider is
// not fatal: agents run in degraded mode.
func Build(cfg *config.Config, deps Deps) (*Registry, error) {
	var provider ai.ChatProvider
	if deps.Providers != nil {
		name := NormalizeProvider(cfg.AI.DefaultProvider)
		p, err := deps.Providers.Get(name)
		if err != nil {
			logger.Get().Warn("Default AI provider unavailable, agents run degraded", "provider", cfg.AI.DefaultProvider)
		} else {
			provider = p
		}
	}

	common := []Option{
		WithMaxIterations(cfg.Tasks.MaxIterations),
		WithMaxThoughts(cfg.History.MaxThoughts),
	}
	if provider != nil {
		common = append(common, WithProvider(provider, cfg.AI.DefaultModel))
	}
	if deps.Memory != nil {
		common = append(common, WithMemory(deps.Memory))
	}
	if deps.Archive != nil {
		common = append(common, WithRecordSink(deps.Archive))
	}

	architect, err := NewArchitect(deps.Workspace, common...)
	if err != nil {
		return nil, err
	}

	ceo, err := NewCEO(defaultCEOBudget, common...)
	if err != nil {
		return nil, err
	}

	polymathOpts := []Option{
		WithMaxIterations(cfg.Tasks.MaxIterations),
		WithMaxThoughts(cfg.History.MaxThoughts),
	}
	if provider != nil {
		polymathOpts = append(polymathOpts, WithProvider(provider, cfg.AI.DefaultModel))
	}
	if deps.Archive != nil {
		polymathOpts = append(polymathOpts, WithRecordSink(deps.Archive))
	}
	polymath, err := NewPolymath(deps.Searcher, deps.Fetcher, deps.Memory, polymathOpts...)
	if err != nil {
		return nil, err
	}

	registry := NewRegistry()
	for _, agent := range []Agent{architect, ceo, polymath} {
		if err := registry.Register(agent); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// NormalizeProvider resolves config aliases to canonical provider names.
func NormalizeProvider(name string) ai.ProviderName {
	return ai.NormalizeProviderName(name)
}
