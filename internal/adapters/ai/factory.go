package ai

import (
	"strings"

	"trinity/internal/adapters/config"
	"trinity/pkg/errors"
)

// BuildRegistry initializes a ProviderRegistry with every provider that has an
// API key configured. At least one provider must be available.
func BuildRegistry(cfg config.AIConfig) (*ProviderRegistry, error) {
	registry := NewProviderRegistry()

	if cfg.ClaudeKey != "" {
		rl := cfg.GetRateLimit("anthropic")
		limiter := NewLimiterFromConfig(ProviderNameAnthropic, float64(rl.ReqPerMinute), rl.Burst)
		if err := registry.Register(NewClaudeProvider(cfg.ClaudeKey, cfg.RequestTimeout, limiter)); err != nil {
			return nil, err
		}
	}

	if cfg.OpenAIKey != "" {
		rl := cfg.GetRateLimit("openai")
		limiter := NewLimiterFromConfig(ProviderNameOpenAI, float64(rl.ReqPerMinute), rl.Burst)
		if err := registry.Register(NewOpenAIProvider(cfg.OpenAIKey, cfg.RequestTimeout, limiter)); err != nil {
			return nil, err
		}
	}

	if len(registry.List()) == 0 {
		return nil, errors.Wrap(errors.ErrProviderUnavailable, "no AI provider configured")
	}

	return registry, nil
}

// NormalizeProviderName makes provider lookup more forgiving. Aliases such as
// "claude" resolve to the canonical anthropic name.
func NormalizeProviderName(name string) ProviderName {
	normalized := strings.ToLower(strings.TrimSpace(name))
	switch normalized {
	case "claude", "anthropic":
		return ProviderNameAnthropic
	case "openai", "gpt":
		return ProviderNameOpenAI
	default:
		return ProviderName(normalized)
	}
}
