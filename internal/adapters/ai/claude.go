package ai

import (
	"context"
	"strings"
	"time"

	"trinity/pkg/errors"
)

// ClaudeProvider implements the Anthropic Claude integration.
type ClaudeProvider struct {
	apiKey      string
	baseURL     string // overrides the default endpoint when set
	timeout     time.Duration
	rateLimiter RateLimiter
	models      []ModelInfo
}

// NewClaudeProvider creates a new Claude provider.
func NewClaudeProvider(apiKey string, timeout time.Duration, limiter RateLimiter) *ClaudeProvider {
	if limiter == nil {
		limiter = NewNoopLimiter()
	}
	return &ClaudeProvider{
		apiKey:      apiKey,
		timeout:     timeout,
		rateLimiter: limiter,
		models:      claudeModels(),
	}
}

// Name returns provider name.
func (p *ClaudeProvider) Name() ProviderName {
	return ProviderNameAnthropic
}

// GetModel returns model info by name.
func (p *ClaudeProvider) GetModel(_ context.Context, model string) (ModelInfo, error) {
	for _, m := range p.models {
		if strings.EqualFold(m.Name, model) {
			return m, nil
		}
	}
	return ModelInfo{}, errors.Wrapf(errors.ErrNotFound, "claude model %s not found", model)
}

// ListModels lists available models.
func (p *ClaudeProvider) ListModels(_ context.Context) ([]ModelInfo, error) {
	return p.models, nil
}

// SupportsTools indicates tool calling support.
func (p *ClaudeProvider) SupportsTools() bool { return true }

func claudeModels() []ModelInfo {
	return []ModelInfo{
		{
			Provider:        ProviderNameAnthropic,
			Name:            ModelClaudeSonnet,
			Family:          "claude-3.5",
			MaxTokens:       200000,
			InputCostPer1K:  0.003,
			OutputCostPer1K: 0.015,
			SupportsImages:  true,
			SupportsTools:   true,
		},
		{
			Provider:        ProviderNameAnthropic,
			Name:            ModelClaudeHaiku,
			Family:          "claude-3.5",
			MaxTokens:       200000,
			InputCostPer1K:  0.001,
			OutputCostPer1K: 0.005,
			SupportsImages:  true,
			SupportsTools:   true,
		},
		{
			Provider:        ProviderNameAnthropic,
			Name:            "claude-3-opus",
			Family:          "claude-3",
			MaxTokens:       200000,
			InputCostPer1K:  0.015,
			OutputCostPer1K: 0.075,
			SupportsImages:  true,
			SupportsTools:   true,
		},
	}
}
