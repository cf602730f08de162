package ai

// ProviderName identifies a supported LLM provider.
type ProviderName string

const (
	ProviderNameOpenAI    ProviderName = "openai"
	ProviderNameAnthropic ProviderName = "anthropic"
)

// String returns the string representation of the provider name.
func (p ProviderName) String() string {
	return string(p)
}

// IsValid reports whether the provider name is one of the supported providers.
func (p ProviderName) IsValid() bool {
	switch p {
	case ProviderNameOpenAI, ProviderNameAnthropic:
		return true
	}
	return false
}

// AllProviderNames returns every supported provider name.
func AllProviderNames() []ProviderName {
	return []ProviderName{ProviderNameOpenAI, ProviderNameAnthropic}
}

// Common model identifiers.
const (
	ModelGPT4o        = "gpt-4o"
	ModelGPT4oMini    = "gpt-4o-mini"
	ModelClaudeSonnet = "claude-3-5-sonnet-latest"
	ModelClaudeHaiku  = "claude-3-5-haiku-latest"
)
