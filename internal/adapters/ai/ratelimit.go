package ai

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimiter gates outbound provider requests.
type RateLimiter interface {
	// Wait blocks until a request may proceed or the context is cancelled.
	Wait(ctx context.Context) error

	// Limit returns the configured limit in requests per minute, or -1 when unlimited.
	Limit() float64
}

// tokenLimiter wraps golang.org/x/time/rate with per-minute accounting.
type tokenLimiter struct {
	provider ProviderName
	limiter  *rate.Limiter
}

// NewTokenLimiter creates a token bucket limiter allowing reqPerMinute requests
// with the given burst. A non-positive burst defaults to 1.
func NewTokenLimiter(provider ProviderName, reqPerMinute float64, burst int) RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &tokenLimiter{
		provider: provider,
		limiter:  rate.NewLimiter(rate.Limit(reqPerMinute/60.0), burst),
	}
}

func (l *tokenLimiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return &RateLimitError{Provider: l.provider, Limit: l.Limit(), Err: err}
	}
	return nil
}

func (l *tokenLimiter) Limit() float64 {
	return float64(l.limiter.Limit()) * 60.0
}

// noopLimiter never blocks.
type noopLimiter struct{}

// NewNoopLimiter creates a limiter that never blocks, for tests or disabled limiting.
func NewNoopLimiter() RateLimiter { return noopLimiter{} }

func (noopLimiter) Wait(context.Context) error { return nil }

func (noopLimiter) Limit() float64 { return -1 }

// NewLimiterFromConfig builds a limiter for the provider. A non-positive
// reqPerMinute disables rate limiting entirely.
func NewLimiterFromConfig(provider ProviderName, reqPerMinute float64, burst int) RateLimiter {
	if reqPerMinute <= 0 {
		return NewNoopLimiter()
	}
	return NewTokenLimiter(provider, reqPerMinute, burst)
}

// RateLimitError wraps rate limit related errors with provider context.
type RateLimitError struct {
	Provider ProviderName
	Limit    float64
	Err      error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit error for provider %s (limit: %.0f req/min): %v", e.Provider, e.Limit, e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}
