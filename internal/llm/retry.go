package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryConfig configures the retry behavior for model calls.
type RetryConfig struct {
	MaxAttempts  int           // total attempts, including the first
	InitialDelay time.Duration // backoff before the second attempt; doubles each retry
}

// DefaultRetryConfig returns the standard policy: three attempts with
// exponential backoff starting at two seconds.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
	}
}

// withRetry executes fn with exponential backoff. After the final failed
// attempt the caller receives an error wrapping ErrUnavailable, so the
// orchestrator can substitute its fallback response.
func withRetry(ctx context.Context, cfg RetryConfig, fn func() (string, error)) (string, error) {
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		out, err := fn()
		if err == nil {
			return out, nil
		}
		lastErr = err

		if attempt == cfg.MaxAttempts {
			break
		}

		slog.Warn("model call failed, retrying",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}

	return "", fmt.Errorf("%w after %d attempts: %v", ErrUnavailable, cfg.MaxAttempts, lastErr)
}
