package errors

import (
	"context"
	"fmt"
	"time"

	"resil/internal/logging"
)

// RetryConfig configures retry behavior for endpoint calls.
type RetryConfig struct {
	MaxRetries int           // retries after the first attempt (default: 2)
	BaseDelay  time.Duration // linear backoff step (default: 1s)
	MaxDelay   time.Duration // cap on a single backoff wait (default: 10s)
}

// DefaultRetryConfig returns sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 2,
		BaseDelay:  1 * time.Second,
		MaxDelay:   10 * time.Second,
	}
}

// RetryWithResult executes fn with linear-backoff retries for transient
// errors. Permanent errors (including ContextOverflowError) stop the loop
// immediately.
func RetryWithResult[T any](ctx context.Context, config RetryConfig, logger logging.Logger, fn func(ctx context.Context) (T, error)) (T, error) {
	logger = logging.OrNop(logger)

	var lastErr error
	var zero T

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if attempt > 0 {
			logger.Debug("Retrying (attempt %d/%d)", attempt+1, config.MaxRetries+1)
		}

		result, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				logger.Info("Retry succeeded after %d attempts", attempt+1)
			}
			return result, nil
		}

		lastErr = err
		logger.Debug("Attempt %d failed: %v", attempt+1, err)

		if !IsTransient(err) {
			logger.Debug("Error is not transient, stopping retries")
			return zero, err
		}

		if attempt == config.MaxRetries {
			logger.Warn("Max retries (%d) exhausted", config.MaxRetries+1)
			break
		}

		delay := linearBackoff(attempt, config)
		logger.Debug("Waiting %v before next retry", delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}

	return zero, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// linearBackoff returns baseDelay * (attempt + 1), capped at MaxDelay.
func linearBackoff(attempt int, config RetryConfig) time.Duration {
	base := config.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	delay := base * time.Duration(attempt+1)
	if config.MaxDelay > 0 && delay > config.MaxDelay {
		delay = config.MaxDelay
	}
	return delay
}
