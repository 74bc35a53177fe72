package llm

import (
	"context"

	resilerrors "resil/internal/errors"
	"resil/internal/logging"
)

// retryClient wraps a Client with bounded linear-backoff retries for
// transient endpoint failures. Context-overflow errors pass through
// untouched so callers can shrink the input instead of retrying blindly.
type retryClient struct {
	underlying  Client
	retryConfig resilerrors.RetryConfig
	logger      logging.Logger
}

var _ Client = (*retryClient)(nil)

// WrapWithRetry decorates a client with the retry policy.
func WrapWithRetry(client Client, retryConfig resilerrors.RetryConfig) Client {
	return &retryClient{
		underlying:  client,
		retryConfig: retryConfig,
		logger:      logging.NewComponentLogger("llm-retry"),
	}
}

func (c *retryClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	return resilerrors.RetryWithResult(ctx, c.retryConfig, c.logger,
		func(ctx context.Context) (string, error) {
			return c.underlying.Generate(ctx, prompt, opts)
		})
}

func (c *retryClient) ResetContext(ctx context.Context) error {
	_, err := resilerrors.RetryWithResult(ctx, c.retryConfig, c.logger,
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.underlying.ResetContext(ctx)
		})
	return err
}
