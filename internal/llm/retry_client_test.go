package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	resilerrors "resil/internal/errors"
)

func fastRetryConfig() resilerrors.RetryConfig {
	return resilerrors.RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestRetryClientRetriesEndpointErrors(t *testing.T) {
	calls := 0
	mock := &MockClient{
		GenerateFunc: func(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
			calls++
			if calls < 2 {
				return "", resilerrors.NewEndpointError(errors.New("503"), "server error")
			}
			return "recovered", nil
		},
	}

	client := WrapWithRetry(mock, fastRetryConfig())
	content, err := client.Generate(context.Background(), "p", GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if content != "recovered" {
		t.Fatalf("content = %q", content)
	}
	if calls != 2 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestRetryClientPassesOverflowThrough(t *testing.T) {
	calls := 0
	mock := &MockClient{
		GenerateFunc: func(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
			calls++
			return "", resilerrors.NewContextOverflowError(errors.New("ctx"), "prompt exceeds context window")
		},
	}

	client := WrapWithRetry(mock, fastRetryConfig())
	_, err := client.Generate(context.Background(), "p", GenerateOptions{})
	if calls != 1 {
		t.Fatalf("calls = %d, overflow must not be retried", calls)
	}
	if !resilerrors.IsContextOverflow(err) {
		t.Fatalf("error lost its type: %v", err)
	}
}

func TestRetryClientRetriesReset(t *testing.T) {
	calls := 0
	mock := &MockClient{
		ResetFunc: func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return resilerrors.NewEndpointError(errors.New("flaky"), "context reset failed")
			}
			return nil
		},
	}

	client := WrapWithRetry(mock, fastRetryConfig())
	if err := client.ResetContext(context.Background()); err != nil {
		t.Fatalf("ResetContext: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestRetryClientExhaustsRetries(t *testing.T) {
	mock := &MockClient{
		GenerateFunc: func(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
			return "", resilerrors.NewEndpointError(errors.New("down"), "server error")
		},
	}

	client := WrapWithRetry(mock, fastRetryConfig())
	_, err := client.Generate(context.Background(), "p", GenerateOptions{})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !resilerrors.IsEndpoint(err) {
		t.Fatalf("error lost its type: %v", err)
	}
	if got := len(mock.GenerateCalls()); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
}
