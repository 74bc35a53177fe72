package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{NewEndpointError(errors.New("boom"), "completion request failed"), "endpoint_error"},
		{NewContextOverflowError(errors.New("too long"), "prompt exceeds context window"), "context_overflow"},
		{NewUnrepairableOutputError("garbage", "no score"), "unrepairable_output"},
		{&DocumentFailure{Company: "ACME", Year: 2020}, "document_failure"},
		{errors.New("plain"), "unknown"},
		{nil, ""},
	}

	for _, tc := range cases {
		if got := Kind(tc.err); got != tc.want {
			t.Errorf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestKindSeesThroughWrapping(t *testing.T) {
	err := fmt.Errorf("attempt 3: %w", NewContextOverflowError(errors.New("ctx"), "overflow"))
	if got := Kind(err); got != "context_overflow" {
		t.Fatalf("Kind through wrap = %q", got)
	}
	if !IsContextOverflow(err) {
		t.Fatal("IsContextOverflow must see through wrapping")
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(NewEndpointError(errors.New("503"), "server error")) {
		t.Fatal("endpoint errors are transient")
	}
	if IsTransient(NewContextOverflowError(errors.New("ctx"), "overflow")) {
		t.Fatal("context overflow is not transient: retrying the same prompt cannot succeed")
	}
	if IsTransient(NewUnrepairableOutputError("x", "y")) {
		t.Fatal("unrepairable output is not transient")
	}
}

func TestRetryWithResultSucceedsAfterTransientFailures(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}

	calls := 0
	result, err := RetryWithResult(context.Background(), cfg, nil, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewEndpointError(errors.New("flaky"), "completion request failed")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Fatalf("result = %q", result)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3 (initial + 2 retries)", calls)
	}
}

func TestRetryWithResultDoesNotRetryOverflow(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond}

	calls := 0
	_, err := RetryWithResult(context.Background(), cfg, nil, func(ctx context.Context) (int, error) {
		calls++
		return 0, NewContextOverflowError(errors.New("ctx"), "overflow")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, overflow must not be retried", calls)
	}
	if !IsContextOverflow(err) {
		t.Fatalf("error lost its type: %v", err)
	}
}

func TestRetryWithResultHonorsContextCancel(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 5, BaseDelay: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := RetryWithResult(ctx, cfg, nil, func(ctx context.Context) (int, error) {
			calls++
			return 0, NewEndpointError(errors.New("flaky"), "fail")
		})
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("retry loop did not observe cancellation")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 before cancel", calls)
	}
}

func TestDocumentFailureMessage(t *testing.T) {
	err := &DocumentFailure{
		Company: "ACME",
		Year:    2021,
		Reasons: map[string]string{"absorb": "endpoint_error"},
	}
	if !IsDocumentFailure(err) {
		t.Fatal("IsDocumentFailure")
	}
	if msg := err.Error(); msg == "" {
		t.Fatal("empty error message")
	}
}
