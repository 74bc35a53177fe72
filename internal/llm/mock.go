package llm

import (
	"context"
	"sync"
)

// MockOp records one call against the mock client, in order.
type MockOp struct {
	Kind   string // "generate" or "reset"
	Prompt string // populated for generate calls
}

// MockClient implements Client for tests. It replays scripted responses and
// records the full call sequence, including resets, so tests can assert on
// isolation and retry behavior.
type MockClient struct {
	mu sync.Mutex

	// GenerateFunc, when set, decides every generate call. Otherwise
	// responses are popped from Responses in order.
	GenerateFunc func(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// ResetFunc, when set, decides every reset call.
	ResetFunc func(ctx context.Context) error

	Responses []string

	Ops []MockOp
}

var _ Client = (*MockClient)(nil)

func (m *MockClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	m.mu.Lock()
	m.Ops = append(m.Ops, MockOp{Kind: "generate", Prompt: prompt})
	fn := m.GenerateFunc
	var next string
	if fn == nil && len(m.Responses) > 0 {
		next = m.Responses[0]
		m.Responses = m.Responses[1:]
	}
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt, opts)
	}
	return next, nil
}

func (m *MockClient) ResetContext(ctx context.Context) error {
	m.mu.Lock()
	m.Ops = append(m.Ops, MockOp{Kind: "reset"})
	fn := m.ResetFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	return nil
}

// GenerateCalls returns the prompts sent so far, in order.
func (m *MockClient) GenerateCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	prompts := make([]string, 0, len(m.Ops))
	for _, op := range m.Ops {
		if op.Kind == "generate" {
			prompts = append(prompts, op.Prompt)
		}
	}
	return prompts
}

// ResetCount returns how many resets were requested.
func (m *MockClient) ResetCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, op := range m.Ops {
		if op.Kind == "reset" {
			count++
		}
	}
	return count
}
