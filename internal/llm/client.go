// Package llm wraps the inference endpoint behind a small client interface:
// stateless text completion plus an explicit context reset. The reset is
// mandatory between agent invocations so residual attention state from one
// dimension's prompt cannot bias the next.
package llm

import "context"

// GenerateOptions carries per-call sampling parameters.
type GenerateOptions struct {
	Temperature float64  `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
	Stop        []string `json:"stop,omitempty"`
}

// Client is the inference endpoint boundary. Implementations must surface
// network/HTTP failures as *errors.EndpointError and well-formed
// context-length errors as *errors.ContextOverflowError.
type Client interface {
	// Generate runs one text completion and returns the raw model output.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// ResetContext instructs the engine to discard cached conversational or
	// attention state tied to the previous call, returning once acknowledged.
	ResetContext(ctx context.Context) error
}
