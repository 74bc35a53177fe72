package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	resilerrors "resil/internal/errors"
	"resil/internal/logging"
)

var _ Client = (*httpClient)(nil)

// httpClient speaks a llama.cpp-server-style completion protocol:
// POST /completion for generation, POST /reset to drop the engine's cached
// context. Well-formed error responses are surfaced without retry.
type httpClient struct {
	baseURL    string
	httpClient *http.Client
	logger     logging.Logger
}

// Config configures the HTTP inference client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// NewHTTPClient builds a client for a completion endpoint.
func NewHTTPClient(config Config) Client {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &httpClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logging.NewComponentLogger("llm-http"),
	}
}

type completionRequest struct {
	Prompt      string   `json:"prompt"`
	Temperature float64  `json:"temperature"`
	NPredict    int      `json:"n_predict,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type completionResponse struct {
	Content string          `json:"content"`
	Error   *endpointErrRec `json:"error,omitempty"`
}

type endpointErrRec struct {
	Code    string `json:"code,omitempty"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
}

func (c *httpClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	payload, err := json.Marshal(completionRequest{
		Prompt:      prompt,
		Temperature: opts.Temperature,
		NPredict:    opts.MaxTokens,
		Stop:        opts.Stop,
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/completion", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", resilerrors.NewEndpointError(err, "completion request failed")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resilerrors.NewEndpointError(err, "read completion response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", c.classifyHTTPError(resp.StatusCode, body)
	}

	var response completionResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", resilerrors.NewEndpointError(err, "decode completion response")
	}
	if response.Error != nil {
		return "", c.classifyErrorRecord(resp.StatusCode, response.Error)
	}

	return response.Content, nil
}

func (c *httpClient) ResetContext(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/reset", nil)
	if err != nil {
		return fmt.Errorf("build reset request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return resilerrors.NewEndpointError(err, "context reset failed")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return resilerrors.NewEndpointError(
			fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
			"context reset not acknowledged")
	}

	c.logger.Debug("Context reset acknowledged")
	return nil
}

// classifyHTTPError distinguishes transient server failures from well-formed
// error responses. Context-length errors are never retried; they are handled
// upstream by shrinking the section set.
func (c *httpClient) classifyHTTPError(statusCode int, body []byte) error {
	var response completionResponse
	if err := json.Unmarshal(body, &response); err == nil && response.Error != nil {
		return c.classifyErrorRecord(statusCode, response.Error)
	}

	msg := strings.TrimSpace(string(body))
	if isContextOverflowMessage(msg) {
		return resilerrors.NewContextOverflowError(
			fmt.Errorf("HTTP %d: %s", statusCode, msg), "prompt exceeds context window")
	}

	err := fmt.Errorf("HTTP %d: %s", statusCode, msg)
	if statusCode >= 500 || statusCode == http.StatusTooManyRequests {
		return &resilerrors.EndpointError{Err: err, StatusCode: statusCode}
	}

	// Other 4xx responses are well-formed and pointless to retry.
	return err
}

func (c *httpClient) classifyErrorRecord(statusCode int, rec *endpointErrRec) error {
	if rec.Code == "context_length_exceeded" || rec.Type == "context_length_exceeded" ||
		isContextOverflowMessage(rec.Message) {
		return resilerrors.NewContextOverflowError(
			fmt.Errorf("%s", rec.Message), "prompt exceeds context window")
	}

	err := fmt.Errorf("endpoint error (%s): %s", rec.Type, rec.Message)
	if statusCode >= 500 || statusCode == http.StatusTooManyRequests {
		return &resilerrors.EndpointError{Err: err, StatusCode: statusCode}
	}
	return err
}

func isContextOverflowMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "context length") ||
		strings.Contains(lower, "context window") ||
		strings.Contains(lower, "too many tokens")
}
