package errors

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// EndpointError represents a transient failure talking to the inference
// endpoint (network error, HTTP 5xx, timeout). Callers retry it with
// bounded backoff.
type EndpointError struct {
	Err        error
	StatusCode int    // HTTP status code if applicable
	Message    string // human-friendly message
}

func (e *EndpointError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("endpoint error: %v", e.Err)
}

func (e *EndpointError) Unwrap() error {
	return e.Err
}

// ContextOverflowError indicates the prompt exceeded the endpoint's context
// window. It is never retried blindly; callers shrink the input instead.
type ContextOverflowError struct {
	Err     error
	Message string
}

func (e *ContextOverflowError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("context overflow: %v", e.Err)
}

func (e *ContextOverflowError) Unwrap() error {
	return e.Err
}

// UnrepairableOutputError indicates model output that no repair strategy
// could turn into a structured record.
type UnrepairableOutputError struct {
	Raw     string // raw model output, truncated for logging
	Message string
}

func (e *UnrepairableOutputError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unrepairable model output"
}

// DocumentFailure is raised only when every dimension of a document failed.
// Anything short of that degrades to a PARTIAL record instead.
type DocumentFailure struct {
	Company string
	Year    int
	Reasons map[string]string // dimension -> last error kind
}

func (e *DocumentFailure) Error() string {
	return fmt.Sprintf("all dimensions failed for %s %d", e.Company, e.Year)
}

// Helper constructors

func NewEndpointError(err error, message string) *EndpointError {
	return &EndpointError{Err: err, Message: message}
}

func NewContextOverflowError(err error, message string) *ContextOverflowError {
	return &ContextOverflowError{Err: err, Message: message}
}

func NewUnrepairableOutputError(raw, message string) *UnrepairableOutputError {
	if len(raw) > 500 {
		raw = raw[:500]
	}
	return &UnrepairableOutputError{Raw: raw, Message: message}
}

// IsEndpoint checks whether an error is a transient endpoint failure.
func IsEndpoint(err error) bool {
	var endpointErr *EndpointError
	return errors.As(err, &endpointErr)
}

// IsContextOverflow checks whether an error signals an oversized prompt.
func IsContextOverflow(err error) bool {
	var overflowErr *ContextOverflowError
	return errors.As(err, &overflowErr)
}

// IsUnrepairable checks whether an error came from the repair chain giving up.
func IsUnrepairable(err error) bool {
	var unrepErr *UnrepairableOutputError
	return errors.As(err, &unrepErr)
}

// IsDocumentFailure checks for a total document failure.
func IsDocumentFailure(err error) bool {
	var docErr *DocumentFailure
	return errors.As(err, &docErr)
}

// IsTransient reports whether an error is worth retrying as-is.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	// Overflow is handled by input reduction, not by retrying.
	if IsContextOverflow(err) {
		return false
	}

	if IsEndpoint(err) {
		return true
	}

	return isNetworkError(err) || isSyscallError(err)
}

// Kind returns a short error-kind label recorded on scoring records so that
// PARTIAL/FAILED results explain themselves.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsContextOverflow(err):
		return "context_overflow"
	case IsEndpoint(err):
		return "endpoint_error"
	case IsUnrepairable(err):
		return "unrepairable_output"
	case IsDocumentFailure(err):
		return "document_failure"
	case errors.Is(err, syscall.ECONNREFUSED) || isNetworkError(err):
		return "endpoint_error"
	default:
		return "unknown"
	}
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	networkPatterns := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"timeout",
		"deadline exceeded",
		"no such host",
	}
	for _, pattern := range networkPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

func isSyscallError(err error) bool {
	var syscallErr syscall.Errno
	if errors.As(err, &syscallErr) {
		switch syscallErr {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.EPIPE,
			syscall.ETIMEDOUT, syscall.ENETUNREACH, syscall.EHOSTUNREACH:
			return true
		}
	}
	return false
}
