// Package aiclient provides the model client capability: a uniform
// query(prompt) interface over the AI providers the runner can fan out to.
package aiclient

import (
	"context"
	"errors"
	"fmt"
)

// Client is the capability every provider implementation satisfies. The
// executor is written against this interface only; new providers plug in
// without touching scheduling or extraction.
type Client interface {
	// Query sends a prompt and returns the model's text response. Transient
	// failures are retried internally per the client's retry policy before a
	// terminal error surfaces.
	Query(ctx context.Context, prompt string, temperature float64) (string, error)

	// Name returns the model identifier this client serves.
	Name() string
}

// APIError is a provider HTTP error with enough detail to classify it.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// Terminal reports whether the error is not worth retrying: client-side
// errors other than rate limiting.
func (e *APIError) Terminal() bool {
	if e.StatusCode == 429 {
		return false
	}
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// IsTerminal reports whether an error should not be retried.
// Network errors and 5xx/429 responses are transient; other 4xx responses
// and malformed-response errors are terminal.
func IsTerminal(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Terminal()
	}
	var respErr *ResponseError
	return errors.As(err, &respErr)
}

// ResponseError indicates a well-formed HTTP exchange whose body could not
// be interpreted (missing choices, malformed JSON). Retrying rarely helps.
type ResponseError struct {
	Provider string
	Reason   string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s response error: %s", e.Provider, e.Reason)
}
