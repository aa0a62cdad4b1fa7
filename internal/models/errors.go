package models

import "errors"

// Common errors
var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrSessionNotFound is returned when a session id from the queue has no
	// matching session row
	ErrSessionNotFound = errors.New("session not found")

	// ErrModelNotFound is returned when a model name has no active model row
	ErrModelNotFound = errors.New("model not found")

	// ErrSessionTerminal is returned when processing is requested for a
	// session already in a terminal state
	ErrSessionTerminal = errors.New("session already in terminal state")
)
