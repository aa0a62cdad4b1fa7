// Package models defines the data model for the query runner service.
package models

import (
	"encoding/json"
	"time"
)

// SessionStatus is the lifecycle state of a run session.
type SessionStatus string

// Session lifecycle states. Transitions are monotonic:
// QUEUED -> RUNNING -> COMPLETED | FAILED.
const (
	StatusQueued    SessionStatus = "QUEUED"
	StatusRunning   SessionStatus = "RUNNING"
	StatusCompleted SessionStatus = "COMPLETED"
	StatusFailed    SessionStatus = "FAILED"
)

// IsTerminal returns true for states no processing pass may leave.
func (s SessionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Priority is the queue priority tier of a session.
type Priority string

// Priority tiers and their queue weights. Higher weight is served first.
const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Weight maps a priority tier to its numeric queue weight.
// Unknown tiers get the normal weight.
func (p Priority) Weight() float64 {
	switch p {
	case PriorityLow:
		return 1
	case PriorityHigh:
		return 10
	default:
		return 5
	}
}

// Valid reports whether the priority names a known tier.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return true
	default:
		return false
	}
}

// SessionMetadata declares the work a session carries: the queries to run,
// the models to run them against, and how many runs per (query, model) pair.
type SessionMetadata struct {
	Queries  []string `json:"queries"`
	Models   []string `json:"models"`
	RunCount int      `json:"runCount"`
}

// Session is one user-initiated batch of queries to run across one or more
// models. Created externally in QUEUED state; the scheduler is the sole
// writer of status and timestamps.
type Session struct {
	ID           string          `db:"id"            json:"id"`
	ProjectID    string          `db:"project_id"    json:"project_id"`
	Status       SessionStatus   `db:"status"        json:"status"`
	Priority     Priority        `db:"priority"      json:"priority"`
	Metadata     SessionMetadata `db:"-"             json:"metadata"`
	MetadataJSON []byte          `db:"metadata"      json:"-"`
	StartedAt    *time.Time      `db:"started_at"    json:"started_at,omitempty"`
	CompletedAt  *time.Time      `db:"completed_at"  json:"completed_at,omitempty"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
}

// ParseMetadata parses MetadataJSON into the Metadata struct.
// A session with no metadata declares no work; RunCount defaults to 1.
func (s *Session) ParseMetadata() error {
	if len(s.MetadataJSON) == 0 {
		s.Metadata = SessionMetadata{RunCount: 1}
		return nil
	}
	if err := json.Unmarshal(s.MetadataJSON, &s.Metadata); err != nil {
		return err
	}
	if s.Metadata.RunCount <= 0 {
		s.Metadata.RunCount = 1
	}
	return nil
}
