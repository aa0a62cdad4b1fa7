package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// RunResult is the persisted outcome of one successful attempt: one
// (query, model, run-index) execution. Append-only; never updated.
type RunResult struct {
	ID              uuid.UUID      `db:"id"                json:"id"`
	SessionID       string         `db:"session_id"        json:"session_id"`
	QueryID         string         `db:"query_id"          json:"query_id"`
	ModelID         string         `db:"model_id"          json:"model_id"`
	QueryText       string         `db:"query_text"        json:"query_text"`
	ResponseText    string         `db:"response_text"     json:"response_text"`
	Citations       pq.StringArray `db:"citations"         json:"citations"`
	Snippets        pq.StringArray `db:"snippets"          json:"snippets"`
	Mentions        pq.StringArray `db:"mentions"          json:"mentions"`
	ExecutionTimeMs int64          `db:"execution_time_ms" json:"execution_time_ms"`
	CreatedAt       time.Time      `db:"created_at"        json:"created_at"`
}

// QueueStats reports approximate queue depth for observability.
type QueueStats struct {
	Pending  int64 `json:"pending"`
	InFlight int64 `json:"in_flight"`
}
