package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/findable/query-runner/internal/models"
)

// Store provides database operations for sessions, projects, and run results.
// All reads and writes are point-in-time; no transaction spans multiple run
// results.
type Store struct {
	db *sqlx.DB
}

// NewStore creates a new store instance
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ====================
// Sessions
// ====================

// GetSession retrieves a session by ID with its metadata parsed.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session := &models.Session{}
	query := `
		SELECT id, project_id, status, priority, metadata, started_at, completed_at, error_message
		FROM run_sessions
		WHERE id = $1
	`

	err := s.db.GetContext(ctx, session, query, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if err := session.ParseMetadata(); err != nil {
		return nil, fmt.Errorf("failed to parse session metadata: %w", err)
	}

	return session, nil
}

// UpdateSessionStatus updates a session's status. RUNNING stamps the start
// time; terminal states stamp the completion time and record the error
// message, if any.
func (s *Store) UpdateSessionStatus(ctx context.Context, sessionID string, status models.SessionStatus, errorMessage *string) error {
	var query string
	var args []any

	switch status {
	case models.StatusRunning:
		query = `UPDATE run_sessions SET status = $1, started_at = $2 WHERE id = $3`
		args = []any{status, time.Now().UTC(), sessionID}
	case models.StatusCompleted, models.StatusFailed:
		query = `UPDATE run_sessions SET status = $1, completed_at = $2, error_message = $3 WHERE id = $4`
		args = []any{status, time.Now().UTC(), errorMessage, sessionID}
	default:
		query = `UPDATE run_sessions SET status = $1 WHERE id = $2`
		args = []any{status, sessionID}
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get affected rows: %w", err)
	}
	if rows == 0 {
		return models.ErrSessionNotFound
	}
	return nil
}

// ====================
// Projects
// ====================

// GetProjectContext retrieves the context snapshot for an active project.
func (s *Store) GetProjectContext(ctx context.Context, projectID string) (*models.ProjectContext, error) {
	project := &models.ProjectContext{}
	query := `
		SELECT id, name, slug, domain, one_liner, competitors, keywords
		FROM projects
		WHERE id = $1 AND is_active = true
	`

	err := s.db.GetContext(ctx, project, query, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project context: %w", err)
	}

	return project, nil
}

// ====================
// Queries and models
// ====================

// GetOrCreateQuery resolves the id of a query row for (project, text),
// creating it when absent.
func (s *Store) GetOrCreateQuery(ctx context.Context, projectID, queryText string) (string, error) {
	var queryID string

	err := s.db.GetContext(ctx, &queryID,
		`SELECT id FROM queries WHERE project_id = $1 AND text = $2`,
		projectID, queryText,
	)
	if err == nil {
		return queryID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to look up query: %w", err)
	}

	err = s.db.GetContext(ctx, &queryID,
		`INSERT INTO queries (id, project_id, text, category) VALUES ($1, $2, $3, 'general') RETURNING id`,
		uuid.New(), projectID, queryText,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create query: %w", err)
	}

	return queryID, nil
}

// GetModelID resolves the id of an active model row by name.
func (s *Store) GetModelID(ctx context.Context, modelName string) (string, error) {
	var modelID string
	err := s.db.GetContext(ctx, &modelID,
		`SELECT id FROM ai_models WHERE name = $1 AND is_active = true`,
		modelName,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", models.ErrModelNotFound
		}
		return "", fmt.Errorf("failed to get model id: %w", err)
	}
	return modelID, nil
}

// ====================
// Run results
// ====================

// RunResultParams carries the fields needed to persist one attempt outcome.
type RunResultParams struct {
	SessionID       string
	ProjectID       string
	QueryText       string
	ModelName       string
	ResponseText    string
	Citations       []string
	Snippets        []string
	Mentions        []string
	ExecutionTimeMs int64
}

// SaveRunResult resolves the query and model identifiers and appends one run
// result row. Rows are append-only and never updated.
func (s *Store) SaveRunResult(ctx context.Context, params *RunResultParams) (*models.RunResult, error) {
	queryID, err := s.GetOrCreateQuery(ctx, params.ProjectID, params.QueryText)
	if err != nil {
		return nil, err
	}

	modelID, err := s.GetModelID(ctx, params.ModelName)
	if err != nil {
		return nil, err
	}

	result := &models.RunResult{
		ID:              uuid.New(),
		SessionID:       params.SessionID,
		QueryID:         queryID,
		ModelID:         modelID,
		QueryText:       params.QueryText,
		ResponseText:    params.ResponseText,
		Citations:       pq.StringArray(params.Citations),
		Snippets:        pq.StringArray(params.Snippets),
		Mentions:        pq.StringArray(params.Mentions),
		ExecutionTimeMs: params.ExecutionTimeMs,
	}

	query := `
		INSERT INTO run_results (
			id, session_id, query_id, model_id, query_text,
			response_text, citations, snippets, mentions, execution_time_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`

	err = s.db.QueryRowxContext(ctx, query,
		result.ID, result.SessionID, result.QueryID, result.ModelID, result.QueryText,
		result.ResponseText, result.Citations, result.Snippets, result.Mentions,
		result.ExecutionTimeMs,
	).Scan(&result.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save run result: %w", err)
	}

	return result, nil
}
