// Package queue provides the Redis-backed session priority queue.
package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/findable/query-runner/internal/logger"
	"github.com/findable/query-runner/internal/models"
)

const (
	pendingKey  = "findable:query_sessions"
	inFlightKey = "findable:processing_sessions"
)

// ErrQueueEmpty is returned by DequeueHighest when no session is pending.
var ErrQueueEmpty = errors.New("queue is empty")

// SessionQueue is a priority queue of session ids backed by a Redis sorted
// set, with a parallel in-flight set tracking claimed sessions. Dequeue is
// atomic (ZPOPMAX), which is the sole mutual-exclusion mechanism between
// concurrent workers.
type SessionQueue struct {
	client redis.UniversalClient
	logger logger.Logger
}

// NewSessionQueue creates a queue over an existing Redis client.
func NewSessionQueue(client redis.UniversalClient, log logger.Logger) *SessionQueue {
	return &SessionQueue{
		client: client,
		logger: log,
	}
}

// Enqueue adds a session to the queue with the weight of its priority tier.
// Re-enqueuing an id updates its weight rather than duplicating the entry.
func (q *SessionQueue) Enqueue(ctx context.Context, sessionID string, priority models.Priority) error {
	weight := priority.Weight()
	err := q.client.ZAdd(ctx, pendingKey, redis.Z{
		Score:  weight,
		Member: sessionID,
	}).Err()
	if err != nil {
		return fmt.Errorf("enqueue session %s: %w", sessionID, err)
	}

	q.logger.Info("session enqueued",
		logger.String("session_id", sessionID),
		logger.String("priority", string(priority)),
		logger.Float64("weight", weight),
	)
	return nil
}

// DequeueHighest atomically removes and returns the highest-weight session
// id, recording it in the in-flight set. Returns ErrQueueEmpty when no
// session is pending.
func (q *SessionQueue) DequeueHighest(ctx context.Context) (string, error) {
	popped, err := q.client.ZPopMax(ctx, pendingKey, 1).Result()
	if err != nil {
		return "", fmt.Errorf("dequeue session: %w", err)
	}
	if len(popped) == 0 {
		return "", ErrQueueEmpty
	}

	sessionID, ok := popped[0].Member.(string)
	if !ok {
		return "", fmt.Errorf("dequeue session: unexpected member type %T", popped[0].Member)
	}

	if err := q.client.SAdd(ctx, inFlightKey, sessionID).Err(); err != nil {
		return "", fmt.Errorf("mark session %s in-flight: %w", sessionID, err)
	}

	q.logger.Debug("session dequeued",
		logger.String("session_id", sessionID),
		logger.Float64("weight", popped[0].Score),
	)
	return sessionID, nil
}

// MarkDone removes a completed session from the in-flight set.
func (q *SessionQueue) MarkDone(ctx context.Context, sessionID string) error {
	if err := q.client.SRem(ctx, inFlightKey, sessionID).Err(); err != nil {
		return fmt.Errorf("mark session %s done: %w", sessionID, err)
	}
	return nil
}

// MarkFailed removes a failed session from the in-flight set. No re-queue is
// performed; failure is terminal from the queue's perspective.
func (q *SessionQueue) MarkFailed(ctx context.Context, sessionID string) error {
	if err := q.client.SRem(ctx, inFlightKey, sessionID).Err(); err != nil {
		return fmt.Errorf("mark session %s failed: %w", sessionID, err)
	}
	return nil
}

// Stats returns approximate pending and in-flight counts.
func (q *SessionQueue) Stats(ctx context.Context) (*models.QueueStats, error) {
	pending, err := q.client.ZCard(ctx, pendingKey).Result()
	if err != nil {
		return nil, fmt.Errorf("count pending sessions: %w", err)
	}
	inFlight, err := q.client.SCard(ctx, inFlightKey).Result()
	if err != nil {
		return nil, fmt.Errorf("count in-flight sessions: %w", err)
	}
	return &models.QueueStats{
		Pending:  pending,
		InFlight: inFlight,
	}, nil
}

// HealthCheck reports whether Redis is reachable.
func (q *SessionQueue) HealthCheck(ctx context.Context) error {
	if err := q.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
