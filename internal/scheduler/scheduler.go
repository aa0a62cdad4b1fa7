// Package scheduler drives sessions through their lifecycle: it polls the
// priority queue, loads session state, fans queries out to the executor, and
// reports terminal status.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/findable/query-runner/internal/logger"
	"github.com/findable/query-runner/internal/metrics"
	"github.com/findable/query-runner/internal/models"
	"github.com/findable/query-runner/internal/queue"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultErrorBackoff = 10 * time.Second
)

// SessionStore is the session bookkeeping surface the scheduler needs.
type SessionStore interface {
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	UpdateSessionStatus(ctx context.Context, sessionID string, status models.SessionStatus, errorMessage *string) error
	GetProjectContext(ctx context.Context, projectID string) (*models.ProjectContext, error)
}

// SessionQueue is the priority-queue surface the scheduler needs. Dequeue
// atomicity is the only coordination between concurrent scheduler instances.
type SessionQueue interface {
	DequeueHighest(ctx context.Context) (string, error)
	MarkDone(ctx context.Context, sessionID string) error
	MarkFailed(ctx context.Context, sessionID string) error
	Stats(ctx context.Context) (*models.QueueStats, error)
}

// QueryRunner executes one query's fan-out and reports how many run results
// were persisted.
type QueryRunner interface {
	RunQuery(ctx context.Context, session *models.Session, project *models.ProjectContext, queryText string, modelNames []string, runCount int) int
}

// Scheduler polls the session queue and processes sessions one at a time.
// Multiple instances may run against the same queue.
type Scheduler struct {
	store   SessionStore
	queue   SessionQueue
	runner  QueryRunner
	metrics *metrics.Metrics
	logger  logger.Logger

	pollInterval time.Duration
	errorBackoff time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup
	started  bool
	mu       sync.Mutex
}

// Config holds scheduler timing options.
type Config struct {
	PollInterval time.Duration // Idle wait when the queue is empty
	ErrorBackoff time.Duration // Wait after an unexpected loop error
}

// Options configures a Scheduler.
type Options struct {
	Store   SessionStore
	Queue   SessionQueue
	Runner  QueryRunner
	Metrics *metrics.Metrics
	Logger  logger.Logger
	Config  Config
}

// New creates a scheduler.
func New(opts Options) *Scheduler {
	cfg := opts.Config
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = defaultErrorBackoff
	}

	return &Scheduler{
		store:        opts.Store,
		queue:        opts.Queue,
		runner:       opts.Runner,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		pollInterval: cfg.PollInterval,
		errorBackoff: cfg.ErrorBackoff,
		stopChan:     make(chan struct{}),
	}
}

// Start begins the polling loop in a background goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info("session scheduler started",
		logger.Duration("poll_interval", s.pollInterval))
}

// Stop gracefully stops the scheduler and waits for the current session to
// finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	close(s.stopChan)
	s.wg.Wait()
	s.logger.Info("session scheduler stopped")
}

// IsRunning returns whether the scheduler loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		wait := s.pollOnce(ctx)
		if wait <= 0 {
			continue
		}

		select {
		case <-time.After(wait):
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// pollOnce dequeues and processes at most one session. It returns how long
// the loop should wait before polling again: zero to poll immediately, the
// idle interval when the queue is empty, and the error backoff after an
// unexpected failure.
func (s *Scheduler) pollOnce(ctx context.Context) time.Duration {
	s.refreshQueueGauges(ctx)

	sessionID, err := s.queue.DequeueHighest(ctx)
	if err != nil {
		if errors.Is(err, queue.ErrQueueEmpty) {
			return s.pollInterval
		}
		s.logger.Error("failed to dequeue session", logger.Error(err))
		return s.errorBackoff
	}

	if err := s.Process(ctx, sessionID); err != nil {
		// Process handles its own bookkeeping; the loop only logs and keeps
		// polling. A session failure never stops the worker.
		s.logger.Error("session processing failed",
			logger.String("session_id", sessionID),
			logger.Error(err),
		)
	}
	return 0
}

// Process drives one session through the state machine:
// RUNNING -> every query fanned out -> COMPLETED, or FAILED when session
// bookkeeping breaks. Attempt-level failures never fail the session.
// Callable from the polling loop or directly on demand.
func (s *Scheduler) Process(ctx context.Context, sessionID string) error {
	start := time.Now()

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		// Queue membership without a session row is a non-fatal integrity
		// gap; release the claim and keep polling.
		s.markQueueFailed(ctx, sessionID)
		return fmt.Errorf("load session %s: %w", sessionID, err)
	}

	if session.Status.IsTerminal() {
		s.markQueueDone(ctx, sessionID)
		return fmt.Errorf("session %s is %s: %w", sessionID, session.Status, models.ErrSessionTerminal)
	}

	if err := s.store.UpdateSessionStatus(ctx, sessionID, models.StatusRunning, nil); err != nil {
		s.markQueueFailed(ctx, sessionID)
		return fmt.Errorf("mark session %s running: %w", sessionID, err)
	}

	project, err := s.loadProjectContext(ctx, session)
	if err != nil {
		s.failSession(ctx, sessionID, err)
		return err
	}

	meta := session.Metadata
	s.logger.Info("processing session",
		logger.String("session_id", sessionID),
		logger.String("project_id", session.ProjectID),
		logger.Int("queries", len(meta.Queries)),
		logger.Strings("models", meta.Models),
		logger.Int("run_count", meta.RunCount),
	)

	// Queries run sequentially; fan-out within one query is bounded by the
	// executor's parallelism.
	totalResults := 0
	for _, queryText := range meta.Queries {
		totalResults += s.runner.RunQuery(ctx, session, project, queryText, meta.Models, meta.RunCount)
	}

	if err := s.store.UpdateSessionStatus(ctx, sessionID, models.StatusCompleted, nil); err != nil {
		s.failSession(ctx, sessionID, err)
		return fmt.Errorf("mark session %s completed: %w", sessionID, err)
	}
	s.markQueueDone(ctx, sessionID)

	elapsed := time.Since(start)
	if s.metrics != nil {
		s.metrics.SessionsProcessedTotal.WithLabelValues(string(models.StatusCompleted)).Inc()
		s.metrics.SessionDurationSeconds.Observe(elapsed.Seconds())
	}

	s.logger.Info("session completed",
		logger.String("session_id", sessionID),
		logger.Int("run_results", totalResults),
		logger.Duration("elapsed", elapsed),
	)
	return nil
}

// loadProjectContext loads the project snapshot, substituting the default
// placeholder when the project is simply absent. Store failures beyond
// absence are fatal to the session.
func (s *Scheduler) loadProjectContext(ctx context.Context, session *models.Session) (*models.ProjectContext, error) {
	project, err := s.store.GetProjectContext(ctx, session.ProjectID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Warn("project context missing, using placeholder",
				logger.String("session_id", session.ID),
				logger.String("project_id", session.ProjectID),
			)
			return models.DefaultProjectContext(session.ProjectID), nil
		}
		return nil, fmt.Errorf("load project context %s: %w", session.ProjectID, err)
	}
	return project, nil
}

// failSession records a FAILED terminal state with the error message.
func (s *Scheduler) failSession(ctx context.Context, sessionID string, cause error) {
	message := cause.Error()
	if err := s.store.UpdateSessionStatus(ctx, sessionID, models.StatusFailed, &message); err != nil {
		s.logger.Error("failed to mark session failed",
			logger.String("session_id", sessionID),
			logger.Error(err),
		)
	}
	s.markQueueFailed(ctx, sessionID)

	if s.metrics != nil {
		s.metrics.SessionsProcessedTotal.WithLabelValues(string(models.StatusFailed)).Inc()
	}
}

// refreshQueueGauges publishes approximate queue depth. Failures are
// ignored; gauges are observability, not state.
func (s *Scheduler) refreshQueueGauges(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	stats, err := s.queue.Stats(ctx)
	if err != nil {
		return
	}
	s.metrics.QueuePending.Set(float64(stats.Pending))
	s.metrics.QueueInFlight.Set(float64(stats.InFlight))
}

func (s *Scheduler) markQueueDone(ctx context.Context, sessionID string) {
	if err := s.queue.MarkDone(ctx, sessionID); err != nil {
		s.logger.Warn("failed to clear in-flight marker",
			logger.String("session_id", sessionID),
			logger.Error(err),
		)
	}
}

func (s *Scheduler) markQueueFailed(ctx context.Context, sessionID string) {
	if err := s.queue.MarkFailed(ctx, sessionID); err != nil {
		s.logger.Warn("failed to clear in-flight marker",
			logger.String("session_id", sessionID),
			logger.Error(err),
		)
	}
}
