// Package executor fans one query out across configured models and repeat
// runs, extracting signals from each response and persisting one run result
// per successful attempt.
package executor

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/findable/query-runner/internal/aiclient"
	"github.com/findable/query-runner/internal/database"
	"github.com/findable/query-runner/internal/extract"
	"github.com/findable/query-runner/internal/logger"
	"github.com/findable/query-runner/internal/market"
	"github.com/findable/query-runner/internal/metrics"
	"github.com/findable/query-runner/internal/models"
	"github.com/findable/query-runner/internal/prompt"
)

// ResultStore persists attempt outcomes.
type ResultStore interface {
	SaveRunResult(ctx context.Context, params *database.RunResultParams) (*models.RunResult, error)
}

// ClientRegistry resolves model identifiers to clients.
type ClientRegistry interface {
	Get(model string) (aiclient.Client, bool)
	Temperature(model string) float64
}

// FanOut executes one query against every (model, run) pair declared by a
// session. Pairs are independent: they share no mutable state besides the
// persistence sink, and run concurrently up to a bounded parallelism.
type FanOut struct {
	store       ResultStore
	registry    ClientRegistry
	builder     *prompt.Builder
	market      market.Provider
	metrics     *metrics.Metrics
	logger      logger.Logger
	parallelism int
}

// Options configures a FanOut executor.
type Options struct {
	Store       ResultStore
	Registry    ClientRegistry
	Market      market.Provider // Nil disables market context
	Metrics     *metrics.Metrics
	Logger      logger.Logger
	Parallelism int
}

// NewFanOut creates a fan-out executor.
func NewFanOut(opts Options) *FanOut {
	if opts.Market == nil {
		opts.Market = market.NopProvider{}
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	return &FanOut{
		store:       opts.Store,
		registry:    opts.Registry,
		builder:     prompt.NewBuilder(),
		market:      opts.Market,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		parallelism: opts.Parallelism,
	}
}

// attempt is one (query, model, run-index) execution unit. It exists only
// for the duration of one fan-out iteration.
type attempt struct {
	model    string
	runIndex int
	client   aiclient.Client
}

// RunQuery executes queryText against every declared model for every
// configured run. Attempt-level failures are logged and isolated; they never
// abort the query. Returns the number of run results persisted.
func (f *FanOut) RunQuery(
	ctx context.Context,
	session *models.Session,
	project *models.ProjectContext,
	queryText string,
	modelNames []string,
	runCount int,
) int {
	if runCount <= 0 {
		runCount = 1
	}

	// Market context is computed once per query and shared by every attempt
	// under it, to bound scraping cost.
	marketCtx := f.analyzeMarket(ctx, queryText, project)

	attempts := f.buildAttempts(modelNames, runCount)
	if len(attempts) == 0 {
		return 0
	}

	var persisted atomic.Int64

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(f.parallelism)

	for _, a := range attempts {
		group.Go(func() error {
			if f.runAttempt(groupCtx, session, project, queryText, marketCtx, a) {
				persisted.Add(1)
			}
			// Attempt failures are isolated; never cancel sibling attempts.
			return nil
		})
	}
	_ = group.Wait()

	return int(persisted.Load())
}

// buildAttempts expands models x runs into attempt units, skipping models
// absent from the configured capability set with a warning.
func (f *FanOut) buildAttempts(modelNames []string, runCount int) []attempt {
	attempts := make([]attempt, 0, len(modelNames)*runCount)
	for _, name := range modelNames {
		client, ok := f.registry.Get(name)
		if !ok {
			f.logger.Warn("model not configured, skipping", logger.String("model", name))
			continue
		}
		for run := 0; run < runCount; run++ {
			attempts = append(attempts, attempt{model: name, runIndex: run, client: client})
		}
	}
	return attempts
}

// analyzeMarket fetches market context, converting any failure to absence.
func (f *FanOut) analyzeMarket(ctx context.Context, queryText string, project *models.ProjectContext) *models.MarketContext {
	marketCtx, err := f.market.Analyze(ctx, queryText, project)
	if err != nil {
		f.logger.Warn("market analysis failed, continuing without context",
			logger.String("query", queryText),
			logger.Error(err),
		)
		return nil
	}
	return marketCtx
}

// runAttempt drives one (model, run) pair: prompt, timed call, extraction,
// mention merge, persistence. Returns true when a run result was persisted.
func (f *FanOut) runAttempt(
	ctx context.Context,
	session *models.Session,
	project *models.ProjectContext,
	queryText string,
	marketCtx *models.MarketContext,
	a attempt,
) bool {
	f.logger.Info("running query attempt",
		logger.String("session_id", session.ID),
		logger.String("model", a.model),
		logger.Int("run", a.runIndex+1),
	)

	composed := f.builder.Build(queryText, project, marketCtx, prompt.VariantFindability)

	start := time.Now()
	responseText, err := a.client.Query(ctx, composed, f.registry.Temperature(a.model))
	elapsed := time.Since(start)

	if f.metrics != nil {
		f.metrics.AttemptDurationSeconds.WithLabelValues(a.model).Observe(elapsed.Seconds())
	}

	if err != nil {
		f.countAttempt(a.model, "error")
		f.logger.Error("model call failed",
			logger.String("session_id", session.ID),
			logger.String("model", a.model),
			logger.Int("run", a.runIndex+1),
			logger.Error(err),
		)
		return false
	}

	parsed := extract.Parse(responseText)
	if parsed.Err != "" {
		// Extraction degraded to empty output; the attempt still counts.
		f.logger.Warn("response extraction degraded",
			logger.String("session_id", session.ID),
			logger.String("model", a.model),
			logger.String("reason", parsed.Err),
		)
	}

	brand := extract.ProjectMentions(responseText, project.Domain, project.Competitors)
	mentions := extract.MergeMentions(parsed.Mentions, brand.Project, brand.Competitors)

	_, err = f.store.SaveRunResult(ctx, &database.RunResultParams{
		SessionID:       session.ID,
		ProjectID:       session.ProjectID,
		QueryText:       queryText,
		ModelName:       a.model,
		ResponseText:    responseText,
		Citations:       parsed.Citations,
		Snippets:        parsed.Snippets,
		Mentions:        mentions,
		ExecutionTimeMs: elapsed.Milliseconds(),
	})
	if err != nil {
		f.countAttempt(a.model, "persist_error")
		f.logger.Error("failed to persist run result",
			logger.String("session_id", session.ID),
			logger.String("model", a.model),
			logger.Int("run", a.runIndex+1),
			logger.Error(err),
		)
		return false
	}

	f.countAttempt(a.model, "success")
	return true
}

func (f *FanOut) countAttempt(model, outcome string) {
	if f.metrics != nil {
		f.metrics.AttemptsTotal.WithLabelValues(model, outcome).Inc()
	}
}
