package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findable/query-runner/internal/aiclient"
	"github.com/findable/query-runner/internal/database"
	"github.com/findable/query-runner/internal/logger"
	"github.com/findable/query-runner/internal/models"
)

type fakeClient struct {
	name     string
	response string
	err      error
}

func (c *fakeClient) Query(ctx context.Context, prompt string, temperature float64) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return c.response, nil
}

func (c *fakeClient) Name() string { return c.name }

type fakeRegistry struct {
	clients map[string]aiclient.Client
}

func (r *fakeRegistry) Get(model string) (aiclient.Client, bool) {
	c, ok := r.clients[model]
	return c, ok
}

func (r *fakeRegistry) Temperature(model string) float64 { return 0.7 }

type fakeStore struct {
	mu      sync.Mutex
	saved   []*database.RunResultParams
	saveErr error
}

func (s *fakeStore) SaveRunResult(ctx context.Context, params *database.RunResultParams) (*models.RunResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	s.saved = append(s.saved, params)
	return &models.RunResult{}, nil
}

func (s *fakeStore) results() []*database.RunResultParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*database.RunResultParams(nil), s.saved...)
}

type fakeMarket struct {
	ctx *models.MarketContext
	err error
}

func (m *fakeMarket) Analyze(ctx context.Context, query string, project *models.ProjectContext) (*models.MarketContext, error) {
	return m.ctx, m.err
}

func testSession() *models.Session {
	return &models.Session{
		ID:        "sess-1",
		ProjectID: "proj-1",
		Status:    models.StatusRunning,
	}
}

func execProject() *models.ProjectContext {
	return &models.ProjectContext{
		ID:          "proj-1",
		Name:        "Acme Notes",
		Domain:      "acme.com",
		Competitors: []string{"notion.so"},
	}
}

func TestRunQueryFansOutModelsAndRuns(t *testing.T) {
	store := &fakeStore{}
	registry := &fakeRegistry{clients: map[string]aiclient.Client{
		"gpt-4":  &fakeClient{name: "gpt-4", response: "Acme is solid."},
		"claude": &fakeClient{name: "claude", response: "Try Notion instead."},
	}}

	f := NewFanOut(Options{
		Store:       store,
		Registry:    registry,
		Logger:      logger.NewNopLogger(),
		Parallelism: 2,
	})

	persisted := f.RunQuery(context.Background(), testSession(), execProject(), "best note apps",
		[]string{"gpt-4", "claude"}, 3)

	assert.Equal(t, 6, persisted)
	assert.Len(t, store.results(), 6)

	byModel := map[string]int{}
	for _, r := range store.results() {
		byModel[r.ModelName]++
		assert.Equal(t, "sess-1", r.SessionID)
		assert.Equal(t, "best note apps", r.QueryText)
	}
	assert.Equal(t, 3, byModel["gpt-4"])
	assert.Equal(t, 3, byModel["claude"])
}

func TestRunQueryFailingModelIsIsolated(t *testing.T) {
	store := &fakeStore{}
	registry := &fakeRegistry{clients: map[string]aiclient.Client{
		"good": &fakeClient{name: "good", response: "A helpful answer."},
		"bad":  &fakeClient{name: "bad", err: errors.New("provider down")},
	}}

	f := NewFanOut(Options{
		Store:       store,
		Registry:    registry,
		Logger:      logger.NewNopLogger(),
		Parallelism: 2,
	})

	persisted := f.RunQuery(context.Background(), testSession(), execProject(), "q",
		[]string{"good", "bad"}, 2)

	assert.Equal(t, 2, persisted)
	for _, r := range store.results() {
		assert.Equal(t, "good", r.ModelName)
	}
}

func TestRunQuerySkipsUnconfiguredModels(t *testing.T) {
	store := &fakeStore{}
	registry := &fakeRegistry{clients: map[string]aiclient.Client{
		"gpt-4": &fakeClient{name: "gpt-4", response: "ok then"},
	}}

	f := NewFanOut(Options{
		Store:    store,
		Registry: registry,
		Logger:   logger.NewNopLogger(),
	})

	persisted := f.RunQuery(context.Background(), testSession(), execProject(), "q",
		[]string{"gpt-4", "ghost-model"}, 1)

	assert.Equal(t, 1, persisted)
}

func TestRunQueryNoConfiguredModels(t *testing.T) {
	f := NewFanOut(Options{
		Store:    &fakeStore{},
		Registry: &fakeRegistry{clients: map[string]aiclient.Client{}},
		Logger:   logger.NewNopLogger(),
	})

	persisted := f.RunQuery(context.Background(), testSession(), execProject(), "q",
		[]string{"ghost"}, 2)

	assert.Zero(t, persisted)
}

func TestRunQueryPersistErrorCountsAsFailure(t *testing.T) {
	store := &fakeStore{saveErr: errors.New("db unavailable")}
	registry := &fakeRegistry{clients: map[string]aiclient.Client{
		"gpt-4": &fakeClient{name: "gpt-4", response: "fine answer"},
	}}

	f := NewFanOut(Options{
		Store:    store,
		Registry: registry,
		Logger:   logger.NewNopLogger(),
	})

	persisted := f.RunQuery(context.Background(), testSession(), execProject(), "q",
		[]string{"gpt-4"}, 2)

	assert.Zero(t, persisted)
}

func TestRunQueryMarketFailureTolerated(t *testing.T) {
	store := &fakeStore{}
	registry := &fakeRegistry{clients: map[string]aiclient.Client{
		"gpt-4": &fakeClient{name: "gpt-4", response: "an answer"},
	}}

	f := NewFanOut(Options{
		Store:    store,
		Registry: registry,
		Market:   &fakeMarket{err: errors.New("scrape blocked")},
		Logger:   logger.NewNopLogger(),
	})

	persisted := f.RunQuery(context.Background(), testSession(), execProject(), "q",
		[]string{"gpt-4"}, 1)

	assert.Equal(t, 1, persisted)
}

func TestRunQueryDefaultsRunCount(t *testing.T) {
	store := &fakeStore{}
	registry := &fakeRegistry{clients: map[string]aiclient.Client{
		"gpt-4": &fakeClient{name: "gpt-4", response: "an answer"},
	}}

	f := NewFanOut(Options{
		Store:    store,
		Registry: registry,
		Logger:   logger.NewNopLogger(),
	})

	persisted := f.RunQuery(context.Background(), testSession(), execProject(), "q",
		[]string{"gpt-4"}, 0)

	assert.Equal(t, 1, persisted)
}

func TestRunQueryExtractsSignals(t *testing.T) {
	store := &fakeStore{}
	registry := &fakeRegistry{clients: map[string]aiclient.Client{
		"gpt-4": &fakeClient{
			name:     "gpt-4",
			response: "I recommend Acme for notes. See https://acme.com/docs for details. Notion is another option.",
		},
	}}

	f := NewFanOut(Options{
		Store:    store,
		Registry: registry,
		Logger:   logger.NewNopLogger(),
	})

	persisted := f.RunQuery(context.Background(), testSession(), execProject(), "best note apps",
		[]string{"gpt-4"}, 1)

	require.Equal(t, 1, persisted)
	result := store.results()[0]

	assert.Contains(t, result.Citations, "https://acme.com/docs")
	assert.Contains(t, result.Mentions, "Acme")
	assert.Contains(t, result.Mentions, "Notion")
	assert.GreaterOrEqual(t, result.ExecutionTimeMs, int64(0))
}

func TestRunQueryBoundedParallelism(t *testing.T) {
	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0

	blocker := make(chan struct{})
	clients := map[string]aiclient.Client{}
	for i := 0; i < 4; i++ {
		clients[fmt.Sprintf("m%d", i)] = &trackingClient{
			onQuery: func() {
				mu.Lock()
				inFlight++
				if inFlight > maxInFlight {
					maxInFlight = inFlight
				}
				mu.Unlock()

				<-blocker

				mu.Lock()
				inFlight--
				mu.Unlock()
			},
		}
	}

	f := NewFanOut(Options{
		Store:       &fakeStore{},
		Registry:    &fakeRegistry{clients: clients},
		Logger:      logger.NewNopLogger(),
		Parallelism: 2,
	})

	done := make(chan int, 1)
	go func() {
		done <- f.RunQuery(context.Background(), testSession(), execProject(), "q",
			[]string{"m0", "m1", "m2", "m3"}, 1)
	}()

	close(blocker)
	persisted := <-done

	assert.Equal(t, 4, persisted)
	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, maxInFlight, 2)
}

type trackingClient struct {
	onQuery func()
}

func (c *trackingClient) Query(ctx context.Context, prompt string, temperature float64) (string, error) {
	c.onQuery()
	return "tracked response", nil
}

func (c *trackingClient) Name() string { return "tracking" }
