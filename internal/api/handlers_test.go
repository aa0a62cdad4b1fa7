package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findable/query-runner/internal/config"
	"github.com/findable/query-runner/internal/logger"
	"github.com/findable/query-runner/internal/models"
)

type fakeStore struct {
	sessions map[string]*models.Session
	pingErr  error
}

func (s *fakeStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return session, nil
}

func (s *fakeStore) Ping(ctx context.Context) error { return s.pingErr }

type fakeQueue struct {
	mu        sync.Mutex
	enqueued  map[string]models.Priority
	stats     models.QueueStats
	healthErr error
}

func (q *fakeQueue) Enqueue(ctx context.Context, sessionID string, priority models.Priority) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueued == nil {
		q.enqueued = map[string]models.Priority{}
	}
	q.enqueued[sessionID] = priority
	return nil
}

func (q *fakeQueue) Stats(ctx context.Context) (*models.QueueStats, error) {
	return &q.stats, nil
}

func (q *fakeQueue) HealthCheck(ctx context.Context) error { return q.healthErr }

type fakeProcessor struct {
	mu        sync.Mutex
	processed []string
	done      chan struct{}
}

func (p *fakeProcessor) Process(ctx context.Context, sessionID string) error {
	p.mu.Lock()
	p.processed = append(p.processed, sessionID)
	p.mu.Unlock()
	if p.done != nil {
		close(p.done)
	}
	return nil
}

type fakeModels struct{ names []string }

func (m *fakeModels) Models() []string { return m.names }

func newTestRouter(store *fakeStore, q *fakeQueue, p *fakeProcessor) *gin.Engine {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.Server.Address = ":0"

	r := NewRouter(store, q, p, &fakeModels{names: []string{"claude-3-sonnet", "gpt-4"}},
		prometheus.NewRegistry(), cfg, logger.NewNopLogger())
	return r.SetupRoutes()
}

func performRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func storeWithSession(id string) *fakeStore {
	return &fakeStore{sessions: map[string]*models.Session{
		id: {ID: id, ProjectID: "proj-1", Status: models.StatusQueued},
	}}
}

func TestQueueSession(t *testing.T) {
	q := &fakeQueue{}
	router := newTestRouter(storeWithSession("sess-1"), q, &fakeProcessor{})

	w := performRequest(router, http.MethodPost, "/api/v1/sessions/queue",
		`{"session_id": "sess-1", "priority": "high"}`)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, models.PriorityHigh, q.enqueued["sess-1"])
}

func TestQueueSessionDefaultPriority(t *testing.T) {
	q := &fakeQueue{}
	router := newTestRouter(storeWithSession("sess-1"), q, &fakeProcessor{})

	w := performRequest(router, http.MethodPost, "/api/v1/sessions/queue",
		`{"session_id": "sess-1"}`)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, models.PriorityNormal, q.enqueued["sess-1"])
}

func TestQueueSessionUnknown(t *testing.T) {
	q := &fakeQueue{}
	router := newTestRouter(&fakeStore{}, q, &fakeProcessor{})

	w := performRequest(router, http.MethodPost, "/api/v1/sessions/queue",
		`{"session_id": "ghost"}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, q.enqueued)
}

func TestQueueSessionValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing session id", `{"priority": "high"}`},
		{"invalid priority", `{"session_id": "s", "priority": "urgent"}`},
		{"malformed JSON", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&fakeStore{}, &fakeQueue{}, &fakeProcessor{})
			w := performRequest(router, http.MethodPost, "/api/v1/sessions/queue", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestProcessSession(t *testing.T) {
	store := &fakeStore{sessions: map[string]*models.Session{
		"sess-1": {ID: "sess-1", ProjectID: "proj-1", Status: models.StatusQueued},
	}}
	processor := &fakeProcessor{done: make(chan struct{})}
	router := newTestRouter(store, &fakeQueue{}, processor)

	w := performRequest(router, http.MethodPost, "/api/v1/sessions/sess-1/process", "")

	assert.Equal(t, http.StatusAccepted, w.Code)

	select {
	case <-processor.done:
	case <-time.After(2 * time.Second):
		t.Fatal("processor was never invoked")
	}

	processor.mu.Lock()
	defer processor.mu.Unlock()
	assert.Equal(t, []string{"sess-1"}, processor.processed)
}

func TestProcessSessionNotFound(t *testing.T) {
	router := newTestRouter(&fakeStore{}, &fakeQueue{}, &fakeProcessor{})

	w := performRequest(router, http.MethodPost, "/api/v1/sessions/ghost/process", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProcessSessionAlreadyFinished(t *testing.T) {
	store := &fakeStore{sessions: map[string]*models.Session{
		"sess-1": {ID: "sess-1", Status: models.StatusCompleted},
	}}
	router := newTestRouter(store, &fakeQueue{}, &fakeProcessor{})

	w := performRequest(router, http.MethodPost, "/api/v1/sessions/sess-1/process", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetSessionStatus(t *testing.T) {
	started := time.Now().UTC()
	message := "provider exploded"
	store := &fakeStore{sessions: map[string]*models.Session{
		"sess-1": {
			ID:           "sess-1",
			ProjectID:    "proj-1",
			Status:       models.StatusFailed,
			StartedAt:    &started,
			ErrorMessage: &message,
		},
	}}
	router := newTestRouter(store, &fakeQueue{}, &fakeProcessor{})

	w := performRequest(router, http.MethodGet, "/api/v1/sessions/sess-1/status", "")

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "sess-1", resp["session_id"])
	assert.Equal(t, "FAILED", resp["status"])
	assert.Equal(t, "provider exploded", resp["error_message"])
}

func TestGetSessionStatusNotFound(t *testing.T) {
	router := newTestRouter(&fakeStore{}, &fakeQueue{}, &fakeProcessor{})

	w := performRequest(router, http.MethodGet, "/api/v1/sessions/ghost/status", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetQueueStats(t *testing.T) {
	q := &fakeQueue{stats: models.QueueStats{Pending: 7, InFlight: 2}}
	router := newTestRouter(&fakeStore{}, q, &fakeProcessor{})

	w := performRequest(router, http.MethodGet, "/api/v1/queue/stats", "")

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]int64
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(7), resp["pending"])
	assert.Equal(t, int64(2), resp["in_flight"])
}

func TestListModels(t *testing.T) {
	router := newTestRouter(&fakeStore{}, &fakeQueue{}, &fakeProcessor{})

	w := performRequest(router, http.MethodGet, "/api/v1/models", "")

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Models []string `json:"models"`
		Count  int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"claude-3-sonnet", "gpt-4"}, resp.Models)
	assert.Equal(t, 2, resp.Count)
}

func TestHealthCheckHealthy(t *testing.T) {
	router := newTestRouter(&fakeStore{}, &fakeQueue{}, &fakeProcessor{})

	w := performRequest(router, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}

func TestHealthCheckDegraded(t *testing.T) {
	store := &fakeStore{pingErr: errors.New("db gone")}
	q := &fakeQueue{healthErr: errors.New("redis gone")}
	router := newTestRouter(store, q, &fakeProcessor{})

	w := performRequest(router, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(&fakeStore{}, &fakeQueue{}, &fakeProcessor{})

	w := performRequest(router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
