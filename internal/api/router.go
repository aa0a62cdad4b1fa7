// Package api exposes the runner's HTTP surface: session queueing and
// on-demand processing, queue statistics, model listing, health, and metrics.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/findable/query-runner/internal/config"
	"github.com/findable/query-runner/internal/logger"
	"github.com/findable/query-runner/internal/models"
)

const (
	defaultReadTimeout  = 30 * time.Second
	defaultWriteTimeout = 60 * time.Second
	defaultIdleTimeout  = 120 * time.Second
	healthCheckTimeout  = 2 * time.Second

	healthStatusHealthy  = "healthy"
	healthStatusDegraded = "degraded"
	serviceName          = "query-runner"
	serviceVersion       = "1.0.0"
)

// SessionStore is the session bookkeeping surface the API reads from.
type SessionStore interface {
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	Ping(ctx context.Context) error
}

// SessionQueue is the queue surface the API drives.
type SessionQueue interface {
	Enqueue(ctx context.Context, sessionID string, priority models.Priority) error
	Stats(ctx context.Context) (*models.QueueStats, error)
	HealthCheck(ctx context.Context) error
}

// Processor runs a single session to completion, bypassing the queue.
type Processor interface {
	Process(ctx context.Context, sessionID string) error
}

// ModelLister reports the configured model names.
type ModelLister interface {
	Models() []string
}

// Router holds the API dependencies.
type Router struct {
	store     SessionStore
	queue     SessionQueue
	processor Processor
	registry  ModelLister
	gatherer  prometheus.Gatherer
	cfg       *config.Config
	logger    logger.Logger
}

// NewRouter creates a new API router.
func NewRouter(
	store SessionStore,
	queue SessionQueue,
	processor Processor,
	registry ModelLister,
	gatherer prometheus.Gatherer,
	cfg *config.Config,
	log logger.Logger,
) *Router {
	return &Router{
		store:     store,
		queue:     queue,
		processor: processor,
		registry:  registry,
		gatherer:  gatherer,
		cfg:       cfg,
		logger:    log,
	}
}

// SetupRoutes builds the gin engine with middleware and all routes attached.
func (r *Router) SetupRoutes() *gin.Engine {
	if !r.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// Public routes
	router.GET("/health", r.healthCheck)
	if r.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")

	sessions := v1.Group("/sessions")
	sessions.POST("/queue", r.queueSession)
	sessions.POST("/:id/process", r.processSession)
	sessions.GET("/:id/status", r.getSessionStatus)

	v1.GET("/queue/stats", r.getQueueStats)
	v1.GET("/models", r.listModels)

	return router
}

// NewServer wraps the configured routes in an http.Server.
func (r *Router) NewServer() *http.Server {
	return &http.Server{
		Addr:         r.cfg.Server.Address,
		Handler:      r.SetupRoutes(),
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}
}

// healthCheck reports service health, degrading when the database or Redis
// is unreachable.
func (r *Router) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	health := gin.H{
		"status":  healthStatusHealthy,
		"service": serviceName,
		"version": serviceVersion,
	}

	dbConnected := true
	if err := r.store.Ping(ctx); err != nil {
		dbConnected = false
		health["status"] = healthStatusDegraded
	}
	health["database"] = gin.H{"connected": dbConnected}

	redisConnected := true
	redisHealth := gin.H{}
	if err := r.queue.HealthCheck(ctx); err != nil {
		redisConnected = false
		redisHealth["error"] = err.Error()
		health["status"] = healthStatusDegraded
	}
	redisHealth["connected"] = redisConnected
	health["redis"] = redisHealth

	c.JSON(http.StatusOK, health)
}
