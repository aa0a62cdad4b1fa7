// Package app wires the query runner's components together and manages the
// process lifecycle for both the worker and API binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/findable/query-runner/internal/aiclient"
	"github.com/findable/query-runner/internal/api"
	"github.com/findable/query-runner/internal/config"
	"github.com/findable/query-runner/internal/database"
	"github.com/findable/query-runner/internal/executor"
	"github.com/findable/query-runner/internal/logger"
	"github.com/findable/query-runner/internal/market"
	"github.com/findable/query-runner/internal/metrics"
	"github.com/findable/query-runner/internal/queue"
	redisclient "github.com/findable/query-runner/internal/redis"
	"github.com/findable/query-runner/internal/scheduler"

	goredis "github.com/redis/go-redis/v9"
)

// DefaultShutdownTimeout bounds graceful HTTP server shutdown.
const DefaultShutdownTimeout = 30 * time.Second

// Options contains configuration for creating a new App.
type Options struct {
	ConfigPath string
	Version    string
	RunWorker  bool // Start the session scheduler loop
	RunAPI     bool // Start the HTTP server
}

// App represents the query runner with all its dependencies.
type App struct {
	config      *config.Config
	logger      logger.Logger
	redisClient *goredis.Client
	db          *sqlx.DB
	store       *database.Store
	queue       *queue.SessionQueue
	registry    *aiclient.Registry
	metrics     *metrics.Metrics
	promReg     *prometheus.Registry
	scheduler   *scheduler.Scheduler
	httpServer  *http.Server
	opts        Options
}

// New creates a new App instance with all dependencies initialized.
func New(opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	appLogger, err := logger.NewLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	appLogger = appLogger.With(
		logger.String("service", "query-runner"),
		logger.String("version", opts.Version),
	)

	redisClient, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		_ = appLogger.Sync()
		return nil, fmt.Errorf("connect to Redis: %w", err)
	}

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		_ = redisClient.Close()
		_ = appLogger.Sync()
		return nil, fmt.Errorf("connect to PostgreSQL: %w", err)
	}

	registry, err := aiclient.NewRegistry(cfg, appLogger)
	if err != nil {
		_ = db.Close()
		_ = redisClient.Close()
		_ = appLogger.Sync()
		return nil, fmt.Errorf("build model registry: %w", err)
	}

	promReg := prometheus.NewRegistry()
	runnerMetrics := metrics.NewMetrics(promReg)

	store := database.NewStore(db)
	sessionQueue := queue.NewSessionQueue(redisClient, appLogger)

	var marketProvider market.Provider
	if cfg.Market.Enabled {
		marketProvider = market.NewSERPAnalyzer(market.SERPOptions{
			MaxResults: cfg.Market.MaxResults,
			Timeout:    cfg.Market.Timeout,
		}, appLogger)
	}

	fanOut := executor.NewFanOut(executor.Options{
		Store:       store,
		Registry:    registry,
		Market:      marketProvider,
		Metrics:     runnerMetrics,
		Logger:      appLogger,
		Parallelism: cfg.Executor.Parallelism,
	})

	sched := scheduler.New(scheduler.Options{
		Store:   store,
		Queue:   sessionQueue,
		Runner:  fanOut,
		Metrics: runnerMetrics,
		Logger:  appLogger,
		Config: scheduler.Config{
			PollInterval: cfg.Scheduler.PollInterval,
			ErrorBackoff: cfg.Scheduler.ErrorBackoff,
		},
	})

	a := &App{
		config:      cfg,
		logger:      appLogger,
		redisClient: redisClient,
		db:          db,
		store:       store,
		queue:       sessionQueue,
		registry:    registry,
		metrics:     runnerMetrics,
		promReg:     promReg,
		scheduler:   sched,
		opts:        opts,
	}

	if opts.RunAPI {
		router := api.NewRouter(store, sessionQueue, sched, registry, promReg, cfg, appLogger)
		a.httpServer = router.NewServer()
	}

	return a, nil
}

// Run starts the enabled components and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()

	if a.opts.RunWorker {
		a.scheduler.Start(workerCtx)
	}

	serverErr := make(chan error, 1)
	if a.httpServer != nil {
		go func() {
			a.logger.Info("HTTP server listening",
				logger.String("address", a.config.Server.Address))
			if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	return a.waitForShutdown(workerCancel, serverErr)
}

// waitForShutdown blocks until a signal arrives or the HTTP server fails,
// then stops components in order.
func (a *App) waitForShutdown(workerCancel context.CancelFunc, serverErr chan error) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var shutdownErr error

	select {
	case sig := <-sigChan:
		a.logger.Info("Shutting down gracefully",
			logger.String("signal", sig.String()))

	case err := <-serverErr:
		a.logger.Error("HTTP server error", logger.Error(err))
		shutdownErr = err
	}

	workerCancel()
	if a.opts.RunWorker {
		a.scheduler.Stop()
	}
	a.shutdownHTTPServer()

	a.logger.Info("Service stopped")
	return shutdownErr
}

// shutdownHTTPServer gracefully shuts down the HTTP server.
func (a *App) shutdownHTTPServer() {
	if a.httpServer == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("Server shutdown error", logger.Error(err))
	} else {
		a.logger.Info("HTTP server stopped")
	}
}

// Close cleans up resources.
func (a *App) Close() error {
	if a.db != nil {
		if err := database.Close(a.db); err != nil {
			a.logger.Warn("Failed to close database connection", logger.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("Failed to close Redis client", logger.Error(err))
		}
	}
	return a.logger.Sync()
}

// Logger returns the application logger.
func (a *App) Logger() logger.Logger {
	return a.logger
}
