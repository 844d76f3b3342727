// Package server wires configuration into a running progress daemon: the
// reporter and its listeners, the event hub and sinks, run history storage,
// the build runner, and the HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/JakeFAU/taskprogress/internal/api"
	"github.com/JakeFAU/taskprogress/internal/clock/system"
	"github.com/JakeFAU/taskprogress/internal/config"
	"github.com/JakeFAU/taskprogress/internal/metrics"
	"github.com/JakeFAU/taskprogress/internal/pipeline"
	"github.com/JakeFAU/taskprogress/internal/progress"
	"github.com/JakeFAU/taskprogress/internal/progress/listeners"
	"github.com/JakeFAU/taskprogress/internal/progress/sinks"
	"github.com/JakeFAU/taskprogress/internal/storage/memory"
	pgstore "github.com/JakeFAU/taskprogress/internal/storage/postgres"
	"github.com/JakeFAU/taskprogress/internal/store"
)

const shutdownTimeout = 10 * time.Second

// App contains the application's dependencies.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *prometheus.Registry

	reporter *progress.Reporter
	snapshot *listeners.SnapshotListener
	hub      *progress.Hub

	runs    store.RunRepository
	pgStore *pgstore.RunStore

	pipeline  *pipeline.Pipeline
	queue     *pipeline.Queue
	runner    *pipeline.Runner
	apiServer *api.Server
}

// Build creates the application's dependencies. barOut receives the primary
// stack's progress bar when listeners.bar is enabled; nil disables it.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger, barOut io.Writer) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.Bool("postgres", cfg.DB.DSN != ""),
	)

	if err := app.setupRuns(ctx); err != nil {
		return nil, err
	}
	if err := app.setupHub(ctx); err != nil {
		app.closeStores()
		return nil, err
	}
	app.setupReporter(barOut)

	app.pipeline = pipeline.New(pipeline.Config{
		Workers:    cfg.Pipeline.Workers,
		Units:      cfg.Pipeline.Units,
		NoiseRatio: cfg.Pipeline.NoiseRatio,
		Seed:       cfg.Pipeline.Seed,
	}, logger.Named("pipeline"))
	app.queue = pipeline.NewQueue(cfg.Server.QueueDepth)
	app.runner = pipeline.NewRunner(app.pipeline, app.queue, app.reporter.PrimaryStack(), logger.Named("runner"))

	app.apiServer = api.NewServer(api.Deps{
		Runs:           app.runs,
		Tasks:          app.snapshot,
		Builds:         app.runner,
		Gatherer:       app.registry,
		Metrics:        metrics.NewHTTP(app.registry),
		Logger:         logger.Named("api"),
		RequestTimeout: cfg.Server.RequestTimeout(),
	})
	return app, nil
}

func (a *App) setupRuns(ctx context.Context) error {
	if a.cfg.DB.DSN == "" {
		a.logger.Info("no DSN specified, keeping run history in memory")
		a.runs = memory.NewRunStore()
		return nil
	}
	var err error
	a.pgStore, err = pgstore.NewRunStore(ctx, pgstore.RunStoreConfig{
		DSN:             a.cfg.DB.DSN,
		MaxConns:        a.cfg.DB.MaxConns,
		MinConns:        a.cfg.DB.MinConns,
		MaxConnLifetime: a.cfg.DB.ConnLifetime(),
	})
	if err != nil {
		return fmt.Errorf("run store init failed: %w", err)
	}
	a.runs = a.pgStore
	a.logger.Info("postgres run store initialized")
	return nil
}

func (a *App) setupHub(ctx context.Context) error {
	var sinkList []progress.Sink
	if a.cfg.Listeners.Store {
		sinkList = append(sinkList, sinks.NewStoreSink(a.runs, a.logger.Named("progress_store")))
		a.logger.Debug("added progress store sink")
	}
	if a.cfg.Listeners.Log {
		sinkList = append(sinkList, sinks.NewLogSink(a.logger.Named("progress_log")))
		a.logger.Debug("added progress log sink")
	}
	if a.cfg.Listeners.Metrics {
		promSink, err := sinks.NewPrometheusSink(a.registry)
		if err != nil {
			return fmt.Errorf("prometheus sink init failed: %w", err)
		}
		sinkList = append(sinkList, promSink)
		a.logger.Debug("added progress prometheus sink")
	}
	if len(sinkList) == 0 {
		a.logger.Info("no progress sinks configured")
		return nil
	}
	hubCfg := progress.HubConfig{
		BufferSize:     a.cfg.Hub.BufferSize,
		MaxBatchEvents: a.cfg.Hub.MaxBatchEvents,
		MaxBatchWait:   a.cfg.Hub.MaxBatchWait(),
		SinkTimeout:    a.cfg.Hub.SinkTimeout(),
		BaseContext:    context.WithoutCancel(ctx),
		Logger:         a.logger.Named("progress_hub"),
	}
	a.hub = progress.NewHub(hubCfg, sinkList...)
	a.logger.Info("progress hub initialized",
		zap.Int("sinks", len(sinkList)),
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("max_batch_events", hubCfg.MaxBatchEvents),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
		zap.Duration("sink_timeout", hubCfg.SinkTimeout),
	)
	return nil
}

// setupReporter registers every listener before the first task starts, since
// the reporter refuses registrations after that.
func (a *App) setupReporter(barOut io.Writer) {
	a.reporter = progress.New(progress.WithLogger(a.logger.Named("progress")))
	clock := system.New()

	a.snapshot = listeners.NewSnapshotListener(clock)
	a.reporter.Register(a.snapshot)
	if a.hub != nil {
		a.reporter.Register(progress.NewHubListener(a.hub, clock))
	}
	if a.cfg.Listeners.Bar && barOut != nil {
		a.reporter.Register(listeners.NewBarListener(barOut, a.cfg.Listeners.BarWidth))
	}
	a.logger.Debug("progress reporter ready", zap.Int("listeners", a.reporter.Listeners()))
}

// Handler exposes the HTTP API.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Runs exposes the run history repository.
func (a *App) Runs() store.RunRepository {
	return a.runs
}

// RunBuild executes one build on the calling goroutine, which becomes the
// coordinator driving the primary stack.
func (a *App) RunBuild(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
	ctx = progress.WithStack(ctx, a.reporter.PrimaryStack())
	res, err := a.pipeline.Run(ctx, req)
	if err != nil {
		return res, fmt.Errorf("run build: %w", err)
	}
	return res, nil
}

// Serve starts the build runner and HTTP server and blocks until the context
// is canceled or a termination signal arrives.
func (a *App) Serve(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runnerDone := make(chan struct{})
	go func() {
		defer close(runnerDone)
		a.logger.Info("build runner started")
		a.runner.Run(ctx)
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	<-runnerDone
	return a.Close(shutdownCtx)
}

// Close drains the hub and releases storage.
func (a *App) Close(ctx context.Context) error {
	a.queue.Close()
	var err error
	if a.hub != nil {
		if closeErr := a.hub.Close(ctx); closeErr != nil {
			a.logger.Warn("progress hub close failed", zap.Error(closeErr))
			err = closeErr
		}
	}
	a.closeStores()
	if syncErr := a.logger.Sync(); syncErr != nil {
		a.logger.Debug("logger sync failed", zap.Error(syncErr))
	}
	a.logger.Info("shutdown complete")
	return err
}

func (a *App) closeStores() {
	if a.pgStore != nil {
		a.pgStore.Close()
	}
}
