package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/taskprogress/internal/metrics"
	"github.com/JakeFAU/taskprogress/internal/pipeline"
	"github.com/JakeFAU/taskprogress/internal/progress/listeners"
	"github.com/JakeFAU/taskprogress/internal/store"
)

const (
	maxBuildUnits  = 1000
	enqueueTimeout = 5 * time.Second
)

// TaskSnapshotter reports the live task stacks.
type TaskSnapshotter interface {
	Snapshot() []listeners.StackSnapshot
}

// BuildSubmitter queues a build for the coordinating goroutine.
type BuildSubmitter interface {
	Submit(ctx context.Context, req pipeline.Request) (pipeline.Request, error)
}

// Deps lists the collaborators behind the HTTP routes. Nil members turn their
// routes into 503 responses.
type Deps struct {
	Runs     store.RunRepository
	Tasks    TaskSnapshotter
	Builds   BuildSubmitter
	Gatherer prometheus.Gatherer
	Metrics  *metrics.HTTP
	Logger   *zap.Logger
	// RequestTimeout bounds each request; zero means 60s.
	RequestTimeout time.Duration
}

// Server wires HTTP handlers to the task snapshot, run history, and build queue.
type Server struct {
	router chi.Router
	tasks  TaskSnapshotter
	builds BuildSubmitter
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	s := &Server{
		tasks:  deps.Tasks,
		builds: deps.Builds,
		logger: logger,
	}
	runs := NewRunsHandler(deps.Runs, logger)

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}
	r.Use(timeoutMiddleware(timeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/tasks", s.listTasks)
		r.Get("/runs", runs.ListRuns)
		r.Get("/runs/{run_id}", runs.GetRun)
		r.Post("/builds", s.submitBuild)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.builds == nil {
		writeError(w, http.StatusServiceUnavailable, "build runner unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listTasks(w http.ResponseWriter, _ *http.Request) {
	if s.tasks == nil {
		writeError(w, http.StatusServiceUnavailable, "task snapshot unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stacks": s.tasks.Snapshot()})
}

type buildRequest struct {
	Name  string `json:"name"`
	Units int    `json:"units"`
}

func (s *Server) submitBuild(w http.ResponseWriter, r *http.Request) {
	if s.builds == nil {
		writeError(w, http.StatusServiceUnavailable, "build runner unavailable")
		return
	}
	var req buildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Units < 0 || req.Units > maxBuildUnits {
		writeError(w, http.StatusBadRequest, "units must be between 0 and 1000")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), enqueueTimeout)
	defer cancel()
	queued, err := s.builds.Submit(ctx, pipeline.Request{Name: req.Name, Units: req.Units})
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, pipeline.ErrQueueClosed):
			status = http.StatusServiceUnavailable
		}
		s.logger.Warn("build submit failed", zap.String("request_id", RequestID(r.Context())), zap.Error(err))
		writeError(w, status, "failed to queue build")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"build_id": queued.ID.String()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
