// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/xpoints/internal/adapters/jobs"
	"github.com/okian/xpoints/internal/adapters/mq/queue"
	"github.com/okian/xpoints/internal/adapters/repository"
	"github.com/okian/xpoints/internal/domain/dedupe"
	"github.com/okian/xpoints/internal/domain/leaderboard"
	"github.com/okian/xpoints/internal/domain/types"
	"github.com/okian/xpoints/pkg/logger"
	"github.com/okian/xpoints/pkg/metrics"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Recalculate runs a recalculation in the caller's goroutine.
	Recalculate(ctx context.Context, req types.RecalculateRequest) (*types.Summary, error)

	// Submit records a job and queues it for the worker pool.
	Submit(ctx context.Context, req types.RecalculateRequest) (types.Job, error)

	// Job returns the status of a submitted job.
	Job(ctx context.Context, id string) (types.Job, error)

	// Leaderboard returns the full table of the last run over a dataset.
	Leaderboard(ctx context.Context, userID, dataset string) (*leaderboard.Table, error)

	// Ready reports whether backing stores are reachable.
	Ready(ctx context.Context) error
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	recalcHandler      *RecalculateHandler
	jobsHandler        *JobsHandler
	leaderboardHandler *LeaderboardHandler
	limiter            *RateLimiter
	logger             logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		healthHandler:      NewHealthHandler(deps),
		statsHandler:       NewStatsHandler(statsProvider),
		recalcHandler:      NewRecalculateHandler(deps, cfg.logger),
		jobsHandler:        NewJobsHandler(deps, cfg.logger),
		leaderboardHandler: NewLeaderboardHandler(deps, cfg.maxLimit, cfg.logger),
		limiter:            NewRateLimiter(cfg.rps, cfg.burst),
		logger:             cfg.logger,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	wrap := func(h http.HandlerFunc, endpoint string) http.HandlerFunc {
		return RecoverMiddleware(MetricsMiddleware(h, endpoint), s.logger)
	}
	mux.HandleFunc("/healthz", wrap(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("/metrics", s.healthHandler.MetricsHandler())
	mux.HandleFunc("/stats", wrap(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /v1/xpoints/recalculate", wrap(s.limiter.Limit(s.recalcHandler.HandleRecalculate), "recalculate"))
	mux.HandleFunc("POST /v1/jobs", wrap(s.limiter.Limit(s.jobsHandler.HandleSubmit), "jobs_submit"))
	mux.HandleFunc("GET /v1/jobs/{id}", wrap(s.jobsHandler.HandleGet, "jobs_get"))
	mux.HandleFunc("GET /v1/leaderboard", wrap(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError maps domain and adapter errors to a status and code.
// Errors with no mapping are logged and answered with a 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, log logger.Logger, err error) {
	switch {
	case errors.Is(err, types.ErrInvalidRequest), errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, dedupe.ErrInFlight):
		writeError(w, http.StatusConflict, "in_flight", err)
	case errors.Is(err, dedupe.ErrCapacity), errors.Is(err, queue.ErrFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, queue.ErrClosed), errors.Is(err, repository.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	case errors.Is(err, jobs.ErrNotFound), errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", err)
	default:
		log.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("method", r.Method),
			logger.Error(err),
		)
		metrics.RecordErrorByComponent("api", "internal_error")
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
