// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/xpoints/internal/adapters/artifacts"
	"github.com/okian/xpoints/internal/adapters/jobs"
	"github.com/okian/xpoints/internal/adapters/mq/queue"
	workerpool "github.com/okian/xpoints/internal/adapters/mq/worker"
	"github.com/okian/xpoints/internal/adapters/repository"
	"github.com/okian/xpoints/internal/domain/dedupe"
	"github.com/okian/xpoints/internal/domain/engine"
	"github.com/okian/xpoints/internal/domain/leaderboard"
	"github.com/okian/xpoints/internal/domain/types"
	"github.com/okian/xpoints/internal/shotgen"
	"github.com/okian/xpoints/pkg/logger"
	"github.com/okian/xpoints/pkg/metrics"
)

// ErrNotStarted is returned by calls made before Start or after Stop.
var ErrNotStarted = errors.New("service not started")

const prunePeriod = 10 * time.Minute

// Service implements the API dependencies for the expected value engine.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   repository.Store
	jobs    jobs.Store
	guard   dedupe.Guard
	queue   *queue.InMemoryQueue
	cache   *artifacts.Cache
	engine  *engine.Engine
	workers *workerpool.Pool

	// Configuration
	settings    engine.Settings
	workerCount int
	queueSize   int
	maxInFlight int
	cacheSize   int
	taskTimeout time.Duration
	syncTimeout time.Duration

	// State
	started bool
	stopCh  chan struct{}

	logger logger.Logger
}

// New constructs a new Service with default configuration. Stores default
// to in-memory implementations.
func New(opts ...Option) *Service {
	s := &Service{
		settings:    engine.DefaultSettings(),
		workerCount: 2,
		queueSize:   256,
		maxInFlight: 64,
		cacheSize:   64,
		taskTimeout: 30 * time.Minute,
		syncTimeout: 10 * time.Minute,
		stopCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting xpoints service...")

	if s.store == nil {
		s.store = repository.NewInMemoryStore()
		s.logger.Info(ctx, "using in-memory game store")
	}
	if s.jobs == nil {
		s.jobs = jobs.NewInMemoryStore()
		s.logger.Info(ctx, "using in-memory job store")
	}
	s.guard = dedupe.NewInMemoryGuard(dedupe.WithMaxInFlight(s.maxInFlight))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.cache = artifacts.New(artifacts.WithCapacity(s.cacheSize))
	s.engine = engine.New(s.store,
		engine.WithSettings(s.settings),
		engine.WithCache(s.cache),
		engine.WithLeaderboards(s.store),
		engine.WithLogger(s.logger.Named("engine")),
	)

	s.workers = workerpool.NewPool(s.workerCount, s.queue, s.engine, s.jobs, s.guard,
		workerpool.WithLogger(s.logger),
		workerpool.WithTaskTimeout(s.taskTimeout),
	)
	s.workers.Start(ctx)

	if p, ok := s.jobs.(interface{ Prune() int }); ok {
		go s.pruneLoop(p)
	}

	s.started = true
	s.logger.Info(ctx, "xpoints service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("maxInFlight", s.maxInFlight),
		logger.String("modelType", s.settings.ModelType),
	)
	return nil
}

// Stop gracefully shuts down the service. Running jobs finish; jobs still
// queued stay queued in the job store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping xpoints service...")

	var errs []error
	if err := s.workers.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	for _, c := range []any{s.store, s.jobs} {
		if closer, ok := c.(interface{ Close(context.Context) error }); ok {
			if err := closer.Close(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	close(s.stopCh)

	s.started = false
	s.logger.Info(ctx, "xpoints service stopped")
	return errors.Join(errs...)
}

func (s *Service) pruneLoop(p interface{ Prune() int }) {
	t := time.NewTicker(prunePeriod)
	defer t.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-t.C:
			if n := p.Prune(); n > 0 {
				s.logger.Debug(context.Background(), "pruned expired jobs", logger.Int("count", n))
			}
		}
	}
}

func (s *Service) running() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

func prepare(req types.RecalculateRequest) (types.RecalculateRequest, error) {
	req.Normalize()
	return req, req.Validate()
}

// Recalculate runs a recalculation in the caller's goroutine. It shares the
// in-flight guard with queued jobs so a dataset is never written by two
// runs at once.
func (s *Service) Recalculate(ctx context.Context, req types.RecalculateRequest) (*types.Summary, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	req, err := prepare(req)
	if err != nil {
		return nil, err
	}
	key := dedupe.Key(req.UserID, req.TargetDataset)
	if err := s.guard.Acquire(ctx, key); err != nil {
		return nil, err
	}
	defer s.guard.Release(context.WithoutCancel(ctx), key)

	ctx, cancel := context.WithTimeout(ctx, s.syncTimeout)
	defer cancel()
	return s.engine.Run(ctx, req, nil)
}

// Submit records a job and queues it for the worker pool. The dataset is
// claimed here and released by the worker once the job is done.
func (s *Service) Submit(ctx context.Context, req types.RecalculateRequest) (types.Job, error) {
	if err := s.running(); err != nil {
		return types.Job{}, err
	}
	req, err := prepare(req)
	if err != nil {
		return types.Job{}, err
	}
	key := dedupe.Key(req.UserID, req.TargetDataset)
	if err := s.guard.Acquire(ctx, key); err != nil {
		return types.Job{}, err
	}

	now := time.Now().UTC()
	job := types.Job{
		ID:        uuid.NewString(),
		State:     types.JobQueued,
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		s.guard.Release(context.WithoutCancel(ctx), key)
		return types.Job{}, fmt.Errorf("create job: %w", err)
	}
	metrics.RecordJobTransition(types.JobQueued)

	task := queue.Task{JobID: job.ID, Request: req, EnqueuedAt: now}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		s.guard.Release(context.WithoutCancel(ctx), key)
		if _, uerr := s.jobs.Update(context.WithoutCancel(ctx), job.ID, func(j *types.Job) {
			j.State = types.JobFailed
			j.Error = err.Error()
		}); uerr != nil {
			s.logger.Warn(ctx, "failed to mark rejected job", logger.String("job_id", job.ID), logger.Error(uerr))
		}
		metrics.RecordJobTransition(types.JobFailed)
		return types.Job{}, err
	}

	s.logger.Debug(ctx, "job queued",
		logger.String("job_id", job.ID),
		logger.String("user_id", req.UserID),
		logger.String("dataset", req.TargetDataset),
	)
	return job, nil
}

// Job returns the status of a submitted job.
func (s *Service) Job(ctx context.Context, id string) (types.Job, error) {
	if err := s.running(); err != nil {
		return types.Job{}, err
	}
	return s.jobs.Get(ctx, id)
}

// Leaderboard returns the full table of the last run over a dataset.
func (s *Service) Leaderboard(ctx context.Context, userID, dataset string) (*leaderboard.Table, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	return s.store.Leaderboard(ctx, userID, dataset)
}

// Ready reports whether the game store and, when it has one, the job store
// are reachable.
func (s *Service) Ready(ctx context.Context) error {
	if err := s.running(); err != nil {
		return err
	}
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("game store: %w", err)
	}
	if p, ok := s.jobs.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("job store: %w", err)
		}
	}
	return nil
}

// Import writes a generated corpus as a user's dataset and drops any artifact
// cached for it, since its training rows have been replaced.
func (s *Service) Import(ctx context.Context, userID, dataset string, gen shotgen.Config) (int, error) {
	if err := s.running(); err != nil {
		return 0, err
	}
	n, err := Seed(ctx, s.store, userID, dataset, gen)
	if err != nil {
		return 0, err
	}
	s.cache.Invalidate(userID, dataset)
	return n, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"maxInFlight": s.maxInFlight,
		"modelType":   s.settings.ModelType,
	}
	if !s.started {
		return stats
	}

	queueLen := s.queue.Len(context.Background())
	stats["queueLength"] = queueLen
	stats["activeWorkers"] = s.workers.Active()
	stats["inFlight"] = s.guard.Size()
	stats["cachedArtifacts"] = s.cache.Len()
	if b, ok := s.store.(*repository.BreakerStore); ok {
		stats["storeBreaker"] = b.State().String()
	}

	metrics.UpdateQueueSize(queueLen)
	metrics.UpdateWorkerCount(s.workerCount)
	metrics.UpdateWorkerActiveCount(s.workers.Active())
	return stats
}
