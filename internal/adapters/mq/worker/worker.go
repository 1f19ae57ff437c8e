// Package worker runs queued recalculations and records their progress.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/xpoints/internal/adapters/mq/queue"
	"github.com/okian/xpoints/internal/domain/dedupe"
	"github.com/okian/xpoints/internal/domain/engine"
	"github.com/okian/xpoints/internal/domain/types"
	"github.com/okian/xpoints/pkg/logger"
	"github.com/okian/xpoints/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultTaskTimeout  = 30 * time.Minute
	poolShutdownTimeout = 30 * time.Second
)

// ErrPanic marks a run that panicked. The job is failed and the worker keeps
// serving the queue.
var ErrPanic = errors.New("recalculation panicked")

// Task abstracts what workers read off the queue.
type Task = queue.Task

// Runner executes one recalculation.
type Runner interface {
	Run(ctx context.Context, req types.RecalculateRequest, progress engine.ProgressFunc) (*types.Summary, error)
}

// JobUpdater records job status.
type JobUpdater interface {
	Update(ctx context.Context, id string, fn func(*types.Job)) (types.Job, error)
}

// Queue defines how workers receive tasks.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Task
}

// Worker processes tasks until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker once its current task completes.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker pulls tasks, runs them and writes job status. When a guard
// is set, the task's dataset claim is released after the run.
type InMemoryWorker struct {
	queue       Queue
	runner      Runner
	jobs        JobUpdater
	guard       dedupe.Guard
	name        string
	taskTimeout time.Duration
	active      *atomic.Int64

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options. guard
// may be nil.
func NewInMemoryWorker(q Queue, runner Runner, jobs JobUpdater, guard dedupe.Guard, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:       q,
		runner:      runner,
		jobs:        jobs,
		guard:       guard,
		name:        "worker",
		taskTimeout: defaultTaskTimeout,
		active:      &atomic.Int64{},
		shutdown:    make(chan struct{}),
		done:        make(chan struct{}),
		logger:      logger.GetOr(logger.Nop()),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	tasks := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case t, ok := <-tasks:
			if !ok {
				return
			}
			if err := w.process(ctx, t); err != nil {
				w.logger.Error(ctx, "recalculation failed", logger.String("jobID", t.JobID), logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, t Task) error {
	start := time.Now()
	metrics.UpdateWorkerActiveCount(int(w.active.Add(1)))
	defer func() {
		metrics.UpdateWorkerActiveCount(int(w.active.Add(-1)))
		metrics.RecordWorkerProcessingLatency(time.Since(start).Seconds())
	}()

	w.transition(ctx, t.JobID, func(j *types.Job) { j.State = types.JobRunning })

	runCtx, cancel := context.WithTimeout(ctx, w.taskTimeout)
	defer cancel()
	sum, err := w.run(runCtx, t)

	// the final write must land even when the run context expired
	final := context.WithoutCancel(ctx)
	// free the dataset before the job reads as done so a client may resubmit
	w.release(final, t.Request)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "run_error")
		w.transition(final, t.JobID, func(j *types.Job) {
			j.State = types.JobFailed
			j.Error = err.Error()
		})
		return fmt.Errorf("job %s: %w", t.JobID, err)
	}
	w.transition(final, t.JobID, func(j *types.Job) {
		j.State = types.JobSucceeded
		j.Phase = string(engine.PhaseDone)
		j.Percent = 100
		j.Summary = sum
	})
	w.logger.Info(ctx, "recalculation finished",
		logger.String("jobID", t.JobID),
		logger.String("status", sum.Status),
		logger.Duration("queued", start.Sub(t.EnqueuedAt)),
		logger.Duration("took", time.Since(start)),
	)
	return nil
}

// run executes the task and turns a panic into an ErrPanic error.
func (w *InMemoryWorker) run(ctx context.Context, t Task) (sum *types.Summary, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.RecordErrorByComponent("worker", "panic")
			w.logger.Error(ctx, "recalculation panicked",
				logger.String("jobID", t.JobID),
				logger.String("userID", t.Request.UserID),
				logger.Any("panic", rec),
				logger.String("stack", string(debug.Stack())),
			)
			sum, err = nil, fmt.Errorf("%w: %v", ErrPanic, rec)
		}
	}()
	return w.runner.Run(ctx, t.Request, func(p engine.Progress) {
		w.update(ctx, t.JobID, func(j *types.Job) {
			j.Phase = string(p.Phase)
			j.Percent = p.Percent
			j.Scored = p.Scored
			j.Committed = p.Committed
		})
	})
}

func (w *InMemoryWorker) release(ctx context.Context, req types.RecalculateRequest) {
	if w.guard == nil {
		return
	}
	req.Normalize()
	w.guard.Release(ctx, dedupe.Key(req.UserID, req.TargetDataset))
}

func (w *InMemoryWorker) transition(ctx context.Context, id string, fn func(*types.Job)) {
	if job, ok := w.update(ctx, id, fn); ok {
		metrics.RecordJobTransition(job.State)
	}
}

func (w *InMemoryWorker) update(ctx context.Context, id string, fn func(*types.Job)) (types.Job, bool) {
	job, err := w.jobs.Update(ctx, id, fn)
	if err != nil {
		w.logger.Warn(ctx, "job status not recorded", logger.String("jobID", id), logger.Error(err))
		return job, false
	}
	return job, true
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	active  *atomic.Int64
	logger  logger.Logger
}

// NewPool creates a new worker pool. A count below one uses one worker per
// CPU.
func NewPool(workerCount int, q Queue, runner Runner, jobs JobUpdater, guard dedupe.Guard, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		active:  &atomic.Int64{},
		logger:  logger.GetOr(logger.Nop()).Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		w := NewInMemoryWorker(q, runner, jobs, guard,
			append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)...)
		w.active = pool.active
		pool.workers[i] = w
	}
	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Active returns the number of workers currently running a task.
func (p *Pool) Active() int { return int(p.active.Load()) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and waits for the workers. Workers finish their
// current task first.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	for _, w := range p.workers {
		close(w.shutdown)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("shutdown timed out: %w", shutdownCtx.Err())
		}
	}
	return nil
}
