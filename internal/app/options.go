package service

import (
	"time"

	"github.com/okian/xpoints/internal/adapters/jobs"
	"github.com/okian/xpoints/internal/adapters/repository"
	"github.com/okian/xpoints/internal/domain/engine"
	"github.com/okian/xpoints/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore sets the game store.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithJobStore sets the job status store.
func WithJobStore(js jobs.Store) Option {
	return func(s *Service) {
		if js != nil {
			s.jobs = js
		}
	}
}

// WithSettings sets the engine training settings.
func WithSettings(st engine.Settings) Option {
	return func(s *Service) { s.settings = st }
}

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithMaxInFlight caps the datasets claimed at once.
func WithMaxInFlight(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxInFlight = n
		}
	}
}

// WithArtifactCacheSize sets how many trained artifacts are kept.
func WithArtifactCacheSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.cacheSize = n
		}
	}
}

// WithTaskTimeout bounds a queued job's run.
func WithTaskTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.taskTimeout = d
		}
	}
}

// WithSyncTimeout bounds a synchronous recalculation.
func WithSyncTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.syncTimeout = d
		}
	}
}
