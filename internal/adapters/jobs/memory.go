package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/xpoints/internal/domain/types"
)

// InMemoryStore keeps records in a map. Expired records are dropped lazily
// on access and by Prune.
type InMemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]types.Job
	cfg  config
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore(opts ...Option) *InMemoryStore {
	cfg := defaults()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &InMemoryStore{jobs: make(map[string]types.Job), cfg: cfg}
}

func (s *InMemoryStore) Create(_ context.Context, job types.Job) error {
	if job.ID == "" {
		return ErrNoID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.jobs[job.ID]; ok && !s.expired(old) {
		return fmt.Errorf("%s: %w", job.ID, ErrExists)
	}
	now := s.cfg.now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	s.jobs[job.ID] = job
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, id string, fn func(*types.Job)) (types.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || s.expired(job) {
		delete(s.jobs, id)
		return types.Job{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	fn(&job)
	job.ID = id
	job.UpdatedAt = s.cfg.now().UTC()
	s.jobs[id] = job
	return job, nil
}

func (s *InMemoryStore) Get(_ context.Context, id string) (types.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok || s.expired(job) {
		return types.Job{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return job, nil
}

// Prune drops expired records and returns how many were removed.
func (s *InMemoryStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, job := range s.jobs {
		if s.expired(job) {
			delete(s.jobs, id)
			n++
		}
	}
	return n
}

// Len returns the number of records held, expired ones included.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

func (s *InMemoryStore) expired(job types.Job) bool {
	return s.cfg.now().Sub(job.UpdatedAt) > s.cfg.ttl
}

var _ Store = (*InMemoryStore)(nil)
