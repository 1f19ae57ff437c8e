package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/okian/xpoints/internal/domain/types"
)

const maxUpdateRetries = 5

// RedisStore keeps each record as a JSON string with a TTL refreshed on every
// write.
type RedisStore struct {
	client redis.UniversalClient
	cfg    config
}

// NewRedisStore returns a store over client.
func NewRedisStore(client redis.UniversalClient, opts ...Option) *RedisStore {
	cfg := defaults()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &RedisStore{client: client, cfg: cfg}
}

func (s *RedisStore) key(id string) string { return s.cfg.prefix + id }

func (s *RedisStore) Create(ctx context.Context, job types.Job) error {
	if job.ID == "" {
		return ErrNoID
	}
	now := s.cfg.now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	b, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.key(job.ID), b, s.cfg.ttl).Result()
	if err != nil {
		return fmt.Errorf("create job %s: %w", job.ID, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", job.ID, ErrExists)
	}
	return nil
}

// Update runs fn inside an optimistic WATCH transaction and retries when the
// record changed underneath it.
func (s *RedisStore) Update(ctx context.Context, id string, fn func(*types.Job)) (types.Job, error) {
	key := s.key(id)
	var out types.Job
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}
		var job types.Job
		if err := json.Unmarshal(raw, &job); err != nil {
			return fmt.Errorf("decode job %s: %w", id, err)
		}
		fn(&job)
		job.ID = id
		job.UpdatedAt = s.cfg.now().UTC()
		b, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("marshal job: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, s.cfg.ttl)
			return nil
		})
		out = job
		return err
	}
	for i := 0; i < maxUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return types.Job{}, err
		}
		return out, nil
	}
	return types.Job{}, fmt.Errorf("update job %s: %w", id, redis.TxFailedErr)
}

func (s *RedisStore) Get(ctx context.Context, id string) (types.Job, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.Job{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return types.Job{}, fmt.Errorf("get job %s: %w", id, err)
	}
	var job types.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return types.Job{}, fmt.Errorf("decode job %s: %w", id, err)
	}
	return job, nil
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *RedisStore) Close(context.Context) error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
