package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/okian/xpoints/internal/domain/leaderboard"
	"github.com/okian/xpoints/internal/domain/model"
	"github.com/okian/xpoints/pkg/logger"
	"github.com/okian/xpoints/pkg/metrics"
)

// ErrUnavailable is returned while the breaker is open.
var ErrUnavailable = errors.New("store unavailable")

// BreakerStore guards a Store with a circuit breaker so that a dead backend
// fails each game commit fast instead of waiting out its timeout.
type BreakerStore struct {
	next Store
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerStore wraps next.
func NewBreakerStore(next Store, log logger.Logger, opts ...BreakerOption) *BreakerStore {
	cfg := breakerConfig{name: "store", failures: 5, openTimeout: 30 * time.Second, halfOpenMax: 1}
	for _, opt := range opts {
		opt(&cfg)
	}
	if log == nil {
		log = logger.Nop()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.name,
		MaxRequests: cfg.halfOpenMax,
		Timeout:     cfg.openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.failures
		},
		// caller mistakes say nothing about backend health
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrGameNotFound) ||
				errors.Is(err, ErrShotIndex) ||
				errors.Is(err, ErrNotFound) ||
				errors.Is(err, ErrInvalidGame) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.UpdateBreakerState(name, int(to))
			log.Warn(context.Background(), "circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})
	metrics.UpdateBreakerState(cfg.name, int(gobreaker.StateClosed))
	return &BreakerStore{next: next, cb: cb}
}

// State returns the breaker state.
func (b *BreakerStore) State() gobreaker.State { return b.cb.State() }

func (b *BreakerStore) run(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) { return nil, fn() })
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Join(ErrUnavailable, err)
	}
	return err
}

func (b *BreakerStore) Shots(ctx context.Context, userID, dataset string) ([]model.Shot, error) {
	var out []model.Shot
	err := b.run(func() error {
		var err error
		out, err = b.next.Shots(ctx, userID, dataset)
		return err
	})
	return out, err
}

func (b *BreakerStore) CommitGame(ctx context.Context, userID, dataset, gameID string, anns []model.Annotation) error {
	return b.run(func() error { return b.next.CommitGame(ctx, userID, dataset, gameID, anns) })
}

func (b *BreakerStore) PutGame(ctx context.Context, g Game) error {
	return b.run(func() error { return b.next.PutGame(ctx, g) })
}

func (b *BreakerStore) PutLeaderboard(ctx context.Context, userID, dataset string, t *leaderboard.Table) error {
	return b.run(func() error { return b.next.PutLeaderboard(ctx, userID, dataset, t) })
}

func (b *BreakerStore) Leaderboard(ctx context.Context, userID, dataset string) (*leaderboard.Table, error) {
	var out *leaderboard.Table
	err := b.run(func() error {
		var err error
		out, err = b.next.Leaderboard(ctx, userID, dataset)
		return err
	})
	return out, err
}

// Ping bypasses the breaker so health checks see the backend directly.
func (b *BreakerStore) Ping(ctx context.Context) error { return b.next.Ping(ctx) }

// Close closes the wrapped store when it holds a connection.
func (b *BreakerStore) Close(ctx context.Context) error {
	if c, ok := b.next.(interface{ Close(context.Context) error }); ok {
		return c.Close(ctx)
	}
	return nil
}

var _ Store = (*BreakerStore)(nil)
