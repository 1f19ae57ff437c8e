package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/okian/xpoints/internal/adapters/jobs"
	"github.com/okian/xpoints/internal/adapters/repository"
	"github.com/okian/xpoints/internal/config"
	"github.com/okian/xpoints/internal/shotgen"
	"github.com/okian/xpoints/pkg/logger"
)

// OpenStore builds the configured game store. The mongo store is wrapped in
// a circuit breaker.
func OpenStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, error) {
	switch cfg.Store {
	case config.BackendMongo:
		ms, err := repository.NewMongoStore(ctx, cfg.MongoURI,
			repository.WithDatabase(cfg.MongoDatabase),
			repository.WithGamesCollection(cfg.MongoCollection),
			repository.WithOperationTimeout(cfg.MongoTimeout),
		)
		if err != nil {
			return nil, err
		}
		log.Info(ctx, "using mongo game store", logger.String("database", cfg.MongoDatabase))
		return repository.NewBreakerStore(ms, log,
			repository.WithBreakerName("mongo"),
			repository.WithBreakerFailures(cfg.BreakerFailures),
			repository.WithBreakerTimeout(cfg.BreakerTimeout),
		), nil
	case config.BackendMemory, "":
		return repository.NewInMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: unknown store %q", config.ErrInvalidConfig, cfg.Store)
	}
}

// OpenJobStore builds the configured job status store.
func OpenJobStore(ctx context.Context, cfg *config.Config, log logger.Logger) (jobs.Store, error) {
	switch cfg.Jobs {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		log.Info(ctx, "using redis job store", logger.String("addr", cfg.RedisAddr))
		return jobs.NewRedisStore(client, jobs.WithTTL(cfg.JobTTL)), nil
	case config.BackendMemory, "":
		return jobs.NewInMemoryStore(jobs.WithTTL(cfg.JobTTL)), nil
	default:
		return nil, fmt.Errorf("%w: unknown jobs backend %q", config.ErrInvalidConfig, cfg.Jobs)
	}
}

// FromConfig returns the service options described by cfg, other than the
// stores.
func FromConfig(cfg *config.Config) []Option {
	return []Option{
		WithSettings(cfg.Settings()),
		WithWorkerCount(cfg.WorkerCount),
		WithQueueSize(cfg.QueueSize),
		WithMaxInFlight(cfg.MaxInFlight),
		WithArtifactCacheSize(cfg.ArtifactCacheSize),
		WithTaskTimeout(cfg.TaskTimeout),
		WithSyncTimeout(cfg.SyncTimeout),
	}
}

// Seed writes a generated corpus into store as one dataset and returns the
// number of games written.
func Seed(ctx context.Context, store repository.Store, userID, dataset string, gen shotgen.Config) (int, error) {
	games := shotgen.Games(shotgen.Generate(gen))
	ids := make([]string, 0, len(games))
	for id := range games {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		g := repository.Game{ID: id, UserID: userID, Dataset: dataset, Shots: games[id]}
		if err := store.PutGame(ctx, g); err != nil {
			return 0, fmt.Errorf("seed game %s: %w", id, err)
		}
	}
	return len(ids), nil
}
