// Package config defines service configuration and its loading.
//
// Keys are flat so that every field maps to a single XPOINTS_ environment
// variable, e.g. XPOINTS_MONGO_URI -> mongo_uri.
package config

import (
	"fmt"
	"time"

	"github.com/okian/xpoints/internal/domain/calibration"
	"github.com/okian/xpoints/internal/domain/engine"
	"github.com/okian/xpoints/internal/domain/learn"
)

// Store and job backends.
const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
	BackendRedis  = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is json or text.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// SyncTimeout bounds POST /v1/xpoints/recalculate.
	SyncTimeout time.Duration `koanf:"sync_timeout"`

	// MaxLeaderboardLimit caps GET /v1/leaderboard?limit.
	MaxLeaderboardLimit int     `koanf:"max_leaderboard_limit"`
	RateLimitRPS        float64 `koanf:"rate_limit_rps"`
	RateLimitBurst      int     `koanf:"rate_limit_burst"`

	// QueueSize bounds the in-memory job queue.
	QueueSize   int           `koanf:"queue_size"`
	WorkerCount int           `koanf:"worker_count"`
	TaskTimeout time.Duration `koanf:"task_timeout"`
	// MaxInFlight caps concurrently claimed datasets.
	MaxInFlight       int `koanf:"max_in_flight"`
	ArtifactCacheSize int `koanf:"artifact_cache_size"`

	// Store selects the game store: memory or mongo.
	Store           string        `koanf:"store"`
	MongoURI        string        `koanf:"mongo_uri"`
	MongoDatabase   string        `koanf:"mongo_database"`
	MongoCollection string        `koanf:"mongo_collection"`
	MongoTimeout    time.Duration `koanf:"mongo_timeout"`
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`

	// DemoData seeds a generated corpus as user "demo", dataset "demo" at
	// startup. Only honoured by the memory store.
	DemoData bool `koanf:"demo_data"`

	// Jobs selects the job status store: memory or redis.
	Jobs          string        `koanf:"jobs"`
	RedisAddr     string        `koanf:"redis_addr"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db"`
	JobTTL        time.Duration `koanf:"job_ttl"`

	// Model training.
	Seed           int64   `koanf:"seed"`
	MinSamples     int     `koanf:"min_samples"`
	LongRange      float64 `koanf:"long_range"`
	PointFactorMin float64 `koanf:"point_factor_min"`
	PointFactorMax float64 `koanf:"point_factor_max"`
	GoalFactorMin  float64 `koanf:"goal_factor_min"`
	GoalFactorMax  float64 `koanf:"goal_factor_max"`
	GoalPrior      float64 `koanf:"goal_prior"`
	TopN           int     `koanf:"top_n"`
	CVFolds        int     `koanf:"cv_folds"`
	ImbalanceRatio float64 `koanf:"imbalance_ratio"`
	BoostRounds    int     `koanf:"boost_rounds"`
	ForestTrees    int     `koanf:"forest_trees"`
	ModelType      string  `koanf:"model_type"`
}

// New returns a Config populated with defaults.
func New() *Config {
	s := engine.DefaultSettings()
	return &Config{
		LogLevel:            "info",
		LogFormat:           "json",
		Addr:                ":9080",
		ShutdownTimeout:     15 * time.Second,
		SyncTimeout:         10 * time.Minute,
		MaxLeaderboardLimit: 500,
		RateLimitRPS:        5,
		RateLimitBurst:      10,
		QueueSize:           256,
		WorkerCount:         2,
		TaskTimeout:         30 * time.Minute,
		MaxInFlight:         64,
		ArtifactCacheSize:   64,
		Store:               BackendMemory,
		MongoDatabase:       "xpoints",
		MongoCollection:     "games",
		MongoTimeout:        10 * time.Second,
		BreakerFailures:     5,
		BreakerTimeout:      30 * time.Second,
		Jobs:                BackendMemory,
		JobTTL:              24 * time.Hour,
		Seed:                s.Seed,
		MinSamples:          s.MinSamples,
		LongRange:           s.LongRange,
		PointFactorMin:      s.PointBounds.Min,
		PointFactorMax:      s.PointBounds.Max,
		GoalFactorMin:       s.GoalBounds.Min,
		GoalFactorMax:       s.GoalBounds.Max,
		GoalPrior:           s.GoalPrior,
		TopN:                s.TopN,
		CVFolds:             s.CVFolds,
		ImbalanceRatio:      s.ImbalanceRatio,
		BoostRounds:         s.BoostRounds,
		ForestTrees:         s.ForestTrees,
		ModelType:           s.ModelType,
	}
}

// Settings returns the engine settings described by c.
func (c *Config) Settings() engine.Settings {
	return engine.Settings{
		Seed:           c.Seed,
		MinSamples:     c.MinSamples,
		LongRange:      c.LongRange,
		PointBounds:    calibration.Bounds{Min: c.PointFactorMin, Max: c.PointFactorMax},
		GoalBounds:     calibration.Bounds{Min: c.GoalFactorMin, Max: c.GoalFactorMax},
		GoalPrior:      c.GoalPrior,
		TopN:           c.TopN,
		CVFolds:        c.CVFolds,
		ImbalanceRatio: c.ImbalanceRatio,
		BoostRounds:    c.BoostRounds,
		ForestTrees:    c.ForestTrees,
		ModelType:      c.ModelType,
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case c.QueueSize < 1:
		return invalid("queue_size must be positive, got %d", c.QueueSize)
	case c.WorkerCount < 1:
		return invalid("worker_count must be positive, got %d", c.WorkerCount)
	case c.MaxLeaderboardLimit < 1:
		return invalid("max_leaderboard_limit must be positive, got %d", c.MaxLeaderboardLimit)
	case c.MinSamples < 0:
		return invalid("min_samples must not be negative")
	case c.LongRange <= 0:
		return invalid("long_range must be positive")
	case c.PointFactorMin <= 0 || c.PointFactorMin > c.PointFactorMax:
		return invalid("point factor bounds [%g, %g] are not a range", c.PointFactorMin, c.PointFactorMax)
	case c.GoalFactorMin <= 0 || c.GoalFactorMin > c.GoalFactorMax:
		return invalid("goal factor bounds [%g, %g] are not a range", c.GoalFactorMin, c.GoalFactorMax)
	}
	switch c.Store {
	case BackendMemory:
	case BackendMongo:
		if c.MongoURI == "" {
			return invalid("mongo_uri is required for the mongo store")
		}
	default:
		return invalid("unknown store %q", c.Store)
	}
	switch c.Jobs {
	case BackendMemory:
	case BackendRedis:
		if c.RedisAddr == "" {
			return invalid("redis_addr is required for the redis job store")
		}
	default:
		return invalid("unknown jobs backend %q", c.Jobs)
	}
	switch c.ModelType {
	case learn.TypeEnsemble, learn.TypeLogistic, learn.TypeBoosted, learn.TypeForest:
	default:
		return invalid("unknown model_type %q", c.ModelType)
	}
	return nil
}
