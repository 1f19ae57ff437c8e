package engine

import (
	"github.com/okian/xpoints/internal/domain/calibration"
	"github.com/okian/xpoints/internal/domain/features"
	"github.com/okian/xpoints/internal/domain/leaderboard"
	"github.com/okian/xpoints/internal/domain/learn"
	"github.com/okian/xpoints/internal/domain/types"
	"github.com/okian/xpoints/pkg/logger"
)

// Settings are the tunables of a training run. Settings are comparable so a
// cached artifact can be checked against the settings of a new run.
type Settings struct {
	Seed           int64
	MinSamples     int
	LongRange      float64
	PointBounds    calibration.Bounds
	GoalBounds     calibration.Bounds
	GoalPrior      float64
	TopN           int
	CVFolds        int
	ImbalanceRatio float64
	BoostRounds    int
	ForestTrees    int
	ModelType      string
}

// DefaultSettings returns the production defaults.
func DefaultSettings() Settings {
	return Settings{
		Seed:           42,
		MinSamples:     100,
		LongRange:      features.DefaultLongRange,
		PointBounds:    calibration.PointBounds,
		GoalBounds:     calibration.GoalBounds,
		GoalPrior:      calibration.DefaultGoalPrior,
		TopN:           leaderboard.DefaultTopN,
		CVFolds:        5,
		ImbalanceRatio: 0.3,
		BoostRounds:    150,
		ForestTrees:    100,
		ModelType:      learn.TypeEnsemble,
	}
}

// Apply returns s with the request's model type and hyperparameter
// overrides.
func (s Settings) Apply(req types.RecalculateRequest) Settings {
	if req.ModelType != "" {
		s.ModelType = req.ModelType
	}
	h := req.Hyperparameters
	if h == nil {
		return s
	}
	if h.Seed != nil {
		s.Seed = *h.Seed
	}
	if h.LongRangeThreshold != nil && *h.LongRangeThreshold > 0 {
		s.LongRange = *h.LongRangeThreshold
	}
	if h.MinSamples != nil && *h.MinSamples >= 0 {
		s.MinSamples = *h.MinSamples
	}
	if h.TopN != nil && *h.TopN > 0 {
		s.TopN = *h.TopN
	}
	return s
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithSettings replaces the default settings.
func WithSettings(s Settings) Option {
	return func(e *Engine) { e.settings = s }
}

// WithCache sets the trained artifact cache.
func WithCache(c Cache) Option {
	return func(e *Engine) {
		if c != nil {
			e.cache = c
		}
	}
}

// WithLeaderboards sets where full leaderboard tables are kept.
func WithLeaderboards(s LeaderboardSink) Option {
	return func(e *Engine) {
		if s != nil {
			e.boards = s
		}
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}
