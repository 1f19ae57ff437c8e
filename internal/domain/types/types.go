// Package types contains the wire types shared by the engine, the job
// workers and the HTTP layer.
package types

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidRequest is returned by Validate for unusable requests.
var ErrInvalidRequest = errors.New("invalid recalculation request")

// Model types accepted in a request.
const (
	ModelEnsemble = "ensemble"
	ModelLogistic = "logistic"
	ModelBoosted  = "boosted"
	ModelForest   = "forest"
)

// Hyperparameters override engine defaults for a single run. Nil fields keep
// the configured value.
type Hyperparameters struct {
	Seed               *int64   `json:"seed,omitempty"`
	LongRangeThreshold *float64 `json:"long_range_threshold,omitempty"`
	MinSamples         *int     `json:"min_samples,omitempty"`
	TopN               *int     `json:"top_n,omitempty"`
}

// RecalculateRequest asks for a model to be trained on one dataset and
// applied to another.
type RecalculateRequest struct {
	UserID          string           `json:"user_id"`
	TrainingDataset string           `json:"training_dataset"`
	TargetDataset   string           `json:"target_dataset"`
	ModelType       string           `json:"model_type,omitempty"`
	Hyperparameters *Hyperparameters `json:"hyperparameters,omitempty"`
}

// Normalize fills defaults: the target dataset defaults to the training
// dataset and the model type to the ensemble.
func (r *RecalculateRequest) Normalize() {
	r.UserID = strings.TrimSpace(r.UserID)
	r.TrainingDataset = strings.TrimSpace(r.TrainingDataset)
	r.TargetDataset = strings.TrimSpace(r.TargetDataset)
	if r.TargetDataset == "" {
		r.TargetDataset = r.TrainingDataset
	}
	r.ModelType = strings.ToLower(strings.TrimSpace(r.ModelType))
	if r.ModelType == "" {
		r.ModelType = ModelEnsemble
	}
}

// Validate reports missing identifiers, unknown model types and negative
// overrides.
func (r RecalculateRequest) Validate() error {
	switch {
	case r.UserID == "":
		return errors.Join(ErrInvalidRequest, errors.New("user_id is required"))
	case r.TrainingDataset == "":
		return errors.Join(ErrInvalidRequest, errors.New("training_dataset is required"))
	}
	switch r.ModelType {
	case "", ModelEnsemble, ModelLogistic, ModelBoosted, ModelForest:
	default:
		return errors.Join(ErrInvalidRequest, errors.New("unknown model_type "+r.ModelType))
	}
	if h := r.Hyperparameters; h != nil {
		if h.LongRangeThreshold != nil && *h.LongRangeThreshold <= 0 {
			return errors.Join(ErrInvalidRequest, errors.New("long_range_threshold must be positive"))
		}
		if h.MinSamples != nil && *h.MinSamples < 0 {
			return errors.Join(ErrInvalidRequest, errors.New("min_samples must not be negative"))
		}
		if h.TopN != nil && *h.TopN < 0 {
			return errors.Join(ErrInvalidRequest, errors.New("top_n must not be negative"))
		}
	}
	return nil
}

// Summary statuses.
const (
	StatusSuccess = "success"
	StatusWarning = "warning"
	StatusPartial = "partial"
	StatusError   = "error"
)

// ModelMetrics is the reported evaluation of one outcome model.
type ModelMetrics struct {
	Accuracy          float64            `json:"accuracy"`
	Precision         float64            `json:"precision"`
	Recall            float64            `json:"recall"`
	F1                float64            `json:"f1"`
	ROCAUC            float64            `json:"roc_auc"`
	Brier             float64            `json:"brier_score"`
	OptimalThreshold  float64            `json:"optimal_threshold"`
	TrainSamples      int                `json:"train_samples"`
	TestSamples       int                `json:"test_samples"`
	Weights           map[string]float64 `json:"ensemble_weights,omitempty"`
	Resampling        string             `json:"resampling,omitempty"`
	Degenerate        bool               `json:"degenerate,omitempty"`
	// FeatureImportance is the rise in held-out Brier score when each
	// feature is shuffled, keyed by feature name.
	FeatureImportance map[string]float64 `json:"feature_importance,omitempty"`
}

// PlayerPrior reports the smoothed history a training run learned for one
// player.
type PlayerPrior struct {
	PlayerID     string  `json:"player_id"`
	Shots        int     `json:"shots"`
	PointPrior   float64 `json:"point_prior"`
	GoalPrior    float64 `json:"goal_prior"`
	SetPlayShots int     `json:"set_play_shots"`
	SetPlayPrior float64 `json:"set_play_prior"`
	RecentForm   float64 `json:"recent_form"`
}

// Metrics groups the three outcome models.
type Metrics struct {
	PointsOpen    ModelMetrics `json:"points_open"`
	PointsSetPlay ModelMetrics `json:"points_setplay"`
	Goals         ModelMetrics `json:"goals"`
}

// DataSummary counts outcomes in the target corpus.
type DataSummary struct {
	TotalShots   int `json:"total_shots"`
	Goals        int `json:"goals"`
	Points       int `json:"points"`
	Misses       int `json:"misses"`
	OpenPlay     int `json:"open_play_shots"`
	SetPlay      int `json:"set_play_shots"`
	Players      int `json:"players"`
	Games        int `json:"games"`
	TrainingSize int `json:"training_shots"`
}

// LeaderboardRow is one presented leaderboard line.
type LeaderboardRow struct {
	Rank       int     `json:"rank"`
	PlayerID   string  `json:"player_id"`
	PlayerName string  `json:"player_name,omitempty"`
	Team       string  `json:"team,omitempty"`
	Shots      int     `json:"shots"`
	Actual     float64 `json:"actual"`
	Expected   float64 `json:"expected"`
	Delta      float64 `json:"delta"`
	Efficiency float64 `json:"efficiency"`
}

// Leaderboards holds the two ranked views.
type Leaderboards struct {
	Points []LeaderboardRow `json:"points"`
	Goals  []LeaderboardRow `json:"goals"`
}

// GameError records a game whose annotations could not be committed.
type GameError struct {
	GameID string `json:"game_id"`
	Error  string `json:"error"`
}

// Summary is the result of a recalculation run.
type Summary struct {
	Status             string             `json:"status"`
	Message            string             `json:"message,omitempty"`
	Recommendations    []string           `json:"recommendations,omitempty"`
	TotalShots         int                `json:"total_shots"`
	MalformedShots     int                `json:"malformed_shots"`
	XPointsTotal       float64            `json:"xPointsTotal"`
	XGoalsTotal        float64            `json:"xGoalsTotal"`
	XPAdvTotal         float64            `json:"xP_advTotal"`
	ModelMetrics       *Metrics           `json:"model_metrics,omitempty"`
	CalibrationFactors map[string]float64 `json:"calibration_factors,omitempty"`
	Leaderboard        *Leaderboards      `json:"leaderboard,omitempty"`
	LeaderboardSize    int                `json:"leaderboard_size"`
	GamesUpdated       int                `json:"games_updated"`
	GameErrors         []GameError        `json:"game_errors,omitempty"`
	DataSummary        DataSummary        `json:"data_summary"`
	PlayerPriors       []PlayerPrior      `json:"player_priors,omitempty"`
	ArtifactID         string             `json:"artifact_id,omitempty"`
	CachedModel        bool               `json:"cached_model"`
	ProcessingSeconds  float64            `json:"processing_time_seconds"`
}

// Job states.
const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobSucceeded = "succeeded"
	JobFailed    = "failed"
)

// Job is the persisted status of a background recalculation.
type Job struct {
	ID        string             `json:"id"`
	State     string             `json:"state"`
	Phase     string             `json:"phase,omitempty"`
	Percent   float64            `json:"percent"`
	Scored    int                `json:"shots_scored"`
	Committed int                `json:"games_committed"`
	Error     string             `json:"error,omitempty"`
	Request   RecalculateRequest `json:"request"`
	Summary   *Summary           `json:"summary,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Done reports whether the job reached a terminal state.
func (j Job) Done() bool {
	return j.State == JobSucceeded || j.State == JobFailed
}
