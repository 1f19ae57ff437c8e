package engine

import (
	"sort"
	"time"

	"github.com/okian/xpoints/internal/domain/calibration"
	"github.com/okian/xpoints/internal/domain/cluster"
	"github.com/okian/xpoints/internal/domain/features"
	"github.com/okian/xpoints/internal/domain/learn"
	"github.com/okian/xpoints/internal/domain/priors"
	"github.com/okian/xpoints/internal/domain/types"
)

// Outcome model names, also used as calibration segment names.
const (
	ModelPointsOpen    = "points_open"
	ModelPointsSetPlay = "points_setplay"
	ModelGoals         = "goals"
)

// OutcomeModel is a trained probability model plus its segment calibration.
type OutcomeModel struct {
	Name        string
	Model       learn.ProbabilityModel
	Calibration calibration.Set
	Metrics     learn.Metrics
	Weights     map[string]float64
	Resampling  string
	Degenerate  bool
	Importance  map[string]float64 // by feature name
}

func (m OutcomeModel) report() types.ModelMetrics {
	r := m.Metrics.Rounded()
	return types.ModelMetrics{
		Accuracy:          r.Accuracy,
		Precision:         r.Precision,
		Recall:            r.Recall,
		F1:                r.F1,
		ROCAUC:            r.ROCAUC,
		Brier:             r.Brier,
		OptimalThreshold:  r.OptimalThreshold,
		TrainSamples:      r.TrainSamples,
		TestSamples:       r.TestSamples,
		Weights:           m.Weights,
		Resampling:        m.Resampling,
		Degenerate:        m.Degenerate,
		FeatureImportance: roundMap(copyMap(m.Importance)),
	}
}

// Artifact is everything a training run produced. It is never mutated after
// Train returns; a new run builds a new artifact.
type Artifact struct {
	ID            string
	Schema        features.Schema
	Settings      Settings
	Corpus        features.Corpus
	Priors        *priors.Table
	Clusters      *cluster.Model
	PointsOpen    OutcomeModel
	PointsSetPlay OutcomeModel
	Goals         OutcomeModel
	TrainingShots int
	TrainedAt     time.Time
}

// Metrics reports the three outcome models.
func (a *Artifact) Metrics() types.Metrics {
	return types.Metrics{
		PointsOpen:    a.PointsOpen.report(),
		PointsSetPlay: a.PointsSetPlay.report(),
		Goals:         a.Goals.report(),
	}
}

// CalibrationFactors returns every segment factor keyed by segment name.
func (a *Artifact) CalibrationFactors() map[string]float64 {
	out := make(map[string]float64)
	for _, m := range []OutcomeModel{a.PointsOpen, a.PointsSetPlay, a.Goals} {
		for k, v := range m.Calibration.Factors() {
			out[k] = v
		}
	}
	return out
}

// PlayerPriors reports every training player's priors ordered by player id.
func (a *Artifact) PlayerPriors() []types.PlayerPrior {
	if a.Priors == nil {
		return nil
	}
	out := make([]types.PlayerPrior, 0, len(a.Priors.Players))
	for _, p := range a.Priors.Players {
		point, goal := a.Priors.Lookup(p.PlayerID)
		out = append(out, types.PlayerPrior{
			PlayerID:     p.PlayerID,
			Shots:        p.Point.Shots,
			PointPrior:   round4(point),
			GoalPrior:    round4(goal),
			SetPlayShots: p.SetPlay.Shots,
			SetPlayPrior: round4(p.SetPlay.Smoothed),
			RecentForm:   round4(p.RecentForm),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out
}

// Compatible reports whether the artifact can score under settings s with
// the current feature schema. The leaderboard cut-off does not affect the
// models and is ignored.
func (a *Artifact) Compatible(s Settings, trainingShots int) bool {
	if a == nil {
		return false
	}
	trained := a.Settings
	trained.TopN = s.TopN
	return a.Schema.Equal(features.Current()) &&
		trained == s &&
		a.TrainingShots == trainingShots
}

func copyMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
