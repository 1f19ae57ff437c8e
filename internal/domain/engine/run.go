package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/okian/xpoints/internal/domain/features"
	"github.com/okian/xpoints/internal/domain/leaderboard"
	"github.com/okian/xpoints/internal/domain/model"
	"github.com/okian/xpoints/internal/domain/types"
	"github.com/okian/xpoints/pkg/logger"
	"github.com/okian/xpoints/pkg/metrics"
)

// Phase names a stage of a run.
type Phase string

// Run phases in order.
const (
	PhaseLoading     Phase = "loading"
	PhaseTraining    Phase = "training"
	PhaseScoring     Phase = "scoring"
	PhaseCommitting  Phase = "committing"
	PhaseAggregating Phase = "aggregating"
	PhaseDone        Phase = "done"
)

// Progress is reported at every phase transition and after each committed
// game.
type Progress struct {
	Phase     Phase
	Percent   float64
	Scored    int
	Committed int
}

// ProgressFunc receives progress updates. It must not block.
type ProgressFunc func(Progress)

// Run loads the training and target datasets, trains (or reuses a cached
// artifact), scores the target, commits annotations game by game and
// aggregates the leaderboard.
//
// Too little training data ends the run with a warning summary and no
// writes. Per-game commit failures yield a partial summary; any other
// failure is returned as an error.
func (e *Engine) Run(ctx context.Context, req types.RecalculateRequest, progress ProgressFunc) (*types.Summary, error) {
	if e.store == nil {
		return nil, ErrNoStore
	}
	if progress == nil {
		progress = func(Progress) {}
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	started := time.Now()
	s := e.settings.Apply(req)
	log := e.logger.Named("run")
	fields := []logger.Field{
		logger.String("userID", req.UserID),
		logger.String("training", req.TrainingDataset),
		logger.String("target", req.TargetDataset),
	}

	// loading
	phase := phaseTimer(PhaseLoading)
	progress(Progress{Phase: PhaseLoading})
	training, err := e.store.Shots(ctx, req.UserID, req.TrainingDataset)
	if err != nil {
		return nil, fmt.Errorf("load training dataset: %w", err)
	}
	target := training
	if req.TargetDataset != req.TrainingDataset {
		if target, err = e.store.Shots(ctx, req.UserID, req.TargetDataset); err != nil {
			return nil, fmt.Errorf("load target dataset: %w", err)
		}
	}
	phase()

	// training
	phase = phaseTimer(PhaseTraining)
	progress(Progress{Phase: PhaseTraining, Percent: 10})
	art, cached := e.cachedArtifact(ctx, req, s, len(training))
	if !cached {
		art, err = e.train(ctx, s, training)
		var w *Warning
		if errors.As(err, &w) {
			log.Warn(ctx, "run skipped", append(fields, logger.String("reason", w.Message))...)
			metrics.RecordRun(types.StatusWarning)
			progress(Progress{Phase: PhaseDone, Percent: 100})
			return &types.Summary{
				Status:            types.StatusWarning,
				Message:           w.Message,
				Recommendations:   w.Recommendations,
				TotalShots:        len(target),
				DataSummary:       dataSummary(target, len(training)),
				ProcessingSeconds: seconds(time.Since(started)),
			}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("train: %w", err)
		}
		if e.cache != nil {
			e.cache.Put(ctx, req.UserID, req.TrainingDataset, art)
		}
	}
	phase()
	recordArtifact(art)

	// scoring
	phase = phaseTimer(PhaseScoring)
	progress(Progress{Phase: PhaseScoring, Percent: 35})
	scored, err := e.Score(ctx, art, target)
	if err != nil {
		return nil, fmt.Errorf("score: %w", err)
	}
	metrics.RecordShotsScored(len(scored.Annotations))
	metrics.RecordMalformedShots(scored.Malformed)
	phase()

	// committing
	phase = phaseTimer(PhaseCommitting)
	progress(Progress{Phase: PhaseCommitting, Percent: 60, Scored: len(scored.Annotations)})
	byGame, order := groupByGame(scored.Annotations)
	var gameErrs []GameError
	committed := 0
	for i, gameID := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := e.store.CommitGame(ctx, req.UserID, req.TargetDataset, gameID, byGame[gameID]); err != nil {
			gameErrs = append(gameErrs, GameError{GameID: gameID, Err: err})
			metrics.RecordGameCommit(false)
			log.Error(ctx, "game commit failed", append(fields, logger.String("gameID", gameID), logger.Error(err))...)
		} else {
			committed++
			metrics.RecordGameCommit(true)
		}
		progress(Progress{
			Phase:     PhaseCommitting,
			Percent:   60 + 30*float64(i+1)/float64(len(order)),
			Scored:    len(scored.Annotations),
			Committed: committed,
		})
	}
	phase()

	// aggregating
	phase = phaseTimer(PhaseAggregating)
	progress(Progress{Phase: PhaseAggregating, Percent: 90, Scored: len(scored.Annotations), Committed: committed})
	table := leaderboard.Build(scored.Rows)
	if e.boards != nil {
		if err := e.boards.PutLeaderboard(ctx, req.UserID, req.TargetDataset, table); err != nil {
			log.Warn(ctx, "leaderboard not stored", append(fields, logger.Error(err))...)
		}
	}
	metrics.UpdateLeaderboardSize(table.Len())
	phase()

	sum := &types.Summary{
		Status:             types.StatusSuccess,
		Message:            fmt.Sprintf("processed %d shots across %d games", len(target), len(order)),
		TotalShots:         len(target),
		MalformedShots:     scored.Malformed,
		ModelMetrics:       ptr(art.Metrics()),
		CalibrationFactors: roundMap(art.CalibrationFactors()),
		Leaderboard:        leaderboards(table, s.TopN),
		LeaderboardSize:    table.Len(),
		GamesUpdated:       committed,
		DataSummary:        dataSummary(target, len(training)),
		PlayerPriors:       art.PlayerPriors(),
		ArtifactID:         art.ID,
		CachedModel:        cached,
	}
	for _, a := range scored.Annotations {
		sum.XPointsTotal += a.XPointsWeighted
		sum.XGoalsTotal += a.XGoals
		sum.XPAdvTotal += a.XPAdv
	}
	sum.XPointsTotal = round4(sum.XPointsTotal)
	sum.XGoalsTotal = round4(sum.XGoalsTotal)
	sum.XPAdvTotal = round4(sum.XPAdvTotal)
	if len(gameErrs) > 0 {
		sum.Status = types.StatusPartial
		for _, ge := range gameErrs {
			sum.GameErrors = append(sum.GameErrors, types.GameError{GameID: ge.GameID, Error: ge.Err.Error()})
		}
	}
	sum.ProcessingSeconds = seconds(time.Since(started))

	metrics.RecordRun(sum.Status)
	log.Info(ctx, "run finished", append(fields,
		logger.String("status", sum.Status),
		logger.Int("shots", sum.TotalShots),
		logger.Int("games", committed),
		logger.Int("gameErrors", len(gameErrs)),
		logger.Bool("cached", cached),
	)...)
	progress(Progress{Phase: PhaseDone, Percent: 100, Scored: len(scored.Annotations), Committed: committed})
	return sum, nil
}

func (e *Engine) cachedArtifact(ctx context.Context, req types.RecalculateRequest, s Settings, trainingShots int) (*Artifact, bool) {
	if e.cache == nil {
		return nil, false
	}
	art, ok := e.cache.Get(ctx, req.UserID, req.TrainingDataset, features.Current())
	hit := ok && art.Compatible(s, trainingShots)
	metrics.RecordArtifactCache(hit)
	if !hit {
		return nil, false
	}
	return art, true
}

func recordArtifact(art *Artifact) {
	for _, m := range []OutcomeModel{art.PointsOpen, art.PointsSetPlay, art.Goals} {
		metrics.UpdateModelBrier(m.Name, m.Metrics.Brier)
	}
	for seg, f := range art.CalibrationFactors() {
		metrics.UpdateCalibrationFactor(seg, f)
	}
}

func phaseTimer(p Phase) func() {
	start := time.Now()
	return func() { metrics.RecordPhaseDuration(string(p), time.Since(start).Seconds()) }
}

// groupByGame returns annotations per game and the game ids sorted.
func groupByGame(anns []model.Annotation) (map[string][]model.Annotation, []string) {
	by := make(map[string][]model.Annotation)
	for _, a := range anns {
		by[a.GameID] = append(by[a.GameID], a)
	}
	order := make([]string, 0, len(by))
	for id := range by {
		order = append(order, id)
	}
	sort.Strings(order)
	return by, order
}

func dataSummary(target []model.Shot, trainingShots int) types.DataSummary {
	ds := types.DataSummary{TotalShots: len(target), TrainingSize: trainingShots}
	players := make(map[string]struct{})
	games := make(map[string]struct{})
	for _, s := range target {
		players[s.PlayerID] = struct{}{}
		games[s.GameID] = struct{}{}
		switch model.Classify(s.OutcomeText) {
		case model.Goal:
			ds.Goals++
		case model.Point:
			ds.Points++
		default:
			ds.Misses++
		}
		if model.ClassifySetPlay(s.ShotType, s.OutcomeText).IsSetPlay() {
			ds.SetPlay++
		} else {
			ds.OpenPlay++
		}
	}
	ds.Players = len(players)
	ds.Games = len(games)
	return ds
}

func leaderboards(t *leaderboard.Table, n int) *types.Leaderboards {
	points, _ := Rows(t, ViewPoints, n)
	goals, _ := Rows(t, ViewGoals, n)
	return &types.Leaderboards{Points: points, Goals: goals}
}

func roundMap(m map[string]float64) map[string]float64 {
	for k, v := range m {
		m[k] = round4(v)
	}
	return m
}

func round4(v float64) float64 { return math.Round(v*1e4) / 1e4 }

func seconds(d time.Duration) float64 { return math.Round(d.Seconds()*100) / 100 }

func ptr[T any](v T) *T { return &v }
