// Package engine wires feature extraction, priors, clustering, training,
// calibration, composition and aggregation into train and score runs.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/xpoints/internal/domain/calibration"
	"github.com/okian/xpoints/internal/domain/cluster"
	"github.com/okian/xpoints/internal/domain/features"
	"github.com/okian/xpoints/internal/domain/leaderboard"
	"github.com/okian/xpoints/internal/domain/learn"
	"github.com/okian/xpoints/internal/domain/model"
	"github.com/okian/xpoints/internal/domain/priors"
	"github.com/okian/xpoints/internal/domain/scoring"
	"github.com/okian/xpoints/pkg/logger"
)

const (
	goalSMOTENeighbours = 3
	predictBatch        = 1000
)

// Store is the shot document store runs read from and commit to.
type Store interface {
	// Shots returns every shot of a user's dataset in game then index order.
	Shots(ctx context.Context, userID, dataset string) ([]model.Shot, error)
	// CommitGame merges annotations into one game's shots in a single write.
	CommitGame(ctx context.Context, userID, dataset, gameID string, anns []model.Annotation) error
}

// Cache holds trained artifacts keyed by user and training dataset.
type Cache interface {
	Get(ctx context.Context, userID, dataset string, schema features.Schema) (*Artifact, bool)
	Put(ctx context.Context, userID, dataset string, a *Artifact)
}

// LeaderboardSink keeps the full table of the latest run per dataset.
type LeaderboardSink interface {
	PutLeaderboard(ctx context.Context, userID, dataset string, t *leaderboard.Table) error
}

// Engine trains and applies expected value models.
type Engine struct {
	store    Store
	cache    Cache
	boards   LeaderboardSink
	settings Settings
	logger   logger.Logger
}

// New constructs an engine. store may be nil when only Train and Score are
// used.
func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		settings: DefaultSettings(),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Settings returns the engine defaults.
func (e *Engine) Settings() Settings { return e.settings }

// Train builds an artifact from a training corpus using the engine settings.
func (e *Engine) Train(ctx context.Context, shots []model.Shot) (*Artifact, error) {
	return e.train(ctx, e.settings, shots)
}

func (e *Engine) train(ctx context.Context, s Settings, shots []model.Shot) (*Artifact, error) {
	if len(shots) < s.MinSamples || len(shots) == 0 {
		return nil, &Warning{
			Err:     ErrInsufficientData,
			Message: fmt.Sprintf("found %d shots, at least %d are needed to train", len(shots), max(1, s.MinSamples)),
			Recommendations: []string{
				fmt.Sprintf("record at least %d shots in the training dataset", max(1, s.MinSamples)),
				"train on a larger dataset and target this one",
			},
		}
	}

	corpus := features.NewCorpus(shots)
	ex := features.NewExtractor(features.WithLongRangeThreshold(s.LongRange), features.WithCorpus(corpus))
	derived := ex.ExtractAll(shots)

	table := priors.NewEstimator().Estimate(derived)
	clusters, labels := cluster.NewEstimator(cluster.WithSeed(s.Seed)).Fit(derived)

	schema := features.Current()
	rows := make([][]float64, len(derived))
	for i, d := range derived {
		row, err := schema.Vector(d, priorsFor(table, clusters, d.PlayerID, labels[i]))
		if err != nil {
			return nil, fmt.Errorf("build training row: %w", err)
		}
		rows[i] = row
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var openIdx, setIdx []int
	for i, d := range derived {
		if d.SetPlay.IsSetPlay() {
			setIdx = append(setIdx, i)
		} else {
			openIdx = append(openIdx, i)
		}
	}
	kinds := make([]model.SetPlayType, len(derived))
	pointY := make([]int, len(derived))
	goalY := make([]int, len(derived))
	for i, d := range derived {
		kinds[i] = d.SetPlay
		if d.Outcome.IsPoint() {
			pointY[i] = 1
		}
		if d.Outcome.IsGoal() {
			goalY[i] = 1
		}
	}

	trainerOpts := []learn.Option{
		learn.WithSeed(s.Seed),
		learn.WithModelType(s.ModelType),
		learn.WithCVFolds(s.CVFolds),
		learn.WithImbalanceRatio(s.ImbalanceRatio),
		learn.WithBoostRounds(s.BoostRounds),
		learn.WithForestTrees(s.ForestTrees),
	}
	pointsTrainer := learn.NewTrainer(trainerOpts...)
	goalsTrainer := learn.NewTrainer(append(trainerOpts, learn.WithSMOTENeighbours(goalSMOTENeighbours))...)
	pointsCal := calibration.New(calibration.WithBounds(s.PointBounds))
	goalsCal := calibration.NewGoals(
		calibration.WithBounds(s.GoalBounds),
		calibration.WithPriorFactor(s.GoalPrior, calibration.DefaultGoalPriorWeight),
	)

	art := &Artifact{
		ID:            uuid.NewString(),
		Schema:        schema,
		Settings:      s,
		Corpus:        corpus,
		Priors:        table,
		Clusters:      clusters,
		TrainingShots: len(shots),
		TrainedAt:     time.Now().UTC(),
	}

	started := time.Now()
	art.PointsOpen = fitOutcome(ModelPointsOpen, pointsTrainer, pointsCal, schema,
		subset(rows, openIdx), subsetInt(pointY, openIdx), nil, table.GlobalPoint)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	art.PointsSetPlay = fitOutcome(ModelPointsSetPlay, pointsTrainer, pointsCal, schema,
		subset(rows, setIdx), subsetInt(pointY, setIdx), subsetKinds(kinds, setIdx), table.GlobalPoint)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	art.Goals = fitOutcome(ModelGoals, goalsTrainer, goalsCal, schema, rows, goalY, kinds, table.GlobalGoal)

	e.logger.Info(ctx, "models trained",
		logger.String("artifact", art.ID),
		logger.Int("shots", len(shots)),
		logger.Int("openPlay", len(openIdx)),
		logger.Int("setPlay", len(setIdx)),
		logger.Int("clusters", len(clusters.Clusters)),
		logger.Float64("pointsOpenBrier", art.PointsOpen.Metrics.Brier),
		logger.Float64("goalsBrier", art.Goals.Metrics.Brier),
		logger.Duration("took", time.Since(started)),
	)
	return art, nil
}

// fitOutcome trains one outcome model and fits its calibration on the
// held-out predictions. An empty segment predicts the corpus-wide rate.
func fitOutcome(name string, tr *learn.Trainer, cal *calibration.Calibrator, schema features.Schema, rows [][]float64, y []int, kinds []model.SetPlayType, fallback float64) OutcomeModel {
	if len(y) == 0 {
		return OutcomeModel{
			Name:        name,
			Model:       &learn.Dummy{Rate: fallback},
			Calibration: calibration.Set{Base: calibration.Identity(name)},
			Weights:     map[string]float64{learn.NameDummy: 1},
			Resampling:  learn.ResampleNone,
			Degenerate:  true,
		}
	}
	res := tr.Train(rows, y)
	var testKinds []model.SetPlayType
	if kinds != nil {
		testKinds = subsetKinds(kinds, res.TestIdx)
	}
	return OutcomeModel{
		Name:        name,
		Model:       res.Model,
		Calibration: cal.FitSet(name, res.TestPred, res.TestY, testKinds),
		Metrics:     res.Metrics,
		Weights:     res.Weights,
		Resampling:  res.Resampling,
		Degenerate:  res.Degenerate,
		Importance:  importance(schema, res.Importance),
	}
}

func importance(schema features.Schema, values []float64) map[string]float64 {
	if len(values) != schema.Dim() {
		return nil
	}
	out := make(map[string]float64, len(values))
	for j, v := range values {
		out[schema.Names[j]] = v
	}
	return out
}

func priorsFor(table *priors.Table, clusters *cluster.Model, playerID string, clusterID int) features.Priors {
	pp, pg := table.Lookup(playerID)
	cp, cg := clusters.Rates(clusterID)
	return features.Priors{PlayerPoint: pp, PlayerGoal: pg, ClusterPoint: cp, ClusterGoal: cg}
}

// Scored is the output of applying an artifact to a corpus.
type Scored struct {
	Annotations []model.Annotation
	Rows        []leaderboard.Row
	Malformed   int
}

// Score applies a trained artifact to shots. Shots are annotated in input
// order.
func (e *Engine) Score(ctx context.Context, art *Artifact, shots []model.Shot) (*Scored, error) {
	if art == nil {
		return nil, ErrNoArtifact
	}
	if !art.Schema.Equal(features.Current()) {
		return nil, fmt.Errorf("artifact %s: %w", art.ID, features.ErrSchemaMismatch)
	}
	s := art.Settings
	ex := features.NewExtractor(features.WithLongRangeThreshold(s.LongRange), features.WithCorpus(art.Corpus))
	composer := scoring.NewComposer(scoring.WithLongRangeThreshold(s.LongRange))

	derived := ex.ExtractAll(shots)
	rows := make([][]float64, len(derived))
	clusterIDs := make([]int, len(derived))
	out := &Scored{
		Annotations: make([]model.Annotation, len(derived)),
		Rows:        make([]leaderboard.Row, len(derived)),
	}
	for i, d := range derived {
		clusterIDs[i] = art.Clusters.Assign(d)
		row, err := art.Schema.Vector(d, priorsFor(art.Priors, art.Clusters, d.PlayerID, clusterIDs[i]))
		if err != nil {
			return nil, fmt.Errorf("build scoring row: %w", err)
		}
		rows[i] = row
		if d.Malformed {
			out.Malformed++
		}
	}

	var openIdx, setIdx []int
	for i, d := range derived {
		if d.SetPlay.IsSetPlay() {
			setIdx = append(setIdx, i)
		} else {
			openIdx = append(openIdx, i)
		}
	}
	pPoint := make([]float64, len(derived))
	if err := predictInto(ctx, art.PointsOpen, rows, openIdx, pPoint); err != nil {
		return nil, err
	}
	if err := predictInto(ctx, art.PointsSetPlay, rows, setIdx, pPoint); err != nil {
		return nil, err
	}
	pGoal := make([]float64, len(derived))
	if err := predictInto(ctx, art.Goals, rows, allIndices(len(rows)), pGoal); err != nil {
		return nil, err
	}

	for i, d := range derived {
		point := art.PointsOpen.Calibration
		if d.SetPlay.IsSetPlay() {
			point = art.PointsSetPlay.Calibration
		}
		a := composer.Compose(scoring.Input{
			Key:      d.Key,
			PPoint:   point.Apply(pPoint[i], d.SetPlay),
			PGoal:    art.Goals.Calibration.Apply(pGoal[i], d.SetPlay),
			Distance: d.Distance,
			Outcome:  d.Outcome,
			SetPlay:  d.SetPlay,
			Cluster:  clusterIDs[i],
		})
		out.Annotations[i] = a
		out.Rows[i] = leaderboard.Row{
			PlayerID:   shots[i].PlayerID,
			PlayerName: shots[i].PlayerName,
			Team:       shots[i].Team,
			Annotation: a,
		}
	}
	return out, nil
}

// predictInto writes raw predictions for rows idx into dst, in batches so a
// cancelled context stops a long run.
func predictInto(ctx context.Context, m OutcomeModel, rows [][]float64, idx []int, dst []float64) error {
	for start := 0; start < len(idx); start += predictBatch {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+predictBatch, len(idx))
		batch := make([][]float64, 0, end-start)
		for _, i := range idx[start:end] {
			batch = append(batch, rows[i])
		}
		for j, p := range m.Model.Predict(batch) {
			dst[idx[start+j]] = p
		}
	}
	return nil
}

func subset(rows [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for j, i := range idx {
		out[j] = rows[i]
	}
	return out
}

func subsetInt(v []int, idx []int) []int {
	out := make([]int, len(idx))
	for j, i := range idx {
		out[j] = v[i]
	}
	return out
}

func subsetKinds(v []model.SetPlayType, idx []int) []model.SetPlayType {
	out := make([]model.SetPlayType, len(idx))
	for j, i := range idx {
		out[j] = v[i]
	}
	return out
}

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
