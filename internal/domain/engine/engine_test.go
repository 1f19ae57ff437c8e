package engine_test

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/xpoints/internal/domain/calibration"
	"github.com/okian/xpoints/internal/domain/engine"
	"github.com/okian/xpoints/internal/domain/features"
	"github.com/okian/xpoints/internal/domain/leaderboard"
	"github.com/okian/xpoints/internal/domain/learn"
	"github.com/okian/xpoints/internal/domain/model"
	"github.com/okian/xpoints/internal/domain/types"
	"github.com/okian/xpoints/internal/shotgen"
)

type fakeStore struct {
	mu       sync.Mutex
	data     map[string][]model.Shot
	commits  map[string][]model.Annotation
	failGame string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string][]model.Shot{}, commits: map[string][]model.Annotation{}}
}

func (f *fakeStore) Shots(_ context.Context, userID, dataset string) ([]model.Shot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Shot(nil), f.data[userID+"/"+dataset]...), nil
}

func (f *fakeStore) CommitGame(_ context.Context, _, _, gameID string, anns []model.Annotation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if gameID == f.failGame {
		return errors.New("write refused")
	}
	f.commits[gameID] = anns
	return nil
}

type mapCache struct {
	mu sync.Mutex
	m  map[string]*engine.Artifact
}

func (c *mapCache) Get(_ context.Context, userID, dataset string, schema features.Schema) (*engine.Artifact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.m[userID+"/"+dataset]
	if !ok || a.Schema.Dim() != schema.Dim() {
		return nil, false
	}
	return a, true
}

func (c *mapCache) Put(_ context.Context, userID, dataset string, a *engine.Artifact) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[userID+"/"+dataset] = a
}

type boards struct{ last *leaderboard.Table }

func (b *boards) PutLeaderboard(_ context.Context, _, _ string, t *leaderboard.Table) error {
	b.last = t
	return nil
}

func fastSettings() engine.Settings {
	s := engine.DefaultSettings()
	s.BoostRounds = 20
	s.ForestTrees = 15
	s.CVFolds = 3
	return s
}

func corpus() []model.Shot {
	cfg := shotgen.DefaultConfig()
	cfg.MalformedShare = 0.02
	return shotgen.Generate(cfg)
}

func TestTrainAndScore(t *testing.T) {
	ctx := context.Background()

	Convey("Given a trained artifact", t, func() {
		shots := corpus()
		e := engine.New(nil, engine.WithSettings(fastSettings()))
		art, err := e.Train(ctx, shots)
		So(err, ShouldBeNil)

		Convey("Then it carries the schema and three outcome models", func() {
			So(art.Schema.Equal(features.Current()), ShouldBeTrue)
			So(art.TrainingShots, ShouldEqual, len(shots))
			So(art.PointsOpen.Model, ShouldNotBeNil)
			So(art.PointsSetPlay.Model, ShouldNotBeNil)
			So(art.Goals.Model, ShouldNotBeNil)
			So(art.PointsOpen.Degenerate, ShouldBeFalse)
		})

		Convey("Then each trained model reports feature importance by name", func() {
			imp := art.Metrics().PointsOpen.FeatureImportance
			So(len(imp), ShouldEqual, art.Schema.Dim())
			So(imp, ShouldContainKey, "distance")
			So(imp, ShouldContainKey, features.PlayerPointPrior)
			for _, v := range imp {
				So(v, ShouldBeGreaterThanOrEqualTo, 0)
			}
		})

		Convey("Then player priors are reported in player order", func() {
			rows := art.PlayerPriors()
			So(len(rows), ShouldEqual, len(art.Priors.Players))
			So(sort.SliceIsSorted(rows, func(i, j int) bool { return rows[i].PlayerID < rows[j].PlayerID }), ShouldBeTrue)
			for _, r := range rows {
				So(r.PointPrior, ShouldBeBetweenOrEqual, 0, 1)
				So(r.RecentForm, ShouldBeBetweenOrEqual, 0, 1)
				So(r.SetPlayShots, ShouldBeLessThanOrEqualTo, r.Shots)
			}
		})

		Convey("Then calibration factors respect their bounds", func() {
			for _, seg := range []calibration.Segment{art.PointsOpen.Calibration.Base, art.PointsSetPlay.Calibration.Base} {
				So(seg.Factor, ShouldBeBetweenOrEqual, calibration.PointBounds.Min, calibration.PointBounds.Max)
			}
			So(art.Goals.Calibration.Base.Factor, ShouldBeBetweenOrEqual, calibration.GoalBounds.Min, calibration.GoalBounds.Max)
		})

		Convey("When scoring the corpus", func() {
			scored, err := e.Score(ctx, art, shots)
			So(err, ShouldBeNil)

			Convey("Then every shot is annotated with bounded probabilities", func() {
				So(len(scored.Annotations), ShouldEqual, len(shots))
				So(scored.Malformed, ShouldBeGreaterThan, 0)
				for i, a := range scored.Annotations {
					So(model.Key{GameID: a.GameID, Index: a.Index}, ShouldResemble, shots[i].Key())
					So(a.XPoints, ShouldBeBetweenOrEqual, calibration.ProbMin, calibration.ProbMax)
					So(a.XGoals, ShouldBeBetweenOrEqual, calibration.ProbMin, calibration.ProbMax)
				}
			})

			Convey("Then stored values keep the scoring identities exactly", func() {
				for _, a := range scored.Annotations {
					weight := 1.0
					if a.LongRange {
						weight = 2
					}
					So(math.Abs(a.XPointsWeighted-weight*a.XPoints), ShouldBeLessThan, 1e-9)
					So(math.Abs(a.XPAdv-(a.XPointsWeighted+3*a.XGoals)), ShouldBeLessThan, 1e-9)
				}
			})

			Convey("Then goals never carry expected points and points never carry expected goals", func() {
				for _, a := range scored.Annotations {
					if a.Category == model.Goal {
						So(a.XPointsFinal, ShouldEqual, 0)
					}
					if a.Category == model.Point {
						So(a.XGoalsFinal, ShouldEqual, 0)
					}
				}
			})

			Convey("Then training again with the same seed scores identically", func() {
				again, err := e.Train(ctx, shots)
				So(err, ShouldBeNil)
				rescored, err := e.Score(ctx, again, shots)
				So(err, ShouldBeNil)
				So(rescored.Annotations, ShouldResemble, scored.Annotations)
			})
		})

		Convey("When the artifact schema differs", func() {
			stale := *art
			stale.Schema = features.Schema{Version: 0, Names: []string{"distance"}}
			_, err := e.Score(ctx, &stale, shots)
			So(errors.Is(err, features.ErrSchemaMismatch), ShouldBeTrue)
		})
	})

	Convey("Given a corpus with no scores at all", t, func() {
		cfg := shotgen.DefaultConfig()
		cfg.AllMiss = true
		shots := shotgen.Generate(cfg)
		e := engine.New(nil, engine.WithSettings(fastSettings()))
		art, err := e.Train(ctx, shots)
		So(err, ShouldBeNil)

		Convey("Then dummy models predict the floor probability", func() {
			So(art.PointsOpen.Degenerate, ShouldBeTrue)
			So(art.PointsOpen.Model.Name(), ShouldEqual, learn.NameDummy)
			scored, err := e.Score(ctx, art, shots[:20])
			So(err, ShouldBeNil)
			for _, a := range scored.Annotations {
				So(a.XPoints, ShouldEqual, calibration.ProbMin)
				So(a.XGoals, ShouldEqual, calibration.ProbMin)
			}
		})
	})

	Convey("Given too few shots", t, func() {
		_, err := engine.New(nil).Train(ctx, corpus()[:5])
		var w *engine.Warning
		So(errors.As(err, &w), ShouldBeTrue)
		So(errors.Is(err, engine.ErrInsufficientData), ShouldBeTrue)
		So(w.Recommendations, ShouldNotBeEmpty)
	})
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	req := types.RecalculateRequest{UserID: "u1", TrainingDataset: "league"}

	Convey("Given a store with a dataset", t, func() {
		store := newFakeStore()
		shots := corpus()
		store.data["u1/league"] = shots
		cache := &mapCache{m: map[string]*engine.Artifact{}}
		lb := &boards{}
		e := engine.New(store,
			engine.WithSettings(fastSettings()),
			engine.WithCache(cache),
			engine.WithLeaderboards(lb),
		)

		Convey("When running a recalculation", func() {
			var phases []engine.Phase
			sum, err := e.Run(ctx, req, func(p engine.Progress) {
				if len(phases) == 0 || phases[len(phases)-1] != p.Phase {
					phases = append(phases, p.Phase)
				}
			})
			So(err, ShouldBeNil)

			Convey("Then every game is committed and summarised", func() {
				So(sum.Status, ShouldEqual, types.StatusSuccess)
				So(sum.TotalShots, ShouldEqual, len(shots))
				So(sum.GamesUpdated, ShouldEqual, len(shotgen.Games(shots)))
				So(len(store.commits), ShouldEqual, sum.GamesUpdated)
				So(sum.ModelMetrics, ShouldNotBeNil)
				So(sum.CalibrationFactors, ShouldContainKey, engine.ModelPointsOpen)
				So(sum.CalibrationFactors, ShouldContainKey, engine.ModelGoals)
				So(sum.CachedModel, ShouldBeFalse)
				So(sum.XPAdvTotal, ShouldAlmostEqual, sum.XPointsTotal+3*sum.XGoalsTotal, 0.05)
				So(sum.PlayerPriors, ShouldNotBeEmpty)
				So(sum.ModelMetrics.PointsOpen.FeatureImportance, ShouldNotBeEmpty)
			})

			Convey("Then the leaderboard is kept in full and truncated for presentation", func() {
				So(lb.last, ShouldNotBeNil)
				So(sum.LeaderboardSize, ShouldEqual, lb.last.Len())
				So(len(sum.Leaderboard.Points), ShouldBeLessThanOrEqualTo, leaderboard.DefaultTopN)
				So(sum.Leaderboard.Points[0].Rank, ShouldEqual, 1)
			})

			Convey("Then phases are reported in order", func() {
				So(phases, ShouldResemble, []engine.Phase{
					engine.PhaseLoading, engine.PhaseTraining, engine.PhaseScoring,
					engine.PhaseCommitting, engine.PhaseAggregating, engine.PhaseDone,
				})
			})

			Convey("Then a second run reuses the cached artifact", func() {
				again, err := e.Run(ctx, req, nil)
				So(err, ShouldBeNil)
				So(again.CachedModel, ShouldBeTrue)
				So(again.ArtifactID, ShouldEqual, sum.ArtifactID)
			})

			Convey("Then a different leaderboard cut-off still reuses the model", func() {
				topN := 3
				r := req
				r.Hyperparameters = &types.Hyperparameters{TopN: &topN}
				again, err := e.Run(ctx, r, nil)
				So(err, ShouldBeNil)
				So(again.CachedModel, ShouldBeTrue)
				So(len(again.Leaderboard.Points), ShouldBeLessThanOrEqualTo, 3)
			})

			Convey("Then changed hyperparameters force retraining", func() {
				seed := int64(9)
				r := req
				r.Hyperparameters = &types.Hyperparameters{Seed: &seed}
				again, err := e.Run(ctx, r, nil)
				So(err, ShouldBeNil)
				So(again.CachedModel, ShouldBeFalse)
			})
		})

		Convey("When one game cannot be committed", func() {
			ids := make([]string, 0)
			for id := range shotgen.Games(shots) {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			store.failGame = ids[1]
			sum, err := e.Run(ctx, req, nil)
			So(err, ShouldBeNil)

			Convey("Then the run is partial and the other games are written", func() {
				So(sum.Status, ShouldEqual, types.StatusPartial)
				So(sum.GameErrors, ShouldHaveLength, 1)
				So(sum.GameErrors[0].GameID, ShouldEqual, ids[1])
				So(sum.GamesUpdated, ShouldEqual, len(ids)-1)
				So(store.commits, ShouldNotContainKey, ids[1])
			})
		})
	})

	Convey("Given a dataset with five shots", t, func() {
		store := newFakeStore()
		store.data["u1/league"] = corpus()[:5]
		sum, err := engine.New(store).Run(ctx, req, nil)

		Convey("Then a warning is returned and nothing is written", func() {
			So(err, ShouldBeNil)
			So(sum.Status, ShouldEqual, types.StatusWarning)
			So(sum.Recommendations, ShouldNotBeEmpty)
			So(store.commits, ShouldBeEmpty)
		})
	})

	Convey("Given an invalid request", t, func() {
		_, err := engine.New(newFakeStore()).Run(ctx, types.RecalculateRequest{}, nil)
		So(errors.Is(err, types.ErrInvalidRequest), ShouldBeTrue)
		_, err = engine.New(nil).Run(ctx, req, nil)
		So(errors.Is(err, engine.ErrNoStore), ShouldBeTrue)
	})
}
