package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/xpoints/internal/adapters/repository"
	service "github.com/okian/xpoints/internal/app"
	"github.com/okian/xpoints/internal/config"
	"github.com/okian/xpoints/internal/domain/dedupe"
	"github.com/okian/xpoints/internal/domain/engine"
	"github.com/okian/xpoints/internal/domain/types"
	"github.com/okian/xpoints/internal/shotgen"
	"github.com/okian/xpoints/pkg/logger"
)

func fastSettings() engine.Settings {
	s := engine.DefaultSettings()
	s.BoostRounds = 20
	s.ForestTrees = 15
	s.CVFolds = 3
	return s
}

func seed(ctx context.Context, store repository.Store, user, dataset string) int {
	n, err := service.Seed(ctx, store, user, dataset, shotgen.DefaultConfig())
	if err != nil {
		panic(err)
	}
	return n
}

func newService(store repository.Store) *service.Service {
	return service.New(
		service.WithStore(store),
		service.WithSettings(fastSettings()),
		service.WithWorkerCount(1),
		service.WithLogger(logger.Nop()),
	)
}

func waitDone(ctx context.Context, svc *service.Service, id string) types.Job {
	deadline := time.Now().Add(time.Minute)
	for time.Now().Before(deadline) {
		j, err := svc.Job(ctx, id)
		if err == nil && j.Done() {
			return j
		}
		time.Sleep(20 * time.Millisecond)
	}
	j, _ := svc.Job(ctx, id)
	return j
}

func TestService(t *testing.T) {
	Convey("Given a started service over a seeded store", t, func() {
		ctx := context.Background()
		store := repository.NewInMemoryStore()
		games := seed(ctx, store, "u1", "2024")
		svc := newService(store)
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = svc.Stop(ctx) })

		req := types.RecalculateRequest{UserID: "u1", TrainingDataset: "2024"}

		Convey("When recalculating synchronously", func() {
			sum, err := svc.Recalculate(ctx, req)

			Convey("Then every game is annotated", func() {
				So(err, ShouldBeNil)
				So(sum.Status, ShouldEqual, types.StatusSuccess)
				So(sum.GamesUpdated, ShouldEqual, games)
			})

			Convey("Then the leaderboard is stored", func() {
				table, err := svc.Leaderboard(ctx, "u1", "2024")
				So(err, ShouldBeNil)
				So(table.Len(), ShouldEqual, sum.LeaderboardSize)
			})

			Convey("Then the dataset is released", func() {
				So(svc.GetStats()["inFlight"], ShouldEqual, int64(0))
			})

			Convey("Then importing the dataset again drops its cached model", func() {
				So(svc.GetStats()["cachedArtifacts"], ShouldEqual, 1)
				n, err := svc.Import(ctx, "u1", "2024", shotgen.DefaultConfig())
				So(err, ShouldBeNil)
				So(n, ShouldEqual, games)
				So(svc.GetStats()["cachedArtifacts"], ShouldEqual, 0)

				again, err := svc.Recalculate(ctx, req)
				So(err, ShouldBeNil)
				So(again.CachedModel, ShouldBeFalse)
			})
		})

		Convey("When a job is submitted", func() {
			job, err := svc.Submit(ctx, req)
			So(err, ShouldBeNil)
			So(job.State, ShouldEqual, types.JobQueued)
			So(job.ID, ShouldNotBeEmpty)

			Convey("Then a second claim on the dataset is refused while it runs", func() {
				_, err := svc.Submit(ctx, req)
				So(errors.Is(err, dedupe.ErrInFlight), ShouldBeTrue)
				_, err = svc.Recalculate(ctx, req)
				So(errors.Is(err, dedupe.ErrInFlight), ShouldBeTrue)
				waitDone(ctx, svc, job.ID)
			})

			Convey("Then it succeeds with a summary", func() {
				done := waitDone(ctx, svc, job.ID)
				So(done.State, ShouldEqual, types.JobSucceeded)
				So(done.Summary, ShouldNotBeNil)
				So(done.Summary.GamesUpdated, ShouldEqual, games)
				So(done.Percent, ShouldEqual, 100)

				Convey("And the dataset can be claimed again", func() {
					again, err := svc.Submit(ctx, req)
					So(err, ShouldBeNil)
					So(waitDone(ctx, svc, again.ID).State, ShouldEqual, types.JobSucceeded)
				})
			})
		})

		Convey("When the request is invalid", func() {
			_, err := svc.Submit(ctx, types.RecalculateRequest{UserID: "u1"})
			So(errors.Is(err, types.ErrInvalidRequest), ShouldBeTrue)
			_, err = svc.Recalculate(ctx, types.RecalculateRequest{TrainingDataset: "2024"})
			So(errors.Is(err, types.ErrInvalidRequest), ShouldBeTrue)
		})

		Convey("When reading a dataset that never ran", func() {
			_, err := svc.Leaderboard(ctx, "u1", "1999")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("Then the service is ready and reports stats", func() {
			So(svc.Ready(ctx), ShouldBeNil)
			stats := svc.GetStats()
			So(stats["started"], ShouldBeTrue)
			So(stats["workerCount"], ShouldEqual, 1)
			So(stats, ShouldContainKey, "queueLength")
		})
	})

	Convey("Given a service that was never started", t, func() {
		ctx := context.Background()
		svc := service.New()

		Convey("Then calls are refused", func() {
			_, err := svc.Submit(ctx, types.RecalculateRequest{UserID: "u1", TrainingDataset: "2024"})
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(errors.Is(svc.Ready(ctx), service.ErrNotStarted), ShouldBeTrue)
			So(svc.Stop(ctx), ShouldBeNil)
		})
	})
}

func TestOpenBackends(t *testing.T) {
	Convey("Given the default config", t, func() {
		ctx := context.Background()
		cfg := config.New()

		Convey("Then in-memory stores are built", func() {
			st, err := service.OpenStore(ctx, cfg, logger.Nop())
			So(err, ShouldBeNil)
			So(st, ShouldHaveSameTypeAs, &repository.InMemoryStore{})
			js, err := service.OpenJobStore(ctx, cfg, logger.Nop())
			So(err, ShouldBeNil)
			So(js, ShouldNotBeNil)
		})

		Convey("Then an unknown backend is rejected", func() {
			cfg.Store = "sqlite"
			_, err := service.OpenStore(ctx, cfg, logger.Nop())
			So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
			cfg.Jobs = "etcd"
			_, err = service.OpenJobStore(ctx, cfg, logger.Nop())
			So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("Then config options map onto the service", func() {
			cfg.WorkerCount = 3
			svc := service.New(service.FromConfig(cfg)...)
			So(svc.GetStats()["workerCount"], ShouldEqual, 3)
		})
	})
}
