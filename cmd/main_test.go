package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	app "github.com/okian/xpoints/internal/app"
	"github.com/okian/xpoints/internal/config"
	"github.com/okian/xpoints/internal/shotgen"
	"github.com/okian/xpoints/pkg/logger"
)

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		ctx := context.Background()

		convey.Convey("When testing configuration loading", func() {
			_ = os.Setenv("XPOINTS_ADDR", ":8080")
			_ = os.Setenv("XPOINTS_WORKER_COUNT", "4")
			defer func() {
				_ = os.Unsetenv("XPOINTS_ADDR")
				_ = os.Unsetenv("XPOINTS_WORKER_COUNT")
			}()

			cfg, err := config.Load(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
		})

		convey.Convey("When wiring the default service", func() {
			cfg := config.New()
			cfg.BoostRounds, cfg.ForestTrees, cfg.CVFolds = 20, 15, 3
			cfg.RateLimitRPS = 0
			svc, err := newService(ctx, cfg, logger.Nop())
			convey.So(err, convey.ShouldBeNil)
			convey.So(svc.Start(ctx), convey.ShouldBeNil)
			defer func() { _ = svc.Stop(ctx) }()

			_, err = svc.Import(ctx, demoID, demoID, shotgen.DefaultConfig())
			convey.So(err, convey.ShouldBeNil)
			mux := newMux(svc, cfg, logger.Nop())

			convey.Convey("Then health, docs and recalculation are served", func() {
				for _, path := range []string{"/healthz", "/openapi.yaml", "/api-docs", "/stats"} {
					w := httptest.NewRecorder()
					mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
					convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				}

				body := `{"user_id":"demo","training_dataset":"demo"}`
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/xpoints/recalculate", strings.NewReader(body)))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)

				w = httptest.NewRecorder()
				mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/leaderboard?user_id=demo&dataset=demo&view=overall", nil))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			})
		})

		convey.Convey("When testing system metrics update", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})

		convey.Convey("When the metrics updaters are cancelled", func() {
			cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
			defer cancel()
			convey.So(func() { startSystemMetricsUpdater(cctx) }, convey.ShouldNotPanic)
			convey.So(func() { startServiceMetricsUpdater(cctx, app.New()) }, convey.ShouldNotPanic)
		})
	})
}

func TestMainApplicationErrorHandling(t *testing.T) {
	convey.Convey("Given an invalid configuration", t, func() {
		_ = os.Setenv("XPOINTS_ADDR", "")
		defer func() { _ = os.Unsetenv("XPOINTS_ADDR") }()

		convey.Convey("Then configuration loading should fail", func() {
			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})
	})
}
