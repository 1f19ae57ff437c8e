package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/xpoints/internal/config"
	"github.com/okian/xpoints/internal/domain/engine"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 256)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 2)
			convey.So(cfg.Store, convey.ShouldEqual, config.BackendMemory)
			convey.So(cfg.Jobs, convey.ShouldEqual, config.BackendMemory)
			convey.So(cfg.JobTTL, convey.ShouldEqual, 24*time.Hour)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then its engine settings are the engine defaults", func() {
			convey.So(cfg.Settings(), convey.ShouldResemble, engine.DefaultSettings())
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a valid config", t, func() {
		cfg := config.New()

		cases := map[string]func(*config.Config){
			"empty addr":             func(c *config.Config) { c.Addr = "" },
			"no workers":             func(c *config.Config) { c.WorkerCount = 0 },
			"no queue":               func(c *config.Config) { c.QueueSize = 0 },
			"negative min samples":   func(c *config.Config) { c.MinSamples = -1 },
			"zero long range":        func(c *config.Config) { c.LongRange = 0 },
			"inverted point bounds":  func(c *config.Config) { c.PointFactorMin, c.PointFactorMax = 2, 1 },
			"inverted goal bounds":   func(c *config.Config) { c.GoalFactorMin, c.GoalFactorMax = 0.9, 0.3 },
			"unknown store":          func(c *config.Config) { c.Store = "postgres" },
			"mongo without uri":      func(c *config.Config) { c.Store = config.BackendMongo },
			"unknown jobs backend":   func(c *config.Config) { c.Jobs = "etcd" },
			"redis without address":  func(c *config.Config) { c.Jobs = config.BackendRedis },
			"unknown model type":     func(c *config.Config) { c.ModelType = "svm" },
			"zero leaderboard limit": func(c *config.Config) { c.MaxLeaderboardLimit = 0 },
		}
		for name, mutate := range cases {
			convey.Convey("Then it rejects "+name, func() {
				mutate(cfg)
				err := cfg.Validate()
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}

		convey.Convey("Then it accepts a complete mongo and redis setup", func() {
			cfg.Store, cfg.MongoURI = config.BackendMongo, "mongodb://localhost:27017"
			cfg.Jobs, cfg.RedisAddr = config.BackendRedis, "localhost:6379"
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
