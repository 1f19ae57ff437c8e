package config_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/xpoints/internal/config"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("XPOINTS_ADDR", ":8080")
			_ = os.Setenv("XPOINTS_QUEUE_SIZE", "1000")
			_ = os.Setenv("XPOINTS_WORKER_COUNT", "8")
			_ = os.Setenv("XPOINTS_TASK_TIMEOUT", "5m")
			_ = os.Setenv("XPOINTS_LONG_RANGE", "45")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 8)
				convey.So(cfg.TaskTimeout, convey.ShouldEqual, 5*time.Minute)
				convey.So(cfg.Settings().LongRange, convey.ShouldEqual, 45)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
queue_size: 512
worker_count: 4
store: mongo
mongo_uri: "mongodb://db:27017"
mongo_collection: shots
boost_rounds: 80
`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("XPOINTS_CONFIG", tmpFile)
			_ = os.Setenv("XPOINTS_WORKER_COUNT", "6")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 512)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 6)
				convey.So(cfg.Store, convey.ShouldEqual, config.BackendMongo)
				convey.So(cfg.MongoCollection, convey.ShouldEqual, "shots")
				convey.So(cfg.BoostRounds, convey.ShouldEqual, 80)
				convey.So(cfg.MinSamples, convey.ShouldEqual, config.New().MinSamples)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("XPOINTS_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("XPOINTS_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When the loaded values are invalid", func() {
			_ = os.Setenv("XPOINTS_STORE", "mongo")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "mongo_uri")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func clearConfigEnvVars() {
	for _, envVar := range []string{
		"XPOINTS_CONFIG",
		"XPOINTS_ADDR",
		"XPOINTS_QUEUE_SIZE",
		"XPOINTS_WORKER_COUNT",
		"XPOINTS_TASK_TIMEOUT",
		"XPOINTS_LONG_RANGE",
		"XPOINTS_STORE",
	} {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "xpoints-config-*.yaml")
	if err != nil {
		panic(err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	if err := tmpFile.Close(); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}
