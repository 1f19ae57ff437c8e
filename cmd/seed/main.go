// Command seed writes a generated shot corpus into the configured game store
// and can trigger a recalculation on a running server.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "github.com/okian/xpoints/internal/app"
	"github.com/okian/xpoints/internal/config"
	"github.com/okian/xpoints/internal/domain/types"
	"github.com/okian/xpoints/internal/shotgen"
	"github.com/okian/xpoints/pkg/logger"
)

const (
	defaultTimeout = 30 * time.Second
	pollInterval   = time.Second
)

type options struct {
	user, dataset string
	gen           shotgen.Config
	skipStore     bool
	url           string
	wait          bool
	timeout       time.Duration
}

func main() {
	def := shotgen.DefaultConfig()
	var o options
	flag.StringVar(&o.user, "user", "demo", "User id owning the dataset")
	flag.StringVar(&o.dataset, "dataset", "demo", "Dataset name")
	flag.IntVar(&o.gen.Games, "games", def.Games, "Number of games to generate")
	flag.IntVar(&o.gen.ShotsPerGame, "shots", def.ShotsPerGame, "Shots per game")
	flag.IntVar(&o.gen.Players, "players", def.Players, "Distinct shooters")
	flag.Int64Var(&o.gen.Seed, "seed", def.Seed, "Generator seed")
	flag.Float64Var(&o.gen.SetPlayShare, "set-play", def.SetPlayShare, "Share of set-play shots")
	flag.Float64Var(&o.gen.MalformedShare, "malformed", 0, "Share of shots with unparseable coordinates")
	flag.BoolVar(&o.skipStore, "no-store", false, "Do not write games; only trigger a recalculation")
	flag.StringVar(&o.url, "url", "", "Base URL of a running server; when set a recalculation job is submitted")
	flag.BoolVar(&o.wait, "wait", true, "Poll the submitted job until it finishes")
	flag.DurationVar(&o.timeout, "timeout", defaultTimeout, "HTTP request timeout")
	flag.Parse()

	if err := logger.Init(logger.WithFormat("text")); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o, logger.Get()); err != nil {
		logger.Get().Error(ctx, "seed failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, o options, log logger.Logger) error {
	if !o.skipStore {
		cfg, err := config.Load(ctx)
		if err != nil {
			return err
		}
		if cfg.Store == config.BackendMemory {
			log.Warn(ctx, "store is memory; games will not outlive this process (set XPOINTS_STORE=mongo)")
		}
		store, err := app.OpenStore(ctx, cfg, log)
		if err != nil {
			return err
		}
		if c, ok := store.(interface{ Close(context.Context) error }); ok {
			defer func() { _ = c.Close(context.WithoutCancel(ctx)) }()
		}
		n, err := app.Seed(ctx, store, o.user, o.dataset, o.gen)
		if err != nil {
			return err
		}
		log.Info(ctx, "games written",
			logger.Int("games", n),
			logger.String("user_id", o.user),
			logger.String("dataset", o.dataset),
		)
	}
	if o.url == "" {
		return nil
	}

	c := &client{base: o.url, http: &http.Client{Timeout: o.timeout}}
	job, err := c.submit(ctx, types.RecalculateRequest{UserID: o.user, TrainingDataset: o.dataset})
	if err != nil {
		return err
	}
	log.Info(ctx, "job submitted", logger.String("job_id", job))
	if !o.wait {
		return nil
	}
	done, err := c.await(ctx, job, pollInterval)
	if err != nil {
		return err
	}
	if done.State == types.JobFailed {
		return fmt.Errorf("job %s failed: %s", done.ID, done.Error)
	}
	fields := []logger.Field{logger.String("job_id", done.ID)}
	if s := done.Summary; s != nil {
		fields = append(fields,
			logger.String("status", s.Status),
			logger.Int("shots", s.TotalShots),
			logger.Float64("xPointsTotal", s.XPointsTotal),
			logger.Float64("xGoalsTotal", s.XGoalsTotal),
			logger.Int("games_updated", s.GamesUpdated),
		)
	}
	log.Info(ctx, "job finished", fields...)
	return nil
}

type client struct {
	base string
	http *http.Client
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		var e apiError
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("%s %s: %d %s: %s", method, path, resp.StatusCode, e.Code, e.Message)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *client) submit(ctx context.Context, req types.RecalculateRequest) (string, error) {
	var resp struct {
		JobID string `json:"job_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/jobs", req, &resp); err != nil {
		return "", err
	}
	if resp.JobID == "" {
		return "", errors.New("server returned no job id")
	}
	return resp.JobID, nil
}

func (c *client) await(ctx context.Context, id string, every time.Duration) (types.Job, error) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		var job types.Job
		if err := c.do(ctx, http.MethodGet, "/v1/jobs/"+id, nil, &job); err != nil {
			return job, err
		}
		if job.Done() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-t.C:
		}
	}
}
