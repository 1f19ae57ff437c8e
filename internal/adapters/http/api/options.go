package api

import "github.com/okian/xpoints/pkg/logger"

const (
	defaultMaxLimit = 500
	defaultRPS      = 5
	defaultBurst    = 10
)

type config struct {
	maxLimit int
	rps      float64
	burst    int
	logger   logger.Logger
}

func defaultConfig() config {
	return config{
		maxLimit: defaultMaxLimit,
		rps:      defaultRPS,
		burst:    defaultBurst,
		logger:   logger.Nop(),
	}
}

// Option configures the Server.
type Option func(*config)

// WithMaxLimit caps the leaderboard page size.
func WithMaxLimit(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxLimit = n
		}
	}
}

// WithRateLimit sets the per-client submission rate. A non-positive rps
// disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *config) {
		c.rps = rps
		if burst > 0 {
			c.burst = burst
		}
	}
}

// WithLogger sets the logger used for recovered panics and unexpected
// handler errors.
func WithLogger(l logger.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}
