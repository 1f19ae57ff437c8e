package jobs

import "time"

type config struct {
	ttl    time.Duration
	prefix string
	now    func() time.Time
}

func defaults() config {
	return config{ttl: DefaultTTL, prefix: "xpoints:job:", now: time.Now}
}

// Option configures a job store.
type Option func(*config)

// WithTTL sets how long records live after their last update.
func WithTTL(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithKeyPrefix sets the Redis key prefix.
func WithKeyPrefix(p string) Option {
	return func(c *config) {
		if p != "" {
			c.prefix = p
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}
