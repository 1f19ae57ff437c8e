package repository

import "time"

type mongoConfig struct {
	database     string
	games        string
	leaderboards string
	timeout      time.Duration
}

func defaultMongoConfig() mongoConfig {
	return mongoConfig{
		database:     "xpoints",
		games:        "games",
		leaderboards: "leaderboards",
		timeout:      10 * time.Second,
	}
}

// MongoOption applies a configuration option to the MongoStore.
type MongoOption func(*mongoConfig)

// WithDatabase sets the database name.
func WithDatabase(name string) MongoOption {
	return func(c *mongoConfig) {
		if name != "" {
			c.database = name
		}
	}
}

// WithGamesCollection sets the game documents collection.
func WithGamesCollection(name string) MongoOption {
	return func(c *mongoConfig) {
		if name != "" {
			c.games = name
		}
	}
}

// WithLeaderboardsCollection sets the leaderboards collection.
func WithLeaderboardsCollection(name string) MongoOption {
	return func(c *mongoConfig) {
		if name != "" {
			c.leaderboards = name
		}
	}
}

// WithOperationTimeout bounds every store operation.
func WithOperationTimeout(d time.Duration) MongoOption {
	return func(c *mongoConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// BreakerOption configures a BreakerStore.
type BreakerOption func(*breakerConfig)

type breakerConfig struct {
	name        string
	failures    uint32
	openTimeout time.Duration
	halfOpenMax uint32
}

// WithBreakerName names the breaker in logs and metrics.
func WithBreakerName(name string) BreakerOption {
	return func(c *breakerConfig) {
		if name != "" {
			c.name = name
		}
	}
}

// WithBreakerFailures sets the consecutive failures that open the breaker.
func WithBreakerFailures(n uint32) BreakerOption {
	return func(c *breakerConfig) {
		if n > 0 {
			c.failures = n
		}
	}
}

// WithBreakerTimeout sets how long the breaker stays open.
func WithBreakerTimeout(d time.Duration) BreakerOption {
	return func(c *breakerConfig) {
		if d > 0 {
			c.openTimeout = d
		}
	}
}
