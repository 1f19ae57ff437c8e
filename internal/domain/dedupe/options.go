package dedupe

// Option applies a configuration option to the in-memory guard.
type Option func(*inMemoryGuard)

// WithMaxInFlight caps the number of concurrently claimed keys.
// If n <= 0 the guard is unbounded.
func WithMaxInFlight(n int) Option {
	return func(g *inMemoryGuard) {
		g.maxSize = n
	}
}
