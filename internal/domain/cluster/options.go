package cluster

// Option configures an Estimator.
type Option func(*Estimator)

// WithSeed sets the random seed used for centroid seeding.
func WithSeed(seed int64) Option {
	return func(e *Estimator) {
		e.seed = seed
	}
}

// WithRestarts sets how many k-means runs are tried per k.
func WithRestarts(n int) Option {
	return func(e *Estimator) {
		if n > 0 {
			e.restarts = n
		}
	}
}

// WithKRange bounds the number of clusters.
func WithKRange(lo, hi int) Option {
	return func(e *Estimator) {
		if lo > 0 && hi >= lo {
			e.minK, e.maxK = lo, hi
		}
	}
}

// WithFixedK disables the adaptive default and the silhouette search below
// the search threshold.
func WithFixedK(k int) Option {
	return func(e *Estimator) {
		if k > 0 {
			e.fixedK = k
		}
	}
}

// WithSearchThreshold sets the corpus size from which k is searched by
// silhouette score.
func WithSearchThreshold(n int) Option {
	return func(e *Estimator) {
		if n > 0 {
			e.searchMin = n
		}
	}
}

// WithMaxIterations caps the Lloyd iterations per restart.
func WithMaxIterations(n int) Option {
	return func(e *Estimator) {
		if n > 0 {
			e.maxIter = n
		}
	}
}
