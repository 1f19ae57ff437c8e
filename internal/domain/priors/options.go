package priors

// Option configures an Estimator.
type Option func(*Estimator)

// WithMinSamples sets the attempts below which a player collapses to the
// global prior.
func WithMinSamples(n int) Option {
	return func(e *Estimator) {
		if n > 0 {
			e.minSamples = n
		}
	}
}

// WithMinPlayers sets how many distinct players must exceed for player
// priors to be used at all.
func WithMinPlayers(n int) Option {
	return func(e *Estimator) {
		if n >= 0 {
			e.minPlayers = n
		}
	}
}

// WithFormWindow sets how many recent shots recent form averages over.
func WithFormWindow(n int) Option {
	return func(e *Estimator) {
		if n > 0 {
			e.formWindow = n
		}
	}
}
