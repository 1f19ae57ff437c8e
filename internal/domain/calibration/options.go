package calibration

// Option configures a Calibrator.
type Option func(*Calibrator)

// WithBounds sets the range the multiplicative factor is clamped to. Empty or
// inverted ranges are ignored.
func WithBounds(b Bounds) Option {
	return func(c *Calibrator) {
		if b.Min > 0 && b.Min <= b.Max {
			c.bounds = b
		}
	}
}

// WithPriorFactor anchors the factor to prior, blending in the observed ratio
// with weight 1-w once the segment has enough positives.
func WithPriorFactor(prior, w float64) Option {
	return func(c *Calibrator) {
		if prior > 0 && w >= 0 && w <= 1 {
			c.prior = prior
			c.priorWeight = w
		}
	}
}

// WithMinIsotonic sets the sample count needed before an isotonic curve is
// tried.
func WithMinIsotonic(n int) Option {
	return func(c *Calibrator) {
		if n > 0 {
			c.minIsotonic = n
		}
	}
}

// WithMinSubtype sets the held-out rows a set-play subtype needs to receive
// its own factor.
func WithMinSubtype(n int) Option {
	return func(c *Calibrator) {
		if n > 0 {
			c.minSubtype = n
		}
	}
}
