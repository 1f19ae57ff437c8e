package features

// Option configures an Extractor.
type Option func(*Extractor)

// WithLongRangeThreshold sets the distance past which points count double.
func WithLongRangeThreshold(d float64) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.longRange = d
		}
	}
}

// WithCorpus sets the corpus statistics used for minute fill and outliers.
func WithCorpus(c Corpus) Option {
	return func(e *Extractor) {
		e.corpus = c
	}
}
