package learn

// Option configures a Trainer.
type Option func(*Trainer)

// WithSeed sets the seed every random draw in a training run derives from.
func WithSeed(seed int64) Option {
	return func(t *Trainer) { t.seed = seed }
}

// WithTestFraction sets the held-out share of rows.
func WithTestFraction(f float64) Option {
	return func(t *Trainer) {
		if f > 0 && f < 1 {
			t.testFraction = f
		}
	}
}

// WithSMOTENeighbours sets k for synthetic oversampling.
func WithSMOTENeighbours(k int) Option {
	return func(t *Trainer) {
		if k > 0 {
			t.smoteK = k
		}
	}
}

// WithImbalanceRatio sets the minority:majority ratio below which the
// training rows are rebalanced.
func WithImbalanceRatio(r float64) Option {
	return func(t *Trainer) {
		if r >= 0 {
			t.imbalanceRatio = r
		}
	}
}

// WithCVFolds sets the maximum number of cross-validation folds. Values
// below two disable cross-validation.
func WithCVFolds(k int) Option {
	return func(t *Trainer) { t.cvFolds = k }
}

// WithModelType selects the ensemble or a single learner.
func WithModelType(name string) Option {
	return func(t *Trainer) {
		switch name {
		case TypeEnsemble, TypeLogistic, TypeBoosted, TypeForest:
			t.modelType = name
		}
	}
}

// WithBoostRounds sets the number of boosting rounds.
func WithBoostRounds(n int) Option {
	return func(t *Trainer) {
		if n > 0 {
			t.boostRounds = n
		}
	}
}

// WithForestTrees sets the number of bagged trees.
func WithForestTrees(n int) Option {
	return func(t *Trainer) {
		if n > 0 {
			t.forestTrees = n
		}
	}
}
