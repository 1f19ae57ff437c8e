package learn

import (
	"math"
	"math/rand"
)

// Model types selectable per run.
const (
	TypeEnsemble = "ensemble"
	TypeLogistic = "logistic"
	TypeBoosted  = "boosted"
	TypeForest   = "forest"
)

// Resampling strategies applied before fitting.
const (
	ResampleNone  = "none"
	ResampleSMOTE = "smote"
	ResampleBasic = "resample"
)

const (
	minTrainRows  = 10
	cvMinRows     = 20
	cvRowsPerFold = 10
	trainBlend    = 0.3
	thresholdLo   = 0.1
	thresholdHi   = 0.9

	// offset of the importance stream from the run seed
	importanceSeed = 7919
)

// Result is the outcome of training one binary model.
type Result struct {
	Model      ProbabilityModel
	Metrics    Metrics
	Weights    map[string]float64
	Resampling string
	Degenerate bool

	// Importance is the permutation importance of each input column on the
	// held-out rows. Nil for degenerate models.
	Importance []float64

	// TestPred and TestY are the held-out predictions used for segment
	// calibration.
	TestPred []float64
	TestY    []int
	TestIdx  []int
}

// Trainer trains calibrated ensembles for one binary target.
type Trainer struct {
	seed           int64
	testFraction   float64
	smoteK         int
	imbalanceRatio float64
	cvFolds        int
	modelType      string
	boostRounds    int
	forestTrees    int
}

// NewTrainer returns a trainer with the defaults.
func NewTrainer(opts ...Option) *Trainer {
	t := &Trainer{
		seed:           42,
		testFraction:   0.25,
		smoteK:         5,
		imbalanceRatio: 0.3,
		cvFolds:        5,
		modelType:      TypeEnsemble,
		boostRounds:    defaultBoostRounds,
		forestTrees:    defaultForestTrees,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// members builds fresh, unfitted learners for the configured model type.
func (t *Trainer) members(seed int64) []ProbabilityModel {
	lr := NewLogistic()
	gb := NewBoosted(seed)
	gb.Rounds = t.boostRounds
	rf := NewForest(seed + 1)
	rf.Trees = t.forestTrees
	switch t.modelType {
	case TypeLogistic:
		return []ProbabilityModel{lr}
	case TypeBoosted:
		return []ProbabilityModel{gb}
	case TypeForest:
		return []ProbabilityModel{rf}
	default:
		return []ProbabilityModel{lr, gb, rf}
	}
}

// Train fits a model for labels y over raw rows X. It never fails: data
// that cannot support learners yields a Dummy at the observed base rate.
func (t *Trainer) Train(X [][]float64, y []int) Result {
	neg, pos := classCounts(y)
	if len(y) < minTrainRows || neg == 0 || pos == 0 {
		return t.dummy(y)
	}

	rng := rand.New(rand.NewSource(t.seed))
	split := TrainTestSplit(rng, y, t.testFraction)
	trX, trY := take(X, y, split.Train)
	teX, teY := take(X, y, split.Test)
	if n, p := classCounts(trY); n == 0 || p == 0 {
		return t.dummy(y)
	}

	scaler := FitScaler(trX)
	sTr := scaler.Transform(trX)
	sTe := scaler.Transform(teX)

	fitX, fitY, method := t.rebalance(rng, sTr, trY)
	var fitted []ProbabilityModel
	for _, m := range t.members(t.seed) {
		if err := m.Fit(fitX, fitY); err != nil {
			continue
		}
		// calibration reflects real base rates, never resampled ones
		if err := m.Calibrate(sTr, trY); err != nil {
			continue
		}
		fitted = append(fitted, m)
	}
	if len(fitted) == 0 {
		return t.dummy(y)
	}

	ens := &Ensemble{Members: fitted, Scaler: scaler}
	ens.SetWeights(t.scores(rng, fitted, sTr, trY, sTe, teY, split.Shared))

	trainPred := ens.Predict(trX)
	ens.Threshold = OptimalThreshold(trainPred, trY, 0.5, thresholdLo, thresholdHi)

	testPred := ens.Predict(teX)
	metrics := Evaluate(testPred, teY, ens.Threshold)
	metrics.TrainSamples = len(trY)
	imp := PermutationImportance(rand.New(rand.NewSource(t.seed+importanceSeed)), ens, teX, teY)

	return Result{
		Model:      ens,
		Metrics:    metrics,
		Weights:    ens.WeightMap(),
		Resampling: method,
		Importance: imp,
		TestPred:   testPred,
		TestY:      teY,
		TestIdx:    split.Test,
	}
}

// rebalance applies SMOTE or basic resampling when the minority class is
// badly outnumbered.
func (t *Trainer) rebalance(rng *rand.Rand, X [][]float64, y []int) ([][]float64, []int, string) {
	neg, pos := classCounts(y)
	if float64(min(neg, pos))/float64(max(neg, pos)) >= t.imbalanceRatio {
		return X, y, ResampleNone
	}
	if sx, sy, ok := SMOTE(rng, X, y, t.smoteK); ok {
		return sx, sy, ResampleSMOTE
	}
	rx, ry := Resample(rng, X, y)
	return rx, ry, ResampleBasic
}

// scores returns each member's blended Brier score: 0.3 on training rows and
// 0.7 on validation rows. Validation uses out-of-fold predictions when the
// training set supports cross-validation, the held-out split otherwise.
func (t *Trainer) scores(rng *rand.Rand, fitted []ProbabilityModel, trX [][]float64, trY []int, teX [][]float64, teY []int, shared bool) []float64 {
	oof := t.outOfFold(rng, fitted, trX, trY)
	out := make([]float64, len(fitted))
	for k, m := range fitted {
		train := Brier(m.Predict(trX), trY)
		val := train
		switch {
		case oof != nil:
			val = Brier(oof[k], trY)
		case !shared && len(teY) > 0:
			val = Brier(m.Predict(teX), teY)
		}
		s := trainBlend*train + (1-trainBlend)*val
		if math.IsNaN(s) {
			s = 1
		}
		out[k] = s
	}
	return out
}

func (t *Trainer) outOfFold(rng *rand.Rand, fitted []ProbabilityModel, X [][]float64, y []int) [][]float64 {
	neg, pos := classCounts(y)
	folds := max(2, min(t.cvFolds, len(y)/cvRowsPerFold))
	if t.cvFolds < 2 || len(y) <= cvMinRows || min(neg, pos) < folds {
		return nil
	}
	assign := StratifiedKFold(rng, y, folds)
	oof := make([][]float64, len(fitted))
	for k := range oof {
		oof[k] = make([]float64, len(y))
	}
	inFold := make([]int, len(y))
	for f, idx := range assign {
		for _, i := range idx {
			inFold[i] = f
		}
	}
	for f, testIdx := range assign {
		var trainIdx []int
		for i := range y {
			if inFold[i] != f {
				trainIdx = append(trainIdx, i)
			}
		}
		fx, fy := take(X, y, trainIdx)
		vx, _ := take(X, y, testIdx)
		if n, p := classCounts(fy); n == 0 || p == 0 {
			return nil
		}
		bx, by, _ := t.rebalance(rng, fx, fy)
		fresh := t.members(t.seed + int64(f+1)*100)
		for k, m := range fitted {
			pred := foldPredict(pick(fresh, m.Name()), m, bx, by, fx, fy, vx)
			for j, i := range testIdx {
				oof[k][i] = pred[j]
			}
		}
	}
	return oof
}

// foldPredict fits and calibrates a fresh candidate on one fold's training
// rows and predicts its validation rows. When the candidate is missing or
// cannot be fitted or calibrated the already fitted member predicts instead.
func foldPredict(cand, fitted ProbabilityModel, bx [][]float64, by []int, fx [][]float64, fy []int, vx [][]float64) []float64 {
	if cand == nil || cand.Fit(bx, by) != nil || cand.Calibrate(fx, fy) != nil {
		return fitted.Predict(vx)
	}
	return cand.Predict(vx)
}

func (t *Trainer) dummy(y []int) Result {
	d := NewDummy()
	_ = d.Fit(nil, y)
	pred := d.Predict(make([][]float64, len(y)))
	m := Evaluate(pred, y, 0.5)
	m.TrainSamples = len(y)
	return Result{
		Model:      d,
		Metrics:    m,
		Weights:    map[string]float64{NameDummy: 1},
		Resampling: ResampleNone,
		Degenerate: true,
		TestPred:   pred,
		TestY:      append([]int(nil), y...),
		TestIdx:    allIndices(len(y)),
	}
}

func pick(ms []ProbabilityModel, name string) ProbabilityModel {
	for _, m := range ms {
		if m.Name() == name {
			return m
		}
	}
	return nil
}
