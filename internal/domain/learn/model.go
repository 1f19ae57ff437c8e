// Package learn contains the probability learners used to estimate scoring
// chances, the isotonic calibrator that corrects their output, and the
// trainer that blends them into a weighted ensemble.
package learn

import "math"

// ProbabilityModel estimates P(y=1|x) for binary targets.
type ProbabilityModel interface {
	// Name identifies the learner in metrics and logs.
	Name() string
	// Fit trains on rows X with 0/1 labels y.
	Fit(X [][]float64, y []int) error
	// Predict returns one probability per row.
	Predict(X [][]float64) []float64
	// Calibrate fits an isotonic correction of the model's own output
	// against the true labels of X.
	Calibrate(X [][]float64, y []int) error
}

// Learner names.
const (
	NameLogistic = "logistic"
	NameBoosted  = "boosted"
	NameForest   = "forest"
	NameDummy    = "dummy"
	NameEnsemble = "ensemble"
)

// calibrated wraps a raw scoring function with an optional isotonic map.
type calibrated struct {
	iso *Isotonic
}

func (c *calibrated) apply(p []float64) []float64 {
	if c.iso == nil {
		return p
	}
	return c.iso.Transform(p)
}

func (c *calibrated) fit(raw []float64, y []int) error {
	iso := NewIsotonic()
	if err := iso.Fit(raw, y); err != nil {
		return err
	}
	c.iso = iso
	return nil
}

// Dummy predicts a constant base rate. It stands in for real learners when
// the data cannot support them.
type Dummy struct {
	Rate float64
}

// NewDummy returns a dummy with no rate fitted yet.
func NewDummy() *Dummy { return &Dummy{Rate: 0.5} }

func (d *Dummy) Name() string { return NameDummy }

// Fit records the observed positive rate, 0.5 with no data.
func (d *Dummy) Fit(_ [][]float64, y []int) error {
	d.Rate = baseRate(y)
	return nil
}

func (d *Dummy) Predict(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i := range out {
		out[i] = d.Rate
	}
	return out
}

// Calibrate is a no-op; a constant is already calibrated to its own data.
func (d *Dummy) Calibrate(_ [][]float64, _ []int) error { return nil }

func baseRate(y []int) float64 {
	if len(y) == 0 {
		return 0.5
	}
	var pos int
	for _, v := range y {
		pos += v
	}
	return float64(pos) / float64(len(y))
}

func classCounts(y []int) (neg, pos int) {
	for _, v := range y {
		if v == 1 {
			pos++
		} else {
			neg++
		}
	}
	return neg, pos
}

// balancedWeights gives each class equal total weight: n / (2 * n_class).
func balancedWeights(y []int) []float64 {
	neg, pos := classCounts(y)
	w := make([]float64, len(y))
	n := float64(len(y))
	for i, v := range y {
		switch {
		case v == 1 && pos > 0:
			w[i] = n / (2 * float64(pos))
		case v != 1 && neg > 0:
			w[i] = n / (2 * float64(neg))
		default:
			w[i] = 1
		}
	}
	return w
}

func uniformWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return w
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func logit(p float64) float64 {
	p = math.Max(1e-6, math.Min(1-1e-6, p))
	return math.Log(p / (1 - p))
}
