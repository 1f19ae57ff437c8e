package learn

import (
	"fmt"
	"math"
)

// Ensemble blends calibrated members with fixed weights. Rows passed to it
// are raw feature rows; the ensemble applies its own scaler.
type Ensemble struct {
	Members   []ProbabilityModel
	Weights   []float64
	Scaler    *Scaler
	Threshold float64
}

// NewEnsemble builds an ensemble over members with equal weights.
func NewEnsemble(members ...ProbabilityModel) *Ensemble {
	e := &Ensemble{Members: members, Threshold: 0.5}
	e.equalWeights()
	return e
}

func (e *Ensemble) Name() string { return NameEnsemble }

// Fit scales X, fits every member and calibrates each on the same rows.
func (e *Ensemble) Fit(X [][]float64, y []int) error {
	if len(X) == 0 {
		return fmt.Errorf("ensemble: %w", ErrEmpty)
	}
	e.Scaler = FitScaler(X)
	sx := e.Scaler.Transform(X)
	for _, m := range e.Members {
		if err := m.Fit(sx, y); err != nil {
			return fmt.Errorf("ensemble member %s: %w", m.Name(), err)
		}
		if err := m.Calibrate(sx, y); err != nil {
			return fmt.Errorf("ensemble member %s: %w", m.Name(), err)
		}
	}
	e.equalWeights()
	return nil
}

// Predict returns the weighted mean of the members' calibrated output.
func (e *Ensemble) Predict(X [][]float64) []float64 {
	out := make([]float64, len(X))
	if len(e.Members) == 0 {
		for i := range out {
			out[i] = 0.5
		}
		return out
	}
	sx := X
	if e.Scaler != nil {
		sx = e.Scaler.Transform(X)
	}
	for k, m := range e.Members {
		p := m.Predict(sx)
		for i, v := range p {
			out[i] += e.Weights[k] * v
		}
	}
	return out
}

// Calibrate recalibrates every member against raw rows X.
func (e *Ensemble) Calibrate(X [][]float64, y []int) error {
	sx := X
	if e.Scaler != nil {
		sx = e.Scaler.Transform(X)
	}
	for _, m := range e.Members {
		if err := m.Calibrate(sx, y); err != nil {
			return fmt.Errorf("ensemble member %s: %w", m.Name(), err)
		}
	}
	return nil
}

// SetWeights assigns weights proportional to 1/score. Non-finite or
// non-positive totals fall back to equal weights.
func (e *Ensemble) SetWeights(scores []float64) {
	if len(scores) != len(e.Members) {
		e.equalWeights()
		return
	}
	w := make([]float64, len(scores))
	var total float64
	for i, s := range scores {
		w[i] = 1 / math.Max(s, 1e-6)
		total += w[i]
	}
	if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		e.equalWeights()
		return
	}
	for i := range w {
		w[i] /= total
	}
	e.Weights = w
}

// WeightMap returns member weights keyed by learner name.
func (e *Ensemble) WeightMap() map[string]float64 {
	out := make(map[string]float64, len(e.Members))
	for i, m := range e.Members {
		out[m.Name()] = e.Weights[i]
	}
	return out
}

func (e *Ensemble) equalWeights() {
	e.Weights = make([]float64, len(e.Members))
	for i := range e.Weights {
		e.Weights[i] = 1 / float64(len(e.Members))
	}
}
