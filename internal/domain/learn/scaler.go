package learn

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

const scaleClip = 5

// Scaler standardises columns to zero mean and unit variance, clipping the
// result to +/-5. Constant columns pass through centred.
type Scaler struct {
	Means []float64
	Stds  []float64
}

// FitScaler learns column statistics from X.
func FitScaler(X [][]float64) *Scaler {
	if len(X) == 0 {
		return &Scaler{}
	}
	dim := len(X[0])
	s := &Scaler{Means: make([]float64, dim), Stds: make([]float64, dim)}
	col := make([]float64, len(X))
	for j := 0; j < dim; j++ {
		for i, row := range X {
			col[i] = row[j]
		}
		s.Means[j], s.Stds[j] = stat.PopMeanStdDev(col, nil)
		if s.Stds[j] < 1e-10 || math.IsNaN(s.Stds[j]) {
			s.Stds[j] = 1
		}
	}
	return s
}

// Transform returns a scaled copy of X.
func (s *Scaler) Transform(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = s.Row(row)
	}
	return out
}

// Row scales a single row.
func (s *Scaler) Row(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		if j >= len(s.Means) {
			out[j] = v
			continue
		}
		z := (v - s.Means[j]) / s.Stds[j]
		out[j] = math.Max(-scaleClip, math.Min(scaleClip, z))
	}
	return out
}
