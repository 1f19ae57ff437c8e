package learn

import (
	"math"
	"math/rand"
)

// PermutationImportance returns, per column of X, how much the Brier score
// rises when that column is shuffled across rows. Rises below zero are
// reported as zero. Columns are shuffled in order from rng.
func PermutationImportance(rng *rand.Rand, m ProbabilityModel, X [][]float64, y []int) []float64 {
	if len(X) == 0 || len(X) != len(y) {
		return nil
	}
	width := len(X[0])
	base := Brier(m.Predict(X), y)

	shuffled := make([][]float64, len(X))
	for i, row := range X {
		shuffled[i] = append([]float64(nil), row...)
	}
	col := make([]float64, len(X))
	out := make([]float64, width)
	for j := 0; j < width; j++ {
		for i := range X {
			col[i] = X[i][j]
		}
		rng.Shuffle(len(col), func(a, b int) { col[a], col[b] = col[b], col[a] })
		for i := range shuffled {
			shuffled[i][j] = col[i]
		}
		out[j] = math.Max(0, Brier(m.Predict(shuffled), y)-base)
		for i := range shuffled {
			shuffled[i][j] = X[i][j]
		}
	}
	return out
}
