package learn

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
)

const (
	stratifyMinClass = 5
	shuffleMinRows   = 20
	smoteMinRows     = 10
	resampleFloor    = 50
	majorityRatio    = 1.5
)

// Split is a train/test partition of row indices.
type Split struct {
	Train []int
	Test  []int
	// Shared is set when the data was too small to hold anything out and
	// train and test are the same rows.
	Shared bool
}

// TrainTestSplit holds out testFrac of the rows. The split is stratified when
// both classes have more than five rows, a plain shuffle when there are more
// than twenty rows, and otherwise reuses all rows for both sides.
func TrainTestSplit(rng *rand.Rand, y []int, testFrac float64) Split {
	n := len(y)
	neg, pos := classCounts(y)
	switch {
	case min(neg, pos) > stratifyMinClass:
		var s Split
		for _, class := range []int{0, 1} {
			var idx []int
			for i, v := range y {
				if v == class {
					idx = append(idx, i)
				}
			}
			rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
			cut := int(math.Round(testFrac * float64(len(idx))))
			s.Test = append(s.Test, idx[:cut]...)
			s.Train = append(s.Train, idx[cut:]...)
		}
		sort.Ints(s.Train)
		sort.Ints(s.Test)
		return s
	case n > shuffleMinRows:
		idx := rng.Perm(n)
		cut := int(math.Round(testFrac * float64(n)))
		s := Split{Test: idx[:cut], Train: idx[cut:]}
		sort.Ints(s.Train)
		sort.Ints(s.Test)
		return s
	default:
		all := allIndices(n)
		return Split{Train: all, Test: all, Shared: true}
	}
}

// StratifiedKFold assigns each row to one of k folds keeping class
// proportions. It returns the test indices of each fold.
func StratifiedKFold(rng *rand.Rand, y []int, k int) [][]int {
	folds := make([][]int, k)
	for _, class := range []int{0, 1} {
		var idx []int
		for i, v := range y {
			if v == class {
				idx = append(idx, i)
			}
		}
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		for j, i := range idx {
			folds[j%k] = append(folds[j%k], i)
		}
	}
	for _, f := range folds {
		sort.Ints(f)
	}
	return folds
}

// SMOTE adds synthetic minority rows by interpolating each sampled minority
// row toward one of its k nearest minority neighbours until the classes are
// balanced. It reports false when the minority is too small to support k
// neighbours, in which case callers fall back to Resample.
func SMOTE(rng *rand.Rand, X [][]float64, y []int, k int) ([][]float64, []int, bool) {
	neg, pos := classCounts(y)
	minority := 1
	if pos > neg {
		minority = 0
	}
	nMin, nMaj := min(neg, pos), max(neg, pos)
	if nMin < k+1 || len(y) <= smoteMinRows || nMin == nMaj {
		return X, y, false
	}

	var minIdx []int
	for i, v := range y {
		if v == minority {
			minIdx = append(minIdx, i)
		}
	}
	neighbours := make([][]int, len(minIdx))
	for a, i := range minIdx {
		type cand struct {
			j int
			d float64
		}
		cands := make([]cand, 0, len(minIdx)-1)
		for b, j := range minIdx {
			if a != b {
				cands = append(cands, cand{j: j, d: floats.Distance(X[i], X[j], 2)})
			}
		}
		sort.SliceStable(cands, func(p, q int) bool { return cands[p].d < cands[q].d })
		for _, c := range cands[:k] {
			neighbours[a] = append(neighbours[a], c.j)
		}
	}

	outX := append([][]float64(nil), X...)
	outY := append([]int(nil), y...)
	for s := 0; s < nMaj-nMin; s++ {
		a := rng.Intn(len(minIdx))
		base := X[minIdx[a]]
		nb := X[neighbours[a][rng.Intn(k)]]
		gap := rng.Float64()
		row := make([]float64, len(base))
		for j := range row {
			row[j] = base[j] + gap*(nb[j]-base[j])
		}
		outX = append(outX, row)
		outY = append(outY, minority)
	}
	return outX, outY, true
}

// Resample oversamples the minority with replacement to
// min(majority, max(2*minority, 50)) rows and downsamples the majority to
// at most 1.5 times that.
func Resample(rng *rand.Rand, X [][]float64, y []int) ([][]float64, []int) {
	neg, pos := classCounts(y)
	if neg == 0 || pos == 0 {
		return X, y
	}
	minority := 1
	if pos > neg {
		minority = 0
	}
	var minIdx, majIdx []int
	for i, v := range y {
		if v == minority {
			minIdx = append(minIdx, i)
		} else {
			majIdx = append(majIdx, i)
		}
	}
	target := min(len(majIdx), max(2*len(minIdx), resampleFloor))
	majTarget := min(len(majIdx), int(majorityRatio*float64(target)))

	outX := make([][]float64, 0, target+majTarget)
	outY := make([]int, 0, target+majTarget)
	for s := 0; s < target; s++ {
		i := minIdx[rng.Intn(len(minIdx))]
		outX = append(outX, X[i])
		outY = append(outY, minority)
	}
	perm := rng.Perm(len(majIdx))[:majTarget]
	sort.Ints(perm)
	for _, p := range perm {
		i := majIdx[p]
		outX = append(outX, X[i])
		outY = append(outY, 1-minority)
	}
	return outX, outY
}

func take(X [][]float64, y []int, idx []int) ([][]float64, []int) {
	outX := make([][]float64, len(idx))
	outY := make([]int, len(idx))
	for k, i := range idx {
		outX[k] = X[i]
		outY[k] = y[i]
	}
	return outX, outY
}
