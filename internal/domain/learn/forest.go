package learn

import (
	"fmt"
	"math/rand"
)

const (
	defaultForestTrees   = 100
	defaultForestDepth   = 4
	defaultForestMinLeaf = 5
)

// Forest is a bagged ensemble of shallow probability trees, each grown on a
// bootstrap sample with a random feature subset per split.
type Forest struct {
	calibrated
	Trees    int
	MaxDepth int
	MinLeaf  int
	Balanced bool
	Seed     int64

	trees []*node
}

// NewForest returns 100 depth-4 trees with at least 5 rows per leaf.
func NewForest(seed int64) *Forest {
	return &Forest{
		Trees:    defaultForestTrees,
		MaxDepth: defaultForestDepth,
		MinLeaf:  defaultForestMinLeaf,
		Balanced: true,
		Seed:     seed,
	}
}

func (m *Forest) Name() string { return NameForest }

func (m *Forest) Fit(X [][]float64, y []int) error {
	if len(X) != len(y) {
		return fmt.Errorf("forest: %w", ErrShape)
	}
	if len(X) == 0 {
		return fmt.Errorf("forest: %w", ErrEmpty)
	}
	rng := rand.New(rand.NewSource(m.Seed))
	n := len(X)
	w := uniformWeights(n)
	if m.Balanced {
		w = balancedWeights(y)
	}
	labels := make([]float64, n)
	for i, v := range y {
		labels[i] = float64(v)
	}
	params := treeParams{
		maxDepth:    m.MaxDepth,
		minSplit:    2 * m.MinLeaf,
		minLeaf:     m.MinLeaf,
		maxFeatures: sqrtFeatures(len(X[0])),
	}

	m.trees = make([]*node, 0, m.Trees)
	for t := 0; t < m.Trees; t++ {
		rows := make([]int, n)
		for i := range rows {
			rows[i] = rng.Intn(n)
		}
		b := treeBuilder{
			X:      X,
			target: labels,
			weight: w,
			params: params,
			rng:    rng,
			leaf:   func(idx []int) float64 { return weightedMean(idx, labels, w) },
		}
		m.trees = append(m.trees, b.build(rows, 0))
	}
	return nil
}

func (m *Forest) raw(X [][]float64) []float64 {
	out := make([]float64, len(X))
	if len(m.trees) == 0 {
		for i := range out {
			out[i] = 0.5
		}
		return out
	}
	for i, row := range X {
		var s float64
		for _, t := range m.trees {
			s += t.eval(row)
		}
		out[i] = s / float64(len(m.trees))
	}
	return out
}

func (m *Forest) Predict(X [][]float64) []float64 {
	return m.apply(m.raw(X))
}

func (m *Forest) Calibrate(X [][]float64, y []int) error {
	return m.fit(m.raw(X), y)
}
