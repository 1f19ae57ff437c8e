package learn

import (
	"fmt"
	"math/rand"
)

const (
	defaultBoostRounds    = 150
	defaultBoostRate      = 0.05
	defaultBoostDepth     = 3
	defaultBoostMinSplit  = 20
	defaultBoostSubsample = 0.8
)

// Boosted is gradient-boosted regression trees on log-loss with Newton leaf
// steps and row subsampling.
type Boosted struct {
	calibrated
	Rounds    int
	Rate      float64
	MaxDepth  int
	MinSplit  int
	Subsample float64
	Balanced  bool
	Seed      int64

	init  float64
	trees []*node
}

// NewBoosted returns a booster with 150 rounds of depth-3 trees at rate 0.05.
func NewBoosted(seed int64) *Boosted {
	return &Boosted{
		Rounds:    defaultBoostRounds,
		Rate:      defaultBoostRate,
		MaxDepth:  defaultBoostDepth,
		MinSplit:  defaultBoostMinSplit,
		Subsample: defaultBoostSubsample,
		Balanced:  true,
		Seed:      seed,
	}
}

func (m *Boosted) Name() string { return NameBoosted }

func (m *Boosted) Fit(X [][]float64, y []int) error {
	if len(X) != len(y) {
		return fmt.Errorf("boosted: %w", ErrShape)
	}
	if len(X) == 0 {
		return fmt.Errorf("boosted: %w", ErrEmpty)
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
	m.init = logit(weightedMean(allIndices(n), labels, w))
	m.trees = m.trees[:0]

	f := make([]float64, n)
	for i := range f {
		f[i] = m.init
	}
	resid := make([]float64, n)
	hess := make([]float64, n)
	size := max(1, int(m.Subsample*float64(n)))

	for r := 0; r < m.Rounds; r++ {
		for i := range f {
			p := sigmoid(f[i])
			resid[i] = labels[i] - p
			hess[i] = p * (1 - p)
		}
		rows := rng.Perm(n)[:size]
		b := treeBuilder{
			X:      X,
			target: resid,
			weight: w,
			params: treeParams{maxDepth: m.MaxDepth, minSplit: m.MinSplit, minLeaf: 1},
			rng:    rng,
			leaf: func(idx []int) float64 {
				var num, den float64
				for _, i := range idx {
					num += w[i] * resid[i]
					den += w[i] * hess[i]
				}
				if den < 1e-12 {
					return 0
				}
				return num / den
			},
		}
		t := b.build(rows, 0)
		m.trees = append(m.trees, t)
		for i, row := range X {
			f[i] += m.Rate * t.eval(row)
		}
	}
	return nil
}

func (m *Boosted) raw(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		f := m.init
		for _, t := range m.trees {
			f += m.Rate * t.eval(row)
		}
		out[i] = sigmoid(f)
	}
	return out
}

func (m *Boosted) Predict(X [][]float64) []float64 {
	return m.apply(m.raw(X))
}

func (m *Boosted) Calibrate(X [][]float64, y []int) error {
	return m.fit(m.raw(X), y)
}

func allIndices(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
