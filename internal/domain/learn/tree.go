package learn

import (
	"math"
	"math/rand"
	"sort"
)

// treeParams bounds the growth of a regression tree.
type treeParams struct {
	maxDepth    int
	minSplit    int
	minLeaf     int
	maxFeatures int // 0 means all
}

type node struct {
	feature   int
	threshold float64
	left      *node
	right     *node
	value     float64
}

func (n *node) leaf() bool { return n.left == nil }

func (n *node) eval(row []float64) float64 {
	for !n.leaf() {
		if row[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

// leafFunc computes the value stored in a leaf from its member rows.
type leafFunc func(idx []int) float64

// treeBuilder grows weighted least-squares regression trees.
type treeBuilder struct {
	X      [][]float64
	target []float64
	weight []float64
	params treeParams
	rng    *rand.Rand
	leaf   leafFunc
}

func (b *treeBuilder) build(idx []int, depth int) *node {
	if depth >= b.params.maxDepth || len(idx) < b.params.minSplit {
		return &node{value: b.leaf(idx)}
	}
	feat, thr, ok := b.bestSplit(idx)
	if !ok {
		return &node{value: b.leaf(idx)}
	}
	var left, right []int
	for _, i := range idx {
		if b.X[i][feat] <= thr {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return &node{
		feature:   feat,
		threshold: thr,
		left:      b.build(left, depth+1),
		right:     b.build(right, depth+1),
	}
}

// bestSplit scans candidate features for the split with the largest
// weighted variance reduction that leaves at least minLeaf rows per side.
func (b *treeBuilder) bestSplit(idx []int) (feature int, threshold float64, ok bool) {
	dim := len(b.X[idx[0]])
	candidates := b.features(dim)

	var totW, totS, totQ float64
	for _, i := range idx {
		w, t := b.weight[i], b.target[i]
		totW += w
		totS += w * t
		totQ += w * t * t
	}
	if totW == 0 {
		return 0, 0, false
	}
	parent := totQ - totS*totS/totW
	bestGain := 1e-12

	order := make([]int, len(idx))
	for _, f := range candidates {
		copy(order, idx)
		sort.Slice(order, func(a, c int) bool { return b.X[order[a]][f] < b.X[order[c]][f] })
		var lw, ls, lq float64
		for k := 0; k < len(order)-1; k++ {
			i := order[k]
			w, t := b.weight[i], b.target[i]
			lw += w
			ls += w * t
			lq += w * t * t
			if k+1 < b.params.minLeaf || len(order)-k-1 < b.params.minLeaf {
				continue
			}
			cur, next := b.X[i][f], b.X[order[k+1]][f]
			if cur == next {
				continue
			}
			rw := totW - lw
			if lw <= 0 || rw <= 0 {
				continue
			}
			rs, rq := totS-ls, totQ-lq
			sse := (lq - ls*ls/lw) + (rq - rs*rs/rw)
			if gain := parent - sse; gain > bestGain {
				bestGain = gain
				feature = f
				threshold = (cur + next) / 2
				ok = true
			}
		}
	}
	return feature, threshold, ok
}

func (b *treeBuilder) features(dim int) []int {
	if b.params.maxFeatures <= 0 || b.params.maxFeatures >= dim {
		all := make([]int, dim)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return b.rng.Perm(dim)[:b.params.maxFeatures]
}

func weightedMean(idx []int, v, w []float64) float64 {
	var s, ws float64
	for _, i := range idx {
		s += w[i] * v[i]
		ws += w[i]
	}
	if ws == 0 {
		return 0
	}
	return s / ws
}

func sqrtFeatures(dim int) int {
	return max(1, int(math.Sqrt(float64(dim))))
}
