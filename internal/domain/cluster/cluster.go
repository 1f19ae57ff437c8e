// Package cluster groups shots by difficulty profile with k-means and turns
// each group's empirical scoring rates into per-shot priors.
package cluster

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/okian/xpoints/internal/domain/features"
	"github.com/okian/xpoints/internal/domain/model"
)

const (
	defaultSeed       = 42
	defaultRestarts   = 10
	defaultMaxIter    = 300
	defaultMinK       = 3
	defaultMaxK       = 8
	defaultSearchMin  = 200
	defaultSampleCap  = 500
	defaultPerCluster = 250
	searchPerCluster  = 100
	convergence       = 1e-6
)

// Cluster summarises one group of shots.
type Cluster struct {
	ID           int     `json:"id"`
	Size         int     `json:"size"`
	MeanDistance float64 `json:"mean_distance"`
	MeanAngle    float64 `json:"mean_angle"`
	MeanPressure float64 `json:"mean_pressure"`
	SetPlayRatio float64 `json:"set_play_ratio"`
	PointRate    float64 `json:"point_rate"`
	GoalRate     float64 `json:"goal_rate"`
}

// Model is a fitted clustering. It is read-only once built and assigns
// unseen shots to the nearest trained centroid.
type Model struct {
	K          int
	Fallback   bool
	Silhouette float64
	Clusters   []Cluster
	centroids  [][]float64
	means      []float64
	stds       []float64
}

// Assign returns the cluster of a shot.
func (m *Model) Assign(d features.Derived) int {
	if m == nil || m.Fallback || len(m.centroids) == 0 {
		return 0
	}
	return nearest(m.standardize(point(d)), m.centroids)
}

// Rates returns the point and goal rates of a cluster.
func (m *Model) Rates(id int) (pointRate, goalRate float64) {
	if m == nil || id < 0 || id >= len(m.Clusters) {
		return 0, 0
	}
	c := m.Clusters[id]
	return c.PointRate, c.GoalRate
}

// Estimator fits clusterings.
type Estimator struct {
	seed      int64
	restarts  int
	maxIter   int
	minK      int
	maxK      int
	fixedK    int
	searchMin int
	sampleCap int
}

// NewEstimator returns an estimator with the defaults.
func NewEstimator(opts ...Option) *Estimator {
	e := &Estimator{
		seed:      defaultSeed,
		restarts:  defaultRestarts,
		maxIter:   defaultMaxIter,
		minK:      defaultMinK,
		maxK:      defaultMaxK,
		searchMin: defaultSearchMin,
		sampleCap: defaultSampleCap,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// point is the clustering subspace of a shot.
func point(d features.Derived) []float64 {
	setPlay := 0.0
	if d.SetPlay.IsSetPlay() {
		setPlay = 1
	}
	return []float64{d.Distance, d.AngleAbs, d.EffectivePressure, setPlay, d.PositionValue, d.TechnicalDifficulty}
}

// Fit clusters the shots and returns the model and each shot's assignment.
// It never fails; too little data yields a single corpus-wide cluster.
func (e *Estimator) Fit(shots []features.Derived) (*Model, []int) {
	n := len(shots)
	k := e.defaultK(n)
	if n < 3*k {
		return fallback(shots), make([]int, n)
	}

	m := &Model{}
	raw := make([][]float64, n)
	for i, d := range shots {
		raw[i] = point(d)
	}
	m.means, m.stds = columnStats(raw)
	data := make([][]float64, n)
	for i, r := range raw {
		data[i] = m.standardize(r)
	}

	rng := rand.New(rand.NewSource(e.seed))
	best := k
	var centroids [][]float64
	var labels []int
	if n >= e.searchMin {
		hi := max(e.minK, min(e.maxK, n/searchPerCluster))
		bestScore := math.Inf(-1)
		sample := sampleIndices(rng, n, e.sampleCap)
		for kk := e.minK; kk <= hi; kk++ {
			c, l := e.kmeans(rng, data, kk)
			s := silhouette(data, l, sample)
			if s > bestScore {
				bestScore, best, centroids, labels = s, kk, c, l
			}
		}
		m.Silhouette = bestScore
	} else {
		centroids, labels = e.kmeans(rng, data, k)
		m.Silhouette = silhouette(data, labels, sampleIndices(rng, n, e.sampleCap))
	}
	if centroids == nil {
		return fallback(shots), make([]int, n)
	}

	m.K = best
	m.centroids = centroids
	m.Clusters = summarize(shots, labels, best)
	return m, labels
}

func (e *Estimator) defaultK(n int) int {
	if e.fixedK > 0 {
		return e.fixedK
	}
	return min(e.maxK, max(e.minK, n/defaultPerCluster))
}

// kmeans runs k-means++ with restarts and keeps the lowest inertia.
func (e *Estimator) kmeans(rng *rand.Rand, data [][]float64, k int) ([][]float64, []int) {
	var bestC [][]float64
	var bestL []int
	bestInertia := math.Inf(1)
	for r := 0; r < e.restarts; r++ {
		c := seedCentroids(rng, data, k)
		labels := make([]int, len(data))
		prev := math.Inf(1)
		var inertia float64
		for it := 0; it < e.maxIter; it++ {
			inertia = assign(data, c, labels)
			c = recenter(rng, data, labels, k)
			if prev-inertia < convergence {
				break
			}
			prev = inertia
		}
		// labels must agree with the centroids Assign will use
		inertia = assign(data, c, labels)
		if inertia < bestInertia {
			bestInertia = inertia
			bestC = c
			bestL = append([]int(nil), labels...)
		}
	}
	return bestC, bestL
}

func seedCentroids(rng *rand.Rand, data [][]float64, k int) [][]float64 {
	c := make([][]float64, 0, k)
	c = append(c, clone(data[rng.Intn(len(data))]))
	d2 := make([]float64, len(data))
	for len(c) < k {
		var total float64
		for i, p := range data {
			dd := floats.Distance(p, c[nearest(p, c)], 2)
			d2[i] = dd * dd
			total += d2[i]
		}
		if total == 0 {
			c = append(c, clone(data[rng.Intn(len(data))]))
			continue
		}
		target := rng.Float64() * total
		idx := len(data) - 1
		for i, w := range d2 {
			target -= w
			if target <= 0 {
				idx = i
				break
			}
		}
		c = append(c, clone(data[idx]))
	}
	return c
}

// assign labels every point with its nearest centroid and returns the
// inertia.
func assign(data, c [][]float64, labels []int) float64 {
	var inertia float64
	for i, p := range data {
		labels[i] = nearest(p, c)
		dd := floats.Distance(p, c[labels[i]], 2)
		inertia += dd * dd
	}
	return inertia
}

func recenter(rng *rand.Rand, data [][]float64, labels []int, k int) [][]float64 {
	dim := len(data[0])
	c := make([][]float64, k)
	counts := make([]int, k)
	for j := range c {
		c[j] = make([]float64, dim)
	}
	for i, p := range data {
		floats.Add(c[labels[i]], p)
		counts[labels[i]]++
	}
	for j := range c {
		if counts[j] == 0 {
			c[j] = clone(data[rng.Intn(len(data))])
			continue
		}
		floats.Scale(1/float64(counts[j]), c[j])
	}
	return c
}

func nearest(p []float64, centroids [][]float64) int {
	best, bestD := 0, math.Inf(1)
	for j, c := range centroids {
		if d := floats.Distance(p, c, 2); d < bestD {
			best, bestD = j, d
		}
	}
	return best
}

// silhouette is the mean silhouette coefficient over the sampled points.
func silhouette(data [][]float64, labels []int, sample []int) float64 {
	var total float64
	var counted int
	for _, i := range sample {
		sums := map[int]float64{}
		counts := map[int]int{}
		for _, j := range sample {
			if i == j {
				continue
			}
			sums[labels[j]] += floats.Distance(data[i], data[j], 2)
			counts[labels[j]]++
		}
		if counts[labels[i]] == 0 {
			continue
		}
		a := sums[labels[i]] / float64(counts[labels[i]])
		b := math.Inf(1)
		for l, s := range sums {
			if l != labels[i] {
				b = math.Min(b, s/float64(counts[l]))
			}
		}
		if math.IsInf(b, 1) {
			continue
		}
		if d := math.Max(a, b); d > 0 {
			total += (b - a) / d
		}
		counted++
	}
	if counted == 0 {
		return -1
	}
	return total / float64(counted)
}

func sampleIndices(rng *rand.Rand, n, limit int) []int {
	if n <= limit {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	return rng.Perm(n)[:limit]
}

func summarize(shots []features.Derived, labels []int, k int) []Cluster {
	out := make([]Cluster, k)
	for j := range out {
		out[j].ID = j
	}
	for i, d := range shots {
		c := &out[labels[i]]
		c.Size++
		c.MeanDistance += d.Distance
		c.MeanAngle += d.AngleAbs
		c.MeanPressure += d.EffectivePressure
		if d.SetPlay.IsSetPlay() {
			c.SetPlayRatio++
		}
		switch d.Outcome {
		case model.Point:
			c.PointRate++
		case model.Goal:
			c.GoalRate++
		}
	}
	for j := range out {
		c := &out[j]
		if c.Size == 0 {
			continue
		}
		n := float64(c.Size)
		c.MeanDistance /= n
		c.MeanAngle /= n
		c.MeanPressure /= n
		c.SetPlayRatio /= n
		c.PointRate /= n
		c.GoalRate /= n
	}
	return out
}

// fallback is a single cluster holding the corpus means.
func fallback(shots []features.Derived) *Model {
	return &Model{
		K:        1,
		Fallback: true,
		Clusters: summarize(shots, make([]int, len(shots)), 1),
	}
}

func columnStats(rows [][]float64) (means, stds []float64) {
	dim := len(rows[0])
	means = make([]float64, dim)
	stds = make([]float64, dim)
	col := make([]float64, len(rows))
	for j := 0; j < dim; j++ {
		for i, r := range rows {
			col[i] = r[j]
		}
		means[j], stds[j] = stat.PopMeanStdDev(col, nil)
		if stds[j] == 0 || math.IsNaN(stds[j]) {
			stds[j] = 1
		}
	}
	return means, stds
}

func (m *Model) standardize(p []float64) []float64 {
	out := make([]float64, len(p))
	for j, v := range p {
		out[j] = (v - m.means[j]) / m.stds[j]
	}
	return out
}

func clone(p []float64) []float64 {
	return append([]float64(nil), p...)
}
