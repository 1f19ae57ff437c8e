package learn

import (
	"math"
	"sort"
)

// Metrics summarises a model's held-out performance.
type Metrics struct {
	Accuracy         float64 `json:"accuracy"`
	Precision        float64 `json:"precision"`
	Recall           float64 `json:"recall"`
	F1               float64 `json:"f1"`
	ROCAUC           float64 `json:"roc_auc"`
	Brier            float64 `json:"brier_score"`
	OptimalThreshold float64 `json:"optimal_threshold"`
	TrainSamples     int     `json:"train_samples"`
	TestSamples      int     `json:"test_samples"`
	Positives        int     `json:"positives"`
}

// Brier is the mean squared error between probabilities and labels.
func Brier(p []float64, y []int) float64 {
	if len(p) == 0 {
		return 0
	}
	var s float64
	for i, v := range p {
		d := v - float64(y[i])
		s += d * d
	}
	return s / float64(len(p))
}

type confusion struct{ tp, fp, tn, fn float64 }

func confuse(p []float64, y []int, threshold float64) confusion {
	var c confusion
	for i, v := range p {
		pred := v >= threshold
		switch {
		case pred && y[i] == 1:
			c.tp++
		case pred:
			c.fp++
		case y[i] == 1:
			c.fn++
		default:
			c.tn++
		}
	}
	return c
}

func (c confusion) precision() float64 {
	if c.tp+c.fp == 0 {
		return 0
	}
	return c.tp / (c.tp + c.fp)
}

func (c confusion) recall() float64 {
	if c.tp+c.fn == 0 {
		return 0
	}
	return c.tp / (c.tp + c.fn)
}

func (c confusion) f1() float64 {
	p, r := c.precision(), c.recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

func (c confusion) accuracy() float64 {
	n := c.tp + c.fp + c.tn + c.fn
	if n == 0 {
		return 0
	}
	return (c.tp + c.tn) / n
}

// ROCAUC is the probability that a random positive scores above a random
// negative, with ties counted half. It is 0.5 when either class is absent.
func ROCAUC(p []float64, y []int) float64 {
	neg, pos := classCounts(y)
	if neg == 0 || pos == 0 {
		return 0.5
	}
	idx := allIndices(len(p))
	sort.SliceStable(idx, func(a, b int) bool { return p[idx[a]] < p[idx[b]] })
	// average ranks over ties
	ranks := make([]float64, len(p))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && p[idx[j+1]] == p[idx[i]] {
			j++
		}
		r := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = r
		}
		i = j + 1
	}
	var sum float64
	for i, v := range y {
		if v == 1 {
			sum += ranks[i]
		}
	}
	np, nn := float64(pos), float64(neg)
	return (sum - np*(np+1)/2) / (np * nn)
}

// OptimalThreshold scans 100 evenly spaced cut-offs in [lo, hi] and returns
// the one with the best F1, def when no cut-off yields a positive F1.
func OptimalThreshold(p []float64, y []int, def, lo, hi float64) float64 {
	best, bestF := def, 0.0
	const steps = 100
	for s := 0; s < steps; s++ {
		t := lo + (hi-lo)*float64(s)/float64(steps-1)
		if f := confuse(p, y, t).f1(); f > bestF+1e-12 {
			best, bestF = t, f
		}
	}
	return best
}

// Evaluate computes classification metrics at the given threshold.
func Evaluate(p []float64, y []int, threshold float64) Metrics {
	c := confuse(p, y, threshold)
	_, pos := classCounts(y)
	return Metrics{
		Accuracy:         c.accuracy(),
		Precision:        c.precision(),
		Recall:           c.recall(),
		F1:               c.f1(),
		ROCAUC:           ROCAUC(p, y),
		Brier:            Brier(p, y),
		OptimalThreshold: threshold,
		TestSamples:      len(y),
		Positives:        pos,
	}
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// Rounded returns the metrics rounded to four decimals for reporting.
func (m Metrics) Rounded() Metrics {
	m.Accuracy = round4(m.Accuracy)
	m.Precision = round4(m.Precision)
	m.Recall = round4(m.Recall)
	m.F1 = round4(m.F1)
	m.ROCAUC = round4(m.ROCAUC)
	m.Brier = round4(m.Brier)
	m.OptimalThreshold = round4(m.OptimalThreshold)
	return m
}
