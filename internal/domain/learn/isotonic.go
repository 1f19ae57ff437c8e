package learn

import (
	"fmt"
	"sort"
)

// Isotonic is a monotone non-decreasing map from raw scores to probabilities
// fitted by pool-adjacent-violators. Inputs between knots are linearly
// interpolated; inputs outside the fitted range are clipped to the ends.
type Isotonic struct {
	xs []float64
	ys []float64
}

// NewIsotonic returns an unfitted calibrator.
func NewIsotonic() *Isotonic { return &Isotonic{} }

type block struct {
	sumX, sumY, weight float64
}

// Fit learns the map from raw scores to labels.
func (c *Isotonic) Fit(raw []float64, y []int) error {
	if len(raw) != len(y) {
		return fmt.Errorf("isotonic: %w", ErrShape)
	}
	if len(raw) == 0 {
		return fmt.Errorf("isotonic: %w", ErrEmpty)
	}
	idx := make([]int, len(raw))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return raw[idx[a]] < raw[idx[b]] })

	// ties share a block before pooling
	blocks := make([]block, 0, len(raw))
	for _, i := range idx {
		n := len(blocks)
		if n > 0 && blocks[n-1].sumX/blocks[n-1].weight == raw[i] {
			blocks[n-1].sumX += raw[i]
			blocks[n-1].sumY += float64(y[i])
			blocks[n-1].weight++
			continue
		}
		blocks = append(blocks, block{sumX: raw[i], sumY: float64(y[i]), weight: 1})
	}

	stack := make([]block, 0, len(blocks))
	for _, b := range blocks {
		stack = append(stack, b)
		for len(stack) > 1 {
			top, prev := stack[len(stack)-1], stack[len(stack)-2]
			if prev.sumY/prev.weight <= top.sumY/top.weight {
				break
			}
			stack = stack[:len(stack)-2]
			stack = append(stack, block{
				sumX:   prev.sumX + top.sumX,
				sumY:   prev.sumY + top.sumY,
				weight: prev.weight + top.weight,
			})
		}
	}

	c.xs = make([]float64, len(stack))
	c.ys = make([]float64, len(stack))
	for i, b := range stack {
		c.xs[i] = b.sumX / b.weight
		c.ys[i] = b.sumY / b.weight
	}
	return nil
}

// Fitted reports whether Fit succeeded.
func (c *Isotonic) Fitted() bool { return len(c.xs) > 0 }

// Value maps a single raw score.
func (c *Isotonic) Value(p float64) float64 {
	n := len(c.xs)
	switch {
	case n == 0:
		return p
	case p <= c.xs[0]:
		return c.ys[0]
	case p >= c.xs[n-1]:
		return c.ys[n-1]
	}
	i := sort.SearchFloat64s(c.xs, p)
	x0, x1 := c.xs[i-1], c.xs[i]
	y0, y1 := c.ys[i-1], c.ys[i]
	if x1 == x0 {
		return y1
	}
	return y0 + (p-x0)/(x1-x0)*(y1-y0)
}

// Transform maps a batch of raw scores.
func (c *Isotonic) Transform(p []float64) []float64 {
	out := make([]float64, len(p))
	for i, v := range p {
		out[i] = c.Value(v)
	}
	return out
}
