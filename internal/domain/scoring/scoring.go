// Package scoring turns calibrated outcome probabilities into expected
// scoring value under the sport's rules.
package scoring

import (
	"math"

	"github.com/okian/xpoints/internal/domain/model"
)

// DefaultLongRange is the distance in metres beyond which a point is worth two.
const DefaultLongRange = 40.0

// Option applies a configuration option to the Composer.
type Option func(*Composer)

// WithLongRangeThreshold sets the distance beyond which points count double.
func WithLongRangeThreshold(d float64) Option {
	return func(c *Composer) {
		if d > 0 && !math.IsInf(d, 0) {
			c.longRange = d
		}
	}
}

// WithPrecision sets the number of decimals outputs are rounded to. Zero or
// negative disables rounding.
func WithPrecision(decimals int) Option {
	return func(c *Composer) { c.decimals = decimals }
}

// Input abstracts the shot fields needed for composing.
type Input struct {
	Key      model.Key
	PPoint   float64 // calibrated point probability
	PGoal    float64 // calibrated goal probability
	Distance float64
	Outcome  model.Outcome
	SetPlay  model.SetPlayType
	Cluster  int
}

// Composer computes expected values per shot.
type Composer struct {
	longRange float64
	decimals  int
}

// NewComposer creates a composer with the default long-range rule and four
// decimal rounding.
func NewComposer(opts ...Option) *Composer {
	c := &Composer{longRange: DefaultLongRange, decimals: 4}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LongRange returns the configured threshold.
func (c *Composer) LongRange() float64 { return c.longRange }

// Compose builds the annotation merged back onto a shot.
//
// The stored probabilities are never masked. XPointsFinal is zero for shots
// that were goals and XGoalsFinal is zero for shots that were points, so a
// goal never also counts towards expected points in comparisons.
//
// Probabilities are rounded before anything is derived from them, so the
// stored fields satisfy weighted = weight*xPoints and
// xP_adv = weighted + 3*xGoals exactly.
func (c *Composer) Compose(in Input) model.Annotation {
	long := in.Distance > c.longRange
	weight := model.PointValue
	if long {
		weight = model.LongRangePointValue
	}
	pPoint, pGoal := c.round(in.PPoint), c.round(in.PGoal)
	weighted := pPoint * weight

	a := model.Annotation{
		GameID:          in.Key.GameID,
		Index:           in.Key.Index,
		XPoints:         pPoint,
		XGoals:          pGoal,
		XPointsWeighted: weighted,
		XPAdv:           weighted + model.GoalValue*pGoal,
		ActualValue:     in.Outcome.Value(long),
		Category:        in.Outcome,
		ClusterID:       in.Cluster,
		SetPlayType:     in.SetPlay,
		LongRange:       long,
	}
	if !in.Outcome.IsGoal() {
		a.XPointsFinal = weighted
	}
	if !in.Outcome.IsPoint() {
		a.XGoalsFinal = pGoal
	}

	var actualPoints, actualGoals float64
	switch {
	case in.Outcome.IsPoint():
		actualPoints = weight
	case in.Outcome.IsGoal():
		actualGoals = model.GoalValue
	}
	a.XPointsContribution = actualPoints - a.XPointsFinal
	a.XGoalsContribution = actualGoals - model.GoalValue*a.XGoalsFinal
	return a
}

func (c *Composer) round(v float64) float64 {
	if c.decimals <= 0 {
		return v
	}
	pow := math.Pow(10, float64(c.decimals))
	return math.Round(v*pow) / pow
}
