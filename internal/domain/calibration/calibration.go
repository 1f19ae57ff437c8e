// Package calibration rescales ensemble probabilities per shot segment so that
// predicted and observed rates agree on held-out data.
package calibration

import (
	"math"

	"github.com/okian/xpoints/internal/domain/learn"
	"github.com/okian/xpoints/internal/domain/model"
)

// Probability limits every calibrated value is clipped to.
const (
	ProbMin = 0.01
	ProbMax = 0.99
)

// Bounds is the closed range a segment factor is clamped to.
type Bounds struct {
	Min float64 `json:"min" koanf:"min"`
	Max float64 `json:"max" koanf:"max"`
}

// Default factor ranges. Goals are rare and tend to be overpredicted, so
// their range is narrower and lower.
var (
	PointBounds = Bounds{Min: 0.5, Max: 2.0}
	GoalBounds  = Bounds{Min: 0.3, Max: 0.9}
)

// DefaultGoalPrior is the anchor factor for goal segments.
const (
	DefaultGoalPrior       = 0.95
	DefaultGoalPriorWeight = 0.7
)

const (
	priorMinSamples   = 10
	priorMinPositives = 3
)

// Clamp limits v to the bounds.
func (b Bounds) Clamp(v float64) float64 {
	return math.Max(b.Min, math.Min(b.Max, v))
}

// Clip limits a probability to [ProbMin, ProbMax]. NaN maps to ProbMin.
func Clip(p float64) float64 {
	if math.IsNaN(p) {
		return ProbMin
	}
	return math.Max(ProbMin, math.Min(ProbMax, p))
}

// Segment is the fitted calibration for one group of shots.
type Segment struct {
	Name          string  `json:"name"`
	Factor        float64 `json:"factor"`
	UseIsotonic   bool    `json:"use_isotonic"`
	Samples       int     `json:"samples"`
	Observed      float64 `json:"observed_rate"`
	Predicted     float64 `json:"predicted_rate"`
	BrierFactor   float64 `json:"brier_factor"`
	BrierIsotonic float64 `json:"brier_isotonic,omitempty"`

	iso *learn.Isotonic
}

// Identity returns a segment that leaves probabilities unchanged apart from
// clipping.
func Identity(name string) Segment {
	return Segment{Name: name, Factor: 1}
}

// Apply calibrates a raw ensemble probability.
func (s Segment) Apply(p float64) float64 {
	if s.UseIsotonic && s.iso != nil {
		return Clip(s.iso.Value(p))
	}
	return Clip(p * s.Factor)
}

// Calibrator fits segments under one set of bounds.
type Calibrator struct {
	bounds      Bounds
	prior       float64
	priorWeight float64
	minIsotonic int
	minSubtype  int
}

// New returns a calibrator using the point bounds unless configured otherwise.
func New(opts ...Option) *Calibrator {
	c := &Calibrator{
		bounds:      PointBounds,
		minIsotonic: 20,
		minSubtype:  20,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewGoals returns a calibrator with goal bounds anchored to the goal prior.
func NewGoals(opts ...Option) *Calibrator {
	base := []Option{WithBounds(GoalBounds), WithPriorFactor(DefaultGoalPrior, DefaultGoalPriorWeight)}
	return New(append(base, opts...)...)
}

// Bounds returns the configured factor range.
func (c *Calibrator) Bounds() Bounds { return c.bounds }

// Fit builds a segment from held-out predictions and outcomes. It never
// fails: an empty segment yields the clamped identity factor and a failed
// isotonic fit leaves the factor in place.
func (c *Calibrator) Fit(name string, pred []float64, obs []int) Segment {
	seg := Segment{Name: name, Samples: len(pred)}
	if len(pred) == 0 || len(pred) != len(obs) {
		seg.Samples = 0
		seg.Factor = c.bounds.Clamp(c.anchor())
		return seg
	}

	var positives int
	for i, p := range pred {
		seg.Predicted += p
		seg.Observed += float64(obs[i])
		positives += obs[i]
	}
	n := float64(len(pred))
	seg.Predicted /= n
	seg.Observed /= n

	seg.Factor = c.bounds.Clamp(c.factor(seg.Observed, seg.Predicted, len(pred), positives))
	seg.BrierFactor = learn.Brier(scaled(pred, seg.Factor), obs)

	if len(pred) < c.minIsotonic || positives == 0 || positives == len(pred) {
		return seg
	}
	iso := learn.NewIsotonic()
	if err := iso.Fit(pred, obs); err != nil {
		return seg
	}
	fitted := iso.Transform(pred)
	for i := range fitted {
		fitted[i] = Clip(fitted[i])
	}
	seg.BrierIsotonic = learn.Brier(fitted, obs)
	if seg.BrierIsotonic < seg.BrierFactor {
		seg.UseIsotonic = true
		seg.iso = iso
	}
	return seg
}

func (c *Calibrator) anchor() float64 {
	if c.prior > 0 {
		return c.prior
	}
	return 1
}

func (c *Calibrator) factor(observed, predicted float64, n, positives int) float64 {
	if predicted <= 0 {
		return c.anchor()
	}
	ratio := observed / predicted
	if c.prior <= 0 {
		return ratio
	}
	if n > priorMinSamples && positives >= priorMinPositives {
		return c.priorWeight*c.prior + (1-c.priorWeight)*ratio
	}
	return c.prior
}

func scaled(pred []float64, factor float64) []float64 {
	out := make([]float64, len(pred))
	for i, p := range pred {
		out[i] = Clip(p * factor)
	}
	return out
}

// Set is a base segment plus optional per set-play subtype overrides.
type Set struct {
	Base Segment                       `json:"base"`
	Sub  map[model.SetPlayType]Segment `json:"-"`
}

// FitSet fits the base segment over all rows and a subtype segment for
// every subtype with enough rows. kinds is parallel to pred.
func (c *Calibrator) FitSet(name string, pred []float64, obs []int, kinds []model.SetPlayType) Set {
	set := Set{Base: c.Fit(name, pred, obs)}
	if len(kinds) != len(pred) {
		return set
	}
	for _, k := range model.SetPlayTypes() {
		var p []float64
		var y []int
		for i, kind := range kinds {
			if kind == k {
				p = append(p, pred[i])
				y = append(y, obs[i])
			}
		}
		if len(p) < c.minSubtype {
			continue
		}
		if set.Sub == nil {
			set.Sub = make(map[model.SetPlayType]Segment)
		}
		set.Sub[k] = c.Fit(name+"/"+k.String(), p, y)
	}
	return set
}

// Apply calibrates p with the subtype segment when one was fitted.
func (s Set) Apply(p float64, kind model.SetPlayType) float64 {
	if seg, ok := s.Sub[kind]; ok {
		return seg.Apply(p)
	}
	return s.Base.Apply(p)
}

// Factors returns the base factor and each subtype factor keyed by name.
func (s Set) Factors() map[string]float64 {
	out := map[string]float64{s.Base.Name: s.Base.Factor}
	for _, seg := range s.Sub {
		out[seg.Name] = seg.Factor
	}
	return out
}
