// Package features turns raw shot records into fixed-width numeric rows.
package features

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/okian/xpoints/internal/domain/model"
)

// Pitch geometry in metres.
const (
	PitchLength = 145.0
	PitchWidth  = 88.0
	TargetX     = 145.0
	TargetY     = 44.0
	CenterX     = 72.5
	CenterY     = 44.0

	// DefaultLongRange is the distance beyond which a point is worth two.
	DefaultLongRange = 40.0
)

var (
	distanceZones = []float64{0, 10, 20, 30, 40, 50, 60, 100}
	angleZones    = []float64{0, 10, 20, 30, 45, 60, 90}
)

// Derived is the per-shot intermediate state the rest of the pipeline reads.
type Derived struct {
	Key       model.Key
	PlayerID  string
	Outcome   model.Outcome
	SetPlay   model.SetPlayType
	Malformed bool

	X, Y                float64
	Distance            float64
	Angle               float64
	AngleAbs            float64
	Pressure            float64
	EffectivePressure   float64
	PositionValue       float64
	TechnicalDifficulty float64
	Minute              float64
	ScoreDiff           float64
	RightFoot           bool
	LeftFoot            bool
	LongRange           bool
	Outlier             bool

	// Values holds the shot-level features in schema order.
	Values []float64
}

// Corpus carries statistics taken over the training corpus that individual
// features depend on.
type Corpus struct {
	MedianMinute  float64
	DistanceFence float64
}

// DefaultCorpus flags no outliers and fills missing minutes with zero.
func DefaultCorpus() Corpus {
	return Corpus{DistanceFence: math.Inf(1)}
}

// NewCorpus computes the median recorded minute and the Q3 + 1.5*IQR
// distance fence over shots.
func NewCorpus(shots []model.Shot) Corpus {
	c := DefaultCorpus()
	if len(shots) == 0 {
		return c
	}
	dists := make([]float64, 0, len(shots))
	minutes := make([]float64, 0, len(shots))
	for _, s := range shots {
		x, y, _ := sanitize(s)
		dists = append(dists, math.Hypot(TargetX-x, TargetY-y))
		if s.Minute != nil && !math.IsNaN(*s.Minute) {
			minutes = append(minutes, *s.Minute)
		}
	}
	sort.Float64s(dists)
	q1 := stat.Quantile(0.25, stat.Empirical, dists, nil)
	q3 := stat.Quantile(0.75, stat.Empirical, dists, nil)
	c.DistanceFence = q3 + 1.5*(q3-q1)
	if len(minutes) > 0 {
		sort.Float64s(minutes)
		c.MedianMinute = stat.Quantile(0.5, stat.Empirical, minutes, nil)
	}
	return c
}

// Extractor derives features for shots.
type Extractor struct {
	longRange float64
	corpus    Corpus
}

// NewExtractor builds an extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		longRange: DefaultLongRange,
		corpus:    DefaultCorpus(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// LongRange returns the configured long-range threshold.
func (e *Extractor) LongRange() float64 { return e.longRange }

// Extract derives one shot. It never fails: malformed coordinates fall back
// to the centre of the pitch and are flagged.
func (e *Extractor) Extract(s model.Shot) Derived {
	x, y, ok := sanitize(s)
	d := Derived{
		Key:       s.Key(),
		PlayerID:  s.PlayerID,
		Outcome:   model.Classify(s.OutcomeText),
		SetPlay:   model.ClassifySetPlay(s.ShotType, s.OutcomeText),
		Malformed: !ok,
		X:         x,
		Y:         y,
		ScoreDiff: finite(s.ScoreDiff),
	}
	d.Distance = math.Hypot(TargetX-x, TargetY-y)
	d.Angle = math.Atan2(TargetY-y, TargetX-x) * 180 / math.Pi
	d.AngleAbs = math.Abs(d.Angle)
	if !d.Malformed {
		d.Pressure = PressureValue(s.Pressure)
	}
	d.EffectivePressure = EffectivePressure(d.Pressure, d.SetPlay)
	d.PositionValue = PositionValue(s.Position)
	d.TechnicalDifficulty = d.Distance * math.Sin((d.AngleAbs+5)*math.Pi/180)
	d.RightFoot, d.LeftFoot = footFlags(s.Foot)
	d.LongRange = d.Distance > e.longRange
	d.Outlier = d.Distance > e.corpus.DistanceFence
	d.Minute = e.corpus.MedianMinute
	if s.Minute != nil && !math.IsNaN(*s.Minute) && !math.IsInf(*s.Minute, 0) {
		d.Minute = *s.Minute
	}

	d.Values = make([]float64, len(shotFeatures))
	for i, f := range shotFeatures {
		d.Values[i] = finite(f.value(&d))
	}
	return d
}

// ExtractAll derives every shot in order.
func (e *Extractor) ExtractAll(shots []model.Shot) []Derived {
	out := make([]Derived, len(shots))
	for i, s := range shots {
		out[i] = e.Extract(s)
	}
	return out
}

func sanitize(s model.Shot) (x, y float64, ok bool) {
	x, y = s.X, s.Y
	if !s.CoordsOK || math.IsNaN(x) || math.IsNaN(y) ||
		x < 0 || x > PitchLength || y < 0 || y > PitchWidth {
		return CenterX, CenterY, false
	}
	return x, y, true
}

func endPeriod(m float64) bool { return (m > 30 && m < 40) || m > 65 }

type feature struct {
	name  string
	value func(d *Derived) float64
}

// shotFeatures is the shot-level half of the schema, in column order.
var shotFeatures = []feature{
	{"distance", func(d *Derived) float64 { return d.Distance }},
	{"angle", func(d *Derived) float64 { return d.Angle }},
	{"angle_abs", func(d *Derived) float64 { return d.AngleAbs }},
	{"distance_sq", func(d *Derived) float64 { return d.Distance * d.Distance }},
	{"angle_sq", func(d *Derived) float64 { return d.AngleAbs * d.AngleAbs }},
	{"log_distance", func(d *Derived) float64 { return math.Log1p(d.Distance) }},
	{"dist_angle_interaction", func(d *Derived) float64 { return d.Distance * d.AngleAbs / 90 }},
	{"dist_to_sideline", func(d *Derived) float64 { return math.Min(d.Y, PitchWidth-d.Y) }},
	{"is_central_zone", func(d *Derived) float64 { return b2f(d.AngleAbs < 30 && d.Distance < 35) }},
	{"distance_zone", func(d *Derived) float64 { return bucket(d.Distance, distanceZones) }},
	{"angle_zone", func(d *Derived) float64 { return bucket(d.AngleAbs, angleZones) }},
	{"is_extreme_angle", func(d *Derived) float64 { return b2f(d.AngleAbs > 60) }},
	{"is_long_shot", func(d *Derived) float64 { return b2f(d.Distance > 60) }},
	{"is_very_close", func(d *Derived) float64 { return b2f(d.Distance < 10) }},
	{"beyond_long_range", func(d *Derived) float64 { return b2f(d.LongRange) }},
	{"pressure", func(d *Derived) float64 { return d.Pressure }},
	{"effective_pressure", func(d *Derived) float64 { return d.EffectivePressure }},
	{"position_value", func(d *Derived) float64 { return d.PositionValue }},
	{"is_right_foot", func(d *Derived) float64 { return b2f(d.RightFoot) }},
	{"is_left_foot", func(d *Derived) float64 { return b2f(d.LeftFoot) }},
	{"is_left_side", func(d *Derived) float64 { return b2f(d.Y < CenterY) }},
	{"side_advantage", func(d *Derived) float64 {
		left := d.Y < CenterY
		return b2f((left && d.LeftFoot) || (!left && d.RightFoot))
	}},
	{"is_setplay", func(d *Derived) float64 { return b2f(d.SetPlay.IsSetPlay()) }},
	{"is_penalty", func(d *Derived) float64 { return b2f(d.SetPlay == model.Penalty) }},
	{"is_free", func(d *Derived) float64 { return b2f(d.SetPlay == model.Free) }},
	{"is_fortyfive", func(d *Derived) float64 { return b2f(d.SetPlay == model.FortyFive) }},
	{"is_mark", func(d *Derived) float64 { return b2f(d.SetPlay == model.Mark) }},
	{"set_play_distance", func(d *Derived) float64 { return d.Distance * b2f(d.SetPlay.IsSetPlay()) }},
	{"set_play_angle", func(d *Derived) float64 { return d.AngleAbs * b2f(d.SetPlay.IsSetPlay()) }},
	{"free_short", func(d *Derived) float64 { return b2f(d.SetPlay == model.Free && d.Distance < 30) }},
	{"free_medium", func(d *Derived) float64 {
		return b2f(d.SetPlay == model.Free && d.Distance >= 30 && d.Distance < 45)
	}},
	{"free_long", func(d *Derived) float64 { return b2f(d.SetPlay == model.Free && d.Distance >= 45) }},
	{"technical_difficulty", func(d *Derived) float64 { return d.TechnicalDifficulty }},
	{"shot_difficulty", func(d *Derived) float64 {
		return (d.Distance / PitchLength) * (d.AngleAbs / 90) * (1 + d.EffectivePressure)
	}},
	{"game_minute", func(d *Derived) float64 { return d.Minute }},
	{"is_end_period", func(d *Derived) float64 { return b2f(endPeriod(d.Minute)) }},
	{"score_diff", func(d *Derived) float64 { return d.ScoreDiff }},
	{"is_close_game", func(d *Derived) float64 { return b2f(math.Abs(d.ScoreDiff) < 3) }},
	{"is_trailing", func(d *Derived) float64 { return b2f(d.ScoreDiff < 0) }},
	{"is_leading", func(d *Derived) float64 { return b2f(d.ScoreDiff > 0) }},
	{"trailing_endgame", func(d *Derived) float64 { return b2f(d.ScoreDiff < 0 && endPeriod(d.Minute)) }},
	{"leading_endgame", func(d *Derived) float64 { return b2f(d.ScoreDiff > 0 && endPeriod(d.Minute)) }},
	{"pressure_distance", func(d *Derived) float64 { return d.EffectivePressure * d.Distance }},
	{"is_distance_outlier", func(d *Derived) float64 { return b2f(d.Outlier) }},
}
