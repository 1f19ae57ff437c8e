package features_test

import (
	"errors"
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/xpoints/internal/domain/features"
	"github.com/okian/xpoints/internal/domain/model"
)

func minute(m float64) *float64 { return &m }

func value(d features.Derived, name string) float64 {
	return d.Values[features.Current().Index(name)]
}

func TestExtract(t *testing.T) {
	Convey("Given an extractor with the default threshold", t, func() {
		ex := features.NewExtractor()

		Convey("When a shot is taken straight in front of goal", func() {
			d := ex.Extract(model.Shot{X: 125, Y: 44, CoordsOK: true, OutcomeText: "point", Minute: minute(10)})

			Convey("Then geometry is measured to the target", func() {
				So(d.Distance, ShouldAlmostEqual, 20, 1e-9)
				So(d.AngleAbs, ShouldAlmostEqual, 0, 1e-9)
				So(d.LongRange, ShouldBeFalse)
				So(d.Outcome, ShouldEqual, model.Point)
				So(value(d, "distance_zone"), ShouldEqual, 1)
				So(value(d, "is_central_zone"), ShouldEqual, 1)
				So(value(d, "log_distance"), ShouldAlmostEqual, math.Log1p(20), 1e-9)
			})
		})

		Convey("When a shot is 45m out", func() {
			d := ex.Extract(model.Shot{X: 100, Y: 44, CoordsOK: true})

			Convey("Then it is beyond the long-range line", func() {
				So(d.LongRange, ShouldBeTrue)
				So(value(d, "beyond_long_range"), ShouldEqual, 1)
			})
		})

		Convey("When coordinates are off the pitch", func() {
			d := ex.Extract(model.Shot{X: 200, Y: -5, CoordsOK: true, Pressure: "high"})

			Convey("Then the shot moves to the centre with no pressure", func() {
				So(d.Malformed, ShouldBeTrue)
				So(d.X, ShouldEqual, features.CenterX)
				So(d.Y, ShouldEqual, features.CenterY)
				So(d.Pressure, ShouldEqual, 0)
			})
		})

		Convey("When coordinates failed to parse", func() {
			d := ex.Extract(model.Shot{X: 130, Y: 40, CoordsOK: false})

			Convey("Then the shot is flagged malformed", func() {
				So(d.Malformed, ShouldBeTrue)
				So(d.Distance, ShouldAlmostEqual, 72.5, 1e-9)
			})
		})

		Convey("When any shot is extracted", func() {
			d := ex.Extract(model.Shot{X: math.NaN(), Y: 3, CoordsOK: true, ScoreDiff: math.Inf(1)})

			Convey("Then every feature is finite and the row fits the schema", func() {
				for _, v := range d.Values {
					So(math.IsNaN(v) || math.IsInf(v, 0), ShouldBeFalse)
				}
				row, err := features.Current().Vector(d, features.Priors{PlayerPoint: math.NaN()})
				So(err, ShouldBeNil)
				So(len(row), ShouldEqual, features.Current().Dim())
				So(row[features.Current().Index(features.PlayerPointPrior)], ShouldEqual, 0)
			})
		})
	})

	Convey("Given categorical inputs", t, func() {
		ex := features.NewExtractor()

		Convey("Then pressure and position encode ordinally", func() {
			So(features.PressureValue("Medium"), ShouldEqual, 0.67)
			So(features.PressureValue("yes"), ShouldEqual, 1)
			So(features.PressureValue("7"), ShouldEqual, 1)
			So(features.PressureValue("???"), ShouldEqual, 0)
			So(features.PositionValue("Goalkeeper"), ShouldEqual, 0)
			So(features.PositionValue("forward"), ShouldEqual, 3)
			So(features.PositionValue(""), ShouldEqual, 2)
		})

		Convey("Then set plays damp pressure", func() {
			d := ex.Extract(model.Shot{X: 120, Y: 44, CoordsOK: true, OutcomeText: "free", Pressure: "high"})
			So(d.SetPlay, ShouldEqual, model.Free)
			So(d.EffectivePressure, ShouldAlmostEqual, 0.3, 1e-9)
			So(value(d, "is_free"), ShouldEqual, 1)
			So(value(d, "free_short"), ShouldEqual, 1)
		})

		Convey("Then a left-footed shot from the left side is advantageous", func() {
			d := ex.Extract(model.Shot{X: 120, Y: 30, CoordsOK: true, Foot: "Left"})
			So(value(d, "side_advantage"), ShouldEqual, 1)
			d = ex.Extract(model.Shot{X: 120, Y: 60, CoordsOK: true, Foot: "left"})
			So(value(d, "side_advantage"), ShouldEqual, 0)
		})
	})

	Convey("Given corpus statistics", t, func() {
		shots := []model.Shot{
			{X: 130, Y: 44, CoordsOK: true, Minute: minute(10)},
			{X: 125, Y: 44, CoordsOK: true, Minute: minute(20)},
			{X: 120, Y: 44, CoordsOK: true},
			{X: 118, Y: 44, CoordsOK: true, Minute: minute(50)},
			{X: 5, Y: 44, CoordsOK: true},
		}
		c := features.NewCorpus(shots)

		Convey("Then missing minutes take the median", func() {
			So(c.MedianMinute, ShouldEqual, 20)
			d := features.NewExtractor(features.WithCorpus(c)).Extract(shots[2])
			So(d.Minute, ShouldEqual, 20)
		})

		Convey("Then far shots are flagged as outliers", func() {
			ex := features.NewExtractor(features.WithCorpus(c))
			So(ex.Extract(shots[4]).Outlier, ShouldBeTrue)
			So(ex.Extract(shots[0]).Outlier, ShouldBeFalse)
		})
	})
}

func TestSchema(t *testing.T) {
	Convey("Given the current schema", t, func() {
		s := features.Current()

		Convey("Then rows of another width are rejected", func() {
			So(s.Check(s.Dim()), ShouldBeNil)
			So(errors.Is(s.Check(s.Dim()-1), features.ErrSchemaMismatch), ShouldBeTrue)
		})

		Convey("Then schemas compare by version and columns", func() {
			other := features.Current()
			So(s.Equal(other), ShouldBeTrue)
			other.Version++
			So(s.Equal(other), ShouldBeFalse)
		})
	})
}
