package calibration_test

import (
	"math/rand"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/xpoints/internal/domain/calibration"
	"github.com/okian/xpoints/internal/domain/model"
)

func constant(n int, p float64, positives int) ([]float64, []int) {
	pred := make([]float64, n)
	obs := make([]int, n)
	for i := range pred {
		pred[i] = p
		if i < positives {
			obs[i] = 1
		}
	}
	return pred, obs
}

func TestFactor(t *testing.T) {
	Convey("Given a points calibrator", t, func() {
		c := calibration.New()

		Convey("When the model underpredicts", func() {
			pred, obs := constant(10, 0.2, 3)
			seg := c.Fit("points_open", pred, obs)

			Convey("Then the factor is observed over predicted", func() {
				So(seg.Factor, ShouldAlmostEqual, 1.5, 1e-12)
				So(seg.Apply(0.2), ShouldAlmostEqual, 0.3, 1e-12)
			})
		})

		Convey("When the ratio is extreme", func() {
			pred, obs := constant(10, 0.05, 9)
			So(c.Fit("x", pred, obs).Factor, ShouldEqual, 2.0)
			pred, obs = constant(10, 0.9, 1)
			So(c.Fit("x", pred, obs).Factor, ShouldEqual, 0.5)
		})

		Convey("When there are no samples", func() {
			seg := c.Fit("empty", nil, nil)
			So(seg.Factor, ShouldEqual, 1)
			So(seg.Samples, ShouldEqual, 0)
		})

		Convey("When the predicted mean is zero", func() {
			pred, obs := constant(10, 0, 2)
			So(c.Fit("zero", pred, obs).Factor, ShouldEqual, 1)
		})
	})

	Convey("Given a goals calibrator", t, func() {
		c := calibration.NewGoals()

		Convey("When there are too few positives the prior is used", func() {
			pred, obs := constant(50, 0.1, 2)
			So(c.Fit("goals", pred, obs).Factor, ShouldAlmostEqual, 0.9, 1e-12)
		})

		Convey("When there is enough data the ratio is blended and clamped", func() {
			pred, obs := constant(50, 0.2, 5)
			// 0.7*0.95 + 0.3*0.5 = 0.815
			So(c.Fit("goals", pred, obs).Factor, ShouldAlmostEqual, 0.815, 1e-12)
		})

		Convey("Then the factor never leaves the goal bounds", func() {
			rng := rand.New(rand.NewSource(1))
			for i := 0; i < 50; i++ {
				pred := make([]float64, 40)
				obs := make([]int, 40)
				for j := range pred {
					pred[j] = rng.Float64()
					if rng.Float64() < rng.Float64() {
						obs[j] = 1
					}
				}
				f := c.Fit("goals", pred, obs).Factor
				So(f, ShouldBeBetweenOrEqual, calibration.GoalBounds.Min, calibration.GoalBounds.Max)
			}
		})
	})

	Convey("Given custom bounds", t, func() {
		c := calibration.New(calibration.WithBounds(calibration.Bounds{Min: 0.8, Max: 1.1}))
		pred, obs := constant(10, 0.2, 5)
		So(c.Fit("x", pred, obs).Factor, ShouldEqual, 1.1)
		So(calibration.New(calibration.WithBounds(calibration.Bounds{Min: 2, Max: 1})).Bounds(), ShouldResemble, calibration.PointBounds)
	})
}

func TestIsotonicSelection(t *testing.T) {
	Convey("Given a miscalibrated but well ranked segment", t, func() {
		var pred []float64
		var obs []int
		for i := 0; i < 100; i++ {
			p := float64(i) / 100
			pred = append(pred, 0.4+p*0.2)
			if i >= 50 {
				obs = append(obs, 1)
			} else {
				obs = append(obs, 0)
			}
		}
		seg := calibration.New().Fit("points_open", pred, obs)

		Convey("Then the isotonic curve wins on Brier", func() {
			So(seg.UseIsotonic, ShouldBeTrue)
			So(seg.BrierIsotonic, ShouldBeLessThan, seg.BrierFactor)
			So(seg.Apply(0.45), ShouldEqual, calibration.ProbMin)
			So(seg.Apply(0.55), ShouldEqual, calibration.ProbMax)
		})
	})

	Convey("Given too few samples", t, func() {
		pred, obs := constant(15, 0.3, 5)
		seg := calibration.New().Fit("small", pred, obs)
		So(seg.UseIsotonic, ShouldBeFalse)
	})
}

func TestClip(t *testing.T) {
	Convey("Calibrated probabilities stay in range", t, func() {
		seg := calibration.Segment{Factor: 2}
		for _, p := range []float64{-1, 0, 0.3, 0.6, 1, 5} {
			So(seg.Apply(p), ShouldBeBetweenOrEqual, calibration.ProbMin, calibration.ProbMax)
		}
		So(calibration.Identity("x").Apply(0.5), ShouldEqual, 0.5)
	})
}

func TestSet(t *testing.T) {
	Convey("Given set-play rows with a frequent subtype", t, func() {
		var pred []float64
		var obs []int
		var kinds []model.SetPlayType
		for i := 0; i < 30; i++ {
			pred = append(pred, 0.5)
			obs = append(obs, 1)
			kinds = append(kinds, model.Free)
		}
		for i := 0; i < 5; i++ {
			pred = append(pred, 0.5)
			obs = append(obs, 0)
			kinds = append(kinds, model.Mark)
		}
		set := calibration.New().FitSet("points_setplay", pred, obs, kinds)

		Convey("Then only the frequent subtype gets its own segment", func() {
			So(set.Sub, ShouldContainKey, model.Free)
			So(set.Sub, ShouldNotContainKey, model.Mark)
			So(set.Apply(0.4, model.Free), ShouldAlmostEqual, 0.8, 1e-12)
			So(set.Apply(0.4, model.Mark), ShouldAlmostEqual, set.Base.Apply(0.4), 1e-12)
			So(set.Factors(), ShouldContainKey, "points_setplay/free")
		})
	})
}
