package learn

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

// stubModel predicts a constant and fails Calibrate on demand.
type stubModel struct {
	p           float64
	calibrateFn func() error
}

func (s *stubModel) Name() string { return "stub" }

func (s *stubModel) Fit(_ [][]float64, _ []int) error { return nil }

func (s *stubModel) Calibrate(_ [][]float64, _ []int) error {
	if s.calibrateFn != nil {
		return s.calibrateFn()
	}
	return nil
}

func (s *stubModel) Predict(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i := range out {
		out[i] = s.p
	}
	return out
}

func TestFoldPredict(t *testing.T) {
	Convey("Given a fold with one validation row", t, func() {
		rows := [][]float64{{1}}
		fitted := &stubModel{p: 0.2}

		Convey("When the candidate calibrates", func() {
			cand := &stubModel{p: 0.7}
			So(foldPredict(cand, fitted, rows, []int{1}, rows, []int{1}, rows), ShouldResemble, []float64{0.7})
		})

		Convey("When the candidate cannot calibrate", func() {
			cand := &stubModel{p: 0.7, calibrateFn: func() error { return errors.New("one class") }}

			Convey("Then the fitted member predicts instead", func() {
				So(foldPredict(cand, fitted, rows, []int{1}, rows, []int{1}, rows), ShouldResemble, []float64{0.2})
			})
		})

		Convey("When there is no candidate", func() {
			So(foldPredict(nil, fitted, rows, []int{1}, rows, []int{1}, rows), ShouldResemble, []float64{0.2})
		})
	})
}
