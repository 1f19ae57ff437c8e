package types_test

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/xpoints/internal/domain/types"
)

func TestRecalculateRequest(t *testing.T) {
	Convey("Given a request with only a training dataset", t, func() {
		r := types.RecalculateRequest{UserID: " u1 ", TrainingDataset: "league"}
		r.Normalize()

		Convey("Then defaults are filled", func() {
			So(r.UserID, ShouldEqual, "u1")
			So(r.TargetDataset, ShouldEqual, "league")
			So(r.ModelType, ShouldEqual, types.ModelEnsemble)
			So(r.Validate(), ShouldBeNil)
		})
	})

	Convey("Given invalid requests", t, func() {
		neg := -1
		zero := 0.0
		for _, r := range []types.RecalculateRequest{
			{TrainingDataset: "d"},
			{UserID: "u"},
			{UserID: "u", TrainingDataset: "d", ModelType: "svm"},
			{UserID: "u", TrainingDataset: "d", Hyperparameters: &types.Hyperparameters{MinSamples: &neg}},
			{UserID: "u", TrainingDataset: "d", Hyperparameters: &types.Hyperparameters{LongRangeThreshold: &zero}},
		} {
			err := r.Validate()
			So(err, ShouldNotBeNil)
			So(errors.Is(err, types.ErrInvalidRequest), ShouldBeTrue)
		}
	})
}

func TestJob(t *testing.T) {
	Convey("Terminal states are done", t, func() {
		So(types.Job{State: types.JobQueued}.Done(), ShouldBeFalse)
		So(types.Job{State: types.JobRunning}.Done(), ShouldBeFalse)
		So(types.Job{State: types.JobSucceeded}.Done(), ShouldBeTrue)
		So(types.Job{State: types.JobFailed}.Done(), ShouldBeTrue)
	})
}
