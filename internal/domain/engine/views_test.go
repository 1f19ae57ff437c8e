package engine_test

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/xpoints/internal/domain/engine"
	"github.com/okian/xpoints/internal/domain/leaderboard"
)

func TestRows(t *testing.T) {
	Convey("Given a leaderboard table", t, func() {
		table := &leaderboard.Table{All: []leaderboard.Entry{
			{PlayerID: "a", Shots: 4, Goals: 1, ExpectedGoals: 0.4, PointsValue: 2, ExpectedPoints: 1.5, PointsDelta: 0.5, GoalsDelta: 0.6, Actual: 5, Expected: 4.7},
			{PlayerID: "b", Shots: 3, Goals: 0, ExpectedGoals: 0.2, PointsValue: 3, ExpectedPoints: 1.0, PointsDelta: 2, GoalsDelta: -0.2, Actual: 3, Expected: 1.6},
		}}

		Convey("Then the points view ranks by points over expectation", func() {
			rows, err := engine.Rows(table, engine.ViewPoints, 10)
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, 2)
			So(rows[0].PlayerID, ShouldEqual, "b")
			So(rows[0].Rank, ShouldEqual, 1)
			So(rows[0].Delta, ShouldEqual, 2)
			So(rows[0].Efficiency, ShouldEqual, 3)
		})

		Convey("Then the goals view uses goal counts", func() {
			rows, err := engine.Rows(table, engine.ViewGoals, 1)
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, 1)
			So(rows[0].PlayerID, ShouldEqual, "a")
			So(rows[0].Actual, ShouldEqual, 1)
			So(rows[0].Delta, ShouldEqual, 0.6)
		})

		Convey("Then an unknown view is rejected", func() {
			_, err := engine.Rows(table, "assists", 10)
			So(errors.Is(err, engine.ErrUnknownView), ShouldBeTrue)
		})
	})
}
