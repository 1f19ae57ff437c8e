package leaderboard_test

import (
	"fmt"
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/xpoints/internal/domain/leaderboard"
	"github.com/okian/xpoints/internal/domain/model"
	"github.com/okian/xpoints/internal/domain/scoring"
)

func row(player string, pPoint, pGoal, dist float64, o model.Outcome, sp model.SetPlayType) leaderboard.Row {
	a := scoring.NewComposer().Compose(scoring.Input{PPoint: pPoint, PGoal: pGoal, Distance: dist, Outcome: o, SetPlay: sp})
	return leaderboard.Row{PlayerID: player, PlayerName: "Name " + player, Annotation: a}
}

func TestBuild(t *testing.T) {
	Convey("Given shots from two players", t, func() {
		rows := []leaderboard.Row{
			row("a", 0.5, 0.1, 20, model.Point, model.OpenPlay),
			row("a", 0.4, 0.0, 45, model.Point, model.Free),
			row("a", 0.3, 0.2, 15, model.Miss, model.OpenPlay),
			row("b", 0.6, 0.3, 10, model.Goal, model.OpenPlay),
			row("b", 0.5, 0.1, 25, model.Miss, model.OpenPlay),
		}
		table := leaderboard.Build(rows)

		Convey("Then every player is kept in id order", func() {
			So(table.Len(), ShouldEqual, 2)
			So(table.All[0].PlayerID, ShouldEqual, "a")
			So(table.All[0].PlayerName, ShouldEqual, "Name a")
		})

		Convey("Then totals and deltas are computed", func() {
			a, ok := table.Player("a")
			So(ok, ShouldBeTrue)
			So(a.Shots, ShouldEqual, 3)
			So(a.Points, ShouldEqual, 2)
			So(a.Actual, ShouldEqual, 3)
			// 0.5+0.3 + 0.8 + 0.3+0.6
			So(a.Expected, ShouldAlmostEqual, 2.5, 1e-9)
			So(a.Delta, ShouldAlmostEqual, 0.5, 1e-9)
			So(a.Efficiency, ShouldAlmostEqual, 1.2, 1e-9)
			So(a.SetPlay.Shots, ShouldEqual, 1)
			So(a.SetPlay.Actual, ShouldEqual, 2)
			So(a.SetPlay.Efficiency, ShouldAlmostEqual, 2.5, 1e-9)
		})

		Convey("Then goal shots do not count towards expected points", func() {
			b, _ := table.Player("b")
			So(b.Goals, ShouldEqual, 1)
			So(b.ExpectedPoints, ShouldAlmostEqual, 0.5, 1e-9)
			So(b.ExpectedGoals, ShouldAlmostEqual, 0.4, 1e-9)
			So(b.GoalsDelta, ShouldAlmostEqual, 0.6, 1e-9)
		})

		Convey("Then a player without set plays has neutral set-play efficiency", func() {
			b, _ := table.Player("b")
			So(b.SetPlay.Efficiency, ShouldEqual, 1)
			_, ok := table.Player("c")
			So(ok, ShouldBeFalse)
		})

		Convey("Then ranked views sort by their delta", func() {
			So(table.TopPoints(10)[0].PlayerID, ShouldEqual, "a")
			So(table.TopGoals(10)[0].PlayerID, ShouldEqual, "b")
			So(len(table.TopPoints(1)), ShouldEqual, 1)
			So(table.All[0].PlayerID, ShouldEqual, "a")
		})
	})

	Convey("Given many players", t, func() {
		var rows []leaderboard.Row
		var actual, expected float64
		for i := 0; i < 60; i++ {
			o := model.Outcome(i % 3)
			r := row(fmt.Sprintf("p%02d", i%25), 0.1+float64(i%7)/10, 0.05, float64(10+i%50), o, model.SetPlayType(i%5))
			actual += r.Annotation.ActualValue
			expected += r.Annotation.XPAdv
			rows = append(rows, r)
		}
		table := leaderboard.Build(rows)

		Convey("Then aggregation conserves totals", func() {
			var sa, se float64
			shots := 0
			for _, e := range table.All {
				sa += e.Actual
				se += e.Expected
				shots += e.Shots
			}
			So(shots, ShouldEqual, len(rows))
			So(sa, ShouldAlmostEqual, actual, 1e-9)
			So(math.Abs(se-expected), ShouldBeLessThan, 1e-9)
		})

		Convey("Then the top view is truncated and ordered", func() {
			top := table.TopPoints(0)
			So(len(top), ShouldEqual, leaderboard.DefaultTopN)
			for i := 1; i < len(top); i++ {
				So(top[i-1].PointsDelta, ShouldBeGreaterThanOrEqualTo, top[i].PointsDelta)
			}
		})
	})

	Convey("Given no rows", t, func() {
		table := leaderboard.Build(nil)
		So(table.Len(), ShouldEqual, 0)
		So(table.TopGoals(5), ShouldBeEmpty)
	})
}
