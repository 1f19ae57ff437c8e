package engine

import (
	"fmt"

	"github.com/okian/xpoints/internal/domain/leaderboard"
	"github.com/okian/xpoints/internal/domain/types"
)

// Leaderboard views.
const (
	ViewPoints  = "points"
	ViewGoals   = "goals"
	ViewOverall = "overall"
)

// Rows returns the top n entries of a view as ranked presentation rows. The
// points view compares point values with expected points, the goals view
// goal counts with expected goals, and the overall view total value with
// xP_adv.
func Rows(t *leaderboard.Table, view string, n int) ([]types.LeaderboardRow, error) {
	var (
		entries []leaderboard.Entry
		pick    func(leaderboard.Entry) (actual, expected float64)
	)
	switch view {
	case ViewPoints, "":
		entries = t.TopPoints(n)
		pick = func(e leaderboard.Entry) (float64, float64) { return e.PointsValue, e.ExpectedPoints }
	case ViewGoals:
		entries = t.TopGoals(n)
		pick = func(e leaderboard.Entry) (float64, float64) { return float64(e.Goals), e.ExpectedGoals }
	case ViewOverall:
		entries = t.TopOverall(n)
		pick = func(e leaderboard.Entry) (float64, float64) { return e.Actual, e.Expected }
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownView, view)
	}
	out := make([]types.LeaderboardRow, 0, len(entries))
	for i, e := range entries {
		actual, expected := pick(e)
		out = append(out, types.LeaderboardRow{
			Rank:       i + 1,
			PlayerID:   e.PlayerID,
			PlayerName: e.PlayerName,
			Team:       e.Team,
			Shots:      e.Shots,
			Actual:     round4(actual),
			Expected:   round4(expected),
			Delta:      round4(actual - expected),
			Efficiency: round4(leaderboard.Efficiency(actual, expected)),
		})
	}
	return out, nil
}
