// Package leaderboard aggregates annotated shots into per-player
// actual-versus-expected tables.
package leaderboard

import (
	"sort"

	"github.com/okian/xpoints/internal/domain/model"
)

// DefaultTopN is the presentation cut-off for ranked views.
const DefaultTopN = 20

// Row is one annotated shot attributed to a player.
type Row struct {
	PlayerID   string
	PlayerName string
	Team       string
	Annotation model.Annotation
}

// SetPlay is a player's set-piece sub-aggregate.
type SetPlay struct {
	Shots      int     `json:"shots"`
	Actual     float64 `json:"actual"`
	Expected   float64 `json:"expected"`
	Efficiency float64 `json:"efficiency"`
}

// Entry is a player's aggregate over every shot they took.
type Entry struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name,omitempty"`
	Team       string `json:"team,omitempty"`
	Shots      int    `json:"shots"`
	Points     int    `json:"points"`
	Goals      int    `json:"goals"`

	Actual     float64 `json:"actual"`
	Expected   float64 `json:"expected"`
	Delta      float64 `json:"delta"`
	Efficiency float64 `json:"efficiency"`

	PointsValue    float64 `json:"points_value"`
	ExpectedPoints float64 `json:"expected_points"`
	PointsDelta    float64 `json:"points_delta"`
	ExpectedGoals  float64 `json:"expected_goals"`
	GoalsDelta     float64 `json:"goals_delta"`

	SetPlay SetPlay `json:"set_play"`
}

// Table is the full aggregate. All holds every player ordered by id.
type Table struct {
	All []Entry `json:"all"`
}

// Build groups rows by player id and computes totals, deltas and
// efficiencies. Rows without a player id are grouped under "unknown".
func Build(rows []Row) *Table {
	byPlayer := make(map[string]*Entry)
	for _, r := range rows {
		id := r.PlayerID
		if id == "" {
			id = "unknown"
		}
		e, ok := byPlayer[id]
		if !ok {
			e = &Entry{PlayerID: id}
			byPlayer[id] = e
		}
		if e.PlayerName == "" {
			e.PlayerName = r.PlayerName
		}
		if e.Team == "" {
			e.Team = r.Team
		}

		a := r.Annotation
		e.Shots++
		e.Actual += a.ActualValue
		e.Expected += a.XPAdv
		e.ExpectedPoints += a.XPointsFinal
		e.ExpectedGoals += a.XGoalsFinal
		switch {
		case a.Category.IsPoint():
			e.Points++
			e.PointsValue += a.ActualValue
		case a.Category.IsGoal():
			e.Goals++
		}
		if a.SetPlayType.IsSetPlay() {
			e.SetPlay.Shots++
			e.SetPlay.Actual += a.ActualValue
			e.SetPlay.Expected += a.XPAdv
		}
	}

	t := &Table{All: make([]Entry, 0, len(byPlayer))}
	for _, e := range byPlayer {
		e.Delta = e.Actual - e.Expected
		e.Efficiency = Efficiency(e.Actual, e.Expected)
		e.PointsDelta = e.PointsValue - e.ExpectedPoints
		e.GoalsDelta = float64(e.Goals) - e.ExpectedGoals
		e.SetPlay.Efficiency = Efficiency(e.SetPlay.Actual, e.SetPlay.Expected)
		t.All = append(t.All, *e)
	}
	sort.Slice(t.All, func(i, j int) bool { return t.All[i].PlayerID < t.All[j].PlayerID })
	return t
}

// Efficiency is actual/expected, 1.0 when nothing was expected.
func Efficiency(actual, expected float64) float64 {
	if expected == 0 {
		return 1
	}
	return actual / expected
}

// Len returns the number of players in the table.
func (t *Table) Len() int { return len(t.All) }

// TopPoints returns up to n entries ordered by points delta descending.
func (t *Table) TopPoints(n int) []Entry {
	return t.top(n, func(e Entry) float64 { return e.PointsDelta })
}

// TopGoals returns up to n entries ordered by goals delta descending.
func (t *Table) TopGoals(n int) []Entry {
	return t.top(n, func(e Entry) float64 { return e.GoalsDelta })
}

// TopOverall returns up to n entries ordered by total delta descending.
func (t *Table) TopOverall(n int) []Entry {
	return t.top(n, func(e Entry) float64 { return e.Delta })
}

// Player returns the entry for a player id.
func (t *Table) Player(id string) (Entry, bool) {
	i := sort.Search(len(t.All), func(i int) bool { return t.All[i].PlayerID >= id })
	if i < len(t.All) && t.All[i].PlayerID == id {
		return t.All[i], true
	}
	return Entry{}, false
}

// top sorts a copy so All keeps its order. Ties break by player id.
func (t *Table) top(n int, key func(Entry) float64) []Entry {
	if n <= 0 {
		n = DefaultTopN
	}
	out := append([]Entry(nil), t.All...)
	sort.SliceStable(out, func(i, j int) bool {
		ki, kj := key(out[i]), key(out[j])
		if ki != kj {
			return ki > kj
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
