// Package model contains domain models passed between layers.
package model

// Shot is a single recorded attempt to score as stored in a game document.
// Fields mirror the gameData entries written by the tagging workflow.
type Shot struct {
	GameID      string   // owning game document id
	Index       int      // position inside the game's gameData array
	X           float64  // pitch x in metres, 0..145
	Y           float64  // pitch y in metres, 0..88
	CoordsOK    bool     // false when x/y could not be parsed
	OutcomeText string   // free text outcome, e.g. "point", "wide"
	ShotType    string   // optional explicit type, e.g. "free"
	PlayerID    string   // player identifier (player name when no id exists)
	PlayerName  string   // display name
	Team        string   // team name
	Position    string   // back / midfielder / forward / goalkeeper
	Pressure    string   // none / low / medium / high / y / n or a number
	Foot        string   // kicking side, left / right
	Minute      *float64 // game minute, nil when unrecorded
	ScoreDiff   float64  // shooter's team score minus opponent's
}

// Key identifies a shot inside a dataset.
type Key struct {
	GameID string
	Index  int
}

// Key returns the (game, index) identity of the shot.
func (s Shot) Key() Key {
	return Key{GameID: s.GameID, Index: s.Index}
}

// Annotation holds the derived fields merged back onto a stored shot.
type Annotation struct {
	GameID string
	Index  int

	XPoints             float64 // calibrated point probability
	XGoals              float64 // calibrated goal probability
	XPointsWeighted     float64 // XPoints scaled by the distance rule
	XPAdv               float64 // XPointsWeighted + 3*XGoals
	XPointsFinal        float64 // masked to zero for shots that were goals
	XGoalsFinal         float64 // masked to zero for shots that were points
	XPointsContribution float64 // actual points value minus XPointsFinal
	XGoalsContribution  float64 // actual goals value minus 3*XGoalsFinal
	ActualValue         float64 // scoring value actually obtained
	Category            Outcome
	ClusterID           int
	SetPlayType         SetPlayType
	LongRange           bool
}

// Fields returns the annotation as the flat document fields persisted on the
// shot. Keys match the names consumers of gameData already read.
func (a Annotation) Fields() map[string]any {
	return map[string]any{
		"xPoints":              a.XPoints,
		"xGoals":               a.XGoals,
		"xPoints_Weighted":     a.XPointsWeighted,
		"xP_adv":               a.XPAdv,
		"xPoints_Final":        a.XPointsFinal,
		"xGoals_Final":         a.XGoalsFinal,
		"xPoints_Contribution": a.XPointsContribution,
		"xGoals_Contribution":  a.XGoalsContribution,
		"category":             a.Category.String(),
		"cluster_id":           a.ClusterID,
		"set_play_type":        a.SetPlayType.String(),
	}
}
