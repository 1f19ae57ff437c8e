package model

import "strings"

// Outcome is the scoring category of a shot.
type Outcome int

const (
	Miss Outcome = iota
	Point
	Goal
)

// Scoring values under Gaelic football rules.
const (
	PointValue          = 1.0
	LongRangePointValue = 2.0
	GoalValue           = 3.0
)

var (
	goalTerms  = []string{"goal", "scores goal", "made goal", "hit goal", "penalty goal"}
	pointTerms = []string{
		"point", "over", "scores point", "made point", "offensive mark",
		"fortyfive", "free", "point scored", "free scored",
	}
)

// Classify maps free outcome text to exactly one Outcome. Goal terms win over
// point terms; anything unmatched is a miss.
func Classify(text string) Outcome {
	t := normalize(text)
	if t == "" {
		return Miss
	}
	if matchesAny(t, goalTerms) {
		return Goal
	}
	if matchesAny(t, pointTerms) {
		return Point
	}
	return Miss
}

// ParseOutcome parses the persisted category name.
func ParseOutcome(s string) (Outcome, bool) {
	switch normalize(s) {
	case "goal":
		return Goal, true
	case "point":
		return Point, true
	case "miss":
		return Miss, true
	}
	return Miss, false
}

func (o Outcome) String() string {
	switch o {
	case Goal:
		return "goal"
	case Point:
		return "point"
	default:
		return "miss"
	}
}

// Value is the scoring value the outcome earned. Points beyond the
// long-range line are worth two.
func (o Outcome) Value(longRange bool) float64 {
	switch o {
	case Goal:
		return GoalValue
	case Point:
		if longRange {
			return LongRangePointValue
		}
		return PointValue
	default:
		return 0
	}
}

// IsPoint reports whether the outcome is a point.
func (o Outcome) IsPoint() bool { return o == Point }

// IsGoal reports whether the outcome is a goal.
func (o Outcome) IsGoal() bool { return o == Goal }

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// matchesAny reports whether text equals a term or contains it as a whole
// word sequence, so "turnover" does not read as "over".
func matchesAny(text string, terms []string) bool {
	padded := " " + text + " "
	for _, term := range terms {
		if text == term || strings.Contains(padded, " "+term+" ") {
			return true
		}
	}
	return false
}
