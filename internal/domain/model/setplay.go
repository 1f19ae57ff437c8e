package model

// SetPlayType is the kind of dead-ball restart a shot came from.
type SetPlayType int

const (
	OpenPlay SetPlayType = iota
	Free
	FortyFive
	Penalty
	Mark
)

var setPlayTerms = []struct {
	kind  SetPlayType
	terms []string
}{
	{Free, []string{"free", "free scored", "free kick"}},
	{FortyFive, []string{"fortyfive", "45", "45m", "45 meter"}},
	{Penalty, []string{"penalty", "penalty goal"}},
	{Mark, []string{"offensive mark", "mark"}},
}

// ClassifySetPlay derives the set-play type from an explicit type field when
// present, falling back to the outcome text.
func ClassifySetPlay(shotType, outcomeText string) SetPlayType {
	if t := normalize(shotType); t != "" {
		if k, ok := ParseSetPlayType(t); ok {
			return k
		}
		if k := matchSetPlay(t); k != OpenPlay {
			return k
		}
	}
	return matchSetPlay(normalize(outcomeText))
}

func matchSetPlay(text string) SetPlayType {
	if text == "" {
		return OpenPlay
	}
	for _, sp := range setPlayTerms {
		if matchesAny(text, sp.terms) {
			return sp.kind
		}
	}
	return OpenPlay
}

// ParseSetPlayType parses the persisted set-play name.
func ParseSetPlayType(s string) (SetPlayType, bool) {
	switch normalize(s) {
	case "none", "open", "open play":
		return OpenPlay, true
	case "free":
		return Free, true
	case "fortyfive":
		return FortyFive, true
	case "penalty":
		return Penalty, true
	case "mark":
		return Mark, true
	}
	return OpenPlay, false
}

// IsSetPlay reports whether the shot was a dead-ball restart.
func (t SetPlayType) IsSetPlay() bool { return t != OpenPlay }

func (t SetPlayType) String() string {
	switch t {
	case Free:
		return "free"
	case FortyFive:
		return "fortyfive"
	case Penalty:
		return "penalty"
	case Mark:
		return "mark"
	default:
		return "none"
	}
}

// SetPlayTypes lists every set-play kind excluding open play.
func SetPlayTypes() []SetPlayType {
	return []SetPlayType{Free, FortyFive, Penalty, Mark}
}
