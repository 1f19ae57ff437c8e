// Package priors estimates Bayesian-smoothed per-player scoring rates.
package priors

import (
	"math"
	"sort"

	"github.com/okian/xpoints/internal/domain/features"
	"github.com/okian/xpoints/internal/domain/model"
)

const (
	defaultMinSamples  = 5
	defaultMinPlayers  = 3
	defaultSetPlayK    = 10
	defaultSetPlayMin  = 3
	defaultSetPlayNeed = 10
	defaultFormWindow  = 5

	// shrinkage strength reference scale
	referenceCorpus = 1000.0
	minCorpus       = 100.0
)

// Rate is a success count over a number of attempts.
type Rate struct {
	Shots     int     `json:"shots"`
	Successes int     `json:"successes"`
	Raw       float64 `json:"raw"`
	Smoothed  float64 `json:"smoothed"`
}

// PlayerPrior is the smoothed history of a single player.
type PlayerPrior struct {
	PlayerID   string  `json:"player_id"`
	Point      Rate    `json:"point"`
	Goal       Rate    `json:"goal"`
	SetPlay    Rate    `json:"set_play"`
	RecentForm float64 `json:"recent_form"`
}

// Table holds every player's priors plus the corpus-wide rates they shrink
// toward. It is read-only once built.
type Table struct {
	GlobalPoint   float64                `json:"global_point"`
	GlobalGoal    float64                `json:"global_goal"`
	GlobalSetPlay float64                `json:"global_set_play"`
	KPoints       float64                `json:"k_points"`
	KGoals        float64                `json:"k_goals"`
	Enabled       bool                   `json:"enabled"`
	Players       map[string]PlayerPrior `json:"players"`
}

// Lookup returns the point and goal priors for a player. Unknown players and
// tables built from too few players return the global rates.
func (t *Table) Lookup(playerID string) (point, goal float64) {
	if t == nil {
		return 0, 0
	}
	if !t.Enabled {
		return t.GlobalPoint, t.GlobalGoal
	}
	p, ok := t.Players[playerID]
	if !ok {
		return t.GlobalPoint, t.GlobalGoal
	}
	return p.Point.Smoothed, p.Goal.Smoothed
}

// Smooth shrinks successes/n toward prior. The shrinkage weight falls as the
// sample grows: adj = k*(1-min(0.9, n/100)). Fewer than minSamples attempts
// return the prior itself.
func Smooth(successes, n int, prior, k float64, minSamples int) float64 {
	if n < minSamples || n == 0 {
		return prior
	}
	adj := k * (1 - math.Min(0.9, float64(n)/100))
	return (float64(successes) + prior*adj) / (float64(n) + adj)
}

// Strengths returns the point and goal shrinkage strengths for a corpus of n
// shots. Goals always shrink harder than points.
func Strengths(n int) (kPoints, kGoals float64) {
	scale := referenceCorpus / math.Max(minCorpus, float64(n))
	kPoints = clamp(15*scale, 5, 30)
	kGoals = clamp(30*scale, 10, 50)
	return kPoints, kGoals
}

// Estimator builds prior tables.
type Estimator struct {
	minSamples int
	minPlayers int
	formWindow int
}

// NewEstimator returns an estimator with the defaults.
func NewEstimator(opts ...Option) *Estimator {
	e := &Estimator{
		minSamples: defaultMinSamples,
		minPlayers: defaultMinPlayers,
		formWindow: defaultFormWindow,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type tally struct {
	shots, points, goals int
	setShots, setScores  int
	history              []scored
}

type scored struct {
	minute float64
	order  int
	hit    float64
}

// Estimate computes the prior table over a training corpus.
func (e *Estimator) Estimate(shots []features.Derived) *Table {
	t := &Table{Players: make(map[string]PlayerPrior)}
	n := len(shots)
	t.KPoints, t.KGoals = Strengths(n)
	if n == 0 {
		return t
	}

	byPlayer := make(map[string]*tally)
	var points, goals, setShots, setScores int
	for i, d := range shots {
		pt := byPlayer[d.PlayerID]
		if pt == nil {
			pt = &tally{}
			byPlayer[d.PlayerID] = pt
		}
		pt.shots++
		hit := 0.0
		switch d.Outcome {
		case model.Point:
			pt.points++
			points++
			hit = 1
		case model.Goal:
			pt.goals++
			goals++
			hit = 1
		}
		if d.SetPlay.IsSetPlay() {
			pt.setShots++
			setShots++
			if hit > 0 {
				pt.setScores++
				setScores++
			}
		}
		pt.history = append(pt.history, scored{minute: d.Minute, order: i, hit: hit})
	}

	t.GlobalPoint = float64(points) / float64(n)
	t.GlobalGoal = float64(goals) / float64(n)
	if setShots > 0 {
		t.GlobalSetPlay = float64(setScores) / float64(setShots)
	}
	t.Enabled = len(byPlayer) > e.minPlayers
	useSetPlay := setShots > defaultSetPlayNeed

	for id, pt := range byPlayer {
		p := PlayerPrior{
			PlayerID: id,
			Point:    e.rate(pt.points, pt.shots, t.GlobalPoint, t.KPoints, e.minSamples),
			Goal:     e.rate(pt.goals, pt.shots, t.GlobalGoal, t.KGoals, e.minSamples),
		}
		p.SetPlay = Rate{Shots: pt.setShots, Successes: pt.setScores, Smoothed: t.GlobalSetPlay}
		if pt.setShots > 0 {
			p.SetPlay.Raw = float64(pt.setScores) / float64(pt.setShots)
		}
		if useSetPlay {
			p.SetPlay = e.rate(pt.setScores, pt.setShots, t.GlobalSetPlay, defaultSetPlayK, defaultSetPlayMin)
		}
		p.RecentForm = e.form(pt.history)
		t.Players[id] = p
	}
	return t
}

func (e *Estimator) rate(successes, n int, prior, k float64, minSamples int) Rate {
	r := Rate{Shots: n, Successes: successes}
	if n > 0 {
		r.Raw = float64(successes) / float64(n)
	}
	r.Smoothed = Smooth(successes, n, prior, k, minSamples)
	return r
}

// form is the scoring rate over the player's last few shots ordered by
// game minute.
func (e *Estimator) form(history []scored) float64 {
	if len(history) == 0 {
		return 0
	}
	sort.SliceStable(history, func(i, j int) bool {
		if history[i].minute != history[j].minute {
			return history[i].minute < history[j].minute
		}
		return history[i].order < history[j].order
	})
	from := max(0, len(history)-e.formWindow)
	var sum float64
	for _, h := range history[from:] {
		sum += h.hit
	}
	return sum / float64(len(history)-from)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
