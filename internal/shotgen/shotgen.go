// Package shotgen generates deterministic synthetic shot corpora for local
// runs and tests.
package shotgen

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/okian/xpoints/internal/domain/model"
)

// Config controls corpus generation.
type Config struct {
	Games        int   // number of game documents
	ShotsPerGame int   // shots recorded per game
	Players      int   // distinct shooters
	Seed         int64 // seed for every random draw
	SetPlayShare float64
	// NoGoals suppresses goal outcomes entirely.
	NoGoals bool
	// AllMiss makes every shot a miss.
	AllMiss bool
	// MalformedShare is the share of shots with unparseable coordinates.
	MalformedShare float64
}

// DefaultConfig is a small league season.
func DefaultConfig() Config {
	return Config{Games: 12, ShotsPerGame: 40, Players: 24, Seed: 7, SetPlayShare: 0.2}
}

var (
	positions = []string{"forward", "forward", "midfielder", "back", "goalkeeper"}
	pressures = []string{"none", "low", "medium", "high", "y", "n"}
	feet      = []string{"right", "right", "left"}
	misses    = []string{"wide", "short", "saved", "blocked", "post"}
	setPlays  = []struct {
		shotType, scored string
	}{
		{"free", "free scored"},
		{"free", "point"},
		{"45", "point"},
		{"mark", "offensive mark"},
		{"penalty", "penalty goal"},
	}
)

// Generate returns the corpus. The same config always yields the same shots.
func Generate(cfg Config) []model.Shot {
	if cfg.Players <= 0 {
		cfg.Players = 1
	}
	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // deterministic fixtures
	skill := make([]float64, cfg.Players)
	for i := range skill {
		skill[i] = rng.NormFloat64() * 0.4
	}

	out := make([]model.Shot, 0, cfg.Games*cfg.ShotsPerGame)
	for g := 0; g < cfg.Games; g++ {
		gameID := fmt.Sprintf("game-%03d", g)
		diff := 0.0
		for i := 0; i < cfg.ShotsPerGame; i++ {
			p := rng.Intn(cfg.Players)
			s := model.Shot{
				GameID:     gameID,
				Index:      i,
				CoordsOK:   true,
				PlayerID:   fmt.Sprintf("player-%02d", p),
				PlayerName: fmt.Sprintf("Player %d", p),
				Team:       fmt.Sprintf("team-%d", p%2),
				Position:   positions[p%len(positions)],
				Pressure:   pressures[rng.Intn(len(pressures))],
				Foot:       feet[rng.Intn(len(feet))],
				ScoreDiff:  diff,
			}
			minute := float64(i) * 70 / float64(max(1, cfg.ShotsPerGame))
			s.Minute = &minute

			// shots cluster in the attacking half
			s.X = 145 - math.Abs(rng.NormFloat64()*18) - 5
			s.Y = 44 + rng.NormFloat64()*14
			s.X = math.Max(60, math.Min(144, s.X))
			s.Y = math.Max(1, math.Min(87, s.Y))

			setPlay := rng.Float64() < cfg.SetPlayShare
			dist := math.Hypot(145-s.X, 44-s.Y)
			angle := math.Abs(math.Atan2(44-s.Y, 145-s.X) * 180 / math.Pi)
			logit := 2.2 - 0.07*dist - 0.02*angle + skill[p]
			if setPlay {
				logit += 0.8
			}
			scored := !cfg.AllMiss && rng.Float64() < 1/(1+math.Exp(-logit))
			goal := !cfg.AllMiss && !cfg.NoGoals && dist < 22 && rng.Float64() < 0.18

			switch {
			case setPlay:
				sp := setPlays[rng.Intn(len(setPlays))]
				s.ShotType = sp.shotType
				switch {
				case scored && sp.shotType == "penalty" && !cfg.NoGoals:
					s.OutcomeText = sp.scored
					s.X, s.Y = 134, 44
				case scored && sp.shotType != "penalty":
					s.OutcomeText = sp.scored
				default:
					s.OutcomeText = misses[rng.Intn(len(misses))]
				}
			case goal:
				s.OutcomeText = "goal"
			case scored:
				if rng.Intn(2) == 0 {
					s.OutcomeText = "point"
				} else {
					s.OutcomeText = "over"
				}
			default:
				s.OutcomeText = misses[rng.Intn(len(misses))]
			}

			if rng.Float64() < cfg.MalformedShare {
				s.CoordsOK = false
				s.X, s.Y = math.NaN(), math.NaN()
			}
			switch model.Classify(s.OutcomeText) {
			case model.Goal:
				diff += 3
			case model.Point:
				diff++
			}
			out = append(out, s)
		}
	}
	return out
}

// Games groups a corpus by game id preserving shot order.
func Games(shots []model.Shot) map[string][]model.Shot {
	out := make(map[string][]model.Shot)
	for _, s := range shots {
		out[s.GameID] = append(out[s.GameID], s)
	}
	return out
}
