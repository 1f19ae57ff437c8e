package features

import (
	"math"
	"strconv"
	"strings"

	"github.com/okian/xpoints/internal/domain/model"
)

var pressureLevels = map[string]float64{
	"none":   0,
	"low":    0.33,
	"medium": 0.67,
	"high":   1,
	"n":      0,
	"no":     0,
	"y":      1,
	"yes":    1,
}

// PressureValue encodes a pressure label on a 0..1 scale. Numeric labels are
// clamped; unknown labels read as no pressure.
func PressureValue(label string) float64 {
	l := strings.ToLower(strings.TrimSpace(label))
	if v, ok := pressureLevels[l]; ok {
		return v
	}
	if v, err := strconv.ParseFloat(l, 64); err == nil && !math.IsNaN(v) {
		return clamp(v, 0, 1)
	}
	return 0
}

// Set-play pressure damping: penalties and frees are taken unopposed.
const (
	penaltyPressure = 0.1
	freePressure    = 0.3
	setPlayPressure = 0.5
)

// EffectivePressure scales pressure by how contested the shot type is.
func EffectivePressure(pressure float64, sp model.SetPlayType) float64 {
	switch sp {
	case model.OpenPlay:
		return pressure
	case model.Penalty:
		return pressure * penaltyPressure
	case model.Free:
		return pressure * freePressure
	default:
		return pressure * setPlayPressure
	}
}

var positionValues = map[string]float64{
	"goalkeeper": 0, "goalie": 0, "keeper": 0,
	"back": 1, "defender": 1, "defense": 1,
	"midfielder": 2, "midfield": 2, "mid": 2,
	"forward": 3, "attacker": 3, "striker": 3,
}

const defaultPosition = 2

// PositionValue encodes a playing position as keeper 0 .. forward 3.
func PositionValue(position string) float64 {
	if v, ok := positionValues[strings.ToLower(strings.TrimSpace(position))]; ok {
		return v
	}
	return defaultPosition
}

func footFlags(foot string) (right, left bool) {
	f := strings.ToLower(foot)
	return strings.Contains(f, "right"), strings.Contains(f, "left")
}

// bucket returns i such that edges[i] < v <= edges[i+1], clamped to the
// first and last bins.
func bucket(v float64, edges []float64) float64 {
	for i := 1; i < len(edges); i++ {
		if v <= edges[i] {
			return float64(i - 1)
		}
	}
	return float64(len(edges) - 2)
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
