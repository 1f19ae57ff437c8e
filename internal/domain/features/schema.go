package features

import (
	"fmt"
	"slices"
)

// SchemaVersion is bumped whenever the feature layout changes.
const SchemaVersion = 1

// Schema is the ordered list of feature columns a model was trained on.
// It travels with trained artifacts so scoring builds identical rows.
type Schema struct {
	Version int      `json:"version"`
	Names   []string `json:"names"`
}

// Prior feature columns appended after the shot-level features.
const (
	PlayerPointPrior = "player_point_prior"
	PlayerGoalPrior  = "player_goal_prior"
	ClusterPointRate = "cluster_point_rate"
	ClusterGoalRate  = "cluster_goal_rate"
)

// Priors are the per-shot prior values appended to a feature row.
type Priors struct {
	PlayerPoint  float64
	PlayerGoal   float64
	ClusterPoint float64
	ClusterGoal  float64
}

// Current returns the schema produced by this version of the extractor.
func Current() Schema {
	names := make([]string, 0, len(shotFeatures)+4)
	for _, f := range shotFeatures {
		names = append(names, f.name)
	}
	names = append(names, PlayerPointPrior, PlayerGoalPrior, ClusterPointRate, ClusterGoalRate)
	return Schema{Version: SchemaVersion, Names: names}
}

// Dim is the row width.
func (s Schema) Dim() int { return len(s.Names) }

// Equal reports whether two schemas describe the same layout.
func (s Schema) Equal(o Schema) bool {
	return s.Version == o.Version && slices.Equal(s.Names, o.Names)
}

// Index returns the column of name, or -1.
func (s Schema) Index(name string) int {
	return slices.Index(s.Names, name)
}

// Vector builds the model row for a derived shot.
func (s Schema) Vector(d Derived, p Priors) ([]float64, error) {
	if len(d.Values)+4 != s.Dim() {
		return nil, fmt.Errorf("%w: row has %d columns, schema v%d has %d",
			ErrSchemaMismatch, len(d.Values)+4, s.Version, s.Dim())
	}
	row := make([]float64, 0, s.Dim())
	row = append(row, d.Values...)
	row = append(row, finite(p.PlayerPoint), finite(p.PlayerGoal), finite(p.ClusterPoint), finite(p.ClusterGoal))
	return row, nil
}

// Check validates that a row width matches the schema.
func (s Schema) Check(width int) error {
	if width != s.Dim() {
		return fmt.Errorf("%w: got %d columns, want %d", ErrSchemaMismatch, width, s.Dim())
	}
	return nil
}
