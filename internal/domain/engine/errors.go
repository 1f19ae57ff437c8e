package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrInsufficientData = errors.New("insufficient training data")
	ErrNoStore          = errors.New("engine has no shot store")
	ErrNoArtifact       = errors.New("no trained artifact")
	ErrUnknownView      = errors.New("unknown leaderboard view")
)

// Warning is a non-fatal run outcome. Nothing is written when a run ends in
// a warning.
type Warning struct {
	Err             error
	Message         string
	Recommendations []string
}

func (w *Warning) Error() string {
	return fmt.Sprintf("%s: %s", w.Err, w.Message)
}

func (w *Warning) Unwrap() error { return w.Err }

// GameError is a commit failure for a single game. Other games still commit.
type GameError struct {
	GameID string
	Err    error
}

func (e *GameError) Error() string {
	return fmt.Sprintf("commit game %s: %v", e.GameID, e.Err)
}

func (e *GameError) Unwrap() error { return e.Err }
