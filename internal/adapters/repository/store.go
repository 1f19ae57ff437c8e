// Package repository stores game documents with their shots and the
// leaderboards computed from them.
package repository

import (
	"context"

	"github.com/okian/xpoints/internal/domain/leaderboard"
	"github.com/okian/xpoints/internal/domain/model"
)

// Game is one game document of a user's dataset. Shot indexes are positions
// in the document's gameData array.
type Game struct {
	ID      string
	UserID  string
	Dataset string
	Shots   []model.Shot
}

// Store provides read/write access to shot documents and leaderboards.
type Store interface {
	// Shots returns every shot of a dataset ordered by game id then index.
	// An unknown dataset yields no shots and no error.
	Shots(ctx context.Context, userID, dataset string) ([]model.Shot, error)

	// CommitGame merges annotation fields onto the game's shots in one write.
	// Fields not produced by annotations are left untouched.
	// Returns ErrGameNotFound for an unknown game and ErrShotIndex when an
	// annotation points outside the game.
	CommitGame(ctx context.Context, userID, dataset, gameID string, anns []model.Annotation) error

	// PutGame creates or replaces a game document.
	PutGame(ctx context.Context, g Game) error

	// PutLeaderboard replaces the stored table of a dataset.
	PutLeaderboard(ctx context.Context, userID, dataset string, t *leaderboard.Table) error

	// Leaderboard returns the last stored table of a dataset.
	// Returns ErrNotFound when no run has completed for it.
	Leaderboard(ctx context.Context, userID, dataset string) (*leaderboard.Table, error)

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}

func docKey(userID, dataset string) string {
	return userID + "/" + dataset
}
