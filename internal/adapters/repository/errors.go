package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New("leaderboard not found")
	ErrGameNotFound = errors.New("game not found")
	ErrShotIndex    = errors.New("shot index out of range")
	ErrInvalidGame  = errors.New("invalid game document")
)
