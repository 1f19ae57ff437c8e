// Package jobs keeps the status records of background recalculations.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/okian/xpoints/internal/domain/types"
)

// Sentinel errors.
var (
	ErrNotFound = errors.New("job not found")
	ErrExists   = errors.New("job already exists")
	ErrNoID     = errors.New("job has no id")
)

// DefaultTTL is how long records are kept after their last update.
const DefaultTTL = 24 * time.Hour

// Store persists job records.
type Store interface {
	// Create stores a new record. Returns ErrExists for a duplicate id.
	Create(ctx context.Context, job types.Job) error
	// Update applies fn to the stored record and saves it. UpdatedAt is set
	// by the store.
	Update(ctx context.Context, id string, fn func(*types.Job)) (types.Job, error)
	// Get returns a record or ErrNotFound.
	Get(ctx context.Context, id string) (types.Job, error)
}
