package repository

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/okian/xpoints/internal/domain/leaderboard"
	"github.com/okian/xpoints/internal/domain/model"
	"github.com/okian/xpoints/pkg/metrics"
)

type memGame struct {
	shots  []model.Shot
	fields []map[string]any
}

// InMemoryStore is a Store held in process memory. It backs local runs and
// tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	datasets map[string]map[string]*memGame
	boards   map[string]*leaderboard.Table
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		datasets: make(map[string]map[string]*memGame),
		boards:   make(map[string]*leaderboard.Table),
	}
}

func (s *InMemoryStore) Shots(ctx context.Context, userID, dataset string) ([]model.Shot, error) {
	defer observe("shots", time.Now())
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	games := s.datasets[docKey(userID, dataset)]
	ids := slices.Sorted(maps.Keys(games))
	var out []model.Shot
	for _, id := range ids {
		out = append(out, games[id].shots...)
	}
	return out, nil
}

func (s *InMemoryStore) CommitGame(ctx context.Context, userID, dataset, gameID string, anns []model.Annotation) error {
	defer observe("commit_game", time.Now())
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.datasets[docKey(userID, dataset)][gameID]
	if !ok {
		return fmt.Errorf("%s: %w", gameID, ErrGameNotFound)
	}
	// validate everything before touching the document
	for _, a := range anns {
		if a.GameID != gameID || a.Index < 0 || a.Index >= len(g.shots) {
			return fmt.Errorf("%s[%d]: %w", gameID, a.Index, ErrShotIndex)
		}
	}
	for _, a := range anns {
		if g.fields[a.Index] == nil {
			g.fields[a.Index] = make(map[string]any)
		}
		maps.Copy(g.fields[a.Index], a.Fields())
	}
	return nil
}

func (s *InMemoryStore) PutGame(ctx context.Context, g Game) error {
	defer observe("put_game", time.Now())
	if err := ctx.Err(); err != nil {
		return err
	}
	if g.ID == "" || g.UserID == "" || g.Dataset == "" {
		return ErrInvalidGame
	}
	shots := make([]model.Shot, len(g.Shots))
	for i, sh := range g.Shots {
		sh.GameID, sh.Index = g.ID, i
		shots[i] = sh
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := docKey(g.UserID, g.Dataset)
	if s.datasets[key] == nil {
		s.datasets[key] = make(map[string]*memGame)
	}
	s.datasets[key][g.ID] = &memGame{shots: shots, fields: make([]map[string]any, len(shots))}
	return nil
}

// Fields returns a copy of the annotation fields merged onto each shot of a
// game; entries are nil for shots never annotated.
func (s *InMemoryStore) Fields(_ context.Context, userID, dataset, gameID string) ([]map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.datasets[docKey(userID, dataset)][gameID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", gameID, ErrGameNotFound)
	}
	out := make([]map[string]any, len(g.fields))
	for i, f := range g.fields {
		if f != nil {
			out[i] = maps.Clone(f)
		}
	}
	return out, nil
}

func (s *InMemoryStore) PutLeaderboard(_ context.Context, userID, dataset string, t *leaderboard.Table) error {
	if t == nil {
		return nil
	}
	cp := &leaderboard.Table{All: slices.Clone(t.All)}
	s.mu.Lock()
	s.boards[docKey(userID, dataset)] = cp
	s.mu.Unlock()
	return nil
}

func (s *InMemoryStore) Leaderboard(_ context.Context, userID, dataset string) (*leaderboard.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.boards[docKey(userID, dataset)]
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

func (s *InMemoryStore) Ping(context.Context) error { return nil }

// Counts returns the number of datasets and game documents held.
func (s *InMemoryStore) Counts() (datasets, games int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.datasets {
		games += len(g)
	}
	return len(s.datasets), games
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}

var _ Store = (*InMemoryStore)(nil)

// sortShots orders shots by game id then index.
func sortShots(shots []model.Shot) {
	sort.SliceStable(shots, func(i, j int) bool {
		if shots[i].GameID != shots[j].GameID {
			return shots[i].GameID < shots[j].GameID
		}
		return shots[i].Index < shots[j].Index
	})
}
