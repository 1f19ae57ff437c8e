package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/okian/xpoints/internal/domain/leaderboard"
	"github.com/okian/xpoints/internal/domain/model"
)

func game(id string, n int) Game {
	g := Game{ID: id, UserID: "u1", Dataset: "league"}
	for i := 0; i < n; i++ {
		g.Shots = append(g.Shots, model.Shot{X: 120, Y: 44, CoordsOK: true, OutcomeText: "point", PlayerID: "p1"})
	}
	return g
}

func TestInMemoryStore_Shots(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	require.NoError(t, s.PutGame(ctx, game("g2", 2)))
	require.NoError(t, s.PutGame(ctx, game("g1", 3)))

	shots, err := s.Shots(ctx, "u1", "league")
	require.NoError(t, err)
	require.Len(t, shots, 5)
	assert.Equal(t, model.Key{GameID: "g1", Index: 0}, shots[0].Key())
	assert.Equal(t, model.Key{GameID: "g1", Index: 2}, shots[2].Key())
	assert.Equal(t, model.Key{GameID: "g2", Index: 1}, shots[4].Key())

	other, err := s.Shots(ctx, "u2", "league")
	require.NoError(t, err)
	assert.Empty(t, other)

	datasets, games := s.Counts()
	assert.Equal(t, 1, datasets)
	assert.Equal(t, 2, games)

	assert.ErrorIs(t, s.PutGame(ctx, Game{ID: "x"}), ErrInvalidGame)
}

func TestInMemoryStore_CommitGame(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	require.NoError(t, s.PutGame(ctx, game("g1", 2)))

	ann := model.Annotation{GameID: "g1", Index: 1, XPoints: 0.6, Category: model.Point}
	require.NoError(t, s.CommitGame(ctx, "u1", "league", "g1", []model.Annotation{ann}))

	fields, err := s.Fields(ctx, "u1", "league", "g1")
	require.NoError(t, err)
	assert.Nil(t, fields[0])
	assert.Equal(t, 0.6, fields[1]["xPoints"])
	assert.Equal(t, "point", fields[1]["category"])

	t.Run("unknown game", func(t *testing.T) {
		err := s.CommitGame(ctx, "u1", "league", "nope", nil)
		assert.ErrorIs(t, err, ErrGameNotFound)
	})

	t.Run("out of range rejects the whole game", func(t *testing.T) {
		anns := []model.Annotation{
			{GameID: "g1", Index: 0, XPoints: 0.9},
			{GameID: "g1", Index: 5},
		}
		err := s.CommitGame(ctx, "u1", "league", "g1", anns)
		assert.ErrorIs(t, err, ErrShotIndex)
		fields, _ := s.Fields(ctx, "u1", "league", "g1")
		assert.Nil(t, fields[0])
	})

	t.Run("commits merge over earlier fields", func(t *testing.T) {
		again := ann
		again.XPoints = 0.4
		require.NoError(t, s.CommitGame(ctx, "u1", "league", "g1", []model.Annotation{again}))
		fields, _ := s.Fields(ctx, "u1", "league", "g1")
		assert.Equal(t, 0.4, fields[1]["xPoints"])
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		assert.ErrorIs(t, s.CommitGame(cctx, "u1", "league", "g1", nil), context.Canceled)
	})
}

func TestInMemoryStore_Leaderboard(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	_, err := s.Leaderboard(ctx, "u1", "league")
	assert.ErrorIs(t, err, ErrNotFound)

	table := &leaderboard.Table{All: []leaderboard.Entry{{PlayerID: "a", Shots: 3}}}
	require.NoError(t, s.PutLeaderboard(ctx, "u1", "league", table))
	table.All[0].Shots = 99

	got, err := s.Leaderboard(ctx, "u1", "league")
	require.NoError(t, err)
	assert.Equal(t, 3, got.All[0].Shots)
}

func TestGameKey(t *testing.T) {
	assert.Equal(t, "u1/league/g1", gameKey("u1", "league", "g1"))
	assert.NotEqual(t, gameKey("u1", "league", "g1"), gameKey("u1", "cup", "g1"))
}

func TestInMemoryStore_SameGameInTwoDatasets(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	league, cup := game("g1", 3), game("g1", 1)
	cup.Dataset = "cup"
	require.NoError(t, s.PutGame(ctx, league))
	require.NoError(t, s.PutGame(ctx, cup))

	shots, err := s.Shots(ctx, "u1", "league")
	require.NoError(t, err)
	assert.Len(t, shots, 3)

	assert.ErrorIs(t, s.CommitGame(ctx, "u1", "cup", "g1", []model.Annotation{{GameID: "g1", Index: 2}}), ErrShotIndex)
	require.NoError(t, s.CommitGame(ctx, "u1", "league", "g1", []model.Annotation{{GameID: "g1", Index: 2}}))
}

func TestDecodeShot(t *testing.T) {
	t.Run("numbers stored as text", func(t *testing.T) {
		s := decodeShot("g1", 4, bson.M{
			"x": "130.5", "y": int32(40), "action": " Point ", "playerName": "Ann",
			"minute": int64(12), "scoreDiff": -2.0,
		})
		assert.True(t, s.CoordsOK)
		assert.Equal(t, 130.5, s.X)
		assert.Equal(t, 40.0, s.Y)
		assert.Equal(t, "Point", s.OutcomeText)
		assert.Equal(t, "Ann", s.PlayerID)
		require.NotNil(t, s.Minute)
		assert.Equal(t, 12.0, *s.Minute)
		assert.Equal(t, -2.0, s.ScoreDiff)
		assert.Equal(t, model.Key{GameID: "g1", Index: 4}, s.Key())
	})

	t.Run("Outcome wins over action", func(t *testing.T) {
		s := decodeShot("g1", 0, bson.M{"Outcome": "goal", "action": "wide"})
		assert.Equal(t, "goal", s.OutcomeText)
		assert.False(t, s.CoordsOK)
		assert.Nil(t, s.Minute)
	})

	t.Run("round trip", func(t *testing.T) {
		minute := 33.0
		in := model.Shot{GameID: "g", Index: 2, X: 100, Y: 20, CoordsOK: true, OutcomeText: "free", ShotType: "free",
			PlayerID: "p9", PlayerName: "Bo", Team: "A", Position: "forward", Pressure: "high", Foot: "left",
			Minute: &minute, ScoreDiff: 1}
		out := decodeShot("g", 2, encodeShot(in))
		assert.Equal(t, in, out)
	})

	t.Run("malformed coordinates", func(t *testing.T) {
		out := decodeShot("g", 0, encodeShot(model.Shot{OutcomeText: "wide"}))
		assert.False(t, out.CoordsOK)
	})
}

type flakyStore struct {
	*InMemoryStore
	err   error
	calls int
}

func (f *flakyStore) CommitGame(ctx context.Context, userID, dataset, gameID string, anns []model.Annotation) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return f.InMemoryStore.CommitGame(ctx, userID, dataset, gameID, anns)
}

func TestBreakerStore(t *testing.T) {
	ctx := context.Background()

	t.Run("opens after consecutive failures", func(t *testing.T) {
		next := &flakyStore{InMemoryStore: NewInMemoryStore(), err: errors.New("connection reset")}
		b := NewBreakerStore(next, nil, WithBreakerFailures(2), WithBreakerTimeout(time.Minute))
		for i := 0; i < 2; i++ {
			assert.Error(t, b.CommitGame(ctx, "u1", "league", "g1", nil))
		}
		assert.Equal(t, gobreaker.StateOpen, b.State())

		err := b.CommitGame(ctx, "u1", "league", "g1", nil)
		assert.ErrorIs(t, err, ErrUnavailable)
		assert.Equal(t, 2, next.calls)
	})

	t.Run("caller errors keep it closed", func(t *testing.T) {
		next := &flakyStore{InMemoryStore: NewInMemoryStore()}
		b := NewBreakerStore(next, nil, WithBreakerFailures(1))
		for i := 0; i < 3; i++ {
			assert.ErrorIs(t, b.CommitGame(ctx, "u1", "league", "missing", nil), ErrGameNotFound)
		}
		assert.Equal(t, gobreaker.StateClosed, b.State())
	})

	t.Run("passes results through", func(t *testing.T) {
		mem := NewInMemoryStore()
		require.NoError(t, mem.PutGame(ctx, game("g1", 2)))
		b := NewBreakerStore(mem, nil)
		shots, err := b.Shots(ctx, "u1", "league")
		require.NoError(t, err)
		assert.Len(t, shots, 2)
		assert.NoError(t, b.Ping(ctx))
	})
}
