package artifacts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/xpoints/internal/domain/engine"
	"github.com/okian/xpoints/internal/domain/features"
)

func TestCache(t *testing.T) {
	ctx := context.Background()
	schema := features.Current()

	t.Run("hit and replace", func(t *testing.T) {
		c := New()
		_, ok := c.Get(ctx, "u1", "league", schema)
		assert.False(t, ok)

		c.Put(ctx, "u1", "league", &engine.Artifact{ID: "a1", Schema: schema})
		got, ok := c.Get(ctx, "u1", "league", schema)
		require.True(t, ok)
		assert.Equal(t, "a1", got.ID)

		c.Put(ctx, "u1", "league", &engine.Artifact{ID: "a2", Schema: schema})
		got, _ = c.Get(ctx, "u1", "league", schema)
		assert.Equal(t, "a2", got.ID)
		assert.Equal(t, 1, c.Len())

		_, ok = c.Get(ctx, "u2", "league", schema)
		assert.False(t, ok)
	})

	t.Run("schema mismatch evicts", func(t *testing.T) {
		c := New()
		c.Put(ctx, "u1", "league", &engine.Artifact{ID: "old", Schema: features.Schema{Version: 0, Names: []string{"distance"}}})
		_, ok := c.Get(ctx, "u1", "league", schema)
		assert.False(t, ok)
		assert.Equal(t, 0, c.Len())
	})

	t.Run("least recently used goes first", func(t *testing.T) {
		c := New(WithCapacity(2))
		clock := time.Unix(0, 0)
		c.now = func() time.Time { clock = clock.Add(time.Second); return clock }

		c.Put(ctx, "u", "a", &engine.Artifact{ID: "a", Schema: schema})
		c.Put(ctx, "u", "b", &engine.Artifact{ID: "b", Schema: schema})
		_, _ = c.Get(ctx, "u", "a", schema)
		c.Put(ctx, "u", "c", &engine.Artifact{ID: "c", Schema: schema})

		_, okA := c.Get(ctx, "u", "a", schema)
		_, okB := c.Get(ctx, "u", "b", schema)
		assert.True(t, okA)
		assert.False(t, okB)
	})

	t.Run("invalidate", func(t *testing.T) {
		c := New()
		c.Put(ctx, "u", "a", &engine.Artifact{ID: "a", Schema: schema})
		c.Invalidate("u", "a")
		assert.Equal(t, 0, c.Len())
	})
}
