package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bugian/Sign-up-Log-in-page/internal/repository"
)

func newTestCache(t *testing.T) (*Cache, *time.Time) {
	t.Helper()
	c := NewCache(time.Hour)
	t.Cleanup(c.Stop)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestCache_SetGet(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, repository.ErrCacheMiss)

	value := []byte("v")
	require.NoError(t, c.Set(ctx, "k", value, 0))
	value[0] = 'x'

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got, "stored value must be a copy")
}

func TestCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c, now := newTestCache(t)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

	*now = now.Add(59 * time.Second)
	_, err := c.Get(ctx, "k")
	require.NoError(t, err)

	*now = now.Add(time.Second)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, repository.ErrCacheMiss)

	c.cleanup()
	assert.Equal(t, 0, c.Len())
}

func TestCache_Delete(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))
	require.NoError(t, c.Set(ctx, "c", []byte("3"), 0))

	require.NoError(t, c.Delete(ctx, "a"))
	require.NoError(t, c.DeleteMulti(ctx, "b", "missing"))

	assert.Equal(t, 1, c.Len())
	_, err := c.Get(ctx, "c")
	assert.NoError(t, err)
}

func TestCache_StopIdempotent(t *testing.T) {
	c := NewCache(0)
	c.Stop()
	c.Stop()
}
