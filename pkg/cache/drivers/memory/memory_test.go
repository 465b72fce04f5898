package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/realmauth/pkg/cache"
)

func TestCache_PutGetRemove(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := New(0, time.Minute)

	_, err := c.Get(ctx, "missing")
	require.ErrorIs(t, err, cache.ErrMiss)

	require.NoError(t, c.Put(ctx, "k", []byte("v1")))
	require.NoError(t, c.Put(ctx, "k", []byte("v2")))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), got)

	removed, err := c.Remove(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), removed)

	_, err = c.Remove(ctx, "k")
	require.ErrorIs(t, err, cache.ErrMiss)
}

func TestCache_ValuesAreCopied(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := New(0, time.Minute)

	value := []byte("secret")
	require.NoError(t, c.Put(ctx, "k", value))
	value[0] = 'X'

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("secret"), got)

	got[0] = 'Y'
	again, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("secret"), again)
}

func TestCache_Expiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := New(0, 20*time.Millisecond)

	require.NoError(t, c.Put(ctx, "k", []byte("v")))
	require.Eventually(t, func() bool {
		_, err := c.Get(ctx, "k")
		return err != nil
	}, time.Second, 10*time.Millisecond)
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := New(2, time.Minute)

	require.NoError(t, c.Put(ctx, "a", []byte("1")))
	require.NoError(t, c.Put(ctx, "b", []byte("2")))
	_, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, "c", []byte("3")))

	require.Equal(t, 2, c.Len())
	_, err = c.Get(ctx, "b")
	require.ErrorIs(t, err, cache.ErrMiss)
}
