package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/buybox/internal/cache"
)

func TestMemory_SetGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := cache.NewMemory()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestMemory_Miss(t *testing.T) {
	t.Parallel()

	_, err := cache.NewMemory().Get(context.Background(), "absent")
	require.ErrorIs(t, err, cache.ErrMiss)
}

func TestMemory_Expiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := cache.NewMemory()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 50*time.Millisecond))

	_, err := m.Get(ctx, "k")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := m.Get(ctx, "k")
		return errors.Is(err, cache.ErrMiss)
	}, time.Second, 5*time.Millisecond)
}

func TestMemory_ReadsDoNotExtendTTL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := cache.NewMemory()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 60*time.Millisecond))
	deadline := time.Now().Add(60 * time.Millisecond)

	// Reading well inside the TTL must not push the expiry out.
	for range 3 {
		time.Sleep(10 * time.Millisecond)
		_, _ = m.Get(ctx, "k")
	}

	time.Sleep(time.Until(deadline) + 20*time.Millisecond)
	_, err := m.Get(ctx, "k")
	require.ErrorIs(t, err, cache.ErrMiss)
}

func TestMemory_NonPositiveTTLNeverExpires(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := cache.NewMemory()

	require.NoError(t, m.Set(ctx, "zero", []byte("v"), 0))
	require.NoError(t, m.Set(ctx, "negative", []byte("v"), -time.Second))
	time.Sleep(20 * time.Millisecond)

	n, err := m.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = m.Get(ctx, "zero")
	require.NoError(t, err)
	_, err = m.Get(ctx, "negative")
	require.NoError(t, err)
}

func TestMemory_ValuesAreCopied(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := cache.NewMemory()

	val := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", val, 0))
	val[0] = 'x'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	got[1] = 'y'
	again, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestMemory_Delete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := cache.NewMemory()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, m.Delete(ctx, "k"))
	require.NoError(t, m.Delete(ctx, "k"), "deleting twice is not an error")

	_, err := m.Get(ctx, "k")
	require.ErrorIs(t, err, cache.ErrMiss)
}

func TestMemory_PurgeExpired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := cache.NewMemory()

	require.NoError(t, m.Set(ctx, "short", []byte("1"), 10*time.Millisecond))
	require.NoError(t, m.Set(ctx, "long", []byte("2"), time.Hour))
	require.NoError(t, m.Set(ctx, "forever", []byte("3"), 0))

	time.Sleep(30 * time.Millisecond)

	n, err := m.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, m.Len())
}

func TestKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "buybox:result:p1", cache.Key("buybox", "result", "p1"))
	assert.Equal(t, "result:p1", cache.Key("", "result", "p1"))
	assert.Equal(t, "buybox:p1", cache.Key("buybox", "", "p1"))
}
