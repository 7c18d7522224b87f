package cart

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/store"
)

func TestRegistry_GetReturnsSameManager(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := NewRegistry(Deps{Store: store.NewMemory()})
	t.Cleanup(r.Close)

	a := r.Get(ctx, "u1")
	b := r.Get(ctx, "u1")
	assert.Same(t, a, b)
	assert.NotSame(t, a, r.Get(ctx, "u2"))
}

func TestRegistry_Merge(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := store.NewMemory()
	r := NewRegistry(Deps{Store: s})
	t.Cleanup(r.Close)

	_, err := r.Get(ctx, "anon").Add(ctx, tshirt, 2)
	require.NoError(t, err)
	_, err = r.Get(ctx, "user").Add(ctx, tshirt, 1)
	require.NoError(t, err)
	_, err = r.Get(ctx, "anon").Add(ctx, ring, 1)
	require.NoError(t, err)

	snap, err := r.Merge(ctx, "anon", "user")
	require.NoError(t, err)
	assert.Equal(t, 4, snap.Count)
	assert.Empty(t, r.Items(ctx, "anon"))

	again, err := r.Merge(ctx, "anon", "user")
	require.NoError(t, err)
	assert.Equal(t, snap, again)
}

func TestRegistry_MergeDropsSourceCart(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := store.NewMemory()
	r := NewRegistry(Deps{Store: s})
	t.Cleanup(r.Close)

	_, err := r.Get(ctx, "anon").Add(ctx, jacket, 1)
	require.NoError(t, err)
	r.Get(ctx, "user")
	require.Equal(t, 2, r.Len())

	_, err = r.Merge(ctx, "anon", "user")
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())

	_, err = s.Get(ctx, store.CartKey("anon"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRegistry_Sweep(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := store.NewMemory()
	r := NewRegistry(Deps{Store: s})
	t.Cleanup(r.Close)
	clock := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }

	_, err := r.Get(ctx, "idle").Add(ctx, tshirt, 2)
	require.NoError(t, err)
	held, release := r.Acquire(ctx, "held")
	clock = clock.Add(time.Hour)
	r.Get(ctx, "fresh")

	assert.Equal(t, 1, r.Sweep(30*time.Minute))
	assert.Equal(t, 2, r.Len())
	assert.Same(t, held, r.Get(ctx, "held"))

	// the evicted cart comes back from the store
	items := r.Items(ctx, "idle")
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)

	release()
	clock = clock.Add(time.Hour)
	assert.Equal(t, 3, r.Sweep(30*time.Minute))
	assert.Zero(t, r.Len())
}

func TestRegistry_SweepClosesSyncWorker(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	remote := &fakeRemote{}
	r := NewRegistry(Deps{Store: store.NewMemory(), Remote: remote})
	t.Cleanup(r.Close)
	clock := time.Now()
	r.now = func() time.Time { return clock }

	_, err := r.Get(ctx, "u1").Add(ctx, tshirt, 1)
	require.NoError(t, err)
	clock = clock.Add(time.Hour)

	require.Equal(t, 1, r.Sweep(time.Minute))
	// Close drains the pending push before the worker exits
	assert.Len(t, remote.pushed(), 1)
}
