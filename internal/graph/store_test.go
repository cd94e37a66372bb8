package graph

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/passbi/transit_router/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	loads atomic.Int32
	fail  bool
}

func (c *countingSource) Name() string { return "counting" }

func (c *countingSource) Load(ctx context.Context) (*Snapshot, error) {
	c.loads.Add(1)
	if c.fail {
		return nil, errors.New("boom")
	}
	return NewSnapshot([]models.Node{{ID: "A"}}, nil)
}

func TestStoreSwap(t *testing.T) {
	store := NewStore(nil)
	assert.False(t, store.IsLoaded())
	assert.Nil(t, store.Current())

	first := testSnapshot(t)
	assert.Nil(t, store.Swap(first))
	assert.Same(t, first, store.Current())

	// A reader holding the old snapshot keeps a consistent view
	held := store.Current()
	second := testSnapshot(t)
	prev := store.Swap(second)

	assert.Same(t, first, prev)
	assert.Same(t, second, store.Current())
	assert.Equal(t, 5, held.NodeCount())
	assert.NotEqual(t, held.Version(), store.Current().Version())
}

func TestStoreReload(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes new snapshot", func(t *testing.T) {
		store := NewStore(testSnapshot(t))
		src := &countingSource{}

		snap, err := store.Reload(ctx, src)
		require.NoError(t, err)
		assert.Same(t, snap, store.Current())
		assert.Equal(t, 1, store.Current().NodeCount())
	})

	t.Run("failure keeps current snapshot", func(t *testing.T) {
		initial := testSnapshot(t)
		store := NewStore(initial)

		_, err := store.Reload(ctx, &countingSource{fail: true})
		assert.Error(t, err)
		assert.Same(t, initial, store.Current())
	})

	t.Run("static source", func(t *testing.T) {
		snap := testSnapshot(t)
		store := NewStore(nil)

		_, err := store.Reload(ctx, StaticSource{Snapshot: snap})
		require.NoError(t, err)
		assert.Same(t, snap, store.Current())

		_, err = store.Reload(ctx, StaticSource{})
		assert.Error(t, err)
	})
}

func TestStoreWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore(nil)
	src := &countingSource{}
	reloaded := make(chan struct{}, 10)

	done := make(chan struct{})
	go func() {
		store.Watch(ctx, src, 10*time.Millisecond, func(*Snapshot, error) {
			reloaded <- struct{}{}
		})
		close(done)
	}()

	select {
	case <-reloaded:
	case <-time.After(2 * time.Second):
		t.Fatal("watch never reloaded")
	}
	assert.True(t, store.IsLoaded())

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop on cancel")
	}
}
