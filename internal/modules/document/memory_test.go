package document

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	id, err := s.Add(ctx, CollectionItems, Fields{"name": "Widget", "stock": 10})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	doc, err := s.Get(ctx, CollectionItems, id)
	require.NoError(t, err)
	assert.Equal(t, "Widget", doc.Fields["name"])

	require.NoError(t, s.Update(ctx, CollectionItems, id, Fields{"stock": 12}))
	doc, err = s.Get(ctx, CollectionItems, id)
	require.NoError(t, err)
	assert.Equal(t, 12, doc.Fields["stock"])
	assert.Equal(t, "Widget", doc.Fields["name"], "update merges, it does not replace")

	require.NoError(t, s.Delete(ctx, CollectionItems, id))
	_, err = s.Get(ctx, CollectionItems, id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, CollectionItems, id), ErrNotFound)
	assert.ErrorIs(t, s.Update(ctx, CollectionItems, id, Fields{"x": 1}), ErrNotFound)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	loc := map[string]any{"latitude": 1.5, "longitude": 2.5}
	id, err := s.Add(ctx, CollectionSuppliers, Fields{"location": loc})
	require.NoError(t, err)

	loc["latitude"] = 99.0
	doc, err := s.Get(ctx, CollectionSuppliers, id)
	require.NoError(t, err)
	assert.Equal(t, 1.5, doc.Fields["location"].(map[string]any)["latitude"])

	doc.Fields["location"].(map[string]any)["latitude"] = 42.0
	again, err := s.Get(ctx, CollectionSuppliers, id)
	require.NoError(t, err)
	assert.Equal(t, 1.5, again.Fields["location"].(map[string]any)["latitude"])
}

func TestMemoryStoreWhere(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, sup := range []string{"S1", "S2", "S1"} {
		_, err := s.Add(ctx, CollectionItems, Fields{"supplierId": sup})
		require.NoError(t, err)
	}
	_, err := s.Add(ctx, CollectionItems, Fields{"name": "orphan"})
	require.NoError(t, err)

	docs, err := s.Where(ctx, CollectionItems, "supplierId", "S1")
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	docs, err = s.Where(ctx, CollectionItems, "supplierId", "missing")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestMemoryStoreIncrement(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	id, err := s.Add(ctx, CollectionItems, Fields{"stock": 10.0, "name": "x"})
	require.NoError(t, err)

	n, err := s.Increment(ctx, CollectionItems, id, "stock", 5)
	require.NoError(t, err)
	assert.Equal(t, 15, n)

	n, err = s.Increment(ctx, CollectionItems, id, "fresh", -2)
	require.NoError(t, err)
	assert.Equal(t, -2, n)

	_, err = s.Increment(ctx, CollectionItems, id, "name", 1)
	assert.ErrorIs(t, err, ErrNotInteger)

	_, err = s.Increment(ctx, CollectionItems, "nope", "stock", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreConcurrentIncrement(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	id, err := s.Add(ctx, CollectionItems, Fields{"stock": 0})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Increment(ctx, CollectionItems, id, "stock", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	doc, err := s.Get(ctx, CollectionItems, id)
	require.NoError(t, err)
	assert.Equal(t, 50, doc.Fields["stock"])
}

func TestMemoryStoreSubscribe(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.Add(ctx, CollectionItems, Fields{"name": "first"})
	require.NoError(t, err)

	var snapshots [][]Document
	sub, err := s.Subscribe(ctx, CollectionItems, func(docs []Document, err error) {
		require.NoError(t, err)
		snapshots = append(snapshots, docs)
	})
	require.NoError(t, err)
	require.Len(t, snapshots, 1, "initial snapshot is delivered on subscribe")
	assert.Len(t, snapshots[0], 1)

	_, err = s.Add(ctx, CollectionItems, Fields{"name": "second"})
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Len(t, snapshots[1], 2)
	assert.Equal(t, "first", snapshots[1][0].Fields["name"], "snapshots keep insertion order")

	_, err = s.Add(ctx, CollectionSuppliers, Fields{"name": "other collection"})
	require.NoError(t, err)
	assert.Len(t, snapshots, 2)

	sub.Cancel()
	sub.Cancel()
	_, err = s.Add(ctx, CollectionItems, Fields{"name": "third"})
	require.NoError(t, err)
	assert.Len(t, snapshots, 2, "no delivery after cancel")
}

func TestMemoryStoreSubscribeEndsWithContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())

	var calls atomic.Int32
	_, err := s.Subscribe(ctx, CollectionHistories, func([]Document, error) {
		calls.Add(1)
	})
	require.NoError(t, err)
	require.Equal(t, int32(1), calls.Load())

	cancel()
	require.Eventually(t, func() bool {
		before := calls.Load()
		_, err := s.Add(context.Background(), CollectionHistories, Fields{})
		require.NoError(t, err)
		return calls.Load() == before
	}, time.Second, 10*time.Millisecond)
}

func TestFieldsClone(t *testing.T) {
	assert.Nil(t, Fields(nil).Clone())
	orig := Fields{"a": 1, "nested": Fields{"b": 2}}
	c := orig.Clone()
	c["nested"].(Fields)["b"] = 3
	assert.Equal(t, 2, orig["nested"].(Fields)["b"])
}
