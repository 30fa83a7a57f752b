package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowStoreGetOrCreateConverges(t *testing.T) {
	const workers = 16

	store := NewWindowStore(10 * time.Second)

	var wg sync.WaitGroup
	buckets := make([]*WindowBucket, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			buckets[i] = store.GetOrCreate(10_000)
		}(i)
	}
	wg.Wait()

	require.NotNil(t, buckets[0])
	for i := 1; i < workers; i++ {
		assert.Same(t, buckets[0], buckets[i], "concurrent creators must converge to one bucket")
	}
	assert.Equal(t, 1, store.Len())
}

func TestWindowStoreBucketWindowStart(t *testing.T) {
	store := NewWindowStore(10 * time.Second)

	bucket := store.GetOrCreate(10_000)
	require.NotNil(t, bucket)
	// The key is the window's end boundary; the bucket covers the
	// interval leading up to it.
	assert.Equal(t, time.UnixMilli(0), bucket.WindowStart())
}

func TestWindowStoreFlushIsIdempotent(t *testing.T) {
	store := NewWindowStore(10 * time.Second)

	created := store.GetOrCreate(10_000)
	require.NotNil(t, created)

	flushed := store.Flush(10_000)
	assert.Same(t, created, flushed)
	assert.Equal(t, 0, store.Len())

	assert.Nil(t, store.Flush(10_000), "double flush must be a no-op")
}

func TestWindowStoreFlushOfAbsentKey(t *testing.T) {
	store := NewWindowStore(10 * time.Second)
	assert.Nil(t, store.Flush(10_000))
}

func TestWindowStoreRejectsFlushedKeys(t *testing.T) {
	store := NewWindowStore(10 * time.Second)

	store.GetOrCreate(10_000)
	store.Flush(10_000)

	assert.Nil(t, store.GetOrCreate(10_000), "a flushed window must never be reinstated")
	assert.Nil(t, store.GetOrCreate(5_000), "keys below the high-water mark are stale")
	assert.NotNil(t, store.GetOrCreate(20_000))
}
