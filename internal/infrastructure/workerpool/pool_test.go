package workerpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleWorkerPreservesOrder(t *testing.T) {
	pool := New(1, nil)

	var mu sync.Mutex
	var order []int
	for i := 0; i < 50; i++ {
		i := i
		require.NoError(t, pool.Submit(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}))
	}
	pool.Close()

	require.Len(t, order, 50)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestSubmitFromJob(t *testing.T) {
	pool := New(1, nil)
	done := make(chan struct{})

	require.NoError(t, pool.Submit(func() {
		_ = pool.Submit(func() { close(done) })
	}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("nested job did not run")
	}
	pool.Close()
}

func TestSubmitAfterClose(t *testing.T) {
	pool := New(2, nil)
	pool.Close()
	pool.Close()

	assert.ErrorIs(t, pool.Submit(func() {}), ErrClosed)
}

func TestPanicDoesNotKillWorker(t *testing.T) {
	pool := New(1, nil)
	var ran atomic.Bool

	require.NoError(t, pool.Submit(func() { panic("boom") }))
	require.NoError(t, pool.Submit(func() { ran.Store(true) }))
	pool.Close()

	assert.True(t, ran.Load())
}

func TestCloseDrainsQueue(t *testing.T) {
	pool := New(3, nil)
	var count atomic.Int32
	for i := 0; i < 20; i++ {
		require.NoError(t, pool.Submit(func() { count.Add(1) }))
	}
	pool.Close()

	assert.Equal(t, int32(20), count.Load())
	assert.Equal(t, 0, pool.Pending())
}

func TestKeyedJobsKeepOrder(t *testing.T) {
	pool := New(4, nil)
	keys := []string{"com.test.a", "com.test.b", "com.test.c", "com.test.d", "com.test.e"}

	var mu sync.Mutex
	seen := make(map[string][]int)
	for i := 0; i < 40; i++ {
		for _, key := range keys {
			i, key := i, key
			require.NoError(t, pool.SubmitKeyed(key, func() {
				if i%7 == 0 {
					time.Sleep(time.Millisecond)
				}
				mu.Lock()
				seen[key] = append(seen[key], i)
				mu.Unlock()
			}))
		}
	}
	pool.Close()

	for _, key := range keys {
		require.Len(t, seen[key], 40, key)
		for i, v := range seen[key] {
			assert.Equal(t, i, v, key)
		}
	}
}

func TestSameKeySameWorker(t *testing.T) {
	pool := New(8, nil)
	defer pool.Close()

	assert.Equal(t, 8, pool.Workers())
	assert.Equal(t, pool.shard("com.test.app"), pool.shard("com.test.app"))
	assert.Less(t, pool.shard("com.test.app"), pool.Workers())
}

func TestSubmitKeyedAfterClose(t *testing.T) {
	pool := New(2, nil)
	pool.Close()

	assert.ErrorIs(t, pool.SubmitKeyed("k", func() {}), ErrClosed)
}
