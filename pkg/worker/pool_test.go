package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_ProcessesSubmittedWork(t *testing.T) {
	var processed int64
	var wg sync.WaitGroup

	pool := NewPool[int](4, 64, func(_ context.Context, _ int) error {
		atomic.AddInt64(&processed, 1)
		wg.Done()
		return nil
	})

	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop(time.Second)

	const n = 50
	wg.Add(n)
	for i := 0; i < n; i++ {
		require.NoError(t, pool.Submit(i))
	}
	wg.Wait()

	assert.Equal(t, int64(n), atomic.LoadInt64(&processed))
	stats := pool.Stats()
	assert.Equal(t, int64(n), stats.Submitted)
	assert.Equal(t, int64(0), stats.Dropped)
}

func TestPool_SubmitBeforeStart(t *testing.T) {
	pool := NewPool[int](2, 8, func(context.Context, int) error { return nil })
	err := pool.Submit(1)
	assert.ErrorIs(t, err, ErrPoolNotStarted)
}

func TestPool_StartTwice(t *testing.T) {
	pool := NewPool[int](2, 8, func(context.Context, int) error { return nil })
	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop(time.Second)

	assert.ErrorIs(t, pool.Start(context.Background()), ErrPoolAlreadyStarted)
}

func TestPool_QueueFull(t *testing.T) {
	block := make(chan struct{})
	pool := NewPool[int](1, 1, func(_ context.Context, _ int) error {
		<-block
		return nil
	})
	require.NoError(t, pool.Start(context.Background()))
	defer func() {
		close(block)
		pool.Stop(time.Second)
	}()

	// First item occupies the worker, second fills the queue; with a queue of
	// one, repeated submits must eventually return ErrQueueFull.
	var sawFull bool
	for i := 0; i < 10; i++ {
		if err := pool.Submit(i); errors.Is(err, ErrQueueFull) {
			sawFull = true
			break
		}
	}
	assert.True(t, sawFull)
	assert.Greater(t, pool.Stats().Dropped, int64(0))
}

func TestPool_StopDrainsQueue(t *testing.T) {
	var processed int64
	pool := NewPool[int](2, 64, func(_ context.Context, _ int) error {
		time.Sleep(time.Millisecond)
		atomic.AddInt64(&processed, 1)
		return nil
	})
	require.NoError(t, pool.Start(context.Background()))

	const n = 20
	for i := 0; i < n; i++ {
		require.NoError(t, pool.Submit(i))
	}

	require.NoError(t, pool.Stop(5*time.Second))
	assert.Equal(t, int64(n), atomic.LoadInt64(&processed))
}

func TestPool_ContextCancelDrainsQueuedWork(t *testing.T) {
	block := make(chan struct{})
	var processed int64
	pool := NewPool[int](1, 16, func(_ context.Context, _ int) error {
		<-block
		atomic.AddInt64(&processed, 1)
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, pool.Start(ctx))

	// Occupy the worker and stack up queued items, then cancel while the
	// queue is non-empty.
	const n = 8
	for i := 0; i < n; i++ {
		require.NoError(t, pool.Submit(i))
	}
	cancel()
	close(block)

	select {
	case <-pool.Done():
	case <-time.After(time.Second):
		t.Fatal("pool did not observe context cancellation")
	}
	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&processed) == n
	}, 2*time.Second, 5*time.Millisecond, "queued work must be drained after cancellation")
}

func TestPool_SubmitAfterContextCancel(t *testing.T) {
	pool := NewPool[int](1, 8, func(context.Context, int) error { return nil })
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, pool.Start(ctx))

	cancel()
	select {
	case <-pool.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after cancellation")
	}

	assert.ErrorIs(t, pool.Submit(1), ErrPoolStopped)
}

func TestPool_FailedWorkCounted(t *testing.T) {
	var wg sync.WaitGroup
	pool := NewPool[int](2, 8, func(_ context.Context, i int) error {
		defer wg.Done()
		if i%2 == 0 {
			return errors.New("even numbers fail")
		}
		return nil
	})
	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop(time.Second)

	wg.Add(4)
	for i := 0; i < 4; i++ {
		require.NoError(t, pool.Submit(i))
	}
	wg.Wait()

	// Allow the worker loops to finish bookkeeping after wg.Done
	assert.Eventually(t, func() bool {
		return pool.Stats().Failed == 2
	}, time.Second, 5*time.Millisecond)
}

func TestPool_NilProcessorPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewPool[int](1, 1, nil)
	})
}

func TestPool_StopIdempotent(t *testing.T) {
	pool := NewPool[int](1, 1, func(context.Context, int) error { return nil })
	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Stop(time.Second))
	require.NoError(t, pool.Stop(time.Second))
}
