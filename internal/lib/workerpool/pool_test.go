package workerpool

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_DefaultSize(t *testing.T) {
	p := New(0, nil)
	defer p.Shutdown(context.Background(), time.Second)

	assert.Equal(t, runtime.NumCPU(), p.Size())
}

func TestPool_BoundedParallelism(t *testing.T) {
	const workers = 4
	const items = 40

	p := New(workers, nil)

	var running, maxRunning, ran atomic.Int32
	for i := 0; i < items; i++ {
		err := p.Submit(func(ctx context.Context) {
			n := running.Add(1)
			for {
				m := maxRunning.Load()
				if n <= m || maxRunning.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			ran.Add(1)
		})
		require.NoError(t, err)
	}

	require.NoError(t, p.Shutdown(context.Background(), 5*time.Second))

	assert.Equal(t, int32(items), ran.Load())
	assert.LessOrEqual(t, maxRunning.Load(), int32(workers))
	assert.False(t, p.Cancelled())
}

func TestPool_SubmitAfterShutdown(t *testing.T) {
	p := New(1, nil)
	require.NoError(t, p.Shutdown(context.Background(), time.Second))

	err := p.Submit(func(ctx context.Context) {})
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestPool_SubmitNil(t *testing.T) {
	p := New(1, nil)
	defer p.Shutdown(context.Background(), time.Second)

	assert.Error(t, p.Submit(nil))
}

func TestPool_ShutdownIsIdempotent(t *testing.T) {
	p := New(2, nil)
	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Submit(func(ctx context.Context) { ran.Add(1) }))
	}

	require.NoError(t, p.Shutdown(context.Background(), time.Second))
	require.NoError(t, p.Shutdown(context.Background(), time.Second))
	assert.Equal(t, int32(5), ran.Load())
}

func TestPool_ShutdownTimeoutCancelsQueuedWork(t *testing.T) {
	const workers = 2
	const items = 8

	p := New(workers, nil)

	var cancelled, finished atomic.Int32
	for i := 0; i < items; i++ {
		require.NoError(t, p.Submit(func(ctx context.Context) {
			select {
			case <-time.After(10 * time.Second):
				finished.Add(1)
			case <-ctx.Done():
				cancelled.Add(1)
			}
		}))
	}

	start := time.Now()
	err := p.Shutdown(context.Background(), 50*time.Millisecond)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrShutdownTimeout)
	assert.Less(t, elapsed, time.Second)
	assert.True(t, p.Cancelled())

	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("workers still running after forced cancellation")
	}

	assert.Equal(t, int32(items), cancelled.Load())
	assert.Equal(t, int32(0), finished.Load())
}

func TestPool_ShutdownInterruptedForcesCancellation(t *testing.T) {
	p := New(1, nil)

	started := make(chan struct{})
	var sawCancel atomic.Bool
	require.NoError(t, p.Submit(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		sawCancel.Store(true)
	}))
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Shutdown(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, p.Cancelled())

	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop after interruption")
	}
	assert.True(t, sawCancel.Load())
}

func TestPool_RecoversFromPanickingWork(t *testing.T) {
	p := New(1, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	require.NoError(t, p.Submit(func(ctx context.Context) { panic("boom") }))
	require.NoError(t, p.Submit(func(ctx context.Context) { wg.Done() }))

	wg.Wait()
	require.NoError(t, p.Shutdown(context.Background(), time.Second))
}

func TestFuture_FirstSettlementWins(t *testing.T) {
	f := NewFuture[int]()

	assert.True(t, f.Resolve(1))
	assert.False(t, f.Reject(errors.New("late")))
	assert.False(t, f.Resolve(2))

	v, err := f.Get()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.True(t, f.Settled())
}

func TestFuture_AwaitHonoursContext(t *testing.T) {
	f := NewFuture[string]()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, f.Settled())
}

func TestFuture_OnSettledAfterSettlement(t *testing.T) {
	f := Failed[int](errors.New("nope"))

	var got error
	f.OnSettled(func(_ int, err error) { got = err })
	assert.EqualError(t, got, "nope")
}

func TestAllSettled(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		v, err := AllSettled[int]().Get()
		require.NoError(t, err)
		assert.Empty(t, v)
	})

	t.Run("ValuesInInputOrder", func(t *testing.T) {
		a, b, c := NewFuture[int](), NewFuture[int](), NewFuture[int]()
		all := AllSettled(a, b, c)

		c.Resolve(3)
		a.Resolve(1)
		assert.False(t, all.Settled())
		b.Resolve(2)

		v, err := all.Get()
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3}, v)
	})

	t.Run("WaitsForSiblingsAfterFailure", func(t *testing.T) {
		a, b := NewFuture[int](), NewFuture[int]()
		all := AllSettled(a, b)

		first := errors.New("first")
		a.Reject(first)
		assert.False(t, all.Settled(), "must not settle before every input settled")

		b.Reject(errors.New("second"))
		_, err := all.Get()
		assert.ErrorIs(t, err, first)
	})
}
