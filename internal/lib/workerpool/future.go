package workerpool

import (
	"context"
	"sync"
)

// Future is a single-assignment slot for the outcome of asynchronous work.
//
// The first call to Resolve or Reject wins; later calls are ignored and
// report false. Callbacks registered with OnSettled run exactly once, on the
// goroutine that settles the future (or immediately if it already settled).
type Future[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	settled   bool
	value     T
	err       error
	callbacks []func(T, error)
}

// NewFuture returns an unsettled future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved returns a future already settled with v.
func Resolved[T any](v T) *Future[T] {
	f := NewFuture[T]()
	f.Resolve(v)
	return f
}

// Failed returns a future already settled with err.
func Failed[T any](err error) *Future[T] {
	f := NewFuture[T]()
	f.Reject(err)
	return f
}

// Resolve settles the future successfully.
func (f *Future[T]) Resolve(v T) bool {
	return f.settle(v, nil)
}

// Reject settles the future with err. A nil err is treated as success with
// the zero value.
func (f *Future[T]) Reject(err error) bool {
	var zero T
	return f.settle(zero, err)
}

func (f *Future[T]) settle(v T, err error) bool {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return false
	}
	f.settled = true
	f.value = v
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb(v, err)
	}
	return true
}

// OnSettled registers fn to run once the future settles.
func (f *Future[T]) OnSettled(fn func(T, error)) {
	f.mu.Lock()
	if !f.settled {
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
		return
	}
	v, err := f.value, f.err
	f.mu.Unlock()

	fn(v, err)
}

// Done is closed once the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future settles or ctx is done. Giving up on ctx does
// not affect the underlying work.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Get blocks until the future settles.
func (f *Future[T]) Get() (T, error) {
	<-f.done
	return f.value, f.err
}

// Settled reports whether the future has a result.
func (f *Future[T]) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// AllSettled returns a future that settles once every input future settled.
//
// On success the values are returned in input order. If any input failed, the
// aggregate is rejected with the first error observed, but only after all
// inputs settled. No goroutine is parked while waiting: completion is
// counted from OnSettled callbacks.
func AllSettled[T any](futures ...*Future[T]) *Future[[]T] {
	all := NewFuture[[]T]()
	if len(futures) == 0 {
		all.Resolve([]T{})
		return all
	}

	var (
		mu        sync.Mutex
		remaining = len(futures)
		values    = make([]T, len(futures))
		firstErr  error
	)

	for i, f := range futures {
		f.OnSettled(func(v T, err error) {
			mu.Lock()
			values[i] = v
			if err != nil && firstErr == nil {
				firstErr = err
			}
			remaining--
			last := remaining == 0
			mu.Unlock()

			if !last {
				return
			}
			if firstErr != nil {
				all.Reject(firstErr)
				return
			}
			all.Resolve(values)
		})
	}

	return all
}
