// Package workerpool provides a fixed-size pool of goroutines fed by an
// unbounded FIFO queue, plus a small single-assignment Future type used to
// hand results of pooled work back to callers.
//
// Lifecycle:
//   - New starts `size` workers immediately.
//   - Submit never blocks and never fails because of load; work waits in the
//     queue until a worker is free.
//   - Shutdown stops intake, lets queued work drain for a bounded time and
//     then cancels the pool context so remaining work fails fast.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var (
	// ErrPoolClosed is returned by Submit once Shutdown has been called.
	ErrPoolClosed = errors.New("worker pool is shut down")

	// ErrShutdownTimeout is returned by Shutdown when queued or running work
	// did not finish in time and the pool had to cancel it.
	ErrShutdownTimeout = errors.New("worker pool shutdown timed out, remaining work cancelled")
)

// Work is a unit of work executed by a pool worker.
//
// ctx is the pool's run context. It is cancelled when Shutdown forces
// cancellation, so long-running work must observe it at its suspension points.
type Work func(ctx context.Context)

// Pool runs submitted Work on a fixed number of workers.
type Pool struct {
	size   int
	logger *zerolog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Work
	closed bool

	ctx    context.Context
	cancel context.CancelFunc

	// done is closed once every worker has returned.
	done chan struct{}

	active    atomic.Int64
	completed atomic.Int64
	forced    atomic.Bool
}

// New creates a pool with `size` workers and starts them.
//
// A non-positive size means "one worker per available CPU", which is what the
// service uses unless ITEMS_BATCH.WORKERS is set.
func New(size int, logger *zerolog.Logger) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}

	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		size:   size,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)

	var wg sync.WaitGroup
	wg.Add(size)
	for i := 0; i < size; i++ {
		go func() {
			defer wg.Done()
			p.worker()
		}()
	}

	go func() {
		wg.Wait()
		close(p.done)
	}()

	logger.Debug().Int("workers", size).Msg("worker pool started")

	return p
}

// Submit enqueues work. It only fails with ErrPoolClosed after Shutdown.
func (p *Pool) Submit(work Work) error {
	if work == nil {
		return errors.New("worker pool: nil work")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}

	p.queue = append(p.queue, work)
	p.cond.Signal()

	return nil
}

// Shutdown stops accepting new work and waits up to timeout for queued and
// running work to finish.
//
// Outcomes:
//   - nil: everything drained in time.
//   - ErrShutdownTimeout: the timeout elapsed, the pool context was cancelled.
//   - wrapped ctx.Err(): the caller gave up waiting, the pool context was
//     cancelled as well so nothing is left blocked.
//
// Calling Shutdown more than once is safe. Later calls wait on the same drain.
func (p *Pool) Shutdown(ctx context.Context, timeout time.Duration) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		p.cond.Broadcast()
		p.logger.Info().
			Int("pending", len(p.queue)).
			Int64("active", p.active.Load()).
			Dur("timeout", timeout).
			Msg("shutting down worker pool")
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.done:
		p.logger.Info().Int64("completed", p.completed.Load()).Msg("worker pool drained")
		return nil
	case <-timer.C:
		p.forceCancel("timeout")
		return ErrShutdownTimeout
	case <-ctx.Done():
		p.forceCancel("interrupted")
		return fmt.Errorf("worker pool shutdown interrupted: %w", ctx.Err())
	}
}

// Done is closed after Shutdown once every worker has exited.
func (p *Pool) Done() <-chan struct{} {
	return p.done
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Pending returns the number of queued, not yet started, work items.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Active returns the number of work items currently executing.
func (p *Pool) Active() int {
	return int(p.active.Load())
}

// Cancelled reports whether Shutdown had to force cancellation.
func (p *Pool) Cancelled() bool {
	return p.forced.Load()
}

func (p *Pool) forceCancel(reason string) {
	if !p.forced.CompareAndSwap(false, true) {
		return
	}

	p.logger.Warn().
		Str("reason", reason).
		Int("pending", p.Pending()).
		Int64("active", p.active.Load()).
		Msg("forcing worker pool cancellation")

	// Queued work is still dispatched after this point, but with a cancelled
	// context, so futures tied to it settle instead of hanging.
	p.cancel()
}

func (p *Pool) worker() {
	for {
		work, ok := p.next()
		if !ok {
			return
		}
		p.run(work)
	}
}

// next blocks until work is available or the pool is closed and drained.
func (p *Pool) next() (Work, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.queue) == 0 && !p.closed {
		p.cond.Wait()
	}

	if len(p.queue) == 0 {
		return nil, false
	}

	work := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]

	return work, true
}

func (p *Pool) run(work Work) {
	p.active.Add(1)
	defer func() {
		p.active.Add(-1)
		p.completed.Add(1)

		// The pool does not inspect outcomes, but a panicking work item must
		// not take a worker down with it.
		if r := recover(); r != nil {
			p.logger.Error().
				Stack().
				Err(pkgerrors.Errorf("panic: %v", r)).
				Msg("worker pool: work panicked")
		}
	}()

	work(p.ctx)
}
