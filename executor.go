package diskcache

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// SerialExecutor runs submitted tasks one at a time, in submission order.
// The cache uses it to serialize journal appends: every DIRTY and CLEAN
// line is written through the same executor, so lines reach disk in the
// order their originating operations returned to the caller.
//
// The embedder supplies the executor at construction time; [NewSerialExecutor]
// is a ready-made single-goroutine implementation, but any type satisfying
// this interface works (for example one backed by a shared worker pool).
type SerialExecutor interface {
	// Submit enqueues task to run after every previously submitted task
	// has returned. Submit does not block waiting for task to run.
	Submit(task func())

	// Close waits for all submitted tasks to finish and stops accepting
	// new ones. Submit after Close is a no-op.
	Close() error
}

// serialExecutor is a single-goroutine FIFO queue of closures, the
// default [SerialExecutor] implementation.
type serialExecutor struct {
	tasks  chan func()
	group  *errgroup.Group
	cancel context.CancelFunc
	closed chan struct{}

	mu       sync.Mutex
	shutdown bool
}

// NewSerialExecutor starts a background goroutine that drains submitted
// tasks in order and returns an executor bound to it.
func NewSerialExecutor() SerialExecutor {
	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)

	se := &serialExecutor{
		tasks:  make(chan func(), 256),
		group:  group,
		cancel: cancel,
		closed: make(chan struct{}),
	}

	group.Go(func() error {
		defer close(se.closed)

		for {
			select {
			case task, ok := <-se.tasks:
				if !ok {
					return nil
				}

				task()
			case <-ctx.Done():
				return nil
			}
		}
	})

	return se
}

func (se *serialExecutor) Submit(task func()) {
	se.mu.Lock()
	defer se.mu.Unlock()

	if se.shutdown {
		return
	}

	select {
	case se.tasks <- task:
	case <-se.closed:
	}
}

func (se *serialExecutor) Close() error {
	se.mu.Lock()
	if !se.shutdown {
		se.shutdown = true
		close(se.tasks)
	}
	se.mu.Unlock()

	return se.group.Wait()
}

// trimExecutor is a single-slot, coalescing background runner used
// internally for eviction. Unlike [SerialExecutor], requests do not
// queue beyond one: if a trim is already pending, a new request is
// dropped, because the pending trim will observe the post-request state
// anyway. A request made while a trim is running fills the empty slot
// and causes one further pass.
type trimExecutor struct {
	requests chan struct{}
	group    *errgroup.Group
	cancel   context.CancelFunc
}

func newTrimExecutor(trim func()) *trimExecutor {
	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)

	te := &trimExecutor{
		requests: make(chan struct{}, 1),
		group:    group,
		cancel:   cancel,
	}

	group.Go(func() error {
		for {
			select {
			case <-te.requests:
				trim()
			case <-ctx.Done():
				return nil
			}
		}
	})

	return te
}

// schedule requests a trim pass. It never blocks: if one is already
// queued, this call is a no-op.
func (te *trimExecutor) schedule() {
	select {
	case te.requests <- struct{}{}:
	default:
	}
}

// close stops accepting new requests and waits for any in-flight trim
// to finish.
func (te *trimExecutor) close() {
	te.cancel()
	_ = te.group.Wait()
}
