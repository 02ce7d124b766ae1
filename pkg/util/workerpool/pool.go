// Copyright (C) 2023 ScyllaDB

package workerpool

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

var (
	// ErrQueueFull is returned by TrySubmit when the task queue is saturated.
	ErrQueueFull = errors.New("worker pool queue is full")
	// ErrClosed is returned when submitting to a closed pool.
	ErrClosed = errors.New("worker pool is closed")
)

// Pool executes tasks of type T on a fixed number of workers.
// Tasks are buffered in a bounded queue, use TrySubmit to reject tasks when
// the queue is full or Submit to wait for a free slot.
// Close stops accepting new tasks, drains the queue and waits for workers to
// exit. Abort does the same but cancels the context passed to handlers and
// skips the tasks that are still queued.
type Pool[T any] struct {
	ctx    context.Context // nolint: containedctx
	cancel context.CancelFunc
	handle func(ctx context.Context, task T)

	tasks   chan T
	busy    atomic.Int32
	mu      sync.RWMutex
	closed  bool
	wait    sync.WaitGroup
	closing sync.Once
}

// New returns a pool running size workers with queueSize queue capacity.
// Handler is called for every task with a context derived from ctx.
func New[T any](ctx context.Context, size, queueSize int, handle func(ctx context.Context, task T)) *Pool[T] {
	if size <= 0 {
		size = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	ctx, cancel := context.WithCancel(ctx)
	p := &Pool[T]{
		ctx:    ctx,
		cancel: cancel,
		handle: handle,
		tasks:  make(chan T, queueSize),
	}
	for i := 0; i < size; i++ {
		p.wait.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool[T]) worker() {
	defer p.wait.Done()
	for t := range p.tasks {
		if p.ctx.Err() != nil {
			continue
		}
		p.busy.Inc()
		p.handle(p.ctx, t)
		p.busy.Dec()
	}
}

// TrySubmit queues the task or returns ErrQueueFull if there is no room for it.
func (p *Pool[T]) TrySubmit(task T) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Submit queues the task, it blocks until there is room in the queue or ctx
// is canceled.
func (p *Pool[T]) Submit(ctx context.Context, task T) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}
	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrClosed
	}
}

// Queued returns number of tasks waiting for a worker.
func (p *Pool[T]) Queued() int {
	return len(p.tasks)
}

// Busy returns number of workers executing a task.
func (p *Pool[T]) Busy() int {
	return int(p.busy.Load())
}

// Close stops accepting tasks and waits for all queued tasks to be handled.
func (p *Pool[T]) Close() {
	p.closing.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.tasks)
		p.mu.Unlock()
	})
	p.wait.Wait()
	p.cancel()
}

// Abort cancels handlers context, drops queued tasks and waits for workers.
func (p *Pool[T]) Abort() {
	p.cancel()
	p.Close()
}
