package listener

import (
	"context"
	"sync"
)

// Executor runs work on a specific execution domain.
type Executor interface {
	Execute(fn func())
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(fn func())

// Execute calls f(fn).
func (f ExecutorFunc) Execute(fn func()) { f(fn) }

// Inline runs work immediately on the calling goroutine.
var Inline Executor = ExecutorFunc(func(fn func()) { fn() })

// Loop is the UI-affinity executor: a single goroutine that runs queued work
// in FIFO order. The queue is unbounded so work enqueued from inside the loop
// never deadlocks.
//
// Thread Safety:
//   - Execute is safe for concurrent use from multiple goroutines.
//   - Run must be called exactly once.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped bool
	done    chan struct{}
}

// NewLoop creates a loop. Work queued before Run starts is kept.
func NewLoop() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Execute enqueues fn. Work submitted after the loop has stopped is dropped.
func (l *Loop) Execute(fn func()) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run processes queued work until ctx is cancelled. Remaining work is discarded.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)

	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, fn := range batch {
			if ctx.Err() != nil {
				break
			}
			fn()
		}

		select {
		case <-ctx.Done():
			l.mu.Lock()
			l.stopped = true
			l.queue = nil
			l.mu.Unlock()
			return
		case <-l.wake:
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Marshal wraps fn so that every invocation runs on exec.
func Marshal[T any](exec Executor, fn func(T)) func(T) {
	return func(v T) {
		exec.Execute(func() { fn(v) })
	}
}
