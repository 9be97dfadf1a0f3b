package countdown

import (
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-client/internal/listener"
)

// Owner guarantees that at most one countdown runs at a time for one logical
// armed session. Starting a new countdown cancels the previous one, and a tick
// from any task that is no longer current is dropped before it reaches the
// callback.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Owner struct {
	exec     listener.Executor
	interval time.Duration

	mu      sync.Mutex
	current *Task
}

// NewOwner creates an owner that delivers ticks through exec.
func NewOwner(exec listener.Executor, interval time.Duration) *Owner {
	return &Owner{exec: exec, interval: interval}
}

// Start cancels any running countdown and starts a new one.
func (o *Owner) Start(seconds int, onTick func(remaining int)) *Task {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.current != nil {
		o.current.Cancel()
	}

	task := newTask(seconds)
	task.start(o.interval, o.exec, func(remaining int) {
		if !o.isCurrent(task) {
			return
		}
		onTick(remaining)
		if remaining <= 0 {
			o.release(task)
		}
	})
	o.current = task
	if seconds <= 0 {
		o.current = nil
	}
	return task
}

func (o *Owner) isCurrent(t *Task) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current == t
}

func (o *Owner) release(t *Task) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == t {
		o.current = nil
	}
}

// Cancel stops the running countdown, if any.
func (o *Owner) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current != nil {
		o.current.Cancel()
		o.current = nil
	}
}

// Running reports whether a countdown is in progress.
func (o *Owner) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current != nil && !o.current.Cancelled() && o.current.Remaining() > 0
}

// Remaining returns the seconds left on the running countdown, or zero.
func (o *Owner) Remaining() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil || o.current.Cancelled() {
		return 0
	}
	return o.current.Remaining()
}
