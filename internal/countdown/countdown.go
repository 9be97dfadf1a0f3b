package countdown

import (
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-client/internal/listener"
)

// DefaultInterval is the tick cadence used by the arming countdown.
const DefaultInterval = time.Second

// Task is one running countdown. It ticks from seconds-1 down to zero, one
// value per interval, then stops by itself.
//
// Cancellation is channel based: once Cancel returns, no further value is
// delivered, including a tick that was already queued on the executor.
type Task struct {
	mu        sync.Mutex
	remaining int
	cancelled bool

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// Start launches a countdown of seconds. Each new value is delivered to onTick
// through exec. A non-positive seconds value yields a task that is already done.
func Start(seconds int, interval time.Duration, exec listener.Executor, onTick func(remaining int)) *Task {
	t := newTask(seconds)
	t.start(interval, exec, onTick)
	return t
}

func newTask(seconds int) *Task {
	return &Task{
		remaining: max(seconds, 0),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (t *Task) start(interval time.Duration, exec listener.Executor, onTick func(int)) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if exec == nil {
		exec = listener.Inline
	}
	if t.remaining <= 0 {
		close(t.done)
		return
	}
	go t.run(interval, exec, onTick)
}

func (t *Task) run(interval time.Duration, exec listener.Executor, onTick func(int)) {
	defer close(t.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
		}

		t.mu.Lock()
		if t.cancelled {
			t.mu.Unlock()
			return
		}
		t.remaining--
		value := t.remaining
		t.mu.Unlock()

		exec.Execute(func() {
			if t.Cancelled() {
				return
			}
			onTick(value)
		})

		if value <= 0 {
			return
		}
	}
}

// Remaining returns the seconds left.
func (t *Task) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Cancel stops the task. It is safe to call more than once and after the task
// has finished.
func (t *Task) Cancel() {
	t.mu.Lock()
	t.cancelled = true
	t.mu.Unlock()
	t.stopOnce.Do(func() { close(t.stop) })
}

// Cancelled reports whether Cancel has been called.
func (t *Task) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Done is closed when the ticking goroutine has exited.
func (t *Task) Done() <-chan struct{} {
	return t.done
}
