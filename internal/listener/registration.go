package listener

import (
	"sync"
	"sync/atomic"
)

// Registration is returned by every listener or callback registration.
// The owner must call Unregister on teardown; nothing is cleaned up implicitly.
type Registration interface {
	// Unregister detaches the listener. Calling it more than once is a no-op.
	Unregister()
}

// registration runs its release function at most once.
type registration struct {
	once    sync.Once
	release func()
}

func (r *registration) Unregister() {
	r.once.Do(func() {
		if r.release != nil {
			r.release()
		}
	})
}

// NewRegistration returns a Registration that calls release on the first Unregister.
func NewRegistration(release func()) Registration {
	return &registration{release: release}
}

// Empty is a Registration with nothing to release.
var Empty Registration = NewRegistration(nil)

// Group collects registrations so a component can release them together.
type Group struct {
	mu   sync.Mutex
	regs []Registration
}

// Add appends registrations to the group.
func (g *Group) Add(regs ...Registration) {
	g.mu.Lock()
	g.regs = append(g.regs, regs...)
	g.mu.Unlock()
}

// Unregister releases every registration in the group and empties it.
func (g *Group) Unregister() {
	g.mu.Lock()
	regs := g.regs
	g.regs = nil
	g.mu.Unlock()

	for _, r := range regs {
		r.Unregister()
	}
}

// List is an ordered set of listeners of type T.
//
// Thread Safety:
//   - Add, Each, Len and Clear are safe for concurrent use.
//   - Each iterates over a snapshot, so listeners may unregister themselves
//     (or others) while being notified.
type List[T any] struct {
	mu      sync.RWMutex
	nextID  uint64
	entries []entry[T]
}

type entry[T any] struct {
	id       uint64
	listener T
	disabled *atomic.Bool
}

// Add registers l and returns its Registration.
func (l *List[T]) Add(listener T) Registration {
	l.mu.Lock()
	l.nextID++
	id := l.nextID
	disabled := new(atomic.Bool)
	l.entries = append(l.entries, entry[T]{id: id, listener: listener, disabled: disabled})
	l.mu.Unlock()

	return NewRegistration(func() {
		disabled.Store(true)
		l.remove(id)
	})
}

func (l *List[T]) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, e := range l.entries {
		if e.id == id {
			l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
			return
		}
	}
}

// Each calls fn for every registered listener in registration order.
// A listener unregistered during the walk is skipped.
func (l *List[T]) Each(fn func(T)) {
	l.mu.RLock()
	snapshot := make([]entry[T], len(l.entries))
	copy(snapshot, l.entries)
	l.mu.RUnlock()

	for _, e := range snapshot {
		if e.disabled.Load() {
			continue
		}
		fn(e.listener)
	}
}

// Len returns the number of registered listeners.
func (l *List[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Clear drops every listener. Outstanding registrations become no-ops.
func (l *List[T]) Clear() {
	l.mu.Lock()
	for _, e := range l.entries {
		e.disabled.Store(true)
	}
	l.entries = nil
	l.mu.Unlock()
}
