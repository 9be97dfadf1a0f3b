package listener

import "sync"

// Logger is the logging interface used to report callback contract violations.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Slot holds at most one active callback.
//
// Setting a different callback while one is registered replaces it and logs a
// warning: two concurrent consumers are a caller bug, not something the slot
// enforces. Setting the same callback again keeps the existing registration,
// so no event is ever delivered twice to one consumer.
//
// T is normally an interface type implemented by pointer receivers.
type Slot[T comparable] struct {
	mu     sync.RWMutex
	name   string
	logger Logger
	cur    T
	set    bool
	gen    uint64
}

// NewSlot creates an empty slot. The name appears in replacement warnings.
func NewSlot[T comparable](name string, logger Logger) *Slot[T] {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Slot[T]{name: name, logger: logger}
}

// Set installs cb and returns a Registration that clears it.
// A Registration from a replaced callback never clears its successor.
func (s *Slot[T]) Set(cb T) Registration {
	var zero T
	if cb == zero {
		s.Clear()
		return Empty
	}

	s.mu.Lock()
	if s.set && s.cur == cb {
		gen := s.gen
		s.mu.Unlock()
		return s.registrationFor(gen)
	}

	if s.set {
		s.logger.Warn("replacing registered callback; only one consumer is supported", "slot", s.name)
	}
	s.gen++
	gen := s.gen
	s.cur = cb
	s.set = true
	s.mu.Unlock()

	return s.registrationFor(gen)
}

func (s *Slot[T]) registrationFor(gen uint64) Registration {
	return NewRegistration(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen != gen {
			return
		}
		var zero T
		s.cur = zero
		s.set = false
	})
}

// Get returns the current callback, if any.
func (s *Slot[T]) Get() (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur, s.set
}

// Is reports whether cb is the currently registered callback.
func (s *Slot[T]) Is(cb T) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set && s.cur == cb
}

// Clear removes the current callback.
func (s *Slot[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	s.gen++
	s.cur = zero
	s.set = false
}
