package model

import (
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-client/internal/listener"
)

// Logger defines the logging interface used by the model package.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// EventKind classifies a model event.
type EventKind int

const (
	// EventAdded is emitted when a model enters the cache.
	EventAdded EventKind = iota + 1
	// EventChanged is emitted when a cached model's attributes change.
	EventChanged
	// EventDeleted is emitted when a model leaves the cache.
	EventDeleted
)

func (k EventKind) String() string {
	switch k {
	case EventAdded:
		return "added"
	case EventChanged:
		return "changed"
	case EventDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Event describes one change to the cache.
type Event struct {
	Kind    EventKind
	Address Address
	Model   *Model

	// Changed holds the attribute names that changed (EventChanged only).
	Changed AttributeSet
}

// Store is the process-wide model cache every Source delegates to.
//
// Construct exactly one per process and pass it to consumers explicitly.
// Events are delivered synchronously, after the store lock is released, on the
// goroutine that applied the change. The platform client applies pushes from a
// single reader goroutine, which keeps delivery in arrival order per listener.
// Listeners must not block; controllers marshal onto the UI executor.
//
// All public methods are thread-safe.
type Store struct {
	mu        sync.RWMutex
	models    map[Address]*Model
	epoch     uint64
	listeners listener.List[func(Event)]
	logger    Logger
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		models: make(map[Address]*Model),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// Update adds or updates the model described by attrs (add-or-update-by-payload).
// attrs must carry base:address. Emits EventAdded for new models and
// EventChanged when at least one attribute value changed.
func (s *Store) Update(attrs map[string]any) (*Model, error) {
	addrStr, _ := attrs[AttrAddress].(string)
	if addrStr == "" {
		return nil, ErrMissingAddress
	}
	addr := Address(addrStr)

	s.mu.Lock()
	existing, ok := s.models[addr]
	if !ok {
		m := newModel(addr, attrs)
		s.models[addr] = m
		s.mu.Unlock()

		s.emit(Event{Kind: EventAdded, Address: addr, Model: m})
		return m, nil
	}
	s.mu.Unlock()

	changed := existing.apply(attrs)
	if changed.Len() > 0 {
		s.emit(Event{Kind: EventChanged, Address: addr, Model: existing, Changed: changed})
	}
	return existing, nil
}

// ApplyChange merges a value-change push into a cached model.
// Changes for models that are not cached are ignored: the cache only mirrors
// what has been loaded.
func (s *Store) ApplyChange(addr Address, attrs map[string]any) (*Model, bool) {
	s.mu.RLock()
	m, ok := s.models[addr]
	s.mu.RUnlock()
	if !ok {
		s.logger.Debug("value change for uncached model ignored", "address", addr)
		return nil, false
	}

	changed := m.apply(attrs)
	if changed.Len() > 0 {
		s.emit(Event{Kind: EventChanged, Address: addr, Model: m, Changed: changed})
	}
	return m, true
}

// Get returns the cached model, or nil.
func (s *Store) Get(addr Address) *Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.models[addr]
}

// GetAll returns the cached models for addrs, skipping uncached entries.
func (s *Store) GetAll(addrs []Address) []*Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Model, 0, len(addrs))
	for _, a := range addrs {
		if m, ok := s.models[a]; ok {
			out = append(out, m)
		}
	}
	return out
}

// Remove drops a model and emits EventDeleted.
func (s *Store) Remove(addr Address) bool {
	s.mu.Lock()
	m, ok := s.models[addr]
	delete(s.models, addr)
	s.mu.Unlock()

	if ok {
		s.emit(Event{Kind: EventDeleted, Address: addr, Model: m})
	}
	return ok
}

// Clear drops every model and advances the epoch, which invalidates every
// Source system-wide. No per-model events are emitted.
func (s *Store) Clear() {
	s.mu.Lock()
	count := len(s.models)
	s.models = make(map[Address]*Model)
	s.epoch++
	s.mu.Unlock()

	s.logger.Info("model cache cleared", "count", count)
}

// Epoch returns the current clear generation.
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// Len returns the number of cached models.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.models)
}

// Subscribe registers fn for every store event.
func (s *Store) Subscribe(fn func(Event)) listener.Registration {
	return s.listeners.Add(fn)
}

func (s *Store) emit(e Event) {
	s.listeners.Each(func(fn func(Event)) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("model listener panic recovered",
					"address", e.Address,
					"event", e.Kind.String(),
					"panic", fmt.Sprint(r),
				)
			}
		}()
		fn(e)
	})
}
