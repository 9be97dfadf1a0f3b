package model

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/nerrad567/gray-logic-client/internal/listener"
)

// Fetcher retrieves the current attributes of one model from the platform.
type Fetcher interface {
	GetAttributes(ctx context.Context, addr Address) (map[string]any, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, addr Address) (map[string]any, error)

// GetAttributes calls f.
func (f FetcherFunc) GetAttributes(ctx context.Context, addr Address) (map[string]any, error) {
	return f(ctx, addr)
}

// Source is a single address slot bound to one platform model.
//
// A Source is created once per logical binding point ("the place's hub",
// "the selected device") and re-addressed with SetAddress when the bound
// entity changes. Multiple Sources for the same address share the Store's
// model instance.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Source struct {
	store   *Store
	fetcher Fetcher

	mu          sync.Mutex
	address     Address
	generation  uint64
	loaded      bool
	loadedEpoch uint64

	inflight  singleflight.Group
	listeners listener.List[func(Event)]
	storeReg  listener.Registration
}

// NewSource creates an unbound source.
func NewSource(store *Store, fetcher Fetcher) *Source {
	s := &Source{store: store, fetcher: fetcher}
	s.storeReg = store.Subscribe(s.onStoreEvent)
	return s
}

// NewSourceAt creates a source already bound to addr.
func NewSourceAt(store *Store, fetcher Fetcher, addr Address) *Source {
	s := NewSource(store, fetcher)
	s.SetAddress(addr)
	return s
}

// SetAddress rebinds the slot. It never fetches; prior content is abandoned
// even if the new address is the same model.
func (s *Source) SetAddress(addr Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.address = addr
	s.generation++
	s.loaded = false
}

// Address returns the bound address.
func (s *Source) Address() Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.address
}

// Load returns the cached model or fetches it. Concurrent calls while a fetch
// is in flight share that fetch; the first caller's context governs it.
func (s *Source) Load(ctx context.Context) (*Model, error) {
	s.mu.Lock()
	addr, gen := s.address, s.generation
	if addr == "" {
		s.mu.Unlock()
		return nil, ErrNoAddress
	}
	if m := s.currentLocked(); m != nil {
		s.mu.Unlock()
		return m, nil
	}
	s.mu.Unlock()

	key := fmt.Sprintf("%d|%s", gen, addr)
	v, err, _ := s.inflight.Do(key, func() (any, error) {
		return s.fetch(ctx, addr, gen)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Model), nil
}

// Reload always fetches. A failed reload leaves the cached model untouched.
func (s *Source) Reload(ctx context.Context) (*Model, error) {
	s.mu.Lock()
	addr, gen := s.address, s.generation
	s.mu.Unlock()
	if addr == "" {
		return nil, ErrNoAddress
	}
	return s.fetch(ctx, addr, gen)
}

func (s *Source) fetch(ctx context.Context, addr Address, gen uint64) (*Model, error) {
	attrs, err := s.fetcher.GetAttributes(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", addr, err)
	}

	payload := make(map[string]any, len(attrs)+1)
	for k, v := range attrs {
		payload[k] = v
	}
	payload[AttrAddress] = string(addr)

	// Mark loaded before the store emits, so listeners reacting to the
	// Added/Changed event already observe IsLoaded() == true.
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return nil, ErrAddressChanged
	}
	s.loaded = true
	s.loadedEpoch = s.store.Epoch()
	s.mu.Unlock()

	return s.store.Update(payload)
}

// currentLocked returns the model for the bound address if it has been loaded
// since the last rebind and the store has not been cleared since.
func (s *Source) currentLocked() *Model {
	if !s.loaded || s.address == "" || s.loadedEpoch != s.store.Epoch() {
		return nil
	}
	return s.store.Get(s.address)
}

// Get returns the loaded model or nil. It never blocks on the network.
func (s *Source) Get() *Model {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked()
}

// IsLoaded reports whether Get would return a model.
func (s *Source) IsLoaded() bool {
	return s.Get() != nil
}

// AddModelListener registers fn for events on the bound address. The listener
// follows the slot across SetAddress calls.
func (s *Source) AddModelListener(fn func(Event)) listener.Registration {
	return s.listeners.Add(fn)
}

func (s *Source) onStoreEvent(e Event) {
	s.mu.Lock()
	bound := s.address
	s.mu.Unlock()

	if e.Address != bound {
		return
	}
	s.listeners.Each(func(fn func(Event)) { fn(e) })
}

// Close detaches the source from the store and drops its listeners.
func (s *Source) Close() {
	s.storeReg.Unregister()
	s.listeners.Clear()
}
