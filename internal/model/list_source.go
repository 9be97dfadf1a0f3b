package model

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-client/internal/listener"
)

// maxParallelLoads bounds concurrent fetches when a list loads its members.
const maxParallelLoads = 8

// ListSource is the list analogue of Source: an ordered set of addresses, each
// backed by its own slot. The set is re-synchronised whenever the owning
// subsystem's address attribute changes.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type ListSource struct {
	store   *Store
	fetcher Fetcher

	mu        sync.RWMutex
	addresses []Address
	slots     map[Address]*Source
	listeners listener.List[func(Event)]
	storeReg  listener.Registration
}

// NewListSource creates an empty list.
func NewListSource(store *Store, fetcher Fetcher) *ListSource {
	l := &ListSource{
		store:   store,
		fetcher: fetcher,
		slots:   make(map[Address]*Source),
	}
	l.storeReg = store.Subscribe(l.onStoreEvent)
	return l
}

// Sync replaces the address set without fetching. Slots for removed addresses
// are dropped; slots for new addresses are created. Duplicate and empty
// addresses are ignored. Returns the newly added addresses.
func (l *ListSource) Sync(addrs []Address) []Address {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := make([]Address, 0, len(addrs))
	seen := make(map[Address]struct{}, len(addrs))
	var added []Address
	for _, a := range addrs {
		if a == "" {
			continue
		}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		next = append(next, a)
		if _, exists := l.slots[a]; !exists {
			l.slots[a] = NewSourceAt(l.store, l.fetcher, a)
			added = append(added, a)
		}
	}

	for a, slot := range l.slots {
		if _, keep := seen[a]; !keep {
			slot.Close()
			delete(l.slots, a)
		}
	}

	l.addresses = next
	return added
}

// SetAddresses syncs the address set and loads any member not yet loaded.
func (l *ListSource) SetAddresses(ctx context.Context, addrs []Address) error {
	l.Sync(addrs)
	return l.Load(ctx)
}

// Load fetches every member that is not loaded, in parallel.
func (l *ListSource) Load(ctx context.Context) error {
	return l.each(ctx, func(ctx context.Context, s *Source) error {
		_, err := s.Load(ctx)
		return err
	})
}

// Reload re-fetches every member.
func (l *ListSource) Reload(ctx context.Context) error {
	return l.each(ctx, func(ctx context.Context, s *Source) error {
		_, err := s.Reload(ctx)
		return err
	})
}

func (l *ListSource) each(ctx context.Context, fn func(context.Context, *Source) error) error {
	l.mu.RLock()
	slots := make([]*Source, 0, len(l.addresses))
	for _, a := range l.addresses {
		slots = append(slots, l.slots[a])
	}
	l.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLoads)
	for _, s := range slots {
		g.Go(func() error { return fn(gctx, s) })
	}
	return g.Wait()
}

// Addresses returns the current address set in order.
func (l *ListSource) Addresses() []Address {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Address, len(l.addresses))
	copy(out, l.addresses)
	return out
}

// Models returns the loaded members in address order.
func (l *ListSource) Models() []*Model {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Model, 0, len(l.addresses))
	for _, a := range l.addresses {
		if m := l.slots[a].Get(); m != nil {
			out = append(out, m)
		}
	}
	return out
}

// Get returns the loaded member at addr, or nil.
func (l *ListSource) Get(addr Address) *Model {
	l.mu.RLock()
	slot, ok := l.slots[addr]
	l.mu.RUnlock()
	if !ok {
		return nil
	}
	return slot.Get()
}

// IsLoaded is true only when every member is loaded. An empty list is loaded.
func (l *ListSource) IsLoaded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, a := range l.addresses {
		if !l.slots[a].IsLoaded() {
			return false
		}
	}
	return true
}

// Contains reports whether addr is a member.
func (l *ListSource) Contains(addr Address) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.slots[addr]
	return ok
}

// AddModelListener registers fn for events on any member.
func (l *ListSource) AddModelListener(fn func(Event)) listener.Registration {
	return l.listeners.Add(fn)
}

func (l *ListSource) onStoreEvent(e Event) {
	if !l.Contains(e.Address) {
		return
	}
	l.listeners.Each(func(fn func(Event)) { fn(e) })
}

// Close drops every slot and listener.
func (l *ListSource) Close() {
	l.storeReg.Unregister()
	l.listeners.Clear()

	l.mu.Lock()
	defer l.mu.Unlock()
	for a, slot := range l.slots {
		slot.Close()
		delete(l.slots, a)
	}
	l.addresses = nil
}
