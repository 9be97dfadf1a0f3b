package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-client/internal/listener"
)

// Query lists the payloads that make up a collection. Each payload must carry
// base:address.
type Query func(ctx context.Context) ([]map[string]any, error)

// Collection is a query-backed list cache: "every device of the active place",
// "every person of the active place". Unlike ListSource, membership is decided
// by the platform's answer to a query rather than by an address attribute.
//
// After the first successful Reload, membership follows Added and Deleted
// events for models in the collection's namespace.
type Collection struct {
	store     *Store
	namespace string
	query     Query

	mu          sync.RWMutex
	members     []Address
	index       map[Address]struct{}
	loaded      bool
	loadedEpoch uint64

	listeners listener.List[func(Event)]
	storeReg  listener.Registration
}

// NewCollection creates a collection over models in namespace ns.
func NewCollection(store *Store, ns string, query Query) *Collection {
	c := &Collection{
		store:     store,
		namespace: ns,
		query:     query,
		index:     make(map[Address]struct{}),
	}
	c.storeReg = store.Subscribe(c.onStoreEvent)
	return c
}

// Namespace returns the namespace the collection tracks.
func (c *Collection) Namespace() string { return c.namespace }

// Load returns the members, running the query only when not loaded.
func (c *Collection) Load(ctx context.Context) ([]*Model, error) {
	if c.IsLoaded() {
		return c.Models(), nil
	}
	return c.Reload(ctx)
}

// Reload runs the query and replaces the membership. On failure the previous
// membership is kept.
func (c *Collection) Reload(ctx context.Context) ([]*Model, error) {
	payloads, err := c.query(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading %s collection: %w", c.namespace, err)
	}

	members := make([]Address, 0, len(payloads))
	index := make(map[Address]struct{}, len(payloads))
	for _, p := range payloads {
		addr, _ := p[AttrAddress].(string)
		if addr == "" {
			return nil, fmt.Errorf("loading %s collection: %w", c.namespace, ErrMissingAddress)
		}
		if _, dup := index[Address(addr)]; dup {
			continue
		}
		members = append(members, Address(addr))
		index[Address(addr)] = struct{}{}
	}

	c.mu.Lock()
	c.members = members
	c.index = index
	c.loaded = true
	c.loadedEpoch = c.store.Epoch()
	c.mu.Unlock()

	for _, p := range payloads {
		if _, err := c.store.Update(p); err != nil {
			return nil, err
		}
	}
	return c.Models(), nil
}

// Models returns the cached members in query order.
func (c *Collection) Models() []*Model {
	c.mu.RLock()
	members := make([]Address, len(c.members))
	copy(members, c.members)
	c.mu.RUnlock()
	return c.store.GetAll(members)
}

// Addresses returns the member addresses in query order.
func (c *Collection) Addresses() []Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Address, len(c.members))
	copy(out, c.members)
	return out
}

// IsLoaded reports whether the query has succeeded since the last store clear.
func (c *Collection) IsLoaded() bool {
	c.mu.RLock()
	loaded, epoch := c.loaded, c.loadedEpoch
	c.mu.RUnlock()
	return loaded && epoch == c.store.Epoch()
}

// Len returns the number of members.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.members)
}

// AddModelListener registers fn for events on collection members.
func (c *Collection) AddModelListener(fn func(Event)) listener.Registration {
	return c.listeners.Add(fn)
}

func (c *Collection) onStoreEvent(e Event) {
	if e.Address.Namespace() != c.namespace {
		return
	}

	c.mu.Lock()
	if !c.loaded {
		c.mu.Unlock()
		return
	}
	_, member := c.index[e.Address]
	switch e.Kind {
	case EventAdded:
		if !member {
			c.members = append(c.members, e.Address)
			c.index[e.Address] = struct{}{}
			member = true
		}
	case EventDeleted:
		if member {
			delete(c.index, e.Address)
			for i, a := range c.members {
				if a == e.Address {
					c.members = append(c.members[:i], c.members[i+1:]...)
					break
				}
			}
		}
	}
	c.mu.Unlock()

	if member {
		c.listeners.Each(func(fn func(Event)) { fn(e) })
	}
}

// Close detaches the collection from the store.
func (c *Collection) Close() {
	c.storeReg.Unregister()
	c.listeners.Clear()
}
