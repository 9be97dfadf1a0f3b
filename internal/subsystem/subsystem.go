package subsystem

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-client/internal/listener"
	"github.com/nerrad567/gray-logic-client/internal/model"
)

// Logger defines the logging interface used by subsystem controllers.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Hooks are the specialisation points of a subsystem controller. Every hook
// runs on the controller's executor.
type Hooks[CB comparable] interface {
	// OnSubsystemLoaded runs when the subsystem model first appears for the
	// bound place, before the view is refreshed. Use it to re-derive any
	// dependent address sets.
	OnSubsystemLoaded(m *model.Model)

	// OnSubsystemChanged runs for every change to a loaded subsystem model.
	// Implementations filter keys and call Refresh when the view is affected.
	OnSubsystemChanged(m *model.Model, keys model.AttributeSet)

	// IsLoaded reports whether the view can be computed. Implementations
	// normally AND SubsystemLoaded with their dependent sources.
	IsLoaded() bool

	// UpdateView pushes a freshly computed view to cb.
	UpdateView(cb CB)
}

// Deps holds the collaborators of a subsystem controller.
type Deps struct {
	Store    *model.Store
	Fetcher  model.Fetcher
	Executor listener.Executor
	Logger   Logger
}

// Controller binds one subsystem model per place and drives a single UI
// callback from it.
//
// The subsystem model lives at SERV:<namespace>:<placeId>. Store events for it
// are marshalled onto the executor: an Added model runs OnSubsystemLoaded and
// then a view refresh, a change runs OnSubsystemChanged, and a deletion is
// logged.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Hooks and callbacks only ever run on the executor.
type Controller[CB comparable] struct {
	namespace string
	hooks     Hooks[CB]
	source    *model.Source
	exec      listener.Executor
	logger    Logger
	callback  *listener.Slot[CB]

	mu      sync.Mutex
	placeID string
	seen    *model.Model

	sourceReg listener.Registration
}

// New creates an unbound controller for the subsystem namespace ns.
func New[CB comparable](ns string, hooks Hooks[CB], deps Deps) *Controller[CB] {
	if deps.Executor == nil {
		deps.Executor = listener.Inline
	}
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}

	c := &Controller[CB]{
		namespace: ns,
		hooks:     hooks,
		source:    model.NewSource(deps.Store, deps.Fetcher),
		exec:      deps.Executor,
		logger:    deps.Logger,
		callback:  listener.NewSlot[CB](ns, deps.Logger),
	}
	c.sourceReg = c.source.AddModelListener(listener.Marshal(c.exec, c.onModelEvent))
	return c
}

// Namespace returns the subsystem namespace.
func (c *Controller[CB]) Namespace() string { return c.namespace }

// BindPlace binds the subsystem model of placeID and loads it.
//
// A missing or unreachable subsystem is logged at warn level and returned;
// the controller then stays unloaded and every refresh is a no-op.
func (c *Controller[CB]) BindPlace(ctx context.Context, placeID string) error {
	addr := model.SubsystemAddress(c.namespace, placeID)

	c.mu.Lock()
	c.placeID = placeID
	c.seen = nil
	c.mu.Unlock()

	c.source.SetAddress(addr)
	m, err := c.source.Load(ctx)
	if err != nil {
		c.logger.Warn("subsystem model unavailable", "subsystem", c.namespace, "place", placeID, "error", err)
		return fmt.Errorf("binding %s: %w", c.namespace, err)
	}

	// A model already present in the store arrives as a change, not an add.
	c.exec.Execute(func() { c.markLoaded(m) })
	return nil
}

// Unbind detaches the controller from its place. The cached model is
// abandoned, so the view stays silent until the next BindPlace.
func (c *Controller[CB]) Unbind() {
	c.mu.Lock()
	c.placeID = ""
	c.seen = nil
	c.mu.Unlock()

	c.source.SetAddress("")
}

// Reload refetches the subsystem model of the bound place.
func (c *Controller[CB]) Reload(ctx context.Context) error {
	m, err := c.source.Reload(ctx)
	if err != nil {
		return fmt.Errorf("reloading %s: %w", c.namespace, err)
	}
	c.exec.Execute(func() { c.markLoaded(m) })
	return nil
}

// PlaceID returns the bound place.
func (c *Controller[CB]) PlaceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.placeID
}

// Address returns the bound subsystem address, or "" before BindPlace.
func (c *Controller[CB]) Address() model.Address {
	return c.source.Address()
}

// Model returns the cached subsystem model, or nil.
func (c *Controller[CB]) Model() *model.Model {
	return c.source.Get()
}

// SubsystemLoaded reports whether the subsystem model has been fetched for
// the bound place.
func (c *Controller[CB]) SubsystemLoaded() bool {
	return c.source.IsLoaded()
}

// SetCallback installs cb, replacing any other callback with a warning, and
// refreshes the view from the cached state. Installing the same callback
// again keeps a single registration.
func (c *Controller[CB]) SetCallback(cb CB) listener.Registration {
	reg := c.callback.Set(cb)
	c.exec.Execute(c.Refresh)
	return reg
}

// Callback returns the registered callback, if any.
func (c *Controller[CB]) Callback() (CB, bool) {
	return c.callback.Get()
}

// Refresh pushes the current view to the callback. It is a silent no-op when
// no callback is registered or the hooks report not loaded; nothing is queued
// for later. Call it on the executor.
func (c *Controller[CB]) Refresh() {
	cb, ok := c.callback.Get()
	if !ok || !c.hooks.IsLoaded() {
		return
	}
	c.hooks.UpdateView(cb)
}

// Execute runs fn on the controller's executor.
func (c *Controller[CB]) Execute(fn func()) {
	c.exec.Execute(fn)
}

func (c *Controller[CB]) onModelEvent(e model.Event) {
	// Events queued before a rebind or Unbind belong to the old place.
	if e.Address != c.source.Address() {
		return
	}
	switch e.Kind {
	case model.EventAdded:
		c.markLoaded(e.Model)
	case model.EventChanged:
		if c.markLoaded(e.Model) {
			return
		}
		c.hooks.OnSubsystemChanged(e.Model, e.Changed)
	case model.EventDeleted:
		c.mu.Lock()
		c.seen = nil
		c.mu.Unlock()
		c.logger.Warn("subsystem model deleted", "subsystem", c.namespace, "address", e.Address)
	}
}

// markLoaded runs the loaded hook once per model instance and refreshes the
// view. It reports whether the hook ran.
func (c *Controller[CB]) markLoaded(m *model.Model) bool {
	if m == nil || m.Address() != c.source.Address() {
		return false
	}

	c.mu.Lock()
	if c.seen == m {
		c.mu.Unlock()
		return false
	}
	c.seen = m
	c.mu.Unlock()

	c.hooks.OnSubsystemLoaded(m)
	c.Refresh()
	return true
}

// Close detaches the controller from the store and drops the callback.
func (c *Controller[CB]) Close() {
	c.sourceReg.Unregister()
	c.source.Close()
	c.callback.Clear()
}
