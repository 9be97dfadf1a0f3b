// Package subsystem provides the base controller shared by per-place
// subsystem controllers such as security and climate.
//
// A subsystem is a per-place aggregate model addressed SERV:<namespace>:<placeId>.
// The base controller owns the model source, the single UI callback slot and
// the refresh rules; specialisations supply Hooks:
//
//	      Store event (Added / Changed / Deleted)
//	                    │
//	                    ▼ marshalled onto the executor
//	     ┌──────────────────────────────┐
//	     │      subsystem.Controller     │
//	     │                              │
//	     │  Added   ─▶ OnSubsystemLoaded ─▶ Refresh
//	     │  Changed ─▶ OnSubsystemChanged(keys)
//	     │  Deleted ─▶ warn              │
//	     └──────────────┬───────────────┘
//	                    ▼
//	   Refresh: callback set && IsLoaded ─▶ UpdateView(cb)
//
// Refresh never queues: when no callback is registered or the controller is
// not loaded, the next qualifying event triggers it again.
//
// Usage:
//
//	type Controller struct {
//	    base *subsystem.Controller[Callback]
//	}
//
//	func New(deps subsystem.Deps) *Controller {
//	    c := &Controller{}
//	    c.base = subsystem.New[Callback]("subclimate", c, deps)
//	    return c
//	}
package subsystem
