// Package model provides the addressable model cache for the Gray Logic client.
//
// Every platform-owned object (place, person, device, subsystem) is mirrored
// locally as a Model keyed by its Address. The mirror is never authoritative:
// models only change when the platform confirms a payload, either as the reply
// to a fetch or as an asynchronous push.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                          Model Cache                              │
//	│                                                                   │
//	│  ┌──────────────┐  ┌──────────────┐  ┌────────────────────────┐  │
//	│  │    Source    │  │  ListSource  │  │       Collection       │  │
//	│  │ one address  │  │ address set  │  │ query-backed member set│  │
//	│  └──────┬───────┘  └──────┬───────┘  └───────────┬────────────┘  │
//	│         │                 │                      │               │
//	│         └─────────────────┼──────────────────────┘               │
//	│                           ▼                                      │
//	│                  ┌─────────────────┐                             │
//	│                  │      Store      │  one per process            │
//	│                  │ add-or-update,  │                             │
//	│                  │ get, remove,    │                             │
//	│                  │ clear (epoch)   │                             │
//	│                  └─────────────────┘                             │
//	└──────────────────────────────────────────────────────────────────┘
//
// # Key Types
//
//   - Address: PREFIX:namespace:id key of a platform object
//   - Model: attribute map with typed accessors
//   - AttributeSet: the keys changed by one update
//   - Store: the process-wide cache; emits Added, Changed and Deleted events
//   - Source: a single re-addressable slot with de-duplicated loading
//   - ListSource: an ordered set of Sources
//   - Collection: the members returned by a platform query
//
// # Invalidation
//
// Store.Clear advances an epoch. Every Source, ListSource and Collection
// records the epoch of its last successful load and reports itself unloaded
// once the epoch moves on, so a logout invalidates every slot at once.
//
// # Usage
//
//	store := model.NewStore()
//	hub := model.NewSource(store, client)
//	hub.SetAddress(model.ServiceAddress(model.NamespaceHub, hubID))
//	reg := hub.AddModelListener(func(e model.Event) { ... })
//	defer reg.Unregister()
//
//	m, err := hub.Load(ctx)
package model
