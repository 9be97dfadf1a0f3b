package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-client/internal/model"
)

// Platform requests used by the session caches.
const (
	msgListDevices = "place:ListDevices"
	msgGetHub      = "place:GetHub"
	msgListPersons = "place:ListPersons"
	msgGetProducts = "prodcat:GetProducts"
)

// Requester issues platform requests.
type Requester interface {
	Request(ctx context.Context, dest model.Address, msgType string, attrs map[string]any) (map[string]any, error)
}

// Caches are the seven caches a session needs before it is usable.
type Caches struct {
	Place   *model.Source
	Person  *model.Source
	Account *model.Source

	Devices  *model.Collection
	Hubs     *model.Collection
	People   *model.Collection
	Products *model.Collection

	mu      sync.RWMutex
	placeID string
}

// cacheLoader is one unit of the login fan-out.
type cacheLoader struct {
	name   string
	reload func(ctx context.Context) error
}

// NewCaches creates unbound caches over store.
func NewCaches(store *model.Store, fetcher model.Fetcher, req Requester) *Caches {
	c := &Caches{
		Place:   model.NewSource(store, fetcher),
		Person:  model.NewSource(store, fetcher),
		Account: model.NewSource(store, fetcher),
	}

	c.Devices = model.NewCollection(store, model.NamespaceDevice,
		c.placeQuery(req, msgListDevices, "devices"))
	c.Hubs = model.NewCollection(store, model.NamespaceHub,
		c.placeQuery(req, msgGetHub, "hub"))
	c.People = model.NewCollection(store, model.NamespacePerson,
		c.placeQuery(req, msgListPersons, "persons"))
	c.Products = model.NewCollection(store, model.NamespaceProduct,
		func(ctx context.Context) ([]map[string]any, error) {
			dest := model.ServiceAddress(model.NamespaceProductCatalog, "")
			resp, err := req.Request(ctx, dest, msgGetProducts, map[string]any{"place": c.PlaceID()})
			if err != nil {
				return nil, err
			}
			return payloads(resp["products"])
		})

	return c
}

// placeQuery lists payloads from a request to the bound place.
func (c *Caches) placeQuery(req Requester, msgType, key string) model.Query {
	return func(ctx context.Context) ([]map[string]any, error) {
		resp, err := req.Request(ctx, model.PlaceAddress(c.PlaceID()), msgType, nil)
		if err != nil {
			return nil, err
		}
		return payloads(resp[key])
	}
}

// Bind points the caches at a place, person and account. Nothing is fetched.
func (c *Caches) Bind(placeID, personID, accountID string) {
	c.mu.Lock()
	c.placeID = placeID
	c.mu.Unlock()

	c.Place.SetAddress(model.PlaceAddress(placeID))
	c.Person.SetAddress(model.PersonAddress(personID))
	c.Account.SetAddress(model.AccountAddress(accountID))
}

// PlaceID returns the bound place.
func (c *Caches) PlaceID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.placeID
}

// IsLoaded reports whether every cache has completed a load.
func (c *Caches) IsLoaded() bool {
	return c.Place.IsLoaded() && c.Person.IsLoaded() && c.Account.IsLoaded() &&
		c.Devices.IsLoaded() && c.Hubs.IsLoaded() && c.People.IsLoaded() && c.Products.IsLoaded()
}

func (c *Caches) loaders() []cacheLoader {
	source := func(s *model.Source) func(context.Context) error {
		return func(ctx context.Context) error {
			_, err := s.Reload(ctx)
			return err
		}
	}
	collection := func(coll *model.Collection) func(context.Context) error {
		return func(ctx context.Context) error {
			_, err := coll.Reload(ctx)
			return err
		}
	}

	return []cacheLoader{
		{name: "place", reload: source(c.Place)},
		{name: "person", reload: source(c.Person)},
		{name: "account", reload: source(c.Account)},
		{name: "devices", reload: collection(c.Devices)},
		{name: "hubs", reload: collection(c.Hubs)},
		{name: "people", reload: collection(c.People)},
		{name: "products", reload: collection(c.Products)},
	}
}

// Close detaches every cache from the store.
func (c *Caches) Close() {
	c.Place.Close()
	c.Person.Close()
	c.Account.Close()
	c.Devices.Close()
	c.Hubs.Close()
	c.People.Close()
	c.Products.Close()
}

// payloads converts a list (or single object) attribute into model payloads.
func payloads(v any) ([]map[string]any, error) {
	switch list := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return []map[string]any{list}, nil
	case []map[string]any:
		return list, nil
	case []any:
		out := make([]map[string]any, 0, len(list))
		for i, item := range list {
			p, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("payload %d: unexpected %T", i, item)
			}
			out = append(out, p)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unexpected payload list %T", v)
	}
}
