package model

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// MockFetcher is a test implementation of Fetcher.
type MockFetcher struct {
	mu      sync.Mutex
	models  map[Address]map[string]any
	errs    map[Address]error
	gates   map[Address]chan struct{}
	started chan Address
	calls   atomic.Int32
}

func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		models:  make(map[Address]map[string]any),
		errs:    make(map[Address]error),
		gates:   make(map[Address]chan struct{}),
		started: make(chan Address, 16),
	}
}

func (f *MockFetcher) set(addr Address, attrs map[string]any) {
	f.mu.Lock()
	f.models[addr] = attrs
	f.mu.Unlock()
}

func (f *MockFetcher) fail(addr Address, err error) {
	f.mu.Lock()
	f.errs[addr] = err
	f.mu.Unlock()
}

// hold makes fetches of addr block until the returned function is called.
func (f *MockFetcher) hold(addr Address) func() {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gates[addr] = gate
	f.mu.Unlock()
	return func() { close(gate) }
}

func (f *MockFetcher) GetAttributes(ctx context.Context, addr Address) (map[string]any, error) {
	f.calls.Add(1)
	f.started <- addr

	f.mu.Lock()
	gate := f.gates[addr]
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[addr]; err != nil {
		return nil, err
	}
	attrs, ok := f.models[addr]
	if !ok {
		return nil, ErrNotFound
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out, nil
}

func waitStarted(t *testing.T, f *MockFetcher) Address {
	t.Helper()
	select {
	case a := <-f.started:
		return a
	case <-time.After(2 * time.Second):
		t.Fatal("fetch did not start")
		return ""
	}
}

func TestSource_LoadCachesModel(t *testing.T) {
	store := NewStore()
	f := NewMockFetcher()
	f.set(PlaceAddress("p1"), map[string]any{"place:name": "Home"})

	src := NewSourceAt(store, f, PlaceAddress("p1"))
	if src.Get() != nil || src.IsLoaded() {
		t.Fatal("source must be empty before the first load")
	}

	m, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if m.String("place:name") != "Home" {
		t.Errorf("place:name = %q", m.String("place:name"))
	}

	if _, err := src.Load(context.Background()); err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	if n := f.calls.Load(); n != 1 {
		t.Errorf("fetch count = %d, want 1", n)
	}
	if src.Get() != m {
		t.Error("Get() did not return the loaded model")
	}
}

func TestSource_ConcurrentLoadsShareOneFetch(t *testing.T) {
	store := NewStore()
	f := NewMockFetcher()
	addr := DeviceAddress("d1")
	f.set(addr, map[string]any{"dev:name": "Lamp"})
	release := f.hold(addr)

	src := NewSourceAt(store, f, addr)

	var wg sync.WaitGroup
	results := make([]*Model, 2)
	errs := make([]error, 2)
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = src.Load(context.Background())
		}()
		if i == 0 {
			waitStarted(t, f)
		}
	}

	// Give the second caller time to join the in-flight fetch
	time.Sleep(20 * time.Millisecond)
	release()
	wg.Wait()

	for i := range 2 {
		if errs[i] != nil {
			t.Fatalf("Load() #%d error = %v", i, errs[i])
		}
	}
	if results[0] != results[1] {
		t.Error("concurrent loads returned different models")
	}
	if n := f.calls.Load(); n != 1 {
		t.Errorf("fetch count = %d, want 1", n)
	}
}

func TestSource_GetFollowsMostRecentAddress(t *testing.T) {
	store := NewStore()
	f := NewMockFetcher()
	a, b := DeviceAddress("a"), DeviceAddress("b")
	f.set(a, map[string]any{"dev:name": "A"})
	f.set(b, map[string]any{"dev:name": "B"})

	src := NewSource(store, f)

	steps := []struct {
		set  Address
		load bool
		want string
	}{
		{set: a, load: true, want: "A"},
		{set: b, load: false, want: ""},
		{set: b, load: true, want: "B"},
		{set: a, load: false, want: ""},
		{set: a, load: true, want: "A"},
	}

	for i, step := range steps {
		src.SetAddress(step.set)
		if step.load {
			if _, err := src.Load(context.Background()); err != nil {
				t.Fatalf("step %d: Load() error = %v", i, err)
			}
		}
		got := ""
		if m := src.Get(); m != nil {
			got = m.String("dev:name")
			if m.Address() != step.set {
				t.Fatalf("step %d: Get() returned model for %s, bound to %s", i, m.Address(), step.set)
			}
		}
		if got != step.want {
			t.Errorf("step %d: Get() name = %q, want %q", i, got, step.want)
		}
	}
}

func TestSource_AbandonedFetchIsDiscarded(t *testing.T) {
	store := NewStore()
	f := NewMockFetcher()
	a, b := DeviceAddress("a"), DeviceAddress("b")
	f.set(a, map[string]any{"dev:name": "A"})
	f.set(b, map[string]any{"dev:name": "B"})
	release := f.hold(a)

	src := NewSourceAt(store, f, a)

	done := make(chan error, 1)
	go func() {
		_, err := src.Load(context.Background())
		done <- err
	}()
	waitStarted(t, f)

	src.SetAddress(b)
	release()

	if err := <-done; !errors.Is(err, ErrAddressChanged) {
		t.Fatalf("Load() error = %v, want ErrAddressChanged", err)
	}
	if src.Get() != nil {
		t.Error("Get() returned a model after the address moved on")
	}
	if store.Get(a) != nil {
		t.Error("abandoned payload reached the store")
	}
}

func TestSource_FailedReloadKeepsCachedModel(t *testing.T) {
	store := NewStore()
	f := NewMockFetcher()
	addr := PlaceAddress("p1")
	f.set(addr, map[string]any{"place:name": "Home"})

	src := NewSourceAt(store, f, addr)
	m, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	boom := errors.New("network down")
	f.fail(addr, boom)

	if _, err := src.Reload(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Reload() error = %v, want %v", err, boom)
	}
	if src.Get() != m || m.String("place:name") != "Home" {
		t.Error("failed reload replaced the cached model")
	}
}

func TestSource_ReloadAlwaysFetches(t *testing.T) {
	store := NewStore()
	f := NewMockFetcher()
	addr := PlaceAddress("p1")
	f.set(addr, map[string]any{"place:name": "Home"})

	src := NewSourceAt(store, f, addr)
	src.Load(context.Background())

	f.set(addr, map[string]any{"place:name": "Cottage"})
	m, err := src.Reload(context.Background())
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if m.String("place:name") != "Cottage" {
		t.Errorf("place:name = %q, want Cottage", m.String("place:name"))
	}
	if n := f.calls.Load(); n != 2 {
		t.Errorf("fetch count = %d, want 2", n)
	}
}

func TestSource_StoreClearInvalidates(t *testing.T) {
	store := NewStore()
	f := NewMockFetcher()
	addr := PlaceAddress("p1")
	f.set(addr, map[string]any{"place:name": "Home"})

	src := NewSourceAt(store, f, addr)
	src.Load(context.Background())

	store.Clear()
	if src.IsLoaded() {
		t.Fatal("IsLoaded() = true after store clear")
	}

	if _, err := src.Load(context.Background()); err != nil {
		t.Fatalf("Load() after clear error = %v", err)
	}
	if n := f.calls.Load(); n != 2 {
		t.Errorf("fetch count = %d, want 2", n)
	}
}

func TestSource_LoadWithoutAddress(t *testing.T) {
	src := NewSource(NewStore(), NewMockFetcher())
	if _, err := src.Load(context.Background()); !errors.Is(err, ErrNoAddress) {
		t.Errorf("Load() error = %v, want ErrNoAddress", err)
	}
}

func TestSource_ListenerFollowsBoundAddress(t *testing.T) {
	store := NewStore()
	f := NewMockFetcher()
	a, b := DeviceAddress("a"), DeviceAddress("b")
	f.set(a, map[string]any{"dev:name": "A"})

	src := NewSourceAt(store, f, a)
	rec := &recordingListener{}
	reg := src.AddModelListener(rec.on)

	// Loaded flag is set before the Added event is delivered
	var loadedAtEvent bool
	src.AddModelListener(func(Event) { loadedAtEvent = src.IsLoaded() })

	src.Load(context.Background())
	store.ApplyChange(a, map[string]any{"dev:name": "A2"})
	store.Update(map[string]any{AttrAddress: string(b)})

	kinds := rec.kinds()
	if len(kinds) != 2 || kinds[0] != EventAdded || kinds[1] != EventChanged {
		t.Fatalf("events = %v, want [added changed]", kinds)
	}
	if !loadedAtEvent {
		t.Error("IsLoaded() was false inside the listener")
	}

	src.SetAddress(b)
	store.ApplyChange(b, map[string]any{"dev:name": "B"})
	if len(rec.kinds()) != 3 {
		t.Error("listener did not follow the rebound address")
	}

	reg.Unregister()
	store.ApplyChange(b, map[string]any{"dev:name": "B2"})
	if len(rec.kinds()) != 3 {
		t.Error("listener called after Unregister")
	}
}

func TestListSource_SyncAndLoad(t *testing.T) {
	store := NewStore()
	f := NewMockFetcher()
	for _, id := range []string{"a", "b", "c"} {
		f.set(DeviceAddress(id), map[string]any{"dev:name": id})
	}

	list := NewListSource(store, f)
	if !list.IsLoaded() {
		t.Error("empty list must report loaded")
	}

	err := list.SetAddresses(context.Background(), []Address{
		DeviceAddress("a"), DeviceAddress("b"), DeviceAddress("a"), "",
	})
	if err != nil {
		t.Fatalf("SetAddresses() error = %v", err)
	}
	if got := list.Addresses(); len(got) != 2 {
		t.Fatalf("Addresses() = %v, want 2 unique entries", got)
	}
	if !list.IsLoaded() {
		t.Error("IsLoaded() = false after load")
	}

	added := list.Sync([]Address{DeviceAddress("b"), DeviceAddress("c")})
	if len(added) != 1 || added[0] != DeviceAddress("c") {
		t.Errorf("Sync() added = %v, want [c]", added)
	}
	if list.Contains(DeviceAddress("a")) {
		t.Error("removed address still a member")
	}
	if list.IsLoaded() {
		t.Error("IsLoaded() = true with an unloaded member")
	}

	if err := list.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	models := list.Models()
	if len(models) != 2 || models[0].String("dev:name") != "b" || models[1].String("dev:name") != "c" {
		t.Errorf("Models() order wrong")
	}
	// a, b, c each fetched once; b was not refetched
	if n := f.calls.Load(); n != 3 {
		t.Errorf("fetch count = %d, want 3", n)
	}
}

func TestListSource_LoadFailure(t *testing.T) {
	store := NewStore()
	f := NewMockFetcher()
	f.set(DeviceAddress("a"), map[string]any{})
	boom := errors.New("boom")
	f.fail(DeviceAddress("b"), boom)

	list := NewListSource(store, f)
	err := list.SetAddresses(context.Background(), []Address{DeviceAddress("a"), DeviceAddress("b")})
	if !errors.Is(err, boom) {
		t.Fatalf("SetAddresses() error = %v, want %v", err, boom)
	}
	if list.IsLoaded() {
		t.Error("IsLoaded() = true with a failed member")
	}
}

func TestListSource_ListenerOnlyForMembers(t *testing.T) {
	store := NewStore()
	f := NewMockFetcher()
	f.set(DeviceAddress("a"), map[string]any{})

	list := NewListSource(store, f)
	rec := &recordingListener{}
	list.AddModelListener(rec.on)
	list.SetAddresses(context.Background(), []Address{DeviceAddress("a")})

	store.Update(map[string]any{AttrAddress: "DRIV:dev:z"})
	store.ApplyChange(DeviceAddress("a"), map[string]any{"contact:contact": "OPENED"})

	kinds := rec.kinds()
	if len(kinds) != 2 || kinds[1] != EventChanged {
		t.Errorf("events = %v, want [added changed]", kinds)
	}
}

func TestCollection_ReloadReplacesMembershipOnSuccess(t *testing.T) {
	store := NewStore()
	var fail atomic.Bool
	payloads := []map[string]any{
		{AttrAddress: "DRIV:dev:1", "dev:name": "One"},
		{AttrAddress: "DRIV:dev:2", "dev:name": "Two"},
	}
	coll := NewCollection(store, NamespaceDevice, func(context.Context) ([]map[string]any, error) {
		if fail.Load() {
			return nil, errors.New("offline")
		}
		return payloads, nil
	})

	models, err := coll.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(models) != 2 || !coll.IsLoaded() {
		t.Fatalf("Load() returned %d models, loaded=%v", len(models), coll.IsLoaded())
	}

	fail.Store(true)
	if _, err := coll.Reload(context.Background()); err == nil {
		t.Fatal("Reload() error = nil")
	}
	if coll.Len() != 2 {
		t.Errorf("failed reload changed membership: Len() = %d", coll.Len())
	}
}

func TestCollection_FollowsAddedAndDeleted(t *testing.T) {
	store := NewStore()
	coll := NewCollection(store, NamespaceDevice, func(context.Context) ([]map[string]any, error) {
		return []map[string]any{{AttrAddress: "DRIV:dev:1"}}, nil
	})
	coll.Load(context.Background())

	store.Update(map[string]any{AttrAddress: "DRIV:dev:2"})
	store.Update(map[string]any{AttrAddress: "SERV:person:x"})
	if coll.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", coll.Len())
	}

	store.Remove(DeviceAddress("1"))
	addrs := coll.Addresses()
	if len(addrs) != 1 || addrs[0] != DeviceAddress("2") {
		t.Errorf("Addresses() = %v, want [DRIV:dev:2]", addrs)
	}

	store.Clear()
	if coll.IsLoaded() {
		t.Error("IsLoaded() = true after store clear")
	}
}
