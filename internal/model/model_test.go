package model

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

// recordingListener collects store events.
type recordingListener struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingListener) on(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordingListener) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

func (r *recordingListener) last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func TestAddress_Parts(t *testing.T) {
	tests := []struct {
		addr      Address
		prefix    string
		namespace string
		id        string
		valid     bool
	}{
		{PlaceAddress("p1"), "SERV", "place", "p1", true},
		{DeviceAddress("d1"), "DRIV", "dev", "d1", true},
		{SubsystemAddress("subsecurity", "p1"), "SERV", "subsecurity", "p1", true},
		{ServiceAddress("prodcat", ""), "SERV", "prodcat", "", true},
		{Address("SERV:place:with:colons"), "SERV", "place", "with:colons", true},
		{Address("garbage"), "", "", "", false},
		{Address(""), "", "", "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.addr), func(t *testing.T) {
			if got := tt.addr.Prefix(); got != tt.prefix {
				t.Errorf("Prefix() = %q, want %q", got, tt.prefix)
			}
			if got := tt.addr.Namespace(); got != tt.namespace {
				t.Errorf("Namespace() = %q, want %q", got, tt.namespace)
			}
			if got := tt.addr.ID(); got != tt.id {
				t.Errorf("ID() = %q, want %q", got, tt.id)
			}
			if got := tt.addr.Valid(); got != tt.valid {
				t.Errorf("Valid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestAttributeSet(t *testing.T) {
	s := NewAttributeSet("contact:contact", "devconn:state", "base:name")

	if !s.Has("contact:contact") {
		t.Error("Has(contact:contact) = false")
	}
	if s.Has("mot:motion") {
		t.Error("Has(mot:motion) = true")
	}
	if !s.HasAny("mot:motion", "devconn:state") {
		t.Error("HasAny() = false, want true")
	}
	if !s.HasNamespace("devconn") {
		t.Error("HasNamespace(devconn) = false")
	}
	if s.HasNamespace("dev") {
		t.Error("HasNamespace(dev) matched devconn attribute")
	}

	keys := s.Keys()
	want := []string{"base:name", "contact:contact", "devconn:state"}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("Keys() = %v, want %v", keys, want)
		}
	}
}

func TestModel_Accessors(t *testing.T) {
	now := time.Now().Truncate(time.Millisecond)
	m := newModel(PlaceAddress("p1"), map[string]any{
		AttrType:            "place",
		AttrCaps:            []any{"base", "place"},
		"place:name":        "Home",
		"place:primary":     true,
		"place:count":       float64(3),
		"place:big":         json.Number("42"),
		"place:created":     float64(now.UnixMilli()),
		"place:notAString":  7,
		"subsecurity:state": "ARMED",
	})

	if m.Type() != "place" {
		t.Errorf("Type() = %q", m.Type())
	}
	if !m.HasCapability("place") || m.HasCapability("hub") {
		t.Errorf("HasCapability mismatch: caps=%v", m.Caps())
	}
	if m.String("place:name") != "Home" {
		t.Errorf("String() = %q", m.String("place:name"))
	}
	if m.String("place:notAString") != "" {
		t.Error("String() on int attribute should be empty")
	}
	if !m.Bool("place:primary") {
		t.Error("Bool() = false")
	}
	if n, ok := m.Int("place:count"); !ok || n != 3 {
		t.Errorf("Int(count) = %d, %v", n, ok)
	}
	if n, ok := m.Int("place:big"); !ok || n != 42 {
		t.Errorf("Int(big) = %d, %v", n, ok)
	}
	if ts, ok := m.Time("place:created"); !ok || !ts.Equal(now) {
		t.Errorf("Time() = %v, %v; want %v", ts, ok, now)
	}
	if m.String(AttrAddress) != "SERV:place:p1" {
		t.Errorf("base:address = %q", m.String(AttrAddress))
	}
	if ns := m.AttributesIn("subsecurity"); len(ns) != 1 {
		t.Errorf("AttributesIn(subsecurity) = %v", ns)
	}
}

func TestModel_ApplyReportsOnlyChangedKeys(t *testing.T) {
	m := newModel(DeviceAddress("d1"), map[string]any{
		"contact:contact": "CLOSED",
		"dev:name":        "Front Door",
	})

	changed := m.apply(map[string]any{
		"contact:contact": "OPENED",
		"dev:name":        "Front Door",
		AttrAddress:       "DRIV:dev:other",
	})

	if changed.Len() != 1 || !changed.Has("contact:contact") {
		t.Errorf("changed = %v, want [contact:contact]", changed.Keys())
	}
	if m.Address() != DeviceAddress("d1") || m.String(AttrAddress) != "DRIV:dev:d1" {
		t.Error("apply must not rewrite the address")
	}
}

func TestStore_UpdateEmitsAddedThenChanged(t *testing.T) {
	s := NewStore()
	rec := &recordingListener{}
	s.Subscribe(rec.on)

	payload := map[string]any{AttrAddress: "DRIV:dev:d1", "dev:name": "Lamp"}
	m1, err := s.Update(payload)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	// Identical payload: no change, no event
	if _, err := s.Update(payload); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	m2, err := s.Update(map[string]any{AttrAddress: "DRIV:dev:d1", "dev:name": "Desk Lamp"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if m1 != m2 {
		t.Error("Update must return the shared instance")
	}

	kinds := rec.kinds()
	if len(kinds) != 2 || kinds[0] != EventAdded || kinds[1] != EventChanged {
		t.Fatalf("events = %v, want [added changed]", kinds)
	}
	if !rec.last().Changed.Has("dev:name") {
		t.Error("Changed set missing dev:name")
	}
}

func TestStore_UpdateWithoutAddress(t *testing.T) {
	s := NewStore()
	_, err := s.Update(map[string]any{"dev:name": "x"})
	if !errors.Is(err, ErrMissingAddress) {
		t.Errorf("Update() error = %v, want ErrMissingAddress", err)
	}
}

func TestStore_ApplyChangeIgnoresUncached(t *testing.T) {
	s := NewStore()
	rec := &recordingListener{}
	s.Subscribe(rec.on)

	if _, ok := s.ApplyChange(DeviceAddress("nope"), map[string]any{"dev:name": "x"}); ok {
		t.Error("ApplyChange() on uncached model returned ok")
	}
	if len(rec.kinds()) != 0 {
		t.Error("ApplyChange() on uncached model emitted an event")
	}
}

func TestStore_RemoveAndClear(t *testing.T) {
	s := NewStore()
	rec := &recordingListener{}
	s.Subscribe(rec.on)

	s.Update(map[string]any{AttrAddress: "DRIV:dev:d1"})
	s.Update(map[string]any{AttrAddress: "DRIV:dev:d2"})

	if !s.Remove(DeviceAddress("d1")) {
		t.Error("Remove() = false")
	}
	if s.Remove(DeviceAddress("d1")) {
		t.Error("second Remove() = true")
	}
	if rec.last().Kind != EventDeleted {
		t.Errorf("last event = %v, want deleted", rec.last().Kind)
	}

	before := s.Epoch()
	s.Clear()
	if s.Len() != 0 {
		t.Errorf("Len() after Clear = %d", s.Len())
	}
	if s.Epoch() != before+1 {
		t.Errorf("Epoch() = %d, want %d", s.Epoch(), before+1)
	}
	if n := len(rec.kinds()); n != 3 {
		t.Errorf("Clear emitted events: total %d, want 3", n)
	}
}

func TestStore_ListenerPanicDoesNotStopDelivery(t *testing.T) {
	s := NewStore()
	rec := &recordingListener{}
	s.Subscribe(func(Event) { panic("boom") })
	s.Subscribe(rec.on)

	s.Update(map[string]any{AttrAddress: "DRIV:dev:d1"})

	if len(rec.kinds()) != 1 {
		t.Error("listener after a panicking one was not called")
	}
}
