package model

import (
	"encoding/json"
	"reflect"
	"strings"
	"sync"
	"time"
)

// Model is the local mirror of one platform-owned object.
//
// The attributes are always the last platform-confirmed values. Models are
// shared between every controller that references the same address; they are
// only mutated by the Store when a confirmed payload arrives.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Model struct {
	mu      sync.RWMutex
	address Address
	attrs   map[string]any
}

func newModel(address Address, attrs map[string]any) *Model {
	m := &Model{address: address, attrs: make(map[string]any, len(attrs))}
	for k, v := range attrs {
		m.attrs[k] = v
	}
	m.attrs[AttrAddress] = string(address)
	return m
}

// Address returns the model's address.
func (m *Model) Address() Address { return m.address }

// Type returns base:type.
func (m *Model) Type() string { return m.String(AttrType) }

// Caps returns the capability namespaces the model exposes.
func (m *Model) Caps() []string { return m.Strings(AttrCaps) }

// HasCapability reports whether ns is one of the model's capabilities.
func (m *Model) HasCapability(ns string) bool {
	for _, c := range m.Caps() {
		if c == ns {
			return true
		}
	}
	return false
}

// Get returns the raw attribute value, or nil.
func (m *Model) Get(name string) any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attrs[name]
}

// String returns a string attribute, or "" when absent or of another type.
func (m *Model) String(name string) string {
	s, _ := m.Get(name).(string)
	return s
}

// Bool returns a boolean attribute.
func (m *Model) Bool(name string) bool {
	b, _ := m.Get(name).(bool)
	return b
}

// Int returns a numeric attribute as an int. JSON numbers arrive as float64.
func (m *Model) Int(name string) (int, bool) {
	return toInt(m.Get(name))
}

// Float returns a numeric attribute as a float64.
func (m *Model) Float(name string) (float64, bool) {
	switch n := m.Get(name).(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		i, ok := toInt(n)
		return float64(i), ok
	}
}

// Strings returns a list-of-strings attribute.
func (m *Model) Strings(name string) []string {
	return toStrings(m.Get(name))
}

// Time returns a timestamp attribute expressed in epoch milliseconds.
func (m *Model) Time(name string) (time.Time, bool) {
	ms, ok := toInt(m.Get(name))
	if !ok || ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ms)), true
}

// Attributes returns a copy of every attribute.
func (m *Model) Attributes() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]any, len(m.attrs))
	for k, v := range m.attrs {
		out[k] = v
	}
	return out
}

// AttributesIn returns a copy of the attributes in capability namespace ns.
func (m *Model) AttributesIn(ns string) map[string]any {
	prefix := ns + ":"
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]any)
	for k, v := range m.attrs {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out
}

// apply merges attrs and returns the names whose value actually changed.
func (m *Model) apply(attrs map[string]any) AttributeSet {
	m.mu.Lock()
	defer m.mu.Unlock()

	changed := make(AttributeSet)
	for k, v := range attrs {
		if k == AttrAddress {
			continue
		}
		if old, ok := m.attrs[k]; ok && reflect.DeepEqual(old, v) {
			continue
		}
		m.attrs[k] = v
		changed[k] = struct{}{}
	}
	return changed
}

// IntValue converts a decoded attribute value to an int.
func IntValue(v any) (int, bool) { return toInt(v) }

// StringsValue converts a decoded list attribute to strings.
func StringsValue(v any) []string { return toStrings(v) }

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return 0, false
			}
			return int(f), true
		}
		return int(i), true
	default:
		return 0, false
	}
}

func toStrings(v any) []string {
	switch s := v.(type) {
	case []string:
		out := make([]string, len(s))
		copy(out, s)
		return out
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}
