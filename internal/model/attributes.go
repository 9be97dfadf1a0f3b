package model

import (
	"sort"
	"strings"
)

// Base attributes present on every cached model.
const (
	AttrAddress = "base:address"
	AttrType    = "base:type"
	AttrCaps    = "base:caps"
	AttrID      = "base:id"
)

// AttributeSet is the set of attribute names touched by one model update.
type AttributeSet map[string]struct{}

// NewAttributeSet builds a set from names.
func NewAttributeSet(names ...string) AttributeSet {
	s := make(AttributeSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has reports whether name is in the set.
func (s AttributeSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// HasAny reports whether any of names is in the set.
func (s AttributeSet) HasAny(names ...string) bool {
	for _, n := range names {
		if s.Has(n) {
			return true
		}
	}
	return false
}

// HasNamespace reports whether any attribute belongs to the capability namespace ns.
func (s AttributeSet) HasNamespace(ns string) bool {
	prefix := ns + ":"
	for name := range s {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// Keys returns the names in sorted order.
func (s AttributeSet) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of names.
func (s AttributeSet) Len() int { return len(s) }
