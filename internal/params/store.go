// Package params holds the parameter store read by experiments during a scan,
// and the resolver that binds "Collection.Name" placeholders on configuration
// structs to concrete values.
//
// The store is loaded once per session and is read-only while a scan runs.
// Per-point values are layered on top with an Overlay rather than by mutating
// the base store.
package params

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnknownCollection reports a lookup in a collection the store lacks.
	ErrUnknownCollection = errors.New("unknown parameter collection")
	// ErrUnknownName reports a lookup of a name missing from its collection.
	ErrUnknownName = errors.New("unknown parameter name")
)

// Store is a two-level mapping of collection → name → value.
type Store interface {
	// Get returns the value stored under k.
	Get(k Key) (Value, bool)

	// Collections returns the collection names in sorted order.
	Collections() []string

	// Names returns the parameter names of a collection in sorted order,
	// or nil if the collection does not exist.
	Names(collection string) []string
}

// Lookup is the typed lookup used by the resolver and experiment code. Misses
// are reported as ErrUnknownCollection or ErrUnknownName.
func Lookup(s Store, k Key) (Value, error) {
	if v, ok := s.Get(k); ok {
		return v, nil
	}
	if len(s.Names(k.Collection)) == 0 {
		return Value{}, fmt.Errorf("%w: %s", ErrUnknownCollection, k.Collection)
	}
	return Value{}, fmt.Errorf("%w: %s", ErrUnknownName, k)
}

// MapStore is an in-memory Store.
type MapStore struct {
	data map[string]map[string]Value
}

// NewMapStore builds a store from nested maps of decoded scalars.
func NewMapStore(raw map[string]map[string]any) (*MapStore, error) {
	s := &MapStore{data: make(map[string]map[string]Value, len(raw))}
	for collection, names := range raw {
		for name, v := range names {
			val, err := FromAny(v)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", collection, name, err)
			}
			s.Set(Key{Collection: collection, Name: name}, val)
		}
		if _, ok := s.data[collection]; !ok {
			s.data[collection] = map[string]Value{}
		}
	}
	return s, nil
}

// Set stores v under k. Stores must only be written before a run starts.
func (s *MapStore) Set(k Key, v Value) {
	if s.data == nil {
		s.data = make(map[string]map[string]Value)
	}
	c, ok := s.data[k.Collection]
	if !ok {
		c = make(map[string]Value)
		s.data[k.Collection] = c
	}
	c[k.Name] = v
}

// Get implements Store.
func (s *MapStore) Get(k Key) (Value, bool) {
	c, ok := s.data[k.Collection]
	if !ok {
		return Value{}, false
	}
	v, ok := c[k.Name]
	return v, ok
}

// Collections implements Store.
func (s *MapStore) Collections() []string {
	out := make([]string, 0, len(s.data))
	for c := range s.data {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Names implements Store.
func (s *MapStore) Names(collection string) []string {
	c, ok := s.data[collection]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(c))
	for n := range c {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Overlay layers per-point overrides on top of a read-only base store.
type Overlay struct {
	base Store
	over map[Key]Value
}

// NewOverlay returns an empty overlay on base.
func NewOverlay(base Store) *Overlay {
	return &Overlay{base: base, over: make(map[Key]Value)}
}

// Set overrides the value of k.
func (o *Overlay) Set(k Key, v Value) {
	o.over[k] = v
}

// Reset drops every override.
func (o *Overlay) Reset() {
	clear(o.over)
}

// Get implements Store.
func (o *Overlay) Get(k Key) (Value, bool) {
	if v, ok := o.over[k]; ok {
		return v, true
	}
	return o.base.Get(k)
}

// Collections implements Store.
func (o *Overlay) Collections() []string {
	seen := make(map[string]bool)
	for _, c := range o.base.Collections() {
		seen[c] = true
	}
	for k := range o.over {
		seen[k.Collection] = true
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Names implements Store.
func (o *Overlay) Names(collection string) []string {
	seen := make(map[string]bool)
	for _, n := range o.base.Names(collection) {
		seen[n] = true
	}
	for k := range o.over {
		if k.Collection == collection {
			seen[k.Name] = true
		}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Snapshot is a flattened "Collection.Name" → scalar view of a store. It is
// what the evaluator receives and what is written next to scan results.
type Snapshot map[string]any

// TakeSnapshot flattens every parameter in s.
func TakeSnapshot(s Store) Snapshot {
	snap := make(Snapshot)
	for _, c := range s.Collections() {
		for _, n := range s.Names(c) {
			k := Key{Collection: c, Name: n}
			if v, ok := s.Get(k); ok {
				snap[k.String()] = v.Any()
			}
		}
	}
	return snap
}

// Float is a convenience lookup returning def when k is missing or not
// numeric-like.
func Float(s Store, k Key, def float64) float64 {
	if v, ok := s.Get(k); ok {
		if f, ok := v.Float(); ok {
			return f
		}
	}
	return def
}

// Text is a convenience lookup returning def when k is missing or not a string.
func Text(s Store, k Key, def string) string {
	if v, ok := s.Get(k); ok {
		if t, ok := v.Text(); ok {
			return t
		}
	}
	return def
}
