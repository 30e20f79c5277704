// Package match binds boundary features to region records by canonical key,
// falling back to exact name equality.
package match

import (
	"github.com/sells-group/costmap/internal/boundary"
	"github.com/sells-group/costmap/internal/region"
)

// Via records which rule produced a binding.
type Via int

const (
	ViaNone Via = iota
	ViaKey
	ViaName
)

func (v Via) String() string {
	switch v {
	case ViaKey:
		return "key"
	case ViaName:
		return "name"
	default:
		return "none"
	}
}

// Binding associates one feature with at most one record.
type Binding struct {
	Feature *boundary.Feature
	Record  *region.Record
	Via     Via
}

// Bound reports whether the feature resolved to a record. Unbound features
// render as "no data" and are not selectable.
func (b Binding) Bound() bool { return b.Record != nil }

// Matcher resolves features against one dataset. It is immutable and safe
// for concurrent use.
type Matcher struct {
	ds     *region.Dataset
	byKey  map[string]int
	byName map[string]int
}

// New indexes the dataset. When two records share a key or a name the first
// in dataset order wins.
func New(ds *region.Dataset) *Matcher {
	m := &Matcher{
		ds:     ds,
		byKey:  make(map[string]int, ds.Len()),
		byName: make(map[string]int, ds.Len()),
	}
	for i := 0; i < ds.Len(); i++ {
		rec := ds.At(i)
		if k := rec.Key(); k != "" {
			if _, dup := m.byKey[k]; !dup {
				m.byKey[k] = i
			}
		}
		if rec.Name != "" {
			if _, dup := m.byName[rec.Name]; !dup {
				m.byName[rec.Name] = i
			}
		}
	}
	return m
}

// Dataset returns the indexed dataset.
func (m *Matcher) Dataset() *region.Dataset { return m.ds }

// Match resolves a single feature. The empty key never matches.
func (m *Matcher) Match(f *boundary.Feature) Binding {
	b := Binding{Feature: f}
	if f == nil {
		return b
	}
	if k := f.Key(); k != "" {
		if i, ok := m.byKey[k]; ok {
			b.Record, b.Via = m.ds.At(i), ViaKey
			return b
		}
	}
	if name := f.Name(); name != "" {
		if i, ok := m.byName[name]; ok {
			b.Record, b.Via = m.ds.At(i), ViaName
		}
	}
	return b
}

// FeatureFor is the reverse lookup: the first feature whose key matches the
// record's, else the first whose name matches.
func (m *Matcher) FeatureFor(rec *region.Record, features []*boundary.Feature) *boundary.Feature {
	if rec == nil {
		return nil
	}
	return boundary.Find(features, rec.Key(), rec.Name)
}

// Bind resolves every feature in order.
func (m *Matcher) Bind(features []*boundary.Feature) *Bindings {
	b := &Bindings{
		items:    make([]Binding, len(features)),
		byRecord: make(map[string]int),
		ds:       m.ds,
	}
	for i, f := range features {
		b.items[i] = m.Match(f)
		if rec := b.items[i].Record; rec != nil {
			if _, dup := b.byRecord[rec.ID]; !dup {
				b.byRecord[rec.ID] = i
			}
		}
	}
	return b
}
