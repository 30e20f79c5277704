package match

import (
	"github.com/sells-group/costmap/internal/region"
)

// Bindings is the resolved binding of one geometry set against one dataset.
// It depends only on those two inputs, so callers compute it once per
// (dataset, geometry) pair and reuse it across draw passes.
type Bindings struct {
	items    []Binding
	byRecord map[string]int
	ds       *region.Dataset
}

// Len returns the number of features.
func (b *Bindings) Len() int {
	if b == nil {
		return 0
	}
	return len(b.items)
}

// At returns the binding of the i-th feature.
func (b *Bindings) At(i int) Binding { return b.items[i] }

// All returns the bindings in feature order.
func (b *Bindings) All() []Binding {
	if b == nil {
		return nil
	}
	out := make([]Binding, len(b.items))
	copy(out, b.items)
	return out
}

// ForRecord returns the first binding whose record has the given id.
func (b *Bindings) ForRecord(id string) (Binding, bool) {
	if b == nil {
		return Binding{}, false
	}
	i, ok := b.byRecord[id]
	if !ok {
		return Binding{}, false
	}
	return b.items[i], true
}

// Records returns each bound record once, in first-bound feature order.
func (b *Bindings) Records() []*region.Record {
	if b == nil {
		return nil
	}
	seen := make(map[*region.Record]bool, len(b.byRecord))
	var out []*region.Record
	for _, item := range b.items {
		if item.Record == nil || seen[item.Record] {
			continue
		}
		seen[item.Record] = true
		out = append(out, item.Record)
	}
	return out
}

// DrawOrder returns binding indices in paint order. Features bound to the
// selected record are moved to the end, keeping their relative order, so
// adjacent polygons never paint over the selection stroke.
func (b *Bindings) DrawOrder(selected *region.Record) []int {
	if b == nil {
		return nil
	}
	order := make([]int, 0, len(b.items))
	var tail []int
	for i, item := range b.items {
		if selected != nil && item.Record != nil && item.Record.ID == selected.ID {
			tail = append(tail, i)
			continue
		}
		order = append(order, i)
	}
	return append(order, tail...)
}

// Report summarises a binding pass.
type Report struct {
	Features          int      `json:"features"`
	Records           int      `json:"records"`
	ByKey             int      `json:"by_key"`
	ByName            int      `json:"by_name"`
	UnmatchedFeatures []string `json:"unmatched_features"`
	UnmatchedRecords  []string `json:"unmatched_records"`
}

// Report counts how each feature bound and lists the features and records
// left without a partner. Unmatched features are listed by name (or raw id
// when unnamed); unmatched records by name.
func (b *Bindings) Report() Report {
	if b == nil {
		return Report{}
	}
	r := Report{Features: len(b.items), Records: b.ds.Len()}
	for _, item := range b.items {
		switch item.Via {
		case ViaKey:
			r.ByKey++
		case ViaName:
			r.ByName++
		default:
			label := item.Feature.Name()
			if label == "" {
				label = item.Feature.RawID()
			}
			r.UnmatchedFeatures = append(r.UnmatchedFeatures, label)
		}
	}

	bound := make(map[*region.Record]bool)
	for _, item := range b.items {
		if item.Record != nil {
			bound[item.Record] = true
		}
	}
	for i := 0; i < b.ds.Len(); i++ {
		if rec := b.ds.At(i); !bound[rec] {
			r.UnmatchedRecords = append(r.UnmatchedRecords, rec.Name)
		}
	}
	return r
}
