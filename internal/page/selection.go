package page

import (
	"sync"

	"github.com/sells-group/costmap/internal/region"
)

// SelectionReader exposes the currently selected region. Nil means the
// state-wide aggregate.
type SelectionReader interface {
	Selected() *region.Record
}

// SelectionRequester receives selection change requests from the map.
type SelectionRequester interface {
	Select(rec *region.Record)
	Reset()
}

// Selection is the page-owned selected region shared by every map instance
// and table on the page. It is the only writer of that value.
type Selection struct {
	mu       sync.RWMutex
	selected *region.Record
	subs     listeners[*region.Record]
}

// NewSelection creates a store with an initial selection (may be nil).
func NewSelection(initial *region.Record) *Selection {
	return &Selection{selected: initial}
}

// Selected returns the current selection.
func (s *Selection) Selected() *region.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// Select makes rec the selection and notifies subscribers when it changed.
func (s *Selection) Select(rec *region.Record) {
	s.mu.Lock()
	if sameRecord(s.selected, rec) {
		s.mu.Unlock()
		return
	}
	s.selected = rec
	s.mu.Unlock()
	s.subs.notify(rec)
}

// Reset returns to the state-wide aggregate.
func (s *Selection) Reset() { s.Select(nil) }

// Subscribe registers fn for selection changes and returns its cancel func.
func (s *Selection) Subscribe(fn func(*region.Record)) func() {
	return s.subs.add(fn)
}

// Subscribers returns the number of registered subscribers.
func (s *Selection) Subscribers() int { return s.subs.len() }

func sameRecord(a, b *region.Record) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}
