package page

import (
	"sync"

	"github.com/sells-group/costmap/internal/metric"
)

// Sector is the page's sector selector: the indicator and display mode every
// map and table on the page shows.
type Sector struct {
	mu   sync.RWMutex
	sel  metric.Selection
	subs listeners[metric.Selection]
}

// NewSector creates a selector with an initial value.
func NewSector(initial metric.Selection) *Sector {
	return &Sector{sel: initial}
}

// Get returns the current indicator selection.
func (s *Sector) Get() metric.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sel
}

// Set changes the selection and notifies subscribers when it changed.
func (s *Sector) Set(sel metric.Selection) {
	s.mu.Lock()
	if s.sel == sel {
		s.mu.Unlock()
		return
	}
	s.sel = sel
	s.mu.Unlock()
	s.subs.notify(sel)
}

// Subscribe registers fn for selection changes and returns its cancel func.
func (s *Sector) Subscribe(fn func(metric.Selection)) func() {
	return s.subs.add(fn)
}

// Subscribers returns the number of registered subscribers.
func (s *Sector) Subscribers() int { return s.subs.len() }
