package page

import (
	"sync"

	"github.com/sells-group/costmap/internal/projection"
)

// Window is the host viewport. Resize is driven by the host (a browser
// resize event, an API call); components subscribe to it.
type Window struct {
	mu   sync.RWMutex
	size projection.Viewport
	subs listeners[projection.Viewport]
}

// NewWindow creates a window of the given size.
func NewWindow(size projection.Viewport) *Window {
	return &Window{size: size}
}

// Size returns the current viewport size.
func (w *Window) Size() projection.Viewport {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.size
}

// Resize changes the viewport and notifies subscribers when it changed.
func (w *Window) Resize(size projection.Viewport) {
	w.mu.Lock()
	if w.size == size {
		w.mu.Unlock()
		return
	}
	w.size = size
	w.mu.Unlock()
	w.subs.notify(size)
}

// OnResize registers fn for size changes and returns its cancel func.
func (w *Window) OnResize(fn func(projection.Viewport)) func() {
	return w.subs.add(fn)
}

// Listeners returns the number of registered resize listeners.
func (w *Window) Listeners() int { return w.subs.len() }
