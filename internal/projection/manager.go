package projection

import (
	"sync"

	"github.com/twpayne/go-geom"
)

// Class is the viewport class the projection is computed for.
type Class int

const (
	Desktop Class = iota
	Mobile
)

func (c Class) String() string {
	if c == Mobile {
		return "mobile"
	}
	return "desktop"
}

// Config fixes everything about the projection except its translation.
type Config struct {
	Parallels    [2]float64
	Rotate       [3]float64
	Center       [2]float64
	DesktopScale float64
	MobileScale  float64
	// Breakpoint is the viewport width below which the mobile layout applies.
	Breakpoint float64
}

// DefaultConfig frames Virginia.
func DefaultConfig() Config {
	return Config{
		Parallels:    [2]float64{37, 39.5},
		Rotate:       [3]float64{79.5, 0, 0},
		Center:       [2]float64{0, 37.9},
		DesktopScale: 6500,
		MobileScale:  5000,
		Breakpoint:   768,
	}
}

// Viewport is the drawing surface size in pixels.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Manager tracks the last viewport size and derives the projection for it.
// The viewport is the only state it holds; Compute is otherwise pure.
type Manager struct {
	cfg Config

	mu       sync.RWMutex
	viewport Viewport
	class    Class
	sized    bool
}

// NewManager creates a Manager with an initial viewport.
func NewManager(cfg Config, vp Viewport) *Manager {
	m := &Manager{cfg: cfg}
	m.Resize(vp)
	return m
}

// Config returns the manager's projection settings.
func (m *Manager) Config() Config { return m.cfg }

// ClassOf returns the viewport class for a width.
func (m *Manager) ClassOf(width float64) Class {
	if width < m.cfg.Breakpoint {
		return Mobile
	}
	return Desktop
}

// Resize records a new viewport and reports whether it crossed the
// mobile/desktop breakpoint (the first call always does).
func (m *Manager) Resize(vp Viewport) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	class := m.ClassOf(vp.Width)
	crossed := !m.sized || class != m.class
	m.viewport, m.class, m.sized = vp, class, true
	return crossed
}

// Viewport returns the last recorded viewport.
func (m *Manager) Viewport() Viewport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.viewport
}

// Class returns the class of the last recorded viewport.
func (m *Manager) Class() Class {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.class
}

// Base returns the untranslated projection for a class.
func (m *Manager) Base(class Class) *Conic {
	scale := m.cfg.DesktopScale
	if class == Mobile {
		scale = m.cfg.MobileScale
	}
	return NewConic(m.cfg.Parallels, m.cfg.Rotate, m.cfg.Center, scale)
}

// Compute returns the projection for the current viewport.
//
// Desktop ignores the selection and centers the projection center in the
// viewport. Mobile centers the bounding box of selected, or of fallback when
// nothing is selected, measured with the untranslated projection. When neither
// geometry is available mobile centers like desktop.
func (m *Manager) Compute(selected, fallback *geom.MultiPolygon) *Conic {
	m.mu.RLock()
	vp, class := m.viewport, m.class
	m.mu.RUnlock()

	base := m.Base(class)
	half := Point{X: vp.Width / 2, Y: vp.Height / 2}

	if class == Desktop {
		return base.WithTranslate(half.X, half.Y)
	}

	target := selected
	if target == nil {
		target = fallback
	}
	if target == nil {
		return base.WithTranslate(half.X, half.Y)
	}
	box := base.Bounds(target)
	if box.Empty() {
		return base.WithTranslate(half.X, half.Y)
	}
	c := box.Center()
	return base.WithTranslate(half.X-c.X, half.Y-c.Y)
}
