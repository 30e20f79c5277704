package choropleth

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/costmap/internal/boundary"
	"github.com/sells-group/costmap/internal/interaction"
	"github.com/sells-group/costmap/internal/match"
	"github.com/sells-group/costmap/internal/metric"
	"github.com/sells-group/costmap/internal/projection"
	"github.com/sells-group/costmap/internal/region"
	"github.com/sells-group/costmap/internal/render"
)

// Loader produces the boundary features once per mount.
type Loader interface {
	Load(ctx context.Context) ([]*boundary.Feature, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) ([]*boundary.Feature, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context) ([]*boundary.Feature, error) { return f(ctx) }

// SelectionStore is the page-owned selection the map reads and requests
// changes of.
type SelectionStore interface {
	Selected() *region.Record
	Select(rec *region.Record)
	Reset()
	Subscribe(fn func(*region.Record)) func()
}

// SectorStore is the page-owned indicator selection.
type SectorStore interface {
	Get() metric.Selection
	Subscribe(fn func(metric.Selection)) func()
}

// Window is the host viewport.
type Window interface {
	Size() projection.Viewport
	OnResize(fn func(projection.Viewport)) func()
}

// Surface receives every scene the map draws.
type Surface interface {
	Draw(scene *render.Scene)
}

// SurfaceFunc adapts a function to Surface.
type SurfaceFunc func(scene *render.Scene)

// Draw calls f.
func (f SurfaceFunc) Draw(scene *render.Scene) { f(scene) }

// Deps are the collaborators a Map is mounted into.
type Deps struct {
	Dataset   *region.Dataset
	Boundary  Loader
	Selection SelectionStore
	Sector    SectorStore
	Window    Window
	Surface   Surface
	// Clock overrides the hover debounce clock.
	Clock interaction.Clock
}

// Map is one mounted choropleth. Every public method is safe for
// concurrent use; Surface.Draw is called with the map locked and must not
// call back into the map.
type Map struct {
	opts Options
	deps Deps
	log  *zap.Logger

	machine *interaction.Machine

	mu      sync.Mutex
	mounted bool
	status  render.Status
	engine  *Engine
	manager *projection.Manager
	proj    *projection.Conic
	extent  projection.Rect
	last    *render.Scene
	cancel  context.CancelFunc
	unsubs  []func()
	loaded  chan struct{}
}

// New creates an unmounted map.
func New(opts Options, deps Deps) *Map {
	m := &Map{
		opts:   opts,
		deps:   deps,
		log:    zap.L().With(zap.String("component", "choropleth.map")),
		status: render.StatusLoading,
		loaded: make(chan struct{}),
	}
	m.machine = interaction.New(interaction.Config{
		Debounce: opts.HoverDebounce,
		Clock:    deps.Clock,
		OnChange: func(interaction.Snapshot) { m.Render() },
	}, deps.Selection, deps.Selection)
	return m
}

// Mount shows the loading placeholder, starts the boundary load and
// subscribes to the page. The load runs in the background; Loaded reports
// when it has finished (either way).
func (m *Map) Mount(ctx context.Context) error {
	if m.deps.Boundary == nil || m.deps.Selection == nil || m.deps.Sector == nil || m.deps.Window == nil {
		return eris.New("choropleth: boundary, selection, sector and window are required")
	}

	m.mu.Lock()
	if m.manager != nil {
		m.mu.Unlock()
		return eris.New("choropleth: a map mounts only once")
	}
	m.mounted = true
	m.manager = projection.NewManager(m.opts.Projection, m.deps.Window.Size())
	loadCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.unsubs = append(m.unsubs,
		m.deps.Window.OnResize(m.onResize),
		m.deps.Sector.Subscribe(func(metric.Selection) { m.Render() }),
		m.deps.Selection.Subscribe(m.onSelect),
	)
	m.mu.Unlock()

	m.Render()
	go m.load(loadCtx)
	return nil
}

func (m *Map) load(ctx context.Context) {
	defer close(m.loaded)

	features, err := m.deps.Boundary.Load(ctx)

	m.mu.Lock()
	if !m.mounted || ctx.Err() != nil {
		m.mu.Unlock()
		m.log.Debug("choropleth: boundary load finished after unmount, skipping draw")
		return
	}
	if err != nil {
		m.status = render.StatusFailed
		m.mu.Unlock()
		m.log.Error("choropleth: boundary load failed", zap.Error(err))
		m.Render()
		return
	}
	m.engine = NewEngine(m.deps.Dataset, features, m.opts)
	m.status = render.StatusReady
	report := m.engine.Bindings().Report()
	m.mu.Unlock()

	m.log.Info("choropleth: bound boundary to dataset",
		zap.Int("features", report.Features),
		zap.Int("by_key", report.ByKey),
		zap.Int("by_name", report.ByName),
		zap.Int("unmatched_features", len(report.UnmatchedFeatures)),
		zap.Int("unmatched_records", len(report.UnmatchedRecords)),
	)
	m.Render()
}

// Loaded is closed once the boundary load has finished.
func (m *Map) Loaded() <-chan struct{} { return m.loaded }

// Unmount cancels an in-flight load, stops the hover timer and removes every
// listener. A load that completes afterwards is discarded.
func (m *Map) Unmount() {
	m.mu.Lock()
	if !m.mounted {
		m.mu.Unlock()
		return
	}
	m.mounted = false
	cancel, unsubs := m.cancel, m.unsubs
	m.cancel, m.unsubs = nil, nil
	m.mu.Unlock()

	cancel()
	m.machine.Close()
	for _, u := range unsubs {
		u()
	}
}

// onResize re-projects for the new viewport. Crossing the breakpoint drops
// the pan; a resize within the mobile class re-clamps it to the new extent.
func (m *Map) onResize(vp projection.Viewport) {
	m.mu.Lock()
	crossed := m.manager != nil && m.manager.Resize(vp)
	m.mu.Unlock()
	if crossed {
		m.machine.ResetPan()
	}
	m.Render()
	if crossed {
		return
	}

	m.mu.Lock()
	mobile := m.manager != nil && m.manager.Class() == projection.Mobile && m.proj != nil
	extent := m.extent
	m.mu.Unlock()
	if mobile {
		m.machine.Drag(projection.Point{}, vp, extent)
	}
}

func (m *Map) onSelect(*region.Record) {
	m.machine.ResetPan()
	m.Render()
}

// Status returns the load state.
func (m *Map) Status() render.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Scene returns the last drawn scene.
func (m *Map) Scene() *render.Scene {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Machine exposes the interaction state machine.
func (m *Map) Machine() *interaction.Machine { return m.machine }

// Render recomputes projection and scene from the current inputs in one
// pass and hands it to the surface. A panic while drawing is logged and the
// previous scene is kept.
func (m *Map) Render() *render.Scene {
	snap := m.machine.Snapshot()

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.mounted {
		return m.last
	}

	scene, err := m.renderLocked(snap)
	if err != nil {
		m.log.Error("choropleth: render failed, keeping previous scene", zap.Error(err))
		return m.last
	}
	m.last = scene
	if m.deps.Surface != nil {
		m.deps.Surface.Draw(scene)
	}
	return scene
}

func (m *Map) renderLocked(snap interaction.Snapshot) (scene *render.Scene, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("choropleth: render panic: %v", r)
		}
	}()

	frame := Frame{
		Status:    m.status,
		Viewport:  m.manager.Viewport(),
		Selection: m.deps.Sector.Get(),
		Selected:  m.deps.Selection.Selected(),
		Hovered:   snap.HoveredRecord(),
		Pan:       snap.Pan,
	}
	if m.engine == nil {
		if frame.Status == render.StatusReady {
			frame.Status = render.StatusLoading
		}
		return render.NewBuilder(m.opts.Render).Build(render.Input{
			Status:    frame.Status,
			Viewport:  frame.Viewport,
			Selection: frame.Selection,
			Selected:  frame.Selected,
		}), nil
	}

	m.proj = m.engine.project(m.manager, frame.Selected)
	m.extent = m.engine.Extent(m.proj)
	return m.engine.draw(frame, m.proj), nil
}

// binding returns the binding of a feature index, or false before load.
func (m *Map) binding(feature int) (match.Binding, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.engine == nil || feature < 0 || feature >= m.engine.Bindings().Len() {
		return match.Binding{}, false
	}
	return m.engine.Bindings().At(feature), true
}

// PointerEnter routes a pointer-enter on a feature's shape.
func (m *Map) PointerEnter(feature int) {
	if b, ok := m.binding(feature); ok {
		m.machine.PointerEnter(b)
	}
}

// PointerLeave routes a pointer-leave from a feature's shape.
func (m *Map) PointerLeave(feature int) {
	if b, ok := m.binding(feature); ok {
		m.machine.PointerLeave(b)
	}
}

// ClickFeature routes a click on a feature's shape. It never falls through
// to the background handler.
func (m *Map) ClickFeature(feature int) {
	if b, ok := m.binding(feature); ok {
		m.machine.Click(b)
	}
}

// Click routes a click at a viewport point: a shape under the point selects
// its region, empty background requests the state-wide default.
func (m *Map) Click(pt projection.Point) {
	if idx, ok := m.hit(pt); ok {
		m.ClickFeature(idx)
		return
	}
	m.machine.BackgroundClick()
}

// Hover moves the pointer to a viewport point, generating the enter and
// leave events a browser would.
func (m *Map) Hover(pt projection.Point) {
	var target match.Binding
	idx, ok := m.hit(pt)
	if ok {
		target, ok = m.binding(idx)
	}
	snap := m.machine.Snapshot()
	if snap.State == interaction.Hovering && (!ok || snap.Hovered.Feature != target.Feature) {
		m.machine.PointerLeave(snap.Hovered)
	}
	if ok {
		m.machine.PointerEnter(target)
	}
}

func (m *Map) hit(pt projection.Point) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return 0, false
	}
	sh, ok := m.last.HitTest(pt)
	if !ok {
		return 0, false
	}
	return sh.Feature, true
}

// Drag pans the map on mobile viewports; desktop ignores drags.
func (m *Map) Drag(delta projection.Point) error {
	m.mu.Lock()
	if m.manager == nil || m.manager.Class() != projection.Mobile {
		m.mu.Unlock()
		return nil
	}
	if m.proj == nil {
		m.mu.Unlock()
		return eris.New("choropleth: nothing to pan before the boundary has loaded")
	}
	vp, extent := m.manager.Viewport(), m.extent
	m.mu.Unlock()

	m.machine.Drag(delta, vp, extent)
	return nil
}

// ResetPan drops the pan offset.
func (m *Map) ResetPan() {
	m.machine.ResetPan()
	m.Render()
}

// Engine returns the loaded engine, or nil before the boundary resolved.
func (m *Map) Engine() *Engine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engine
}
