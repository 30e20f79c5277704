// Package interaction implements the hover and selection state machine of the
// map: debounced hover exit, click routing and mobile panning.
package interaction

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/costmap/internal/match"
	"github.com/sells-group/costmap/internal/page"
	"github.com/sells-group/costmap/internal/projection"
	"github.com/sells-group/costmap/internal/region"
)

// State is the hover dimension of the machine. Selection is tracked
// separately by the page and is orthogonal to it.
type State int

const (
	// Idle means no region is hovered.
	Idle State = iota
	// Hovering means the pointer is over a bound region.
	Hovering
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Hovering:
		return "hovering"
	default:
		return "unknown"
	}
}

// DefaultDebounce is the hover-exit delay.
const DefaultDebounce = 40 * time.Millisecond

// Transition is one recorded hover state change.
type Transition struct {
	From   State  `json:"from"`
	To     State  `json:"to"`
	Region string `json:"region,omitempty"`
}

// Snapshot is the machine state a render pass reads.
type Snapshot struct {
	State   State
	Hovered match.Binding
	// Tooltip is set while hovering a region other than the selected one.
	Tooltip bool
	Pan     projection.Point
}

// HoveredRecord returns the hovered record, or nil when idle.
func (s Snapshot) HoveredRecord() *region.Record {
	if s.State != Hovering {
		return nil
	}
	return s.Hovered.Record
}

// Config controls a Machine.
type Config struct {
	// Debounce is how long a pointer-leave waits for a new pointer-enter
	// before returning to idle. Default: DefaultDebounce.
	Debounce time.Duration

	// Clock schedules the debounce. Default: the wall clock.
	Clock Clock

	// OnChange is called after every change of the snapshot.
	OnChange func(Snapshot)
}

// Machine owns hover state and pan offset. It reads the selection from the
// page and only ever requests changes of it.
type Machine struct {
	cfg       Config
	selection page.SelectionReader
	requests  page.SelectionRequester
	log       *zap.Logger

	mu          sync.Mutex
	state       State
	hovered     match.Binding
	pan         projection.Point
	timer       Timer
	gen         uint64
	closed      bool
	transitions []Transition
}

// New creates a Machine in the idle state.
func New(cfg Config, selection page.SelectionReader, requests page.SelectionRequester) *Machine {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	return &Machine{
		cfg:       cfg,
		selection: selection,
		requests:  requests,
		log:       zap.L().With(zap.String("component", "interaction.machine")),
	}
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() Snapshot {
	s := Snapshot{State: m.state, Pan: m.pan}
	if m.state == Hovering {
		s.Hovered = m.hovered
		s.Tooltip = !m.isSelected(m.hovered.Record)
	}
	return s
}

func (m *Machine) isSelected(rec *region.Record) bool {
	if m.selection == nil || rec == nil {
		return false
	}
	sel := m.selection.Selected()
	return sel != nil && sel.ID == rec.ID
}

// Transitions returns the recorded hover transitions.
func (m *Machine) Transitions() []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transition, len(m.transitions))
	copy(out, m.transitions)
	return out
}

// PointerEnter moves to hovering(b) and cancels a pending hover exit.
// Unbound features are ignored.
func (m *Machine) PointerEnter(b match.Binding) {
	if !b.Bound() {
		m.logUnmatched("pointer-enter", b)
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.cancelTimerLocked()
	if m.state == Hovering && m.hovered.Feature == b.Feature {
		m.mu.Unlock()
		return
	}
	m.setLocked(Hovering, b)
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.emit(snap)
}

// PointerLeave starts the hover-exit debounce. A PointerEnter before it
// fires keeps the machine hovering without passing through idle.
func (m *Machine) PointerLeave(b match.Binding) {
	if !b.Bound() {
		m.logUnmatched("pointer-leave", b)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.state != Hovering {
		return
	}
	m.cancelTimerLocked()
	gen := m.gen
	m.timer = m.cfg.Clock.AfterFunc(m.cfg.Debounce, func() { m.expire(gen) })
}

func (m *Machine) expire(gen uint64) {
	m.mu.Lock()
	if m.closed || gen != m.gen || m.state != Hovering {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.setLocked(Idle, match.Binding{})
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.emit(snap)
}

// Click requests selection of a bound region. It always consumes the event,
// so callers must not also route it as a background click.
func (m *Machine) Click(b match.Binding) {
	if !b.Bound() {
		m.logUnmatched("click", b)
		return
	}
	if m.isClosed() || m.requests == nil {
		return
	}
	m.requests.Select(b.Record)
}

// BackgroundClick requests a reset to the state-wide default.
func (m *Machine) BackgroundClick() {
	if m.isClosed() || m.requests == nil {
		return
	}
	m.requests.Reset()
}

// Drag pans by delta, clamped to the geometry extent. Scale never changes.
func (m *Machine) Drag(delta projection.Point, vp projection.Viewport, geometry projection.Rect) projection.Point {
	m.mu.Lock()
	if m.closed {
		pan := m.pan
		m.mu.Unlock()
		return pan
	}
	next := projection.Point{X: m.pan.X + delta.X, Y: m.pan.Y + delta.Y}
	next = projection.ClampPan(next, vp, geometry)
	changed := next != m.pan
	m.pan = next
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if changed {
		m.emit(snap)
	}
	return next
}

// ResetPan drops any pan offset, e.g. after the projection was recomputed.
func (m *Machine) ResetPan() {
	m.mu.Lock()
	m.pan = projection.Point{}
	m.mu.Unlock()
}

// Close stops the debounce timer. Later events are ignored and a timer that
// already fired does not update state.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelTimerLocked()
	m.closed = true
}

func (m *Machine) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Machine) setLocked(to State, b match.Binding) {
	t := Transition{From: m.state, To: to}
	if b.Record != nil {
		t.Region = b.Record.ID
	}
	m.transitions = append(m.transitions, t)
	m.state, m.hovered = to, b
	m.log.Debug("hover transition",
		zap.Stringer("from", t.From),
		zap.Stringer("to", t.To),
		zap.String("region", t.Region),
	)
}

func (m *Machine) cancelTimerLocked() {
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Machine) emit(s Snapshot) {
	if m.cfg.OnChange != nil {
		m.cfg.OnChange(s)
	}
}

func (m *Machine) logUnmatched(event string, b match.Binding) {
	fields := []zap.Field{zap.String("event", event)}
	if b.Feature != nil {
		fields = append(fields,
			zap.String("feature_id", b.Feature.RawID()),
			zap.String("feature_name", b.Feature.Name()),
		)
	}
	m.log.Debug("interaction: event on unmatched feature ignored", fields...)
}
