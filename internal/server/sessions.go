package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/costmap/internal/boundary"
	"github.com/sells-group/costmap/internal/choropleth"
	"github.com/sells-group/costmap/internal/metric"
	"github.com/sells-group/costmap/internal/page"
	"github.com/sells-group/costmap/internal/projection"
	"github.com/sells-group/costmap/internal/region"
)

// ErrSessionLimit is returned by Sessions.Create when every slot is taken by
// a live session.
var ErrSessionLimit = eris.New("server: session limit reached")

// Session is one interactive map a client drives through events. The page
// collaborators live server-side; the client only sees scenes.
type Session struct {
	ID        string
	Map       *choropleth.Map
	Selection *page.Selection
	Sector    *page.Sector
	Window    *page.Window

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Sessions owns the mounted maps of the interactive API.
type Sessions struct {
	opts     choropleth.Options
	ds       *region.Dataset
	features []*boundary.Feature
	ttl      time.Duration
	max      int

	mu       sync.Mutex
	sessions map[string]*Session
	pending  int // slots reserved by mounts in flight
	now      func() time.Time
}

// NewSessions creates a session store. Every session binds the same
// dataset and boundary features.
func NewSessions(opts choropleth.Options, ds *region.Dataset, features []*boundary.Feature, ttl time.Duration, maxSessions int) *Sessions {
	return &Sessions{
		opts:     opts,
		ds:       ds,
		features: features,
		ttl:      ttl,
		max:      maxSessions,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create mounts a new map for a viewport and waits for it to be ready.
func (s *Sessions) Create(ctx context.Context, vp projection.Viewport, sel metric.Selection) (*Session, error) {
	s.Sweep()

	if !s.reserve() {
		return nil, ErrSessionLimit
	}
	committed := false
	defer func() {
		if !committed {
			s.release()
		}
	}()

	sess := &Session{
		ID:        uuid.NewString(),
		Selection: page.NewSelection(nil),
		Sector:    page.NewSector(sel),
		Window:    page.NewWindow(vp),
		lastSeen:  s.now(),
	}
	features := s.features
	sess.Map = choropleth.New(s.opts, choropleth.Deps{
		Dataset: s.ds,
		Boundary: choropleth.LoaderFunc(func(context.Context) ([]*boundary.Feature, error) {
			return features, nil
		}),
		Selection: sess.Selection,
		Sector:    sess.Sector,
		Window:    sess.Window,
	})
	// The session outlives the request that created it.
	if err := sess.Map.Mount(context.WithoutCancel(ctx)); err != nil {
		return nil, eris.Wrap(err, "server: mount session map")
	}
	select {
	case <-sess.Map.Loaded():
	case <-ctx.Done():
		sess.Map.Unmount()
		return nil, eris.Wrap(ctx.Err(), "server: wait for session map")
	}

	s.mu.Lock()
	s.pending--
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	committed = true
	return sess, nil
}

// reserve claims a slot for a session being mounted.
func (s *Sessions) reserve() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.max > 0 && len(s.sessions)+s.pending >= s.max {
		return false
	}
	s.pending++
	return true
}

func (s *Sessions) release() {
	s.mu.Lock()
	s.pending--
	s.mu.Unlock()
}

// Get returns a live session and marks it used.
func (s *Sessions) Get(id string) (*Session, bool) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	now := s.now()
	if s.expired(sess, now) {
		s.Delete(id)
		return nil, false
	}
	sess.touch(now)
	return sess, true
}

// Delete unmounts and forgets a session.
func (s *Sessions) Delete(id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		sess.Map.Unmount()
	}
	return ok
}

// Sweep unmounts every session idle for longer than the TTL.
func (s *Sessions) Sweep() int {
	now := s.now()
	s.mu.Lock()
	var stale []*Session
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			stale = append(stale, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range stale {
		sess.Map.Unmount()
	}
	return len(stale)
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close unmounts every session.
func (s *Sessions) Close() {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()
	for _, sess := range all {
		sess.Map.Unmount()
	}
}

func (s *Sessions) expired(sess *Session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.idleSince()) > s.ttl
}
