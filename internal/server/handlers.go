package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/costmap/internal/choropleth"
	"github.com/sells-group/costmap/internal/classify"
	"github.com/sells-group/costmap/internal/geoid"
	"github.com/sells-group/costmap/internal/metric"
	"github.com/sells-group/costmap/internal/projection"
	"github.com/sells-group/costmap/internal/region"
	"github.com/sells-group/costmap/internal/render"
)

const (
	contentJSON = "application/json"
	contentSVG  = "image/svg+xml"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// regionView is one dataset record as listed by /api/regions.
type regionView struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Key     string `json:"key"`
	County  string `json:"county,omitempty"`
	Bound   bool   `json:"bound"`
	Feature *int   `json:"feature,omitempty"`
}

func (s *Server) handleRegions(w http.ResponseWriter, _ *http.Request) {
	ds := s.engine.Dataset()
	out := make([]regionView, 0, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		rec := ds.At(i)
		v := regionView{ID: rec.ID, Name: rec.Name, Key: rec.Key(), County: geoid.County(rec.Key())}
		if b, ok := s.engine.Bindings().ForRecord(rec.ID); ok {
			idx := b.Feature.Index
			v.Bound, v.Feature = true, &idx
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBindings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Bindings().Report())
}

// legendView is the legend of one indicator selection.
type legendView struct {
	Indicator string                  `json:"indicator"`
	Mode      string                  `json:"mode"`
	Buckets   []classify.LegendBucket `json:"buckets"`
	Neutral   string                  `json:"neutral"`
	Legend    *render.Legend          `json:"legend,omitempty"`
}

func (s *Server) handleLegend(w http.ResponseWriter, r *http.Request) {
	sel, err := parseSelection(r.URL.Query(), metric.Selection{Indicator: metric.Combined})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	scale := s.engine.Scale(sel)
	scene := s.engine.Scene(choropleth.Frame{Viewport: s.cfg.Viewport, Selection: sel})
	writeJSON(w, http.StatusOK, legendView{
		Indicator: sel.Indicator.String(),
		Mode:      sel.Mode.String(),
		Buckets:   scale.Legend(),
		Neutral:   scale.Neutral(),
		Legend:    scene.Legend,
	})
}

// handleScene draws a stateless frame. Query: indicator, mode, selected
// (record id), hovered (record id), width, height, format (json|svg).
func (s *Server) handleScene(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := cacheKey(q)
	if data, ct, ok := s.cache.Get(key); ok {
		w.Header().Set("Content-Type", ct)
		w.Header().Set("X-Cache", "hit")
		_, _ = w.Write(data)
		return
	}

	frame, err := s.parseFrame(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	scene := s.engine.Scene(frame)

	var buf bytes.Buffer
	ct := contentJSON
	switch format := q.Get("format"); format {
	case "", "json":
		err = json.NewEncoder(&buf).Encode(scene)
	case "svg":
		ct = contentSVG
		err = render.WriteSVG(&buf, scene)
	default:
		writeError(w, http.StatusBadRequest, "unknown format "+strconv.Quote(format))
		return
	}
	if err != nil {
		s.log.Error("server: encode scene failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "encode scene failed")
		return
	}

	s.cache.Put(key, ct, buf.Bytes())
	w.Header().Set("Content-Type", ct)
	w.Header().Set("X-Cache", "miss")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cache.Stats())
}

// cacheKey is the query with keys sorted so equivalent requests share an
// entry.
func cacheKey(q url.Values) string {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strings.Join(q[k], ","))
		b.WriteByte('&')
	}
	return b.String()
}

func (s *Server) parseFrame(q url.Values) (choropleth.Frame, error) {
	sel, err := parseSelection(q, metric.Selection{Indicator: metric.Combined})
	if err != nil {
		return choropleth.Frame{}, err
	}
	vp, err := parseViewport(q, s.cfg.Viewport)
	if err != nil {
		return choropleth.Frame{}, err
	}
	f := choropleth.Frame{Viewport: vp, Selection: sel}
	if f.Selected, err = s.record(q.Get("selected")); err != nil {
		return choropleth.Frame{}, err
	}
	if f.Hovered, err = s.record(q.Get("hovered")); err != nil {
		return choropleth.Frame{}, err
	}
	return f, nil
}

func (s *Server) record(id string) (*region.Record, error) {
	if id == "" {
		return nil, nil
	}
	rec, ok := s.engine.Dataset().ByID(id)
	if !ok {
		return nil, eris.Errorf("server: unknown region %q", id)
	}
	return rec, nil
}

// parseSelection reads indicator and mode, keeping def for absent values.
func parseSelection(q url.Values, def metric.Selection) (metric.Selection, error) {
	sel := def
	if v := q.Get("indicator"); v != "" {
		ind, err := metric.ParseIndicator(v)
		if err != nil {
			return sel, err
		}
		sel.Indicator = ind
	}
	if v := q.Get("mode"); v != "" {
		mode, err := metric.ParseMode(v)
		if err != nil {
			return sel, err
		}
		sel.Mode = mode
	}
	return sel, nil
}

func parseViewport(q url.Values, def projection.Viewport) (projection.Viewport, error) {
	vp := def
	for name, dst := range map[string]*float64{"width": &vp.Width, "height": &vp.Height} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 || f > 10000 {
			return vp, eris.Errorf("server: invalid %s %q", name, v)
		}
		*dst = f
	}
	return vp, nil
}

// sessionRequest creates a session.
type sessionRequest struct {
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	Indicator string  `json:"indicator"`
	Mode      string  `json:"mode"`
}

type sessionView struct {
	ID    string        `json:"id"`
	Scene *render.Scene `json:"scene"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	sel, err := parseSelection(url.Values{"indicator": {req.Indicator}, "mode": {req.Mode}}, metric.Selection{Indicator: metric.Combined})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	vp := s.cfg.Viewport
	if req.Width > 0 && req.Height > 0 {
		vp = projection.Viewport{Width: req.Width, Height: req.Height}
	}

	sess, err := s.sessions.Create(r.Context(), vp, sel)
	if err != nil {
		if eris.Is(err, ErrSessionLimit) {
			writeError(w, http.StatusServiceUnavailable, "too many sessions")
			return
		}
		s.log.Error("server: create session failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "create session failed")
		return
	}
	writeJSON(w, http.StatusCreated, sessionView{ID: sess.ID, Scene: sess.Map.Scene()})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sess, ok := s.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
	}
	return sess, ok
}

func (s *Server) handleSessionScene(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if r.URL.Query().Get("format") == "svg" {
		w.Header().Set("Content-Type", contentSVG)
		if err := render.WriteSVG(w, sess.Map.Scene()); err != nil {
			s.log.Error("server: write svg failed", zap.Error(err))
		}
		return
	}
	writeJSON(w, http.StatusOK, sess.Map.Scene())
}

// Event is one pointer or viewport event of an interactive session.
//
// Types: enter, leave, click (by feature, or at x/y), hover (at x/y),
// background, drag (dx/dy), reset_pan, resize (width/height).
type Event struct {
	Type    string  `json:"type"`
	Feature *int    `json:"feature,omitempty"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	DX      float64 `json:"dx"`
	DY      float64 `json:"dy"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

// apply routes an event to the session's map.
func (ev Event) apply(sess *Session) error {
	m := sess.Map
	pt := projection.Point{X: ev.X, Y: ev.Y}
	switch ev.Type {
	case "enter", "leave":
		if ev.Feature == nil {
			return eris.Errorf("server: %s needs a feature", ev.Type)
		}
		if ev.Type == "enter" {
			m.PointerEnter(*ev.Feature)
		} else {
			m.PointerLeave(*ev.Feature)
		}
	case "click":
		if ev.Feature != nil {
			m.ClickFeature(*ev.Feature)
		} else {
			m.Click(pt)
		}
	case "hover":
		m.Hover(pt)
	case "background":
		m.Machine().BackgroundClick()
	case "drag":
		return m.Drag(projection.Point{X: ev.DX, Y: ev.DY})
	case "reset_pan":
		m.ResetPan()
	case "resize":
		if ev.Width <= 0 || ev.Height <= 0 {
			return eris.New("server: resize needs a positive width and height")
		}
		sess.Window.Resize(projection.Viewport{Width: ev.Width, Height: ev.Height})
	default:
		return eris.Errorf("server: unknown event type %q", ev.Type)
	}
	return nil
}

func (s *Server) handleSessionEvent(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var ev Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := ev.apply(sess); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sess.Map.Scene())
}

func (s *Server) handleSessionSector(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Indicator string `json:"indicator"`
		Mode      string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sel, err := parseSelection(url.Values{"indicator": {req.Indicator}, "mode": {req.Mode}}, sess.Sector.Get())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess.Sector.Set(sel)
	writeJSON(w, http.StatusOK, sess.Map.Scene())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Delete(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
