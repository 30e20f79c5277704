// Package server exposes the choropleth over HTTP: stateless scenes and
// legends for any indicator, and interactive sessions that drive a mounted
// map through pointer events.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/costmap/internal/choropleth"
	"github.com/sells-group/costmap/internal/config"
	"github.com/sells-group/costmap/internal/projection"
)

// Config holds server configuration.
type Config struct {
	Port            int
	AllowAllOrigins bool
	AllowedOrigins  []string
	RateLimit       float64 // requests/s per client; 0 disables
	RateBurst       int
	RequestTimeout  time.Duration
	CacheEntries    int
	CacheTTL        time.Duration
	SessionTTL      time.Duration
	MaxSessions     int
	// Viewport is used when a request names no size.
	Viewport projection.Viewport
}

// ConfigFrom maps the server section of the application config.
func ConfigFrom(c config.ServerConfig, m config.MapConfig) Config {
	return Config{
		Port:            c.Port,
		AllowAllOrigins: c.AllowAllOrigins,
		AllowedOrigins:  c.AllowedOrigins,
		RateLimit:       c.RateLimit,
		RateBurst:       c.RateBurst,
		RequestTimeout:  time.Duration(c.RequestTimeout) * time.Second,
		CacheEntries:    c.CacheEntries,
		CacheTTL:        time.Duration(c.CacheTTLSecs) * time.Second,
		SessionTTL:      time.Duration(c.SessionTTLSecs) * time.Second,
		MaxSessions:     c.MaxSessions,
		Viewport:        projection.Viewport{Width: m.Width, Height: m.Height},
	}
}

// Server is the costmap HTTP API.
type Server struct {
	cfg        Config
	engine     *choropleth.Engine
	cache      *SceneCache
	sessions   *Sessions
	router     chi.Router
	httpServer *http.Server
	log        *zap.Logger
}

// New creates a server over a loaded engine. opts configures the maps of
// interactive sessions.
func New(cfg Config, engine *choropleth.Engine, opts choropleth.Options) *Server {
	if cfg.Viewport.Width <= 0 || cfg.Viewport.Height <= 0 {
		cfg.Viewport = projection.Viewport{Width: 960, Height: 600}
	}
	s := &Server{
		cfg:      cfg,
		engine:   engine,
		cache:    NewSceneCache(cfg.CacheEntries, cfg.CacheTTL),
		sessions: NewSessions(opts, engine.Dataset(), engine.Features(), cfg.SessionTTL, cfg.MaxSessions),
		log:      zap.L().With(zap.String("component", "server")),
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if s.cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	}

	corsOpts := cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}
	if len(s.cfg.AllowedOrigins) > 0 {
		corsOpts.AllowedOrigins = s.cfg.AllowedOrigins
	}
	if s.cfg.AllowAllOrigins {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		if s.cfg.RateLimit > 0 {
			r.Use(newClientLimiter(s.cfg.RateLimit, s.cfg.RateBurst).middleware)
		}
		r.Get("/regions", s.handleRegions)
		r.Get("/bindings", s.handleBindings)
		r.Get("/legend", s.handleLegend)
		r.Get("/scene", s.handleScene)
		r.Get("/cache", s.handleCacheStats)

		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/scene", s.handleSessionScene)
			r.Post("/events", s.handleSessionEvent)
			r.Put("/sector", s.handleSessionSector)
			r.Delete("/", s.handleDeleteSession)
		})
	})

	return r
}

// requestLogger logs one line per request on the zap logger.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("server: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// Router returns the chi router.
func (s *Server) Router() chi.Router { return s.router }

// Sessions returns the interactive session store.
func (s *Server) Sessions() *Sessions { return s.sessions }

// Start listens on the configured port and sweeps idle sessions until
// Shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if s.cfg.SessionTTL > 0 {
		go s.sweep(ctx)
	}

	s.log.Info("server: listening", zap.String("addr", addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

func (s *Server) sweep(ctx context.Context) {
	t := time.NewTicker(s.cfg.SessionTTL / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.sessions.Sweep(); n > 0 {
				s.log.Debug("server: expired sessions", zap.Int("count", n))
			}
		}
	}
}

// Shutdown stops the listener and unmounts every session.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.sessions.Close()
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
