package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sendrec/devicelab/internal/auth"
	"github.com/sendrec/devicelab/internal/diagnostics"
	"github.com/sendrec/devicelab/internal/docs"
	"github.com/sendrec/devicelab/internal/httputil"
	"github.com/sendrec/devicelab/internal/ratelimit"
	"github.com/sendrec/devicelab/internal/validate"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Pinger          Pinger
	Diagnostics     *diagnostics.Handler
	BaseURL         string
	StorageEndpoint string
	MediaOrigin     string
	EnableDocs      bool
	// StatsAPIKey, when set, is required to read /api/stats.
	StatsAPIKey string
}

type Server struct {
	router      chi.Router
	pinger      Pinger
	diagnostics *diagnostics.Handler
	enableDocs  bool
	statsAPIKey string
	limiters    []*ratelimit.Limiter
}

func New(cfg Config) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(slogMiddleware)
	r.Use(securityHeaders(SecurityConfig{
		BaseURL:         cfg.BaseURL,
		StorageEndpoint: cfg.StorageEndpoint,
		MediaOrigin:     cfg.MediaOrigin,
	}))

	s := &Server{
		router:      r,
		pinger:      cfg.Pinger,
		diagnostics: cfg.Diagnostics,
		enableDocs:  cfg.EnableDocs,
		statsAPIKey: cfg.StatsAPIKey,
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops the background sweeps of the server's rate limiters.
func (s *Server) Close() {
	for _, l := range s.limiters {
		l.Stop()
	}
}

func (s *Server) newLimiter(requestsPerSecond float64, burst int) *ratelimit.Limiter {
	l := ratelimit.NewLimiter(requestsPerSecond, burst)
	s.limiters = append(s.limiters, l)
	return l
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/limits", s.handleLimits)

	if s.enableDocs {
		s.router.Get("/api/docs", docs.HandleDocs)
		s.router.Get("/api/docs/openapi.yaml", docs.HandleSpec)
	}

	if s.diagnostics == nil {
		return
	}
	h := s.diagnostics

	classifyLimiter := s.newLimiter(5, 20)
	s.router.Route("/api/classify", func(r chi.Router) {
		r.Use(classifyLimiter.Middleware)
		r.Get("/", h.ClassifyHeaders)
		r.Post("/", h.ClassifyProbe)
	})

	sessionLimiter := s.newLimiter(10, 40)
	s.router.Route("/api/sessions", func(r chi.Router) {
		r.Use(sessionLimiter.Middleware)
		r.Post("/", h.CreateSession)
		r.Delete("/{id}", h.EndSession)
		r.Post("/{id}/snapshots", h.ReportSnapshot)
		r.Get("/{id}/events", h.Events)
		r.Post("/{id}/report", h.ExportReport)
	})

	statsLimiter := s.newLimiter(1, 5)
	s.router.Group(func(r chi.Router) {
		r.Use(statsLimiter.Middleware)
		if s.statsAPIKey != "" {
			r.Use(auth.RequireAPIKey(s.statsAPIKey))
		}
		r.Get("/api/stats", h.Stats)
	})

	s.router.Get("/diagnostics", h.DiagnosticsPage)
	s.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/diagnostics", http.StatusFound)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  "database unreachable",
			})
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLimits(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, validate.FieldLimits())
}
