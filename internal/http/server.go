package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"studyhub/internal/apperr"
	"studyhub/internal/auth"
	"studyhub/internal/config"
	"studyhub/internal/idempotency"
	"studyhub/internal/model"
	"studyhub/internal/ratelimit"
	"studyhub/internal/repository"
)

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 1 << 20

type Deps struct {
	Config      config.Config
	Log         *logrus.Entry
	Repos       *repository.Repositories
	Codec       *auth.Codec
	Limiter     ratelimit.Limiter
	Idempotency idempotency.Store
	// Registry receives the HTTP metrics; a private one is created when nil.
	Registry *prometheus.Registry
}

type Server struct {
	cfg         config.Config
	log         *logrus.Entry
	repos       *repository.Repositories
	codec       *auth.Codec
	gate        *auth.Gate
	limiter     ratelimit.Limiter
	idempotency idempotency.Store
	registry    *prometheus.Registry
	metrics     *metrics
}

func NewServer(deps Deps) *Server {
	registry := deps.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	limiter := deps.Limiter
	if limiter == nil {
		limiter = ratelimit.NewMemoryLimiter(deps.Config.AuthRateLimitPerMin, time.Minute)
	}
	store := deps.Idempotency
	if store == nil {
		store = idempotency.NewMemoryStore(deps.Config.IdempotencyTTL, deps.Config.IdempotencyPendingTTL)
	}
	return &Server{
		cfg:         deps.Config,
		log:         deps.Log,
		repos:       deps.Repos,
		codec:       deps.Codec,
		gate:        auth.NewGate(deps.Codec, deps.Repos.Users),
		limiter:     limiter,
		idempotency: store,
		registry:    registry,
		metrics:     newMetrics(registry),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.instrument)
	r.Use(middleware.Recoverer)
	if len(s.cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "Idempotency-Key"},
			ExposedHeaders: []string{"Retry-After", "X-Request-Id"},
			MaxAge:         300,
		}))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.fail(w, r, apperr.New(apperr.NotFound, "route_not_found", "not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.fail(w, r, apperr.New(apperr.NotFound, "route_not_found", "not found"))
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		if s.cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.cfg.RequestTimeout))
		}

		r.Get("/courses", s.handleListCourses)

		r.Group(func(r chi.Router) {
			r.Use(s.rateLimit)
			r.Post("/auth/register", s.handleRegister)
			r.Post("/auth/login", s.handleLogin)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleMe)
			r.Put("/auth/password", s.handleChangePassword)

			r.Get("/notes", s.handleListNotes)
			r.With(s.idempotent).Post("/notes", s.handleCreateNote)
			r.Get("/notes/{noteId}", s.handleGetNote)
			r.Put("/notes/{noteId}", s.handleUpdateNote)
			r.Delete("/notes/{noteId}", s.handleDeleteNote)

			r.Get("/doubts", s.handleListDoubts)
			r.With(s.idempotent).Post("/doubts", s.handleCreateDoubt)
			r.Get("/doubts/{doubtId}", s.handleGetDoubt)
			r.Put("/doubts/{doubtId}", s.handleUpdateDoubt)
			r.Delete("/doubts/{doubtId}", s.handleDeleteDoubt)
			r.With(s.idempotent).Post("/doubts/{doubtId}/answers", s.handleCreateAnswer)
			r.Delete("/doubts/{doubtId}/answers/{answerId}", s.handleDeleteAnswer)
			r.Post("/doubts/{doubtId}/answers/{answerId}/accept", s.handleAcceptAnswer)

			r.Get("/timetable", s.handleGetTimetable)
			r.With(s.idempotent).Post("/timetable", s.handleSaveTimetable)

			r.Route("/admin", func(r chi.Router) {
				r.Use(s.requireRole(model.RoleAdmin))
				r.Get("/stats", s.handleAdminStats)
				r.Get("/users", s.handleAdminListUsers)
				r.Put("/users/{userId}/role", s.handleAdminSetRole)
				r.Get("/notes", s.handleAdminListNotes)
			})
		})
	})

	return r
}
