package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/followwatch/internal/auth"
	"github.com/JakeFAU/followwatch/internal/mediacheck"
	"github.com/JakeFAU/followwatch/internal/metrics"
	"github.com/JakeFAU/followwatch/internal/tracker"
)

// Trackers is the tracker lifecycle used by the handlers.
type Trackers interface {
	Create(ctx context.Context, req tracker.CreateRequest) (tracker.Tracker, error)
	List(ctx context.Context, ownerID string) ([]tracker.Tracker, error)
	Remove(ctx context.Context, ownerID, id string) error
}

// Accounts issues and resolves sessions.
type Accounts interface {
	Signup(ctx context.Context, email, password string) (auth.Session, error)
	Login(ctx context.Context, email, password string) (auth.Session, error)
	Authenticate(ctx context.Context, token string) (tracker.User, error)
}

// MediaChecker runs media checks.
type MediaChecker interface {
	Check(ctx context.Context, handle string) (mediacheck.Result, error)
}

// Pinger reports readiness of a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config tunes the HTTP surface.
type Config struct {
	ClientOrigin   string
	RequestTimeout time.Duration
}

// Server wires HTTP handlers to the services.
type Server struct {
	router   chi.Router
	trackers Trackers
	accounts Accounts
	media    MediaChecker
	ready    Pinger
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes. media may be nil when
// no classifier is configured; the media check route then answers 503.
func NewServer(
	trackers Trackers,
	accounts Accounts,
	media MediaChecker,
	ready Pinger,
	cfg Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 2 * time.Minute
	}
	s := &Server{
		trackers: trackers,
		accounts: accounts,
		media:    media,
		ready:    ready,
		logger:   logger.Named("api"),
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metricsMiddleware)
	r.Use(corsMiddleware(cfg.ClientOrigin))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(timeoutMiddleware(cfg.RequestTimeout))
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", s.signup)
			r.Post("/login", s.login)
		})
		r.Route("/tracker", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Post("/add", s.addTracker)
			r.Get("/list", s.listTrackers)
			r.Delete("/remove/{id}", s.removeTracker)
		})
		r.Get("/mediacheck/{handle}", s.mediaCheck)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready.Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "tracker store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
