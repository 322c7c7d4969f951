package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"playbox/internal/log"
	"playbox/internal/metrics"
	"playbox/internal/middleware/ratelimit"
	"playbox/internal/middleware/security"
	"playbox/internal/middleware/trace"
	"playbox/internal/ports"
	"playbox/internal/services"
	"playbox/internal/session"
)

const readyTimeout = 3 * time.Second

// Deps are the collaborators the API serves. Journal and Backend may be nil.
type Deps struct {
	Sessions  *session.Manager
	POS       *services.POSService
	Dashboard *services.DashboardService
	Journal   *services.JournalService
	Backend   ports.Pinger
	Metrics   *metrics.Collector
	Logger    *log.Logger
	RateLimit ratelimit.Config
}

type Server struct {
	http.Server

	sessions  *session.Manager
	pos       *services.POSService
	dashboard *services.DashboardService
	journal   *services.JournalService
	backend   ports.Pinger
	metrics   *metrics.Collector
	logger    *log.Logger

	validator *requestValidator
	limiter   *ratelimit.Limiter
	detector  *security.Detector

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	if deps.RateLimit.RequestsPerMinute <= 0 {
		deps.RateLimit = ratelimit.DefaultConfig()
	}

	s := &Server{
		sessions:  deps.Sessions,
		pos:       deps.POS,
		dashboard: deps.Dashboard,
		journal:   deps.Journal,
		backend:   deps.Backend,
		metrics:   deps.Metrics,
		logger:    logger.WithComponent(log.ComponentHTTP),
		validator: newRequestValidator(),
		limiter:   ratelimit.NewLimiter(deps.RateLimit),
		detector:  security.NewDetector(logger),
	}
	s.metrics.ObserveRateLimit(s.limiter.Hits, s.limiter.ActiveClients)
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	tracer := trace.NewMiddleware(s.detector.ExtractClientIP, s.logger, s.metrics)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	r.Use(tracer.Middleware, headers.Middleware, s.detector.Middleware,
		s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
				log.FieldClientIP, s.detector.ExtractClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			writeMessage(w, http.StatusTooManyRequests, "Too many requests. Please wait a minute.")
		}))

	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	r.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	auth := r.PathPrefix("/auth").Subrouter()
	auth.Use(s.requireSession)
	auth.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	auth.HandleFunc("/me", s.handleMe).Methods(http.MethodGet)

	pos := r.PathPrefix("/pos").Subrouter()
	pos.Use(s.requireSession)
	pos.HandleFunc("/scan", s.handleScan).Methods(http.MethodPost)
	pos.HandleFunc("/users", s.handleCreateUser).Methods(http.MethodPost)
	pos.HandleFunc("/add", s.handleAddBalance).Methods(http.MethodPost)
	pos.HandleFunc("/deduct", s.handleDeductBalance).Methods(http.MethodPost)
	pos.HandleFunc("/search", s.handleFindByPhone).Methods(http.MethodGet)
	pos.HandleFunc("/recent", s.handleRecent).Methods(http.MethodGet)

	dash := r.PathPrefix("/dashboard").Subrouter()
	dash.Use(s.requireSession, requireOwner)
	dash.HandleFunc("/transactions", s.handleTransactions).Methods(http.MethodGet)
	dash.HandleFunc("/filter", s.handleFilter).Methods(http.MethodPost)
	dash.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet)
	dash.HandleFunc("/overview", s.handleOverview).Methods(http.MethodGet)
	dash.HandleFunc("/export.csv", s.handleExportTransactions).Methods(http.MethodGet)

	users := r.PathPrefix("/users").Subrouter()
	users.Use(s.requireSession, requireOwner)
	users.HandleFunc("", s.handleUsers).Methods(http.MethodGet)
	users.HandleFunc("/{id:[0-9]+}", s.handleUserDetails).Methods(http.MethodGet)
	users.HandleFunc("/{id:[0-9]+}/export.csv", s.handleExportUser).Methods(http.MethodGet)

	journal := r.PathPrefix("/journal").Subrouter()
	journal.Use(s.requireSession, requireOwner)
	journal.HandleFunc("", s.handleJournal).Methods(http.MethodGet)

	return r
}

// Shutdown stops the limiter cleanup and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports whether the PlayBox backend answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.backend == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	if err := s.backend.Ping(ctx); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Backend not ready", log.FieldError, err.Error())
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
