package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	silerrors "hooliganhorde/core/errors"
	"hooliganhorde/services/silod/journal"
	"hooliganhorde/services/silod/middleware"
	"hooliganhorde/services/silod/service"
	"hooliganhorde/services/silod/stream"
)

// Config captures the dependencies required to construct the server.
type Config struct {
	ListenAddress string
	Service       *service.Service
	Auth          *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Stream        *stream.Hub
	Logger        *slog.Logger
}

// Server hosts the silod HTTP API.
type Server struct {
	addr    string
	svc     *service.Service
	auth    *middleware.Authenticator
	limiter *middleware.RateLimiter
	hub     *stream.Hub
	logger  *slog.Logger
	router  http.Handler
}

// New constructs the router.
func New(cfg Config) (*Server, error) {
	if cfg.Service == nil {
		return nil, fmt.Errorf("service required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Auth == nil {
		cfg.Auth = middleware.NewAuthenticator(middleware.AuthConfig{}, cfg.Logger)
	}
	srv := &Server{
		addr:    cfg.ListenAddress,
		svc:     cfg.Service,
		auth:    cfg.Auth,
		limiter: cfg.RateLimiter,
		hub:     cfg.Stream,
		logger:  cfg.Logger,
	}
	srv.router = srv.buildRouter()
	return srv, nil
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(api chi.Router) {
		if s.limiter != nil {
			api.Use(s.limiter.Middleware)
		}
		admin := s.auth.Middleware(middleware.ScopeAdmin)

		api.Get("/gameday", s.handleGameday)
		api.With(admin).Post("/gameday/advance", s.handleAdvance)
		api.With(admin).Post("/events", s.handleEvent)
		if s.hub != nil {
			api.Get("/stream", s.handleStream)
		}

		api.Route("/silo/{account}/{token}", func(ledger chi.Router) {
			ledger.Get("/", s.handleBalance)
			ledger.With(admin).Post("/deposits", s.handleDeposit)
			ledger.Post("/plans", s.handlePlan)
			ledger.With(admin).Post("/convert", s.handleConvert)
		})

		api.Route("/plans/{id}", func(plan chi.Router) {
			plan.Get("/", s.handleGetPlan)
			plan.With(admin).Post("/apply", s.handleApply)
			plan.Get("/export", s.handleExport)
		})
	})

	return otelhttp.NewHandler(r, "silod")
}

// Run starts the HTTP server and blocks until context cancellation.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.logger.Info("http server listening", slog.String("addr", s.addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "gameday": s.svc.Gameday()})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// statusFor maps silo errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, silerrors.ErrInvalidAmount), errors.Is(err, silerrors.ErrInvalidEpoch),
		errors.Is(err, errBadRequest), errors.Is(err, service.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, silerrors.ErrCrateNotFound), errors.Is(err, silerrors.ErrUnknownToken), errors.Is(err, journal.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, silerrors.ErrInsufficientLotBalance), errors.Is(err, silerrors.ErrStalePlan):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("request_id", chimw.GetReqID(r.Context())),
			slog.Any("error", err))
		message = http.StatusText(status)
	}
	writeError(w, status, message)
}
