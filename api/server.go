// Package api provides the HTTP REST API server for roicase.
//
// It exposes endpoints for formula validation and evaluation, workbook
// checks, Monte Carlo simulation runs, Prometheus metrics and WebSocket
// progress streaming.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/seenimoa/roicase/internal/config"
	"github.com/seenimoa/roicase/internal/infra"
	"github.com/seenimoa/roicase/internal/metrics"
	"github.com/seenimoa/roicase/internal/simulation"
)

// Version is reported by /health; the CLI overrides it at link time.
var Version = "dev"

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	logger zerolog.Logger

	cfgMu sync.RWMutex
	cfg   *config.Config

	metrics *metrics.Collector
	plans   *infra.Cache[*simulation.Plan]
	limiter *infra.RateLimiter
	runs    *RunStore
	wsHub   *WSHub
	started time.Time
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, logger zerolog.Logger) *Server {
	s := &Server{
		logger:  logger,
		cfg:     cfg,
		metrics: metrics.NewCollector(),
		plans:   infra.NewCache[*simulation.Plan](time.Duration(cfg.API.PlanCacheTTL) * time.Second),
		limiter: infra.NewRateLimiter(cfg.API.RateLimit, cfg.API.RateBurst),
		runs:    NewRunStore(cfg.API.RunHistorySize),
		wsHub:   NewWSHub(),
		started: time.Now(),
	}
	s.router = s.buildRouter()
	return s
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Hub returns the WebSocket hub. Run must be started before clients connect.
func (s *Server) Hub() *WSHub {
	return s.wsHub
}

// ListenAndServe starts the HTTP server and shuts it down gracefully on
// SIGINT or SIGTERM.
func (s *Server) ListenAndServe(addr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Serve(ctx, addr)
}

// Serve runs the HTTP server until ctx is done.
func (s *Server) Serve(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	hubCtx, cancelHub := context.WithCancel(ctx)
	defer cancelHub()
	go s.wsHub.Run(hubCtx)
	go s.plans.RunJanitor(hubCtx, time.Minute)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("API server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.requireToken)

		r.Get("/health", s.handleHealth)

		// WebSocket runs are long lived and carry their own deadlines.
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(120 * time.Second))

			// Formula engine
			r.Get("/functions", s.handleFunctions)
			r.Post("/validate", s.handleValidate)
			r.Post("/evaluate", s.handleEvaluate)

			// Workbooks and runs
			r.Post("/validate/workbook", s.handleValidateWorkbook)
			r.Post("/simulate", s.handleSimulate)
			r.Get("/runs", s.handleListRuns)
			r.Get("/runs/{id}", s.handleGetRun)

			// Configuration
			r.Get("/config", s.handleGetConfig)
			r.Put("/config", s.handleUpdateConfig)
			r.Get("/config/secrets", s.handleGetSecrets)
		})
	})

	return r
}

// requestLogger logs one line per request through zerolog.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(start)).
			Msg("HTTP request")
	})
}

// requireToken enforces the bearer token when one is configured. WebSocket
// clients that cannot set headers may pass it as ?token=.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := s.config().API.Token
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if got == "" {
			got = r.URL.Query().Get("token")
		}
		if got != token {
			writeError(w, http.StatusUnauthorized, "missing or invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// config returns a snapshot of the running configuration.
func (s *Server) config() config.Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return *s.cfg
}

// ============================================================
// Responses
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status":     "ok",
			"version":    Version,
			"uptime_sec": int(time.Since(s.started).Seconds()),
			"ws_clients": s.wsHub.ClientCount(),
			"runs":       s.runs.Len(),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}

// writeErrorData is writeError with a machine-readable payload.
func writeErrorData(w http.ResponseWriter, status int, msg string, data interface{}) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Data:    data,
		Error:   msg,
	})
}
