// Package http exposes the ledger service as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"saldo/internal/auth"
	"saldo/internal/log"
	"saldo/internal/middleware/ratelimit"
	"saldo/internal/middleware/security"
	"saldo/internal/middleware/trace"
	"saldo/internal/services"
)

// Options wires the server to its collaborators.
type Options struct {
	Ledgers *services.LedgerService
	Auth    auth.Authenticator
	// Ready reports backend reachability for /readyz. Nil means always ready.
	Ready             func(ctx context.Context) error
	RequestsPerMinute int
	Logger            *log.Logger
}

type Server struct {
	http.Server
	ledgers  *services.LedgerService
	auth     auth.Authenticator
	ready    func(ctx context.Context) error
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	logger   *log.Logger

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	detector := security.NewDetector(logger)
	s := &Server{
		ledgers:  opts.Ledgers,
		auth:     opts.Auth,
		ready:    opts.Ready,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RequestsPerMinute}, logger),
		detector: detector,
		tracer:   trace.NewMiddleware(logger, detector.ExtractClientIP),
		logger:   logger.WithComponent(log.ComponentHTTP),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /v1/signup", s.handleSignUp)
	mux.HandleFunc("POST /v1/signin", s.handleSignIn)
	mux.HandleFunc("POST /v1/signout", s.handleSignOut)

	mux.HandleFunc("GET /v1/ledgers/{id}", s.handleGetLedger)
	mux.HandleFunc("PUT /v1/ledgers/{id}", s.handleReplaceLedger)
	mux.HandleFunc("PUT /v1/ledgers/{id}/income", s.handleSetIncome)
	mux.HandleFunc("POST /v1/ledgers/{id}/expenses", s.handleAddExpense)
	mux.HandleFunc("DELETE /v1/ledgers/{id}/expenses/{index}", s.handleRemoveExpense)

	var h http.Handler = mux
	h = s.limiter.Middleware(detector.ExtractClientIP, s.handleRateLimited)(h)
	h = detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusTooManyRequests, ErrorBody{
		Error:     "rate limit exceeded, try again later",
		Code:      "rate_limited",
		RequestID: trace.GetRequestID(r.Context()),
	})
}
