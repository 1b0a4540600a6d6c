// Package http serves the WhatsApp webhook and the operational endpoints.
package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"gastosbot/internal/dispatch"
	applog "gastosbot/internal/log"
	"gastosbot/internal/metrics"
	"gastosbot/internal/middleware/ratelimit"
	"gastosbot/internal/middleware/security"
	"gastosbot/internal/middleware/trace"
)

const (
	// LivenessText is served at the root path.
	LivenessText = "Servidor do Chatbot WhatsApp está no ar e a funcionar!"

	maxBodyBytes = 1 << 20

	// handshake attempts per client IP per minute
	handshakeRequestsPerMinute = 30

	readyCheckTimeout = 2 * time.Second
)

// ReadyCheck reports whether a dependency can serve traffic.
type ReadyCheck func(ctx context.Context) error

// ServerConfig carries what the webhook server needs to run.
type ServerConfig struct {
	Addr        string
	VerifyToken string
	Dispatcher  dispatch.Dispatcher
	Logger      *applog.Logger
	ReadyChecks map[string]ReadyCheck
	// TrustedProxies are CIDRs, besides private ranges, whose forwarding
	// headers are believed.
	TrustedProxies []string
}

type Server struct {
	http.Server
	verifyToken string
	dispatcher  dispatch.Dispatcher
	logger      *applog.Logger
	readyChecks map[string]ReadyCheck
	limiter     *ratelimit.Limiter

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = applog.Discard()
	}

	s := &Server{
		verifyToken: cfg.VerifyToken,
		dispatcher:  cfg.Dispatcher,
		logger:      logger.WithComponent(applog.ComponentHTTP),
		readyChecks: cfg.ReadyChecks,
		limiter:     ratelimit.NewLimiter(ratelimit.Config{Requests: handshakeRequestsPerMinute, Period: time.Minute}),
	}

	clientIP := security.NewClientIP()
	for _, cidr := range cfg.TrustedProxies {
		if err := clientIP.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", applog.FieldError, err)
		}
	}
	limitHandshake := s.limiter.Middleware(clientIP.Extract, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", handleRoot)
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.Handle("GET /webhook", limitHandshake(http.HandlerFunc(s.handleVerify)))
	mux.HandleFunc("POST /webhook", s.handleNotification)

	var handler http.Handler = mux
	handler = applog.RequestIDMiddleware(trace.GetRequestID)(handler)
	handler = applog.Middleware(logger)(handler)
	handler = trace.NewMiddleware(logger, clientIP.Extract).Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// ListenAndServe runs until Shutdown. http.ErrServerClosed is not an error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP server listening", "addr", s.Addr, applog.FieldOperation, applog.OpStartup)
	if err := s.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server and its cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleRoot(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, LivenessText)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, "ok")
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
	defer cancel()

	failed := map[string]string{}
	for name, check := range s.readyChecks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", "failed", failed)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
		return
	}
	writeText(w, http.StatusOK, "ready")
}
