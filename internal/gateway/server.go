// Package gateway exposes the session orchestrator as an HTTP service: a
// WebSocket endpoint streaming audio in and events plus synthesized audio
// out, REST endpoints for reference disambiguation and learning feedback,
// and health and metrics endpoints.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ledgervoice/ledgervoice/internal/health"
	"github.com/ledgervoice/ledgervoice/internal/observe"
	"github.com/ledgervoice/ledgervoice/internal/session"
)

// shutdownGrace is how long in-flight requests get to finish on shutdown.
const shutdownGrace = 10 * time.Second

// SessionFactory builds a fresh session controller for one connection. Each
// WebSocket client gets its own controller and provider streams.
type SessionFactory func(ctx context.Context) (*session.Controller, error)

// Config holds the server's collaborators.
type Config struct {
	// ListenAddr is the TCP address to listen on, e.g. ":8080".
	ListenAddr string

	// Sessions is required.
	Sessions SessionFactory

	// Patterns and Feedback receive user reactions from /v1/feedback. The
	// route is registered only when both are set.
	Patterns PatternLearner
	Feedback FeedbackSink

	// Health serves /healthz and /readyz. When nil a checkerless handler
	// is used.
	Health *health.Handler

	// SampleRate is the PCM sample rate expected from clients. Default
	// 16000.
	SampleRate int

	// TLS holds certificate paths. Both empty means plain HTTP.
	TLSCertFile string
	TLSKeyFile  string

	Logger  *slog.Logger
	Metrics *observe.Metrics
}

// Server is the LedgerVoice HTTP front end.
type Server struct {
	cfg    Config
	logger *slog.Logger
	srv    *http.Server
}

// New validates cfg and builds a server with its routes registered.
func New(cfg Config) (*Server, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("gateway: session factory is required")
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Health == nil {
		cfg.Health = health.New()
	}

	mux := http.NewServeMux()
	cfg.Health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /v1/session", &sessionHandler{
		sessions:   cfg.Sessions,
		sampleRate: cfg.SampleRate,
	})
	mux.Handle("POST /v1/disambiguate", disambigHandler{})
	if cfg.Patterns != nil && cfg.Feedback != nil {
		mux.Handle("POST /v1/feedback", &feedbackHandler{
			patterns: cfg.Patterns,
			sink:     cfg.Feedback,
		})
	}

	s := &Server{
		cfg:    cfg,
		logger: cfg.Logger,
		srv: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           observe.Middleware(cfg.Metrics)(mux),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	return s, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully. It returns
// nil on a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("gateway listening", "addr", s.cfg.ListenAddr,
			"tls", s.cfg.TLSCertFile != "")
		var err error
		if s.cfg.TLSCertFile != "" {
			err = s.srv.ListenAndServeTLS(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
		} else {
			err = s.srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("gateway: serve: %w", err)
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("gateway: shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Handler returns the server's HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}
