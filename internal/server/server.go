// Package server exposes the analysis pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/rshade/costlens/internal/engine"
	"github.com/rshade/costlens/internal/identity"
	"github.com/rshade/costlens/internal/ingest"
	"github.com/rshade/costlens/internal/logging"
	"github.com/rshade/costlens/internal/metrics"
	"github.com/rshade/costlens/internal/source"
)

const (
	// DefaultMaxUploadBytes caps analyze request bodies.
	DefaultMaxUploadBytes = 32 << 20
	requestTimeout        = 60 * time.Second
	shutdownTimeout       = 10 * time.Second
	readHeaderTimeout     = 10 * time.Second
)

// Refresher invalidates cached data-source results.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Options wires the server's collaborators. Source, Cache and Identity may
// be nil.
type Options struct {
	Pipeline         engine.Pipeline
	NormalizeOptions ingest.Options
	Source           source.Source
	Cache            Refresher
	Identity         identity.Provider
	RequireAuth      bool
	TopN             int
	MaxUploadBytes   int64
	Audit            logging.AuditLogger
}

// Server is the HTTP API.
type Server struct {
	opts   Options
	logger zerolog.Logger
	router chi.Router
}

// New builds the router.
func New(opts Options, logger zerolog.Logger) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.Audit == nil {
		opts.Audit = logging.NewAuditLogger(logging.AuditLoggerConfig{})
	}
	s := &Server{opts: opts, logger: logging.ComponentLogger(logger, "server")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/summary", s.handleSummary)
		r.Post("/cache/refresh", s.handleCacheRefresh)
	})

	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext: func(_ net.Listener) context.Context {
			return s.logger.WithContext(context.Background())
		},
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("starting HTTP API")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info().Msg("shutting down HTTP API")
		return srv.Shutdown(shutdownCtx)
	}
}

// requestLogger attaches a request-scoped logger and trace ID to the
// context and logs each completed request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		traceID := middleware.GetReqID(r.Context())
		if traceID == "" {
			traceID = logging.NewTraceID()
		}
		l := s.logger.With().Str("request_id", traceID).Logger()
		ctx := logging.ContextWithTraceID(l.WithContext(r.Context()), traceID)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		l.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
