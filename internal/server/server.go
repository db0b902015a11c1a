// Package server exposes the generator over HTTP.
//
// Routes:
//
//	GET  /healthz
//	GET  /api/schemas             user schemas and their tables
//	GET  /api/schema-details      every selectable object per user schema
//	POST /api/generate-sql        script as text/plain
//	POST /api/exports             generate and publish to the configured store
//	GET  /api/exports             list published scripts
//	GET  /api/exports/{key}       download one published script
//
// Source credentials come from the X-Database-URL header, falling back to
// the configured DSN.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/koustreak/sqlforge/internal/config"
	"github.com/koustreak/sqlforge/internal/filestore"
	"github.com/koustreak/sqlforge/internal/generator"
	"github.com/koustreak/sqlforge/internal/logger"
	"github.com/koustreak/sqlforge/internal/schema"
)

// HeaderDatabaseURL carries a per-request source DSN.
const HeaderDatabaseURL = "X-Database-URL"

// Server is the HTTP surface. Build one with New and mount Handler.
type Server struct {
	cfg    *config.Config
	dial   generator.Dialer
	gen    *generator.Generator
	store  filestore.Store
	log    *logger.Logger
	router chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithDialer replaces schema.Dial.
func WithDialer(d generator.Dialer) Option {
	return func(s *Server) { s.dial = d }
}

// WithStore enables the export routes. The bucket, prefix and presign TTL
// come from the store section of the config.
func WithStore(st filestore.Store) Option {
	return func(s *Server) { s.store = st }
}

// WithLogger sets the request and generator logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Server) { s.log = l }
}

// New wires the router. A nil cfg means config.Default().
func New(cfg *config.Config, opts ...Option) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	if cfg.Store != nil {
		cfg.Store.ApplyDefaults()
	}
	s := &Server{cfg: cfg, dial: schema.Dial, log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.gen = generator.New(s.dial, generator.WithLogger(s.log))
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/schemas", s.handleSchemas)
		r.Get("/schema-details", s.handleSchemaDetails)
		r.Post("/generate-sql", s.handleGenerate)

		r.Route("/exports", func(r chi.Router) {
			r.Use(s.requireStore)
			r.Post("/", s.handleExport)
			r.Get("/", s.handleListExports)
			r.Get("/*", s.handleDownload)
		})
	})
	return r
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on the configured address until ctx is done, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// requestLogger writes one event per request and stores a logger tagged
// with the request id in the request context.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		reqLog := s.log.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
		next.ServeHTTP(ww, r.WithContext(reqLog.WithContext(r.Context())))

		reqLog.HTTPEvent().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) requireStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.store == nil || s.cfg.Store == nil {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "no artifact store configured"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
