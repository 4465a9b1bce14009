// Package webserver assembles the HTTP server of the webserver stage: a chi
// router with the default middleware pipeline, API routers mounted under a
// prefix, health and metrics endpoints and optional static files.
package webserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/rapid/internal/logger"
	"github.com/marmos91/rapid/pkg/metrics"
)

// ErrServerClosed is returned by Listen once Shutdown has been called.
var ErrServerClosed = errors.New("webserver closed")

// Server is created before any middleware or route is attached so it can be
// torn down even if assembly fails halfway.
//
// Endpoints:
//   - GET /health: liveness probe
//   - GET /metrics: Prometheus metrics (when enabled)
//   - {APIPrefix}/*: routes registered through Mount
type Server struct {
	cfg     Config
	root    string
	metrics *metrics.Metrics

	router *chi.Mux
	api    *chi.Mux

	mu        sync.Mutex
	finalized bool
	closed    bool
	http      *http.Server
	listener  net.Listener
	errCh     chan error

	shutdownOnce sync.Once
	shutdownErr  error
}

// Option configures a Server.
type Option func(*Server)

// WithRoot resolves the public directory against root.
func WithRoot(root string) Option {
	return func(s *Server) { s.root = root }
}

// WithMetrics records request metrics and serves /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates a server in the stopped state.
func New(cfg Config, opts ...Option) *Server {
	cfg.applyDefaults()
	s := &Server{
		cfg:    cfg,
		router: chi.NewRouter(),
		api:    chi.NewRouter(),
		errCh:  make(chan error, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the effective configuration.
func (s *Server) Config() Config { return s.cfg }

// Router returns the root router.
func (s *Server) Router() chi.Router { return s.router }

// API returns the router mounted under the API prefix.
func (s *Server) API() chi.Router { return s.api }

// Use appends middleware to the root router. Middleware must be attached
// before any route.
func (s *Server) Use(mws ...Middleware) {
	s.router.Use(mws...)
}

// UseDefaults attaches DefaultMiddleware.
func (s *Server) UseDefaults() {
	s.Use(DefaultMiddleware(s.cfg, s.metrics)...)
}

// Mount registers routes on the API router.
func (s *Server) Mount(routes func(r chi.Router)) {
	if routes == nil {
		return
	}
	s.api.Group(routes)
}

// Finalize registers the built-in endpoints and mounts the API router. It
// runs once; Listen calls it if needed.
func (s *Server) Finalize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return
	}
	s.finalized = true

	s.router.NotFound(s.notFound())
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		Fail(w, r, Error(http.StatusMethodNotAllowed, "Method not allowed."))
	})

	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.cfg.Metrics && s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	s.router.Mount(s.cfg.APIPrefix, s.api)
}

func (s *Server) notFound() http.HandlerFunc {
	fail := func(w http.ResponseWriter, r *http.Request) {
		Fail(w, r, Error(http.StatusNotFound, "Not found."))
	}
	if s.cfg.Public == "" {
		return fail
	}

	dir := s.cfg.Public
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(s.root, dir)
	}
	files := http.FileServer(http.Dir(dir))

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			fail(w, r)
			return
		}
		path := filepath.Join(dir, filepath.FromSlash(filepath.Clean("/"+r.URL.Path)))
		if _, err := os.Stat(path); err != nil {
			fail(w, r)
			return
		}
		files.ServeHTTP(w, r)
	}
}

// Handler returns the root handler, finalizing the router first.
func (s *Server) Handler() http.Handler {
	s.Finalize()
	return s.router
}

// Listen binds the configured address and serves in the background. It
// returns once the socket is bound; serve errors are reported on Err.
func (s *Server) Listen(ctx context.Context) error {
	s.Finalize()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrServerClosed
	}
	if s.listener != nil {
		return errors.New("webserver already listening")
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
	s.http = srv
	s.listener = ln

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("webserver failed", logger.Err(err))
			select {
			case s.errCh <- err:
			default:
			}
		}
	}()

	logger.InfoCtx(ctx, "webserver listening",
		logger.KeyAddr, ln.Addr().String(),
		"api_prefix", s.cfg.APIPrefix)
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// URL returns the base URL of the running server, or "".
func (s *Server) URL() string {
	addr, ok := s.Addr().(*net.TCPAddr)
	if !ok {
		return ""
	}
	host := "localhost"
	if !addr.IP.IsUnspecified() {
		host = addr.IP.String()
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(addr.Port))
}

// Err reports background serve failures.
func (s *Server) Err() <-chan error { return s.errCh }

// Shutdown stops accepting connections and waits for in-flight requests,
// bounded by ctx or the configured shutdown timeout. Safe to call more
// than once and before Listen, after which Listen refuses to bind.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		srv := s.http
		s.mu.Unlock()
		if srv == nil {
			return
		}

		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
			defer cancel()
		}

		if err := srv.Shutdown(ctx); err != nil {
			s.shutdownErr = fmt.Errorf("webserver shutdown: %w", err)
			return
		}
		logger.Info("webserver stopped")
	})
	return s.shutdownErr
}
