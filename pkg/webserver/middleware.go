package webserver

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/unrolled/secure"

	"github.com/marmos91/rapid/internal/logger"
	"github.com/marmos91/rapid/pkg/metrics"
)

// Middleware is a standard net/http middleware.
type Middleware = func(http.Handler) http.Handler

// DefaultMiddleware returns the pipeline attached during the middleware
// stage. Error catching comes first so it wraps everything after it.
func DefaultMiddleware(cfg Config, m *metrics.Metrics) []Middleware {
	mws := []Middleware{
		CatchErrors,
		middleware.RequestID,
		middleware.RealIP,
		requestLogger,
	}
	if m != nil {
		mws = append(mws, instrument(m))
	}
	if cfg.SecurityHeaders {
		mws = append(mws, secure.New(secure.Options{
			FrameDeny:          true,
			ContentTypeNosniff: true,
			BrowserXssFilter:   true,
			ReferrerPolicy:     "no-referrer",
		}).Handler)
	}
	if cfg.CORS {
		mws = append(mws, cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: !containsWildcard(cfg.CORSOrigins),
			MaxAge:           300,
		}))
	}
	if cfg.RequestTimeout > 0 {
		mws = append(mws, middleware.Timeout(cfg.RequestTimeout))
	}
	return mws
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// CatchErrors turns panics raised downstream into JSON error responses.
// A panic carrying an *HTTPError keeps its status.
func CatchErrors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			err, ok := rec.(error)
			if !ok {
				err = fmt.Errorf("panic: %v", rec)
			}

			var he *HTTPError
			if !errors.As(err, &he) {
				logger.ErrorCtx(r.Context(), "panic in handler",
					logger.KeyRequestID, middleware.GetReqID(r.Context()),
					logger.KeyError, err.Error(),
					"stack", string(debug.Stack()))
			}
			Fail(w, r, err)
		}()
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())
		if requestID != "" {
			w.Header().Set(middleware.RequestIDHeader, requestID)
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		args := []any{
			logger.KeyRequestID, requestID,
			logger.KeyMethod, r.Method,
			logger.KeyPath, r.URL.Path,
			logger.KeyStatus, status,
			logger.KeyBytes, ww.BytesWritten(),
			logger.KeyRemoteAddr, r.RemoteAddr,
			logger.Since(start),
		}

		// Health and metrics probes are noisy.
		if isProbePath(r.URL.Path) {
			logger.Debug("request completed", args...)
		} else {
			logger.Info("request completed", args...)
		}
	})
}

func isProbePath(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/") || path == "/metrics"
}

func instrument(m *metrics.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.RequestStarted()
			defer m.RequestFinished()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.ObserveRequest(r.Method, status, time.Since(start))
		})
	}
}
