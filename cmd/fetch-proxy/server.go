package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Sternrassler/fetchwrapper/pkg/fetch"
	"github.com/Sternrassler/fetchwrapper/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// maxBodyBytes caps request bodies forwarded upstream.
const maxBodyBytes = 10 << 20

// hopHeaders are connection-scoped and never forwarded.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Fetcher is the orchestrator the proxy forwards through.
type Fetcher interface {
	Fetch(ctx context.Context, input fetch.Input, opts *fetch.Options, plugins ...fetch.Plugin) (*http.Response, error)
}

// server serves the proxy HTTP API.
type server struct {
	fetcher Fetcher
	plugins []fetch.Plugin
	redis   *redis.Client
	timeout time.Duration
	logger  zerolog.Logger
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler)
	r.Get("/ready", s.readyHandler)
	r.Handle("/metrics", metrics.Handler())
	r.HandleFunc("/fetch/*", s.fetchHandler)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports whether Redis, when configured, is reachable.
func (s *server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if s.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.redis.Ping(ctx).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("Readiness check failed")
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// fetchHandler forwards /fetch/<path> to the upstream through the orchestrator.
func (s *server) fetchHandler(w http.ResponseWriter, r *http.Request) {
	target := "/" + chi.URLParam(r, "*")
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, fmt.Sprintf("read request body: %v", err), http.StatusRequestEntityTooLarge)
		return
	}

	opts := &fetch.Options{
		Method: r.Method,
		Header: forwardHeader(r.Header),
	}
	if len(body) > 0 {
		opts.Body = body
	}

	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp, err := s.fetcher.Fetch(ctx, fetch.URL(target), opts, s.plugins...)
	if err != nil {
		status := statusForError(err)
		s.logger.Warn().
			Err(err).
			Str("url", target).
			Int("status", status).
			Msg("Proxy request failed")
		http.Error(w, err.Error(), status)
		return
	}
	defer resp.Body.Close()

	for key, values := range forwardHeader(resp.Header) {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		s.logger.Warn().Err(err).Str("url", target).Msg("Failed to copy response body")
	}
}

// statusForError maps orchestration failures to proxy status codes.
func statusForError(err error) int {
	switch {
	case fetch.IsKind(err, fetch.KindInvalidRequest):
		return http.StatusBadRequest
	case fetch.IsKind(err, fetch.KindPluginRequestWillFetch):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func forwardHeader(h http.Header) http.Header {
	out := h.Clone()
	if out == nil {
		return http.Header{}
	}
	for _, name := range hopHeaders {
		out.Del(name)
	}
	// Connection may name further hop-by-hop headers.
	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			out.Del(strings.TrimSpace(name))
		}
	}
	return out
}

func (s *server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
