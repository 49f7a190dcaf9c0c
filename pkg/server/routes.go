package server

import (
	"net/http"
	"strings"
	"time"

	"taxmate-hq/throttle/pkg/telemetry/health"
)

// setupRoutes builds the mux and the middleware chain:
// request ID → logging → recovery → mux. Every route is instrumented
// individually so metrics and spans carry the route pattern.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	s.handleAPI(mux, "POST /v1/admit", http.HandlerFunc(s.handleAdmit))
	s.handleAPI(mux, "GET /v1/users/{user_id}/quota", http.HandlerFunc(s.handleQuota))
	s.handleAPI(mux, "DELETE /v1/users/{user_id}", http.HandlerFunc(s.handleResetUser))
	s.handleAPI(mux, "GET /v1/stats", http.HandlerFunc(s.handleStats))
	s.handleAPI(mux, "GET /v1/policies", http.HandlerFunc(s.handlePolicies))

	paths := s.telemetry.Health
	s.handle(mux, "GET "+pathOr(paths.LivenessPath, "/health"), s.health.LivenessHandler())
	s.handle(mux, "GET "+pathOr(paths.ReadinessPath, "/ready"), s.health.ReadinessHandler())
	s.handle(mux, "GET "+pathOr(paths.VersionPath, "/version"), health.VersionHandler(s.version))

	if s.metrics != nil && s.telemetry.Metrics.IsEnabled() {
		mux.Handle("GET "+pathOr(s.telemetry.Metrics.Path, "/metrics"), s.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = recoveryMiddleware(s.logger)(handler)
	handler = loggingMiddleware(s.logger)(handler)
	handler = requestIDMiddleware(handler)

	return handler
}

// handleAPI registers a /v1 route behind the per-client limiter.
func (s *Server) handleAPI(mux *http.ServeMux, pattern string, h http.Handler) {
	if s.limiter != nil {
		h = s.limiter.middleware(h)
	}
	s.handle(mux, pattern, h)
}

// handle registers pattern with tracing and request metrics.
func (s *Server) handle(mux *http.ServeMux, pattern string, h http.Handler) {
	route := patternPath(pattern)
	h = s.tracer.Middleware(func(*http.Request) string { return route })(h)

	if s.metrics != nil {
		inner := h
		h = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)
			inner.ServeHTTP(rw, r)
			s.metrics.RecordHTTPRequest(r.Method, route, rw.statusCode, time.Since(start))
		})
	}

	mux.Handle(pattern, h)
}

// patternPath strips the method from a mux pattern.
func patternPath(pattern string) string {
	if _, path, ok := strings.Cut(pattern, " "); ok {
		return path
	}
	return pattern
}

func pathOr(path, fallback string) string {
	if path == "" {
		return fallback
	}
	return path
}
