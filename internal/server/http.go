package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// HealthCheck reports whether the server's dependencies are reachable.
type HealthCheck func(ctx context.Context) error

const healthCheckTimeout = 2 * time.Second

// NewMux mounts the review service, the Prometheus endpoint and the health check.
func NewMux(handler *ReviewHandler, gatherer prometheus.Gatherer, health HealthCheck) *http.ServeMux {
	mux := http.NewServeMux()
	path, h := NewReviewServiceHandler(handler)
	mux.Handle(path, h)
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()
			if err := health(ctx); err != nil {
				slog.Default().Warn("Health check failed", "error", err)
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// NewHTTPServer serves handler over HTTP/1.1 and cleartext HTTP/2 with CORS for allowedOrigins.
func NewHTTPServer(addr string, handler http.Handler, allowedOrigins []string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           CORSMiddleware(h2c.NewHandler(handler, &http2.Server{}), allowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// CORSMiddleware allows browser clients from allowedOrigins.
func CORSMiddleware(next http.Handler, allowedOrigins []string) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
