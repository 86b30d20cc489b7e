// Package server provides HTTP server initialization and lifecycle management
// for the coalesce identity API.
package server

import (
	"context"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coalesce-dev/coalesce/internal/config"
	"github.com/coalesce-dev/coalesce/internal/identity"
	"github.com/coalesce-dev/coalesce/web/handlers"
)

// Version is reported by the status endpoints.
const Version = "1.0.0"

// Service is the slice of the identity service the server exposes over HTTP.
type Service interface {
	Identify(ctx context.Context, req identity.Request) (identity.Aggregate, error)
	BreakerState() string
}

// securityHeadersMiddleware adds security headers to all HTTP responses.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// Start initializes and starts the HTTP server. Returns the actual address
// being listened on (useful for testing with port 0). The server shuts down
// gracefully when ctx is cancelled.
func Start(ctx context.Context, cfg *config.Config, svc Service, gatherer prometheus.Gatherer) (string, error) {
	mux := http.NewServeMux()

	identifyHandlers := handlers.NewIdentifyHandlers(svc)

	// Identify route (requires auth in production mode)
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/identify", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		identifyHandlers.Identify(w, r)
	})
	mux.Handle("/identify", handlers.RequireAuth(apiMux, cfg))

	// Status endpoints - no auth required, used by monitoring
	status := func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","version":"` + Version + `","breaker":"` + svc.BreakerState() + `"}`))
	}
	mux.HandleFunc("/api/health", status)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		status(w, r)
	})

	// Prometheus metrics
	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	handler := handlers.RequestID(mux)
	handler = securityHeadersMiddleware(handler)

	// Create server with security timeouts
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return "", err
	}

	actualAddr := listener.Addr().String()

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	return actualAddr, nil
}
