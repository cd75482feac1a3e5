// Package httpapi is the governor's optional observability surface
// (SPEC_FULL.md §11): /healthz and /metrics, read-only, served on the
// configured listen address (loopback 127.0.0.1:9250 by default; the address
// is not restricted to loopback). It is not
// the performance-lock mechanism and exposes no actuation endpoint - the
// sentinel file remains the sole out-of-band control surface.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dwtoledo/bc250-governor/internal/log"
)

// Server wraps a chi router and the stdlib http.Server.
type Server struct {
	httpServer *http.Server
}

// New builds a Server bound to listenAddr, exposing /healthz and /metrics.
func New(listenAddr string, gatherer prometheus.Gatherer) *Server {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return &Server{
		httpServer: &http.Server{
			Addr:              listenAddr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Run starts the server and blocks until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Logger.Warnw("telemetry server shutdown error", "error", err)
		}
		return nil
	case err := <-errc:
		return err
	}
}
