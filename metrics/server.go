package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server serves /metrics, /live and /ready
type Server struct {
	health healthcheck.Handler
	srv    *http.Server
	log    *zap.SugaredLogger
}

// NewServer creates a server listening on addr that exposes gatherer
func NewServer(addr string, gatherer prometheus.Gatherer, log *zap.SugaredLogger) *Server {
	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(1000))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/live", health.LiveEndpoint)
	mux.HandleFunc("/ready", health.ReadyEndpoint)

	return &Server{
		health: health,
		srv:    &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		log:    log,
	}
}

// AddWorkerCheck reports the named worker as a liveness check
func (s *Server) AddWorkerCheck(name string, alive func() bool) {
	s.health.AddLivenessCheck("worker-"+name, func() error {
		if alive() {
			return nil
		}
		return fmt.Errorf("worker %s is not running", name)
	})
}

// AddReadinessCheck registers a readiness check
func (s *Server) AddReadinessCheck(name string, check func() error) {
	s.health.AddReadinessCheck(name, check)
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Serve listens until ctx is done
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("Serving metrics", "addr", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}
