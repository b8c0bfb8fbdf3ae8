// Package metrics serves the prometheus registry and a health endpoint.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zhulik/pal"

	"roomfeed/internal/config"
)

type HTTPServer struct {
	Logger *slog.Logger
	Config *config.Config

	srv *http.Server

	mu     sync.RWMutex
	checks map[string]func(ctx context.Context) error
}

func Provide() pal.ServiceDef {
	return pal.Provide(&HTTPServer{})
}

func (s *HTTPServer) Init(_ context.Context) error {
	s.Logger = s.Logger.With("component", "metrics.HTTPServer")
	s.checks = map[string]func(ctx context.Context) error{}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := s.check(r.Context()); err != nil {
			s.Logger.Warn("health check failed", "error", err)
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	s.srv = &http.Server{
		Addr:              s.Config.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: time.Second,
	}

	return nil
}

// RunConfig lets the app stop once its main services are done, without waiting for the server.
func (s *HTTPServer) RunConfig() pal.RunConfig {
	return pal.RunConfig{
		Wait: false,
	}
}

// AddCheck registers a named check reported by /health.
func (s *HTTPServer) AddCheck(name string, check func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.checks[name] = check
}

func (s *HTTPServer) Run(ctx context.Context) error {
	if s.srv.Addr == "" {
		return nil
	}

	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.Logger.Info("Starting metrics server", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Handler() http.Handler {
	return s.srv.Handler
}

func (s *HTTPServer) check(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var errs []error
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			errs = append(errs, errors.Join(errors.New(name), err))
		}
	}
	return errors.Join(errs...)
}
