// Package server exposes registers over HTTP. The register is chosen by the
// request host; the representation by the path suffix, e.g. /hash/<h>.yaml.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/acksell/registers/metric"
)

// shutdownTimeout bounds how long in-flight requests get to finish.
const shutdownTimeout = 5 * time.Second

// Server is the registers HTTP server.
type Server struct {
	httpServer *http.Server
	log        *slog.Logger
}

// New returns a server for handler listening on addr.
func New(addr string, handler http.Handler, log *slog.Logger, metrics *metric.Metrics) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           loggingMiddleware(log, metrics, handler),
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()
	s.log.Info("listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// loggingMiddleware logs HTTP requests and records their duration.
func loggingMiddleware(log *slog.Logger, metrics *metric.Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordRequest(route, strconv.Itoa(rec.status), elapsed)
		if r.URL.Path != "/favicon.ico" {
			log.Debug("request",
				"method", r.Method,
				"host", r.Host,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", elapsed,
			)
		}
	})
}
