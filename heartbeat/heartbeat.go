// Package heartbeat serves the worker's liveness endpoint. Processes this
// worker launches poll it to detect when their parent has gone away and
// self-terminate instead of running orphaned.
package heartbeat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/xraph/airlift"
)

// Server is the liveness HTTP server. It binds the fixed heartbeat port;
// launched processes know the port by contract.
type Server struct {
	addr   string
	logger *slog.Logger
	srv    *http.Server
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithAddr overrides the listen address. Tests use this to bind an
// ephemeral port.
func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// New creates the liveness server on the fixed heartbeat port.
func New(opts ...Option) *Server {
	s := &Server{
		addr:   fmt.Sprintf(":%d", airlift.KubeHeartbeatPort),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Get("/", s.handleLiveness)
	r.Get("/healthz", s.handleLiveness)
	return r
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"up": true})
}

// Serve runs the server until ctx is cancelled. A listen failure is
// returned immediately; the caller treats it as fatal because launched
// processes kill themselves when the heartbeat disappears.
func (s *Server) Serve(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.ListenAndServe()
	}()

	s.logger.Info("liveness endpoint up", slog.String("addr", s.addr))

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("heartbeat server: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}
