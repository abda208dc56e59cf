package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// Server wraps one role's chi.Mux with a graceful-shutdown lifecycle,
// mirroring the teacher's admin.server.Serve/Shutdown shape
// (internal/admin/http.go) translated off its idleConnsClosed channel
// onto context.Context, which chi's own shutdown model expects.
type Server struct {
	httpServer *http.Server
	log        *slog.Logger
}

// NewServer builds a Server listening on addr with handler as its root.
func NewServer(addr string, handler http.Handler, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		httpServer: &http.Server{Addr: addr, Handler: handler},
		log:        log,
	}
}

// Serve blocks until the server is shut down via Shutdown, or fails to
// bind its listening address.
func (s *Server) Serve() error {
	s.log.Info("http server listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("transport: serve %s: %w", s.httpServer.Addr, err)
	}
	return nil
}

// Shutdown gracefully drains in-flight requests before returning.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("transport: shutdown %s: %w", s.httpServer.Addr, err)
	}
	return nil
}
