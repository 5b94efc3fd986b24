// Package server owns the HTTP listener of a runner: bind, serve in the
// background, shut down.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Server is a bound, serving HTTP listener.
type Server struct {
	http     *http.Server
	listener net.Listener
	done     chan struct{}
	serveErr error
}

// Listen binds addr and starts serving handler in a goroutine. It returns
// once the socket is bound, so connections are accepted (queued by the
// kernel) from the moment it returns.
func Listen(ctx context.Context, addr string, handler http.Handler, log *slog.Logger) (*Server, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("server: listen %s: %w", addr, err)
	}

	s := &Server{
		http: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ErrorLog:          slog.NewLogLogger(log.Handler(), slog.LevelWarn),
		},
		listener: ln,
		done:     make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.serveErr = err
			log.Error("server: serve failed", "addr", ln.Addr().String(), "error", err)
		}
	}()

	return s, nil
}

// Addr is the bound address. With port 0 it carries the port the kernel chose.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Shutdown stops accepting, waits for in-flight requests and then for the
// serve goroutine. If ctx ends first, remaining connections are closed
// forcibly and ctx.Err() is returned. The port is released in both cases.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	if err != nil {
		_ = s.http.Close()
	}
	<-s.done
	if err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return s.serveErr
}
