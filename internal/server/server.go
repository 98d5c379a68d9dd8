// Package server runs the HTTP server of the sign-in service.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/brizzai/insta-auth/internal/config"
	"github.com/brizzai/insta-auth/internal/logger"
	"github.com/brizzai/insta-auth/internal/server/handler"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	// shutdownTimeout is the maximum time to wait for server shutdown
	shutdownTimeout = 5 * time.Second
)

// Server wraps the HTTP server
type Server struct {
	config *config.Config
	http   *http.Server
	log    *zap.Logger
	errCh  chan error
}

type Params struct {
	fx.In

	Config  *config.Config
	Handler *handler.Handler
	Logger  *zap.Logger `optional:"true"`
}

// NewServer creates the server without starting it.
func NewServer(p Params) *Server {
	addr := fmt.Sprintf("%s:%d", p.Config.Server.Host, p.Config.Server.Port)
	return &Server{
		config: p.Config,
		http: &http.Server{
			Addr:              addr,
			Handler:           p.Handler.CreateHTTPHandler(),
			ReadTimeout:       p.Config.Server.ReadTimeout,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      p.Config.Server.WriteTimeout,
		},
		log:   logger.OrNop(p.Logger).Named("server"),
		errCh: make(chan error, 1),
	}
}

// Addr is the configured listen address.
func (s *Server) Addr() string { return s.http.Addr }

// Start binds the listen address and serves in a goroutine. Bind errors are
// returned; later serve errors are reported on Errors.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln in a goroutine.
func (s *Server) Serve(ln net.Listener) error {
	s.log.Info("Starting server",
		zap.String("address", ln.Addr().String()),
		zap.String("flow", string(s.config.OAuth.Flow)),
		zap.String("base_url", s.config.Server.BaseURL),
	)

	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Server error", zap.Error(err))
			s.errCh <- fmt.Errorf("server error: %w", err)
		}
	}()
	return nil
}

// Errors reports a serve failure after Start returned.
func (s *Server) Errors() <-chan error { return s.errCh }

// Shutdown drains in-flight requests, waiting at most shutdownTimeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server", zap.Duration("timeout", shutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return nil
}

func registerLifecycle(lc fx.Lifecycle, shutdowner fx.Shutdowner, s *Server) {
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := s.Start(ctx); err != nil {
				return err
			}
			go func() {
				select {
				case <-s.Errors():
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				case <-done:
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(done)
			return s.Shutdown(ctx)
		},
	})
}

// Module provides the HTTP server and ties it to the fx lifecycle
var Module = fx.Module("server",
	fx.Provide(
		handler.NewHandler,
		NewServer,
	),
	fx.Invoke(registerLifecycle),
)
