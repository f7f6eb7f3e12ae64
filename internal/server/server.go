// Package server runs the relay's listeners.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/SARVESHVARADKAR123/RealChat/relay/internal/observability"
	"go.uber.org/zap"
)

// Server is an HTTP listener for long-lived WebSocket traffic: only the
// request header read is bounded, since upgraded connections outlive any
// read or write timeout.
type Server struct {
	httpServer *http.Server
}

func New(addr string, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}

func (s *Server) Start() error {
	observability.GetLogger(context.Background()).Info("starting server", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	observability.GetLogger(ctx).Info("shutting down server", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.Shutdown(ctx)
}
