// Package server wraps the HTTP server that fronts the health endpoint.
package server

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"memory-service/internal/common/logging"
)

// Server represents the service's HTTP server.
type Server struct {
	srv     *http.Server
	tlsCert string
	tlsKey  string
	logger  logging.Logger
}

// New creates a new server instance. TLS is enabled when both cert and key
// paths are provided.
func New(handler http.Handler, port, tlsCert, tlsKey string) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         ":" + port,
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		tlsCert: tlsCert,
		tlsKey:  tlsKey,
		logger:  logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "server"}),
	}
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	if s.tlsCert != "" && s.tlsKey != "" {
		s.srv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}

		go func() {
			s.logger.Info("Serving HTTPS", logging.String("addr", s.srv.Addr))
			if err := s.srv.ListenAndServeTLS(s.tlsCert, s.tlsKey); err != nil && err != http.ErrServerClosed {
				s.logger.Error("HTTPS server stopped", err)
			}
		}()
		return
	}

	go func() {
		s.logger.Info("Serving HTTP", logging.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server stopped", err)
		}
	}()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
