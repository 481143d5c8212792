package api

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"

	"github.com/albertsgarde/transformerscope/pkg/config"
	tserrors "github.com/albertsgarde/transformerscope/pkg/errors"
)

// Server is the HTTP server that exposes a payload.
type Server struct {
	httpServer *http.Server
	router     *Router
	hub        *Hub
	config     config.ServerConfig

	mu      sync.RWMutex
	running bool
	addr    string
}

// NewServer creates a server for cfg. Zero fields fall back to the defaults
// of config.Default.
func NewServer(cfg config.ServerConfig) *Server {
	def := config.Default().Server
	if cfg.Host == "" {
		cfg.Host = def.Host
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}

	return &Server{
		router: NewRouter(),
		hub:    NewHub(),
		config: cfg,
	}
}

// Address returns the configured host:port. Port 0 asks the kernel for a
// free port; Addr reports the bound address once started.
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// Addr returns the address the server is listening on, or "" before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Router returns the router for registering handlers.
func (s *Server) Router() *Router { return s.router }

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the router wrapped in the configured middleware.
func (s *Server) Handler() http.Handler {
	middlewares := []Middleware{RecoveryMiddleware, RequestIDMiddleware}
	if s.config.EnableLogging {
		middlewares = append(middlewares, LoggingMiddleware)
	}
	if len(s.config.CORSOrigins) > 0 {
		middlewares = append(middlewares, CORSMiddleware(s.config.CORSOrigins))
		s.hub.SetCheckOrigin(makeOriginChecker(s.config.CORSOrigins))
	}
	return Chain(s.router, middlewares...)
}

// Start binds the listener and serves in the background. Bind failures are
// returned as SERVER_START_FAILED.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return tserrors.Newf(tserrors.ErrServerStartFailed, "server is already running on %s", s.addr)
	}

	ln, err := net.Listen("tcp", s.Address())
	if err != nil {
		return tserrors.AttachSuggestions(
			tserrors.WrapNetwork(err, tserrors.ErrServerStartFailed, "server failed to start").
				WithContext("address", s.Address()))
	}

	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
	s.addr = ln.Addr().String()
	s.running = true

	go s.hub.Run()
	go func() {
		log.Printf("[api] Serving on http://%s", s.addr)
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("[api] Server error: %v", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the server and the hub.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	log.Printf("[api] Shutting down server...")
	s.running = false
	s.hub.Stop()
	return s.httpServer.Shutdown(ctx)
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// makeOriginChecker validates WebSocket origins against the CORS list.
func makeOriginChecker(allowedOrigins []string) func(*http.Request) bool {
	allowed := make(map[string]bool)
	for _, origin := range allowedOrigins {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[origin] = true
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return allowed[origin]
	}
}
