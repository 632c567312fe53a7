package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Config holds daemon configuration.
type Config struct {
	Addr string
}

// Server is the sysprintd HTTP server.
type Server struct {
	cfg      Config
	router   *chi.Mux
	http     *http.Server
	listener net.Listener
}

// NewServer listens on cfg.Addr and routes requests to svc.
func NewServer(cfg Config, svc *Service) (*Server, error) {
	var lc net.ListenConfig
	listener, err := lc.Listen(context.Background(), "tcp", cfg.Addr)
	if err != nil {
		return nil, err
	}

	r := NewRouter(svc)
	return &Server{
		cfg:    cfg,
		router: r,
		http: &http.Server{
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		listener: listener,
	}, nil
}

// NewRouter builds the middleware chain and mounts the service routes.
func NewRouter(svc *Service) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog)
	svc.RegisterHTTP(r)
	return r
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Serve handles requests until Shutdown. Blocks until stopped.
func (s *Server) Serve() error {
	err := s.http.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
