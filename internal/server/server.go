package server

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shineum/slicemail/internal/composer"
	"github.com/shineum/slicemail/internal/provider"
)

// shutdownTimeout is the maximum time to wait for in-flight requests
// during graceful shutdown.
const shutdownTimeout = 30 * time.Second

// Generator produces the email document from uploaded images.
type Generator interface {
	Generate(ctx context.Context, req composer.Request) (*composer.Result, error)
}

// ServerConfig holds the configuration for the HTTP shell.
type ServerConfig struct {
	// ListenAddr is the address to listen on (e.g., ":8080").
	ListenAddr string

	Generator Generator

	// Provider receives documents from requests with deliver=true.
	// If nil, delivery requests are rejected.
	Provider provider.Provider

	// TLSConfig enables HTTPS. If nil, plain HTTP is served.
	TLSConfig *tls.Config

	// AuthUsername and AuthPassword configure HTTP basic auth.
	// If either is empty, authentication is not required.
	AuthUsername string
	AuthPassword string

	// MaxUploadSize bounds the request body in bytes. Zero means no limit.
	MaxUploadSize int64

	// Subject, To and Cc address delivered documents.
	Subject string
	To      []string
	Cc      []string

	// FileName is used when a request carries no fileName field.
	FileName string

	Logger *slog.Logger
}

// Server serves the generation endpoint over HTTP or HTTPS.
type Server struct {
	config ServerConfig
	auth   *Authenticator

	mu       sync.Mutex
	listener net.Listener
}

// New creates a new Server with the given configuration.
func New(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Server{
		config: cfg,
		auth:   NewAuthenticator(cfg.AuthUsername, cfg.AuthPassword),
	}
}

// Handler returns the routed handler with its middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.config.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.auth.Middleware)
		r.Post("/generate", s.handleGenerate)
	})

	return r
}

// ListenAndServe starts the server and blocks until the context is cancelled.
// On cancellation it stops accepting connections and waits up to 30 seconds
// for in-flight requests to complete.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return err
	}
	if s.config.TLSConfig != nil {
		ln = tls.NewListener(ln, s.config.TLSConfig)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	providerName := ""
	if s.config.Provider != nil {
		providerName = s.config.Provider.Name()
	}
	s.config.Logger.Info("HTTP server listening",
		"addr", ln.Addr().String(),
		"provider", providerName,
		"auth_enabled", s.auth.Enabled(),
		"tls_enabled", s.config.TLSConfig != nil,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		s.config.Logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.config.Logger.Warn("shutdown timeout reached, forcing close", "error", err)
			srv.Close()
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Addr returns the listener address, or empty string if not listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
