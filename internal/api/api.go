// Package api provides the HTTP REST API server.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/good-yellow-bee/opswatch/internal/alarms"
	"github.com/good-yellow-bee/opswatch/internal/api/health"
	"github.com/good-yellow-bee/opswatch/internal/bus"
	"github.com/good-yellow-bee/opswatch/internal/rules"
	"github.com/good-yellow-bee/opswatch/internal/tracker"
)

// Config contains HTTP API server configuration.
type Config struct {
	Address string

	// JWTSecret enables bearer-token authentication for the /api/v1 routes
	// when non-empty. Health and metrics stay public either way.
	JWTSecret      []byte
	AccessTokenTTL time.Duration

	Verbose bool
}

// SetDefaults applies default values for missing configuration.
func (c *Config) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.AccessTokenTTL == 0 {
		c.AccessTokenTTL = 24 * time.Hour
	}
}

// Server is the HTTP API server.
type Server struct {
	config        *Config
	bus           *bus.Bus
	engine        *rules.Engine
	manager       *alarms.Manager
	tracker       *tracker.Tracker
	server        *http.Server
	healthHandler *health.Handler
}

// New creates a new API server over the four core components.
func New(cfg *Config, b *bus.Bus, engine *rules.Engine, manager *alarms.Manager, t *tracker.Tracker) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if b == nil || engine == nil || manager == nil || t == nil {
		return nil, fmt.Errorf("bus, engine, manager, and tracker are required")
	}

	cfg.SetDefaults()

	s := &Server{
		config:        cfg,
		bus:           b,
		engine:        engine,
		manager:       manager,
		tracker:       t,
		healthHandler: health.NewHandler(),
	}

	s.server = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.setupRouter(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Run starts the HTTP server and blocks until context is canceled.
func (s *Server) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		log.Printf("HTTP API listening on %s", s.config.Address)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Printf("shutting down HTTP API server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.config.Address
}

// RegisterHealthChecker adds a readiness checker to the server.
func (s *Server) RegisterHealthChecker(c health.Checker) {
	s.healthHandler.RegisterChecker(c)
}
