// Package server provides the public entry point for initializing the
// TasteOS cook session engine server: config, telemetry, store, and the
// wired HTTP handler in one call.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(fmt.Sprintf(":%d", srv.Port), srv.Handler)
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/tasteos/cook-session-engine/internal/api"
	"github.com/tasteos/cook-session-engine/internal/api/handlers"
	"github.com/tasteos/cook-session-engine/internal/bus"
	"github.com/tasteos/cook-session-engine/internal/config"
	"github.com/tasteos/cook-session-engine/internal/cooksession"
	"github.com/tasteos/cook-session-engine/internal/eventlog"
	"github.com/tasteos/cook-session-engine/internal/idempotency"
	"github.com/tasteos/cook-session-engine/internal/recipecatalog"
	"github.com/tasteos/cook-session-engine/internal/store"
	"github.com/tasteos/cook-session-engine/internal/telemetry"
	"github.com/tasteos/cook-session-engine/internal/units"
	"github.com/tasteos/cook-session-engine/pkg/contracts"
)

// Server holds the initialized cook session engine: the wired HTTP
// handler plus the collaborators a caller may want direct access to
// (store for Close, idempotency gate for Stop, bus for out-of-band
// publishes in tests).
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Store is the data store backing sessions, recipes, events, and
	// density overrides.
	Store store.Store

	// Sessions is the CookSession aggregate service.
	Sessions *cooksession.Service

	// Bus is the SessionBus publish/subscribe hub.
	Bus *bus.Bus

	// Idemp is the IdempotencyGate guarding mutating endpoints.
	Idemp *idempotency.Gate

	// Config is the resolved server configuration.
	Config *config.Config

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc should be called on graceful shutdown to flush
	// telemetry.
	ShutdownFunc func(context.Context) error
}

// New initializes the cook session engine with configuration loaded
// from the environment and an in-memory store, and returns a ready
// Server.
func New(ctx context.Context) (*Server, error) {
	cfg := config.Load()
	return NewWithConfig(ctx, cfg)
}

// NewWithConfig initializes the engine with an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdown, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	dataStore := store.NewMemoryStore()
	log.Info().Msg("in-memory store initialized")

	return buildServer(ctx, cfg, dataStore, shutdown)
}

// NewWithStore initializes the engine with an externally-provided
// store, useful for tests that want a fresh in-memory store per case or
// a caller that wires an alternate Store implementation.
func NewWithStore(ctx context.Context, dataStore store.Store, cfg *config.Config) (*Server, error) {
	return buildServer(ctx, cfg, dataStore, func(context.Context) error { return nil })
}

func buildServer(ctx context.Context, cfg *config.Config, dataStore store.Store, shutdown func(context.Context) error) (*Server, error) {
	recipes := recipecatalog.New(dataStore)
	if err := recipes.Seed(ctx, "default"); err != nil {
		log.Warn().Err(err).Msg("failed to seed builtin recipes")
	}

	b := bus.New()
	evLog := eventlog.New(dataStore)
	resolver := units.NewResolver(dataStore)
	densities := units.NewDensityService(dataStore, resolver)

	var ai contracts.AIClient = contracts.NoopAIClient{}
	sessions := cooksession.New(dataStore, evLog, b, ai, cfg.Retry)

	idemp := idempotency.NewGate(cfg.Idemp.ProcessingTTL, cfg.Idemp.DoneTTL, cfg.Idemp.SweepInterval)

	h := handlers.New(sessions, recipes, resolver, densities, b, idemp)
	router := api.NewRouter(cfg, h)

	return &Server{
		Handler:  router,
		Store:    dataStore,
		Sessions: sessions,
		Bus:      b,
		Idemp:    idemp,
		Config:   cfg,
		Port:     cfg.Port,
		ShutdownFunc: func(ctx context.Context) error {
			idemp.Stop()
			return shutdown(ctx)
		},
	}, nil
}
