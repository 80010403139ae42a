package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fairgrounds/deltashare/server/catalog"
	"github.com/fairgrounds/deltashare/server/config"
	"github.com/fairgrounds/deltashare/server/protocols/rest"
	"github.com/fairgrounds/deltashare/server/query"
	"github.com/fairgrounds/deltashare/server/storage"
	"github.com/fairgrounds/deltashare/server/storage/minio"
	"github.com/rs/zerolog"
)

// Server wires the catalog, object storage and the sharing protocol
// server together
type Server struct {
	config     *config.Config
	logger     zerolog.Logger
	catalog    *catalog.Store
	restServer *rest.Server
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	startTime  time.Time
}

// New creates a server instance from validated configuration
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())

	catalogStore, err := catalog.NewStore(cfg.Catalog.Path, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	objectStore, err := minio.New(storage.Config{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Region:    cfg.Storage.Region,
		UseSSL:    cfg.Storage.UseSSL,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create object store: %w", err)
	}

	retrying := storage.WithRetry(objectStore, storage.RetryPolicy{
		MaxRetries: cfg.Storage.MaxRetries,
		Timeout:    cfg.GetStorageTimeout(),
	}, logger)

	restServer, err := rest.NewServer(
		cfg,
		catalogStore,
		query.NewPlanner(retrying, logger),
		rest.NewIssuer(retrying, cfg.GetURLTTL(), cfg.Signing.Parallelism, logger),
		rest.NewStaticTokenProvider(cfg.Auth.Tokens),
		logger,
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create sharing server: %w", err)
	}

	return &Server{
		config:     cfg,
		logger:     logger.With().Str("component", "server").Logger(),
		catalog:    catalogStore,
		restServer: restServer,
		wg:         sync.WaitGroup{},
		ctx:        ctx,
		cancel:     cancel,
		startTime:  time.Now(),
	}, nil
}

// Start starts the sharing protocol server
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info().Msg("Starting sharing service...")

	if err := s.restServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start sharing server: %w", err)
	}

	s.logger.Info().
		Str("address", s.config.Server.Address).
		Int("port", s.config.Server.Port).
		Str("catalog", s.config.Catalog.Path).
		Msg("Sharing service started")

	return nil
}

// ReloadCatalog swaps in a fresh catalog snapshot. In-flight requests
// keep the snapshot they started with; failure keeps the previous one.
func (s *Server) ReloadCatalog() error {
	if err := s.catalog.Reload(); err != nil {
		s.logger.Error().Err(err).Msg("Catalog reload failed, keeping previous snapshot")
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the service
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("Shutting down sharing service...")

	s.cancel()

	if s.restServer != nil {
		if err := s.restServer.Stop(); err != nil {
			s.logger.Error().Err(err).Msg("Error stopping sharing server")
		}
	}

	s.wg.Wait()

	s.logger.Info().
		Dur("uptime", time.Since(s.startTime)).
		Msg("Sharing service stopped")

	return nil
}
