package rest

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/fairgrounds/deltashare/server/catalog"
	"github.com/fairgrounds/deltashare/server/config"
	"github.com/fairgrounds/deltashare/server/query"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Server is the sharing protocol REST server
type Server struct {
	config  *config.Config
	logger  zerolog.Logger
	catalog *catalog.Store
	planner *query.Planner
	issuer  *Issuer
	tokens  TokenProvider
	server  *http.Server
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates the REST server around its collaborators
func NewServer(cfg *config.Config, catalogStore *catalog.Store, planner *query.Planner, issuer *Issuer, tokens TokenProvider, logger zerolog.Logger) (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		config:  cfg,
		logger:  logger.With().Str("component", "rest-server").Logger(),
		catalog: catalogStore,
		planner: planner,
		issuer:  issuer,
		tokens:  tokens,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Router builds the protocol route tree. Everything under /shares
// requires bearer authentication; the health probe does not.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.logRequests)
	r.Use(s.recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/shares", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/", s.handleListShares)
		r.Route("/{share}", func(r chi.Router) {
			r.Get("/schemas", s.handleListSchemas)
			r.Get("/all-tables", s.handleListAllTables)
			r.Get("/schemas/{schema}/tables", s.handleListTables)
			r.Get("/schemas/{schema}/tables/{table}/metadata", s.handleTableMetadata)
			r.Post("/schemas/{schema}/tables/{table}/query", s.handleTableQuery)
		})
	})

	return r
}

// Start starts the HTTP listener
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Address, s.config.Server.Port)
	s.logger.Info().Str("address", addr).Msg("Starting sharing server")

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Sharing server error")
		}
	}()

	s.logger.Info().Msg("Sharing server started successfully")
	return nil
}

// Stop drains in-flight requests and stops the listener
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping sharing server")

	s.cancel()

	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error().Err(err).Msg("Error during sharing server shutdown")
		}
	}

	s.wg.Wait()

	s.logger.Info().Msg("Sharing server stopped")
	return nil
}
