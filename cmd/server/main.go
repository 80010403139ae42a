package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fairgrounds/deltashare/server"
	"github.com/fairgrounds/deltashare/server/catalog"
	"github.com/fairgrounds/deltashare/server/config"
	"github.com/fairgrounds/deltashare/server/storage"
	"github.com/fairgrounds/deltashare/server/storage/minio"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "deltashare",
		Short: "Read-only sharing server for lakehouse tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "deltashare-server.yml", "path to the server configuration file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the sharing server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and catalog without serving",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate()
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe() error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := config.SetupLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create server")
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SIGHUP reloads the catalog; SIGINT/SIGTERM shut down
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		for sig := range sigChan {
			if sig == syscall.SIGHUP {
				logger.Info().Msg("Reloading catalog on SIGHUP")
				_ = srv.ReloadCatalog()
				continue
			}
			logger.Info().Str("signal", sig.String()).Msg("Shutting down sharing server...")
			cancel()
			return
		}
	}()

	logger.Info().Msg("Starting sharing server...")
	if err := srv.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("Server failed")
		return err
	}

	<-ctx.Done()

	if err := srv.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
	}

	logger.Info().Msg("Server stopped gracefully")
	return nil
}

func runValidate() error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	snap, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("catalog invalid: %w", err)
	}

	tables := 0
	for _, share := range snap.Shares() {
		all, err := snap.AllTables(share.Name)
		if err != nil {
			return err
		}
		tables += len(all)
	}

	store, err := minio.New(storage.Config{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Region:    cfg.Storage.Region,
		UseSSL:    cfg.Storage.UseSSL,
	})
	if err != nil {
		return fmt.Errorf("storage client invalid: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.GetStorageTimeout())
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("storage unreachable: %w", err)
	}

	fmt.Printf("configuration ok: %d shares, %d tables, storage reachable\n", len(snap.Shares()), tables)
	return nil
}
