// Package main is the entrypoint for the Smliser license server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CallismartLtd/smart-license-server-sub003/internal/api"
	"github.com/CallismartLtd/smart-license-server-sub003/internal/cache"
	"github.com/CallismartLtd/smart-license-server-sub003/internal/config"
	"github.com/CallismartLtd/smart-license-server-sub003/internal/crypto"
	"github.com/CallismartLtd/smart-license-server-sub003/internal/db"
	"github.com/CallismartLtd/smart-license-server-sub003/internal/license"
	"github.com/CallismartLtd/smart-license-server-sub003/internal/maintenance"
	"github.com/CallismartLtd/smart-license-server-sub003/internal/metrics"
	"github.com/rs/zerolog"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("version", Version).Logger()
	if os.Getenv("ENV") != string(config.EnvProduction) {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	logger.Info().
		Str("version", Version).
		Str("commit", Commit).
		Str("build_date", BuildDate).
		Msg("Starting Smliser license server")

	// Load configuration
	cfg, err := config.LoadServerConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid server configuration")
		return 1
	}

	// Connect to database
	database, err := db.New(ctx, db.DefaultConfig(cfg.DatabaseURL), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
		return 1
	}
	defer database.Close()

	// Run migrations
	if err := database.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run database migrations")
		return 1
	}

	// Attach the license cache when Redis is configured
	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to Redis")
			return 1
		}
		defer client.Close()
		database.WithCache(cache.NewRedisCache(client, logger), cfg.CacheTTL)
		logger.Info().Dur("ttl", cfg.CacheTTL).Msg("license cache enabled")
	}

	// Derive the signing key from the host secrets
	signingKey, err := crypto.DeriveKey([]byte(cfg.MasterSecret), []byte(cfg.SecretSalt))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to derive signing key")
		return 1
	}

	m := metrics.New()

	service := license.NewService(database, database, database, license.Config{
		SigningKey: signingKey,
		KeyPrefix:  cfg.LicenseKeyPrefix,
		TokenTTL:   cfg.TokenTTL,
	}, logger)

	// Start the expired-token sweeper
	sweeper := maintenance.NewTokenSweeper(database, m, logger)
	if err := sweeper.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start token sweeper")
		return 1
	}
	defer sweeper.Stop()

	// Build the API router
	router, err := api.NewRouter(api.Config{
		AdminAPIKey:       cfg.AdminAPIKey,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitPeriod:   cfg.RateLimitPeriod,
	}, database, service, m, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize API router")
		return 1
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Error().Err(err).Msg("HTTP server failed")
		return 1
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		return 1
	}

	// Let an in-flight sweep finish
	<-sweeper.Stop().Done()

	logger.Info().Msg("server stopped")
	return 0
}
