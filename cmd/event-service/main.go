package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/Vishal-meena/NeoFi-Api/internal/auth"
	"github.com/Vishal-meena/NeoFi-Api/internal/config"
	"github.com/Vishal-meena/NeoFi-Api/internal/database"
	"github.com/Vishal-meena/NeoFi-Api/internal/server"
)

func main() {
	// Initialize logger with console writer for better formatting in containers
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	logger := zerolog.New(output).With().
		Timestamp().
		Logger()

	// Load configuration
	cfg := config.Load()

	// Set the global logger
	zerolog.SetGlobalLevel(parseLevel(cfg.LogLevel))
	zerolog.DefaultContextLogger = &logger

	// Initialize database
	db, err := database.New(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Token revocation is optional; without Redis, logout does not
	// invalidate outstanding tokens.
	var revocation *auth.RevocationStore
	if cfg.Redis.URL != "" {
		redisOpts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to parse Redis URL")
		}
		redisClient := redis.NewClient(redisOpts)
		defer redisClient.Close()

		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		logger.Info().Str("url", cfg.Redis.URL).Msg("Connected to Redis")

		revocation = auth.NewRevocationStore(redisClient)
	}

	tokens := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Expiration, revocation)

	// Create and start server
	srv := server.New(
		cfg.Server.Host+":"+cfg.Server.Port,
		db.DB(),
		tokens,
		&logger,
	)
	srv.Server.ReadTimeout = cfg.Server.ReadTimeout
	srv.Server.WriteTimeout = cfg.Server.WriteTimeout
	srv.Server.IdleTimeout = cfg.Server.IdleTimeout

	// Channel to listen for errors from server
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	// Channel to listen for interrupt signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Wait for an error or interrupt signal
	select {
	case err := <-errChan:
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server error")
		}
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down server...")
	}

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Attempt graceful shutdown
	if err := srv.Stop(ctx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server stopped")
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
