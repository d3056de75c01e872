package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/receipt-reader/internal/api"
	"github.com/dvloznov/receipt-reader/internal/backend"
	"github.com/dvloznov/receipt-reader/internal/config"
	"github.com/dvloznov/receipt-reader/internal/logger"
)

func main() {
	cfg := config.Load()

	// Initialize logger
	log := logger.NewWithOptions(logger.Options{
		Level: cfg.LogLevel,
		JSON:  strings.EqualFold(cfg.LogFormat, "json"),
	})

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := logger.WithContext(context.Background(), log)

	app, err := backend.NewApp(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing resources")
		}
	}()

	handler := api.NewHandler(app.Service, api.Options{
		MaxUploadBytes: cfg.MaxUploadBytes(),
		AllowOrigins:   cfg.AllowOrigins,
	}, log)

	// Create HTTP server. Receipt extraction and the deal finder call the
	// model synchronously, so the write timeout covers a full model round trip.
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("data_backend", cfg.DataBackend).
			Str("image_backend", cfg.ImageBackend).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
		return
	}

	log.Info().Msg("Server stopped")
}
