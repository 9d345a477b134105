package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	config, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	zerolog.SetGlobalLevel(config.LogLevel)

	log.Info().
		Str("api_url", config.APIURL).
		Str("driver", config.Driver).
		Str("channel", config.Channel).
		Str("port", config.Port).
		Msg("starting prizeboard")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services := setupServices(ctx, config)
	server := setupServer(config, services)

	go services.Gateway.Start(ctx)

	// A failed push connection leaves the board polling.
	if err := services.Dashboard.Mount(ctx); err != nil {
		log.Error().Err(err).Msg("realtime updates unavailable, falling back to polling")
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	if err := services.Dashboard.Unmount(); err != nil {
		log.Error().Err(err).Msg("dashboard shutdown failed")
	}

	// Stops the broadcaster and closes viewer connections
	cancel()

	log.Info().Msg("prizeboard shutdown complete")
}
