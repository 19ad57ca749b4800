package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/prolynk/backend/internal/app"
	"github.com/prolynk/backend/internal/config"
	"github.com/prolynk/backend/internal/handlers"
	"github.com/prolynk/backend/internal/logging"
	"github.com/prolynk/backend/internal/services"
)

// event-worker receives identity-provider confirmations and storage
// notifications. It must only be reachable from the platform's event
// delivery, never from the public internet.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := logging.New(cfg.LogLevel, cfg.IsDevelopment())
	log.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open store")
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Error().Err(err).Msg("failed to close store")
		}
	}()

	objects, err := app.OpenObjectStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.ObjectStore).Msg("failed to open object store")
	}
	defer objects.Close()

	// A nil moderator makes every upload a skip.
	var moderator services.ImageModerator
	if cfg.ModerationEnabled {
		ss, err := services.NewSafeSearchModerator(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize SafeSearch")
		}
		moderator = ss
	} else {
		logger.Warn().Msg("image moderation disabled")
	}

	profiles := services.NewProfileService(store, objects, cfg.ResumeURLTTL)
	router := handlers.NewWorkerRouter(handlers.WorkerDeps{
		Logger:     logger,
		Accounts:   services.NewAccountService(store, profiles),
		Moderation: services.NewModerationService(moderator, objects, profiles).WithStrikes(store),
		Bucket:     cfg.Bucket,
	})

	addr := cfg.WorkerAddress
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      90 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Bool("moderation", cfg.ModerationEnabled).Msg("event worker listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("worker failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
