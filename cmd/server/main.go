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
	"github.com/ulule/limiter/v3"

	"github.com/prolynk/backend/internal/app"
	"github.com/prolynk/backend/internal/config"
	"github.com/prolynk/backend/internal/handlers"
	"github.com/prolynk/backend/internal/logging"
	appMiddleware "github.com/prolynk/backend/internal/middleware"
	"github.com/prolynk/backend/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := logging.New(cfg.LogLevel, cfg.IsDevelopment())
	log.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verifier, err := app.NewVerifier(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("mode", cfg.AuthMode).Msg("failed to initialize token verifier")
	}

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

	var rateLimiter *limiter.Limiter
	if cfg.RateLimit != "" {
		rateLimiter, err = appMiddleware.NewRateLimiter(cfg.RateLimit, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize rate limiter")
		}
	}

	profiles := services.NewProfileService(store, objects, cfg.ResumeURLTTL)
	router := handlers.NewRouter(handlers.Deps{
		Logger:         logger,
		Verifier:       verifier,
		Limiter:        rateLimiter,
		AllowedOrigins: cfg.AllowedOrigins,
		AllowLocalhost: cfg.IsDevelopment(),
		Profiles:       profiles,
		Accounts:       services.NewAccountService(store, profiles),
		Links:          services.NewLinkService(store),
		Uploads:        services.NewUploadService(objects, cfg.UploadURLTTL),
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", cfg.ServerAddress).
			Str("env", cfg.Environment).
			Str("store", cfg.StoreDriver).
			Str("objects", cfg.ObjectStore).
			Msg("ProLynk API server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
