package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/cdriehuys/timetracker/internal/api"
	"github.com/cdriehuys/timetracker/internal/auth"
	"github.com/cdriehuys/timetracker/internal/config"
	"github.com/cdriehuys/timetracker/internal/domain"
	"github.com/cdriehuys/timetracker/internal/logging"
	"github.com/cdriehuys/timetracker/internal/session"
	"github.com/cdriehuys/timetracker/internal/storage"
	httptransport "github.com/cdriehuys/timetracker/internal/transport/http"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("timetracker-api", "info")
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger := logging.New("timetracker-api", cfg.LogLevel)
	if envErr != nil {
		logger.Debug().Err(envErr).Msg("no .env file loaded, using process environment")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open storage")
	}
	defer stores.Close()

	if err := stores.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply migrations")
	}

	sessions := session.NewManager(stores.Sessions, session.CookieConfig{
		Name:   cfg.SessionCookieName,
		TTL:    cfg.SessionTTL,
		Secure: cfg.SessionCookieSecure,
	}, logger)

	service := domain.NewService(stores.Activities, logger)

	router := mux.NewRouter()
	api.NewHandler(service, sessions, logger).RegisterRoutes(router)

	identity := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, sessions, cfg.AllowAnonymous, logger)

	serverCfg := httptransport.DefaultServerConfig(cfg.HTTPAddress)
	serverCfg.CORSOrigin = cfg.CORSOrigin
	server := httptransport.NewServer(serverCfg, httptransport.NewHandler(serverCfg, router, identity.Wrap, logger))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info().Str("address", cfg.HTTPAddress).Msg("timetracker api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
