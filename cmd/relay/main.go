package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/cdriehuys/timetracker/internal/config"
	"github.com/cdriehuys/timetracker/internal/logging"
	"github.com/cdriehuys/timetracker/internal/outbox"
	"github.com/cdriehuys/timetracker/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("timetracker-relay", "info")
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger := logging.New("timetracker-relay", cfg.LogLevel)

	if !cfg.OutboxEnabled {
		logger.Warn().Msg("TIMETRACKER_OUTBOX_ENABLED is false; the api records no events for the relay to publish")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open storage")
	}
	defer stores.Close()

	if stores.Pool == nil {
		logger.Fatal().Str("store_driver", cfg.StoreDriver).Msg("the relay requires the postgres store driver")
	}
	if err := stores.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply migrations")
	}

	producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
	defer producer.Close()

	dispatcher := outbox.NewDispatcher(stores.Pool, producer, cfg.OutboxPollInterval, cfg.OutboxBatchSize, logger)
	go dispatcher.Start(ctx)

	logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.OutboxTopic).Msg("outbox relay started")
	<-ctx.Done()
	dispatcher.Wait()
	logger.Info().Msg("outbox relay stopped")
}
