package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cdriehuys/timetracker/internal/config"
	"github.com/cdriehuys/timetracker/internal/logging"
	"github.com/cdriehuys/timetracker/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:           "timetrackerctl",
	Short:         "Administrative commands for the timetracker service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	_ = godotenv.Load()

	rootCmd.AddCommand(newMigrateCmd(), newTokenCmd(), newSessionsCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openStores loads configuration and opens the configured backends.
func openStores(ctx context.Context) (*config.Config, *storage.Stores, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, zerolog.Nop(), err
	}
	logger := logging.NewWithWriter(os.Stderr, "timetrackerctl", cfg.LogLevel)
	stores, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		return nil, nil, logger, err
	}
	return cfg, stores, logger, nil
}
