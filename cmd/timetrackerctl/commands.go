package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cdriehuys/timetracker/internal/auth"
	"github.com/cdriehuys/timetracker/internal/config"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, stores, logger, err := openStores(cmd.Context())
			if err != nil {
				return err
			}
			defer stores.Close()

			if err := stores.Migrate(cmd.Context()); err != nil {
				return err
			}
			logger.Info().Msg("schema up to date")
			return nil
		},
	}
}

func newTokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token USER_ID",
		Short: "Mint a bearer token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			token, err := auth.IssueToken(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, args[0], ttl, time.Now())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

func newSessionsCmd() *cobra.Command {
	sessionsCmd := &cobra.Command{Use: "sessions", Short: "Anonymous session maintenance"}

	sessionsCmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete expired anonymous sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, stores, _, err := openStores(cmd.Context())
			if err != nil {
				return err
			}
			defer stores.Close()

			if stores.Purger == nil {
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s sessions expire on their own\n", cfg.SessionStore)
				return err
			}
			n, err := stores.Purger.PurgeExpired(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "purged %d expired sessions\n", n)
			return err
		},
	})
	return sessionsCmd
}
