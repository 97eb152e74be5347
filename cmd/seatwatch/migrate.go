package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcin-skalski/seatwatch/internal/config"
	"github.com/marcin-skalski/seatwatch/internal/db"
	"github.com/marcin-skalski/seatwatch/internal/logging"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return errors.New("database.url (or SEATWATCH_DATABASE_URL) is required")
			}

			logger, closer, err := logging.Setup(cfg.LogFile, cfg.Log, false)
			if err != nil {
				return fmt.Errorf("setup logger: %w", err)
			}
			defer closer.Close()

			pool, err := db.Open(cmd.Context(), cfg.Database.URL, logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := db.Migrate(cmd.Context(), pool, logger); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
