package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/and161185/eventcert/internal/migrate"
)

func migrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if err = migrate.Up(cmd.Context(), cfg.DSN); err != nil {
				return err
			}
			logger.Info("migrations applied")
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print applied and pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if err = migrate.Status(cmd.Context(), cfg.DSN); err != nil {
				logger.Error("migration status", zap.Error(err))
				return err
			}
			return nil
		},
	})
	return cmd
}
