package main

import (
	"fmt"
	"log/slog"

	"github.com/ohong/poof/internal/config"
	"github.com/ohong/poof/internal/logging"
	"github.com/ohong/poof/internal/models"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the objects table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.New()
			logging.New(cfg.Env)

			db, err := models.InitDB(cfg)
			if err != nil {
				return err
			}
			if err := models.Migrate(db); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			slog.Info("migrations complete")
			return nil
		},
	}
}
