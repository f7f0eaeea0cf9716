package cli

import (
	"context"

	"github.com/spf13/cobra"

	"quizmaster/internal/config"
	"quizmaster/internal/logger"
	"quizmaster/internal/store"
)

// NewMigrateCmd creates the schema and seeds the admin account, then exits.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create tables and seed the admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log := logger.New(cfg.Log.Level)
			return migrate(cmd.Context(), cfg, log)
		},
	}
}

func migrate(ctx context.Context, cfg config.Config, log *logger.Logger) error {
	db, err := store.Open(cfg.Database, log.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	if err := store.AutoMigrate(db); err != nil {
		return err
	}
	if err := store.SeedAdmin(ctx, db, cfg.Admin, log.Logger); err != nil {
		return err
	}
	log.WithField("database", cfg.Database.Type).Info("migrations applied")
	return nil
}
