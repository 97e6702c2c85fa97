package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/talentcontrolhr/talentcontrol/internal/config"
	"github.com/talentcontrolhr/talentcontrol/internal/storage"
	"github.com/talentcontrolhr/talentcontrol/internal/storage/mongodb"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations (Postgres) or create indexes (MongoDB)",
	RunE:  runMigrate,
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Rollback all migrations",
	RunE:  runMigrateDown,
}

func init() {
	migrateCmd.AddCommand(migrateDownCmd)
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	switch cfg.Database.Driver {
	case storage.MongoDB:
		return ensureMongoIndexes(cfg)
	case storage.Memory:
		slog.Info("memory backend has no schema, nothing to migrate")
		return nil
	}

	m, err := newMigrate(cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	slog.Info("migrations applied successfully")
	return nil
}

func runMigrateDown(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if cfg.Database.Driver != storage.Postgres {
		return fmt.Errorf("migrate down is only supported for %s", storage.Postgres)
	}

	m, err := newMigrate(cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	slog.Info("migrations rolled back successfully")
	return nil
}

func newMigrate(cfg *config.Config) (*migrate.Migrate, error) {
	if cfg.Database.Driver != storage.Postgres {
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
	return migrate.New(cfg.MigrationsSource(), cfg.DatabaseURLForMigrate())
}

func ensureMongoIndexes(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, db, err := mongodb.Open(ctx, cfg.Database.URL, cfg.Database.Name, nil)
	if err != nil {
		return err
	}
	defer disconnect(client)()

	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		return err
	}
	slog.Info("indexes created", "database", cfg.Database.Name)
	return nil
}
