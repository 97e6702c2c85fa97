package main

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/talentcontrolhr/talentcontrol/internal/account"
	"github.com/talentcontrolhr/talentcontrol/internal/company"
	"github.com/talentcontrolhr/talentcontrol/internal/config"
	"github.com/talentcontrolhr/talentcontrol/internal/metrics"
	"github.com/talentcontrolhr/talentcontrol/internal/schedule"
	"github.com/talentcontrolhr/talentcontrol/internal/storage"
	"github.com/talentcontrolhr/talentcontrol/internal/storage/mongodb"
	"github.com/talentcontrolhr/talentcontrol/internal/storage/postgres"
)

// backend bundles the repositories of the configured persistence driver.
type backend struct {
	accounts  account.Repository
	companies company.Repository
	schedule  schedule.Repository

	// poolStats is nil for the memory driver.
	poolStats metrics.PoolStatsFunc
	// ping is nil for the memory driver.
	ping  func(ctx context.Context) error
	close func()
}

func (b *backend) Ping(ctx context.Context) error {
	return b.ping(ctx)
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.Database.Driver {
	case storage.Postgres:
		pool, err := postgres.Open(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		slog.Info("connected to database", "driver", storage.Postgres)
		return &backend{
			accounts:  account.NewPGStore(pool),
			companies: company.NewPGStore(pool),
			schedule:  schedule.NewPGStore(pool),
			poolStats: postgres.PoolStats(pool),
			ping:      pool.Ping,
			close:     pool.Close,
		}, nil

	case storage.MongoDB:
		tracker := mongodb.NewPoolTracker()
		client, db, err := mongodb.Open(ctx, cfg.Database.URL, cfg.Database.Name, tracker)
		if err != nil {
			return nil, err
		}
		slog.Info("connected to database", "driver", storage.MongoDB, "database", cfg.Database.Name)
		return &backend{
			accounts:  account.NewMongoStore(db),
			companies: company.NewMongoStore(db),
			schedule:  schedule.NewMongoStore(db),
			poolStats: tracker.Stats,
			ping: func(ctx context.Context) error {
				return client.Ping(ctx, readpref.Primary())
			},
			close: disconnect(client),
		}, nil

	case storage.Memory:
		slog.Warn("using the in-memory backend; data is lost on exit")
		return &backend{
			accounts:  account.NewMemoryStore(),
			companies: company.NewMemoryStore(),
			schedule:  schedule.NewMemoryStore(),
			close:     func() {},
		}, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
}

func disconnect(client *mongo.Client) func() {
	return func() {
		if err := client.Disconnect(context.Background()); err != nil {
			slog.Error("disconnecting from mongodb", "error", err)
		}
	}
}

// loadConfig loads and validates the configuration named by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
