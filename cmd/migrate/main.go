package main

import (
	"context"
	"time"

	mongoMigration "slotify/internal/migrations/mongo"
	postgresMigration "slotify/internal/migrations/postgres"
	"slotify/pkg/config"
)

const JobName = "slots-migration"

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()
	cfg := config.Load(JobName)
	cfg.SetStore()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting migration job", "store_driver", cfg.StoreDriver)
	switch cfg.StoreDriver {
	case config.StoreMongo:
		migrateMongo(ctx, cfg)
	case config.StorePostgres:
		migratePostgres(ctx, cfg)
	default:
		cfg.Log.Info("Nothing to migrate for store driver", "store_driver", cfg.StoreDriver)
		return
	}
	cfg.Log.Info("Migration completed successfully")
}

func migrateMongo(ctx context.Context, cfg *config.Config) {
	if err := mongoMigration.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName, cfg.Log); err != nil {
		cfg.Log.Fatal("Mongo migration failed", "error", err)
	}
}

func migratePostgres(ctx context.Context, cfg *config.Config) {
	migrator, err := postgresMigration.NewMigrator(cfg.Client.Postgres, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Postgres migrator", "error", err)
	}
	defer migrator.Close()

	if err := migrator.Run(ctx); err != nil {
		cfg.Log.Fatal("Postgres migration failed", "error", err)
	}
}
