package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"slotify/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var migrationsFS embed.FS

const migrationsDir = "sql"

// Migrator applies the embedded goose migrations through a pgx pool.
type Migrator struct {
	db  *sql.DB
	log *logger.Logger
}

func NewMigrator(pool *pgxpool.Pool, log *logger.Logger) (*Migrator, error) {
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	goose.SetBaseFS(migrationsFS)

	return &Migrator{
		db:  stdlib.OpenDBFromPool(pool),
		log: log,
	}, nil
}

func (mg *Migrator) Run(ctx context.Context) error {
	mg.log.Info("Applying Postgres migrations")

	if err := goose.UpContext(ctx, mg.db, migrationsDir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, err := mg.Version(ctx)
	if err != nil {
		return err
	}
	mg.log.Info("Postgres migrations applied", "version", version)
	return nil
}

func (mg *Migrator) Version(ctx context.Context) (int64, error) {
	version, err := goose.GetDBVersionContext(ctx, mg.db)
	if err != nil {
		return 0, fmt.Errorf("get version: %w", err)
	}
	return version, nil
}

// Close releases the sql.DB wrapper; the pool stays open.
func (mg *Migrator) Close() error {
	return mg.db.Close()
}
