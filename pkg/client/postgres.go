package client

import (
	"context"
	"time"

	"slotify/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func (c *Client) SetPostgres(log *logger.Logger, dsn string, connTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), connTimeout)
	defer cancel()

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		log.Fatal("Invalid PostgreSQL DSN", "error", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", "error", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		log.Fatal("Failed to ping PostgreSQL", "error", err)
	}

	log.Info("Successfully connected to PostgreSQL",
		"host", poolCfg.ConnConfig.Host,
		"database", poolCfg.ConnConfig.Database,
		"max_conns", poolCfg.MaxConns,
	)
	c.Postgres = pool
}
