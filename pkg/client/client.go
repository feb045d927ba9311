package client

import (
	"context"
	"time"

	"slotify/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// Client holds the shared backend connections. Only the ones selected by
// configuration are set.
type Client struct {
	Mongo    *mongo.Client
	Postgres *pgxpool.Pool
	Redis    *redis.Client
}

func NewClient() *Client {
	return &Client{}
}

// Ping checks every configured backend.
func (c *Client) Ping(ctx context.Context) error {
	if c.Mongo != nil {
		if err := c.Mongo.Ping(ctx, nil); err != nil {
			return err
		}
	}
	if c.Postgres != nil {
		if err := c.Postgres.Ping(ctx); err != nil {
			return err
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) GracefulShutdown(log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if c.Mongo != nil {
		if err := c.Mongo.Disconnect(ctx); err != nil {
			log.Error("Failed to disconnect from MongoDB", "error", err)
		} else {
			log.Info("Disconnected from MongoDB")
		}
	}
	if c.Postgres != nil {
		c.Postgres.Close()
		log.Info("Closed PostgreSQL pool")
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			log.Error("Failed to close Redis client", "error", err)
		} else {
			log.Info("Closed Redis client")
		}
	}
}
