package redis

import (
	"context"
	"fmt"
	"time"

	"sharecast/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const clientName = "sharecast"

// ClientOptions configures the client shared by the event bus and the
// health checks.
type ClientOptions struct {
	Address  string
	Password string
	DB       int
	PoolSize int
}

func ClientOptionsFrom(cfg *config.Config) ClientOptions {
	return ClientOptions{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}
}

// redisOptions keeps one connection spare for the long-lived event
// subscription on top of the publishing pool.
func (o ClientOptions) redisOptions() *redis.Options {
	poolSize := o.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}
	return &redis.Options{
		Addr:         o.Address,
		Password:     o.Password,
		DB:           o.DB,
		ClientName:   clientName,
		PoolSize:     poolSize + 1,
		MinIdleConns: 1,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
}

// NewClient connects to redis and pings it once. A client that cannot reach
// the server is closed and an error returned so callers can fall back.
func NewClient(ctx context.Context, opts ClientOptions, logger *zap.SugaredLogger) (*redis.Client, error) {
	client := redis.NewClient(opts.redisOptions())

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis at %s unreachable: %w", opts.Address, err)
	}

	logger.Infow("connected to redis", "address", opts.Address, "db", opts.DB, "pool_size", opts.PoolSize)
	return client, nil
}
