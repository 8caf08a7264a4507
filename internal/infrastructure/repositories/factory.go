package repositories

import (
	"context"
	"errors"

	"sharecast/internal/core/ports"
	"sharecast/internal/infrastructure/repositories/memory"
	"sharecast/internal/infrastructure/repositories/postgres"
	redisrepo "sharecast/internal/infrastructure/repositories/redis"
	"sharecast/pkg/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory creates repositories with fallback support
type RepositoryFactory struct {
	redisClient  *redis.Client
	postgresPool *pgxpool.Pool
	logger       *zap.SugaredLogger
}

// NewRepositoryFactory connects to the configured backends. A backend that
// cannot be reached is logged and replaced by its in-memory fallback.
func NewRepositoryFactory(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) *RepositoryFactory {
	factory := &RepositoryFactory{logger: logger}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewClient(ctx, redisrepo.ClientOptionsFrom(cfg), logger)
		if err != nil {
			logger.Warnw("failed to connect to Redis, cross-instance events disabled", "error", err)
		} else {
			factory.redisClient = client
		}
	}

	if cfg.Postgres.Enabled {
		pool, err := postgres.NewPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns, logger)
		if err != nil {
			logger.Warnw("failed to connect to postgres, falling back to memory audit log", "error", err)
		} else {
			factory.postgresPool = pool
		}
	}

	return factory
}

// RedisClient returns the shared client, or nil when redis is not in use.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	return f.redisClient
}

// PostgresPool returns the shared pool, or nil when postgres is not in use.
func (f *RepositoryFactory) PostgresPool() *pgxpool.Pool {
	return f.postgresPool
}

// CreateAuditRepository returns the postgres audit log when connected and the
// in-memory one otherwise.
func (f *RepositoryFactory) CreateAuditRepository(ctx context.Context) ports.AuditRepository {
	if f.postgresPool != nil {
		repo := postgres.NewAuditRepository(f.postgresPool, f.logger)
		if err := repo.CreateSchema(ctx); err != nil {
			f.logger.Warnw("failed to prepare audit schema, using memory audit log", "error", err)
		} else {
			f.logger.Info("using postgres audit repository")
			return repo
		}
	}
	f.logger.Info("using memory audit repository")
	return memory.NewMemoryAuditRepository(0)
}

func (f *RepositoryFactory) Close() error {
	var errs []error
	if f.redisClient != nil {
		errs = append(errs, f.redisClient.Close())
	}
	if f.postgresPool != nil {
		f.postgresPool.Close()
	}
	return errors.Join(errs...)
}

// HealthCheck pings every connected backend.
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	var errs []error
	if f.redisClient != nil {
		errs = append(errs, f.redisClient.Ping(ctx).Err())
	}
	if f.postgresPool != nil {
		errs = append(errs, f.postgresPool.Ping(ctx))
	}
	return errors.Join(errs...)
}
