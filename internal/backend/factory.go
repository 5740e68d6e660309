package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"luxstock/internal/cache"
	"luxstock/internal/core"
	"luxstock/internal/store/memory"
	"luxstock/internal/store/postgres"
	"luxstock/internal/store/sqlite"
)

const redisKeyPrefix = "luxstock:items:"

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case PostgresBackend:
		return f.createPostgresBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := sqlite.NewRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Store:   repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createPostgresBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := postgres.NewRepository(ctx, config.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
	}

	f.logger.Info("Initialized Postgres backend")

	return &BackendResult{
		Store:   repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	st, err := memory.NewFromFile(config.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("seed memory backend: %w", err)
	}

	f.logger.Info("Initialized memory backend", "seed_file", config.SeedFile)

	return &BackendResult{
		Store:   st,
		Cleanup: nil, // Nothing to release
	}, nil
}

// CreateCache implements Factory.CreateCache. An unreachable Redis is not
// fatal: the service keeps working against the store alone.
func (f *DefaultFactory) CreateCache(ctx context.Context, config CacheConfig) (*CacheResult, error) {
	switch config.Type {
	case LRUCache:
		// Budgeted by cached items so yearly lists count for their months
		lru := cache.NewWeightedLRUCache(config.Size, config.MaxItems, config.TTL, cache.ItemCountWeight[core.RawItem])
		f.logger.Info("Initialized LRU period cache",
			"size", config.Size, "max_items", config.MaxItems, "ttl", config.TTL)
		return &CacheResult{Cache: lru, Expirable: lru}, nil

	case RedisCache:
		client := redis.NewClient(&redis.Options{
			Addr:     config.RedisAddr,
			Password: config.RedisPassword,
			DB:       config.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			f.logger.Warn("Redis unreachable, cache lookups will miss until it recovers",
				"addr", config.RedisAddr, "error", err)
		} else {
			f.logger.Info("Initialized Redis period cache", "addr", config.RedisAddr, "ttl", config.TTL)
		}
		return &CacheResult{
			Cache:   cache.NewRedisCache[[]core.RawItem](client, redisKeyPrefix, config.TTL, f.logger),
			Cleanup: client.Close,
		}, nil

	case NoCache:
		f.logger.Info("Period cache disabled")
		return &CacheResult{Cache: cache.Noop[[]core.RawItem]{}}, nil

	default:
		return nil, fmt.Errorf("unsupported cache type: %s", config.Type)
	}
}
