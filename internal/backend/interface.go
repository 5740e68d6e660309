package backend

import (
	"context"
	"time"

	"luxstock/internal/cache"
	"luxstock/internal/core"
	"luxstock/internal/store"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the store instance and optional cleanup function
type BackendResult struct {
	Store   store.Store
	Cleanup CleanupFunc
}

// CacheResult contains the period cache and optional cleanup function.
// Expirable is set for in-process caches that need periodic sweeping.
type CacheResult struct {
	Cache     cache.Cache[[]core.RawItem]
	Expirable cache.Cleaner
	Cleanup   CleanupFunc
}

// Factory creates stores and caches based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	CreateCache(ctx context.Context, config CacheConfig) (*CacheResult, error)
}

// Config holds configuration for store creation
type Config struct {
	Type BackendType

	// Memory specific
	SeedFile string

	// SQLite specific
	SQLiteDBPath string

	// Postgres specific
	PostgresDSN string
}

// CacheConfig holds configuration for the period cache
type CacheConfig struct {
	Type          CacheType
	Size          int
	MaxItems      int
	TTL           time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// BackendType represents the type of store
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}

// CacheType represents the period cache implementation
type CacheType string

const (
	LRUCache   CacheType = "lru"
	RedisCache CacheType = "redis"
	NoCache    CacheType = "none"
)

func (ct CacheType) IsValid() bool {
	switch ct {
	case LRUCache, RedisCache, NoCache:
		return true
	default:
		return false
	}
}
