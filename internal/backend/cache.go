package backend

import (
	"context"
	"fmt"
	"time"

	"variaciones/internal/cache"
	"variaciones/internal/ledger"
)

// CacheConfig selects where ledger snapshots are kept.
type CacheConfig struct {
	Type       string // "memory" or "redis"
	TTL        time.Duration
	MaxEntries int
	RedisAddr  string
	KeyPrefix  string
}

// CacheResult holds the snapshot cache and its cleanup.
type CacheResult struct {
	Cache   cache.Cache[ledger.Snapshot]
	Cleanup CleanupFunc
	// Local is set for in-process caches that need periodic purging.
	Local *cache.LRUCache[ledger.Snapshot]
}

// NewSnapshotCache builds the snapshot cache for cfg.
func NewSnapshotCache(ctx context.Context, cfg CacheConfig) (*CacheResult, error) {
	switch cfg.Type {
	case "", "memory":
		lru := cache.NewLRUCache[ledger.Snapshot](cfg.MaxEntries, cfg.TTL)
		return &CacheResult{Cache: lru, Local: lru}, nil
	case "redis":
		client, err := cache.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect snapshot cache: %w", err)
		}
		prefix := cfg.KeyPrefix
		if prefix == "" {
			prefix = "variaciones:"
		}
		return &CacheResult{
			Cache:   cache.NewRedisCache[ledger.Snapshot](client, prefix, cfg.TTL),
			Cleanup: client.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Type)
	}
}
