package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"variaciones/internal/cache"
	"variaciones/internal/core"
)

const snapshotKey = "ledgers"

// CachedSource serves a snapshot of an underlying source until the cache
// entry expires. Concurrent misses share one load.
type CachedSource struct {
	source  Source
	cache   cache.Cache[Snapshot]
	key     string
	timeout time.Duration
	now     func() time.Time
	group   singleflight.Group

	// gen counts invalidations. A load only stores its snapshot if no
	// invalidation happened since it started.
	mu  sync.Mutex
	gen uint64
}

var _ Source = (*CachedSource)(nil)

// NewCachedSource wraps src. Each load is bounded by timeout; zero means
// no deadline beyond the caller's.
func NewCachedSource(src Source, c cache.Cache[Snapshot], timeout time.Duration) *CachedSource {
	return &CachedSource{
		source:  src,
		cache:   c,
		key:     snapshotKey + ":" + src.Name(),
		timeout: timeout,
		now:     time.Now,
	}
}

func (s *CachedSource) Name() string { return s.source.Name() }

// Load implements Source using the cached snapshot.
func (s *CachedSource) Load(ctx context.Context) (core.Ledgers, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return core.Ledgers{}, err
	}
	return snap.Ledgers, nil
}

// Snapshot returns the cached snapshot, loading it on a miss.
func (s *CachedSource) Snapshot(ctx context.Context) (Snapshot, error) {
	if snap, ok := s.cache.Get(ctx, s.key); ok {
		slog.DebugContext(ctx, "Ledger snapshot cache hit", "component", "ledger", "source", s.Name())
		return snap, nil
	}
	return s.load(ctx)
}

// Invalidate drops the cached snapshot. The next read reloads.
func (s *CachedSource) Invalidate(ctx context.Context) {
	s.mu.Lock()
	s.gen++
	s.group.Forget(s.key)
	s.cache.Delete(ctx, s.key)
	s.mu.Unlock()
	slog.InfoContext(ctx, "Ledger snapshot invalidated", "component", "ledger", "source", s.Name())
}

// Refresh discards the cached snapshot and loads a new one.
func (s *CachedSource) Refresh(ctx context.Context) (Snapshot, error) {
	s.Invalidate(ctx)
	return s.load(ctx)
}

func (s *CachedSource) load(ctx context.Context) (Snapshot, error) {
	v, err, shared := s.group.Do(s.key, func() (interface{}, error) {
		gen := s.generation()

		// The load outlives a cancelled caller so other waiters still get it.
		fetchCtx := context.WithoutCancel(ctx)
		if s.timeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(fetchCtx, s.timeout)
			defer cancel()
		}

		start := s.now()
		ledgers, err := s.source.Load(fetchCtx)
		if err != nil {
			slog.ErrorContext(ctx, "Ledger load failed",
				"component", "ledger",
				"source", s.Name(),
				"duration", time.Since(start),
				"error", err)
			return nil, fmt.Errorf("load %s: %w", s.Name(), err)
		}
		if err := ledgers.Validate(); err != nil {
			slog.ErrorContext(ctx, "Ledger rejected", "component", "ledger", "source", s.Name(), "error", err)
			return nil, fmt.Errorf("load %s: %w", s.Name(), err)
		}

		snap := Snapshot{Ledgers: ledgers, Source: s.Name(), FetchedAt: s.now()}
		if !s.store(fetchCtx, gen, snap) {
			slog.InfoContext(ctx, "Ledger snapshot invalidated during load, not cached",
				"component", "ledger",
				"source", s.Name())
		}

		slog.InfoContext(ctx, "Ledger snapshot loaded",
			"component", "ledger",
			"source", s.Name(),
			"real_rows", len(ledgers.Real),
			"budget_rows", len(ledgers.Budget),
			"duration", time.Since(start))
		return snap, nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	if shared {
		slog.DebugContext(ctx, "Ledger load shared with concurrent caller", "component", "ledger", "source", s.Name())
	}
	return v.(Snapshot), nil
}

func (s *CachedSource) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// store caches snap unless an invalidation happened after gen was read.
func (s *CachedSource) store(ctx context.Context, gen uint64, snap Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false
	}
	s.cache.Set(ctx, s.key, snap)
	return true
}
