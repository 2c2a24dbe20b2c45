package prices

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/indexmodel/internal/calendar"
	"github.com/wonny/indexmodel/pkg/logger"
	"github.com/wonny/indexmodel/pkg/redis"
)

// TableLoader loads the prices between from and to (inclusive).
// A zero from or to leaves that side unbounded.
type TableLoader interface {
	LoadTable(ctx context.Context, from, to time.Time) (*Table, error)
	Source() string
}

// FileLoader loads prices from a CSV file
type FileLoader struct {
	Path string
}

// LoadTable reads the file and restricts it to [from, to]
func (l FileLoader) LoadTable(_ context.Context, from, to time.Time) (*Table, error) {
	table, err := LoadCSVFile(l.Path)
	if err != nil {
		return nil, err
	}
	if from.IsZero() && to.IsZero() {
		return table, nil
	}

	first, last := table.Range()
	if from.IsZero() {
		from = first
	}
	if to.IsZero() {
		to = last
	}
	return table.Slice(from, to)
}

// Source names the loader for logs and cache keys
func (l FileLoader) Source() string {
	return "csv:" + l.Path
}

// CachedLoader keeps loaded tables in Redis
type CachedLoader struct {
	next   TableLoader
	cache  *redis.Cache
	ttl    time.Duration
	logger *logger.Logger
}

// NewCachedLoader wraps next with a Redis cache. A disabled Redis client makes it a pass-through.
func NewCachedLoader(next TableLoader, cache *redis.Cache, ttl time.Duration, log *logger.Logger) *CachedLoader {
	return &CachedLoader{next: next, cache: cache, ttl: ttl, logger: log}
}

// LoadTable serves from cache when possible, otherwise loads and stores the table
func (l *CachedLoader) LoadTable(ctx context.Context, from, to time.Time) (*Table, error) {
	key := redis.PriceTableKey(l.next.Source(), cacheDate(from), cacheDate(to))

	var cached Table
	found, err := l.cache.Get(ctx, key, &cached)
	if err != nil {
		l.logger.WithError(err).WithField("key", key).Warn("Price cache read failed, loading from source")
	}
	if found {
		l.logger.WithField("key", key).Debug("Price table served from cache")
		return &cached, nil
	}

	table, err := l.next.LoadTable(ctx, from, to)
	if err != nil {
		return nil, err
	}

	if err := l.cache.Set(ctx, key, table, l.ttl); err != nil {
		l.logger.WithError(err).WithField("key", key).Warn("Price cache write failed")
	}
	return table, nil
}

// Source names the wrapped loader
func (l *CachedLoader) Source() string {
	return l.next.Source()
}

// Invalidate drops the cached table for [from, to]
func (l *CachedLoader) Invalidate(ctx context.Context, from, to time.Time) error {
	key := redis.PriceTableKey(l.next.Source(), cacheDate(from), cacheDate(to))
	if err := l.cache.Delete(ctx, key); err != nil {
		return fmt.Errorf("invalidate %s: %w", key, err)
	}
	return nil
}

func cacheDate(d time.Time) string {
	if d.IsZero() {
		return "open"
	}
	return d.Format(calendar.DateLayout)
}
