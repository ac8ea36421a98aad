// Package cache holds short-lived rendered feed responses.
package cache

import (
	"github.com/coocood/freecache"
	"go.uber.org/zap"

	"github.com/sujalbistaa/allgood/internal/metrics"
)

type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Clear()
}

type FreeCache struct {
	cache *freecache.Cache
	ttl   int
}

// New returns a freecache-backed Cache of sizeMB megabytes whose entries
// live ttlSeconds, or a no-op cache when disabled.
func New(enabled bool, sizeMB, ttlSeconds int, logger *zap.Logger) Cache {
	if !enabled || sizeMB <= 0 || ttlSeconds <= 0 {
		logger.Info("feed cache disabled")
		return noopCache{}
	}

	logger.Info("feed cache initialized", zap.Int("sizeMB", sizeMB), zap.Int("ttlSeconds", ttlSeconds))
	return &FreeCache{
		cache: freecache.NewCache(sizeMB * 1024 * 1024),
		ttl:   ttlSeconds,
	}
}

func (c *FreeCache) Get(key string) ([]byte, bool) {
	val, err := c.cache.Get([]byte(key))
	if err != nil {
		return nil, false
	}
	return val, true
}

func (c *FreeCache) Set(key string, value []byte) {
	_ = c.cache.Set([]byte(key), value, c.ttl)
}

func (c *FreeCache) Clear() { c.cache.Clear() }

type noopCache struct{}

func (noopCache) Get(string) ([]byte, bool) { return nil, false }
func (noopCache) Set(string, []byte)        {}
func (noopCache) Clear()                    {}

// Instrumented counts hits and misses of an inner cache.
type Instrumented struct {
	inner   Cache
	metrics metrics.Provider
}

// WithMetrics wraps c so every Get is counted. A disabled cache is
// returned as is so it does not report phantom misses.
func WithMetrics(c Cache, m metrics.Provider) Cache {
	if _, ok := c.(noopCache); ok {
		return c
	}
	return &Instrumented{inner: c, metrics: m}
}

func (c *Instrumented) Get(key string) ([]byte, bool) {
	val, ok := c.inner.Get(key)
	if ok {
		c.metrics.IncCacheHits()
	} else {
		c.metrics.IncCacheMisses()
	}
	return val, ok
}

func (c *Instrumented) Set(key string, value []byte) { c.inner.Set(key, value) }

func (c *Instrumented) Clear() { c.inner.Clear() }
