package projector

import (
	"errors"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	defaultCacheName  = "reference"
	metricCacheHits   = "projector_reference_cache_hits_total"
	metricCacheMisses = "projector_reference_cache_misses_total"
	metricCachePuts   = "projector_reference_cache_puts_total"
	labelCacheName    = "cache"
)

// ReferenceCache is a keyed lookup of previously projected reference entities.
// Implementations must be safe for concurrent use: last write wins, and a read never waits
// for a pending write.
type ReferenceCache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Put(key K, value V)
}

type cacheConfig struct {
	name             string
	metricsCollector MetricsCollector
}

// CacheOption defines a functional option for configuring an LRUReferenceCache.
type CacheOption func(*cacheConfig) error

// WithCacheName sets the name used as metrics label.
func WithCacheName(name string) CacheOption {
	return func(c *cacheConfig) error {
		c.name = name
		return nil
	}
}

// WithCacheMetrics sets the metrics collector that receives hit, miss, and put counters.
func WithCacheMetrics(collector MetricsCollector) CacheOption {
	return func(c *cacheConfig) error {
		c.metricsCollector = collector
		return nil
	}
}

// LRUReferenceCache is a bounded, thread-safe ReferenceCache that evicts the least recently used entry.
type LRUReferenceCache[K comparable, V any] struct {
	entries          *lru.Cache[K, V]
	name             string
	metricsCollector MetricsCollector
}

// NewLRUReferenceCache creates an LRUReferenceCache holding at most size entries.
func NewLRUReferenceCache[K comparable, V any](size int, options ...CacheOption) (*LRUReferenceCache[K, V], error) {
	if size <= 0 {
		return nil, ErrInvalidCacheSize
	}

	config := cacheConfig{name: defaultCacheName}
	for _, option := range options {
		if err := option(&config); err != nil {
			return nil, err
		}
	}

	entries, err := lru.New[K, V](size)
	if err != nil {
		return nil, errors.Join(ErrInvalidCacheSize, err)
	}

	return &LRUReferenceCache[K, V]{
		entries:          entries,
		name:             config.name,
		metricsCollector: config.metricsCollector,
	}, nil
}

// Get returns the entry for key. A miss is reported as false, never as an error.
func (c *LRUReferenceCache[K, V]) Get(key K) (V, bool) {
	value, ok := c.entries.Get(key)
	if ok {
		c.incrementCounter(metricCacheHits)
	} else {
		c.incrementCounter(metricCacheMisses)
	}

	return value, ok
}

// Put stores the entry for key, replacing any previous one.
func (c *LRUReferenceCache[K, V]) Put(key K, value V) {
	c.entries.Add(key, value)
	c.incrementCounter(metricCachePuts)
}

// Len returns the number of cached entries.
func (c *LRUReferenceCache[K, V]) Len() int {
	return c.entries.Len()
}

func (c *LRUReferenceCache[K, V]) incrementCounter(metric string) {
	if c.metricsCollector != nil {
		c.metricsCollector.IncrementCounter(metric, map[string]string{labelCacheName: c.name})
	}
}
