// Package cache stores rendered index reports in Redis, keyed by a
// fingerprint of the document and the build options, so repeated requests
// for the same document skip the build.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/indexgen/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/indexgen/pkg/resilience"
)

const keyPrefix = "indexgen:report:"

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
	CountByPattern(ctx context.Context, pattern string) (int64, error)
}

// Entry is a cached report together with the counters of the build that
// produced it.
type Entry struct {
	Report      []byte `json:"report"`
	Lines       int    `json:"lines"`
	Words       int    `json:"words"`
	Occurrences int    `json:"occurrences"`
	Skipped     int    `json:"skipped"`
}

// Stats summarises cache effectiveness. Breaker is the state of the circuit
// guarding Redis.
type Stats struct {
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
	Keys    int64  `json:"keys"`
	Breaker string `json:"breaker"`
}

// ReportCache is a read-through cache for index reports. While Redis keeps
// failing, a circuit breaker turns every lookup into an immediate miss.
type ReportCache struct {
	store   Store
	breaker *resilience.CircuitBreaker
	ttl     time.Duration
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a ReportCache. m may be nil.
func New(store Store, cfg config.RedisConfig, m *metrics.Metrics) *ReportCache {
	c := &ReportCache{
		store:   store,
		ttl:     cfg.CacheTTL,
		metrics: m,
		logger:  slog.Default().With("component", "report-cache"),
	}
	c.breaker = resilience.NewCircuitBreaker("report-cache", resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.BreakerFailures,
		Cooldown:         cfg.BreakerCooldown,
		OnStateChange:    c.breakerChanged,
	})
	return c
}

func (c *ReportCache) breakerChanged(from, to resilience.State) {
	switch to {
	case resilience.StateOpen:
		c.logger.Warn("redis unhealthy, serving fresh builds only", "previous", from.String())
	case resilience.StateClosed:
		c.logger.Info("redis healthy again, caching resumed")
	}
	if c.metrics != nil {
		c.metrics.CacheBreakerState.Set(float64(to))
	}
}

// Key fingerprints a document and the options that influence its report.
func Key(doc []byte, opts config.IndexerConfig) string {
	return fmt.Sprintf("%s%016x:%d:w%d:%s:strip=%t",
		keyPrefix, xxh3.Hash(doc), len(doc), opts.Workers, opts.Unindexable, opts.StripPunctuation)
}

// Get returns the cached entry for key. Redis failures count as misses.
func (c *ReportCache) Get(ctx context.Context, key string) (*Entry, bool) {
	var data string
	found := false
	err := c.breaker.Execute(func() error {
		v, err := c.store.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			return nil
		}
		if err != nil {
			return err
		}
		data, found = v, true
		return nil
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Error("cache get failed", "key", key, "error", err)
	}
	if !found {
		c.miss()
		return nil, false
	}
	var entry Entry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hit()
	c.logger.Debug("cache hit", "key", key)
	return &entry, true
}

// Set stores entry under key with the configured TTL.
func (c *ReportCache) Set(ctx context.Context, key string, entry *Entry) {
	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached entry for key, or computes, stores and
// returns it. Concurrent callers for the same key share one computation.
// The boolean reports whether the entry came from the cache.
//
// The shared computation receives ctx without its cancellation, so a caller
// that goes away does not fail the others waiting on the same key. Each
// caller stops waiting when its own ctx ends.
func (c *ReportCache) GetOrCompute(
	ctx context.Context,
	key string,
	computeFn func(ctx context.Context) (*Entry, error),
) (*Entry, bool, error) {
	if entry, ok := c.Get(ctx, key); ok {
		return entry, true, nil
	}
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		entry, err := computeFn(shared)
		if err != nil {
			return nil, err
		}
		c.Set(shared, key, entry)
		return entry, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(*Entry), false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Invalidate deletes every cached report and returns how many were removed.
// A successful flush proves Redis is reachable, so it also closes the
// breaker.
func (c *ReportCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.breaker.Reset()
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return deleted, nil
}

// Stats returns hit and miss counters and the number of cached reports.
func (c *ReportCache) Stats(ctx context.Context) (Stats, error) {
	keys, err := c.store.CountByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return Stats{}, fmt.Errorf("counting cache keys: %w", err)
	}
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Keys:    keys,
		Breaker: c.breaker.State().String(),
	}, nil
}

// Healthy reports whether the cache is currently talking to Redis.
func (c *ReportCache) Healthy() bool {
	return c.breaker.Allow()
}

func (c *ReportCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *ReportCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}
