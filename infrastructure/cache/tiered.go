package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Stats is the cache's self-reported hit/miss accounting.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Sets    int64   `json:"sets"`
	Deletes int64   `json:"deletes"`
	Errors  int64   `json:"errors"`
	HitRate float64 `json:"hitRate"`
}

// TieredCache composes the external and in-process tiers. Reads try the
// external tier first and fall back to the in-process tier; a failure in
// one tier never propagates past it. The in-process tier is the source of
// truth for Set: a write succeeds iff the local write succeeds.
type TieredCache struct {
	external Store // nil when Redis is disabled or unreachable
	local    Store
	logger   *zap.Logger

	mu      sync.Mutex
	hits    int64
	misses  int64
	sets    int64
	deletes int64
	errors  int64

	onHit  func()
	onMiss func()
}

// Option configures a TieredCache.
type Option func(*TieredCache)

// WithStatsCallbacks registers hit/miss callbacks, used to mirror cache
// traffic into prometheus counters.
func WithStatsCallbacks(onHit, onMiss func()) Option {
	return func(c *TieredCache) {
		c.onHit = onHit
		c.onMiss = onMiss
	}
}

// NewTieredCache composes the tiers. external may be nil.
func NewTieredCache(external, local Store, logger *zap.Logger, opts ...Option) *TieredCache {
	c := &TieredCache{
		external: external,
		local:    local,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached bytes for a key. A value found in either tier is a
// hit; absence in both is a miss. TTL is enforced independently per tier,
// so the first tier to answer wins even if the other has expired.
func (c *TieredCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c.external != nil {
		value, found, err := c.external.Get(ctx, key)
		if err != nil {
			c.recordError()
			c.logger.Debug("External cache get failed", zap.String("key", key), zap.Error(err))
		} else if found {
			c.recordHit()
			return value, true
		}
	}

	value, found, err := c.local.Get(ctx, key)
	if err != nil {
		c.recordError()
		c.logger.Warn("Local cache get failed", zap.String("key", key), zap.Error(err))
	}
	if found {
		c.recordHit()
		return value, true
	}

	c.recordMiss()
	return nil, false
}

// GetJSON unmarshals a cached value into dest and reports whether there was
// a hit.
func (c *TieredCache) GetJSON(ctx context.Context, key string, dest interface{}) bool {
	value, found := c.Get(ctx, key)
	if !found {
		return false
	}
	if err := json.Unmarshal(value, dest); err != nil {
		c.recordError()
		c.logger.Warn("Cached value failed to unmarshal", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Set serializes the value and writes it to both tiers. The external write
// is best-effort; the call fails only when the local write fails.
func (c *TieredCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		c.recordError()
		return err
	}
	return c.SetBytes(ctx, key, data, ttl)
}

// SetBytes writes already-serialized bytes to both tiers.
func (c *TieredCache) SetBytes(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if c.external != nil {
		if err := c.external.Set(ctx, key, data, ttl); err != nil {
			c.recordError()
			c.logger.Debug("External cache set failed", zap.String("key", key), zap.Error(err))
		}
	}

	if err := c.local.Set(ctx, key, data, ttl); err != nil {
		c.recordError()
		return err
	}

	c.mu.Lock()
	c.sets++
	c.mu.Unlock()
	return nil
}

// Delete removes an exact key from both tiers.
func (c *TieredCache) Delete(ctx context.Context, key string) {
	if c.external != nil {
		if err := c.external.Delete(ctx, key); err != nil {
			c.recordError()
			c.logger.Debug("External cache delete failed", zap.String("key", key), zap.Error(err))
		}
	}
	if err := c.local.Delete(ctx, key); err != nil {
		c.recordError()
	}

	c.mu.Lock()
	c.deletes++
	c.mu.Unlock()
}

// DeletePattern removes all keys matching the glob from both tiers and
// returns the count removed from the local tier plus any external
// deletions. No matches is a clean zero.
func (c *TieredCache) DeletePattern(ctx context.Context, pattern string) int {
	total := 0

	if c.external != nil {
		n, err := c.external.DeletePattern(ctx, pattern)
		if err != nil {
			c.recordError()
			c.logger.Debug("External cache pattern delete failed", zap.String("pattern", pattern), zap.Error(err))
		}
		total += n
	}

	n, err := c.local.DeletePattern(ctx, pattern)
	if err != nil {
		c.recordError()
		c.logger.Warn("Local cache pattern delete failed", zap.String("pattern", pattern), zap.Error(err))
	}
	total += n

	if total > 0 {
		c.mu.Lock()
		c.deletes += int64(total)
		c.mu.Unlock()
	}
	return total
}

// Exists reports whether either tier holds an unexpired value.
func (c *TieredCache) Exists(ctx context.Context, key string) bool {
	if c.external != nil {
		found, err := c.external.Exists(ctx, key)
		if err != nil {
			c.recordError()
		} else if found {
			return true
		}
	}
	found, _ := c.local.Exists(ctx, key)
	return found
}

// Clear empties both tiers. Statistics are preserved.
func (c *TieredCache) Clear(ctx context.Context) {
	if c.external != nil {
		if err := c.external.Clear(ctx); err != nil {
			c.recordError()
			c.logger.Warn("External cache clear failed", zap.Error(err))
		}
	}
	if err := c.local.Clear(ctx); err != nil {
		c.recordError()
	}
}

// Stats returns a snapshot of the counters. HitRate is hits/(hits+misses),
// or 0 when nothing has been read yet.
func (c *TieredCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{
		Hits:    c.hits,
		Misses:  c.misses,
		Sets:    c.sets,
		Deletes: c.deletes,
		Errors:  c.errors,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

func (c *TieredCache) recordHit() {
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
	if c.onHit != nil {
		c.onHit()
	}
}

func (c *TieredCache) recordMiss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
	if c.onMiss != nil {
		c.onMiss()
	}
}

func (c *TieredCache) recordError() {
	c.mu.Lock()
	c.errors++
	c.mu.Unlock()
}
