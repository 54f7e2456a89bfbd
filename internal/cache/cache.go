// File: internal/cache/cache.go
package cache

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/marketpulse/orchestrator/internal/metrics"
	"github.com/marketpulse/orchestrator/pkg/utils"
)

// Store defines the in-process cache interface. A Store instance has a
// lifetime tied to the hosting process and is injected into consumers;
// nothing in it survives a restart.
type Store interface {
	Get(key string) *GetResult
	Set(key string, value interface{}, opts ...SetOption)
	Delete(key string) bool
	Flush(pattern string) int
	InvalidateByTag(tags ...string) int
	Sweep() int
	Stats() *Stats
}

// MissReason explains a cache miss.
type MissReason string

const (
	MissAbsent  MissReason = "absent"
	MissExpired MissReason = "expired"
)

// GetResult is the outcome of a cache read.
type GetResult struct {
	Hit          bool          `json:"hit"`
	Value        interface{}   `json:"value,omitempty"`
	TTLRemaining time.Duration `json:"ttl_remaining,omitempty"`
	HitCount     int64         `json:"hit_count,omitempty"`
	Reason       MissReason    `json:"reason,omitempty"`
}

// Entry is a single cached value with expiry and tag metadata.
type Entry struct {
	Key       string        `json:"key"`
	Value     interface{}   `json:"value"`
	TTL       time.Duration `json:"ttl"`
	CreatedAt time.Time     `json:"created_at"`
	ExpiresAt time.Time     `json:"expires_at"`
	HitCount  int64         `json:"hit_count"`
	Tags      []string      `json:"tags,omitempty"`
}

// Stats provides cache statistics.
type Stats struct {
	Entries       int     `json:"entries"`
	Capacity      int     `json:"capacity"`
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	HitRate       float64 `json:"hit_rate"`
	Evictions     int64   `json:"evictions"`
	Expirations   int64   `json:"expirations"`
	MemoryBytes   int64   `json:"memory_bytes_estimate"`
	DefaultTTLSec float64 `json:"default_ttl_seconds"`
}

// Config holds cache configuration.
type Config struct {
	Capacity   int           `json:"capacity"`
	DefaultTTL time.Duration `json:"default_ttl"`
}

// SetOption customizes a single Set call.
type SetOption func(*setOptions)

type setOptions struct {
	ttl  time.Duration
	tags []string
}

// WithTTL overrides the default TTL for this entry.
func WithTTL(ttl time.Duration) SetOption {
	return func(o *setOptions) { o.ttl = ttl }
}

// WithTags labels the entry for bulk invalidation.
func WithTags(tags ...string) SetOption {
	return func(o *setOptions) { o.tags = tags }
}

// recencyUnit is the weight one hit adds to an entry's eviction score.
// Eviction picks the entry with the lowest created_at + hits*unit, an
// approximation of recency rather than a strict access-ordered LRU.
const recencyUnit = time.Minute

// MemoryCache implements Store with a single locked table.
type MemoryCache struct {
	config  *Config
	logger  *logrus.Logger
	metrics *metrics.Manager

	mu      sync.RWMutex
	entries map[string]*Entry

	hits        int64
	misses      int64
	evictions   int64
	expirations int64
}

// NewMemoryCache creates a new in-process cache
func NewMemoryCache(config *Config, metricsManager *metrics.Manager) *MemoryCache {
	if config.Capacity <= 0 {
		config.Capacity = 10000
	}
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = time.Hour
	}

	return &MemoryCache{
		config:  config,
		logger:  utils.GetLogger(),
		metrics: metricsManager,
		entries: make(map[string]*Entry),
	}
}

// Get returns the cached value for key. Expired entries are evicted lazily
// and reported as a miss with reason "expired". Reads take the shared lock
// except when an expired entry has to be removed.
func (c *MemoryCache) Get(key string) *GetResult {
	now := time.Now()

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		c.recordMiss(MissAbsent)
		return &GetResult{Hit: false, Reason: MissAbsent}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Re-check under the write lock; a concurrent sweep may have removed it.
	entry, ok = c.entries[key]
	if !ok {
		c.misses++
		c.recordMiss(MissAbsent)
		return &GetResult{Hit: false, Reason: MissAbsent}
	}

	if now.After(entry.ExpiresAt) {
		delete(c.entries, key)
		c.misses++
		c.expirations++
		c.recordMiss(MissExpired)
		return &GetResult{Hit: false, Reason: MissExpired}
	}

	entry.HitCount++
	c.hits++
	if c.metrics != nil {
		c.metrics.GetPrometheusMetrics().RecordCacheHit()
	}

	return &GetResult{
		Hit:          true,
		Value:        entry.Value,
		TTLRemaining: entry.ExpiresAt.Sub(now),
		HitCount:     entry.HitCount,
	}
}

func (c *MemoryCache) recordMiss(reason MissReason) {
	if c.metrics != nil {
		c.metrics.GetPrometheusMetrics().RecordCacheMiss(string(reason))
	}
}

// Set stores a value under key, applying the default TTL when none is
// given. The capacity check, eviction and insert form one critical section
// so concurrent writers cannot overshoot the cap.
func (c *MemoryCache) Set(key string, value interface{}, opts ...SetOption) {
	options := &setOptions{ttl: c.config.DefaultTTL}
	for _, opt := range opts {
		opt(options)
	}
	if options.ttl <= 0 {
		options.ttl = c.config.DefaultTTL
	}

	now := time.Now()
	entry := &Entry{
		Key:       key,
		Value:     value,
		TTL:       options.ttl,
		CreatedAt: now,
		ExpiresAt: now.Add(options.ttl),
		Tags:      options.tags,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.config.Capacity {
		c.evictOneLocked()
	}

	c.entries[key] = entry
}

// evictOneLocked removes the entry with the lowest recency score.
// Must be called with the write lock held.
func (c *MemoryCache) evictOneLocked() {
	var victimKey string
	var victimScore time.Time
	first := true

	for key, entry := range c.entries {
		score := entry.CreatedAt.Add(time.Duration(entry.HitCount) * recencyUnit)
		if first || score.Before(victimScore) {
			victimKey = key
			victimScore = score
			first = false
		}
	}

	if victimKey != "" {
		delete(c.entries, victimKey)
		c.evictions++
		if c.metrics != nil {
			c.metrics.GetPrometheusMetrics().RecordCacheEviction()
		}
		c.logger.WithFields(logrus.Fields{
			"key":     victimKey,
			"entries": len(c.entries),
		}).Debug("Cache entry evicted")
	}
}

// Delete removes a single entry, reporting whether it existed.
func (c *MemoryCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	return true
}

// Flush removes entries matching a glob pattern and returns the number
// removed. An empty pattern or "*" removes everything and also resets the
// hit/miss/eviction counters.
func (c *MemoryCache) Flush(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pattern == "" || pattern == "*" {
		removed := len(c.entries)
		c.entries = make(map[string]*Entry)
		c.hits = 0
		c.misses = 0
		c.evictions = 0
		c.expirations = 0
		c.logger.WithField("removed", removed).Info("Cache flushed")
		return removed
	}

	removed := 0
	for key := range c.entries {
		if utils.MatchPattern(pattern, key) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// InvalidateByTag removes every entry whose tag set intersects the given
// tags and returns the number removed. Used when underlying source data
// changes.
func (c *MemoryCache) InvalidateByTag(tags ...string) int {
	if len(tags) == 0 {
		return 0
	}

	tagSet := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tagSet[tag] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		for _, tag := range entry.Tags {
			if _, ok := tagSet[tag]; ok {
				delete(c.entries, key)
				removed++
				break
			}
		}
	}

	if removed > 0 {
		c.logger.WithFields(logrus.Fields{
			"tags":    tags,
			"removed": removed,
		}).Debug("Cache entries invalidated by tag")
	}

	return removed
}

// Sweep removes all expired entries in one step and returns the number
// removed. It is invoked by the process supervisor on a timer and can be
// called directly in tests.
func (c *MemoryCache) Sweep() int {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	c.expirations += int64(removed)

	if removed > 0 {
		c.logger.WithFields(logrus.Fields{
			"removed": removed,
			"entries": len(c.entries),
		}).Debug("Cache sweep completed")
	}

	return removed
}

// Stats returns cache statistics.
func (c *MemoryCache) Stats() *Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return &Stats{
		Entries:       len(c.entries),
		Capacity:      c.config.Capacity,
		Hits:          c.hits,
		Misses:        c.misses,
		HitRate:       hitRate,
		Evictions:     c.evictions,
		Expirations:   c.expirations,
		MemoryBytes:   c.estimateMemoryLocked(),
		DefaultTTLSec: c.config.DefaultTTL.Seconds(),
	}
}

// estimateMemoryLocked is a rough per-entry accounting, not an exact
// measurement. Must be called with at least the read lock held.
func (c *MemoryCache) estimateMemoryLocked() int64 {
	const entryOverhead = 128
	var size int64
	for key, entry := range c.entries {
		size += int64(len(key)) + entryOverhead
		if s, ok := entry.Value.(string); ok {
			size += int64(len(s))
		} else if b, ok := entry.Value.([]byte); ok {
			size += int64(len(b))
		} else {
			size += 64
		}
		for _, tag := range entry.Tags {
			size += int64(len(tag))
		}
	}
	return size
}
