// Package prefixcache implements an append-only cache keyed by geohash
// prefix and answered by longest matching prefix.
//
// Entries are partitioned by a scope (a user id for named locations, Global
// for city and country tables). A lookup for one scope never sees entries of
// another. Once written a key is never overwritten or evicted.
package prefixcache

import (
	"sync"

	"github.com/paincake00/geotrack/internal/metrics"
)

// Global is the scope of caches that are not partitioned.
type Global struct{}

// Value is a cached answer. Found is false for a "known absent" entry.
type Value struct {
	RegionID int64
	Found    bool
}

// ID returns the region id, or nil for a negative entry.
func (v Value) ID() *int64 {
	if !v.Found {
		return nil
	}
	id := v.RegionID
	return &id
}

type Cache[S comparable] struct {
	name    string
	mu      sync.RWMutex
	entries map[S]map[string]Value
	size    int
	// longest cached key per scope; bounds the prefix probe in Lookup
	maxLen map[S]int
}

// New creates an empty cache. name labels its hit/miss metrics.
func New[S comparable](name string) *Cache[S] {
	return &Cache[S]{
		name:    name,
		entries: make(map[S]map[string]Value),
		maxLen:  make(map[S]int),
	}
}

func (c *Cache[S]) Name() string { return c.name }

// Lookup returns the value stored under the longest cached key that is a
// prefix of geohash. ok is false when no cached key is a prefix.
func (c *Cache[S]) Lookup(scope S, geohash string) (v Value, ok bool) {
	c.mu.RLock()
	v, ok = c.lookupLocked(scope, geohash)
	c.mu.RUnlock()

	if ok {
		metrics.CacheHitsTotal.WithLabelValues(c.name).Inc()
	} else {
		metrics.CacheMissesTotal.WithLabelValues(c.name).Inc()
	}
	return v, ok
}

func (c *Cache[S]) lookupLocked(scope S, geohash string) (Value, bool) {
	bucket := c.entries[scope]
	if len(bucket) == 0 {
		return Value{}, false
	}
	n := len(geohash)
	if m := c.maxLen[scope]; m < n {
		n = m
	}
	// Every key that can match is a prefix of geohash, so probing each
	// prefix length from longest to shortest finds the most specific cell.
	for ; n > 0; n-- {
		if v, ok := bucket[geohash[:n]]; ok {
			return v, true
		}
	}
	return Value{}, false
}

// RecordPositive associates prefix with regionID unless prefix is already
// cached. It reports whether the entry was inserted.
func (c *Cache[S]) RecordPositive(scope S, prefix string, regionID int64) bool {
	return c.insert(scope, prefix, Value{RegionID: regionID, Found: true})
}

// RecordNegative marks prefix as known to contain no match unless prefix is
// already cached. It reports whether the entry was inserted.
func (c *Cache[S]) RecordNegative(scope S, prefix string) bool {
	return c.insert(scope, prefix, Value{})
}

func (c *Cache[S]) insert(scope S, prefix string, v Value) bool {
	if prefix == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	bucket, ok := c.entries[scope]
	if !ok {
		bucket = make(map[string]Value)
		c.entries[scope] = bucket
	}
	if _, exists := bucket[prefix]; exists {
		return false
	}
	bucket[prefix] = v
	c.size++
	if len(prefix) > c.maxLen[scope] {
		c.maxLen[scope] = len(prefix)
	}
	return true
}

// Len returns the number of cached keys across all scopes.
func (c *Cache[S]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.size
}
