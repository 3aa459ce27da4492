package services

import (
	"fmt"
	"sync"
	"time"
)

// GeocodeCache caches reverse-geocode labels to cut API calls. Keys quantize
// the coordinate to ~100 m so nearby session starts share an entry.
type GeocodeCache struct {
	mu         sync.RWMutex
	entries    map[string]*geocodeEntry
	maxEntries int
	ttl        time.Duration
}

type geocodeEntry struct {
	label        string
	createdAt    time.Time
	lastAccessed time.Time
}

// NewGeocodeCache creates the cache and starts its expiry sweep.
func NewGeocodeCache() *GeocodeCache {
	c := &GeocodeCache{
		entries:    make(map[string]*geocodeEntry),
		maxEntries: 1000,
		ttl:        24 * time.Hour,
	}

	go c.cleanupExpired()

	return c
}

// key quantizes to 3 decimal places (~111 m of latitude).
func (c *GeocodeCache) key(lat, lng float64) string {
	return fmt.Sprintf("%.3f,%.3f", lat, lng)
}

// Get returns a cached label for a coordinate, if fresh.
func (c *GeocodeCache) Get(lat, lng float64) (string, bool) {
	c.mu.RLock()
	entry, ok := c.entries[c.key(lat, lng)]
	c.mu.RUnlock()

	if !ok {
		return "", false
	}
	if time.Since(entry.createdAt) > c.ttl {
		return "", false
	}

	c.mu.Lock()
	entry.lastAccessed = time.Now()
	c.mu.Unlock()

	return entry.label, true
}

// Put stores a label, evicting the least recently accessed entry when full.
func (c *GeocodeCache) Put(lat, lng float64, label string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}

	now := time.Now()
	c.entries[c.key(lat, lng)] = &geocodeEntry{
		label:        label,
		createdAt:    now,
		lastAccessed: now,
	}
}

func (c *GeocodeCache) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.lastAccessed.Before(oldest) {
			oldestKey = key
			oldest = entry.lastAccessed
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Len reports the current entry count.
func (c *GeocodeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *GeocodeCache) cleanupExpired() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		for key, entry := range c.entries {
			if time.Since(entry.createdAt) > c.ttl {
				delete(c.entries, key)
			}
		}
		c.mu.Unlock()
	}
}
