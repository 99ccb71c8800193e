// Package cache provides caching implementations for Scalysis.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/500lbbicepcurl/Scalysis-public/internal/domain"
)

// LRUCache is a thread-safe LRU cache with TTL support.
// Used as the Community tier cache and as L1 in two-phase caching.
type LRUCache struct {
	mu      sync.RWMutex
	maxSize int
	items   map[string]*list.Element
	order   *list.List
}

type cacheEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// NewLRUCache creates a new LRU cache with the specified max size.
func NewLRUCache(maxSize int) *LRUCache {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &LRUCache{
		maxSize: maxSize,
		items:   make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Get retrieves a value from cache.
func (c *LRUCache) Get(ctx context.Context, storeID string, key string) ([]byte, error) {
	if storeID == "" {
		return nil, ErrStoreRequired
	}

	fullKey := c.makeKey(storeID, key)

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[fullKey]
	if !ok {
		return nil, nil
	}

	entry := elem.Value.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.removeElement(elem)
		return nil, nil
	}

	// Move to front (most recently used)
	c.order.MoveToFront(elem)
	return entry.value, nil
}

// Set stores a value in cache with TTL.
func (c *LRUCache) Set(ctx context.Context, storeID string, key string, value []byte, ttl time.Duration) error {
	if storeID == "" {
		return ErrStoreRequired
	}

	fullKey := c.makeKey(storeID, key)

	c.mu.Lock()
	defer c.mu.Unlock()

	// Update existing entry
	if elem, ok := c.items[fullKey]; ok {
		c.order.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry)
		entry.value = value
		entry.expiresAt = expiry(ttl)
		return nil
	}

	// Add new entry
	entry := &cacheEntry{
		key:       fullKey,
		value:     value,
		expiresAt: expiry(ttl),
	}
	elem := c.order.PushFront(entry)
	c.items[fullKey] = elem

	// Evict if over capacity
	for c.order.Len() > c.maxSize {
		c.removeOldest()
	}

	return nil
}

// Delete removes a value from cache.
func (c *LRUCache) Delete(ctx context.Context, storeID string, key string) error {
	if storeID == "" {
		return ErrStoreRequired
	}

	fullKey := c.makeKey(storeID, key)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[fullKey]; ok {
		c.removeElement(elem)
	}
	return nil
}

// GetCurve retrieves the store's cached curve.
func (c *LRUCache) GetCurve(ctx context.Context, storeID string) (*domain.CachedCurve, error) {
	return getCurve(ctx, c, storeID)
}

// SetCurve caches the store's curve.
func (c *LRUCache) SetCurve(ctx context.Context, storeID string, curve *domain.CachedCurve, ttl time.Duration) error {
	return setCurve(ctx, c, storeID, curve, ttl)
}

// InvalidateCurve drops the store's cached curve.
func (c *LRUCache) InvalidateCurve(ctx context.Context, storeID string) error {
	return c.Delete(ctx, storeID, curveKey)
}

// Ping checks cache health.
func (c *LRUCache) Ping(ctx context.Context) error {
	return nil
}

// Close cleans up the cache.
func (c *LRUCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order = list.New()
	return nil
}

// Stats returns cache statistics.
func (c *LRUCache) Stats() (size int, capacity int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.order.Len(), c.maxSize
}

// expiry returns when an entry set now with ttl expires. A non-positive ttl
// never expires.
func expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Now().AddDate(100, 0, 0)
	}
	return time.Now().Add(ttl)
}

func (c *LRUCache) makeKey(storeID, key string) string {
	return storeID + ":" + key
}

func (c *LRUCache) removeElement(elem *list.Element) {
	c.order.Remove(elem)
	entry := elem.Value.(*cacheEntry)
	delete(c.items, entry.key)
}

func (c *LRUCache) removeOldest() {
	elem := c.order.Back()
	if elem != nil {
		c.removeElement(elem)
	}
}
