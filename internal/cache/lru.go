package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

var _ Cache[int] = (*LRUCache[int])(nil)

// LRUCache evicts the least recently used entries once either the entry
// count exceeds maxSize or the summed weight exceeds maxWeight. A yearly
// item list weighs as much as all of its months together, so a few busy
// years cannot pin the whole budget.
type LRUCache[T any] struct {
	mu        sync.Mutex
	maxSize   int
	maxWeight int
	weight    int
	weigh     func(T) int
	ttl       time.Duration
	items     map[string]*list.Element
	lru       *list.List
	now       func() time.Time
}

type cacheItem[T any] struct {
	key       string
	data      T
	weight    int
	expiresAt time.Time
}

// NewLRUCache creates a new LRU cache with TTL. A non-positive maxSize
// defaults to 100 entries.
func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	return NewWeightedLRUCache[T](maxSize, 0, ttl, nil)
}

// NewWeightedLRUCache also bounds the total weight reported by weigh.
// A non-positive maxWeight or a nil weigh disables the weight bound.
// Entries heavier than maxWeight are never stored.
func NewWeightedLRUCache[T any](maxSize, maxWeight int, ttl time.Duration, weigh func(T) int) *LRUCache[T] {
	if maxSize <= 0 {
		maxSize = 100
	}
	if weigh == nil || maxWeight <= 0 {
		weigh = func(T) int { return 1 }
		maxWeight = 0
	}
	return &LRUCache[T]{
		maxSize:   maxSize,
		maxWeight: maxWeight,
		weigh:     weigh,
		ttl:       ttl,
		items:     make(map[string]*list.Element),
		lru:       list.New(),
		now:       time.Now,
	}
}

// ItemCountWeight weighs a cached list by its length, counting the entry
// itself as one so that empty periods still use budget.
func ItemCountWeight[E any](items []E) int {
	return len(items) + 1
}

func (c *LRUCache[T]) Get(_ context.Context, key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, exists := c.items[key]
	if !exists {
		return zero, false
	}

	item := elem.Value.(*cacheItem[T])
	if c.now().After(item.expiresAt) {
		c.removeElement(elem)
		return zero, false
	}

	c.lru.MoveToFront(elem)
	return item.data, true
}

func (c *LRUCache[T]) Set(_ context.Context, key string, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := &cacheItem[T]{
		key:       key,
		data:      data,
		weight:    c.weigh(data),
		expiresAt: c.now().Add(c.ttl),
	}

	if elem, exists := c.items[key]; exists {
		c.removeElement(elem)
	}
	if c.maxWeight > 0 && item.weight > c.maxWeight {
		return
	}

	c.items[key] = c.lru.PushFront(item)
	c.weight += item.weight

	for c.lru.Len() > c.maxSize || (c.maxWeight > 0 && c.weight > c.maxWeight) {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		c.removeElement(oldest)
	}
}

func (c *LRUCache[T]) Delete(_ context.Context, keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		if elem, exists := c.items[key]; exists {
			c.removeElement(elem)
		}
	}
}

func (c *LRUCache[T]) removeElement(elem *list.Element) {
	item := elem.Value.(*cacheItem[T])
	delete(c.items, item.key)
	c.lru.Remove(elem)
	c.weight -= item.weight
}

// CleanExpired removes all expired entries and returns count of removed items
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var toRemove []*list.Element
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		if now.After(elem.Value.(*cacheItem[T]).expiresAt) {
			toRemove = append(toRemove, elem)
		}
	}
	for _, elem := range toRemove {
		c.removeElement(elem)
	}
	return len(toRemove)
}

func (c *LRUCache[T]) Size(context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Weight returns the summed weight of the cached entries.
func (c *LRUCache[T]) Weight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.weight
}
