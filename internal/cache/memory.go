package cache

import (
	"container/list"
	"sync"
	"time"
)

// MemoryCache is an in-memory LRU bounded by total byte size.
type MemoryCache struct {
	capacity int64
	size     int64
	ttl      time.Duration

	items    map[string]*list.Element
	eviction *list.List

	mu    sync.Mutex
	stats Stats

	now func() time.Time
}

type memoryEntry struct {
	key     string
	value   []byte
	stored  time.Time
	touched time.Time
}

// NewMemoryCache creates a memory cache holding up to capacity bytes.
// Entries older than ttl are dropped on access; zero disables expiry.
func NewMemoryCache(capacity int64, ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*list.Element),
		eviction: list.New(),
		now:      time.Now,
	}
}

// Get returns the value for key and marks it most recently used.
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}

	entry := elem.Value.(*memoryEntry)
	now := c.now()
	if c.expired(entry, now) {
		c.removeElement(elem)
		c.stats.Expired++
		c.stats.Misses++
		return nil, false
	}

	c.eviction.MoveToFront(elem)
	entry.touched = now
	c.stats.Hits++
	return entry.value, true
}

// Put stores value under key, evicting least recently used entries to
// make room.
func (c *MemoryCache) Put(key string, value []byte) error {
	size := int64(len(value))
	if size > c.capacity {
		return ErrItemTooLarge
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*memoryEntry)
		c.size += size - int64(len(entry.value))
		entry.value = value
		entry.stored = now
		entry.touched = now
		c.eviction.MoveToFront(elem)
	} else {
		elem := c.eviction.PushFront(&memoryEntry{key: key, value: value, stored: now, touched: now})
		c.items[key] = elem
		c.size += size
	}

	for c.size > c.capacity && c.eviction.Len() > 1 {
		c.evictOldest()
	}
	return nil
}

// Delete removes key.
func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

// Clear removes all entries.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.eviction.Init()
	c.size = 0
}

// Contains reports whether key is cached without touching its LRU position.
func (c *MemoryCache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

// Prune drops expired entries and returns how many were removed.
func (c *MemoryCache) Prune() int {
	if c.ttl <= 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	pruned := 0
	for elem := c.eviction.Back(); elem != nil; {
		prev := elem.Prev()
		if c.expired(elem.Value.(*memoryEntry), now) {
			c.removeElement(elem)
			pruned++
		}
		elem = prev
	}
	c.stats.Expired += int64(pruned)
	return pruned
}

// Stats returns a snapshot of the cache counters.
func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Capacity = c.capacity
	s.Size = c.size
	s.Items = len(c.items)
	return s
}

func (c *MemoryCache) expired(e *memoryEntry, now time.Time) bool {
	return c.ttl > 0 && now.Sub(e.stored) > c.ttl
}

// evictOldest must be called with mu held.
func (c *MemoryCache) evictOldest() {
	if elem := c.eviction.Back(); elem != nil {
		c.removeElement(elem)
		c.stats.Evictions++
		c.stats.LastEvict = c.now()
	}
}

// removeElement must be called with mu held.
func (c *MemoryCache) removeElement(elem *list.Element) {
	entry := c.eviction.Remove(elem).(*memoryEntry)
	delete(c.items, entry.key)
	c.size -= int64(len(entry.value))
}
