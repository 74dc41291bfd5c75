// Package cache holds recently served content bytes, bounded both by entry
// count and by total size.
package cache

import (
	"container/list"
	"sync"
)

type LRUCache struct {
	capacity int
	maxSize  int64
	size     int64
	hits     int64
	misses   int64
	items    map[string]*list.Element
	order    *list.List
	mu       sync.Mutex
}

type entry struct {
	ref         string
	contentType string
	data        []byte
}

// Stats is a point-in-time view of the cache.
type Stats struct {
	Entries int   `json:"entries"`
	Bytes   int64 `json:"bytes"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

func NewLRUCache(capacity int, maxSizeBytes int64) *LRUCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &LRUCache{
		capacity: capacity,
		maxSize:  maxSizeBytes,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the bytes and content type cached for ref.
func (c *LRUCache) Get(ref string) ([]byte, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[ref]
	if !ok {
		c.misses++
		return nil, "", false
	}
	c.hits++
	c.order.MoveToFront(elem)
	e := elem.Value.(*entry)
	return e.data, e.contentType, true
}

// Put stores data for ref, evicting least recently used entries to make
// room. Items larger than the whole cache are not stored.
func (c *LRUCache) Put(ref, contentType string, data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := int64(len(data))
	if n > c.maxSize {
		return false
	}

	if elem, ok := c.items[ref]; ok {
		c.remove(elem)
	}

	for c.order.Len() >= c.capacity || (c.size+n > c.maxSize && c.order.Len() > 0) {
		c.remove(c.order.Back())
	}

	c.items[ref] = c.order.PushFront(&entry{ref: ref, contentType: contentType, data: data})
	c.size += n
	return true
}

// Delete drops ref. It matches the revoke hook signature of the content
// registry so revoked refs never outlive their collection here.
func (c *LRUCache) Delete(ref string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[ref]; ok {
		c.remove(elem)
	}
}

func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.size = 0
}

func (c *LRUCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries: c.order.Len(),
		Bytes:   c.size,
		Hits:    c.hits,
		Misses:  c.misses,
	}
}

func (c *LRUCache) remove(elem *list.Element) {
	e := elem.Value.(*entry)
	c.order.Remove(elem)
	delete(c.items, e.ref)
	c.size -= int64(len(e.data))
}
