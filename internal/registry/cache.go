// File path: internal/registry/cache.go
package registry

import (
	"container/list"
	"sync"
)

const defaultCacheSize = 64

type cacheEntry struct {
	key   string
	value *Compiled
}

// layoutCache is an LRU of compiled layouts keyed by fingerprint.
type layoutCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	ll       *list.List
}

func newLayoutCache(size int) *layoutCache {
	if size <= 0 {
		size = defaultCacheSize
	}
	return &layoutCache{
		capacity: size,
		items:    make(map[string]*list.Element, size),
		ll:       list.New(),
	}
}

func (c *layoutCache) Get(key string) (*Compiled, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.ll.MoveToFront(elem)
		return elem.Value.(cacheEntry).value, true
	}
	return nil, false
}

func (c *layoutCache) Set(key string, value *Compiled) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		elem.Value = cacheEntry{key: key, value: value}
		c.ll.MoveToFront(elem)
		return
	}
	c.items[key] = c.ll.PushFront(cacheEntry{key: key, value: value})
	if c.ll.Len() > c.capacity {
		if tail := c.ll.Back(); tail != nil {
			c.ll.Remove(tail)
			delete(c.items, tail.Value.(cacheEntry).key)
		}
	}
}

func (c *layoutCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *layoutCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.ll = list.New()
}
