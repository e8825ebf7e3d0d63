package storage

import (
	"container/list"
	"sync"
)

// addressCache is a fixed-capacity LRU of address -> surrogate ID. It is a
// pure performance optimization owned by its resolver instance: the store's
// unique index stays authoritative, and multiple resolvers in one process
// (as in tests) never share cache state.
type addressCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	entries  map[string]*list.Element
}

type cacheEntry struct {
	address string
	id      int64
}

func newAddressCache(capacity int) *addressCache {
	if capacity <= 0 {
		capacity = 100000
	}
	return &addressCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

func (c *addressCache) get(address string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[address]
	if !ok {
		return 0, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).id, true
}

func (c *addressCache) put(address string, id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[address]; ok {
		c.order.MoveToFront(el)
		el.Value.(*cacheEntry).id = id
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).address)
		}
	}

	c.entries[address] = c.order.PushFront(&cacheEntry{address: address, id: id})
}

func (c *addressCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
