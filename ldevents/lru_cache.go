package ldevents

import "container/list"

// lruCache remembers up to capacity recently-seen keys, evicting the least recently used entry
// once that capacity is exceeded. A capacity of zero or less never remembers anything.
type lruCache struct {
	capacity int
	order    *list.List
	items    map[string]*list.Element
}

func newLruCache(capacity int) lruCache {
	return lruCache{capacity: capacity, order: list.New(), items: make(map[string]*list.Element)}
}

// add registers key as seen, moving it to the front of the recency order. It returns true if the
// key was already known, or false if this is the first time it has been seen.
func (c *lruCache) add(key string) bool {
	if c.capacity <= 0 {
		return false
	}
	if el, ok := c.items[key]; ok {
		c.order.MoveToFront(el)
		return true
	}
	c.items[key] = c.order.PushFront(key)
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(string))
	}
	return false
}

func (c *lruCache) clear() {
	c.order.Init()
	c.items = make(map[string]*list.Element)
}
