// Package lru implements a generic, thread-safe cache bounded by entry
// count, evicting the least recently used key.
package lru

import "sync"

type entry[K comparable, V any] struct {
	key        K
	val        V
	prev, next *entry[K, V]
}

// Cache is a fixed capacity LRU map.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	items    map[K]*entry[K, V]
	root     entry[K, V] // root.next is most recent, root.prev least recent
}

// New creates a cache holding at most capacity entries. A capacity below
// one is raised to one.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	c := &Cache[K, V]{
		capacity: max(capacity, 1),
		items:    make(map[K]*entry[K, V]),
	}
	c.root.next = &c.root
	c.root.prev = &c.root
	return c
}

// Get returns the value for key and marks it recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.touch(e)
	return e.val, true
}

// Put stores val under key, evicting the oldest entry when full.
func (c *Cache[K, V]) Put(key K, val V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(key, val)
}

// Update replaces the value for key with fn(current, found) in one
// critical section and returns the stored value.
func (c *Cache[K, V]) Update(key K, fn func(cur V, found bool) V) V {
	c.mu.Lock()
	defer c.mu.Unlock()

	var cur V
	e, found := c.items[key]
	if found {
		cur = e.val
	}
	next := fn(cur, found)
	c.putLocked(key, next)
	return next
}

// Delete removes key. It reports whether the key was present.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return false
	}
	c.unlink(e)
	delete(c.items, key)
	return true
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache[K, V]) putLocked(key K, val V) {
	if e, ok := c.items[key]; ok {
		e.val = val
		c.touch(e)
		return
	}
	if len(c.items) >= c.capacity {
		oldest := c.root.prev
		c.unlink(oldest)
		delete(c.items, oldest.key)
	}
	e := &entry[K, V]{key: key, val: val}
	c.items[key] = e
	c.linkFront(e)
}

func (c *Cache[K, V]) touch(e *entry[K, V]) {
	c.unlink(e)
	c.linkFront(e)
}

func (c *Cache[K, V]) unlink(e *entry[K, V]) {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.prev, e.next = nil, nil
}

func (c *Cache[K, V]) linkFront(e *entry[K, V]) {
	e.prev = &c.root
	e.next = c.root.next
	c.root.next.prev = e
	c.root.next = e
}
