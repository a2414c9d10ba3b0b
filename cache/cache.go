package cache

import (
	"sync"

	"github.com/mogaika/moiety/resource"
)

type entry struct {
	future   *Future
	priority int
	used     uint64
}

// Cache is a capacity bounded map from resource key to loaded value or
// in-flight load. When full, the entry with the lowest priority is evicted,
// least recently used first among equals; unsettled loads are never evicted.
type Cache struct {
	lock     sync.Mutex
	capacity int
	tick     uint64
	entries  map[resource.Key]*entry
}

func New(capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[resource.Key]*entry, capacity),
	}
}

func (c *Cache) touch(e *entry, priority int) {
	c.tick++
	e.used = c.tick
	if priority > e.priority {
		e.priority = priority
	}
}

// Get returns the cached future for key and raises its standing priority
// to at least priority.
func (c *Cache) Get(key resource.Key, priority int) (*Future, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.touch(e, priority)
	return e.future, true
}

// Set inserts or replaces key. A replaced entry keeps the higher of the two
// priorities.
func (c *Cache) Set(key resource.Key, f *Future, priority int) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.set(key, f, priority)
}

func (c *Cache) set(key resource.Key, f *Future, priority int) {
	if e, ok := c.entries[key]; ok {
		e.future = f
		c.touch(e, priority)
		return
	}
	c.evictFor(1)
	e := &entry{future: f, priority: priority}
	c.touch(e, priority)
	c.entries[key] = e
}

// Acquire returns the future for key, creating and inserting a fresh one
// when absent. created tells the caller it is responsible for resolving it.
// Lookup and insertion happen under one lock, so concurrent callers never
// both create.
func (c *Cache) Acquire(key resource.Key, priority int) (f *Future, created bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if e, ok := c.entries[key]; ok {
		c.touch(e, priority)
		return e.future, false
	}
	f = NewFuture()
	c.set(key, f, priority)
	return f, true
}

// Remove drops key only if it still maps to f.
func (c *Cache) Remove(key resource.Key, f *Future) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	if e, ok := c.entries[key]; ok && e.future == f {
		delete(c.entries, key)
		return true
	}
	return false
}

func (c *Cache) Len() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.entries)
}

func (c *Cache) Priority(key resource.Key) (int, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if e, ok := c.entries[key]; ok {
		return e.priority, true
	}
	return 0, false
}

// evictFor makes room for n new entries. If every entry is still in flight
// the cache grows past capacity until loads settle.
func (c *Cache) evictFor(n int) {
	for len(c.entries)+n > c.capacity {
		var victimKey resource.Key
		var victim *entry
		for k, e := range c.entries {
			if !e.future.Settled() {
				continue
			}
			if victim == nil || e.priority < victim.priority ||
				(e.priority == victim.priority && e.used < victim.used) {
				victimKey, victim = k, e
			}
		}
		if victim == nil {
			return
		}
		delete(c.entries, victimKey)
	}
}
