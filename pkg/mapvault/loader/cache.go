package loader

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// entry is a cache slot. A failed entry is the sentinel left behind by an id
// that exhausted its retry budget.
type entry[T any] struct {
	value  T
	failed bool
}

type cacheStore[T any] interface {
	get(id string) (entry[T], bool)
	add(id string, e entry[T])
	remove(id string)
	len() int
	// purge drops every entry, calling the eviction hook for each.
	purge()
}

type mapCache[T any] struct {
	m       map[string]entry[T]
	onEvict func(id string, e entry[T])
}

func newMapCache[T any](onEvict func(string, entry[T])) *mapCache[T] {
	return &mapCache[T]{m: make(map[string]entry[T]), onEvict: onEvict}
}

func (c *mapCache[T]) get(id string) (entry[T], bool) {
	e, ok := c.m[id]
	return e, ok
}

func (c *mapCache[T]) add(id string, e entry[T]) { c.m[id] = e }

func (c *mapCache[T]) remove(id string) {
	if e, ok := c.m[id]; ok {
		delete(c.m, id)
		c.onEvict(id, e)
	}
}

func (c *mapCache[T]) len() int { return len(c.m) }

func (c *mapCache[T]) purge() {
	for id, e := range c.m {
		delete(c.m, id)
		c.onEvict(id, e)
	}
}

// lruCache bounds the cache. The eviction hook runs synchronously inside add,
// while the loader lock is held.
type lruCache[T any] struct {
	c *lru.Cache[string, entry[T]]
}

func newLRUCache[T any](size int, onEvict func(string, entry[T])) (*lruCache[T], error) {
	c, err := lru.NewWithEvict[string, entry[T]](size, onEvict)
	if err != nil {
		return nil, err
	}
	return &lruCache[T]{c: c}, nil
}

func (c *lruCache[T]) get(id string) (entry[T], bool) { return c.c.Get(id) }
func (c *lruCache[T]) add(id string, e entry[T])      { c.c.Add(id, e) }
func (c *lruCache[T]) remove(id string)               { c.c.Remove(id) }
func (c *lruCache[T]) len() int                       { return c.c.Len() }
func (c *lruCache[T]) purge()                         { c.c.Purge() }
