// Package cache holds computed report views so repeated dashboard reads
// do not rebuild the same aggregates. Any ledger write invalidates the
// whole cache; reports are cheap enough that precision is not worth the
// bookkeeping.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// ReportCache is a TTL LRU keyed by report name and window. Invalidate
// bumps a generation counter instead of walking entries, so stale
// entries fall out lazily on the next Get.
type ReportCache[T any] struct {
	mu         sync.Mutex
	maxSize    int
	ttl        time.Duration
	generation uint64
	items      map[string]*list.Element
	order      *list.List
}

type entry[T any] struct {
	key        string
	value      T
	generation uint64
	expiresAt  time.Time
}

func NewReportCache[T any](maxSize int, ttl time.Duration) *ReportCache[T] {
	return &ReportCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Get returns the cached value unless it expired or predates the last
// invalidation.
func (c *ReportCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, ok := c.items[key]
	if !ok {
		return zero, false
	}

	e := elem.Value.(*entry[T])
	if e.generation != c.generation || time.Now().After(e.expiresAt) {
		c.remove(elem)
		return zero, false
	}

	c.order.MoveToFront(elem)
	return e.value, true
}

func (c *ReportCache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry[T]{
		key:        key,
		value:      value,
		generation: c.generation,
		expiresAt:  time.Now().Add(c.ttl),
	}

	if elem, ok := c.items[key]; ok {
		elem.Value = e
		c.order.MoveToFront(elem)
		return
	}

	c.items[key] = c.order.PushFront(e)
	if c.order.Len() > c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			c.remove(oldest)
		}
	}
}

// Invalidate drops every live entry. Called after each ledger write.
func (c *ReportCache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
}

// Sweep removes expired and superseded entries, returning the count.
// Intended for a periodic housekeeping goroutine.
func (c *ReportCache[T]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var dead []*list.Element
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		e := elem.Value.(*entry[T])
		if e.generation != c.generation || now.After(e.expiresAt) {
			dead = append(dead, elem)
		}
	}
	for _, elem := range dead {
		c.remove(elem)
	}
	return len(dead)
}

func (c *ReportCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *ReportCache[T]) remove(elem *list.Element) {
	e := elem.Value.(*entry[T])
	delete(c.items, e.key)
	c.order.Remove(elem)
}
