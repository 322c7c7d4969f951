package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRU is a size-bounded cache whose entries also expire after a TTL.
// It is safe for concurrent use.
type LRU[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	order   *list.List
	now     func() time.Time
	onEvict func(key string, value T)
}

type entry[T any] struct {
	key       string
	value     T
	expiresAt time.Time
}

type Option[T any] func(*LRU[T])

// WithClock replaces time.Now, mainly for tests.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(c *LRU[T]) { c.now = now }
}

// WithEvictHook is called, without the lock held, for every entry that
// leaves the cache through expiry, capacity pressure or Delete.
func WithEvictHook[T any](fn func(key string, value T)) Option[T] {
	return func(c *LRU[T]) { c.onEvict = fn }
}

func NewLRU[T any](maxSize int, ttl time.Duration, opts ...Option[T]) *LRU[T] {
	if maxSize < 1 {
		maxSize = 1
	}
	c := &LRU[T]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		order:   list.New(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *LRU[T]) Get(key string) (T, bool) {
	var zero T
	c.mu.Lock()
	elem, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return zero, false
	}
	e := elem.Value.(*entry[T])
	if c.now().After(e.expiresAt) {
		c.remove(elem)
		c.mu.Unlock()
		c.evicted(e)
		return zero, false
	}
	c.order.MoveToFront(elem)
	c.mu.Unlock()
	return e.value, true
}

// Set stores value with the cache's default TTL.
func (c *LRU[T]) Set(key string, value T) {
	c.SetWithTTL(key, value, c.ttl)
}

func (c *LRU[T]) SetWithTTL(key string, value T, ttl time.Duration) {
	e := &entry[T]{key: key, value: value, expiresAt: c.now().Add(ttl)}

	c.mu.Lock()
	if elem, ok := c.items[key]; ok {
		elem.Value = e
		c.order.MoveToFront(elem)
		c.mu.Unlock()
		return
	}
	c.items[key] = c.order.PushFront(e)

	var victim *entry[T]
	if c.order.Len() > c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			victim = oldest.Value.(*entry[T])
			c.remove(oldest)
		}
	}
	c.mu.Unlock()
	if victim != nil {
		c.evicted(victim)
	}
}

// Delete removes key and reports whether it was present.
func (c *LRU[T]) Delete(key string) bool {
	c.mu.Lock()
	elem, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return false
	}
	e := elem.Value.(*entry[T])
	c.remove(elem)
	c.mu.Unlock()
	c.evicted(e)
	return true
}

// CleanExpired drops every expired entry and returns how many were removed.
func (c *LRU[T]) CleanExpired() int {
	now := c.now()
	var gone []*entry[T]

	c.mu.Lock()
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		if e := elem.Value.(*entry[T]); now.After(e.expiresAt) {
			gone = append(gone, e)
			c.remove(elem)
		}
		elem = next
	}
	c.mu.Unlock()

	for _, e := range gone {
		c.evicted(e)
	}
	return len(gone)
}

func (c *LRU[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *LRU[T]) remove(elem *list.Element) {
	delete(c.items, elem.Value.(*entry[T]).key)
	c.order.Remove(elem)
}

func (c *LRU[T]) evicted(e *entry[T]) {
	if c.onEvict != nil {
		c.onEvict(e.key, e.value)
	}
}
