// Package memory implements the canonical in-process cache.Cache: a
// capacity-bounded map with least-recently-accessed eviction and a fixed
// TTL measured from insertion. All operations are O(1) amortized.
package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/unkn0wn-root/confcascade/cache"
)

type entry struct {
	key        string
	value      []byte
	insertedAt time.Time
}

// Cache is the default latency shield in front of NetworkSource.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	order    *list.List // front = most recently accessed

	now func() time.Time // test hook
}

var _ cache.Cache = (*Cache)(nil)

type Config struct {
	Capacity int           // 0 => cache.DefaultCapacity
	TTL      time.Duration // 0 => cache.DefaultTTL
}

func New(cfg Config) *Cache {
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = cache.DefaultCapacity
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
		now:      time.Now,
	}
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	e := el.Value.(*entry)
	if c.expired(e) {
		c.remove(el)
		return nil, false, nil
	}
	c.order.MoveToFront(el)
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

func (c *Cache) Set(_ context.Context, key string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.value = v
		e.insertedAt = c.now()
		c.order.MoveToFront(el)
		return nil
	}
	el := c.order.PushFront(&entry{key: key, value: v, insertedAt: c.now()})
	c.items[key] = el
	if c.order.Len() > c.capacity {
		// least recently accessed sits at the back
		c.remove(c.order.Back())
	}
	return nil
}

// Has checks presence without touching recency; an expired entry is evicted
// and reported absent.
func (c *Cache) Has(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return false, nil
	}
	if c.expired(el.Value.(*entry)) {
		c.remove(el)
		return false, nil
	}
	return true, nil
}

func (c *Cache) Delete(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return false, nil
	}
	c.remove(el)
	return true, nil
}

func (c *Cache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element, c.capacity)
	c.order.Init()
	return nil
}

// Len counts entries still held, including any whose TTL elapsed but which
// have not been touched since (eviction is lazy).
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache) Close(context.Context) error { return nil }

func (c *Cache) expired(e *entry) bool {
	return c.now().Sub(e.insertedAt) >= c.ttl
}

func (c *Cache) remove(el *list.Element) {
	if el == nil {
		return
	}
	e := el.Value.(*entry)
	delete(c.items, e.key)
	c.order.Remove(el)
}
