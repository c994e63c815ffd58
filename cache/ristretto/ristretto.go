// Package ristretto adapts dgraph-io/ristretto to cache.Cache. Admission is
// probabilistic and Len is not exposed by the engine; use this when the
// cached assets are large enough that cost-based eviction matters.
package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/confcascade/cache"
)

type Cache struct {
	c   *rc.Cache
	ttl time.Duration
}

var _ cache.Cache = (*Cache)(nil)

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	TTL         time.Duration // 0 => cache.DefaultTTL
	Metrics     bool
}

func New(cfg Config) (*Cache, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto cache: invalid config")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c, ttl: ttl}, nil
}

func (p *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		// self-heal: drop unexpected entry shape
		p.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

func (p *Cache) Set(_ context.Context, key string, value []byte) error {
	// rejection under pressure is the engine's call, not an error
	p.c.SetWithTTL(key, value, int64(len(value)), p.ttl)
	return nil
}

func (p *Cache) Has(_ context.Context, key string) (bool, error) {
	_, ok := p.c.Get(key)
	return ok, nil
}

func (p *Cache) Delete(_ context.Context, key string) (bool, error) {
	_, ok := p.c.Get(key)
	p.c.Del(key)
	return ok, nil
}

func (p *Cache) Clear(context.Context) error {
	p.c.Clear()
	return nil
}

// Len is unknown for Ristretto.
func (p *Cache) Len() int { return -1 }

func (p *Cache) Close(context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}

// Metrics exposes the engine's metrics when enabled in Config (not part of
// cache.Cache).
func (p *Cache) Metrics() *rc.Metrics { return p.c.Metrics }
