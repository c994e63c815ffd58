// Package bigcache adapts allegro/bigcache to cache.Cache. BigCache bounds
// memory rather than entry count and evicts strictly by age (LifeWindow),
// which matches the fixed-TTL-from-insertion contract.
package bigcache

import (
	"context"
	"errors"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/confcascade/cache"
)

type Cache struct {
	c *bc.BigCache
}

var _ cache.Cache = (*Cache)(nil)

type Config struct {
	TTL time.Duration // 0 => cache.DefaultTTL
	// HardMaxCacheSizeMB caps memory; 0 leaves the engine unbounded.
	HardMaxCacheSizeMB int
}

func New(cfg Config) (*Cache, error) {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	conf := bc.DefaultConfig(ttl)
	conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	c, err := bc.New(context.Background(), conf)
	if err != nil {
		return nil, err
	}
	return &Cache{c: c}, nil
}

func (p *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, err := p.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (p *Cache) Set(_ context.Context, key string, value []byte) error {
	return p.c.Set(key, value)
}

func (p *Cache) Has(_ context.Context, key string) (bool, error) {
	_, err := p.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *Cache) Delete(_ context.Context, key string) (bool, error) {
	err := p.c.Delete(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *Cache) Clear(context.Context) error { return p.c.Reset() }

func (p *Cache) Len() int { return p.c.Len() }

func (p *Cache) Close(context.Context) error { return p.c.Close() }
