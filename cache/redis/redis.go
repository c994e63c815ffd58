// Package redis adapts redis/go-redis to cache.Cache so multiple replicas
// can share one latency shield in front of the remote asset API. Keys are
// namespaced by Prefix; Clear only touches that namespace.
package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/confcascade/cache"
)

var ErrNilClient = errors.New("redis cache: nil client")

type Cache struct {
	rdb         goredis.UniversalClient
	prefix      string
	ttl         time.Duration
	closeClient bool
}

var _ cache.Cache = (*Cache)(nil)

type Config struct {
	Client goredis.UniversalClient // required
	// Prefix namespaces this cache's keys ("confcascade:" by default).
	Prefix string
	TTL    time.Duration // 0 => cache.DefaultTTL
	// CloseClient: set true only if this cache exclusively owns the client.
	CloseClient bool
}

func New(cfg Config) (*Cache, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "confcascade:"
	}
	return &Cache{rdb: cfg.Client, prefix: prefix, ttl: ttl, closeClient: cfg.CloseClient}, nil
}

func (p *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, p.prefix+key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	return b, true, nil
}

func (p *Cache) Set(ctx context.Context, key string, value []byte) error {
	return p.rdb.Set(ctx, p.prefix+key, value, p.ttl).Err()
}

func (p *Cache) Has(ctx context.Context, key string) (bool, error) {
	n, err := p.rdb.Exists(ctx, p.prefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *Cache) Delete(ctx context.Context, key string) (bool, error) {
	n, err := p.rdb.Del(ctx, p.prefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Clear scans and deletes only the keys under this cache's prefix.
func (p *Cache) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := p.rdb.Scan(ctx, cursor, p.prefix+"*", 256).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := p.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Len is unknown without scanning the whole namespace.
func (p *Cache) Len() int { return -1 }

// Close releases the underlying redis client only when this cache owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Cache) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
