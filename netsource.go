package confcascade

import (
	"context"
	"fmt"

	"github.com/unkn0wn-root/confcascade/cache"
	"github.com/unkn0wn-root/confcascade/cache/memory"
	"github.com/unkn0wn-root/confcascade/remote"
	"github.com/unkn0wn-root/confcascade/retry"
)

// NetworkSourceOptions configure a NetworkSource.
type NetworkSourceOptions struct {
	Client remote.Client // required
	Path   string        // required; asset path on the remote API
	Repo   string        // repository id, part of the cache key
	Ref    string        // branch or tag; "" => "main"

	Priority int
	// Cache shields the remote API. Nil gets a private in-memory LRU
	// (capacity 500, TTL 5 min) that the resolver releases on Destroy.
	Cache cache.Cache
	Retry retry.Policy // zero value => 3 attempts, 1s..60s backoff
	// RetryAllFailures restores uniform retry over every failure class,
	// including not-found and unauthorized. Only useful for callers that
	// publish assets with an eventual-consistency window.
	RetryAllFailures bool
	Logger           Logger
}

// NetworkSource fetches a named asset from the remote API through a TTL
// cache and a retry policy. Read-only: from the resolver's point of view
// content only ever flows out of it.
type NetworkSource struct {
	client    remote.Client
	cache     cache.Cache
	ownsCache bool
	policy    retry.Policy

	repo     string
	ref      string
	path     string
	priority int
	retryAll bool
	log      Logger
}

func NewNetworkSource(opts NetworkSourceOptions) (*NetworkSource, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("confcascade: network source client is required")
	}
	if opts.Path == "" {
		return nil, fmt.Errorf("confcascade: network source path is required")
	}
	s := &NetworkSource{
		client:   opts.Client,
		cache:    opts.Cache,
		policy:   opts.Retry,
		repo:     opts.Repo,
		ref:      coalesce(opts.Ref, "main"),
		path:     opts.Path,
		priority: opts.Priority,
		retryAll: opts.RetryAllFailures,
		log:      coalesce[Logger](opts.Logger, NopLogger{}),
	}
	if s.cache == nil {
		s.cache = memory.New(memory.Config{})
		s.ownsCache = true
	}
	return s, nil
}

func (s *NetworkSource) Name() string  { return "network" }
func (s *NetworkSource) Priority() int { return s.priority }
func (s *NetworkSource) Durable() bool { return false }

func (s *NetworkSource) load(ctx context.Context) (string, error) {
	key := s.cacheKey()
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		// cache outage must not take the source down; fall through to fetch
		s.log.Warn("cache read failed", Fields{"key": key, "err": err})
	}
	if ok {
		s.log.Debug("cache hit", Fields{"key": key})
		return string(raw), nil
	}

	var content []byte
	err = s.policy.Do(ctx, func() error {
		asset, ferr := s.client.FetchAsset(ctx, s.path, s.ref)
		if ferr != nil {
			if !s.retryAll && remote.IsPermanent(ferr) {
				return retry.Permanent(ferr)
			}
			return ferr
		}
		content = asset.Content
		return nil
	})
	if err != nil {
		return "", err
	}

	if err := s.cache.Set(ctx, key, content); err != nil {
		s.log.Warn("cache write failed", Fields{"key": key, "err": err})
	}
	return string(content), nil
}

func (s *NetworkSource) cacheKey() string {
	return s.repo + "@" + s.ref + ":" + s.path
}

// Close releases the private cache when the source created one itself.
// Caller-supplied caches stay open; their lifecycle belongs to the caller.
func (s *NetworkSource) Close(ctx context.Context) error {
	if s.ownsCache {
		return s.cache.Close(ctx)
	}
	return nil
}
