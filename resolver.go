package confcascade

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/confcascade/parser"
)

// Resolver walks its sources in ascending priority order and serves the
// projection of the first one that loads. It moves through
// uninitialized -> loading -> {ready, empty}; ready and empty both return
// to loading on Reload, and only Destroy retires the instance.
type Resolver[T any] struct {
	sources      []Source // sorted ascending by priority at construction
	parser       parser.Parser[T]
	project      func(T) map[string]any
	log          Logger
	writeThrough bool
	verbose      bool

	// group collapses concurrent first loads into one source walk.
	group singleflight.Group

	mu          sync.RWMutex
	initialized bool // a load has completed, successfully or not
	ready       bool // the last load produced a projection
	snapshot    map[string]any
	lastSource  string
	destroyed   bool

	destroyOnce sync.Once
}

// Get returns the value at a dotted path in the current projection, loading
// lazily on first use. An empty path returns the whole projection (a copy).
// A syntactically valid but absent path returns (nil, nil); only when no
// source yielded any configuration at all does Get return ErrNoConfiguration.
func (r *Resolver[T]) Get(ctx context.Context, path string) (any, error) {
	if err := r.ensureInitialized(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.ready {
		return nil, ErrNoConfiguration
	}
	if path == "" {
		return copyProjection(r.snapshot), nil
	}
	return lookupPath(r.snapshot, path), nil
}

// All returns a snapshot copy of the whole projection, never a live view.
func (r *Resolver[T]) All(ctx context.Context) (map[string]any, error) {
	if err := r.ensureInitialized(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.ready {
		return nil, ErrNoConfiguration
	}
	return copyProjection(r.snapshot), nil
}

// LastSource names the source that produced the current projection
// ("network" or "database"); ok is false before the first successful load
// and after every source failed.
func (r *Resolver[T]) LastSource() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastSource, r.ready
}

// Initialized reports whether a load has completed, successfully or not.
func (r *Resolver[T]) Initialized() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.initialized
}

// Reload re-runs source resolution unconditionally, replacing the projection
// on success and clearing it when every source fails. It never returns an
// error; per-source failures are logged and converted into fallback.
func (r *Resolver[T]) Reload(ctx context.Context) {
	r.mu.RLock()
	destroyed := r.destroyed
	r.mu.RUnlock()
	if destroyed {
		r.log.Warn("reload on destroyed resolver ignored", nil)
		return
	}
	r.reload(ctx)
}

// Destroy releases source-owned resources (private caches). Idempotent.
// Subsequent Get/All calls return ErrResolverDestroyed.
func (r *Resolver[T]) Destroy() {
	r.destroyOnce.Do(func() {
		r.mu.Lock()
		r.destroyed = true
		r.snapshot = nil
		r.ready = false
		r.mu.Unlock()

		for _, src := range r.sources {
			if c, ok := src.(interface{ Close(context.Context) error }); ok {
				if err := c.Close(context.Background()); err != nil {
					r.log.Warn("source close failed", Fields{"source": src.Name(), "err": err})
				}
			}
		}
	})
}

// ensureInitialized runs the first load exactly once no matter how many
// callers arrive concurrently; late arrivals block on the in-flight walk
// instead of issuing their own.
func (r *Resolver[T]) ensureInitialized(ctx context.Context) error {
	r.mu.RLock()
	initialized, destroyed := r.initialized, r.destroyed
	r.mu.RUnlock()
	if destroyed {
		return ErrResolverDestroyed
	}
	if initialized {
		return nil
	}

	_, err, _ := r.group.Do("load", func() (any, error) {
		r.mu.RLock()
		initialized := r.initialized
		r.mu.RUnlock()
		if !initialized {
			r.reload(ctx)
		}
		return nil, nil
	})
	return err
}

// reload is the resolution algorithm: sources strictly in ascending priority,
// sequentially, first success wins. A winning non-durable source triggers a
// best-effort write-through after the projection is already published, so
// readers never wait on the durable write.
func (r *Resolver[T]) reload(ctx context.Context) {
	for _, src := range r.sources {
		raw, err := src.load(ctx)
		if err != nil {
			r.log.Warn("source load failed, falling back", Fields{
				"source":   src.Name(),
				"priority": src.Priority(),
				"err":      err,
			})
			continue
		}

		parsed, err := r.parser.Parse([]byte(raw))
		if err != nil {
			perr := &ParseError{Source: src.Name(), Err: err}
			r.log.Error("content unparseable, falling back", Fields{
				"source": src.Name(),
				"err":    perr,
			})
			continue
		}

		next := r.project(parsed)

		r.mu.Lock()
		r.snapshot = next
		r.lastSource = src.Name()
		r.ready = true
		r.initialized = true
		r.mu.Unlock()

		r.log.Info("configuration loaded", Fields{
			"source": src.Name(),
			"keys":   len(next),
		})

		if !src.Durable() && r.writeThrough {
			r.writeThroughRaw(ctx, raw)
		}
		return
	}

	r.mu.Lock()
	r.snapshot = nil
	r.lastSource = ""
	r.ready = false
	r.initialized = true
	r.mu.Unlock()
	r.log.Warn("all sources failed, resolver empty", Fields{"sources": len(r.sources)})
}

// writeThroughRaw persists the raw (unparsed) content into the first
// configured durable source. Failures are logged, never propagated: the
// read already succeeded and durability is best effort.
func (r *Resolver[T]) writeThroughRaw(ctx context.Context, raw string) {
	var ds *DurableSource
	for _, src := range r.sources {
		if d, ok := src.(*DurableSource); ok {
			ds = d
			break
		}
	}
	if ds == nil {
		return
	}

	if r.verbose {
		// diff read is observability only; the write below proceeds
		// regardless of what it finds
		prev, ok, err := ds.store.LoadContent(ctx, ds.key, ds.category)
		switch {
		case err != nil:
			r.log.Debug("write-through diff read failed", Fields{"key": ds.key, "err": err})
		case !ok:
			r.log.Info("write-through creates durable copy", Fields{"key": ds.key})
		case ContentHash(prev) == ContentHash(raw):
			r.log.Debug("durable copy already current", Fields{"key": ds.key})
		default:
			r.log.Info("durable copy changing", Fields{
				"key":     ds.key,
				"oldHash": ContentHash(prev),
				"newHash": ContentHash(raw),
			})
		}
	}

	if err := ds.store.StoreContent(ctx, ds.key, raw, ds.category); err != nil {
		r.log.Error("write-through failed", Fields{"key": ds.key, "err": err})
	}
}

// lookupPath splits path on "." and walks nested string-keyed maps.
// Any miss or non-map intermediate yields nil.
func lookupPath(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = node[part]
		if !ok {
			return nil
		}
	}
	return cur
}

// copyProjection hands callers their own top-level map so a concurrent
// reload can never tear a read.
func copyProjection(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
