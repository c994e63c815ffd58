package confcascade

import (
	"context"
	"fmt"
)

// Source is one candidate origin of configuration content, ranked by
// priority; lower numbers are tried first. The implementation set is closed
// (NetworkSource, DurableSource) so the resolver can reason about durability
// exhaustively.
type Source interface {
	// Name identifies the source in logs and LastSource ("network", "database").
	Name() string
	// Priority ranks the source; must be unique within one resolver.
	Priority() int
	// Durable reports whether the source is itself the durable copy.
	// Content won from a non-durable source is written through.
	Durable() bool

	load(ctx context.Context) (string, error)
}

// DurableStore is the capability the resolver needs from the relational
// store: a keyed read for DurableSource and a keyed upsert for write-through.
// pgstore.Store implements it.
type DurableStore interface {
	// LoadContent returns (content, true, nil) when the key exists,
	// ("", false, nil) when it does not, and an error only on read failure.
	LoadContent(ctx context.Context, key, category string) (string, bool, error)
	// StoreContent upserts content under key; unchanged content is a no-op.
	// Category "" means the store default.
	StoreContent(ctx context.Context, key, content, category string) error
}

// DurableSourceOptions configure a DurableSource.
type DurableSourceOptions struct {
	Store    DurableStore // required
	Key      string       // required
	Category string       // optional category filter; "" matches any
	Priority int
	Logger   Logger
}

// DurableSource reads configuration from (and receives write-through into)
// a DurableStore. One-per-resolver is typical.
type DurableSource struct {
	store    DurableStore
	key      string
	category string
	priority int
	log      Logger
}

func NewDurableSource(opts DurableSourceOptions) (*DurableSource, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("confcascade: durable source store is required")
	}
	if opts.Key == "" {
		return nil, fmt.Errorf("confcascade: durable source key is required")
	}
	return &DurableSource{
		store:    opts.Store,
		key:      opts.Key,
		category: opts.Category,
		priority: opts.Priority,
		log:      coalesce[Logger](opts.Logger, NopLogger{}),
	}, nil
}

func (s *DurableSource) Name() string  { return "database" }
func (s *DurableSource) Priority() int { return s.priority }
func (s *DurableSource) Durable() bool { return true }

func (s *DurableSource) load(ctx context.Context) (string, error) {
	content, ok, err := s.store.LoadContent(ctx, s.key, s.category)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNoAsset
	}
	return content, nil
}
