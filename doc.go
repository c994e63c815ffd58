// Package confcascade resolves application configuration from a prioritized
// list of sources and keeps a durable copy synchronized with the primary one.
// Sources are tried strictly in ascending priority order; the first success
// wins, is parsed, and is projected into a stable key/value view. When the
// winning source is not durable, the raw content is written through to the
// durable store (best effort). When every source fails, callers observe an
// explicit absent result (ErrNoConfiguration), never a panic or a propagated
// source error.
//
// Components:
//   - Source: one candidate origin of configuration, ranked by priority.
//     NetworkSource (remote asset API, cached + retried) and DurableSource
//     (relational store) form a closed set.
//   - cache.Cache: bounded TTL byte cache shielding the remote API
//     (memory LRU by default; Ristretto, BigCache, Redis adapters).
//   - retry.Policy: bounded exponential backoff with jitter around remote
//     fetches. Not-found and unauthorized responses fail fast by default.
//   - parser.Parser[T]: turns raw content into the caller's config type
//     (JSON, YAML, CBOR, Msgpack, Protobuf, ...).
//   - pgstore.Store: content-hash versioned asset store with an append-only
//     history, over database/sql.
//
// Resolution:
//
//	net, _ := confcascade.NewNetworkSource(netOpts)     // priority 1
//	db, _  := confcascade.NewDurableSource(dbOpts)      // priority 2
//	r, _ := confcascade.New[map[string]any](confcascade.Options[map[string]any]{
//	    Sources: []confcascade.Source{net, db},
//	    Parser:  parser.JSON[map[string]any]{},
//	    Project: func(m map[string]any) map[string]any { return m },
//	})
//	v, err := r.Get(ctx, "features.rollout.percent")
//
// A nil value with a nil error means the path is valid but absent in the
// loaded configuration; ErrNoConfiguration means no source yielded anything.
package confcascade
