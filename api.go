package confcascade

import (
	"fmt"
	"sort"

	"github.com/unkn0wn-root/confcascade/parser"
)

// Options tune the resolver. Sources, Parser and Project are required;
// everything else has sensible defaults.
type Options[T any] struct {
	// Sources to resolve from, in any order. Priorities must be distinct;
	// lower priority numbers are tried first.
	Sources []Source
	// Parser turns raw source content into the caller's config type.
	Parser parser.Parser[T]
	// Project builds the key/value view served by Get and All from a
	// freshly parsed T. It runs once per successful load.
	Project func(T) map[string]any

	Logger Logger // nil => NopLogger
	// DisableWriteThrough turns off best-effort persistence of content won
	// from a non-durable source into the configured durable source.
	DisableWriteThrough bool
	// Verbose adds hash-diff logging before each write-through. It changes
	// diagnostic volume only, never the write decision.
	Verbose bool
}

// New validates opts and returns a resolver. No source is contacted until
// the first Get, All or Reload call.
func New[T any](opts Options[T]) (*Resolver[T], error) {
	if len(opts.Sources) == 0 {
		return nil, fmt.Errorf("confcascade: at least one source is required")
	}
	if opts.Parser == nil {
		return nil, fmt.Errorf("confcascade: parser is required")
	}
	if opts.Project == nil {
		return nil, fmt.Errorf("confcascade: project function is required")
	}

	sources := make([]Source, len(opts.Sources))
	copy(sources, opts.Sources)
	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].Priority() < sources[j].Priority()
	})
	for i := 1; i < len(sources); i++ {
		if sources[i].Priority() == sources[i-1].Priority() {
			return nil, fmt.Errorf("confcascade: duplicate source priority %d", sources[i].Priority())
		}
	}

	r := &Resolver[T]{
		sources:      sources,
		parser:       opts.Parser,
		project:      opts.Project,
		log:          coalesce[Logger](opts.Logger, NopLogger{}),
		writeThrough: !opts.DisableWriteThrough,
		verbose:      opts.Verbose,
	}
	return r, nil
}
