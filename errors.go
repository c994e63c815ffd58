package confcascade

import (
	"errors"
	"fmt"
)

// ErrNoConfiguration is the resolver-level absent marker: no source yielded
// any configuration. Distinct from a nil value for a path that is simply not
// present in an otherwise loaded configuration.
var ErrNoConfiguration = errors.New("confcascade: no configuration available from any source")

// ErrResolverDestroyed is returned by calls made after Destroy.
var ErrResolverDestroyed = errors.New("confcascade: resolver destroyed")

// ErrNoAsset reports that a durable source holds no row for its key.
var ErrNoAsset = errors.New("confcascade: asset not found in durable store")

// ParseError wraps a parser failure on content that a source delivered
// successfully. The resolver logs it and moves on to the next source;
// it never reaches callers of Get or Reload.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("confcascade: parse content from %q: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
