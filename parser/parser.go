// Package parser defines how raw configuration content becomes the caller's
// typed value. A Parser is one-directional by design: the resolver always
// writes the raw, unparsed content through to the durable store, so the
// stored form stays byte-identical to what the primary source served.
package parser

import "fmt"

// Parser decodes raw content into a value of type T.
type Parser[T any] interface {
	Parse([]byte) (T, error)
}

// Func adapts a plain function to the Parser interface.
type Func[T any] func([]byte) (T, error)

func (f Func[T]) Parse(b []byte) (T, error) { return f(b) }

// String is a trivial parser that returns the content unchanged as a Go
// string. By convention this assumes UTF-8 and performs no validation.
type String struct{}

func (String) Parse(b []byte) (string, error) { return string(b), nil }

// Limit wraps another parser to enforce a maximum allowed content size.
// If MaxSize <= 0, size limiting is disabled.
//
// Typical use: protect against oversized content coming from a shared
// remote source or a tampered durable row.
type Limit[T any] struct {
	// Inner is the underlying parser being wrapped. It must be set.
	Inner Parser[T]
	// MaxSize is the maximum permitted length (in bytes) of the incoming
	// content. If content length exceeds MaxSize, Parse returns an error
	// without invoking Inner.
	MaxSize int
}

func (p Limit[T]) Parse(b []byte) (T, error) {
	if p.MaxSize > 0 && len(b) > p.MaxSize {
		var zero T
		return zero, fmt.Errorf("parser: content too large: %d > %d", len(b), p.MaxSize)
	}
	return p.Inner.Parse(b)
}
