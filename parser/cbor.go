package parser

import "github.com/fxamacker/cbor/v2"

// CBOR parses content with fxamacker/cbor using default decode options.
// The zero value is ready to use. Construct with NewCBOR when you need
// custom DecOptions (e.g. duplicate map key rejection).
type CBOR[T any] struct {
	dec cbor.DecMode
}

var _ Parser[struct{}] = CBOR[struct{}]{}

// NewCBOR constructs a CBOR parser with the given decode options.
func NewCBOR[T any](opts cbor.DecOptions) (CBOR[T], error) {
	dm, err := opts.DecMode()
	if err != nil {
		return CBOR[T]{}, err
	}
	return CBOR[T]{dec: dm}, nil
}

func (p CBOR[T]) Parse(b []byte) (T, error) {
	var v T
	if p.dec != nil {
		err := p.dec.Unmarshal(b, &v)
		return v, err
	}
	err := cbor.Unmarshal(b, &v)
	return v, err
}
