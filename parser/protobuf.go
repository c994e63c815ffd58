package parser

import "google.golang.org/protobuf/proto"

// Protobuf parses content into a concrete proto message.
type Protobuf[T proto.Message] struct {
	new func() T // constructor for a concrete message (e.g. func() *cfgpb.Config { return &cfgpb.Config{} })
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{new: ctor}
}

func (p Protobuf[T]) Parse(b []byte) (T, error) {
	m := p.new()
	err := proto.Unmarshal(b, m)
	return m, err
}
