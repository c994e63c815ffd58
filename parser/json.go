package parser

import "encoding/json"

// JSON parses content with encoding/json. The zero value is ready to use.
type JSON[T any] struct{}

func (JSON[T]) Parse(b []byte) (T, error) {
	var v T
	err := json.Unmarshal(b, &v)
	return v, err
}
