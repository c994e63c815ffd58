package parser

import "gopkg.in/yaml.v3"

// YAML parses content with gopkg.in/yaml.v3. The zero value is ready to use.
//
// Note that yaml.v3 decodes nested mappings into map[string]interface{}, so
// the resolver's dotted-path lookup works on YAML content the same way it
// does on JSON.
type YAML[T any] struct{}

func (YAML[T]) Parse(b []byte) (T, error) {
	var v T
	err := yaml.Unmarshal(b, &v)
	return v, err
}
