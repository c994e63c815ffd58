package parser

import (
	"strings"
	"testing"
)

func TestJSONNestedMaps(t *testing.T) {
	v, err := JSON[map[string]any]{}.Parse([]byte(`{"a":{"b":1}}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	nested, ok := v["a"].(map[string]any)
	if !ok || nested["b"] != float64(1) {
		t.Fatalf("parsed = %v, want nested map with b=1", v)
	}
}

func TestYAMLNestedMaps(t *testing.T) {
	v, err := YAML[map[string]any]{}.Parse([]byte("a:\n  b: 1\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	nested, ok := v["a"].(map[string]any)
	if !ok || nested["b"] != 1 {
		t.Fatalf("parsed = %v, want nested map with b=1", v)
	}
}

func TestStringIdentity(t *testing.T) {
	v, err := String{}.Parse([]byte("raw content"))
	if err != nil || v != "raw content" {
		t.Fatalf("Parse = %q, %v", v, err)
	}
}

func TestFuncAdapter(t *testing.T) {
	p := Func[int](func(b []byte) (int, error) { return len(b), nil })
	n, err := p.Parse([]byte("1234"))
	if err != nil || n != 4 {
		t.Fatalf("Parse = %d, %v", n, err)
	}
}

func TestLimitRejectsOversizedContent(t *testing.T) {
	p := Limit[string]{Inner: String{}, MaxSize: 8}

	if _, err := p.Parse([]byte("fits")); err != nil {
		t.Fatalf("Parse under limit: %v", err)
	}
	_, err := p.Parse([]byte("definitely too large"))
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Fatalf("Parse over limit = %v, want size error", err)
	}
}

func TestLimitDisabledWhenZero(t *testing.T) {
	p := Limit[string]{Inner: String{}}
	if _, err := p.Parse([]byte(strings.Repeat("x", 1<<16))); err != nil {
		t.Fatalf("unlimited Limit rejected content: %v", err)
	}
}
