package config

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// OrderedMap is a string-keyed mapping that remembers declaration order.
// Category precedence in file_types depends on that order, which plain Go
// maps would lose.
type OrderedMap[V any] struct {
	keys   []string
	values map[string]V
}

// NewOrderedMap returns an empty map ready for Set.
func NewOrderedMap[V any]() *OrderedMap[V] {
	return &OrderedMap[V]{values: make(map[string]V)}
}

// Set appends key (or replaces its value in place, keeping its position).
func (m *OrderedMap[V]) Set(key string, value V) *OrderedMap[V] {
	if m.values == nil {
		m.values = make(map[string]V)
	}
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
	return m
}

// Get returns the value for key.
func (m OrderedMap[V]) Get(key string) (V, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in declaration order. The slice is a copy.
func (m OrderedMap[V]) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of entries.
func (m OrderedMap[V]) Len() int {
	return len(m.keys)
}

// Each calls fn for every entry in declaration order until fn returns false.
func (m OrderedMap[V]) Each(fn func(key string, value V) bool) {
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

// Clone returns an independent copy; slice values are shared.
func (m OrderedMap[V]) Clone() OrderedMap[V] {
	out := OrderedMap[V]{keys: m.Keys(), values: make(map[string]V, len(m.values))}
	for k, v := range m.values {
		out.values[k] = v
	}
	return out
}

// MarshalJSON writes the object with keys in declaration order.
func (m OrderedMap[V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, fmt.Errorf("marshal %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, recording key order as it streams.
func (m *OrderedMap[V]) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*m = OrderedMap[V]{values: make(map[string]V)}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected a JSON object, got %v", tok)
	}

	out := OrderedMap[V]{values: make(map[string]V)}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := kt.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", kt)
		}
		var v V
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("decode %q: %w", key, err)
		}
		out.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = out
	return nil
}

// MarshalYAML emits a mapping node in declaration order.
func (m OrderedMap[V]) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range m.keys {
		valueNode := &yaml.Node{}
		if err := valueNode.Encode(m.values[k]); err != nil {
			return nil, fmt.Errorf("marshal %q: %w", k, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			valueNode,
		)
	}
	return node, nil
}

// UnmarshalYAML reads a mapping node, keeping key order.
func (m *OrderedMap[V]) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*m = OrderedMap[V]{values: make(map[string]V)}
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	out := OrderedMap[V]{values: make(map[string]V)}
	for i := 0; i+1 < len(node.Content); i += 2 {
		var key string
		if err := node.Content[i].Decode(&key); err != nil {
			return err
		}
		var v V
		if err := node.Content[i+1].Decode(&v); err != nil {
			return fmt.Errorf("decode %q: %w", key, err)
		}
		out.Set(key, v)
	}
	*m = out
	return nil
}
