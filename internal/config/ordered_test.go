package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestOrderedMapSetKeepsPosition(t *testing.T) {
	m := NewOrderedMap[int]()
	m.Set("b", 1).Set("a", 2).Set("b", 3)

	assert.Equal(t, []string{"b", "a"}, m.Keys())
	v, ok := m.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Equal(t, 2, m.Len())
}

func TestOrderedMapJSONOrder(t *testing.T) {
	var m OrderedMap[[]string]
	require.NoError(t, json.Unmarshal([]byte(`{"z": [".a"], "m": [], "a": [".b", ".c"]}`), &m))
	assert.Equal(t, []string{"z", "m", "a"}, m.Keys())

	out, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"z":[".a"],"m":[],"a":[".b",".c"]}`, string(out))

	require.NoError(t, json.Unmarshal([]byte(`null`), &m))
	assert.Equal(t, 0, m.Len())

	assert.Error(t, json.Unmarshal([]byte(`["not", "an", "object"]`), &m))
}

func TestOrderedMapYAMLOrder(t *testing.T) {
	var m OrderedMap[string]
	require.NoError(t, yaml.Unmarshal([]byte("zeta: z\nalpha: a\n"), &m))
	assert.Equal(t, []string{"zeta", "alpha"}, m.Keys())

	out, err := yaml.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, "zeta: z\nalpha: a\n", string(out))

	assert.Error(t, yaml.Unmarshal([]byte("- a\n- b\n"), &m))
}

func TestOrderedMapEachStops(t *testing.T) {
	m := NewOrderedMap[int]()
	m.Set("one", 1).Set("two", 2).Set("three", 3)

	var seen []string
	m.Each(func(k string, _ int) bool {
		seen = append(seen, k)
		return k != "two"
	})
	assert.Equal(t, []string{"one", "two"}, seen)
}
