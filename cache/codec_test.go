package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePrimitive(t *testing.T) {
	tests := []struct {
		name     string
		value    interface{}
		expected string
	}{
		{name: "string", value: "hello", expected: "hello"},
		{name: "bool", value: true, expected: "true"},
		{name: "int", value: 123, expected: "123"},
		{name: "int64", value: int64(-7), expected: "-7"},
		{name: "float", value: 1.5, expected: "1.5"},
		{name: "float without fraction", value: 55.0, expected: "55"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := encodePrimitive(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDecodePrimitive(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		parse    bool
		expected interface{}
	}{
		{name: "number parsed", text: "123", parse: true, expected: float64(123)},
		{name: "bool parsed", text: "true", parse: true, expected: true},
		{name: "quoted string parsed", text: `"hi"`, parse: true, expected: "hi"},
		{name: "plain string falls back to raw", text: "hello", parse: true, expected: "hello"},
		{name: "raw number stays string", text: "123", parse: false, expected: "123"},
		{name: "raw bool stays string", text: "true", parse: false, expected: "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, decodePrimitive(tt.text, tt.parse))
		})
	}
}

func TestArrayRoundTrip(t *testing.T) {
	in := []interface{}{"a", float64(1), true}

	text, err := encodeArray(in)
	require.NoError(t, err)

	out, ok := decodeArray(text)
	require.True(t, ok)
	assert.Equal(t, in, out)
}

func TestDecodeArrayIllFormed(t *testing.T) {
	_, ok := decodeArray("not json")
	assert.False(t, ok)

	_, ok = decodeArray(`{"an":"object"}`)
	assert.False(t, ok)
}

func TestObjectRoundTrip(t *testing.T) {
	in := map[string]interface{}{"name": "n", "age": 55}

	fields, err := encodeObject(in)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "n", "age": "55"}, fields)

	parsed := decodeObject(fields, true)
	assert.Equal(t, "n", parsed["name"])
	assert.Equal(t, float64(55), parsed["age"])

	raw := decodeObject(fields, false)
	assert.Equal(t, "55", raw["age"])
}

func TestNormalizeArray(t *testing.T) {
	seq, ok, err := normalizeArray([]interface{}{"x"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []interface{}{"x"}, seq)

	seq, ok, err = normalizeArray(`["x",2]`)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []interface{}{"x", float64(2)}, seq)

	_, ok, err = normalizeArray(42)
	require.NoError(t, err)
	assert.False(t, ok)
}
