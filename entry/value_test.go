package entry

import (
	"encoding/json"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestValue(t *testing.T) {
	s := String("France")
	assert.False(t, s.IsList())
	assert.Equal(t, "France", s.String())
	assert.Equal(t, []string{"France"}, s.Strings())

	l := List("a", "b")
	assert.True(t, l.IsList())
	assert.Equal(t, "a;b", l.String())
	assert.Equal(t, []string{"a", "b"}, l.Strings())
	assert.True(t, l.Equal(List("a", "b")))
	assert.False(t, l.Equal(List("b", "a")))
	assert.False(t, s.Equal(List("France")))
}

func TestValue_JSON(t *testing.T) {
	b, err := json.Marshal(Fields{"fields": List("a", "b"), "name": String("x")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"fields":["a","b"],"name":"x"}`, string(b))

	var got Fields
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, Fields{"fields": List("a", "b"), "name": String("x")}, got)
}

func TestValue_YAML(t *testing.T) {
	var got Fields
	err := yaml.Unmarshal([]byte("name: France\nfields:\n  - a\n  - b\n"), &got)
	require.NoError(t, err)
	assert.Equal(t, Fields{"name": String("France"), "fields": List("a", "b")}, got)

	err = yaml.Unmarshal([]byte("nested:\n  a: b\n"), &got)
	require.Error(t, err)
}

func TestValue_CBOR(t *testing.T) {
	in := Fields{"fields": List("a", "b"), "name": String("x")}
	b, err := cbor.Marshal(in)
	require.NoError(t, err)

	var got Fields
	require.NoError(t, cbor.Unmarshal(b, &got))
	assert.Equal(t, in, got)
}
