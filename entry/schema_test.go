package entry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchema(t *testing.T) {
	t.Run("name first", func(t *testing.T) {
		got := Schema(Fields{
			"official": String("x"),
			"name":     String("France"),
			"end-date": String("y"),
		})
		assert.Equal(t, []string{"name", "end-date", "official"}, got)
	})

	t.Run("without name", func(t *testing.T) {
		got := Schema(Fields{"b": String("x"), "a": String("y")})
		assert.Equal(t, []string{"a", "b"}, got)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, Schema(Fields{}))
		assert.Nil(t, SchemaOf(nil))
	})
}
