package jsonx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDynamicJSON(t *testing.T) {
	t.Run("struct", func(t *testing.T) {
		in := struct {
			Name  string `json:"name"`
			Count int    `json:"count"`
		}{Name: "greeting", Count: 2}

		out, err := ToDynamicJSON(in)
		require.NoError(t, err)
		assert.Equal(t, "greeting", out["name"])
		assert.EqualValues(t, 2, out["count"])
	})

	t.Run("nested map", func(t *testing.T) {
		out, err := ToDynamicJSON(map[string]any{"outer": map[string]any{"inner": true}})
		require.NoError(t, err)
		inner, ok := out["outer"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, true, inner["inner"])
	})

	t.Run("unmarshalable value", func(t *testing.T) {
		_, err := ToDynamicJSON(func() {})
		assert.Error(t, err)
	})

	t.Run("non-object value", func(t *testing.T) {
		_, err := ToDynamicJSON([]string{"a"})
		assert.Error(t, err)
	})
}
