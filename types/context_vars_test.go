package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextVarsString(t *testing.T) {
	t.Run("renders json", func(t *testing.T) {
		cv := ContextVars{"name": "sam"}
		assert.JSONEq(t, `{"name":"sam"}`, cv.String())
	})

	t.Run("empty vars", func(t *testing.T) {
		assert.Equal(t, "{}", ContextVars{}.String())
	})

	t.Run("nil vars", func(t *testing.T) {
		var cv ContextVars
		assert.Equal(t, "null", cv.String())
	})

	t.Run("unmarshalable value", func(t *testing.T) {
		cv := ContextVars{"fn": func() {}}
		assert.Empty(t, cv.String())
	})
}
