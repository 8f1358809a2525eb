package tool

import (
	"context"
	"reflect"
	"testing"

	"github.com/concierge-dev/concierge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMust(t *testing.T) {
	testFunc := func() {}

	t.Run("valid function", func(t *testing.T) {
		assert.NotPanics(t, func() {
			def := Must(testFunc)
			assert.Equal(t, reflect.ValueOf(testFunc).Pointer(), reflect.ValueOf(def.Function).Pointer())
		})
	})

	t.Run("invalid function", func(t *testing.T) {
		assert.Panics(t, func() {
			Must("not a function")
		})
	})
}

func TestNew(t *testing.T) {
	t.Run("rejects non-functions", func(t *testing.T) {
		_, err := New(42)
		require.Error(t, err)
	})

	t.Run("name option", func(t *testing.T) {
		def, err := New(func() {}, Name("test_tool"))
		require.NoError(t, err)
		assert.Equal(t, "test_tool", def.Name)
	})

	t.Run("description option", func(t *testing.T) {
		def, err := New(func() {}, Description("a test tool"))
		require.NoError(t, err)
		assert.Equal(t, "a test tool", def.Description)
	})

	t.Run("name defaults to function name", func(t *testing.T) {
		def, err := New(namedTestTool)
		require.NoError(t, err)
		assert.Equal(t, "namedTestTool", def.Name)
	})
}

func namedTestTool() string { return "ok" }

func TestParameters(t *testing.T) {
	tests := []struct {
		name       string
		parameters []string
		want       map[string]string
	}{
		{
			name:       "no parameters",
			parameters: []string{},
			want:       map[string]string{},
		},
		{
			name:       "single parameter",
			parameters: []string{"query"},
			want: map[string]string{
				"param0": "query",
			},
		},
		{
			name:       "multiple parameters",
			parameters: []string{"query", "query_type", "limit"},
			want: map[string]string{
				"param0": "query",
				"param1": "query_type",
				"param2": "limit",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := New(func(a, b, c string) {}, Parameters(tt.parameters...))
			require.NoError(t, err)
			assert.Equal(t, tt.want, def.Parameters)
		})
	}
}

func TestToNameAndSchema(t *testing.T) {
	t.Run("named parameters", func(t *testing.T) {
		def := Must(
			func(query string) string { return query },
			Name("classify_query"),
			Parameters("query"),
		)

		name, schema := def.ToNameAndSchema()
		assert.Equal(t, "classify_query", name)

		require.NotNil(t, schema.Properties)
		prop, ok := schema.Properties.Get("query")
		require.True(t, ok)
		assert.Equal(t, "string", prop.Type)
		assert.Equal(t, []string{"query"}, schema.Required)
	})

	t.Run("context parameters stay out of the schema", func(t *testing.T) {
		def := Must(
			func(ctx context.Context, cv types.ContextVars, query string) string { return query },
			Name("with_injected"),
			Parameters("query"),
		)

		_, schema := def.ToNameAndSchema()
		assert.Equal(t, 1, schema.Properties.Len())
		_, ok := schema.Properties.Get("query")
		assert.True(t, ok)
	})

	t.Run("unnamed parameters get positional names", func(t *testing.T) {
		def := Must(func(a string, b int) {}, Name("positional"))

		_, schema := def.ToNameAndSchema()
		assert.Equal(t, 2, schema.Properties.Len())
		_, ok := schema.Properties.Get("param0")
		assert.True(t, ok)
		_, ok = schema.Properties.Get("param1")
		assert.True(t, ok)
	})

	t.Run("no parameters", func(t *testing.T) {
		def := Must(func() string { return "" }, Name("no_params"))

		_, schema := def.ToNameAndSchema()
		assert.Equal(t, 0, schema.Properties.Len())
		assert.Empty(t, schema.Required)
	})
}
