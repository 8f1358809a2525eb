package knowledge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltin(t *testing.T) {
	base := Builtin()

	assert.Equal(t, 4, base.Len())
	assert.Equal(t, []Category{Greeting, Weather, Help, Default}, base.Categories())

	entry, ok := base.Entry(Greeting)
	require.True(t, ok)
	assert.Equal(t, "Hello! I'm an advanced OpenAI agent. How can I help you today?", entry.Template)

	assert.Equal(t, "I can help with greetings, weather queries, and general information. Just ask!", base.Template(Help))
}

func TestTemplateFallsBackToDefault(t *testing.T) {
	base := Builtin()

	want := base.Template(Default)
	assert.Equal(t, want, base.Template("pizza"))
	assert.Equal(t, want, base.Template(""))
}

func TestContains(t *testing.T) {
	base := Builtin()

	assert.True(t, base.Contains("greeting"))
	assert.True(t, base.Contains("GREETING"))
	assert.True(t, base.Contains("Weather"))
	assert.False(t, base.Contains("pizza"))
	assert.False(t, base.Contains(""))
}

func TestNormalize(t *testing.T) {
	base := Builtin()

	tests := []struct {
		raw  string
		want Category
	}{
		{"greeting", Greeting},
		{"  Greeting\n", Greeting},
		{"WEATHER", Weather},
		{"banana", Default},
		{"", Default},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, base.Normalize(tt.raw))
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("requires default category", func(t *testing.T) {
		_, err := New(map[Category]Entry{
			Greeting: {Template: "hi"},
		}, []Category{Greeting})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "default")
	})

	t.Run("requires templates", func(t *testing.T) {
		_, err := New(map[Category]Entry{
			Greeting: {Template: "  "},
			Default:  {Template: "fallback"},
		}, []Category{Greeting, Default})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no template")
	})

	t.Run("rejects undefined categories in order", func(t *testing.T) {
		_, err := New(map[Category]Entry{
			Default: {Template: "fallback"},
		}, []Category{Default, "ghost"})
		require.Error(t, err)
	})

	t.Run("rejects duplicates in order", func(t *testing.T) {
		_, err := New(map[Category]Entry{
			Default: {Template: "fallback"},
		}, []Category{Default, Default})
		require.Error(t, err)
	})

	t.Run("preserves order", func(t *testing.T) {
		base, err := New(map[Category]Entry{
			"billing": {Template: "billing template"},
			Default:   {Template: "fallback"},
			"support": {Template: "support template"},
		}, []Category{"support", "billing", Default})
		require.NoError(t, err)
		assert.Equal(t, []Category{"support", "billing", Default}, base.Categories())
	})
}

func TestFromJSON(t *testing.T) {
	t.Run("valid document", func(t *testing.T) {
		base, err := FromJSON([]byte(`{
			"greeting": {"description": "hello", "template": "Hi there!"},
			"default": {"template": "fallback"}
		}`))
		require.NoError(t, err)
		assert.Equal(t, []Category{Greeting, Default}, base.Categories())
		assert.Equal(t, "Hi there!", base.Template(Greeting))
	})

	t.Run("keys are normalized", func(t *testing.T) {
		base, err := FromJSON([]byte(`{
			"Greeting": {"template": "Hi there!"},
			"DEFAULT": {"template": "fallback"}
		}`))
		require.NoError(t, err)
		assert.True(t, base.Contains("greeting"))
		assert.Equal(t, "fallback", base.Template(Default))
	})

	t.Run("missing default", func(t *testing.T) {
		_, err := FromJSON([]byte(`{"greeting": {"template": "Hi there!"}}`))
		require.Error(t, err)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := FromJSON([]byte(`{"greeting":`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid knowledge base")
	})
}

func TestDescribe(t *testing.T) {
	base := Builtin()
	desc := base.Describe()

	lines := strings.Split(desc, "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "- greeting: the user is saying hello or opening the conversation", lines[0])
	assert.True(t, strings.HasPrefix(lines[3], "- default: "))
}

func TestDescribeFallsBackToTemplate(t *testing.T) {
	base, err := New(map[Category]Entry{
		Default: {Template: "fallback"},
	}, []Category{Default})
	require.NoError(t, err)

	assert.Equal(t, "- default: fallback", base.Describe())
}
