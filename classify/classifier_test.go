package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/concierge-dev/concierge/knowledge"
	"github.com/concierge-dev/concierge/messages"
	"github.com/concierge-dev/concierge/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedProvider struct {
	answer     string
	err        error
	lastParams provider.CompletionParams
}

func (s *scriptedProvider) ChatCompletion(ctx context.Context, params provider.CompletionParams) (<-chan provider.StreamEvent, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.lastParams = params

	ch := make(chan provider.StreamEvent, 1)
	ch <- provider.Response[messages.AssistantMessage]{
		Response: messages.AssistantMessage{
			Content: messages.AssistantContentOrParts{Content: s.answer},
		},
	}
	close(ch)
	return ch, nil
}

type scriptedModel struct {
	prov provider.Provider
}

func (m scriptedModel) Name() string                { return "scripted" }
func (m scriptedModel) Provider() provider.Provider { return m.prov }

func TestNewRequiresBase(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   knowledge.Category
	}{
		{
			name:   "exact category",
			answer: "greeting",
			want:   knowledge.Greeting,
		},
		{
			name:   "case and whitespace are forgiven",
			answer: "  Weather \n",
			want:   knowledge.Weather,
		},
		{
			name:   "invalid answer falls back to default",
			answer: "I think this is about sports",
			want:   knowledge.Default,
		},
		{
			name:   "empty answer falls back to default",
			answer: "",
			want:   knowledge.Default,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prov := &scriptedProvider{answer: tt.answer}
			c, err := New(knowledge.Builtin(), Model(scriptedModel{prov: prov}))
			require.NoError(t, err)

			cat, err := c.Classify(context.Background(), "some query")
			require.NoError(t, err)
			assert.Equal(t, tt.want, cat)
		})
	}
}

func TestClassifyPromptListsCategories(t *testing.T) {
	prov := &scriptedProvider{answer: "greeting"}
	c, err := New(knowledge.Builtin(), Model(scriptedModel{prov: prov}))
	require.NoError(t, err)

	_, err = c.Classify(context.Background(), "hello there")
	require.NoError(t, err)

	msgs := prov.lastParams.Thread.Messages()
	require.NotEmpty(t, msgs)
	prompt, ok := msgs[0].Payload.(messages.UserMessage)
	require.True(t, ok)
	assert.Contains(t, prompt.Content.Content, `"hello there"`)
	assert.Contains(t, prompt.Content.Content, "- greeting:")
	assert.Contains(t, prompt.Content.Content, "- default:")
}

func TestClassifyProviderError(t *testing.T) {
	prov := &scriptedProvider{err: errors.New("rate limited")}
	c, err := New(knowledge.Builtin(), Model(scriptedModel{prov: prov}))
	require.NoError(t, err)

	cat, err := c.Classify(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, knowledge.Default, cat)
}

func TestQueryTool(t *testing.T) {
	prov := &scriptedProvider{answer: "weather"}
	c, err := New(knowledge.Builtin(), Model(scriptedModel{prov: prov}))
	require.NoError(t, err)

	def := c.QueryTool()
	assert.Equal(t, "classify_query", def.Name)
	assert.Contains(t, def.Description, "greeting")
	assert.Contains(t, def.Description, "default")
	assert.Equal(t, map[string]string{"param0": "query"}, def.Parameters)

	fn, ok := def.Function.(func(context.Context, string) (string, error))
	require.True(t, ok)

	out, err := fn(context.Background(), "will it rain?")
	require.NoError(t, err)
	assert.Equal(t, "weather", out)
}

func TestTemplateTool(t *testing.T) {
	base := knowledge.Builtin()
	def := TemplateTool(base)

	assert.Equal(t, "get_response_template", def.Name)
	assert.Equal(t, map[string]string{"param0": "query_type"}, def.Parameters)

	fn, ok := def.Function.(func(context.Context, string) string)
	require.True(t, ok)

	t.Run("known category", func(t *testing.T) {
		assert.Equal(t, base.Template(knowledge.Help), fn(context.Background(), "help"))
	})

	t.Run("case insensitive", func(t *testing.T) {
		assert.Equal(t, base.Template(knowledge.Greeting), fn(context.Background(), "GREETING"))
	})

	t.Run("unknown category falls back to default", func(t *testing.T) {
		assert.Equal(t, base.Template(knowledge.Default), fn(context.Background(), "sports"))
	})
}
