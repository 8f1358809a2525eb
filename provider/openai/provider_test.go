package openai

import (
	"context"
	"testing"

	"github.com/concierge-dev/concierge/internal/shorttermmemory"
	"github.com/concierge-dev/concierge/messages"
	"github.com/concierge-dev/concierge/provider"
	"github.com/concierge-dev/concierge/tool"
	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelRegistry(t *testing.T) {
	assert.Equal(t, "gpt-4o-mini", GPT4oMini().Name())

	// instances are cached per name
	assert.Same(t, GPT4oMini(), GPT4oMini())
	assert.Same(t, Model("custom-model"), Model("custom-model"))
}

func TestBuildRequest(t *testing.T) {
	p := New()
	thread := shorttermmemory.New()
	thread.AddUserPrompt(messages.New().WithSender("You").UserPrompt("hello"))

	classify := tool.Must(
		func(query string) string { return "" },
		tool.Name("classify_query"),
		tool.Description("classifies a query"),
		tool.Parameters("query"),
	)

	params := provider.CompletionParams{
		RunID:  uuid.New(),
		Thread: thread,
		Model:  GPT4oMini(),
		Tools:  []tool.Definition{classify},
	}
	params.Instructions = "be helpful"

	oai, err := p.buildRequest(context.Background(), &params)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", oai.Model.Value)
	assert.EqualValues(t, 1, oai.N.Value)
	assert.InDelta(t, 0.1, oai.Temperature.Value, 0.0001)
	assert.Equal(t, "You", oai.User.Value)

	require.Len(t, oai.Tools.Value, 1)
	def := oai.Tools.Value[0].Function.Value
	assert.Equal(t, "classify_query", def.Name.Value)
	assert.Equal(t, "classifies a query", def.Description.Value)
	props, ok := def.Parameters.Value["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "query")

	assert.True(t, oai.ParallelToolCalls.Value)

	// system prompt plus the user message
	require.Len(t, oai.Messages.Value, 2)
}

func TestBuildRequestWithoutTools(t *testing.T) {
	p := New()
	thread := shorttermmemory.New()
	thread.AddUserPrompt(messages.New().UserPrompt("hello"))

	oai, err := p.buildRequest(context.Background(), &provider.CompletionParams{
		RunID:  uuid.New(),
		Thread: thread,
		Model:  GPT4oMini(),
	})
	require.NoError(t, err)

	assert.False(t, oai.Tools.Present)
	assert.False(t, oai.ParallelToolCalls.Present)
}

func TestBuildRequestRejectsNilToolFunction(t *testing.T) {
	p := New()
	thread := shorttermmemory.New()

	_, err := p.buildRequest(context.Background(), &provider.CompletionParams{
		RunID:  uuid.New(),
		Thread: thread,
		Model:  GPT4oMini(),
		Tools:  []tool.Definition{{Name: "broken"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil function")
}

func TestMessagesToOpenAI(t *testing.T) {
	thread := shorttermmemory.New()
	thread.AddUserPrompt(messages.New().WithSender("You").UserPrompt("hi"))
	thread.AddToolCall(messages.New().ToolCall([]messages.ToolCallData{
		{ID: "call_1", Name: "classify_query", Arguments: `{"query":"hi"}`},
	}))
	thread.AddToolResponse(messages.New().ToolResponse("call_1", "classify_query", "greeting"))
	thread.AddAssistantMessage(messages.New().AssistantMessage("Hello!"))

	result, user := messagesToOpenAI("be helpful", thread.MessagesIter())

	assert.Equal(t, "You", user)
	// system, user, assistant tool call, tool response, assistant reply
	require.Len(t, result, 5)
}

func TestCompletionChunkToStreamEvent(t *testing.T) {
	thread := shorttermmemory.New()
	command := &provider.CompletionParams{RunID: uuid.New(), Thread: thread}

	t.Run("empty chunk", func(t *testing.T) {
		ev := completionChunkToStreamEvent(&openai.ChatCompletionChunk{}, command)
		assert.Equal(t, provider.Delim{Delim: "empty"}, ev)
	})

	t.Run("content chunk", func(t *testing.T) {
		chunk := &openai.ChatCompletionChunk{
			Choices: []openai.ChatCompletionChunkChoice{
				{Delta: openai.ChatCompletionChunkChoicesDelta{Content: "hel"}},
			},
		}
		ev := completionChunkToStreamEvent(chunk, command)
		ac, ok := ev.(provider.Chunk[messages.AssistantMessage])
		require.True(t, ok)
		assert.Equal(t, "hel", ac.Chunk.Content.Content)
		assert.Equal(t, command.RunID, ac.RunID)
	})

	t.Run("tool call chunk", func(t *testing.T) {
		chunk := &openai.ChatCompletionChunk{
			Choices: []openai.ChatCompletionChunkChoice{
				{Delta: openai.ChatCompletionChunkChoicesDelta{
					ToolCalls: []openai.ChatCompletionChunkChoicesDeltaToolCall{
						{ID: "call_1", Function: openai.ChatCompletionChunkChoicesDeltaToolCallsFunction{
							Name:      "classify_query",
							Arguments: `{"query":"hi"}`,
						}},
					},
				}},
			},
		}
		ev := completionChunkToStreamEvent(chunk, command)
		tc, ok := ev.(provider.Chunk[messages.ToolCallMessage])
		require.True(t, ok)
		require.Len(t, tc.Chunk.ToolCalls, 1)
		assert.Equal(t, "classify_query", tc.Chunk.ToolCalls[0].Name)
	})
}

func TestCompletionToStreamEvent(t *testing.T) {
	t.Run("assistant response with usage", func(t *testing.T) {
		thread := shorttermmemory.New()
		command := &provider.CompletionParams{RunID: uuid.New(), Thread: thread}

		chat := &openai.ChatCompletion{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: "Hello!"}},
			},
			Usage: openai.CompletionUsage{PromptTokens: 3, CompletionTokens: 5, TotalTokens: 8},
		}

		ev := completionToStreamEvent(chat, command)
		resp, ok := ev.(provider.Response[messages.AssistantMessage])
		require.True(t, ok)
		assert.Equal(t, "Hello!", resp.Response.Content.Content)

		usage := thread.Usage()
		assert.Equal(t, int64(8), usage.TotalTokens)
		assert.Equal(t, int64(8), resp.Checkpoint.Usage().TotalTokens)
	})

	t.Run("tool call response", func(t *testing.T) {
		thread := shorttermmemory.New()
		command := &provider.CompletionParams{RunID: uuid.New(), Thread: thread}

		chat := &openai.ChatCompletion{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{
					ToolCalls: []openai.ChatCompletionMessageToolCall{
						{ID: "call_1", Function: openai.ChatCompletionMessageToolCallFunction{
							Name:      "classify_query",
							Arguments: `{"query":"hi"}`,
						}},
					},
				}},
			},
		}

		ev := completionToStreamEvent(chat, command)
		resp, ok := ev.(provider.Response[messages.ToolCallMessage])
		require.True(t, ok)
		require.Len(t, resp.Response.ToolCalls, 1)
		assert.Equal(t, "call_1", resp.Response.ToolCalls[0].ID)
	})

	t.Run("zero usage is not recorded", func(t *testing.T) {
		thread := shorttermmemory.New()
		command := &provider.CompletionParams{RunID: uuid.New(), Thread: thread}

		completionToStreamEvent(&openai.ChatCompletion{}, command)
		assert.Equal(t, shorttermmemory.Usage{}, thread.Usage())
	})
}
