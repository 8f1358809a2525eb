package events

import (
	"errors"
	"testing"
	"time"

	"github.com/concierge-dev/concierge/messages"
	"github.com/concierge-dev/concierge/provider"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestFromStreamEvent(t *testing.T) {
	runID := uuid.New()
	turnID := uuid.New()

	t.Run("delim", func(t *testing.T) {
		ev := FromStreamEvent(provider.Delim{RunID: runID, TurnID: turnID, Delim: "start"}, "agent")
		d, ok := ev.(Delim)
		require.True(t, ok)
		assert.Equal(t, "start", d.Delim)
	})

	t.Run("assistant chunk carries sender", func(t *testing.T) {
		ev := FromStreamEvent(provider.Chunk[messages.AssistantMessage]{
			RunID:  runID,
			TurnID: turnID,
			Chunk:  messages.AssistantMessage{Content: messages.AssistantContentOrParts{Content: "hel"}},
		}, "Concierge")
		c, ok := ev.(Chunk[messages.AssistantMessage])
		require.True(t, ok)
		assert.Equal(t, "Concierge", c.Sender)
		assert.Equal(t, "hel", c.Chunk.Content.Content)
	})

	t.Run("tool call response", func(t *testing.T) {
		ev := FromStreamEvent(provider.Response[messages.ToolCallMessage]{
			RunID:    runID,
			TurnID:   turnID,
			Response: messages.ToolCallMessage{ToolCalls: []messages.ToolCallData{{ID: "1", Name: "lookup"}}},
		}, "Concierge")
		r, ok := ev.(Response[messages.ToolCallMessage])
		require.True(t, ok)
		assert.Equal(t, "lookup", r.Response.ToolCalls[0].Name)
	})

	t.Run("error", func(t *testing.T) {
		ev := FromStreamEvent(provider.Error{RunID: runID, TurnID: turnID, Err: errors.New("boom")}, "Concierge")
		e, ok := ev.(Error)
		require.True(t, ok)
		assert.EqualError(t, e.Err, "boom")
		assert.Equal(t, "Concierge", e.Sender)
	})
}

func TestDelimJSON(t *testing.T) {
	d := Delim{RunID: uuid.New(), TurnID: uuid.New(), Delim: "start"}

	data, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "delim", gjson.GetBytes(data, "type").String())

	var restored Delim
	require.NoError(t, restored.UnmarshalJSON(data))
	assert.Equal(t, d, restored)
}

func TestChunkJSON(t *testing.T) {
	c := Chunk[messages.AssistantMessage]{
		RunID:     uuid.New(),
		TurnID:    uuid.New(),
		Chunk:     messages.AssistantMessage{Content: messages.AssistantContentOrParts{Content: "partial"}},
		Sender:    "Concierge",
		Timestamp: strfmt.DateTime(time.Now().UTC()),
	}

	data, err := c.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "chunk", gjson.GetBytes(data, "type").String())
	assert.Equal(t, "assistant", gjson.GetBytes(data, "chunk.type").String())

	var restored Chunk[messages.AssistantMessage]
	require.NoError(t, restored.UnmarshalJSON(data))
	assert.Equal(t, c.RunID, restored.RunID)
	assert.Equal(t, c.Sender, restored.Sender)
	assert.Equal(t, "partial", restored.Chunk.Content.Content)
}

func TestRequestJSON(t *testing.T) {
	r := Request[messages.UserMessage]{
		RunID:   uuid.New(),
		TurnID:  uuid.New(),
		Message: messages.UserMessage{Content: messages.ContentOrParts{Content: "hello"}},
		Sender:  "You",
	}

	data, err := r.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "request", gjson.GetBytes(data, "type").String())
	assert.Equal(t, "user", gjson.GetBytes(data, "message.type").String())

	var restored Request[messages.UserMessage]
	require.NoError(t, restored.UnmarshalJSON(data))
	assert.Equal(t, "hello", restored.Message.Content.Content)
	assert.Equal(t, "You", restored.Sender)
}

func TestResponseJSON(t *testing.T) {
	r := Response[messages.ToolCallMessage]{
		RunID:  uuid.New(),
		TurnID: uuid.New(),
		Response: messages.ToolCallMessage{
			ToolCalls: []messages.ToolCallData{{ID: "call_1", Name: "classify_query", Arguments: `{"query":"hi"}`}},
		},
		Sender: "Concierge",
	}

	data, err := r.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "response", gjson.GetBytes(data, "type").String())
	assert.Equal(t, "tool_call", gjson.GetBytes(data, "response.type").String())

	var restored Response[messages.ToolCallMessage]
	require.NoError(t, restored.UnmarshalJSON(data))
	require.Len(t, restored.Response.ToolCalls, 1)
	assert.Equal(t, r.Response.ToolCalls[0], restored.Response.ToolCalls[0])
}

func TestResultJSON(t *testing.T) {
	r := Result[string]{
		RunID:  uuid.New(),
		TurnID: uuid.New(),
		Result: "greeting",
		Sender: "Concierge",
	}

	data, err := r.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "result", gjson.GetBytes(data, "type").String())

	var restored Result[string]
	require.NoError(t, restored.UnmarshalJSON(data))
	assert.Equal(t, "greeting", restored.Result)
	assert.Equal(t, r.RunID, restored.RunID)
}

func TestErrorJSON(t *testing.T) {
	e := Error{
		RunID:  uuid.New(),
		TurnID: uuid.New(),
		Err:    errors.New("boom"),
		Sender: "Concierge",
	}

	data, err := e.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "error", gjson.GetBytes(data, "type").String())

	var restored Error
	require.NoError(t, restored.UnmarshalJSON(data))
	assert.EqualError(t, restored.Err, "boom")
	assert.Equal(t, e.Sender, restored.Sender)
}

func TestErrorString(t *testing.T) {
	e := Error{Err: errors.New("boom")}
	assert.Contains(t, e.Error(), "boom")
}

func TestUnmarshalRejectsWrongType(t *testing.T) {
	var d Delim
	assert.Error(t, d.UnmarshalJSON([]byte(`{"type":"chunk"}`)))

	var r Result[string]
	assert.Error(t, r.UnmarshalJSON([]byte(`{"type":"delim"}`)))
}
