package broker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/concierge-dev/concierge/events"
	"github.com/concierge-dev/concierge/messages"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTopic struct {
	mu        sync.Mutex
	published []events.Event
}

func (r *recordingTopic) Publish(ctx context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, event)
	return nil
}

func (r *recordingTopic) Subscribe(ctx context.Context, hook events.Hook[string]) (Subscription, error) {
	return nil, errors.New("not implemented")
}

func (r *recordingTopic) events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.published...)
}

func TestPublishHookRepublishesCallbacks(t *testing.T) {
	ctx := context.Background()
	top := &recordingTopic{}
	hook := NewHook[string](top)

	runID := uuid.New()
	turnID := uuid.New()

	userMsg := messages.New().WithSender("You").UserPrompt("hello")
	userMsg.RunID = runID
	userMsg.TurnID = turnID
	hook.OnUserPrompt(ctx, userMsg)

	hook.OnAssistantChunk(ctx, messages.New().AssistantMessage("h"))
	hook.OnToolCallChunk(ctx, messages.New().ToolCall(nil))
	hook.OnAssistantMessage(ctx, messages.New().WithSender("Concierge").AssistantMessage("hi"))
	hook.OnToolCallMessage(ctx, messages.New().ToolCall(nil))
	hook.OnToolCallResponse(ctx, messages.New().ToolResponse("1", "lookup", "found"))
	hook.OnResult(ctx, "done")
	hook.OnError(ctx, errors.New("boom"))

	published := top.events()
	require.Len(t, published, 8)

	req, ok := published[0].(events.Request[messages.UserMessage])
	require.True(t, ok)
	assert.Equal(t, runID, req.RunID)
	assert.Equal(t, turnID, req.TurnID)
	assert.Equal(t, "You", req.Sender)
	assert.Equal(t, "hello", req.Message.Content.Content)

	assert.IsType(t, events.Chunk[messages.AssistantMessage]{}, published[1])
	assert.IsType(t, events.Chunk[messages.ToolCallMessage]{}, published[2])

	resp, ok := published[3].(events.Response[messages.AssistantMessage])
	require.True(t, ok)
	assert.Equal(t, "Concierge", resp.Sender)

	assert.IsType(t, events.Response[messages.ToolCallMessage]{}, published[4])
	assert.IsType(t, events.Request[messages.ToolResponse]{}, published[5])

	res, ok := published[6].(events.Result[string])
	require.True(t, ok)
	assert.Equal(t, "done", res.Result)

	evErr, ok := published[7].(events.Error)
	require.True(t, ok)
	assert.EqualError(t, evErr.Err, "boom")
}

func TestPublishHookRoundTripsThroughLocalBroker(t *testing.T) {
	ctx := context.Background()
	top := Local[string]().Topic(ctx, "conv")

	sink := &recordingHook{}
	sub, err := top.Subscribe(ctx, sink)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	bridge := NewHook[string](top)
	bridge.OnResult(ctx, "done")

	assert.Eventually(t, func() bool {
		return sink.resultCount() == 1
	}, time.Second, 10*time.Millisecond)
}
