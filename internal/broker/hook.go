package broker

import (
	"context"
	"log/slog"

	"github.com/concierge-dev/concierge/events"
	"github.com/concierge-dev/concierge/messages"
	"github.com/concierge-dev/concierge/pkg/slogx"
)

// NewHook returns a hook that republishes every callback onto a topic. It is
// the bridge that mirrors a run's events to an external broker.
func NewHook[T any](topic Topic[T]) events.Hook[T] {
	return &publishHook[T]{topic: topic}
}

type publishHook[T any] struct {
	topic Topic[T]
}

func (p *publishHook[T]) publish(ctx context.Context, event events.Event) {
	if err := p.topic.Publish(ctx, event); err != nil {
		slog.WarnContext(ctx, "failed to publish event", slogx.Error(err))
	}
}

func (p *publishHook[T]) OnUserPrompt(ctx context.Context, msg messages.Message[messages.UserMessage]) {
	p.publish(ctx, events.Request[messages.UserMessage]{
		RunID:     msg.RunID,
		TurnID:    msg.TurnID,
		Message:   msg.Payload,
		Sender:    msg.Sender,
		Timestamp: msg.Timestamp,
		Meta:      msg.Meta,
	})
}

func (p *publishHook[T]) OnAssistantChunk(ctx context.Context, msg messages.Message[messages.AssistantMessage]) {
	p.publish(ctx, events.Chunk[messages.AssistantMessage]{
		RunID:     msg.RunID,
		TurnID:    msg.TurnID,
		Chunk:     msg.Payload,
		Sender:    msg.Sender,
		Timestamp: msg.Timestamp,
		Meta:      msg.Meta,
	})
}

func (p *publishHook[T]) OnToolCallChunk(ctx context.Context, msg messages.Message[messages.ToolCallMessage]) {
	p.publish(ctx, events.Chunk[messages.ToolCallMessage]{
		RunID:     msg.RunID,
		TurnID:    msg.TurnID,
		Chunk:     msg.Payload,
		Sender:    msg.Sender,
		Timestamp: msg.Timestamp,
		Meta:      msg.Meta,
	})
}

func (p *publishHook[T]) OnAssistantMessage(ctx context.Context, msg messages.Message[messages.AssistantMessage]) {
	p.publish(ctx, events.Response[messages.AssistantMessage]{
		RunID:     msg.RunID,
		TurnID:    msg.TurnID,
		Response:  msg.Payload,
		Sender:    msg.Sender,
		Timestamp: msg.Timestamp,
		Meta:      msg.Meta,
	})
}

func (p *publishHook[T]) OnToolCallMessage(ctx context.Context, msg messages.Message[messages.ToolCallMessage]) {
	p.publish(ctx, events.Response[messages.ToolCallMessage]{
		RunID:     msg.RunID,
		TurnID:    msg.TurnID,
		Response:  msg.Payload,
		Sender:    msg.Sender,
		Timestamp: msg.Timestamp,
		Meta:      msg.Meta,
	})
}

func (p *publishHook[T]) OnToolCallResponse(ctx context.Context, msg messages.Message[messages.ToolResponse]) {
	p.publish(ctx, events.Request[messages.ToolResponse]{
		RunID:     msg.RunID,
		TurnID:    msg.TurnID,
		Message:   msg.Payload,
		Sender:    msg.Sender,
		Timestamp: msg.Timestamp,
		Meta:      msg.Meta,
	})
}

func (p *publishHook[T]) OnResult(ctx context.Context, result T) {
	p.publish(ctx, events.Result[T]{Result: result})
}

func (p *publishHook[T]) OnError(ctx context.Context, err error) {
	p.publish(ctx, events.Error{Err: err})
}
