// Package broker moves run events between publishers and subscribed hooks.
// The local implementation fans out in-process; the NATS implementation
// mirrors the same topics over a message bus.
package broker

import (
	"context"
	"fmt"

	"github.com/concierge-dev/concierge/events"
	"github.com/concierge-dev/concierge/messages"
	json "github.com/goccy/go-json"
)

type Broker[T any] interface {
	Topic(context.Context, string) Topic[T]
}

type Topic[T any] interface {
	Publish(context.Context, events.Event) error
	Subscribe(context.Context, events.Hook[T]) (Subscription, error)
}

type Subscription interface {
	ID() string
	Unsubscribe()
}

// dispatchEvent translates one published event into the matching hook
// callback. Delim events are stream control and are not forwarded.
func dispatchEvent[T any](ctx context.Context, event events.Event, hook events.Hook[T]) {
	switch event := event.(type) {
	case events.Delim:
	case events.Request[messages.UserMessage]:
		hook.OnUserPrompt(ctx, messages.Message[messages.UserMessage]{
			RunID:     event.RunID,
			TurnID:    event.TurnID,
			Payload:   event.Message,
			Sender:    event.Sender,
			Timestamp: event.Timestamp,
			Meta:      event.Meta,
		})
	case events.Chunk[messages.AssistantMessage]:
		hook.OnAssistantChunk(ctx, messages.Message[messages.AssistantMessage]{
			RunID:     event.RunID,
			TurnID:    event.TurnID,
			Payload:   event.Chunk,
			Sender:    event.Sender,
			Timestamp: event.Timestamp,
			Meta:      event.Meta,
		})
	case events.Chunk[messages.ToolCallMessage]:
		hook.OnToolCallChunk(ctx, messages.Message[messages.ToolCallMessage]{
			RunID:     event.RunID,
			TurnID:    event.TurnID,
			Payload:   event.Chunk,
			Sender:    event.Sender,
			Timestamp: event.Timestamp,
			Meta:      event.Meta,
		})
	case events.Request[messages.ToolResponse]:
		hook.OnToolCallResponse(ctx, messages.Message[messages.ToolResponse]{
			RunID:     event.RunID,
			TurnID:    event.TurnID,
			Payload:   event.Message,
			Sender:    event.Sender,
			Timestamp: event.Timestamp,
			Meta:      event.Meta,
		})
	case events.Response[messages.ToolCallMessage]:
		hook.OnToolCallMessage(ctx, messages.Message[messages.ToolCallMessage]{
			RunID:     event.RunID,
			TurnID:    event.TurnID,
			Payload:   event.Response,
			Sender:    event.Sender,
			Timestamp: event.Timestamp,
			Meta:      event.Meta,
		})
	case events.Response[messages.AssistantMessage]:
		hook.OnAssistantMessage(ctx, messages.Message[messages.AssistantMessage]{
			RunID:     event.RunID,
			TurnID:    event.TurnID,
			Payload:   event.Response,
			Sender:    event.Sender,
			Timestamp: event.Timestamp,
			Meta:      event.Meta,
		})
	case events.Result[T]:
		hook.OnResult(ctx, event.Result)
	case events.Result[any]:
		// results that crossed the wire decode with a dynamic payload
		result, err := coerceResult[T](event.Result)
		if err != nil {
			hook.OnError(ctx, fmt.Errorf("invalid result payload: %w", err))
			return
		}
		hook.OnResult(ctx, result)
	case events.Error:
		hook.OnError(ctx, event.Err)
	default:
		panic(fmt.Sprintf("unknown event type: %T", event))
	}
}

func coerceResult[T any](value any) (T, error) {
	if v, ok := value.(T); ok {
		return v, nil
	}

	var result T
	raw, err := json.Marshal(value)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, err
	}
	return result, nil
}
