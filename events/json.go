package events

import (
	"fmt"

	"github.com/concierge-dev/concierge/messages"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// ToJSON serializes an event with its "type" discriminator.
func ToJSON(event Event) ([]byte, error) {
	if event == nil {
		return nil, fmt.Errorf("event is required")
	}
	return json.Marshal(event)
}

// FromJSON decodes an event produced by ToJSON. For chunk, request, and
// response events the payload's own "type" field selects the concrete
// message type; results decode with a dynamic payload.
func FromJSON(data []byte) (Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json: %s", data)
	}

	tpe := gjson.GetBytes(data, "type")
	if !tpe.Exists() {
		return nil, fmt.Errorf("missing required field 'type'")
	}

	switch tpe.String() {
	case "delim":
		var d Delim
		if err := d.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		return d, nil
	case "chunk":
		switch inner := gjson.GetBytes(data, "chunk.type").String(); inner {
		case "assistant":
			var c Chunk[messages.AssistantMessage]
			if err := c.UnmarshalJSON(data); err != nil {
				return nil, err
			}
			return c, nil
		case "tool_call":
			var c Chunk[messages.ToolCallMessage]
			if err := c.UnmarshalJSON(data); err != nil {
				return nil, err
			}
			return c, nil
		default:
			return nil, fmt.Errorf("unknown chunk payload type: %q", inner)
		}
	case "request":
		switch inner := gjson.GetBytes(data, "message.type").String(); inner {
		case "user":
			var r Request[messages.UserMessage]
			if err := r.UnmarshalJSON(data); err != nil {
				return nil, err
			}
			return r, nil
		case "tool_response":
			var r Request[messages.ToolResponse]
			if err := r.UnmarshalJSON(data); err != nil {
				return nil, err
			}
			return r, nil
		default:
			return nil, fmt.Errorf("unknown request payload type: %q", inner)
		}
	case "response":
		switch inner := gjson.GetBytes(data, "response.type").String(); inner {
		case "assistant":
			var r Response[messages.AssistantMessage]
			if err := r.UnmarshalJSON(data); err != nil {
				return nil, err
			}
			return r, nil
		case "tool_call":
			var r Response[messages.ToolCallMessage]
			if err := r.UnmarshalJSON(data); err != nil {
				return nil, err
			}
			return r, nil
		default:
			return nil, fmt.Errorf("unknown response payload type: %q", inner)
		}
	case "result":
		var r Result[any]
		if err := r.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		return r, nil
	case "error":
		var e Error
		if err := e.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown event type: %s", tpe.String())
	}
}
