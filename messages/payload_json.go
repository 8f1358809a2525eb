package messages

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// Payload types marshal standalone in the same flattened shape the envelope
// uses, "type" discriminator included, so events can embed them directly.

func (m InstructionsMessage) MarshalJSON() ([]byte, error) { return marshalPayload(m) }
func (m UserMessage) MarshalJSON() ([]byte, error)         { return marshalPayload(m) }
func (m AssistantMessage) MarshalJSON() ([]byte, error)    { return marshalPayload(m) }
func (m ToolCallMessage) MarshalJSON() ([]byte, error)     { return marshalPayload(m) }
func (m ToolResponse) MarshalJSON() ([]byte, error)        { return marshalPayload(m) }
func (m Retry) MarshalJSON() ([]byte, error)               { return marshalPayload(m) }

func (m *InstructionsMessage) UnmarshalJSON(data []byte) error {
	return unmarshalPayloadInto(m, "instructions", data)
}

func (m *UserMessage) UnmarshalJSON(data []byte) error {
	return unmarshalPayloadInto(m, "user", data)
}

func (m *AssistantMessage) UnmarshalJSON(data []byte) error {
	return unmarshalPayloadInto(m, "assistant", data)
}

func (m *ToolCallMessage) UnmarshalJSON(data []byte) error {
	return unmarshalPayloadInto(m, "tool_call", data)
}

func (m *ToolResponse) UnmarshalJSON(data []byte) error {
	return unmarshalPayloadInto(m, "tool_response", data)
}

func (m *Retry) UnmarshalJSON(data []byte) error {
	return unmarshalPayloadInto(m, "retry", data)
}

func unmarshalPayloadInto[T ModelMessage](dst *T, tpe string, data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	if t := gjson.GetBytes(data, "type"); t.Exists() && t.String() != tpe {
		return fmt.Errorf("expected message type %q, got %q", tpe, t.String())
	}
	payload, err := unmarshalPayload(tpe, data)
	if err != nil {
		return err
	}
	pv, ok := payload.(T)
	if !ok {
		return fmt.Errorf("message type %q does not fit %T", tpe, *dst)
	}
	*dst = pv
	return nil
}
