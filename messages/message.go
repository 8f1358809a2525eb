package messages

import (
	"fmt"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ModelMessage seals the set of payloads a Message can carry.
type ModelMessage interface {
	message()
}

// Request marks payloads that travel towards the model.
type Request interface {
	ModelMessage
	request()
}

// Response marks payloads produced by the model.
type Response interface {
	ModelMessage
	response()
}

// Message is the envelope around a conversation payload. RunID identifies
// the run that produced the message, TurnID the conversation turn within it.
type Message[T ModelMessage] struct {
	RunID     uuid.UUID
	TurnID    uuid.UUID
	Payload   T
	Sender    string
	Timestamp strfmt.DateTime
	Meta      gjson.Result
	_         struct{} // require keyed usage
}

// InstructionsMessage carries the system prompt for a run.
type InstructionsMessage struct {
	Content string
	_       struct{}
}

func (InstructionsMessage) message() {}

// UserMessage is a prompt typed (or otherwise supplied) by the user.
type UserMessage struct {
	Content ContentOrParts
	_       struct{}
}

func (UserMessage) message() {}
func (UserMessage) request() {}

// AssistantMessage is a reply generated by the model.
type AssistantMessage struct {
	Content AssistantContentOrParts
	Refusal string
	_       struct{}
}

func (AssistantMessage) message()  {}
func (AssistantMessage) response() {}

// ToolCallData describes a single function invocation requested by the model.
type ToolCallData struct {
	ID        string
	Name      string
	Arguments string
	_         struct{}
}

// CallTool builds a ToolCallData from parsed arguments.
func CallTool(id, name string, args gjson.Result) ToolCallData {
	return ToolCallData{ID: id, Name: name, Arguments: args.Raw}
}

// ToolCallMessage is the model asking for one or more tools to run.
type ToolCallMessage struct {
	ToolCalls []ToolCallData
	_         struct{}
}

func (ToolCallMessage) message()  {}
func (ToolCallMessage) response() {}

// ToolResponse is the result of a tool invocation, fed back to the model.
type ToolResponse struct {
	ToolName   string
	ToolCallID string
	Content    string
	_          struct{}
}

func (ToolResponse) message() {}
func (ToolResponse) request() {}

// Retry reports a failed tool invocation so the model can try again.
type Retry struct {
	Error      error
	ToolName   string
	ToolCallID string
	_          struct{}
}

func (Retry) message() {}
func (Retry) request() {}

// New starts a message builder stamped with the current time.
func New() messageBuilder {
	return messageBuilder{timestamp: strfmt.DateTime(time.Now())}
}

type messageBuilder struct {
	sender    string
	timestamp strfmt.DateTime
	metadata  gjson.Result
	_         struct{}
}

func (b messageBuilder) WithSender(sender string) messageBuilder {
	b.sender = sender
	return b
}

func (b messageBuilder) WithTimestamp(ts strfmt.DateTime) messageBuilder {
	b.timestamp = ts
	return b
}

func (b messageBuilder) WithMetadata(meta gjson.Result) messageBuilder {
	b.metadata = meta
	return b
}

func (b messageBuilder) Instructions(content string) Message[InstructionsMessage] {
	return Message[InstructionsMessage]{
		Payload:   InstructionsMessage{Content: content},
		Sender:    b.sender,
		Timestamp: b.timestamp,
		Meta:      b.metadata,
	}
}

func (b messageBuilder) UserPrompt(content string) Message[UserMessage] {
	return Message[UserMessage]{
		Payload:   UserMessage{Content: ContentOrParts{Content: content}},
		Sender:    b.sender,
		Timestamp: b.timestamp,
		Meta:      b.metadata,
	}
}

func (b messageBuilder) UserPromptMultipart(parts ...ContentPart) Message[UserMessage] {
	return Message[UserMessage]{
		Payload:   UserMessage{Content: ContentOrParts{Parts: parts}},
		Sender:    b.sender,
		Timestamp: b.timestamp,
		Meta:      b.metadata,
	}
}

func (b messageBuilder) AssistantMessage(content string) Message[AssistantMessage] {
	return Message[AssistantMessage]{
		Payload:   AssistantMessage{Content: AssistantContentOrParts{Content: content}},
		Sender:    b.sender,
		Timestamp: b.timestamp,
		Meta:      b.metadata,
	}
}

func (b messageBuilder) AssistantRefusal(refusal string) Message[AssistantMessage] {
	return Message[AssistantMessage]{
		Payload:   AssistantMessage{Refusal: refusal},
		Sender:    b.sender,
		Timestamp: b.timestamp,
		Meta:      b.metadata,
	}
}

func (b messageBuilder) AssistantMessageMultipart(parts ...AssistantContentPart) Message[AssistantMessage] {
	return Message[AssistantMessage]{
		Payload:   AssistantMessage{Content: AssistantContentOrParts{Parts: parts}},
		Sender:    b.sender,
		Timestamp: b.timestamp,
		Meta:      b.metadata,
	}
}

func (b messageBuilder) ToolCall(calls []ToolCallData) Message[ToolCallMessage] {
	return Message[ToolCallMessage]{
		Payload:   ToolCallMessage{ToolCalls: calls},
		Sender:    b.sender,
		Timestamp: b.timestamp,
		Meta:      b.metadata,
	}
}

func (b messageBuilder) ToolResponse(callID, toolName, content string) Message[ToolResponse] {
	return Message[ToolResponse]{
		Payload:   ToolResponse{ToolCallID: callID, ToolName: toolName, Content: content},
		Sender:    b.sender,
		Timestamp: b.timestamp,
		Meta:      b.metadata,
	}
}

func (b messageBuilder) ToolError(callID, toolName string, err error) Message[Retry] {
	return Message[Retry]{
		Payload:   Retry{ToolCallID: callID, ToolName: toolName, Error: err},
		Sender:    b.sender,
		Timestamp: b.timestamp,
		Meta:      b.metadata,
	}
}

// MarshalJSON flattens the payload fields next to the envelope fields and
// adds a "type" discriminator.
func (m Message[T]) MarshalJSON() ([]byte, error) {
	result, err := marshalPayload(any(m.Payload))
	if err != nil {
		return nil, err
	}

	if m.RunID != uuid.Nil {
		if result, err = sjson.SetBytes(result, "run_id", m.RunID.String()); err != nil {
			return nil, err
		}
	}
	if m.TurnID != uuid.Nil {
		if result, err = sjson.SetBytes(result, "turn_id", m.TurnID.String()); err != nil {
			return nil, err
		}
	}
	if m.Sender != "" {
		if result, err = sjson.SetBytes(result, "sender", m.Sender); err != nil {
			return nil, err
		}
	}
	if !m.Timestamp.IsZero() {
		if result, err = sjson.SetBytes(result, "timestamp", m.Timestamp.String()); err != nil {
			return nil, err
		}
	}
	if m.Meta.Exists() {
		if result, err = sjson.SetRawBytes(result, "meta", []byte(m.Meta.Raw)); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func marshalPayload(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case InstructionsMessage:
		return sjson.SetBytes([]byte(`{"type":"instructions"}`), "content", p.Content)
	case UserMessage:
		cb, err := p.Content.MarshalJSON()
		if err != nil {
			return nil, err
		}
		return sjson.SetRawBytes([]byte(`{"type":"user"}`), "content", cb)
	case AssistantMessage:
		result := []byte(`{"type":"assistant"}`)
		var err error
		if p.Content.Content != "" || p.Content.Parts != nil {
			var cb []byte
			if cb, err = p.Content.MarshalJSON(); err != nil {
				return nil, err
			}
			if result, err = sjson.SetRawBytes(result, "content", cb); err != nil {
				return nil, err
			}
		}
		if p.Refusal != "" {
			if result, err = sjson.SetBytes(result, "refusal", p.Refusal); err != nil {
				return nil, err
			}
		}
		return result, nil
	case ToolCallMessage:
		calls := make([]map[string]string, len(p.ToolCalls))
		for i, tc := range p.ToolCalls {
			calls[i] = map[string]string{"id": tc.ID, "name": tc.Name, "arguments": tc.Arguments}
		}
		cb, err := json.Marshal(calls)
		if err != nil {
			return nil, err
		}
		return sjson.SetRawBytes([]byte(`{"type":"tool_call"}`), "tool_calls", cb)
	case ToolResponse:
		result, err := sjson.SetBytes([]byte(`{"type":"tool_response"}`), "tool_name", p.ToolName)
		if err != nil {
			return nil, err
		}
		if result, err = sjson.SetBytes(result, "tool_call_id", p.ToolCallID); err != nil {
			return nil, err
		}
		return sjson.SetBytes(result, "content", p.Content)
	case Retry:
		if p.Error == nil {
			return nil, fmt.Errorf("retry message requires an error")
		}
		result, err := sjson.SetBytes([]byte(`{"type":"retry"}`), "error", p.Error.Error())
		if err != nil {
			return nil, err
		}
		if p.ToolName != "" {
			if result, err = sjson.SetBytes(result, "tool_name", p.ToolName); err != nil {
				return nil, err
			}
		}
		if p.ToolCallID != "" {
			if result, err = sjson.SetBytes(result, "tool_call_id", p.ToolCallID); err != nil {
				return nil, err
			}
		}
		return result, nil
	default:
		return nil, fmt.Errorf("unknown message payload %T", payload)
	}
}

// UnmarshalJSON reverses MarshalJSON. When T is the ModelMessage interface
// the payload type is resolved from the "type" field; for a concrete T the
// discriminator must match.
func (m *Message[T]) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	tpe := gjson.GetBytes(data, "type")
	if !tpe.Exists() {
		return fmt.Errorf("missing required field 'type'")
	}

	payload, err := unmarshalPayload(tpe.String(), data)
	if err != nil {
		return err
	}
	pv, ok := payload.(T)
	if !ok {
		return fmt.Errorf("message type %q does not fit %T", tpe.String(), m.Payload)
	}
	m.Payload = pv

	if runID := gjson.GetBytes(data, "run_id"); runID.Exists() {
		if err := m.RunID.UnmarshalText([]byte(runID.String())); err != nil {
			return fmt.Errorf("invalid run_id: %w", err)
		}
	}
	if turnID := gjson.GetBytes(data, "turn_id"); turnID.Exists() {
		if err := m.TurnID.UnmarshalText([]byte(turnID.String())); err != nil {
			return fmt.Errorf("invalid turn_id: %w", err)
		}
	}
	m.Sender = gjson.GetBytes(data, "sender").String()
	if ts := gjson.GetBytes(data, "timestamp"); ts.Exists() {
		if err := m.Timestamp.UnmarshalText([]byte(ts.String())); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
	}
	if meta := gjson.GetBytes(data, "meta"); meta.Exists() {
		m.Meta = meta
	}
	return nil
}

func unmarshalPayload(tpe string, data []byte) (ModelMessage, error) {
	switch tpe {
	case "instructions":
		content := gjson.GetBytes(data, "content")
		if !content.Exists() {
			return nil, fmt.Errorf("missing required field 'content'")
		}
		return InstructionsMessage{Content: content.String()}, nil
	case "user":
		content := gjson.GetBytes(data, "content")
		if !content.Exists() {
			return nil, fmt.Errorf("missing required field 'content'")
		}
		var cp ContentOrParts
		if err := cp.UnmarshalJSON([]byte(content.Raw)); err != nil {
			return nil, err
		}
		return UserMessage{Content: cp}, nil
	case "assistant":
		content := gjson.GetBytes(data, "content")
		refusal := gjson.GetBytes(data, "refusal")
		if content.Exists() && refusal.Exists() {
			return nil, fmt.Errorf("both 'content' and 'refusal' cannot be present")
		}
		var msg AssistantMessage
		if content.Exists() {
			if err := msg.Content.UnmarshalJSON([]byte(content.Raw)); err != nil {
				return nil, err
			}
		}
		msg.Refusal = refusal.String()
		return msg, nil
	case "tool_call":
		calls := gjson.GetBytes(data, "tool_calls")
		if !calls.Exists() {
			return nil, fmt.Errorf("missing required field 'tool_calls'")
		}
		if !calls.IsArray() {
			return nil, fmt.Errorf("'tool_calls' must be an array")
		}
		var tcd []ToolCallData
		for _, call := range calls.Array() {
			tcd = append(tcd, ToolCallData{
				ID:        call.Get("id").String(),
				Name:      call.Get("name").String(),
				Arguments: call.Get("arguments").String(),
			})
		}
		return ToolCallMessage{ToolCalls: tcd}, nil
	case "tool_response":
		toolName := gjson.GetBytes(data, "tool_name")
		if !toolName.Exists() {
			return nil, fmt.Errorf("missing required field 'tool_name'")
		}
		callID := gjson.GetBytes(data, "tool_call_id")
		if !callID.Exists() {
			return nil, fmt.Errorf("missing required field 'tool_call_id'")
		}
		content := gjson.GetBytes(data, "content")
		if !content.Exists() {
			return nil, fmt.Errorf("missing required field 'content'")
		}
		return ToolResponse{
			ToolName:   toolName.String(),
			ToolCallID: callID.String(),
			Content:    content.String(),
		}, nil
	case "retry":
		errMsg := gjson.GetBytes(data, "error")
		if !errMsg.Exists() {
			return nil, fmt.Errorf("missing required field 'error'")
		}
		return Retry{
			Error:      fmt.Errorf("%s", errMsg.String()),
			ToolName:   gjson.GetBytes(data, "tool_name").String(),
			ToolCallID: gjson.GetBytes(data, "tool_call_id").String(),
		}, nil
	default:
		return nil, fmt.Errorf("unknown message type: %s", tpe)
	}
}
