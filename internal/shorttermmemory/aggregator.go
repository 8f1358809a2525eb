package shorttermmemory

import (
	"iter"
	"slices"

	"github.com/concierge-dev/concierge/messages"
	"github.com/concierge-dev/concierge/pkg/uuidx"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// AggregatedMessages is the ordered message history of a run.
type AggregatedMessages []messages.Message[messages.ModelMessage]

func (a AggregatedMessages) Len() int {
	return len(a)
}

// New returns an empty aggregator with a fresh ID and zero usage.
func New() *Aggregator {
	return &Aggregator{
		id:       uuidx.New(),
		messages: make(AggregatedMessages, 0),
		usage:    Usage{},
	}
}

// Aggregator owns the message history and usage counters of a run. Forked
// copies remember the length at fork time so a later Join appends only the
// messages the fork added.
type Aggregator struct {
	id       uuid.UUID
	messages AggregatedMessages
	initLen  int
	usage    Usage
}

// ID returns the aggregator's identifier.
func (a *Aggregator) ID() uuid.UUID {
	return a.id
}

// Len returns the total number of messages held.
func (a *Aggregator) Len() int {
	return a.messages.Len()
}

// TurnLen returns the number of messages added since the fork point.
func (a *Aggregator) TurnLen() int {
	return len(a.messages) - a.initLen
}

// Messages returns a copy of the message history.
func (a *Aggregator) Messages() AggregatedMessages {
	return slices.Clone(a.messages)
}

// MessagesIter iterates the history without copying it.
func (a *Aggregator) MessagesIter() iter.Seq[messages.Message[messages.ModelMessage]] {
	return slices.Values(a.messages)
}

// eraseType widens Message[T] to Message[ModelMessage]; safe because T is
// constrained to ModelMessage.
func eraseType[T messages.ModelMessage](m messages.Message[T]) messages.Message[messages.ModelMessage] {
	return messages.Message[messages.ModelMessage]{
		RunID:     m.RunID,
		TurnID:    m.TurnID,
		Payload:   m.Payload,
		Sender:    m.Sender,
		Timestamp: m.Timestamp,
		Meta:      m.Meta,
	}
}

// AddMessage appends a message of any payload type to the aggregator.
func AddMessage[T messages.ModelMessage](a *Aggregator, m messages.Message[T]) {
	a.add(eraseType(m))
}

// AddUserPrompt appends a user message.
func (a *Aggregator) AddUserPrompt(m messages.Message[messages.UserMessage]) {
	a.add(eraseType(m))
}

// AddAssistantMessage appends an assistant response.
func (a *Aggregator) AddAssistantMessage(m messages.Message[messages.AssistantMessage]) {
	a.add(eraseType(m))
}

// AddToolCall appends a tool call issued by the model.
func (a *Aggregator) AddToolCall(m messages.Message[messages.ToolCallMessage]) {
	a.add(eraseType(m))
}

// AddToolResponse appends the result of a tool invocation.
func (a *Aggregator) AddToolResponse(m messages.Message[messages.ToolResponse]) {
	a.add(eraseType(m))
}

func (a *Aggregator) add(m messages.Message[messages.ModelMessage]) {
	a.messages = append(a.messages, m)
}

// Usage returns the accumulated token usage.
func (a *Aggregator) Usage() Usage {
	return a.usage
}

func (a *Aggregator) AddUsage(u *Usage) {
	a.usage.AddUsage(u)
}

// Fork returns a new aggregator seeded with a copy of the current history.
// Its fork point is set so Join can tell old messages from new ones.
func (a *Aggregator) Fork() *Aggregator {
	return &Aggregator{
		id:       uuid.New(),
		messages: slices.Clone(a.messages),
		initLen:  a.Len(),
	}
}

// Join appends the messages b added after its fork point and folds in its
// usage counters.
func (a *Aggregator) Join(b *Aggregator) {
	a.messages = append(a.messages, b.messages[b.initLen:]...)
	a.usage.AddUsage(&b.usage)
}

// Checkpoint snapshots the aggregator's current state.
func (a *Aggregator) Checkpoint() Checkpoint {
	return Checkpoint{
		id:       a.id,
		messages: slices.Clone(a.messages),
		usage:    a.usage,
		initLen:  a.initLen,
	}
}

// Checkpoint is an immutable snapshot of an aggregator: its ID, message
// history, and usage at the time it was taken.
type Checkpoint struct {
	id       uuid.UUID
	messages AggregatedMessages
	usage    Usage
	initLen  int
}

// ID returns the ID of the aggregator the checkpoint was taken from.
func (c *Checkpoint) ID() uuid.UUID {
	return c.id
}

// Messages returns a copy of the checkpointed history.
func (c *Checkpoint) Messages() AggregatedMessages {
	return slices.Clone(c.messages)
}

// Usage returns the checkpointed usage counters.
func (c *Checkpoint) Usage() Usage {
	return c.usage
}

// MergeInto applies the checkpoint to another aggregator: messages past the
// checkpoint's fork point are appended and usage is folded in.
func (c *Checkpoint) MergeInto(other *Aggregator) {
	other.messages = append(other.messages, c.messages[c.initLen:]...)
	other.usage.AddUsage(&c.usage)
	if other.id == uuid.Nil {
		other.id = c.id
	}
}

func (c Checkpoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID       string                                     `json:"id"`
		Messages []*messages.Message[messages.ModelMessage] `json:"messages"`
		Usage    Usage                                      `json:"usage"`
		InitLen  int                                        `json:"init_len"`
	}{
		ID:       c.id.String(),
		Messages: ptrSlice(c.messages),
		Usage:    c.usage,
		InitLen:  c.initLen,
	})
}

func ptrSlice[T any](in []T) (out []*T) {
	out = make([]*T, len(in))
	for i := range in {
		out[i] = &in[i]
	}
	return
}

func (c *Checkpoint) UnmarshalJSON(data []byte) error {
	var tmp struct {
		ID       string                                    `json:"id"`
		Messages []messages.Message[messages.ModelMessage] `json:"messages"`
		Usage    Usage                                     `json:"usage"`
		InitLen  int                                       `json:"init_len"`
	}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	id, err := uuid.Parse(tmp.ID)
	if err != nil {
		return err
	}
	c.id = id
	c.messages = tmp.Messages
	c.usage = tmp.Usage
	c.initLen = tmp.InitLen
	return nil
}
