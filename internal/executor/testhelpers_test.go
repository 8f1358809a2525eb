package executor

import (
	"context"
	"strings"
	"sync"
	"text/template"

	"github.com/concierge-dev/concierge/api"
	"github.com/concierge-dev/concierge/messages"
	"github.com/concierge-dev/concierge/provider"
	"github.com/concierge-dev/concierge/tool"
	"github.com/concierge-dev/concierge/types"
)

// scriptedProvider replays one batch of stream events per ChatCompletion
// call, so a test can drive the reactor loop through several turns.
type scriptedProvider struct {
	mu      sync.Mutex
	scripts [][]provider.StreamEvent
	calls   int
	err     error

	lastParams provider.CompletionParams
}

func newScriptedProvider(scripts ...[]provider.StreamEvent) *scriptedProvider {
	return &scriptedProvider{scripts: scripts}
}

func (s *scriptedProvider) ChatCompletion(ctx context.Context, params provider.CompletionParams) (<-chan provider.StreamEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}

	s.lastParams = params

	var script []provider.StreamEvent
	if s.calls < len(s.scripts) {
		script = s.scripts[s.calls]
	}
	s.calls++

	ch := make(chan provider.StreamEvent, len(script))
	for _, ev := range script {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func (s *scriptedProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type testModel struct {
	prov provider.Provider
}

func (m testModel) Name() string                { return "test_model" }
func (m testModel) Provider() provider.Provider { return m.prov }

type testAgent struct {
	name         string
	model        api.Model
	instructions string
	tools        []tool.Definition
}

func (a *testAgent) Name() string {
	if a.name == "" {
		return "test_agent"
	}
	return a.name
}

func (a *testAgent) Model() api.Model         { return a.model }
func (a *testAgent) Tools() []tool.Definition { return a.tools }
func (a *testAgent) ParallelToolCalls() bool  { return false }

func (a *testAgent) RenderInstructions(cv types.ContextVars) (string, error) {
	instructions := a.instructions
	if instructions == "" {
		return "test instructions", nil
	}
	if !strings.Contains(instructions, "{{") {
		return instructions, nil
	}

	tmpl, err := template.New("instructions").Option("missingkey=error").Parse(instructions)
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, cv); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func newTestAgent(prov provider.Provider, tools ...tool.Definition) *testAgent {
	return &testAgent{
		model: testModel{prov: prov},
		tools: tools,
	}
}

func assistantResponse(content string) provider.StreamEvent {
	return provider.Response[messages.AssistantMessage]{
		Response: messages.AssistantMessage{
			Content: messages.AssistantContentOrParts{Content: content},
		},
	}
}

func toolCallResponse(calls ...messages.ToolCallData) provider.StreamEvent {
	return provider.Response[messages.ToolCallMessage]{
		Response: messages.ToolCallMessage{ToolCalls: calls},
	}
}

// countingHook counts callbacks; enough for asserting the reactor loop's
// event plumbing without a broker in the middle.
type countingHook struct {
	mu                sync.Mutex
	userPrompts       int
	assistantChunks   int
	toolCallChunks    int
	assistantMessages int
	toolCallMessages  int
	toolCallResponses int
	results           []string
	errs              []error
	lastSender        string
}

func (h *countingHook) OnUserPrompt(ctx context.Context, msg messages.Message[messages.UserMessage]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.userPrompts++
}

func (h *countingHook) OnAssistantChunk(ctx context.Context, msg messages.Message[messages.AssistantMessage]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.assistantChunks++
	h.lastSender = msg.Sender
}

func (h *countingHook) OnToolCallChunk(ctx context.Context, msg messages.Message[messages.ToolCallMessage]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.toolCallChunks++
	h.lastSender = msg.Sender
}

func (h *countingHook) OnAssistantMessage(ctx context.Context, msg messages.Message[messages.AssistantMessage]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.assistantMessages++
	h.lastSender = msg.Sender
}

func (h *countingHook) OnToolCallMessage(ctx context.Context, msg messages.Message[messages.ToolCallMessage]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.toolCallMessages++
	h.lastSender = msg.Sender
}

func (h *countingHook) OnToolCallResponse(ctx context.Context, msg messages.Message[messages.ToolResponse]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.toolCallResponses++
}

func (h *countingHook) OnResult(ctx context.Context, result string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results = append(h.results, result)
}

func (h *countingHook) OnError(ctx context.Context, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, err)
}
