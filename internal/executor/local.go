package executor

import (
	"context"
	"encoding"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/concierge-dev/concierge/api"
	"github.com/concierge-dev/concierge/events"
	"github.com/concierge-dev/concierge/internal/shorttermmemory"
	"github.com/concierge-dev/concierge/messages"
	"github.com/concierge-dev/concierge/pkg/reflectx"
	"github.com/concierge-dev/concierge/pkg/slogx"
	"github.com/concierge-dev/concierge/provider"
	"github.com/concierge-dev/concierge/tool"
	"github.com/concierge-dev/concierge/types"
	"github.com/go-openapi/strfmt"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

type breakError struct{}

func (e *breakError) Error() string {
	return "break"
}

type continueError struct{}

func (e *continueError) Error() string {
	return "continue"
}

// Local runs agents in-process.
type Local[T any] struct{}

var _ Executor[string] = &Local[string]{}

func NewLocal[T any]() *Local[T] {
	return &Local[T]{}
}

func wrapErr(runID, turnID uuid.UUID, sender string, err error) (events.Error, bool) {
	if err == nil {
		return events.Error{}, false
	}
	if pErr, ok := err.(events.Error); ok { //nolint: errorlint
		return pErr, true
	}
	return events.Error{
		RunID:     runID,
		TurnID:    turnID,
		Sender:    sender,
		Err:       err,
		Timestamp: strfmt.DateTime(time.Now()),
	}, true
}

type toolCallParams[T any] struct {
	runID       uuid.UUID
	agent       api.Agent
	contextVars types.ContextVars
	mem         *shorttermmemory.Aggregator
	hook        events.Hook[T]
	toolCalls   messages.ToolCallMessage
}

// Run drives the reactor loop on a fork of the command's thread and joins
// the fork back in when the run settles.
func (l *Local[T]) Run(ctx context.Context, command RunCommand[T], promise Promise) error {
	if err := command.Validate(); err != nil {
		return err
	}

	contextVars := command.initializeContextVars()
	thread := command.Thread.Fork()
	activeAgent := command.Agent

	err := l.runReactorLoop(ctx, reactorParams[T]{
		command:     command,
		thread:      thread,
		activeAgent: activeAgent,
		contextVars: contextVars,
		promise:     promise,
	})
	if err != nil {
		var breakErr *breakError
		if errors.As(err, &breakErr) {
			// break means the promise was completed
			command.Thread.Join(thread)
			return nil
		}

		return err
	}

	command.Thread.Join(thread)
	return nil
}

type reactorParams[T any] struct {
	command     RunCommand[T]
	thread      *shorttermmemory.Aggregator
	activeAgent api.Agent
	contextVars types.ContextVars
	promise     Promise
}

func (l *Local[T]) runReactorLoop(ctx context.Context, params reactorParams[T]) error {
	for params.thread.TurnLen() < params.command.MaxTurns {
		if err := l.validateAgentAndProvider(ctx, &params); err != nil {
			return err
		}

		stream, err := l.initiateChatCompletion(ctx, &params)
		if err != nil {
			return err
		}

		if err := l.handleStreamEvents(ctx, stream, &params); err != nil {
			var continueErr *continueError
			if errors.As(err, &continueErr) {
				continue // agent transfer or tool turn, go again
			}
			return err
		}

		return l.handleStreamCompletion(ctx, &params)
	}
	return errors.New("max turns exceeded")
}

func (l *Local[T]) validateAgentAndProvider(ctx context.Context, params *reactorParams[T]) error {
	model := params.activeAgent.Model()
	if model == nil {
		err := fmt.Errorf("agent model cannot be nil")
		l.publishError(ctx, params, err)
		return err
	}

	prov := model.Provider()
	if prov == nil {
		err := fmt.Errorf("model provider cannot be nil")
		l.publishError(ctx, params, err)
		return err
	}

	return nil
}

func (l *Local[T]) initiateChatCompletion(ctx context.Context, params *reactorParams[T]) (<-chan provider.StreamEvent, error) {
	instructions, err := params.activeAgent.RenderInstructions(params.contextVars)
	if err != nil {
		l.publishError(ctx, params, fmt.Errorf("failed to render instructions: %w", err))
		return nil, fmt.Errorf("failed to render instructions: %w", err)
	}

	stream, err := params.activeAgent.Model().Provider().ChatCompletion(ctx, provider.CompletionParams{
		RunID:        params.command.ID(),
		Instructions: instructions,
		Thread:       params.thread,
		Stream:       params.command.Stream,
		Model:        params.activeAgent.Model(),
		Tools:        params.activeAgent.Tools(),
	})
	if err != nil {
		l.publishError(ctx, params, fmt.Errorf("failed to get chat completion: %w", err))
		return nil, fmt.Errorf("failed to get chat completion: %w", err)
	}

	return stream, nil
}

func (l *Local[T]) handleStreamEvents(ctx context.Context, stream <-chan provider.StreamEvent, params *reactorParams[T]) error {
	for {
		select {
		case event, hasMore := <-stream:
			if !hasMore {
				return l.handleStreamCompletion(ctx, params)
			}

			if err := l.processStreamEvent(ctx, event, params); err != nil {
				return err
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *Local[T]) handleStreamCompletion(ctx context.Context, params *reactorParams[T]) error {
	msgs := params.thread.Messages()
	if len(msgs) == 0 {
		return fmt.Errorf("no messages in thread")
	}

	lastMsg := msgs[len(msgs)-1]
	if lastMsg.Sender != params.activeAgent.Name() {
		return fmt.Errorf("last message is not from current agent %s", params.activeAgent.Name())
	}

	// a trailing tool response means the model still owes us an answer
	if _, ok := lastMsg.Payload.(messages.ToolResponse); ok {
		return &continueError{}
	}

	if assistantMsg, ok := lastMsg.Payload.(messages.AssistantMessage); ok {
		content := assistantMsg.Content.Content
		params.promise.Complete(content)
		if result, err := DefaultUnmarshal[T]()([]byte(content)); err == nil {
			params.command.Hook.OnResult(ctx, result)
		}
		return &breakError{}
	}

	return fmt.Errorf("last message from agent %s was neither assistant message nor tool response", params.activeAgent.Name())
}

func (l *Local[T]) processStreamEvent(ctx context.Context, event provider.StreamEvent, params *reactorParams[T]) error {
	switch event := event.(type) {
	case provider.Delim:
		return nil
	case provider.Error:
		// lift the provider event so the run and turn ids survive
		params.command.Hook.OnError(ctx, events.FromStreamEvent(event, params.activeAgent.Name()).(events.Error))
		params.promise.Error(event.Err)
		return event.Err
	case provider.Chunk[messages.AssistantMessage]:
		params.command.Hook.OnAssistantChunk(ctx, messages.Message[messages.AssistantMessage]{
			RunID:     event.RunID,
			TurnID:    event.TurnID,
			Payload:   event.Chunk,
			Sender:    params.activeAgent.Name(),
			Timestamp: event.Timestamp,
			Meta:      event.Meta,
		})
		return nil
	case provider.Chunk[messages.ToolCallMessage]:
		params.command.Hook.OnToolCallChunk(ctx, messages.Message[messages.ToolCallMessage]{
			RunID:     event.RunID,
			TurnID:    event.TurnID,
			Payload:   event.Chunk,
			Sender:    params.activeAgent.Name(),
			Timestamp: event.Timestamp,
			Meta:      event.Meta,
		})
		return nil
	case provider.Response[messages.ToolCallMessage]:
		return l.handleToolCallResponse(ctx, event, params)
	case provider.Response[messages.AssistantMessage]:
		return l.handleAssistantResponse(ctx, event, params)
	default:
		panic(fmt.Sprintf("unknown event type %T", event))
	}
}

func (l *Local[T]) publishError(ctx context.Context, params *reactorParams[T], err error) {
	if ee, hasErr := wrapErr(params.command.ID(), params.thread.ID(), params.activeAgent.Name(), err); hasErr {
		params.command.Hook.OnError(ctx, ee)
	}
}

func (l *Local[T]) handleAssistantResponse(ctx context.Context, event provider.Response[messages.AssistantMessage], params *reactorParams[T]) error {
	// tool calls are always delivered before the final assistant message, so
	// by now any transfers have already happened
	event.Checkpoint.MergeInto(params.thread)

	msg := messages.Message[messages.AssistantMessage]{
		RunID:     event.RunID,
		TurnID:    event.TurnID,
		Payload:   event.Response,
		Sender:    params.activeAgent.Name(),
		Timestamp: event.Timestamp,
		Meta:      event.Meta,
	}
	params.thread.AddAssistantMessage(msg)
	params.command.Hook.OnAssistantMessage(ctx, msg)
	return nil
}

func (l *Local[T]) handleToolCallResponse(ctx context.Context, event provider.Response[messages.ToolCallMessage], params *reactorParams[T]) error {
	forked := params.thread.Fork()
	event.Checkpoint.MergeInto(forked)

	toolCallMsg := messages.Message[messages.ToolCallMessage]{
		RunID:     event.RunID,
		TurnID:    event.TurnID,
		Payload:   event.Response,
		Sender:    params.activeAgent.Name(),
		Timestamp: event.Timestamp,
		Meta:      event.Meta,
	}
	forked.AddToolCall(toolCallMsg)
	params.command.Hook.OnToolCallMessage(ctx, toolCallMsg)

	toolParams := toolCallParams[T]{
		mem:         forked,
		agent:       params.activeAgent,
		runID:       event.RunID,
		hook:        params.command.Hook,
		toolCalls:   event.Response,
		contextVars: make(types.ContextVars),
	}
	if params.contextVars != nil {
		maps.Copy(toolParams.contextVars, params.contextVars)
	}

	nextAgent, err := l.handleToolCalls(ctx, toolParams)
	if err != nil {
		l.publishError(ctx, params, err)
		return err
	}

	params.thread.Join(forked)
	if len(toolParams.contextVars) > 0 {
		if params.contextVars == nil {
			params.contextVars = make(types.ContextVars)
		}
		maps.Copy(params.contextVars, toolParams.contextVars)
	}

	if nextAgent != nil {
		params.activeAgent = nextAgent
		return &continueError{}
	}

	return nil
}

func (l *Local[T]) handleToolCalls(ctx context.Context, params toolCallParams[T]) (api.Agent, error) {
	agentTools := make(map[string]tool.Definition, len(params.agent.Tools()))
	for tool := range slices.Values(params.agent.Tools()) {
		agentTools[tool.Name] = tool
	}

	var agentTransfers []messages.ToolCallData
	var otherTools []messages.ToolCallData

	for _, call := range params.toolCalls.ToolCalls {
		tool, exists := agentTools[call.Name]
		if !exists {
			return nil, events.Error{
				RunID:     params.runID,
				TurnID:    params.mem.ID(),
				Sender:    params.agent.Name(),
				Err:       fmt.Errorf("unknown tool %s", call.Name),
				Timestamp: strfmt.DateTime(time.Now()),
			}
		}

		if reflectx.ResultImplements[api.Agent](tool.Function) {
			agentTransfers = append(agentTransfers, call)
		} else {
			otherTools = append(otherTools, call)
		}
	}

	for _, call := range append(agentTransfers, otherTools...) {
		tool := agentTools[call.Name]
		args := buildArgList(call.Arguments, tool.Parameters)
		result, err := callFunction(ctx, tool.Function, args, params.contextVars)
		if err != nil {
			return nil, events.Error{
				RunID:     params.runID,
				TurnID:    params.mem.ID(),
				Sender:    params.agent.Name(),
				Err:       err,
				Timestamp: strfmt.DateTime(time.Now()),
			}
		}

		if result.Agent != nil {
			return result.Agent, nil
		}

		msg := messages.New().ToolResponse(call.ID, call.Name, result.Value)
		msg.RunID = params.runID
		msg.TurnID = params.mem.ID()
		msg.Sender = params.agent.Name()
		params.mem.AddToolResponse(msg)
		params.hook.OnToolCallResponse(ctx, msg)

		if result.ContextVariables != nil {
			if params.contextVars == nil {
				params.contextVars = make(types.ContextVars)
			}
			maps.Copy(params.contextVars, result.ContextVariables)
		}
	}

	return nil, nil
}

// buildArgList orders the model-supplied JSON arguments by the tool's
// declared parameter names.
func buildArgList(arguments string, parameters map[string]string) []reflect.Value {
	args := gjson.Parse(arguments)
	targs := make([]string, len(parameters))
	for k, v := range parameters {
		ns := strings.TrimPrefix(k, "param")
		i, _ := strconv.Atoi(ns)
		if i < 0 || i >= len(targs) {
			continue
		}
		targs[i] = v
	}

	toolArgs := make([]reflect.Value, 0)
	for _, arg := range targs {
		if arg == "" {
			continue
		}

		val := args.Get(arg)
		if !val.Exists() {
			continue
		}

		toolArgs = append(toolArgs, reflect.ValueOf(val.Value()))
	}
	return toolArgs
}

type toolResult struct {
	Value            string
	Agent            api.Agent
	ContextVariables types.ContextVars
}

var contextType = reflect.TypeOf((*context.Context)(nil)).Elem()

// callFunction invokes a tool function. The caller's context and the current
// context variables are injected wherever the signature asks for them; the
// model-supplied arguments fill the remaining parameters in order.
func callFunction(ctx context.Context, fn any, args []reflect.Value, contextVars types.ContextVars) (toolResult, error) {
	val := reflect.ValueOf(fn)
	vtpe := val.Type()

	numIn := vtpe.NumIn()
	callArgs := make([]reflect.Value, numIn)

	ai := 0
	for fi := 0; fi < numIn; fi++ {
		paramType := vtpe.In(fi)
		switch {
		case paramType == contextType:
			callArgs[fi] = reflect.ValueOf(ctx)
		case reflectx.IsRefinedType[types.ContextVars](paramType):
			callArgs[fi] = reflect.ValueOf(contextVars)
		case ai < len(args):
			vv := args[ai]
			ai++
			if vv.Type().ConvertibleTo(paramType) {
				callArgs[fi] = vv.Convert(paramType)
			} else {
				callArgs[fi] = reflect.Zero(paramType)
			}
		default:
			callArgs[fi] = reflect.Zero(paramType)
		}
	}

	results := val.Call(callArgs)
	if len(results) == 0 {
		return toolResult{}, nil
	}

	// a trailing error result aborts the call before any value conversion
	for _, res := range results {
		if err, ok := res.Interface().(error); ok && err != nil {
			return toolResult{}, err
		}
	}

	res := results[0]
	if !res.IsValid() {
		return toolResult{}, nil
	}

	switch rv := res.Interface().(type) {
	case api.Agent:
		return toolResult{Value: fmt.Sprintf(`{"assistant":%q}`, rv.Name()), Agent: rv}, nil
	case error:
		return toolResult{}, nil // nil error in value position
	case types.ContextVars:
		return toolResult{Value: "", ContextVariables: rv}, nil
	case string:
		return toolResult{Value: rv}, nil
	case time.Time:
		return toolResult{Value: rv.Format(time.RFC3339)}, nil
	case int, int8, int16, int32, int64:
		val := reflect.ValueOf(rv)
		return toolResult{Value: strconv.FormatInt(val.Int(), 10)}, nil
	case uint, uint8, uint16, uint32, uint64:
		val := reflect.ValueOf(rv)
		return toolResult{Value: strconv.FormatUint(val.Uint(), 10)}, nil
	case float32, float64:
		val := reflect.ValueOf(rv)
		return toolResult{Value: strconv.FormatFloat(val.Float(), 'f', -1, 64)}, nil
	case encoding.TextMarshaler:
		b, err := rv.MarshalText()
		if err != nil {
			slog.Error("Error marshalling function return", slogx.Error(err))
			return toolResult{}, err
		}
		return toolResult{Value: string(b)}, nil
	case fmt.Stringer:
		return toolResult{Value: rv.String()}, nil
	default:
		b, err := json.Marshal(rv)
		if err != nil {
			slog.Error("Error marshalling function return", slogx.Error(err))
			return toolResult{}, err
		}
		return toolResult{Value: string(b)}, nil
	}
}
