// Package classify routes free-form user queries onto knowledge base
// categories by delegating the classification to a dedicated agent.
package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/concierge-dev/concierge/agent"
	"github.com/concierge-dev/concierge/api"
	"github.com/concierge-dev/concierge/internal/executor"
	"github.com/concierge-dev/concierge/internal/shorttermmemory"
	"github.com/concierge-dev/concierge/knowledge"
	"github.com/concierge-dev/concierge/messages"
	"github.com/concierge-dev/concierge/tool"
	"github.com/fogfish/opts"
)

const classifierInstructions = `You are a query classification assistant.
Your task is to analyze the user's query and classify it into the most appropriate category.

You will be given:
1. The user's query
2. A list of available categories with descriptions

Respond ONLY with the category name that best matches the query.
Do not include any explanations or additional text in your response.`

// maxClassifierTurns bounds the classifier run; classification needs a
// single completion, anything more is the model misbehaving.
const maxClassifierTurns = 5

// Classifier owns the classification agent and the knowledge base whose
// categories it maps queries onto.
type Classifier struct {
	name  string
	model api.Model
	base  *knowledge.Base
	agent api.Agent
	exec  executor.Executor[string]
}

var (
	// Name overrides the classifier agent's name.
	Name = opts.ForName[Classifier, string]("name")
	// Model overrides the model the classifier runs on.
	Model = opts.ForName[Classifier, api.Model]("model")
)

// New builds a classifier over the given knowledge base.
func New(base *knowledge.Base, options ...opts.Option[Classifier]) (*Classifier, error) {
	if base == nil {
		return nil, fmt.Errorf("knowledge base is required")
	}

	c := &Classifier{
		name: "Query Classifier",
		base: base,
		exec: executor.NewLocal[string](),
	}
	if err := opts.Apply(c, options); err != nil {
		return nil, err
	}

	if c.model != nil {
		c.agent = agent.New(
			agent.Name(c.name),
			agent.Model(c.model),
			agent.Instructions(classifierInstructions),
		)
	} else {
		c.agent = agent.New(
			agent.Name(c.name),
			agent.Instructions(classifierInstructions),
		)
	}
	return c, nil
}

// Classify runs the classification agent over the query and normalizes its
// answer onto a known category. Invalid model output falls back to the
// default category.
func (c *Classifier) Classify(ctx context.Context, query string) (knowledge.Category, error) {
	prompt := fmt.Sprintf(`User query: %q

Available categories:
%s

Classify this query into exactly one of the above categories. Respond with ONLY the category name.`, query, c.base.Describe())

	thread := shorttermmemory.New()
	thread.AddUserPrompt(messages.New().WithSender("user").UserPrompt(prompt))

	cmd, err := executor.NewRunCommand(c.agent, thread, quietHook{})
	if err != nil {
		return knowledge.Default, err
	}
	cmd = cmd.WithMaxTurns(maxClassifierTurns)

	fut := executor.NewFuture(executor.DefaultUnmarshal[string]())
	if err := c.exec.Run(ctx, cmd, fut); err != nil {
		return knowledge.Default, err
	}

	raw, err := fut.Get()
	if err != nil {
		return knowledge.Default, err
	}

	if !c.base.Contains(strings.TrimSpace(raw)) {
		slog.DebugContext(ctx, "invalid classification, falling back", slog.String("classification", raw))
		return knowledge.Default, nil
	}

	cat := c.base.Normalize(raw)
	slog.DebugContext(ctx, "query classified", slog.String("category", cat.String()))
	return cat, nil
}

// QueryTool exposes Classify as a function tool for the main agent.
func (c *Classifier) QueryTool() tool.Definition {
	categories := make([]string, 0, c.base.Len())
	for _, cat := range c.base.Categories() {
		categories = append(categories, cat.String())
	}
	return tool.Must(
		func(ctx context.Context, query string) (string, error) {
			cat, err := c.Classify(ctx, query)
			if err != nil {
				return "", err
			}
			return cat.String(), nil
		},
		tool.Name("classify_query"),
		tool.Description(fmt.Sprintf(
			"Classifies a user query into one of the predefined categories: %s.",
			strings.Join(categories, ", "),
		)),
		tool.Parameters("query"),
	)
}

// TemplateTool exposes the knowledge base template lookup as a function
// tool. Unknown query types resolve to the default template.
func TemplateTool(base *knowledge.Base) tool.Definition {
	return tool.Must(
		func(ctx context.Context, queryType string) string {
			if !base.Contains(queryType) {
				slog.DebugContext(ctx, "invalid query type, falling back", slog.String("query_type", queryType))
			}
			return base.Template(base.Normalize(queryType))
		},
		tool.Name("get_response_template"),
		tool.Description("Gets the response template for a given query type from the knowledge base."),
		tool.Parameters("query_type"),
	)
}

// quietHook observes the classifier's internal run at debug level; the
// classification is plumbing, not conversation output.
type quietHook struct{}

func (quietHook) OnUserPrompt(ctx context.Context, msg messages.Message[messages.UserMessage]) {
	slog.DebugContext(ctx, "classifier prompt", slog.String("sender", msg.Sender))
}

func (quietHook) OnAssistantChunk(ctx context.Context, msg messages.Message[messages.AssistantMessage]) {
}

func (quietHook) OnToolCallChunk(ctx context.Context, msg messages.Message[messages.ToolCallMessage]) {
}

func (quietHook) OnAssistantMessage(ctx context.Context, msg messages.Message[messages.AssistantMessage]) {
	slog.DebugContext(ctx, "classifier answer", slog.String("content", msg.Payload.Content.Content))
}

func (quietHook) OnToolCallMessage(ctx context.Context, msg messages.Message[messages.ToolCallMessage]) {
}

func (quietHook) OnToolCallResponse(ctx context.Context, msg messages.Message[messages.ToolResponse]) {
}

func (quietHook) OnResult(ctx context.Context, result string) {
	slog.DebugContext(ctx, "classifier result", slog.String("result", result))
}

func (quietHook) OnError(ctx context.Context, err error) {
	slog.DebugContext(ctx, "classifier error", slog.Any("error", err))
}
