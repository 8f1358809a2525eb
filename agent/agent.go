// Package agent provides the default api.Agent implementation and a global
// registry of constructed agents.
package agent

import (
	"strings"
	"text/template"

	"github.com/concierge-dev/concierge/api"
	"github.com/concierge-dev/concierge/internal/registry"
	"github.com/concierge-dev/concierge/provider/openai"
	"github.com/concierge-dev/concierge/tool"
	"github.com/concierge-dev/concierge/types"
	"github.com/fogfish/opts"
)

var _ api.Agent = (*defaultAgent)(nil)

// Global holds every agent built through New, keyed by name.
var Global = registry.New[api.Agent]()

// Get looks up a registered agent by name.
func Get(name string) (api.Agent, bool) {
	return Global.Get(name)
}

type defaultAgent struct {
	name              string
	model             api.Model
	instructions      string
	tools             []tool.Definition
	parallelToolCalls bool
}

func (a *defaultAgent) Name() string {
	return a.name
}

func (a *defaultAgent) Model() api.Model {
	return a.model
}

func (a *defaultAgent) Tools() []tool.Definition {
	return a.tools
}

func (a *defaultAgent) Instructions() string {
	return a.instructions
}

func (a *defaultAgent) ParallelToolCalls() bool {
	return a.parallelToolCalls
}

// RenderInstructions substitutes context variables into the instruction
// template. Plain instructions pass through without template parsing.
func (a *defaultAgent) RenderInstructions(cv types.ContextVars) (string, error) {
	if !strings.Contains(a.instructions, "{{") {
		return a.instructions, nil
	}
	return renderTemplate("instructions", a.instructions, cv)
}

func renderTemplate(name, templateStr string, cv types.ContextVars) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(templateStr)
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, cv); err != nil {
		return "", err
	}

	return buf.String(), nil
}

var (
	Name              = opts.ForName[defaultAgent, string]("name")
	Model             = opts.ForName[defaultAgent, api.Model]("model")
	Instructions      = opts.ForName[defaultAgent, string]("instructions")
	ParallelToolCalls = opts.ForName[defaultAgent, bool]("parallelToolCalls")
)

func Tools(tool tool.Definition, extraTools ...tool.Definition) opts.Option[defaultAgent] {
	return opts.Type[defaultAgent](func(o *defaultAgent) error {
		o.tools = append(o.tools, tool)
		o.tools = append(o.tools, extraTools...)
		return nil
	})
}

// New builds an agent, defaulting to gpt-4o-mini with parallel tool calls
// enabled, and registers it in Global when it has a name.
func New(options ...opts.Option[defaultAgent]) api.Agent {
	agent := &defaultAgent{
		model:             openai.GPT4oMini(),
		parallelToolCalls: true,
	}
	if err := opts.Apply(agent, options); err != nil {
		panic(err)
	}
	if agent.name != "" {
		Global.Add(agent.name, agent)
	}
	return agent
}
