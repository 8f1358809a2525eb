// Package repl runs the interactive console loop: read a line, run the
// agent over the shared conversation history, render the streamed reply.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/concierge-dev/concierge/api"
	"github.com/concierge-dev/concierge/events"
	"github.com/concierge-dev/concierge/internal/executor"
	"github.com/concierge-dev/concierge/internal/shorttermmemory"
	"github.com/concierge-dev/concierge/messages"
	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/fogfish/opts"
	"github.com/k0kubun/pp/v3"
)

const defaultMaxTurns = 10

var exitKeywords = []string{"exit", "quit", "bye"}

type noopPromise struct{}

func (noopPromise) Complete(string) {}
func (noopPromise) Error(error)     {}

var glam *glamour.TermRenderer

func init() {
	var err error
	glam, err = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
	)
	if err != nil {
		panic(err)
	}
}

// Config carries the REPL's tunables.
type Config struct {
	MaxTurns int
	Input    io.Reader
	Output   io.Writer
	Mirror   events.Hook[string]
}

var (
	// MaxTurns caps how many conversation turns a single prompt may take.
	MaxTurns = opts.ForName[Config, int]("MaxTurns")
	// Input overrides where user lines are read from.
	Input = opts.ForName[Config, io.Reader]("Input")
	// Output overrides where replies are written.
	Output = opts.ForName[Config, io.Writer]("Output")
	// Mirror registers an extra hook that sees every event, e.g. to relay
	// the conversation onto a broker.
	Mirror = opts.ForName[Config, events.Hook[string]]("Mirror")
)

func isExitKeyword(input string) bool {
	for _, kw := range exitKeywords {
		if strings.EqualFold(strings.TrimSpace(input), kw) {
			return true
		}
	}
	return false
}

// Run drives the conversation loop until an exit keyword or EOF.
func Run(ctx context.Context, startingAgent api.Agent, options ...opts.Option[Config]) error {
	cfg := Config{
		MaxTurns: defaultMaxTurns,
		Input:    os.Stdin,
		Output:   os.Stdout,
	}
	if err := opts.Apply(&cfg, options); err != nil {
		return err
	}

	scanner := bufio.NewScanner(cfg.Input)
	scanner.Split(bufio.ScanLines)
	agent := startingAgent
	history := shorttermmemory.New()

	for {
		fmt.Fprintf(cfg.Output, "\n%s: ", color.CyanString("You"))
		if !scanner.Scan() {
			fmt.Fprintln(cfg.Output, "Exiting...")
			break
		}

		input := scanner.Text()
		if isExitKeyword(input) {
			fmt.Fprintln(cfg.Output, "\nGoodbye! Thanks for chatting.")
			break
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		if strings.TrimSpace(input) == "/history" {
			pp.Fprintln(cfg.Output, history.Messages())
			continue
		}

		finished, console := newConsoleHook[string]()
		var hook events.Hook[string] = console
		if cfg.Mirror != nil {
			hook = events.NewCompositeHook(console, cfg.Mirror)
		}

		cmd, err := executor.NewRunCommand(agent, history, hook)
		if err != nil {
			return err
		}
		cmd = cmd.WithMaxTurns(cfg.MaxTurns)

		umsg := messages.New().WithSender("You").UserPrompt(input)
		history.AddUserPrompt(umsg)
		hook.OnUserPrompt(ctx, umsg)
		exec := executor.NewLocal[string]()

		go func() {
			defer console.OnClose(ctx)
			if err := exec.Run(ctx, cmd.WithStream(true), noopPromise{}); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				return
			}
		}()

		renderEvents(cfg.Output, finished)
		fmt.Fprintln(cfg.Output)
	}
	return nil
}

func renderEvents(w io.Writer, finished <-chan events.Event) {
	var content string
	var streaming bool
	var lastSender string
	for msg := range finished {
		switch m := msg.(type) {
		case events.Request[messages.UserMessage]:
			fmt.Fprintln(w)
		case events.Chunk[messages.AssistantMessage]:
			if !streaming {
				streaming = true
				fmt.Fprintln(w)
			}
			if m.Sender != "" {
				lastSender = m.Sender
			}

			if m.Chunk.Content.Content != "" {
				if content == "" && lastSender != "" {
					fmt.Fprint(w, color.MagentaString(lastSender)+": ")
					lastSender = ""
				}

				fmt.Fprint(w, m.Chunk.Content.Content)
				content += m.Chunk.Content.Content
			}
		case events.Chunk[messages.ToolCallMessage]:
			if !streaming {
				streaming = true
			}
			if m.Sender != "" {
				lastSender = m.Sender
			}

			for _, tc := range m.Chunk.ToolCalls {
				if tc.Name == "" {
					continue
				}
				args := strings.ReplaceAll(tc.Arguments, ": ", "=")
				fmt.Fprintf(w, "%s%s\n", color.YellowString(tc.Name), args)
			}
		case events.Response[messages.ToolCallMessage]:
			if streaming || len(content) > 0 {
				content = ""
				fmt.Fprintln(w)
				streaming = false
				continue
			}
			if m.Sender == "" {
				fmt.Fprint(w, color.YellowString("Tool")+": ")
			} else {
				fmt.Fprint(w, color.YellowString(m.Sender)+": ")
			}
			if len(m.Response.ToolCalls) > 1 {
				fmt.Fprintln(w)
			}

			for tc := range slices.Values(m.Response.ToolCalls) {
				args := strings.ReplaceAll(tc.Arguments, ": ", "=")
				fmt.Fprintf(w, "%s%s\n", color.YellowString(tc.Name), args)
			}
		case events.Response[messages.AssistantMessage]:
			if streaming || len(content) > 0 {
				content = ""
				fmt.Fprintln(w)
				streaming = false
				continue
			}
			if m.Sender == "" {
				fmt.Fprint(w, color.MagentaString("Concierge")+": ")
			} else {
				fmt.Fprint(w, color.MagentaString(m.Sender)+": ")
			}
			out, _ := glam.Render(m.Response.Content.Content)
			fmt.Fprintln(w, out)
		case events.Request[messages.ToolResponse]:
			if m.Sender == "" {
				fmt.Fprint(w, color.YellowString("Tool")+": ")
			} else {
				fmt.Fprint(w, color.YellowString(m.Sender)+": ")
			}
			fmt.Fprintln(w, m.Message.Content)
		case events.Result[string]:
		case events.Error:
			fmt.Fprintf(w, "Error: %v\n", m.Err)
		default:
			fmt.Fprintf(w, "unknown message type: %T\n", m)
		}
	}
}

func newConsoleHook[T any]() (chan events.Event, *consoleHook[T]) {
	ch := make(chan events.Event, 100)
	return ch, &consoleHook[T]{ch: ch}
}

// consoleHook republishes hook callbacks onto a channel so the render loop
// can draw them in order.
type consoleHook[T any] struct {
	ch chan<- events.Event
}

func (c *consoleHook[T]) OnUserPrompt(ctx context.Context, msg messages.Message[messages.UserMessage]) {
	c.ch <- events.Request[messages.UserMessage]{
		RunID:     msg.RunID,
		TurnID:    msg.TurnID,
		Message:   msg.Payload,
		Sender:    msg.Sender,
		Timestamp: msg.Timestamp,
		Meta:      msg.Meta,
	}
}

func (c *consoleHook[T]) OnAssistantChunk(ctx context.Context, msg messages.Message[messages.AssistantMessage]) {
	c.ch <- events.Chunk[messages.AssistantMessage]{
		RunID:     msg.RunID,
		TurnID:    msg.TurnID,
		Chunk:     msg.Payload,
		Sender:    msg.Sender,
		Timestamp: msg.Timestamp,
		Meta:      msg.Meta,
	}
}

func (c *consoleHook[T]) OnToolCallChunk(ctx context.Context, msg messages.Message[messages.ToolCallMessage]) {
	c.ch <- events.Chunk[messages.ToolCallMessage]{
		RunID:     msg.RunID,
		TurnID:    msg.TurnID,
		Chunk:     msg.Payload,
		Sender:    msg.Sender,
		Timestamp: msg.Timestamp,
		Meta:      msg.Meta,
	}
}

func (c *consoleHook[T]) OnAssistantMessage(ctx context.Context, msg messages.Message[messages.AssistantMessage]) {
	c.ch <- events.Response[messages.AssistantMessage]{
		RunID:     msg.RunID,
		TurnID:    msg.TurnID,
		Response:  msg.Payload,
		Sender:    msg.Sender,
		Timestamp: msg.Timestamp,
		Meta:      msg.Meta,
	}
}

func (c *consoleHook[T]) OnToolCallMessage(ctx context.Context, msg messages.Message[messages.ToolCallMessage]) {
	c.ch <- events.Response[messages.ToolCallMessage]{
		RunID:     msg.RunID,
		TurnID:    msg.TurnID,
		Response:  msg.Payload,
		Sender:    msg.Sender,
		Timestamp: msg.Timestamp,
		Meta:      msg.Meta,
	}
}

func (c *consoleHook[T]) OnToolCallResponse(ctx context.Context, msg messages.Message[messages.ToolResponse]) {
	c.ch <- events.Request[messages.ToolResponse]{
		RunID:     msg.RunID,
		TurnID:    msg.TurnID,
		Message:   msg.Payload,
		Sender:    msg.Sender,
		Timestamp: msg.Timestamp,
		Meta:      msg.Meta,
	}
}

func (c *consoleHook[T]) OnResult(ctx context.Context, result T) {
	c.ch <- events.Result[T]{Result: result}
}

func (c *consoleHook[T]) OnError(ctx context.Context, err error) {
	c.ch <- events.Error{Err: err}
}

func (c *consoleHook[T]) OnClose(ctx context.Context) {
	close(c.ch)
}
