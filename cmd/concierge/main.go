package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	// Ensure API Key is loaded
	_ "github.com/joho/godotenv/autoload"

	"github.com/concierge-dev/concierge/agent"
	"github.com/concierge-dev/concierge/classify"
	"github.com/concierge-dev/concierge/internal/broker"
	"github.com/concierge-dev/concierge/internal/repl"
	"github.com/concierge-dev/concierge/knowledge"
	"github.com/concierge-dev/concierge/pkg/slogx"
	"github.com/fogfish/opts"
	"github.com/nats-io/nats.go"
	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Stamp}
	log = zerolog.New(output).With().Timestamp().Logger()
	slog.SetDefault(slog.New(
		zeroslog.NewHandler(log, &zeroslog.HandlerOptions{Level: slog.LevelError}),
	))
}

const conciergeInstructions = `You are an advanced assistant that can handle different types of queries.

You have access to tools that can:
1. Classify the user's query into a category
2. Get a response template based on the query category

Your workflow should be:
1. Use the classify_query tool to determine the type of query
2. Use the get_response_template tool to get the appropriate response template
3. Generate a helpful response that incorporates the template
4. Ensure your response directly addresses the user's query

Always be polite, helpful, and concise in your responses.`

func main() {
	if os.Getenv("OPENAI_API_KEY") == "" {
		fmt.Fprintln(os.Stderr, "Error: OPENAI_API_KEY environment variable not set.")
		fmt.Fprintln(os.Stderr, "Please set it with: export OPENAI_API_KEY=your-api-key")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	kb := knowledge.Builtin()
	classifier, err := classify.New(kb)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build classifier")
	}

	concierge := agent.New(
		agent.Name("Concierge"),
		agent.Instructions(conciergeInstructions),
		agent.Tools(classifier.QueryTool(), classify.TemplateTool(kb)),
	)

	var options []opts.Option[repl.Config]
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		nc, err := nats.Connect(natsURL)
		if err != nil {
			log.Fatal().Err(err).Str("url", natsURL).Msg("failed to connect to nats")
		}
		defer nc.Close()

		topic := broker.NATS[string](nc).Topic(ctx, "concierge.conversation")
		options = append(options, repl.Mirror(broker.NewHook(topic)))
	}

	fmt.Println("Starting Concierge...")
	fmt.Println("Type 'exit' to quit the conversation.")

	if err := repl.Run(ctx, concierge, options...); err != nil {
		slog.Error("repl exited", slogx.Error(err))
		os.Exit(1)
	}
}
