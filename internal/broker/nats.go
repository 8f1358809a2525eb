package broker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alphadose/haxmap"
	"github.com/concierge-dev/concierge/events"
	"github.com/concierge-dev/concierge/pkg/slogx"
	"github.com/concierge-dev/concierge/pkg/uuidx"
	"github.com/nats-io/nats.go"
)

type natsBroker[T any] struct {
	client *nats.Conn
	topics *haxmap.Map[string, *natsTopic[T]]
}

// NATS returns a broker whose topics map to NATS subjects, so events can be
// observed outside the process.
func NATS[T any](client *nats.Conn) Broker[T] {
	return &natsBroker[T]{
		client: client,
		topics: haxmap.New[string, *natsTopic[T]](),
	}
}

func (b *natsBroker[T]) Topic(ctx context.Context, id string) Topic[T] {
	top, _ := b.topics.GetOrCompute(id, func() *natsTopic[T] {
		return &natsTopic[T]{
			subject: id,
			client:  b.client,
		}
	})
	return top
}

type natsTopic[T any] struct {
	client  *nats.Conn
	subject string
}

func (t *natsTopic[T]) Publish(ctx context.Context, event events.Event) error {
	eb, err := events.ToJSON(event)
	if err != nil {
		return err
	}
	return t.client.Publish(t.subject, eb)
}

func (t *natsTopic[T]) Subscribe(ctx context.Context, hook events.Hook[T]) (Subscription, error) {
	if hook == nil {
		return nil, fmt.Errorf("hook is required")
	}
	sub := make(chan events.Event, 50)
	nsub, err := t.client.Subscribe(t.subject, func(msg *nats.Msg) {
		event, err := events.FromJSON(msg.Data)
		if err != nil {
			slog.Error("failed to unmarshal event", slogx.Error(err))
			return
		}

		sub <- event

		if msg.Reply != "" {
			if nerr := msg.Ack(); nerr != nil {
				slog.Error("failed to ack message", slogx.Error(nerr))
				return
			}
		}
	})
	if err != nil {
		return nil, err
	}
	nsub.SetClosedHandler(func(_ string) { close(sub) })

	go func() {
		for {
			select {
			case event, ok := <-sub:
				if !ok {
					return
				}
				dispatchEvent(ctx, event, hook)
			case <-ctx.Done():
				return
			}
		}
	}()
	return &natsSubscription{
		id:  uuidx.NewString(),
		sub: nsub,
	}, nil
}

type natsSubscription struct {
	id  string
	sub *nats.Subscription
}

func (n *natsSubscription) ID() string {
	return n.id
}

func (n *natsSubscription) Unsubscribe() {
	if err := n.sub.Unsubscribe(); err != nil {
		slog.Error("failed to unsubscribe", slogx.Error(err), slog.String("subscription", n.id))
	}
}
