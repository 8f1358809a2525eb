package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/concierge-dev/concierge/events"
	"github.com/concierge-dev/concierge/pkg/uuidx"
)

const defaultSlowSubscriberTimeout = 100 * time.Millisecond

type localBroker[T any] struct {
	topics                *haxmap.Map[string, *topic[T]]
	slowSubscriberTimeout time.Duration
}

// Local returns an in-process broker. Subscribers that fall behind for
// longer than the slow-subscriber timeout are dropped.
func Local[T any]() Broker[T] {
	return &localBroker[T]{
		topics:                haxmap.New[string, *topic[T]](),
		slowSubscriberTimeout: defaultSlowSubscriberTimeout,
	}
}

// WithSlowSubscriberTimeout overrides how long Publish waits on a full
// subscriber channel before unsubscribing it.
func (b *localBroker[T]) WithSlowSubscriberTimeout(timeout time.Duration) *localBroker[T] {
	b.slowSubscriberTimeout = timeout
	return b
}

func (b *localBroker[T]) Topic(ctx context.Context, id string) Topic[T] {
	topic, _ := b.topics.GetOrCompute(id, func() *topic[T] {
		return &topic[T]{
			ID:                    id,
			subscriptions:         haxmap.New[string, *subscription[T]](),
			slowSubscriberTimeout: b.slowSubscriberTimeout,
		}
	})
	return topic
}

type topic[T any] struct {
	ID                    string
	subscriptions         *haxmap.Map[string, *subscription[T]]
	slowSubscriberTimeout time.Duration
}

func (t *topic[T]) Publish(ctx context.Context, event events.Event) error {
	t.subscriptions.ForEach(func(id string, sub *subscription[T]) bool {
		if sub == nil {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-sub.ctx.Done():
			sub.Unsubscribe()
			return true
		default:
		}

		select {
		case <-ctx.Done():
			return false
		case <-sub.ctx.Done():
			sub.Unsubscribe()
		case sub.channel <- event:
		case <-time.After(t.slowSubscriberTimeout):
			// channel still full, drop the subscriber
			sub.Unsubscribe()
		}
		return true
	})
	return nil
}

func (t *topic[T]) Subscribe(ctx context.Context, hook events.Hook[T]) (Subscription, error) {
	if hook == nil {
		return nil, fmt.Errorf("hook is required")
	}
	sub := t.newSubscription(ctx, hook)
	return sub, nil
}

func (t *topic[T]) newSubscription(ctx context.Context, hook events.Hook[T]) *subscription[T] {
	id := uuidx.NewString()
	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription[T]{
		id:        id,
		ctx:       subCtx,
		cancel:    cancel,
		channel:   make(chan events.Event, 50),
		closeOnce: sync.Once{},
		onClose:   func() { t.subscriptions.Del(id) },
		hook:      hook,
	}
	t.subscriptions.Set(id, sub)
	go sub.forwardToHook()
	return sub
}

type subscription[T any] struct {
	id        string
	ctx       context.Context
	cancel    context.CancelFunc
	channel   chan events.Event
	closeOnce sync.Once
	onClose   func()
	hook      events.Hook[T]
}

func (s *subscription[T]) ID() string {
	return s.id
}

// Unsubscribe cancels the subscription context instead of closing the
// channel, so a Publish blocked on the send never hits a closed channel.
func (s *subscription[T]) Unsubscribe() {
	s.closeOnce.Do(func() {
		if s.onClose != nil {
			s.onClose()
		}
		s.cancel()
	})
}

func (s *subscription[T]) forwardToHook() {
	for {
		select {
		case event := <-s.channel:
			dispatchEvent(s.ctx, event, s.hook)
		case <-s.ctx.Done():
			return
		}
	}
}
