package eventbus

import (
	"sync"
	"time"
)

// TypedEnvelope is an Envelope whose payload has been asserted to T.
type TypedEnvelope[T any] struct {
	Topic         Topic
	Timestamp     time.Time
	Source        Source
	CorrelationID string
	Payload       T
}

// TypedSubscription forwards only payloads of type T from a raw subscription.
type TypedSubscription[T any] struct {
	raw       *Subscription
	ch        chan TypedEnvelope[T]
	done      chan struct{}
	quit      chan struct{}
	closeOnce sync.Once
}

// Subscribe creates a typed subscription on topic. A bridge goroutine asserts
// each payload and silently skips mismatches. With a nil bus the channel is
// already closed.
func Subscribe[T any](bus *Bus, topic Topic, opts ...SubscriptionOption) *TypedSubscription[T] {
	if bus == nil {
		ch := make(chan TypedEnvelope[T])
		done := make(chan struct{})
		close(ch)
		close(done)
		return &TypedSubscription[T]{ch: ch, done: done, quit: make(chan struct{})}
	}

	ts := &TypedSubscription[T]{
		raw:  bus.Subscribe(topic, opts...),
		ch:   make(chan TypedEnvelope[T]),
		done: make(chan struct{}),
		quit: make(chan struct{}),
	}
	go ts.bridge()
	return ts
}

// C returns the typed event channel.
func (ts *TypedSubscription[T]) C() <-chan TypedEnvelope[T] {
	return ts.ch
}

// Close stops the bridge and closes the raw subscription. Safe to call twice.
func (ts *TypedSubscription[T]) Close() {
	ts.closeOnce.Do(func() {
		close(ts.quit)
		if ts.raw != nil {
			ts.raw.Close()
		}
		<-ts.done
	})
}

func (ts *TypedSubscription[T]) bridge() {
	defer close(ts.done)
	defer close(ts.ch)

	for env := range ts.raw.C() {
		payload, ok := env.Payload.(T)
		if !ok {
			continue
		}
		select {
		case ts.ch <- TypedEnvelope[T]{
			Topic:         env.Topic,
			Timestamp:     env.Timestamp,
			Source:        env.Source,
			CorrelationID: env.CorrelationID,
			Payload:       payload,
		}:
		case <-ts.quit:
			return
		}
	}
}
