package eventbus

import "context"

// TopicDef binds a Topic to its payload type at compile time.
type TopicDef[T any] struct{ topic Topic }

// NewTopicDef creates a typed topic descriptor.
func NewTopicDef[T any](topic Topic) TopicDef[T] { return TopicDef[T]{topic: topic} }

// Topic returns the underlying topic string.
func (d TopicDef[T]) Topic() Topic { return d.topic }

// Stream groups the descriptors published by the stream controller.
var Stream = struct {
	Lifecycle TopicDef[StreamSessionEvent]
	Series    TopicDef[StreamSeriesEvent]
}{
	Lifecycle: NewTopicDef[StreamSessionEvent](TopicStreamLifecycle),
	Series:    NewTopicDef[StreamSeriesEvent](TopicStreamSeries),
}

// Publish sends a typed payload. If bus is nil the call is a no-op.
func Publish[T any](ctx context.Context, bus *Bus, td TopicDef[T], source Source, payload T) {
	PublishWithCorrelation(ctx, bus, td, source, "", payload)
}

// PublishWithCorrelation is Publish with an explicit correlation id, used to
// tie an event to the session that produced it.
func PublishWithCorrelation[T any](ctx context.Context, bus *Bus, td TopicDef[T], source Source, correlationID string, payload T) {
	if bus == nil {
		return
	}
	bus.publish(ctx, Envelope{
		Topic:         td.topic,
		Source:        source,
		CorrelationID: correlationID,
		Payload:       payload,
	})
}

// SubscribeTo creates a typed subscription for a descriptor.
func SubscribeTo[T any](bus *Bus, td TopicDef[T], opts ...SubscriptionOption) *TypedSubscription[T] {
	return Subscribe[T](bus, td.topic, opts...)
}
