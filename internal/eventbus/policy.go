package eventbus

// DeliveryStrategy determines behaviour when a subscriber's channel is full.
type DeliveryStrategy string

const (
	// StrategyDropOldest evicts the oldest queued event to make room.
	StrategyDropOldest DeliveryStrategy = "drop-oldest"
	// StrategyDropNewest discards the incoming event.
	StrategyDropNewest DeliveryStrategy = "drop-newest"
)

// DeliveryPolicy controls how a topic handles backpressure.
type DeliveryPolicy struct {
	Strategy DeliveryStrategy
}

var defaultPolicy = DeliveryPolicy{Strategy: StrategyDropOldest}

// Series updates are superseded by the next one, so stale ones go first.
// Lifecycle transitions are rare; a full buffer keeps the earliest history.
var defaultPolicies = map[Topic]DeliveryPolicy{
	TopicStreamSeries:    {Strategy: StrategyDropOldest},
	TopicStreamLifecycle: {Strategy: StrategyDropNewest},
}

func policyFor(topic Topic, overrides map[Topic]DeliveryPolicy) DeliveryPolicy {
	if p, ok := overrides[topic]; ok {
		return p
	}
	if p, ok := defaultPolicies[topic]; ok {
		return p
	}
	return defaultPolicy
}
