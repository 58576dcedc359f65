package eventbus

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Bus fans published envelopes out to per-topic subscribers.
type Bus struct {
	logger        *log.Logger
	mu            sync.RWMutex
	subscribers   map[Topic]map[uint64]*Subscription
	topicBuffers  map[Topic]int
	topicPolicies map[Topic]DeliveryPolicy
	nextID        uint64
	published     atomic.Uint64
}

// New constructs a bus with default topic buffer sizes.
func New(opts ...BusOption) *Bus {
	bus := &Bus{
		logger:      log.Default(),
		subscribers: make(map[Topic]map[uint64]*Subscription),
		topicBuffers: map[Topic]int{
			TopicStreamLifecycle: 64,
			TopicStreamSeries:    256,
		},
		topicPolicies: make(map[Topic]DeliveryPolicy),
	}

	for _, opt := range opts {
		opt(bus)
	}
	return bus
}

// BusOption customises bus behaviour.
type BusOption func(*Bus)

// WithLogger overrides the logger used for drop warnings.
func WithLogger(logger *log.Logger) BusOption {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithTopicBuffer sets the default subscriber buffer for a topic.
func WithTopicBuffer(topic Topic, size int) BusOption {
	return func(b *Bus) {
		if size <= 0 {
			size = 1
		}
		b.topicBuffers[topic] = size
	}
}

// WithTopicPolicy overrides the delivery policy for a topic.
func WithTopicPolicy(topic Topic, policy DeliveryPolicy) BusOption {
	return func(b *Bus) {
		b.topicPolicies[topic] = policy
	}
}

// Published returns how many envelopes were accepted for delivery.
func (b *Bus) Published() uint64 {
	if b == nil {
		return 0
	}
	return b.published.Load()
}

func (b *Bus) publish(ctx context.Context, env Envelope) {
	if env.Topic == "" {
		return
	}
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now().UTC()
	}
	if env.Source == "" {
		env.Source = SourceUnknown
	}
	b.published.Add(1)

	b.mu.RLock()
	for _, sub := range b.subscribers[env.Topic] {
		sub.deliver(ctx, env, b.logger)
	}
	b.mu.RUnlock()
}

// Subscribe registers a raw subscriber for topic.
// If b is nil the returned Subscription has a closed channel and Close is a no-op.
func (b *Bus) Subscribe(topic Topic, opts ...SubscriptionOption) *Subscription {
	if b == nil {
		ch := make(chan Envelope)
		close(ch)
		sub := &Subscription{ch: ch}
		sub.closed.Store(true)
		return sub
	}

	cfg := subscriptionConfig{bufferSize: b.topicBuffers[topic]}
	if cfg.bufferSize <= 0 {
		cfg.bufferSize = 1
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	id := atomic.AddUint64(&b.nextID, 1)
	sub := &Subscription{
		topic:  topic,
		id:     id,
		name:   cfg.name,
		ch:     make(chan Envelope, cfg.bufferSize),
		bus:    b,
		policy: policyFor(topic, b.topicPolicies),
	}

	b.mu.Lock()
	if _, exists := b.subscribers[topic]; !exists {
		b.subscribers[topic] = make(map[uint64]*Subscription)
	}
	b.subscribers[topic][id] = sub
	b.mu.Unlock()

	if cfg.ctx != nil {
		go func() {
			<-cfg.ctx.Done()
			sub.Close()
		}()
	}
	return sub
}

// Shutdown closes every subscription.
// If b is nil the call is a no-op.
func (b *Bus) Shutdown() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for topic, subs := range b.subscribers {
		for id, sub := range subs {
			sub.closeLocked()
			delete(subs, id)
		}
		delete(b.subscribers, topic)
	}
}

// SubscriptionOption customises individual subscriptions.
type SubscriptionOption func(*subscriptionConfig)

type subscriptionConfig struct {
	bufferSize int
	name       string
	ctx        context.Context
}

// WithSubscriptionBuffer overrides the channel buffer for a subscription.
func WithSubscriptionBuffer(size int) SubscriptionOption {
	return func(cfg *subscriptionConfig) {
		if size > 0 {
			cfg.bufferSize = size
		}
	}
}

// WithSubscriptionName records a name used in drop warnings.
func WithSubscriptionName(name string) SubscriptionOption {
	return func(cfg *subscriptionConfig) {
		cfg.name = name
	}
}

// WithContext closes the subscription when ctx is cancelled.
func WithContext(ctx context.Context) SubscriptionOption {
	return func(cfg *subscriptionConfig) {
		if ctx != nil {
			cfg.ctx = ctx
		}
	}
}

// Subscription is a consumer listening to one topic.
type Subscription struct {
	topic Topic
	id    uint64
	name  string
	ch    chan Envelope

	bus     *Bus
	closed  atomic.Bool
	dropped atomic.Uint64
	policy  DeliveryPolicy
}

// C exposes the event channel.
func (s *Subscription) C() <-chan Envelope {
	return s.ch
}

// Dropped returns how many envelopes this subscriber lost to backpressure.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close removes the subscription and closes its channel. Safe to call twice.
func (s *Subscription) Close() {
	if s.bus == nil {
		return
	}

	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	if subs, ok := s.bus.subscribers[s.topic]; ok {
		delete(subs, s.id)
	}
	close(s.ch)
}

func (s *Subscription) closeLocked() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	close(s.ch)
}

// deliver runs with the bus read lock held, so the channel cannot be closed
// underneath it.
func (s *Subscription) deliver(ctx context.Context, env Envelope, logger *log.Logger) {
	if s.closed.Load() {
		return
	}

	select {
	case <-ctx.Done():
		return
	default:
	}

	select {
	case s.ch <- env:
		return
	default:
	}

	switch s.policy.Strategy {
	case StrategyDropNewest:
		s.recordDrop(logger, "drop-newest")
	default:
		select {
		case <-s.ch:
			s.recordDrop(logger, "drop-oldest")
		default:
		}
		select {
		case s.ch <- env:
		default:
			s.recordDrop(logger, "drop-current")
		}
	}
}

func (s *Subscription) recordDrop(logger *log.Logger, reason string) {
	count := s.dropped.Add(1)
	if logger == nil {
		return
	}
	name := s.name
	if name == "" {
		name = "subscription"
	}
	logger.Printf("[eventbus] dropped event #%d for %s on topic %s (%s)", count, name, s.topic, reason)
}
