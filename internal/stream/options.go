package stream

import (
	"log"
	"time"

	"github.com/nupi-ai/chartfeed/internal/eventbus"
	"github.com/nupi-ai/chartfeed/internal/observability"
	"github.com/nupi-ai/chartfeed/internal/transport"
)

// Config is the explicit configuration of a Controller.
type Config struct {
	// Endpoint is the data source base URL. http(s) bases are mapped to ws(s).
	Endpoint string
	// Path is appended when Endpoint carries no path of its own.
	Path string
	// Interval between periodic requests. Zero means the default (3s).
	Interval time.Duration
	// DefaultMode and DefaultChunkSize are used by Start. A zero chunk size
	// selects the mode's first chunk size.
	DefaultMode      string
	DefaultChunkSize int
}

// Option customises a Controller.
type Option func(*Controller)

// WithDialer replaces the websocket dialer.
func WithDialer(d transport.Dialer) Option {
	return func(c *Controller) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithIDGenerator replaces the request hash generator. Generated ids must be
// unique for the lifetime of a session.
func WithIDGenerator(gen func() string) Option {
	return func(c *Controller) {
		if gen != nil {
			c.newID = gen
		}
	}
}

// WithEventBus publishes lifecycle and series events on bus.
func WithEventBus(bus *eventbus.Bus) Option {
	return func(c *Controller) {
		c.bus = bus
	}
}

// WithMetrics records counters on m.
func WithMetrics(m *observability.StreamMetrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// ticker is the periodic request timer owned by a session.
type ticker interface {
	Chan() <-chan time.Time
	Stop()
}

type timeTicker struct {
	*time.Ticker
}

func (t timeTicker) Chan() <-chan time.Time { return t.C }

func newTimeTicker(d time.Duration) ticker {
	return timeTicker{time.NewTicker(d)}
}
