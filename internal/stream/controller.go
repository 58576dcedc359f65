// Package stream keeps a series fed by a remote data source over a single
// websocket session.
//
// A session is bound to one (mode, chunk size) pair. On open it requests a
// chunk straight away and then once per interval, each request carrying a
// fresh hash. Only a response echoing the most recent hash is appended to the
// series; anything else is an answer to a superseded request and is dropped.
package stream

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nupi-ai/chartfeed/internal/constants"
	"github.com/nupi-ai/chartfeed/internal/eventbus"
	"github.com/nupi-ai/chartfeed/internal/modes"
	"github.com/nupi-ai/chartfeed/internal/observability"
	"github.com/nupi-ai/chartfeed/internal/series"
	"github.com/nupi-ai/chartfeed/internal/transport"
)

// State is the lifecycle state of a session.
type State string

const (
	StateIdle       State = "IDLE"
	StateConnecting State = "CONNECTING"
	StateOpen       State = "OPEN"
	StateClosed     State = "CLOSED"
)

// SessionInfo is a read-only view of the current session.
type SessionInfo struct {
	ID           string
	Mode         modes.Name
	ChunkSize    int
	State        State
	ExpectedHash string
}

// Controller owns at most one live session against the data source and the
// series it feeds.
type Controller struct {
	endpoint     string
	interval     time.Duration
	defaultMode  string
	defaultChunk int

	dialer    transport.Dialer
	newID     func() string
	newTicker func(time.Duration) ticker
	bus       *eventbus.Bus
	metrics   *observability.StreamMetrics
	logger    *log.Logger

	series *series.Series

	mu       sync.Mutex
	current  *session
	disposed bool
	stop     chan struct{}
}

// New validates cfg and builds an idle controller.
func New(cfg Config, opts ...Option) (*Controller, error) {
	endpoint, err := transport.EndpointURL(cfg.Endpoint, cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("stream: %w", err)
	}
	if cfg.Interval < 0 {
		return nil, fmt.Errorf("stream: negative interval %s", cfg.Interval)
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = constants.StreamRequestInterval
	}
	defaultMode := cfg.DefaultMode
	if defaultMode == "" {
		defaultMode = string(modes.Default)
	}

	c := &Controller{
		endpoint:     endpoint,
		interval:     interval,
		defaultMode:  defaultMode,
		defaultChunk: cfg.DefaultChunkSize,
		dialer:       transport.NewWebsocketDialer(nil),
		newID:        uuid.NewString,
		newTicker:    newTimeTicker,
		logger:       log.Default(),
		series:       series.New(),
		stop:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the resolved websocket URL.
func (c *Controller) Endpoint() string {
	return c.endpoint
}

// Start configures the default mode and chunk size. If ctx is cancelled later
// the controller is disposed. A rejected default acquires nothing, so the
// controller stays IDLE and Configure can be retried with valid input.
func (c *Controller) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.Configure(c.defaultMode, c.defaultChunk); err != nil {
		return err
	}

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				_ = c.Dispose()
			case <-c.stop:
			}
		}()
	}
	return nil
}

// Configure tears down the current session, clears the series and starts a
// new session for (modeName, chunkSize). A zero chunkSize selects the mode's
// first chunk size. Validation errors leave the controller untouched.
// Configure never waits on the network.
func (c *Controller) Configure(modeName string, chunkSize int) error {
	mode, err := modes.Lookup(modeName)
	if err != nil {
		return err
	}
	if chunkSize == 0 {
		chunkSize = mode.DefaultChunkSize()
	} else if !mode.Allows(chunkSize) {
		return fmt.Errorf("%w: %d is not offered by %s (allowed %v)", ErrInvalidChunkSize, chunkSize, mode.Name, mode.ChunkSizes())
	}

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrDisposed
	}
	prev := c.current
	prevConn, detached := c.detachLocked(prev)
	next := newSession(uuid.NewString(), mode, chunkSize, prev)
	c.current = next
	c.series.Reset()
	if c.metrics != nil {
		c.metrics.SeriesLength.Set(0)
	}
	c.mu.Unlock()

	if prevConn != nil {
		_ = prevConn.Close()
	}
	if detached {
		c.sessionEnded(prev, observability.EndReasonReconfigured, nil)
	}

	c.logger.Printf("[Stream] session %s: configured %s chunk=%d", next.id, mode.Name, chunkSize)
	if c.metrics != nil {
		c.metrics.SessionsStarted.Inc()
	}
	c.publishState(next, StateConnecting, nil)

	go c.run(next)
	return nil
}

// Dispose stops the timer, closes the connection and waits for the session's
// goroutines to exit. It is idempotent.
func (c *Controller) Dispose() error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return nil
	}
	c.disposed = true
	close(c.stop)
	s := c.current
	conn, detached := c.detachLocked(s)
	c.mu.Unlock()

	var err error
	if conn != nil {
		if cerr := conn.Close(); cerr != nil && !transport.IsNormalClose(cerr) {
			err = fmt.Errorf("stream: close connection: %w", cerr)
		}
	}
	if s != nil {
		<-s.done
	}
	if detached {
		c.sessionEnded(s, observability.EndReasonDisposed, nil)
	}
	return err
}

// Series returns a snapshot of the accumulated points.
func (c *Controller) Series() series.Snapshot {
	return c.series.Snapshot()
}

// State returns the state of the current session, or IDLE before the first
// Configure.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return StateIdle
	}
	return c.current.state
}

// Session describes the current session. The zero value with StateIdle is
// returned before the first Configure.
func (c *Controller) Session() SessionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.current
	if s == nil {
		return SessionInfo{State: StateIdle}
	}
	return SessionInfo{
		ID:           s.id,
		Mode:         s.mode.Name,
		ChunkSize:    s.chunkSize,
		State:        s.state,
		ExpectedHash: s.expected,
	}
}

// detachLocked marks s closed and cancels its context. The returned
// connection, if any, must be closed by the caller outside c.mu. The boolean
// reports whether this call performed the transition.
func (c *Controller) detachLocked(s *session) (transport.Conn, bool) {
	if s == nil || s.state == StateClosed {
		return nil, false
	}
	s.state = StateClosed
	s.cancel()
	return s.conn, true
}

func (c *Controller) sessionEnded(s *session, reason string, cause error) {
	if c.metrics != nil {
		c.metrics.SessionsEnded.WithLabelValues(reason).Inc()
	}
	if cause != nil {
		c.logger.Printf("[Stream] session %s closed: %v", s.id, cause)
	} else {
		c.logger.Printf("[Stream] session %s closed (%s)", s.id, reason)
	}
	c.publishState(s, StateClosed, cause)
}

func (c *Controller) publishState(s *session, state State, cause error) {
	eventbus.PublishWithCorrelation(context.Background(), c.bus, eventbus.Stream.Lifecycle, eventbus.SourceStreamController, s.id, eventbus.StreamSessionEvent{
		SessionID: s.id,
		Mode:      string(s.mode.Name),
		ChunkSize: s.chunkSize,
		State:     string(state),
		Err:       cause,
	})
}
