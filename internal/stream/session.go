package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/nupi-ai/chartfeed/internal/eventbus"
	"github.com/nupi-ai/chartfeed/internal/modes"
	"github.com/nupi-ai/chartfeed/internal/observability"
	"github.com/nupi-ai/chartfeed/internal/protocol"
	"github.com/nupi-ai/chartfeed/internal/transport"
)

// session is one (mode, chunk size, connection) binding. state, conn and
// expected are guarded by Controller.mu.
type session struct {
	id        string
	mode      modes.Mode
	chunkSize int

	ctx    context.Context
	cancel context.CancelFunc
	// done is closed once run has returned.
	done chan struct{}
	// prevDone is the previous session's done channel; nil for the first.
	prevDone <-chan struct{}

	state    State
	conn     transport.Conn
	expected string
}

func newSession(id string, mode modes.Mode, chunkSize int, prev *session) *session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		id:        id,
		mode:      mode,
		chunkSize: chunkSize,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     StateConnecting,
	}
	if prev != nil {
		s.prevDone = prev.done
	}
	return s
}

// run drives s from CONNECTING to CLOSED. The previous session is fully torn
// down before this one dials, so its last request can never interleave with
// ours.
func (c *Controller) run(s *session) {
	defer close(s.done)
	defer s.cancel()

	if s.prevDone != nil {
		select {
		case <-s.prevDone:
		case <-s.ctx.Done():
			return
		}
	}

	conn, err := c.dialer.Dial(s.ctx, c.endpoint)
	if err != nil {
		c.connectFailed(s, err)
		return
	}

	c.mu.Lock()
	if c.current != s || s.state != StateConnecting {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.conn = conn
	s.state = StateOpen
	c.mu.Unlock()

	c.logger.Printf("[Stream] session %s: connected to %s", s.id, c.endpoint)
	c.publishState(s, StateOpen, nil)

	readErr := make(chan error, 1)
	go func() {
		readErr <- c.readLoop(s, conn)
	}()

	t := c.newTicker(c.interval)
	defer t.Stop()

	c.sendRequest(s)

	for {
		select {
		case <-s.ctx.Done():
			_ = conn.Close()
			<-readErr
			return
		case err := <-readErr:
			_ = conn.Close()
			c.connectionLost(s, err)
			return
		case <-t.Chan():
			c.sendRequest(s)
		}
	}
}

// sendRequest issues a request with a fresh hash and makes that hash the only
// one whose response will be accepted.
func (c *Controller) sendRequest(s *session) {
	c.mu.Lock()
	if c.current != s || s.state != StateOpen {
		c.mu.Unlock()
		return
	}
	req := protocol.Request{
		Name:             string(s.mode.Name),
		ChunkSize:        s.chunkSize,
		InitialChunkSize: s.mode.InitialChunkSize,
		Hash:             c.newID(),
	}
	s.expected = req.Hash
	conn := s.conn
	c.mu.Unlock()

	if err := conn.WriteJSON(req); err != nil {
		c.logger.Printf("[Stream] session %s: send request %s: %v", s.id, req.Hash, err)
		return
	}
	if c.metrics != nil {
		c.metrics.RequestsSent.Inc()
	}
}

func (c *Controller) readLoop(s *session, conn transport.Conn) error {
	for {
		frame, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.handleMessage(s, frame)
	}
}

// handleMessage applies a response to the series if it belongs to the live
// session, carries points and echoes the expected hash.
func (c *Controller) handleMessage(s *session, frame []byte) {
	resp, err := protocol.DecodeResponse(frame)
	if err != nil {
		c.logger.Printf("[Stream] session %s: dropping response: %v", s.id, err)
		c.recordOutcome(observability.OutcomeMalformed)
		return
	}

	c.mu.Lock()
	if c.current != s || s.state != StateOpen {
		c.mu.Unlock()
		c.recordOutcome(observability.OutcomeDetached)
		return
	}
	if len(resp.Data) == 0 {
		c.mu.Unlock()
		c.recordOutcome(observability.OutcomeEmpty)
		return
	}
	if resp.Hash != s.expected {
		c.mu.Unlock()
		c.recordOutcome(observability.OutcomeStale)
		return
	}
	length := c.series.Append(resp.Data)
	if c.metrics != nil {
		// Under c.mu so a concurrent Configure's reset to 0 is never overwritten.
		c.metrics.SeriesLength.Set(float64(length))
	}
	c.mu.Unlock()

	c.recordOutcome(observability.OutcomeApplied)
	if c.metrics != nil {
		c.metrics.PointsAppended.Add(float64(len(resp.Data)))
	}
	eventbus.PublishWithCorrelation(context.Background(), c.bus, eventbus.Stream.Series, eventbus.SourceStreamController, s.id, eventbus.StreamSeriesEvent{
		SessionID: s.id,
		Hash:      resp.Hash,
		Appended:  len(resp.Data),
		Length:    length,
	})
}

func (c *Controller) recordOutcome(outcome string) {
	if c.metrics != nil {
		c.metrics.ResponseOutcome.WithLabelValues(outcome).Inc()
	}
}

// connectFailed moves a session that never opened to CLOSED, unless it was
// already torn down by Configure or Dispose.
func (c *Controller) connectFailed(s *session, err error) {
	c.mu.Lock()
	if c.current != s || s.state != StateConnecting {
		c.mu.Unlock()
		return
	}
	s.state = StateClosed
	c.mu.Unlock()

	c.sessionEnded(s, observability.EndReasonDialFailed, fmt.Errorf("%w: %w", ErrConnectFailed, err))
}

// connectionLost handles the data source closing an open session. There is no
// reconnect; the caller has to Configure again.
func (c *Controller) connectionLost(s *session, err error) {
	c.mu.Lock()
	if c.current != s || s.state != StateOpen {
		c.mu.Unlock()
		return
	}
	s.state = StateClosed
	c.mu.Unlock()

	if err == nil {
		err = errors.New("connection closed")
	}
	c.sessionEnded(s, observability.EndReasonRemoteClosed, fmt.Errorf("%w: %w", ErrTransportClosedUnexpectedly, err))
}
