package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nupi-ai/chartfeed/internal/eventbus"
	"github.com/nupi-ai/chartfeed/internal/protocol"
	"github.com/nupi-ai/chartfeed/internal/transport"
	"github.com/stretchr/testify/require"
)

const testTimeout = 2 * time.Second

// fakeSource is an in-process data source. It records every request and lets
// the test decide what to answer and when.
type fakeSource struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader
	requests chan received

	mu    sync.Mutex
	conns []*sourceConn
}

type sourceConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  chan struct{}
}

type received struct {
	conn *sourceConn
	req  protocol.Request
}

func newFakeSource(t *testing.T) *fakeSource {
	t.Helper()
	fs := &fakeSource{requests: make(chan received, 64)}
	fs.srv = httptest.NewServer(http.HandlerFunc(fs.handle))
	t.Cleanup(func() {
		fs.mu.Lock()
		conns := append([]*sourceConn(nil), fs.conns...)
		fs.mu.Unlock()
		for _, sc := range conns {
			_ = sc.conn.Close()
		}
		fs.srv.Close()
	})
	return fs
}

func (fs *fakeSource) URL() string {
	return fs.srv.URL
}

func (fs *fakeSource) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := fs.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	sc := &sourceConn{conn: conn, closed: make(chan struct{})}
	fs.mu.Lock()
	fs.conns = append(fs.conns, sc)
	fs.mu.Unlock()

	defer close(sc.closed)
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req protocol.Request
		if err := json.Unmarshal(msg, &req); err != nil {
			continue
		}
		fs.requests <- received{conn: sc, req: req}
	}
}

func (fs *fakeSource) connCount() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.conns)
}

func (fs *fakeSource) nextRequest(t *testing.T) received {
	t.Helper()
	select {
	case r := <-fs.requests:
		return r
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for request")
		return received{}
	}
}

func (fs *fakeSource) expectNoRequest(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case r := <-fs.requests:
		t.Fatalf("unexpected request %+v", r.req)
	case <-time.After(wait):
	}
}

func (sc *sourceConn) send(t *testing.T, frame string) {
	t.Helper()
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	require.NoError(t, sc.conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func (sc *sourceConn) respond(t *testing.T, hash string, points ...protocol.Point) {
	t.Helper()
	if points == nil {
		points = []protocol.Point{}
	}
	raw, err := json.Marshal(protocol.Response{Data: points, Hash: hash})
	require.NoError(t, err)
	sc.send(t, string(raw))
}

// drop closes the connection from the data source side.
func (sc *sourceConn) drop() {
	sc.writeMu.Lock()
	_ = sc.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"),
		time.Now().Add(time.Second))
	sc.writeMu.Unlock()
	_ = sc.conn.Close()
}

func (sc *sourceConn) waitClosed(t *testing.T) {
	t.Helper()
	select {
	case <-sc.closed:
	case <-time.After(testTimeout):
		t.Fatal("connection was not closed")
	}
}

// manualTicker hands out tickers that only fire when the test says so.
type manualTicker struct {
	mu      sync.Mutex
	created []*fakeTicker
}

type fakeTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (f *fakeTicker) Chan() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop()                  { f.stopped.Store(true) }

func (m *manualTicker) factory(time.Duration) ticker {
	ft := &fakeTicker{ch: make(chan time.Time, 1)}
	m.mu.Lock()
	m.created = append(m.created, ft)
	m.mu.Unlock()
	return ft
}

func (m *manualTicker) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.created)
}

func (m *manualTicker) get(t *testing.T, i int) *fakeTicker {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.Greater(t, len(m.created), i, "ticker %d not created", i)
	return m.created[i]
}

func (m *manualTicker) tick(t *testing.T) {
	t.Helper()
	m.mu.Lock()
	require.NotEmpty(t, m.created)
	ft := m.created[len(m.created)-1]
	m.mu.Unlock()
	ft.ch <- time.Now()
}

func sequentialIDs(prefix string) func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("%s%d", prefix, n.Add(1))
	}
}

type dialerFunc func(ctx context.Context, endpoint string) (transport.Conn, error)

func (f dialerFunc) Dial(ctx context.Context, endpoint string) (transport.Conn, error) {
	return f(ctx, endpoint)
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestController(t *testing.T, endpoint string, opts ...Option) (*Controller, *manualTicker) {
	t.Helper()
	base := []Option{
		WithIDGenerator(sequentialIDs("r")),
		WithLogger(quietLogger()),
	}
	c, err := New(Config{Endpoint: endpoint, Interval: time.Hour}, append(base, opts...)...)
	require.NoError(t, err)

	tk := &manualTicker{}
	c.newTicker = tk.factory
	t.Cleanup(func() { _ = c.Dispose() })
	return c, tk
}

func newTestBus(t *testing.T) *eventbus.Bus {
	t.Helper()
	bus := eventbus.New(eventbus.WithLogger(quietLogger()))
	t.Cleanup(bus.Shutdown)
	return bus
}

func nextEvent[T any](t *testing.T, sub *eventbus.TypedSubscription[T]) T {
	t.Helper()
	select {
	case env, ok := <-sub.C():
		require.True(t, ok, "subscription closed")
		return env.Payload
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for event")
		var zero T
		return zero
	}
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, testTimeout, 5*time.Millisecond, msg)
}
