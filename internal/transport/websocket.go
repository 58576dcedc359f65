package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nupi-ai/chartfeed/internal/constants"
)

// Conn is a message-oriented connection to the data source.
type Conn interface {
	// ReadMessage blocks until the next text frame arrives.
	ReadMessage() ([]byte, error)
	// WriteJSON encodes v as a single text frame.
	WriteJSON(v any) error
	// Close sends a close frame (best effort) and releases the socket.
	Close() error
}

// Dialer opens connections to the data source.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// WebsocketDialer dials the data source with gorilla/websocket.
type WebsocketDialer struct {
	dialer       *websocket.Dialer
	header       http.Header
	writeTimeout time.Duration
}

var insecureOnce sync.Once

// NewWebsocketDialer builds a dialer. tlsConfig may be nil. Skipping
// certificate verification is logged once per process.
func NewWebsocketDialer(tlsConfig *tls.Config) *WebsocketDialer {
	if tlsConfig != nil && tlsConfig.InsecureSkipVerify {
		insecureOnce.Do(func() {
			log.Print("[Transport] WARNING: TLS certificate verification is disabled for the data source")
		})
	}
	return &WebsocketDialer{
		dialer: &websocket.Dialer{
			Proxy:             http.ProxyFromEnvironment,
			HandshakeTimeout:  constants.WebsocketHandshakeTimeout,
			EnableCompression: true,
			TLSClientConfig:   tlsConfig,
		},
		header:       http.Header{},
		writeTimeout: constants.WebsocketWriteTimeout,
	}
}

// Dial implements Dialer.
func (d *WebsocketDialer) Dial(ctx context.Context, endpoint string) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, endpoint, d.header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial %s: %w (status %d)", endpoint, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("websocket dial %s: %w", endpoint, err)
	}
	return &websocketConn{conn: conn, writeTimeout: d.writeTimeout}, nil
}

type websocketConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (c *websocketConn) ReadMessage() ([]byte, error) {
	for {
		messageType, payload, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType == websocket.TextMessage {
			return payload, nil
		}
	}
}

func (c *websocketConn) WriteJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteJSON(v)
}

func (c *websocketConn) Close() error {
	c.closeOnce.Do(func() {
		// Skip the close frame rather than wait behind an in-flight write.
		if c.writeMu.TryLock() {
			_ = c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(constants.WebsocketCloseTimeout),
			)
			c.writeMu.Unlock()
		}
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// IsNormalClose reports whether err is an orderly end of stream rather than a
// transport failure.
func IsNormalClose(err error) bool {
	if err == nil {
		return true
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	return false
}

// EndpointURL resolves the websocket URL for base. http bases map to ws and
// https bases to wss; ws and wss pass through. path replaces the base path
// when base has none.
func EndpointURL(base, path string) (string, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		return "", errors.New("transport: endpoint is empty")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("transport: parse endpoint: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("transport: endpoint %q missing host", base)
	}

	switch strings.ToLower(u.Scheme) {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("transport: unsupported endpoint scheme %q", u.Scheme)
	}

	if u.Path == "" || u.Path == "/" {
		if path == "" {
			path = constants.DefaultPath
		}
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		u.Path = path
	}
	return u.String(), nil
}
