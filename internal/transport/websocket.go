package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	DefaultWebSocketPort = 9998

	handshakeTimeout  = 6 * time.Second
	closeWriteTimeout = 500 * time.Millisecond
	readLimit         = 1 << 20
)

var ErrNotConnected = errors.New("transport is not connected")

// WebSocketTransport talks RCP2 over a plain ws:// connection. Reads and writes may run
// on different goroutines; writes are serialized.
type WebSocketTransport struct {
	host string
	port int

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	dialer  websocket.Dialer
}

func NewWebSocketTransport(host string, port int) *WebSocketTransport {
	if port == 0 {
		port = DefaultWebSocketPort
	}

	return &WebSocketTransport{
		host: host,
		port: port,
		dialer: websocket.Dialer{
			Proxy:            nil,
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

func (t *WebSocketTransport) Name() string {
	return "websocket"
}

// URL returns the camera endpoint, empty when no host is set.
func (t *WebSocketTransport) URL() string {
	if t.host == "" {
		return ""
	}
	u := url.URL{Scheme: "ws", Host: net.JoinHostPort(t.host, strconv.Itoa(t.port))}

	return u.String()
}

func (t *WebSocketTransport) StatusTarget() string {
	return t.URL()
}

func (t *WebSocketTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.conn != nil
}

func (t *WebSocketTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	target := t.URL()
	logger := t.logger()

	if t.conn != nil {
		logger.Debug("connect skipped: already connected")

		return nil
	}
	if t.host == "" {
		logger.Warn("connect failed: host is empty")

		return errors.New("websocket host is empty")
	}

	logger.Info("connecting")
	conn, resp, err := t.dialer.DialContext(ctx, target, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			logger.Warn("connect failed", "status", resp.Status, "error", err)

			return fmt.Errorf("dial websocket (status %s): %w", resp.Status, err)
		}
		logger.Warn("connect failed", "error", err)

		return fmt.Errorf("dial websocket: %w", err)
	}
	conn.SetReadLimit(readLimit)
	t.conn = conn
	logger.Info("connected", "remote", conn.RemoteAddr().String())

	return nil
}

// Close sends a normal close frame and drops the connection. A blocked ReadFrame returns
// with an error.
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	logger := t.logger()
	if t.conn == nil {
		logger.Debug("close skipped: not connected")

		return nil
	}

	t.writeMu.Lock()
	_ = t.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing"),
		time.Now().Add(closeWriteTimeout),
	)
	t.writeMu.Unlock()

	err := t.conn.Close()
	t.conn = nil
	if err != nil {
		logger.Warn("close failed", "error", err)

		return err
	}
	logger.Info("closed")

	return nil
}

func (t *WebSocketTransport) ReadFrame(ctx context.Context) ([]byte, error) {
	logger := t.logger()
	conn, err := t.currentConn()
	if err != nil {
		logger.Debug("read frame failed: not connected", "error", err)

		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	} else {
		_ = conn.SetReadDeadline(time.Time{})
	}

	_, payload, err := conn.ReadMessage()
	if err != nil {
		logger.Debug("read frame failed", "error", err)

		return nil, err
	}
	logger.Debug("read frame", "len", len(payload))

	return payload, nil
}

func (t *WebSocketTransport) WriteFrame(ctx context.Context, payload []byte) error {
	logger := t.logger()
	conn, err := t.currentConn()
	if err != nil {
		logger.Debug("write frame failed: not connected", "error", err)

		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	} else {
		_ = conn.SetWriteDeadline(time.Time{})
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		logger.Warn("write frame failed", "payload_len", len(payload), "error", err)

		return fmt.Errorf("write frame: %w", err)
	}
	logger.Debug("write frame", "payload_len", len(payload))

	return nil
}

func (t *WebSocketTransport) currentConn() (*websocket.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil, ErrNotConnected
	}

	return t.conn, nil
}

// CloseCode extracts the close code the peer sent, if err is a close error.
func CloseCode(err error) (int, bool) {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr.Code, true
	}

	return 0, false
}
