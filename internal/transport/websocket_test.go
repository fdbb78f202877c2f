package transport

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWebSocketTransportRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			msgType, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(msgType, payload); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	tr := newServerTransport(t, server)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer func() { _ = tr.Close() }()
	if !tr.Connected() {
		t.Fatalf("expected transport to report connected")
	}

	if err := tr.WriteFrame(ctx, []byte(`{"type":"rcp_get","id":"ISO"}`)); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	payload, err := tr.ReadFrame(ctx)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if got := string(payload); got != `{"type":"rcp_get","id":"ISO"}` {
		t.Fatalf("unexpected echo payload %q", got)
	}
}

func TestWebSocketTransportReportsCloseCode(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"),
			time.Now().Add(time.Second),
		)
	}))
	defer server.Close()

	tr := newServerTransport(t, server)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer func() { _ = tr.Close() }()

	_, err := tr.ReadFrame(ctx)
	if err == nil {
		t.Fatalf("expected read error after server close")
	}
	code, ok := CloseCode(err)
	if !ok || code != websocket.CloseGoingAway {
		t.Fatalf("expected close code %d, got %d (ok=%v, err=%v)", websocket.CloseGoingAway, code, ok, err)
	}
}

func TestWebSocketTransportRequiresHost(t *testing.T) {
	tr := NewWebSocketTransport("", 0)
	if tr.URL() != "" {
		t.Fatalf("expected empty url for empty host, got %q", tr.URL())
	}
	if err := tr.Connect(context.Background()); err == nil {
		t.Fatalf("expected connect error for empty host")
	}
	if _, err := tr.ReadFrame(context.Background()); err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("close on idle transport: %v", err)
	}
}

func TestWebSocketTransportURL(t *testing.T) {
	tr := NewWebSocketTransport("10.60.230.102", 0)
	if got := tr.URL(); got != "ws://10.60.230.102:9998" {
		t.Fatalf("unexpected url %q", got)
	}
	if got := tr.StatusTarget(); got != tr.URL() {
		t.Fatalf("expected status target to match url, got %q", got)
	}
}

func newServerTransport(t *testing.T, server *httptest.Server) *WebSocketTransport {
	t.Helper()

	host, portText, err := net.SplitHostPort(strings.TrimPrefix(server.URL, "http://"))
	if err != nil {
		t.Fatalf("split server address: %v", err)
	}
	port, err := strconv.Atoi(portText)
	if err != nil {
		t.Fatalf("parse server port: %v", err)
	}

	return NewWebSocketTransport(host, port)
}
