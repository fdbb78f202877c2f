package camera

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skobkin/rcp2bridge/internal/bus"
	"github.com/skobkin/rcp2bridge/internal/connectors"
	"github.com/skobkin/rcp2bridge/internal/rcp"
	"github.com/skobkin/rcp2bridge/internal/telemetry"
	"github.com/skobkin/rcp2bridge/internal/transport"
)

func TestServiceReportsBadConfigForEmptyHost(t *testing.T) {
	factory := newFakeFactory(nil)
	svc, recorder := newTestService(t, "  ", factory, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	status := recorder.waitForStatus(t, connectors.ConnectionStateBadConfig)
	if status.Err != "camera host is not defined" {
		t.Fatalf("unexpected bad config message %q", status.Err)
	}
	if got := factory.count(); got != 0 {
		t.Fatalf("expected no connection attempt, got %d", got)
	}
	if err := svc.Get(rcp.ParamISO); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestServiceSendsHandshakeAndPolls(t *testing.T) {
	factory := newFakeFactory(nil)
	svc, recorder := newTestService(t, "10.0.0.5", factory, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	recorder.waitForStatus(t, connectors.ConnectionStateConnected)

	tr := factory.waitForTransport(t, 0)
	tracked := rcp.TrackedParameters()
	written := tr.waitForWrites(t, 1+2*len(tracked))

	var handshake map[string]any
	if err := json.Unmarshal(written[0], &handshake); err != nil {
		t.Fatalf("decode handshake: %v", err)
	}
	if handshake["type"] != rcp.TypeConfig || handshake["encoding_type"] != "legacy" {
		t.Fatalf("unexpected handshake %s", written[0])
	}

	for i, id := range tracked {
		var get map[string]any
		if err := json.Unmarshal(written[1+i], &get); err != nil {
			t.Fatalf("decode get %d: %v", i, err)
		}
		if get["type"] != rcp.TypeGet || get["id"] != id {
			t.Fatalf("expected get for %s at %d, got %s", id, i, written[1+i])
		}
	}
}

func TestServicePublishesOnlyChangedVariables(t *testing.T) {
	factory := newFakeFactory(nil)
	svc, recorder := newTestService(t, "10.0.0.5", factory, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	recorder.waitForStatus(t, connectors.ConnectionStateConnected)
	tr := factory.waitForTransport(t, 0)

	iso := []byte(`{"type":"rcp_cur_int","id":"ISO","cur":{"val":800}}`)
	tr.deliver(iso)
	recorder.waitForVariables(t, func(changes connectors.VariableChanges) bool {
		return !changes.Full && changes.Values[telemetry.VarISO] == "800"
	})

	tr.deliver([]byte("not json"))
	tr.deliver(iso)
	tr.deliver([]byte(`{"type":"rcp_cur_int","id":"TINT","cur":{"val":2}}`))
	changes := recorder.waitForVariables(t, func(changes connectors.VariableChanges) bool {
		return !changes.Full && changes.Values[telemetry.VarTint] != ""
	})
	if len(changes.Values) != 1 {
		t.Fatalf("expected only tint to change, got %+v", changes.Values)
	}
	if got := svc.Status().State; got != connectors.ConnectionStateConnected {
		t.Fatalf("expected malformed frame to keep status, got %s", got)
	}
	if got := svc.Variables()[telemetry.VarISO]; got != "800" {
		t.Fatalf("expected iso 800 in snapshot, got %q", got)
	}
}

func TestServiceResetsVariablesAndReconnectsAfterClose(t *testing.T) {
	factory := newFakeFactory(nil)
	svc, recorder := newTestService(t, "10.0.0.5", factory, 30*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	recorder.waitForStatus(t, connectors.ConnectionStateConnected)
	tr := factory.waitForTransport(t, 0)

	tr.deliver([]byte(`{"type":"rcp_cur_int","id":"ISO","cur":{"val":1600}}`))
	recorder.waitForVariables(t, func(changes connectors.VariableChanges) bool {
		return changes.Values[telemetry.VarISO] == "1600"
	})

	mark := recorder.mark()
	tr.fail(&websocket.CloseError{Code: websocket.CloseAbnormalClosure})
	status := recorder.waitForStatus(t, connectors.ConnectionStateDisconnected)
	if status.Err != "connection closed with code 1006" {
		t.Fatalf("unexpected disconnect message %q", status.Err)
	}
	reset := recorder.waitForVariablesSince(t, mark, func(changes connectors.VariableChanges) bool {
		return changes.Full && changes.Values[telemetry.VarISO] == ""
	})
	if len(reset.Values) != len(telemetry.Definitions()) {
		t.Fatalf("expected every variable to be republished, got %d", len(reset.Values))
	}
	if !tr.isClosed() {
		t.Fatalf("expected dropped transport to be closed")
	}

	factory.waitForTransport(t, 1)
	recorder.waitForStatusCount(t, connectors.ConnectionStateConnected, 2)
}

func TestServiceTransportErrorReportsFailure(t *testing.T) {
	factory := newFakeFactory(errors.New("connection refused"))
	svc, recorder := newTestService(t, "10.0.0.5", factory, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	status := recorder.waitForStatus(t, connectors.ConnectionStateFailed)
	if status.Err != "connection refused" {
		t.Fatalf("unexpected failure message %q", status.Err)
	}
}

func TestServiceReconfigureCancelsPendingReconnect(t *testing.T) {
	factory := newFakeFactory(errors.New("connection refused"))
	svc, recorder := newTestService(t, "10.0.0.5", factory, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	recorder.waitForStatus(t, connectors.ConnectionStateFailed)

	factory.setConnectErr(nil)
	svc.Reconfigure("10.0.0.6", 0)
	recorder.waitForStatus(t, connectors.ConnectionStateConnected)

	if got := factory.hostAt(t, 1); got != "10.0.0.6" {
		t.Fatalf("expected reconnect to new host, got %q", got)
	}
	if got := factory.count(); got != 2 {
		t.Fatalf("expected exactly two attempts, got %d", got)
	}
}

func TestServiceSetAndSessionAfterFrames(t *testing.T) {
	factory := newFakeFactory(nil)
	svc, recorder := newTestService(t, "10.0.0.5", factory, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	recorder.waitForStatus(t, connectors.ConnectionStateConnected)
	tr := factory.waitForTransport(t, 0)

	tr.deliver([]byte(`{"type":"rcp_cur_int","id":"EXPOSURE_ADJUST","cur":{"val":-500}}`))
	recorder.waitForVariables(t, func(changes connectors.VariableChanges) bool {
		return changes.Values[telemetry.VarExposureAdjust] == "-0.500"
	})
	if got := svc.Session().ExposureAdjust; got != -500 {
		t.Fatalf("expected running total -500, got %d", got)
	}

	before := len(tr.writes())
	if err := svc.Set(rcp.ParamRecordState, 2); err != nil {
		t.Fatalf("set: %v", err)
	}
	written := tr.waitForWrites(t, before+1)
	found := false
	for _, payload := range written[before:] {
		if string(payload) == `{"type":"rcp_set","id":"RECORD_STATE","value":2}` {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected record state set among writes")
	}
}

func TestServiceShutdownClosesTransport(t *testing.T) {
	factory := newFakeFactory(nil)
	svc, recorder := newTestService(t, "10.0.0.5", factory, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)
	recorder.waitForStatus(t, connectors.ConnectionStateConnected)
	tr := factory.waitForTransport(t, 0)

	cancel()
	select {
	case <-svc.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("service did not stop")
	}
	if !tr.isClosed() {
		t.Fatalf("expected transport to be closed on shutdown")
	}
	if got := svc.Status().State; got != connectors.ConnectionStateDisconnected {
		t.Fatalf("expected disconnected after shutdown, got %s", got)
	}
	if err := svc.SendRaw([]byte(`{}`)); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected after shutdown, got %v", err)
	}
}

func newTestService(t *testing.T, host string, factory *fakeFactory, reconnectDelay time.Duration) (*Service, *busRecorder) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	messageBus := bus.New(logger)
	t.Cleanup(messageBus.Close)
	recorder := newBusRecorder(t, messageBus)

	svc := NewService(logger, messageBus, Options{
		Host:           host,
		Client:         rcp.Client{Name: "test", Version: "0"},
		ReconnectDelay: reconnectDelay,
		PollInterval:   20 * time.Millisecond,
		NewTransport:   factory.build,
	})
	t.Cleanup(func() {
		select {
		case <-svc.Done():
		case <-time.After(2 * time.Second):
		}
	})

	return svc, recorder
}

type busRecorder struct {
	mu       sync.Mutex
	statuses []connectors.ConnectionStatus
	changes  []connectors.VariableChanges
}

func newBusRecorder(t *testing.T, messageBus bus.MessageBus) *busRecorder {
	t.Helper()

	r := &busRecorder{}
	sub := messageBus.Subscribe(connectors.TopicConnStatus, connectors.TopicVariables)
	go func() {
		for msg := range sub {
			r.mu.Lock()
			switch v := msg.(type) {
			case connectors.ConnectionStatus:
				r.statuses = append(r.statuses, v)
			case connectors.VariableChanges:
				r.changes = append(r.changes, v)
			}
			r.mu.Unlock()
		}
	}()

	return r
}

func (r *busRecorder) waitForStatus(t *testing.T, state connectors.ConnectionState) connectors.ConnectionStatus {
	t.Helper()

	return r.waitForStatusCount(t, state, 1)
}

func (r *busRecorder) waitForStatusCount(t *testing.T, state connectors.ConnectionState, count int) connectors.ConnectionStatus {
	t.Helper()

	var found connectors.ConnectionStatus
	waitFor(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		seen := 0
		for _, status := range r.statuses {
			if status.State == state {
				seen++
				found = status
			}
		}

		return seen >= count
	})

	return found
}

// mark returns the number of variable messages seen so far.
func (r *busRecorder) mark() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.changes)
}

func (r *busRecorder) waitForVariables(t *testing.T, match func(connectors.VariableChanges) bool) connectors.VariableChanges {
	t.Helper()

	return r.waitForVariablesSince(t, 0, match)
}

func (r *busRecorder) waitForVariablesSince(t *testing.T, since int, match func(connectors.VariableChanges) bool) connectors.VariableChanges {
	t.Helper()

	var found connectors.VariableChanges
	waitFor(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i := since; i < len(r.changes); i++ {
			changes := r.changes[i]
			if match(changes) {
				found = changes

				return true
			}
		}

		return false
	})

	return found
}

func waitFor(t *testing.T, check func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition was not met before timeout")
}

type fakeFactory struct {
	mu         sync.Mutex
	connectErr error
	hosts      []string
	transports []*fakeTransport
}

func newFakeFactory(connectErr error) *fakeFactory {
	return &fakeFactory{connectErr: connectErr}
}

func (f *fakeFactory) build(host string, _ int) transport.Transport {
	f.mu.Lock()
	defer f.mu.Unlock()

	tr := &fakeTransport{
		connectErr: f.connectErr,
		incoming:   make(chan []byte, 16),
		failures:   make(chan error, 1),
		closed:     make(chan struct{}),
	}
	f.hosts = append(f.hosts, host)
	f.transports = append(f.transports, tr)

	return tr
}

func (f *fakeFactory) setConnectErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectErr = err
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.transports)
}

func (f *fakeFactory) hostAt(t *testing.T, idx int) string {
	t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()
	if idx >= len(f.hosts) {
		t.Fatalf("expected at least %d connection attempts, got %d", idx+1, len(f.hosts))
	}

	return f.hosts[idx]
}

func (f *fakeFactory) waitForTransport(t *testing.T, idx int) *fakeTransport {
	t.Helper()

	var tr *fakeTransport
	waitFor(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		if idx < len(f.transports) {
			tr = f.transports[idx]

			return true
		}

		return false
	})

	return tr
}

type fakeTransport struct {
	connectErr error
	incoming   chan []byte
	failures   chan error
	closed     chan struct{}
	closeOnce  sync.Once

	mu      sync.Mutex
	written [][]byte
}

func (f *fakeTransport) Name() string {
	return "fake"
}

func (f *fakeTransport) Connect(context.Context) error {
	return f.connectErr
}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })

	return nil
}

func (f *fakeTransport) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.closed:
		return nil, errors.New("transport closed")
	case err := <-f.failures:
		return nil, err
	case payload := <-f.incoming:
		return payload, nil
	}
}

func (f *fakeTransport) WriteFrame(_ context.Context, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, append([]byte(nil), payload...))

	return nil
}

func (f *fakeTransport) deliver(payload []byte) {
	f.incoming <- payload
}

func (f *fakeTransport) fail(err error) {
	f.failures <- err
}

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeTransport) writes() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.written))
	copy(out, f.written)

	return out
}

func (f *fakeTransport) waitForWrites(t *testing.T, count int) [][]byte {
	t.Helper()

	var out [][]byte
	waitFor(t, func() bool {
		out = f.writes()

		return len(out) >= count
	})

	return out
}
