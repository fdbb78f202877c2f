package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/skobkin/rcp2bridge/internal/actions"
	"github.com/skobkin/rcp2bridge/internal/camera"
	"github.com/skobkin/rcp2bridge/internal/config"
	"github.com/skobkin/rcp2bridge/internal/connectors"
	"github.com/skobkin/rcp2bridge/internal/domain"
	"github.com/skobkin/rcp2bridge/internal/feedback"
	"github.com/skobkin/rcp2bridge/internal/rcp"
	"github.com/skobkin/rcp2bridge/internal/telemetry"
)

func TestStatus(t *testing.T) {
	env := newTestEnv(t)
	env.backend.status = connectors.ConnectionStatus{
		State:         connectors.ConnectionStateFailed,
		Err:           "dial tcp: connection refused",
		TransportName: "websocket",
		Target:        "ws://10.0.0.5:9998",
	}

	rec := env.do(t, http.MethodGet, "/status", nil)
	assertCode(t, rec, http.StatusOK)

	var got statusResponse
	decodeBody(t, rec, &got)
	if got.State != "connection_failure" || got.Error != "dial tcp: connection refused" || got.Target != "ws://10.0.0.5:9998" {
		t.Fatalf("unexpected status body: %+v", got)
	}
}

func TestVariables(t *testing.T) {
	env := newTestEnv(t)
	env.vars.Apply(connectors.VariableChanges{Values: map[string]string{telemetry.VarISO: "800"}}, false)

	rec := env.do(t, http.MethodGet, "/variables", nil)
	assertCode(t, rec, http.StatusOK)
	var list []domain.Variable
	decodeBody(t, rec, &list)
	if len(list) != len(telemetry.Definitions()) {
		t.Fatalf("expected %d variables, got %d", len(telemetry.Definitions()), len(list))
	}

	rec = env.do(t, http.MethodGet, "/variables/iso", nil)
	assertCode(t, rec, http.StatusOK)
	var v domain.Variable
	decodeBody(t, rec, &v)
	if v.Value != "800" {
		t.Fatalf("expected iso 800, got %+v", v)
	}

	rec = env.do(t, http.MethodGet, "/variables/nope", nil)
	assertCode(t, rec, http.StatusNotFound)
}

func TestRunAction(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		body     string
		setErr   error
		wantCode int
		wantSent bool
	}{
		{name: "set iso", path: "/actions/set_iso", body: `{"iso":"1600"}`, wantCode: http.StatusAccepted, wantSent: true},
		{name: "no body uses defaults", path: "/actions/start_record", wantCode: http.StatusAccepted, wantSent: true},
		{name: "unknown action", path: "/actions/fly", body: `{}`, wantCode: http.StatusNotFound},
		{name: "invalid option", path: "/actions/set_iso", body: `{"iso":"loud"}`, wantCode: http.StatusBadRequest},
		{name: "malformed body", path: "/actions/set_iso", body: `{`, wantCode: http.StatusBadRequest},
		{name: "not connected", path: "/actions/stop_record", body: `{}`, setErr: camera.ErrNotConnected, wantCode: http.StatusServiceUnavailable, wantSent: true},
		{name: "other failure", path: "/actions/stop_record", body: `{}`, setErr: errors.New("boom"), wantCode: http.StatusInternalServerError, wantSent: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.commander.err = tc.setErr

			var body io.Reader
			if tc.body != "" {
				body = bytes.NewBufferString(tc.body)
			}
			rec := env.do(t, http.MethodPost, tc.path, body)
			assertCode(t, rec, tc.wantCode)
			if sent := len(env.commander.sets()) > 0; sent != tc.wantSent {
				t.Fatalf("expected sent=%v, got %v", tc.wantSent, sent)
			}
		})
	}
}

func TestListActions(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/actions", nil)
	assertCode(t, rec, http.StatusOK)
	var defs []actions.Definition
	decodeBody(t, rec, &defs)
	if len(defs) != len(env.registry.Definitions()) {
		t.Fatalf("expected %d actions, got %d", len(env.registry.Definitions()), len(defs))
	}
}

func TestFeedbackLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/feedbacks/fb1", bytes.NewBufferString(`{"variable":"clip","subpath":"cur.val"}`))
	assertCode(t, rec, http.StatusOK)

	rec = env.do(t, http.MethodPut, "/feedbacks/fb2", bytes.NewBufferString(`{"variable":"bad name!"}`))
	assertCode(t, rec, http.StatusBadRequest)

	rec = env.do(t, http.MethodGet, "/feedbacks", nil)
	assertCode(t, rec, http.StatusOK)
	var list feedbackListResponse
	decodeBody(t, rec, &list)
	if len(list.Subscriptions) != 1 || list.Subscriptions[0].Variable != "clip" {
		t.Fatalf("unexpected subscriptions: %+v", list.Subscriptions)
	}
	if len(list.Definitions) != 1 || list.Definitions[0].ID != feedback.TypeWebSocketVariable {
		t.Fatalf("unexpected definitions: %+v", list.Definitions)
	}

	rec = env.do(t, http.MethodDelete, "/feedbacks/fb1", nil)
	assertCode(t, rec, http.StatusNoContent)
	rec = env.do(t, http.MethodDelete, "/feedbacks/fb1", nil)
	assertCode(t, rec, http.StatusNotFound)
}

func TestConfigUpdate(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/config", bytes.NewBufferString(`{"camera":{"host":"10.0.0.9"}}`))
	assertCode(t, rec, http.StatusOK)
	var got config.AppConfig
	decodeBody(t, rec, &got)
	if got.Camera.Host != "10.0.0.9" || got.Camera.Port != config.DefaultCameraPort {
		t.Fatalf("unexpected applied config: %+v", got.Camera)
	}
	if env.backend.applied != 1 {
		t.Fatalf("expected config to be applied once, got %d", env.backend.applied)
	}

	rec = env.do(t, http.MethodPut, "/config", bytes.NewBufferString(`{"camera":{"port":700000}}`))
	assertCode(t, rec, http.StatusBadRequest)
	if env.backend.applied != 1 {
		t.Fatalf("invalid config must not be applied")
	}

	rec = env.do(t, http.MethodGet, "/config", nil)
	assertCode(t, rec, http.StatusOK)
	decodeBody(t, rec, &got)
	if got.Camera.Host != "10.0.0.9" {
		t.Fatalf("expected current config, got %+v", got.Camera)
	}
}

func TestHistory(t *testing.T) {
	env := newTestEnv(t)
	env.backend.history = []domain.VariableChange{{Host: "cam", Variable: "iso", Value: "800"}}

	rec := env.do(t, http.MethodGet, "/history/iso?limit=5", nil)
	assertCode(t, rec, http.StatusOK)
	var rows []domain.VariableChange
	decodeBody(t, rec, &rows)
	if len(rows) != 1 || rows[0].Value != "800" {
		t.Fatalf("unexpected history: %+v", rows)
	}
	if env.backend.lastLimit != 5 || env.backend.lastVariable != "iso" {
		t.Fatalf("unexpected history query: %q limit %d", env.backend.lastVariable, env.backend.lastLimit)
	}

	rec = env.do(t, http.MethodGet, "/history/iso?limit=zero", nil)
	assertCode(t, rec, http.StatusBadRequest)

	rec = env.do(t, http.MethodDelete, "/history", nil)
	assertCode(t, rec, http.StatusNoContent)
	if env.backend.cleared != 1 || env.backend.history != nil {
		t.Fatalf("expected history to be cleared, cleared=%d rows=%v", env.backend.cleared, env.backend.history)
	}
}

func TestServeStopsOnContextCancel(t *testing.T) {
	env := newTestEnv(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status code: %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("server did not stop")
	}
}

type testEnv struct {
	server    *Server
	backend   *fakeBackend
	vars      *domain.VariableStore
	commander *fakeCommander
	registry  *actions.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend := &fakeBackend{cfg: config.Default()}
	vars := domain.NewVariableStore()
	commander := &fakeCommander{}
	registry := actions.NewRegistry(logger, commander, vars)
	engine := feedback.NewEngine(logger, nil)

	return &testEnv{
		server: NewServer(logger, Deps{
			Backend:   backend,
			Variables: vars,
			Actions:   registry,
			Feedback:  engine,
		}),
		backend:   backend,
		vars:      vars,
		commander: commander,
		registry:  registry,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)

	return rec
}

func assertCode(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()

	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()

	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
}

type fakeBackend struct {
	mu           sync.Mutex
	status       connectors.ConnectionStatus
	cfg          config.AppConfig
	applied      int
	history      []domain.VariableChange
	lastVariable string
	lastLimit    int
	cleared      int
}

func (b *fakeBackend) CurrentConnStatus() connectors.ConnectionStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.status
}

func (b *fakeBackend) CurrentConfig() config.AppConfig {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.cfg
}

func (b *fakeBackend) SaveAndApplyConfig(cfg config.AppConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg = cfg
	b.applied++

	return nil
}

func (b *fakeBackend) History(_ context.Context, variable string, limit int) ([]domain.VariableChange, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastVariable = variable
	b.lastLimit = limit

	return b.history, nil
}

func (b *fakeBackend) ClearHistory(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = nil
	b.cleared++

	return nil
}

type fakeCommander struct {
	mu   sync.Mutex
	err  error
	sent []rcp.Command
}

func (c *fakeCommander) Set(id string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, rcp.SetCommand(id, value))

	return c.err
}

func (c *fakeCommander) SendRaw([]byte) error {
	return c.err
}

func (c *fakeCommander) Session() telemetry.Session {
	return telemetry.Session{}
}

func (c *fakeCommander) sets() []rcp.Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]rcp.Command, len(c.sent))
	copy(out, c.sent)

	return out
}
