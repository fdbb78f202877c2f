package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/skobkin/rcp2bridge/internal/bus"
	"github.com/skobkin/rcp2bridge/internal/connectors"
	"github.com/skobkin/rcp2bridge/internal/rcp"
	"github.com/skobkin/rcp2bridge/internal/telemetry"
	"github.com/skobkin/rcp2bridge/internal/transport"
)

const (
	DefaultReconnectDelay = 5 * time.Second
	DefaultPollInterval   = time.Second

	outboxCapacity = 256
	writeTimeout   = 5 * time.Second
)

var (
	ErrNotConnected = errors.New("camera is not connected")
	ErrOutboxFull   = errors.New("camera outbox is full")
)

// TransportFactory builds a transport for one connection attempt.
type TransportFactory func(host string, port int) transport.Transport

// Options configures a Service. Zero values select the protocol defaults.
type Options struct {
	Host           string
	Port           int
	Client         rcp.Client
	ReconnectDelay time.Duration
	PollInterval   time.Duration
	NewTransport   TransportFactory
}

type target struct {
	host string
	port int
}

// Service keeps one connection to the camera alive, polls the tracked parameters and
// feeds every current-value frame through the translator. All connection state is owned
// by the run loop; exported methods only read published copies or enqueue commands.
type Service struct {
	logger         *slog.Logger
	bus            bus.MessageBus
	newTransport   TransportFactory
	client         rcp.Client
	reconnectDelay time.Duration
	pollInterval   time.Duration

	control   chan target
	events    chan any
	done      chan struct{}
	startOnce sync.Once

	// loop state
	target        target
	transportName string
	gen           uint64
	dialCancel    context.CancelFunc
	conn          *connection
	reconnect     *time.Timer
	poll          *time.Ticker
	translator    *telemetry.Translator
	publisher     *telemetry.Publisher

	mu       sync.RWMutex
	status   connectors.ConnectionStatus
	session  telemetry.Session
	values   map[string]string
	liveConn *connection
}

type connection struct {
	gen    uint64
	tr     transport.Transport
	outbox chan []byte
	ctx    context.Context
	cancel context.CancelFunc
}

type dialResult struct {
	gen uint64
	tr  transport.Transport
	err error
}

type frameIn struct {
	gen     uint64
	payload []byte
}

type readFailed struct {
	gen uint64
	err error
}

func NewService(logger *slog.Logger, messageBus bus.MessageBus, opts Options) *Service {
	if logger == nil {
		logger = slog.With("component", "camera")
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.NewTransport == nil {
		opts.NewTransport = func(host string, port int) transport.Transport {
			return transport.NewWebSocketTransport(host, port)
		}
	}

	translator := telemetry.NewTranslator(logger.With("component", "telemetry"))

	return &Service{
		logger:         logger,
		bus:            messageBus,
		newTransport:   opts.NewTransport,
		client:         opts.Client,
		reconnectDelay: opts.ReconnectDelay,
		pollInterval:   opts.PollInterval,
		control:        make(chan target),
		events:         make(chan any, 64),
		done:           make(chan struct{}),
		target:         target{host: strings.TrimSpace(opts.Host), port: opts.Port},
		transportName:  "websocket",
		translator:     translator,
		publisher:      telemetry.NewPublisher(messageBus, connectors.TopicVariables),
		status: connectors.ConnectionStatus{
			State:     connectors.ConnectionStateDisconnected,
			Timestamp: time.Now(),
		},
		values: translator.Snapshot(),
	}
}

// Start runs the connection loop until ctx is cancelled. Calling it twice is a no-op.
func (s *Service) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		go s.run(ctx)
	})
}

// Done is closed after the loop has torn the connection down.
func (s *Service) Done() <-chan struct{} {
	return s.done
}

// Reconfigure points the service at a new camera and reconnects immediately, cancelling
// any pending reconnect.
func (s *Service) Reconfigure(host string, port int) {
	select {
	case s.control <- target{host: strings.TrimSpace(host), port: port}:
	case <-s.done:
	}
}

func (s *Service) Status() connectors.ConnectionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.status
}

// Session returns the sticky values kept across frames.
func (s *Service) Session() telemetry.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.session
}

// Variables returns the last published telemetry values.
func (s *Service) Variables() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.values))
	for key, value := range s.values {
		out[key] = value
	}

	return out
}

// Get asks the camera for the current value of a parameter.
func (s *Service) Get(id string) error {
	return s.sendCommand(rcp.GetCommand(id))
}

// Set asks the camera to change a parameter. The result arrives later as a current-value
// frame.
func (s *Service) Set(id string, value any) error {
	return s.sendCommand(rcp.SetCommand(id, value))
}

// SendRaw writes a text frame as is.
func (s *Service) SendRaw(payload []byte) error {
	s.mu.RLock()
	conn := s.liveConn
	s.mu.RUnlock()

	return s.enqueue(conn, payload)
}

func (s *Service) sendCommand(cmd rcp.Command) error {
	payload, err := rcp.Encode(cmd)
	if err != nil {
		return err
	}

	return s.SendRaw(payload)
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)
	defer s.shutdown()

	s.connect(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case next := <-s.control:
			s.logger.Info("camera target changed", "host", next.host, "port", next.port)
			s.target = next
			s.connect(ctx)
		case ev := <-s.events:
			s.handleEvent(ctx, ev)
		case <-timerC(s.reconnect):
			s.reconnect = nil
			s.logger.Debug("attempting reconnect")
			s.connect(ctx)
		case <-tickerC(s.poll):
			s.pollRound()
		}
	}
}

func (s *Service) connect(ctx context.Context) {
	s.cancelReconnect()
	s.dropConnection()
	s.gen++

	if s.target.host == "" {
		s.setStatus(connectors.ConnectionStateBadConfig, "camera host is not defined", "")

		return
	}

	tr := s.newTransport(s.target.host, s.target.port)
	s.transportName = tr.Name()
	targetName := statusTarget(tr, s.target.host)
	s.logger.Debug("connecting", "target", targetName)
	s.setStatus(connectors.ConnectionStateConnecting, "", targetName)

	dialCtx, cancel := context.WithCancel(ctx)
	s.dialCancel = cancel
	gen := s.gen
	go func() {
		err := tr.Connect(dialCtx)
		s.emit(ctx, dialResult{gen: gen, tr: tr, err: err})
	}()
}

func (s *Service) handleEvent(ctx context.Context, ev any) {
	switch e := ev.(type) {
	case dialResult:
		if e.gen != s.gen {
			if e.err == nil {
				_ = e.tr.Close()
			}

			return
		}
		s.dialCancel = nil
		if e.err != nil {
			s.logger.Error("camera connect failed", "error", e.err)
			s.fail(e.err)

			return
		}
		s.established(ctx, e.tr)
	case frameIn:
		if e.gen != s.gen {
			return
		}
		s.handleFrame(e.payload)
	case readFailed:
		if e.gen != s.gen {
			return
		}
		s.fail(e.err)
	}
}

func (s *Service) established(ctx context.Context, tr transport.Transport) {
	connCtx, cancel := context.WithCancel(ctx)
	conn := &connection{
		gen:    s.gen,
		tr:     tr,
		outbox: make(chan []byte, outboxCapacity),
		ctx:    connCtx,
		cancel: cancel,
	}
	s.conn = conn
	s.mu.Lock()
	s.liveConn = conn
	s.mu.Unlock()

	targetName := statusTarget(tr, s.target.host)
	s.logger.Info("camera connected", "target", targetName)
	s.setStatus(connectors.ConnectionStateConnected, "", targetName)

	go s.runWriter(conn)
	go s.runReader(ctx, conn)

	if err := s.sendCommand(rcp.ConfigCommand(s.client)); err != nil {
		s.logger.Warn("rcp_config send failed", "error", err)
	}
	s.pollRound()
	s.poll = time.NewTicker(s.pollInterval)
}

// fail turns a transport error into a status and schedules the next attempt.
func (s *Service) fail(err error) {
	s.dropConnection()

	if code, ok := transport.CloseCode(err); ok {
		s.logger.Debug("connection closed", "code", code)
		s.setStatus(connectors.ConnectionStateDisconnected, fmt.Sprintf("connection closed with code %d", code), "")
	} else {
		s.logger.Error("camera transport error", "error", err)
		s.setStatus(connectors.ConnectionStateFailed, errText(err), "")
	}
	s.scheduleReconnect()
}

func (s *Service) handleFrame(payload []byte) {
	s.bus.Publish(connectors.TopicFrameIn, connectors.RawFrame{Payload: payload, At: time.Now()})

	frame, err := rcp.Decode(payload)
	if err != nil {
		s.logger.Error("failed to parse message", "payload", string(payload), "error", err)

		return
	}
	if !rcp.IsCurrentValue(frame.Type) {
		s.logger.Debug("ignoring frame", "type", frame.Type, "id", frame.ID)

		return
	}
	s.logger.Debug("received message", "type", frame.Type, "id", frame.ID)
	if !s.translator.Apply(frame) {
		return
	}

	snapshot := s.translator.Snapshot()
	s.mu.Lock()
	s.values = snapshot
	s.session = s.translator.Session()
	s.mu.Unlock()
	s.publisher.Publish(snapshot)
}

func (s *Service) pollRound() {
	for _, id := range rcp.TrackedParameters() {
		if err := s.Get(id); err != nil {
			s.logger.Debug("poll request dropped", "id", id, "error", err)

			return
		}
	}
}

// setStatus publishes a status change. Leaving the connected state blanks and
// republishes every variable so the host never shows stale telemetry.
func (s *Service) setStatus(state connectors.ConnectionState, errMsg, targetName string) {
	status := connectors.ConnectionStatus{
		State:         state,
		Err:           errMsg,
		TransportName: s.transportName,
		Target:        targetName,
		Timestamp:     time.Now(),
	}
	if status.Target == "" {
		status.Target = s.target.host
	}

	var snapshot map[string]string
	if !state.Connected() {
		s.translator.Reset()
		snapshot = s.translator.Snapshot()
	}

	s.mu.Lock()
	s.status = status
	if snapshot != nil {
		s.values = snapshot
	}
	s.mu.Unlock()

	s.bus.Publish(connectors.TopicConnStatus, status)
	if snapshot != nil {
		s.publisher.PublishAll(snapshot)
	}
}

func (s *Service) scheduleReconnect() {
	s.cancelReconnect()
	s.reconnect = time.NewTimer(s.reconnectDelay)
}

// cancelReconnect is safe to call with no pending reconnect.
func (s *Service) cancelReconnect() {
	if s.reconnect == nil {
		return
	}
	s.reconnect.Stop()
	s.reconnect = nil
}

func (s *Service) dropConnection() {
	if s.poll != nil {
		s.poll.Stop()
		s.poll = nil
	}
	if s.dialCancel != nil {
		s.dialCancel()
		s.dialCancel = nil
	}
	if s.conn == nil {
		return
	}

	conn := s.conn
	s.conn = nil
	s.mu.Lock()
	s.liveConn = nil
	s.mu.Unlock()

	conn.cancel()
	if err := conn.tr.Close(); err != nil {
		s.logger.Debug("transport close failed", "error", err)
	}
}

func (s *Service) shutdown() {
	s.cancelReconnect()
	s.dropConnection()
	s.gen++
	s.setStatus(connectors.ConnectionStateDisconnected, "", "")
	s.logger.Info("camera service stopped")
}

func (s *Service) runReader(ctx context.Context, conn *connection) {
	for {
		payload, err := conn.tr.ReadFrame(conn.ctx)
		if err != nil {
			if conn.ctx.Err() == nil {
				s.emit(ctx, readFailed{gen: conn.gen, err: err})
			}

			return
		}
		if !s.emit(conn.ctx, frameIn{gen: conn.gen, payload: payload}) {
			return
		}
	}
}

func (s *Service) runWriter(conn *connection) {
	for {
		select {
		case <-conn.ctx.Done():
			return
		case payload := <-conn.outbox:
			writeCtx, cancel := context.WithTimeout(conn.ctx, writeTimeout)
			err := conn.tr.WriteFrame(writeCtx, payload)
			cancel()
			if err != nil {
				s.logger.Warn("camera write failed", "error", err)

				continue
			}
			s.bus.Publish(connectors.TopicFrameOut, connectors.RawFrame{Payload: payload, At: time.Now()})
		}
	}
}

func (s *Service) enqueue(conn *connection, payload []byte) error {
	if conn == nil {
		return ErrNotConnected
	}
	select {
	case <-conn.ctx.Done():
		return ErrNotConnected
	default:
	}
	select {
	case conn.outbox <- payload:
		return nil
	default:
		return ErrOutboxFull
	}
}

func (s *Service) emit(ctx context.Context, ev any) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func statusTarget(tr transport.Transport, host string) string {
	if resolver, ok := tr.(transport.StatusTargetResolver); ok {
		if target := resolver.StatusTarget(); target != "" {
			return target
		}
	}

	return host
}

func errText(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}

func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}

	return t.C
}

func tickerC(t *time.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}

	return t.C
}
