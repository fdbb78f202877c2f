package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/skobkin/rcp2bridge/internal/actions"
	"github.com/skobkin/rcp2bridge/internal/bus"
	"github.com/skobkin/rcp2bridge/internal/connectors"
	"github.com/skobkin/rcp2bridge/internal/telemetry"
)

// TypeWebSocketVariable copies a value from inbound frames into a user named variable.
const TypeWebSocketVariable = "websocket_variable"

const variableNamePattern = `^[-a-zA-Z0-9_]+$`

var (
	ErrInvalidVariable = errors.New("invalid variable name")

	variableName = regexp.MustCompile(variableNamePattern)
)

// Definition describes a feedback type for the host.
type Definition struct {
	ID          string           `json:"id"`
	Type        string           `json:"type"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Options     []actions.Option `json:"options"`
}

// Subscription binds a feedback instance to a variable.
type Subscription struct {
	ID       string `json:"id"`
	Variable string `json:"variable"`
	Subpath  string `json:"subpath"`
}

// Engine evaluates websocket_variable feedbacks against every frame the camera sends.
type Engine struct {
	logger    *slog.Logger
	publisher *telemetry.Publisher

	mu     sync.Mutex
	subs   map[string]Subscription
	values map[string]string
	last   []byte
}

func NewEngine(logger *slog.Logger, messageBus bus.MessageBus) *Engine {
	if logger == nil {
		logger = slog.With("component", "feedback")
	}

	return &Engine{
		logger:    logger,
		publisher: telemetry.NewPublisher(messageBus, connectors.TopicCustomVariables),
		subs:      make(map[string]Subscription),
		values:    make(map[string]string),
	}
}

func Definitions() []Definition {
	return []Definition{{
		ID:          TypeWebSocketVariable,
		Type:        "advanced",
		Name:        "Update variable with value from WebSocket message",
		Description: "Receive messages from the WebSocket and set the value to a variable. Variables can be used on any button.",
		Options: []actions.Option{
			{Type: actions.OptionTextInput, ID: "subpath", Label: "JSON Path (blank if not json)", Default: ""},
			{Type: actions.OptionTextInput, ID: "variable", Label: "Variable", Default: "", Regex: "/" + variableNamePattern + "/"},
		},
	}}
}

// Start feeds inbound frames from the bus into the engine until ctx is done.
func (e *Engine) Start(ctx context.Context, b bus.MessageBus) {
	sub := b.Subscribe(connectors.TopicFrameIn)
	go func() {
		defer b.Unsubscribe(sub, connectors.TopicFrameIn)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub:
				if !ok {
					return
				}
				frame, ok := msg.(connectors.RawFrame)
				if !ok {
					continue
				}
				e.HandleFrame(frame.Payload)
			}
		}
	}()
}

// Subscribe registers or replaces a feedback instance. When a frame was already seen the
// variable is filled from it right away.
func (e *Engine) Subscribe(sub Subscription) error {
	sub.Variable = strings.TrimSpace(sub.Variable)
	if sub.ID == "" {
		return errors.New("feedback id is required")
	}
	if !variableName.MatchString(sub.Variable) {
		return fmt.Errorf("%w: %q", ErrInvalidVariable, sub.Variable)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs[sub.ID] = sub
	e.logger.Debug("feedback subscribed", "id", sub.ID, "variable", sub.Variable, "subpath", sub.Subpath)
	if e.last != nil {
		e.applyLocked(e.last, []Subscription{sub})
	}

	return nil
}

// Unsubscribe drops a feedback instance; the variable keeps its last value.
func (e *Engine) Unsubscribe(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.subs[id]; !ok {
		return false
	}
	delete(e.subs, id)
	e.logger.Debug("feedback unsubscribed", "id", id)

	return true
}

func (e *Engine) Subscriptions() []Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Subscription, 0, len(e.subs))
	for _, sub := range e.subs {
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}

// Values returns the custom variables set so far.
func (e *Engine) Values() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]string, len(e.values))
	for key, value := range e.values {
		out[key] = value
	}

	return out
}

func (e *Engine) HandleFrame(payload []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.last = append(e.last[:0], payload...)
	if len(e.subs) == 0 {
		return
	}
	subs := make([]Subscription, 0, len(e.subs))
	for _, sub := range e.subs {
		subs = append(subs, sub)
	}
	e.applyLocked(payload, subs)
}

func (e *Engine) applyLocked(payload []byte, subs []Subscription) {
	for _, sub := range subs {
		value, ok := extract(payload, sub.Subpath)
		if !ok {
			continue
		}
		e.values[sub.Variable] = value
	}
	e.publisher.Publish(e.values)
}

// extract resolves a gjson path in payload. A blank path selects the whole payload, which
// also works for frames that are not JSON.
func extract(payload []byte, path string) (string, bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		return string(payload), true
	}
	if !gjson.ValidBytes(payload) {
		return "", false
	}
	result := gjson.GetBytes(payload, path)
	if !result.Exists() {
		return "", false
	}

	switch result.Type {
	case gjson.String:
		return result.Str, true
	case gjson.Null:
		return "", true
	default:
		return result.Raw, true
	}
}
