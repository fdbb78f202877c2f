package telemetry

import (
	"log/slog"
	"time"

	"github.com/skobkin/rcp2bridge/internal/bus"
	"github.com/skobkin/rcp2bridge/internal/connectors"
	"github.com/skobkin/rcp2bridge/internal/rcp"
)

// Translator turns current-value frames into host variables. It is not safe for
// concurrent use; the camera service calls it from its event loop only.
type Translator struct {
	logger  *slog.Logger
	vars    *Variables
	session Session
}

func NewTranslator(logger *slog.Logger) *Translator {
	if logger == nil {
		logger = slog.With("component", "telemetry")
	}

	return &Translator{
		logger: logger,
		vars:   NewVariables(),
	}
}

// Apply runs the rule for the frame id. It reports false for frames that are not
// current-value updates or carry an id without a rule.
func (t *Translator) Apply(frame rcp.Frame) bool {
	if !rcp.IsCurrentValue(frame.Type) {
		return false
	}
	apply, ok := rules[frame.ID]
	if !ok {
		t.logger.Debug("unhandled parameter", "id", frame.ID, "type", frame.Type)

		return false
	}
	apply(frame, &t.session, t.vars)

	return true
}

// Reset blanks every variable. Session values are kept.
func (t *Translator) Reset() {
	t.vars.Reset()
}

func (t *Translator) Snapshot() map[string]string {
	return t.vars.Snapshot()
}

func (t *Translator) Session() Session {
	return t.session
}

// Publisher sends variable changes to a bus topic, remembering what was sent last.
type Publisher struct {
	bus       bus.MessageBus
	topic     string
	published map[string]string
	now       func() time.Time
}

// NewPublisher publishes to connectors.TopicVariables unless another topic is given.
func NewPublisher(messageBus bus.MessageBus, topic string) *Publisher {
	if topic == "" {
		topic = connectors.TopicVariables
	}

	return &Publisher{
		bus:       messageBus,
		topic:     topic,
		published: make(map[string]string),
		now:       time.Now,
	}
}

// Publish emits the keys of snapshot that differ from the last published values and
// returns how many changed. Nothing is published when nothing changed.
func (p *Publisher) Publish(snapshot map[string]string) int {
	changed := make(map[string]string)
	for key, value := range snapshot {
		if prev, ok := p.published[key]; ok && prev == value {
			continue
		}
		changed[key] = value
		p.published[key] = value
	}
	if len(changed) == 0 {
		return 0
	}
	p.send(changed, false)

	return len(changed)
}

// PublishAll emits every key of snapshot regardless of the baseline.
func (p *Publisher) PublishAll(snapshot map[string]string) {
	all := make(map[string]string, len(snapshot))
	for key, value := range snapshot {
		all[key] = value
		p.published[key] = value
	}
	p.send(all, true)
}

func (p *Publisher) send(values map[string]string, full bool) {
	if p.bus == nil {
		return
	}
	p.bus.Publish(p.topic, connectors.VariableChanges{
		Values: values,
		Full:   full,
		At:     p.now(),
	})
}
