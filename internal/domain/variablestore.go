package domain

import (
	"context"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/skobkin/rcp2bridge/internal/bus"
	"github.com/skobkin/rcp2bridge/internal/connectors"
	"github.com/skobkin/rcp2bridge/internal/telemetry"
)

var variableRef = regexp.MustCompile(`\$\(([^:()]+):([^()]+)\)`)

// Variable is one published value as the host sees it.
type Variable struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Value     string    `json:"value"`
	Custom    bool      `json:"custom,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VariableStore caches telemetry and custom variables published on the bus.
type VariableStore struct {
	mu      sync.RWMutex
	names   map[string]string
	values  map[string]Variable
	custom  map[string]Variable
	changes chan struct{}
}

func NewVariableStore() *VariableStore {
	s := &VariableStore{
		names:   make(map[string]string),
		values:  make(map[string]Variable),
		custom:  make(map[string]Variable),
		changes: make(chan struct{}, 1),
	}
	for _, def := range telemetry.Definitions() {
		s.names[def.ID] = def.Name
		s.values[def.ID] = Variable{ID: def.ID, Name: def.Name}
	}

	return s
}

func (s *VariableStore) Start(ctx context.Context, b bus.MessageBus) {
	telemetrySub := b.Subscribe(connectors.TopicVariables)
	customSub := b.Subscribe(connectors.TopicCustomVariables)
	go func() {
		defer b.Unsubscribe(telemetrySub, connectors.TopicVariables)
		defer b.Unsubscribe(customSub, connectors.TopicCustomVariables)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-telemetrySub:
				if !ok {
					return
				}
				if changes, ok := msg.(connectors.VariableChanges); ok {
					s.Apply(changes, false)
				}
			case msg, ok := <-customSub:
				if !ok {
					return
				}
				if changes, ok := msg.(connectors.VariableChanges); ok {
					s.Apply(changes, true)
				}
			}
		}
	}()
}

// Apply merges published changes. Telemetry keys outside the declared set are ignored.
func (s *VariableStore) Apply(changes connectors.VariableChanges, custom bool) {
	at := changes.At
	if at.IsZero() {
		at = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, value := range changes.Values {
		if custom {
			s.custom[id] = Variable{ID: id, Value: value, Custom: true, UpdatedAt: at}

			continue
		}
		name, ok := s.names[id]
		if !ok {
			continue
		}
		s.values[id] = Variable{ID: id, Name: name, Value: value, UpdatedAt: at}
	}
	s.notify()
}

// Get looks a variable up; telemetry names win over custom ones.
func (s *VariableStore) Get(id string) (Variable, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[id]; ok {
		return v, true
	}
	v, ok := s.custom[id]

	return v, ok
}

// Snapshot lists telemetry variables in declaration order followed by custom ones by name.
func (s *VariableStore) Snapshot() []Variable {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Variable, 0, len(s.values)+len(s.custom))
	for _, def := range telemetry.Definitions() {
		out = append(out, s.values[def.ID])
	}
	custom := make([]Variable, 0, len(s.custom))
	for id, v := range s.custom {
		if _, shadowed := s.values[id]; shadowed {
			continue
		}
		custom = append(custom, v)
	}
	sort.Slice(custom, func(i, j int) bool { return custom[i].ID < custom[j].ID })

	return append(out, custom...)
}

// Values returns the plain id to value map.
func (s *VariableStore) Values() map[string]string {
	snapshot := s.Snapshot()
	out := make(map[string]string, len(snapshot))
	for _, v := range snapshot {
		out[v.ID] = v.Value
	}

	return out
}

// ParseVariablesInString replaces $(label:variable) references with current values.
// References to unknown variables are left untouched.
func (s *VariableStore) ParseVariablesInString(text string) string {
	return variableRef.ReplaceAllStringFunc(text, func(ref string) string {
		m := variableRef.FindStringSubmatch(ref)
		if v, ok := s.Get(m[2]); ok {
			return v.Value
		}

		return ref
	})
}

func (s *VariableStore) Changes() <-chan struct{} {
	return s.changes
}

func (s *VariableStore) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}
