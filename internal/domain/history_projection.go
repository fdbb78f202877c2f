package domain

import (
	"context"
	"time"

	"github.com/skobkin/rcp2bridge/internal/bus"
	"github.com/skobkin/rcp2bridge/internal/connectors"
)

// WriteQueue serializes persistence writes from async bus events.
type WriteQueue interface {
	Enqueue(name string, fn func(context.Context) error) bool
}

// HistorySource tells the projection where values come from and whether to record them.
type HistorySource struct {
	Host    func() string
	Enabled func() bool
}

// StartHistoryProjection records every variable value that differs from the last one seen
// on the bus. Values seen while recording is disabled still advance the baseline.
func StartHistoryProjection(ctx context.Context, b bus.MessageBus, queue WriteQueue, repo HistoryRepository, source HistorySource) {
	sub := b.Subscribe(connectors.TopicVariables, connectors.TopicCustomVariables)

	go func() {
		defer b.Unsubscribe(sub)
		last := make(map[string]string)
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-sub:
				if !ok {
					return
				}
				changes, ok := raw.(connectors.VariableChanges)
				if !ok {
					continue
				}
				recordChanges(changes, last, queue, repo, source)
			}
		}
	}()
}

func recordChanges(changes connectors.VariableChanges, last map[string]string, queue WriteQueue, repo HistoryRepository, source HistorySource) {
	enabled := source.Enabled == nil || source.Enabled()
	host := ""
	if source.Host != nil {
		host = source.Host()
	}
	at := changes.At
	if at.IsZero() {
		at = time.Now()
	}

	for id, value := range changes.Values {
		if last[id] == value {
			continue
		}
		last[id] = value
		if !enabled {
			continue
		}
		change := VariableChange{At: at, Host: host, Variable: id, Value: value}
		queue.Enqueue("insert_variable_change", func(writeCtx context.Context) error {
			return repo.Insert(writeCtx, change)
		})
	}
}
