package domain

import (
	"context"
	"time"
)

type HistoryRepository interface {
	Insert(ctx context.Context, c VariableChange) error
	ListLatest(ctx context.Context, variable string, limit int) ([]VariableChange, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
