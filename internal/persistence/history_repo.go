package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/skobkin/rcp2bridge/internal/domain"
)

const defaultHistoryLimit = 100

type HistoryRepo struct {
	db *sql.DB
}

func NewHistoryRepo(db *sql.DB) *HistoryRepo {
	return &HistoryRepo{db: db}
}

func (r *HistoryRepo) Insert(ctx context.Context, c domain.VariableChange) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO variable_changes(at, host, variable, value)
		VALUES (?, ?, ?, ?)
	`, toUnixMillis(c.At), c.Host, c.Variable, c.Value)
	if err != nil {
		return fmt.Errorf("insert variable change: %w", err)
	}

	return nil
}

// ListLatest returns the newest changes of one variable, newest first.
func (r *HistoryRepo) ListLatest(ctx context.Context, variable string, limit int) ([]domain.VariableChange, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT at, host, variable, value
		FROM variable_changes
		WHERE variable = ?
		ORDER BY at DESC, id DESC
		LIMIT ?
	`, variable, limit)
	if err != nil {
		return nil, fmt.Errorf("list variable changes: %w", err)
	}
	defer rows.Close()

	out := make([]domain.VariableChange, 0, limit)
	for rows.Next() {
		var (
			c  domain.VariableChange
			at int64
		)
		if err := rows.Scan(&at, &c.Host, &c.Variable, &c.Value); err != nil {
			return nil, fmt.Errorf("scan variable change: %w", err)
		}
		c.At = fromUnixMillis(at)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variable changes: %w", err)
	}

	return out, nil
}

func (r *HistoryRepo) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM variable_changes WHERE at < ?`, toUnixMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("purge variable changes: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count purged variable changes: %w", err)
	}

	return n, nil
}
