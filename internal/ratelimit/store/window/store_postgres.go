package window

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cashdesk/internal/ratelimit/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS rate_windows (
	principal    TEXT        NOT NULL,
	window_index BIGINT      NOT NULL,
	count        INTEGER     NOT NULL,
	expires_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (principal, window_index)
);
CREATE INDEX IF NOT EXISTS idx_rate_windows_expires_at ON rate_windows (expires_at);
`

// PostgresStore persists window counters in PostgreSQL.
// This store is pure I/O; the admission rule lives in the service.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the rate_windows table when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate rate windows: %w", err)
	}
	return nil
}

// Increment uses a single upsert so concurrent callers serialize on the row.
func (s *PostgresStore) Increment(ctx context.Context, w models.Window) (int, error) {
	query := `
		INSERT INTO rate_windows (principal, window_index, count, expires_at)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (principal, window_index) DO UPDATE SET
			count = rate_windows.count + 1
		RETURNING count
	`
	var count int
	if err := s.db.QueryRowContext(ctx, query, w.Principal, w.Index, w.End).Scan(&count); err != nil {
		return 0, fmt.Errorf("increment rate window: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) Prune(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rate_windows WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("prune rate windows: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune rate windows: %w", err)
	}
	return int(n), nil
}
