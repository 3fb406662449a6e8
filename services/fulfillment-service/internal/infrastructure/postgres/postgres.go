// Package postgres is an alternative home for the stock ledger. Rows are
// updated with a compare-and-swap on version and stock events go to an
// outbox table in the same transaction.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const schema = `
CREATE TABLE IF NOT EXISTS stock_records (
	product_id         TEXT PRIMARY KEY,
	product_name       TEXT NOT NULL,
	sku                TEXT NOT NULL,
	current_quantity   INTEGER NOT NULL CHECK (current_quantity >= 0),
	reserved_quantity  INTEGER NOT NULL CHECK (reserved_quantity >= 0 AND reserved_quantity <= current_quantity),
	available_quantity INTEGER NOT NULL,
	minimum_level      INTEGER NOT NULL,
	maximum_level      INTEGER NOT NULL,
	reorder_point      INTEGER NOT NULL,
	unit_cost_cents    BIGINT NOT NULL,
	currency           TEXT NOT NULL,
	active             BOOLEAN NOT NULL,
	status             TEXT NOT NULL,
	version            INTEGER NOT NULL,
	last_restocked_at  TIMESTAMPTZ,
	last_sold_at       TIMESTAMPTZ,
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stock_records_status ON stock_records (status, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_stock_records_active ON stock_records (active, created_at DESC);

CREATE TABLE IF NOT EXISTS outbox_events (
	id             TEXT PRIMARY KEY,
	aggregate_id   TEXT NOT NULL,
	aggregate_type TEXT NOT NULL,
	event_type     TEXT NOT NULL,
	topic          TEXT NOT NULL,
	payload        JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	published_at   TIMESTAMPTZ,
	retry_count    INTEGER NOT NULL DEFAULT 0,
	last_error     TEXT NOT NULL DEFAULT '',
	max_retries    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_outbox_events_pending ON outbox_events (created_at) WHERE published_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_outbox_events_aggregate ON outbox_events (aggregate_id, created_at);
`

// Open connects through the pgx stdlib driver and verifies the connection
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the tables when they do not exist
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
