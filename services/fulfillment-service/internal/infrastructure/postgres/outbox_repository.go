package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wms-platform/fulfillment/shared/pkg/outbox"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// OutboxRepository implements outbox.Repository on the outbox_events table
type OutboxRepository struct {
	db *sql.DB
}

// NewOutboxRepository creates a new OutboxRepository
func NewOutboxRepository(db *sql.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// SaveAll inserts the events outside of any caller transaction
func (r *OutboxRepository) SaveAll(ctx context.Context, events []*outbox.OutboxEvent) error {
	return saveOutbox(ctx, r.db, events)
}

func saveOutbox(ctx context.Context, exec execer, events []*outbox.OutboxEvent) error {
	for _, e := range events {
		_, err := exec.ExecContext(ctx, `
			INSERT INTO outbox_events (id, aggregate_id, aggregate_type, event_type, topic, payload, created_at, retry_count, last_error, max_retries)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`, e.ID, e.AggregateID, e.AggregateType, e.EventType, e.Topic, []byte(e.Payload), e.CreatedAt, e.RetryCount, e.LastError, e.MaxRetries)
		if err != nil {
			return fmt.Errorf("failed to save outbox event: %w", err)
		}
	}
	return nil
}

const outboxColumns = `id, aggregate_id, aggregate_type, event_type, topic, payload, created_at, published_at, retry_count, last_error, max_retries`

// FindUnpublished returns pending, retryable events oldest first
func (r *OutboxRepository) FindUnpublished(ctx context.Context, limit int) ([]*outbox.OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+outboxColumns+`
		FROM outbox_events
		WHERE published_at IS NULL AND retry_count < max_retries
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find unpublished events: %w", err)
	}
	return scanOutbox(rows)
}

// MarkPublished marks an event as published
func (r *OutboxRepository) MarkPublished(ctx context.Context, eventID string) error {
	return r.touch(ctx, `UPDATE outbox_events SET published_at = now() WHERE id = $1`, eventID)
}

// IncrementRetry records a failed publish attempt
func (r *OutboxRepository) IncrementRetry(ctx context.Context, eventID string, errorMsg string) error {
	return r.touch(ctx, `UPDATE outbox_events SET retry_count = retry_count + 1, last_error = $2 WHERE id = $1`, eventID, errorMsg)
}

func (r *OutboxRepository) touch(ctx context.Context, query, eventID string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, append([]any{eventID}, args...)...)
	if err != nil {
		return fmt.Errorf("failed to update outbox event: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("event not found: %s", eventID)
	}
	return nil
}

// FindByAggregateID returns every event of one aggregate in creation order
func (r *OutboxRepository) FindByAggregateID(ctx context.Context, aggregateID string) ([]*outbox.OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+outboxColumns+`
		FROM outbox_events
		WHERE aggregate_id = $1
		ORDER BY created_at
	`, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("failed to find events by aggregate ID: %w", err)
	}
	return scanOutbox(rows)
}

func scanOutbox(rows *sql.Rows) ([]*outbox.OutboxEvent, error) {
	defer rows.Close()

	var events []*outbox.OutboxEvent
	for rows.Next() {
		var e outbox.OutboxEvent
		var payload []byte
		var published sql.NullTime
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.AggregateType, &e.EventType, &e.Topic, &payload,
			&e.CreatedAt, &published, &e.RetryCount, &e.LastError, &e.MaxRetries); err != nil {
			return nil, err
		}
		e.Payload = payload
		e.PublishedAt = timePtr(published)
		events = append(events, &e)
	}
	return events, rows.Err()
}

var _ outbox.Repository = (*OutboxRepository)(nil)
