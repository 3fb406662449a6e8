package outbox

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// MemoryRepository is an in-process outbox used by the memory storage backend and tests
type MemoryRepository struct {
	mu     sync.Mutex
	events []*OutboxEvent
}

// NewMemoryRepository creates an empty in-memory outbox
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// SaveAll appends events
func (r *MemoryRepository) SaveAll(ctx context.Context, events []*OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range events {
		copied := *e
		r.events = append(r.events, &copied)
	}
	return nil
}

// FindUnpublished returns unpublished, retryable events in insertion order
func (r *MemoryRepository) FindUnpublished(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*OutboxEvent
	for _, e := range r.events {
		if !e.ShouldRetry() {
			continue
		}
		copied := *e
		out = append(out, &copied)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *MemoryRepository) find(eventID string) (*OutboxEvent, error) {
	i := slices.IndexFunc(r.events, func(e *OutboxEvent) bool { return e.ID == eventID })
	if i < 0 {
		return nil, fmt.Errorf("event not found: %s", eventID)
	}
	return r.events[i], nil
}

// MarkPublished marks an event as published
func (r *MemoryRepository) MarkPublished(ctx context.Context, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.find(eventID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	e.PublishedAt = &now
	return nil
}

// IncrementRetry records a failed publish attempt
func (r *MemoryRepository) IncrementRetry(ctx context.Context, eventID string, errorMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.find(eventID)
	if err != nil {
		return err
	}
	e.RetryCount++
	e.LastError = errorMsg
	return nil
}

// FindByAggregateID returns every event of one aggregate
func (r *MemoryRepository) FindByAggregateID(ctx context.Context, aggregateID string) ([]*OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*OutboxEvent
	for _, e := range r.events {
		if e.AggregateID == aggregateID {
			copied := *e
			out = append(out, &copied)
		}
	}
	return out, nil
}

// All returns a snapshot of every stored event
func (r *MemoryRepository) All() []*OutboxEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*OutboxEvent, 0, len(r.events))
	for _, e := range r.events {
		copied := *e
		out = append(out, &copied)
	}
	return out
}
