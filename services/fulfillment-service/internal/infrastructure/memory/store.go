// Package memory is the in-process storage backend. Every repository keeps
// clones of its records and honours the same compare-and-swap contract as the
// MongoDB backend, so services behave identically on both.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/wms-platform/fulfillment/shared/pkg/outbox"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/common"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/infrastructure/messaging"
)

type accessors[T common.EventSource] struct {
	id      func(T) string
	version func(T) *int
	clone   func(T) T
}

// store holds one aggregate type. Records are listed newest first.
type store[T common.EventSource] struct {
	mu        sync.RWMutex
	items     map[string]T
	ids       []string
	aggregate messaging.Aggregate
	acc       accessors[T]
	mapper    *messaging.OutboxMapper
	outbox    outbox.Repository
}

func newStore[T common.EventSource](aggregate messaging.Aggregate, acc accessors[T], mapper *messaging.OutboxMapper, ob outbox.Repository) *store[T] {
	return &store[T]{
		items:     make(map[string]T),
		aggregate: aggregate,
		acc:       acc,
		mapper:    mapper,
		outbox:    ob,
	}
}

// create inserts item unless its id exists or conflicts reports a clash with
// a stored record
func (s *store[T]) create(ctx context.Context, item T, conflicts func(stored T) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.acc.id(item)
	if _, ok := s.items[id]; ok {
		return fmt.Errorf("%w: %s %s", common.ErrDuplicate, s.aggregate, id)
	}
	if conflicts != nil {
		for _, stored := range s.items {
			if conflicts(stored) {
				return fmt.Errorf("%w: %s %s", common.ErrDuplicate, s.aggregate, id)
			}
		}
	}

	if err := s.publish(ctx, id, item); err != nil {
		return err
	}
	s.items[id] = s.acc.clone(item)
	s.ids = append(s.ids, id)
	return nil
}

func (s *store[T]) update(ctx context.Context, item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.acc.id(item)
	stored, ok := s.items[id]
	if !ok {
		return fmt.Errorf("%s %s not found", s.aggregate, id)
	}
	if *s.acc.version(stored) != *s.acc.version(item) {
		return fmt.Errorf("%w: %s %s", common.ErrVersionConflict, s.aggregate, id)
	}

	if err := s.publish(ctx, id, item); err != nil {
		return err
	}
	*s.acc.version(item)++
	s.items[id] = s.acc.clone(item)
	return nil
}

// publish writes the pending events of item to the outbox and clears them
func (s *store[T]) publish(ctx context.Context, id string, item T) error {
	if s.outbox == nil {
		item.ClearDomainEvents()
		return nil
	}
	rows, err := s.mapper.Map(ctx, s.aggregate, id, item.DomainEvents())
	if err != nil {
		return err
	}
	if err := s.outbox.SaveAll(ctx, rows); err != nil {
		return err
	}
	item.ClearDomainEvents()
	return nil
}

// get returns a clone of the record, or the zero value when it is missing
func (s *store[T]) get(id string) T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		var zero T
		return zero
	}
	return s.acc.clone(item)
}

// find returns the newest record matching match
func (s *store[T]) find(match func(T) bool) T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range slices.Backward(s.ids) {
		if item := s.items[id]; match(item) {
			return s.acc.clone(item)
		}
	}
	var zero T
	return zero
}

func (s *store[T]) list(match func(T) bool, page common.Page) ([]T, int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []T
	for _, id := range slices.Backward(s.ids) {
		if item := s.items[id]; match == nil || match(item) {
			matched = append(matched, item)
		}
	}

	total := int64(len(matched))
	start := min(page.Offset(), total)
	end := total
	if page.Size > 0 {
		end = min(start+page.Size, total)
	}

	out := make([]T, 0, end-start)
	for _, item := range matched[start:end] {
		out = append(out, s.acc.clone(item))
	}
	return out, total
}
