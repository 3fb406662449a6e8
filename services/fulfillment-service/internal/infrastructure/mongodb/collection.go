// Package mongodb persists every aggregate in MongoDB. Writes run in a
// transaction together with the outbox rows of the events they raise, and
// updates are compare-and-swap on the version field.
package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	sharedmongo "github.com/wms-platform/fulfillment/shared/pkg/mongodb"
	outboxMongo "github.com/wms-platform/fulfillment/shared/pkg/outbox/mongodb"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/common"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/infrastructure/messaging"
)

// document is satisfied by a pointer to an aggregate struct
type document[E any] interface {
	*E
	common.EventSource
}

type collection[E any, T document[E]] struct {
	coll      *mongo.Collection
	client    *sharedmongo.Client
	outbox    *outboxMongo.OutboxRepository
	mapper    *messaging.OutboxMapper
	aggregate messaging.Aggregate
	id        func(T) string
	version   func(T) *int
	obs       sharedmongo.Instrumentation
}

func (c *collection[E, T]) name() string {
	return c.coll.Name()
}

// insert stores a new document with its events
func (c *collection[E, T]) insert(ctx context.Context, item T) error {
	id := c.id(item)
	err := c.obs.Observe(ctx, c.name(), "insert", func(ctx context.Context) error {
		return c.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
			if _, err := c.coll.InsertOne(sessCtx, item); err != nil {
				if sharedmongo.IsDuplicateKey(err) {
					return fmt.Errorf("%w: %s %s", common.ErrDuplicate, c.aggregate, id)
				}
				return fmt.Errorf("failed to insert %s: %w", c.aggregate, err)
			}
			return c.saveEvents(sessCtx, id, item)
		})
	})
	if err != nil {
		return err
	}
	item.ClearDomainEvents()
	return nil
}

// replace writes item if the stored version still matches and bumps the version
func (c *collection[E, T]) replace(ctx context.Context, item T) error {
	id := c.id(item)
	expected := *c.version(item)
	*c.version(item) = expected + 1

	err := c.obs.Observe(ctx, c.name(), "replace", func(ctx context.Context) error {
		return c.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
			result, err := c.coll.ReplaceOne(sessCtx, sharedmongo.VersionFilter(id, expected), item)
			if err != nil {
				return fmt.Errorf("failed to update %s: %w", c.aggregate, err)
			}
			if result.MatchedCount == 0 {
				return fmt.Errorf("%w: %s %s", common.ErrVersionConflict, c.aggregate, id)
			}
			return c.saveEvents(sessCtx, id, item)
		})
	})
	if err != nil {
		*c.version(item) = expected
		return err
	}
	item.ClearDomainEvents()
	return nil
}

func (c *collection[E, T]) saveEvents(ctx context.Context, id string, item T) error {
	rows, err := c.mapper.Map(ctx, c.aggregate, id, item.DomainEvents())
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return c.outbox.SaveAll(ctx, rows)
}

// findOne returns nil when nothing matches
func (c *collection[E, T]) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (T, error) {
	var doc E
	err := c.obs.Observe(ctx, c.name(), "findOne", func(ctx context.Context) error {
		return c.coll.FindOne(ctx, filter, opts...).Decode(&doc)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find %s: %w", c.aggregate, err)
	}
	return T(&doc), nil
}

func (c *collection[E, T]) findByID(ctx context.Context, id string) (T, error) {
	return c.findOne(ctx, bson.M{"_id": id})
}

// list returns one page sorted by sort plus the total match count
func (c *collection[E, T]) list(ctx context.Context, filter bson.M, page common.Page, sort bson.D) ([]T, int64, error) {
	var total int64
	var docs []E
	err := c.obs.Observe(ctx, c.name(), "list", func(ctx context.Context) error {
		n, err := c.coll.CountDocuments(ctx, filter)
		if err != nil {
			return err
		}
		total = n

		cursor, err := c.coll.Find(ctx, filter, sharedmongo.PageOptions(page.Number, page.Size, sort))
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &docs)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list %s: %w", c.aggregate, err)
	}

	out := make([]T, 0, len(docs))
	for i := range docs {
		out = append(out, T(&docs[i]))
	}
	return out, total, nil
}

// newestFirst sorts by creation time with the id as tie breaker
func newestFirst() bson.D {
	return bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
}

func isDuplicate(err error) bool {
	return errors.Is(err, common.ErrDuplicate)
}
