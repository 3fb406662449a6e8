package mongodb

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Now returns the current time in UTC truncated to the precision Mongo stores
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// IsDuplicateKey reports whether err is a unique index violation
func IsDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

// VersionFilter matches a document by id and expected version for compare-and-swap updates
func VersionFilter(id string, version int) bson.M {
	return bson.M{"_id": id, "version": version}
}

// SortAscending creates an ascending sort
func SortAscending(field string) bson.D {
	return bson.D{{Key: field, Value: 1}}
}

// SortDescending creates a descending sort
func SortDescending(field string) bson.D {
	return bson.D{{Key: field, Value: -1}}
}

// PageOptions converts a 1-based page into find options sorted by field
func PageOptions(page, pageSize int64, sort bson.D) *options.FindOptions {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	return options.Find().
		SetSort(sort).
		SetSkip((page - 1) * pageSize).
		SetLimit(pageSize)
}
