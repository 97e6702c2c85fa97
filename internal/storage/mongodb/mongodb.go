// Package mongodb opens the document-store connection used by the MongoDB
// stores and owns the collection names and indexes they rely on.
package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names.
const (
	AccountsCollection  = "users"
	CompaniesCollection = "companies"
	ShiftsCollection    = "shifts"
	VacationsCollection = "vacations"
)

// Open connects to uri, pings the primary and returns the named database.
// When pool is non-nil it observes the client's connection pool.
func Open(ctx context.Context, uri, database string, pool *PoolTracker) (*mongo.Client, *mongo.Database, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1).SetStrict(true).SetDeprecationErrors(true))
	if pool != nil {
		opts.SetPoolMonitor(pool.Monitor())
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("pinging mongodb: %w", err)
	}
	return client, client.Database(database), nil
}

// EnsureIndexes creates the unique indexes that back identity and company
// name uniqueness. It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	unique := func(name string) *options.IndexOptions {
		return options.Index().SetUnique(true).SetName(name)
	}

	_, err := db.Collection(AccountsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: unique("username_unique")},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique("email_unique")},
	})
	if err != nil {
		return fmt.Errorf("creating account indexes: %w", err)
	}

	_, err = db.Collection(CompaniesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: unique("name_unique")},
		{Keys: bson.D{{Key: "users.userId", Value: 1}}, Options: options.Index().SetName("member_lookup")},
	})
	if err != nil {
		return fmt.Errorf("creating company indexes: %w", err)
	}

	_, err = db.Collection(ShiftsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "companyId", Value: 1}, {Key: "startsAt", Value: 1}},
		Options: options.Index().SetName("company_start"),
	})
	if err != nil {
		return fmt.Errorf("creating shift indexes: %w", err)
	}

	_, err = db.Collection(VacationsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "companyId", Value: 1}, {Key: "status", Value: 1}},
		Options: options.Index().SetName("company_status"),
	})
	if err != nil {
		return fmt.Errorf("creating vacation indexes: %w", err)
	}
	return nil
}

// ObjectID parses a hex document id. Ids that do not parse cannot match any
// document, which callers report as not found.
func ObjectID(id string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return oid, true
}

// IsDuplicateKey reports whether err was caused by a unique index.
func IsDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}
