// Package mongodb implements repository.Store on MongoDB.
//
// DOCUMENT SHAPE
//
//	users:    { _id, username?, display_name, password_hash?, google_id?,
//	            facebook_id?, secret?, created_at, updated_at }
//	sessions: { _id: token, data, expiry }
//
// Optional fields are omitted when empty. The unique indexes on username,
// google_id and facebook_id are SPARSE, so documents that lack the field are
// not indexed and any number of them may coexist. This is the Mongo
// equivalent of "UNIQUE but NULL allowed" in the SQL backends.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/sakif/secrets/internal/repository"
)

// DefaultDatabase is used when the URI does not name a database.
const DefaultDatabase = "secrets"

// DB is a Mongo-backed repository.Store.
type DB struct {
	client   *mongo.Client
	users    *mongo.Collection
	sessions *mongo.Collection
}

var _ repository.Store = (*DB)(nil)

// New connects to uri, selects database (DefaultDatabase if empty) and
// ensures the indexes exist.
func New(ctx context.Context, uri, database string) (*DB, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb: connecting: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb: pinging: %w", err)
	}

	if database == "" {
		database = DefaultDatabase
	}
	db := client.Database(database)
	store := &DB{
		client:   client,
		users:    db.Collection("users"),
		sessions: db.Collection("sessions"),
	}

	if err := store.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb: creating indexes: %w", err)
	}
	return store, nil
}

// ensureIndexes creates the unique sparse indexes on username and the provider
// ids, plus the TTL index on session expiry. Existing indexes are left as is.
func (db *DB) ensureIndexes(ctx context.Context) error {
	uniqueSparse := func(field string) mongo.IndexModel {
		return mongo.IndexModel{
			Keys:    bson.D{{Key: field, Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		}
	}

	_, err := db.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		uniqueSparse("username"),
		uniqueSparse("google_id"),
		uniqueSparse("facebook_id"),
		{Keys: bson.D{{Key: "updated_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("users: %w", err)
	}

	// The TTL monitor deletes sessions once expiry has passed. It runs about
	// once a minute, so reads still filter on expiry themselves.
	_, err = db.sessions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiry", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return fmt.Errorf("sessions: %w", err)
	}
	return nil
}

// Ping checks the primary is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client, waiting at most five seconds.
func (db *DB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db.client.Disconnect(ctx)
}

// isNoDocuments keeps the errors.Is call in one place.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
