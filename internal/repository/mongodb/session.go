package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type sessionDoc struct {
	Token  string    `bson:"_id"`
	Data   []byte    `bson:"data"`
	Expiry time.Time `bson:"expiry"`
}

// FindSession returns the payload stored under token. Expired documents count as missing.
func (db *DB) FindSession(ctx context.Context, token string) ([]byte, bool, error) {
	var doc sessionDoc
	err := db.sessions.FindOne(ctx, bson.D{
		{Key: "_id", Value: token},
		{Key: "expiry", Value: bson.D{{Key: "$gt", Value: time.Now().UTC()}}},
	}).Decode(&doc)
	if isNoDocuments(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("mongodb: finding session: %w", err)
	}
	return doc.Data, true, nil
}

// CommitSession upserts the session document for token.
func (db *DB) CommitSession(ctx context.Context, token string, data []byte, expiry time.Time) error {
	_, err := db.sessions.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: token}},
		sessionDoc{Token: token, Data: data, Expiry: expiry.UTC()},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mongodb: committing session: %w", err)
	}
	return nil
}

// DeleteSession removes token. Unknown tokens are not an error.
func (db *DB) DeleteSession(ctx context.Context, token string) error {
	if _, err := db.sessions.DeleteOne(ctx, bson.D{{Key: "_id", Value: token}}); err != nil {
		return fmt.Errorf("mongodb: deleting session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes every expired session and returns how many went.
func (db *DB) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := db.sessions.DeleteMany(ctx, bson.D{
		{Key: "expiry", Value: bson.D{{Key: "$lte", Value: time.Now().UTC()}}},
	})
	if err != nil {
		return 0, fmt.Errorf("mongodb: deleting expired sessions: %w", err)
	}
	return res.DeletedCount, nil
}
