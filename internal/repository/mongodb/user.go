package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/sakif/secrets/internal/apperror"
	"github.com/sakif/secrets/internal/model"
	"github.com/sakif/secrets/internal/repository"
)

// userDoc is the stored form of model.User.
type userDoc struct {
	ID           string    `bson:"_id"`
	Username     string    `bson:"username,omitempty"`
	DisplayName  string    `bson:"display_name"`
	PasswordHash string    `bson:"password_hash,omitempty"`
	GoogleID     string    `bson:"google_id,omitempty"`
	FacebookID   string    `bson:"facebook_id,omitempty"`
	Secret       string    `bson:"secret,omitempty"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func fromModel(u *model.User) userDoc {
	return userDoc{
		ID:           u.ID,
		Username:     u.Username,
		DisplayName:  u.DisplayName,
		PasswordHash: u.PasswordHash,
		GoogleID:     u.GoogleID,
		FacebookID:   u.FacebookID,
		Secret:       u.Secret,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// toModel converts the stored document into the domain type.
func (d userDoc) toModel() *model.User {
	return &model.User{
		ID:           d.ID,
		Username:     d.Username,
		DisplayName:  d.DisplayName,
		PasswordHash: d.PasswordHash,
		GoogleID:     d.GoogleID,
		FacebookID:   d.FacebookID,
		Secret:       d.Secret,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// Create inserts a new user document. The unique username index turns a
// taken username into apperror.ErrConflict.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	// Mongo stores datetimes with millisecond precision; truncate up front so
	// the returned struct matches what a later read gives back.
	now := time.Now().UTC().Truncate(time.Millisecond)
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := db.users.InsertOne(ctx, fromModel(user)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.Conflict("username", user.Username)
		}
		return fmt.Errorf("mongodb: inserting user %q: %w", user.Username, err)
	}
	return nil
}

// GetUserByID returns the user whose _id is id.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.findOne(ctx, bson.D{{Key: "_id", Value: id}}, id)
}

// GetByUsername returns the local account registered under username.
func (db *DB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.findOne(ctx, bson.D{{Key: "username", Value: username}}, username)
}

// findOne decodes the single document matching filter; label names it in errors.
func (db *DB) findOne(ctx context.Context, filter bson.D, label string) (*model.User, error) {
	var doc userDoc
	err := db.users.FindOne(ctx, filter).Decode(&doc)
	if isNoDocuments(err) {
		return nil, apperror.NotFound("user", label)
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb: finding user %q: %w", label, err)
	}
	return doc.toModel(), nil
}

// FindOrCreateByProvider upserts on the provider field. $setOnInsert only
// applies when the upsert inserts, so an existing record comes back
// untouched. Two racing upserts can both miss and both try to insert; the
// loser gets a duplicate-key error from the unique index and simply reads
// the winner's document.
func (db *DB) FindOrCreateByProvider(ctx context.Context, provider, providerID, displayName string) (*model.User, error) {
	field, ok := repository.ProviderColumn(provider)
	if !ok {
		return nil, apperror.ValidationFailed("provider", fmt.Sprintf("unsupported provider %q", provider))
	}
	if providerID == "" {
		return nil, apperror.ValidationFailed("providerID", "provider account ID is required")
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	filter := bson.D{{Key: field, Value: providerID}}
	update := bson.D{{Key: "$setOnInsert", Value: bson.D{
		{Key: "_id", Value: xid.New().String()},
		{Key: "display_name", Value: displayName},
		{Key: "created_at", Value: now},
		{Key: "updated_at", Value: now},
	}}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc userDoc
	err := db.users.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		return db.findOne(ctx, filter, providerID)
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb: upserting %s user %s: %w", provider, providerID, err)
	}
	return doc.toModel(), nil
}

// UpdateSecret overwrites the user's secret. The last write wins.
func (db *DB) UpdateSecret(ctx context.Context, id, secret string) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	res, err := db.users.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "secret", Value: secret},
			{Key: "updated_at", Value: now},
		}}},
	)
	if err != nil {
		return fmt.Errorf("mongodb: updating secret for user %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

// ListWithSecrets returns every user with a non-empty secret, oldest update first.
func (db *DB) ListWithSecrets(ctx context.Context) ([]model.User, error) {
	filter := bson.D{{Key: "secret", Value: bson.D{
		{Key: "$exists", Value: true},
		{Key: "$ne", Value: ""},
	}}}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}, {Key: "_id", Value: 1}})

	cur, err := db.users.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb: listing secrets: %w", err)
	}
	defer cur.Close(ctx)

	users := []model.User{}
	for cur.Next(ctx) {
		var doc userDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongodb: decoding user: %w", err)
		}
		users = append(users, *doc.toModel())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongodb: iterating users: %w", err)
	}
	return users, nil
}

// CountUsers returns the number of user documents.
func (db *DB) CountUsers(ctx context.Context) (int, error) {
	n, err := db.users.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("mongodb: counting users: %w", err)
	}
	return int(n), nil
}
