package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/neighborly/directory-api/services/auth-service/internal/model"
)

// ErrWrongTokenKind reports that a token value exists but was issued for a
// different flow than the one trying to consume it.
var ErrWrongTokenKind = errors.New("token was issued for a different flow")

// OneTimeTokenRepository defines the interface for single-use token
// operations (email verification and password reset).
//
// ConsumeToken removes and returns the row in a single atomic operation;
// a token value can therefore be consumed successfully at most once, no
// matter how many requests race on it. Losers observe mongo.ErrNoDocuments.
type OneTimeTokenRepository interface {
	CreateToken(ctx context.Context, token *model.OneTimeToken) (*model.OneTimeToken, error)
	ConsumeToken(ctx context.Context, token string, kind model.TokenKind) (*model.OneTimeToken, error)
	DeleteByUserAndKind(ctx context.Context, userID string, kind model.TokenKind) (int64, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

const oneTimeTokenCollection = "one_time_tokens"

type oneTimeTokenMongoRepository struct {
	db *mongo.Database
}

// NewOneTimeTokenMongoRepository creates a new MongoDB repository for
// one-time tokens, with a unique token index and per-user lookups.
func NewOneTimeTokenMongoRepository(
	ctx context.Context,
	logger *zerolog.Logger,
	db *mongo.Database,
) OneTimeTokenRepository {
	collection := db.Collection(oneTimeTokenCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "kind", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "expires_at", Value: 1}},
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create one-time token indexes")
	}

	return &oneTimeTokenMongoRepository{db: db}
}

func (r *oneTimeTokenMongoRepository) CreateToken(
	ctx context.Context,
	token *model.OneTimeToken,
) (*model.OneTimeToken, error) {
	token.CreatedAt = time.Now()

	result, err := r.db.Collection(oneTimeTokenCollection).InsertOne(ctx, token)
	if err != nil {
		return nil, err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		token.ID = objectID
	}

	return token, nil
}

func (r *oneTimeTokenMongoRepository) ConsumeToken(
	ctx context.Context,
	token string,
	kind model.TokenKind,
) (*model.OneTimeToken, error) {
	result := r.db.Collection(oneTimeTokenCollection).FindOneAndDelete(ctx, bson.M{
		"token": token,
		"kind":  kind,
	})
	if result.Err() != nil {
		if errors.Is(result.Err(), mongo.ErrNoDocuments) {
			return nil, r.classifyMiss(ctx, token)
		}
		return nil, result.Err()
	}

	var oneTimeToken model.OneTimeToken
	if err := result.Decode(&oneTimeToken); err != nil {
		return nil, err
	}

	return &oneTimeToken, nil
}

// classifyMiss distinguishes an unknown token from one bound to another
// flow. Diagnostic only: the authoritative decision was the atomic delete.
func (r *oneTimeTokenMongoRepository) classifyMiss(ctx context.Context, token string) error {
	err := r.db.Collection(oneTimeTokenCollection).
		FindOne(ctx, bson.M{"token": token}).
		Err()
	if err == nil {
		return ErrWrongTokenKind
	}

	return mongo.ErrNoDocuments
}

func (r *oneTimeTokenMongoRepository) DeleteByUserAndKind(
	ctx context.Context,
	userID string,
	kind model.TokenKind,
) (int64, error) {
	objectID, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return 0, err
	}

	result, err := r.db.Collection(oneTimeTokenCollection).DeleteMany(ctx, bson.M{
		"user_id": objectID,
		"kind":    kind,
	})
	if err != nil {
		return 0, err
	}

	return result.DeletedCount, nil
}

func (r *oneTimeTokenMongoRepository) DeleteExpired(ctx context.Context) (int64, error) {
	filter := bson.M{
		"expires_at": bson.M{"$lt": time.Now()},
	}

	result, err := r.db.Collection(oneTimeTokenCollection).DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}

	return result.DeletedCount, nil
}
