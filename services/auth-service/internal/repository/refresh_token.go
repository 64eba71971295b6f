package repository

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/neighborly/directory-api/services/auth-service/internal/model"
)

// RefreshTokenRepository defines the interface for refresh token operations.
//
// ConsumeToken is the atomic redeem point: it removes the row and returns
// it in one operation, so of any number of concurrent redeemers exactly one
// receives the token and the rest observe mongo.ErrNoDocuments. GetToken
// reads without consuming, for deployments with rotation disabled.
type RefreshTokenRepository interface {
	CreateToken(ctx context.Context, token *model.RefreshToken) (*model.RefreshToken, error)
	GetToken(ctx context.Context, token string) (*model.RefreshToken, error)
	ConsumeToken(ctx context.Context, token string) (*model.RefreshToken, error)
	DeleteToken(ctx context.Context, token string) error
	DeleteByUserID(ctx context.Context, userID string) (int64, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

const refreshTokenCollection = "refresh_tokens"

type refreshTokenMongoRepository struct {
	db *mongo.Database
}

// NewRefreshTokenMongoRepository creates a new MongoDB repository for
// refresh tokens, with unique token and per-user indexes.
func NewRefreshTokenMongoRepository(
	ctx context.Context,
	logger *zerolog.Logger,
	db *mongo.Database,
) RefreshTokenRepository {
	collection := db.Collection(refreshTokenCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "expires_at", Value: 1}},
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create refresh token indexes")
	}

	return &refreshTokenMongoRepository{db: db}
}

func (r *refreshTokenMongoRepository) CreateToken(
	ctx context.Context,
	token *model.RefreshToken,
) (*model.RefreshToken, error) {
	token.CreatedAt = time.Now()

	result, err := r.db.Collection(refreshTokenCollection).InsertOne(ctx, token)
	if err != nil {
		return nil, err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		token.ID = objectID
	}

	return token, nil
}

func (r *refreshTokenMongoRepository) GetToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	result := r.db.Collection(refreshTokenCollection).FindOne(ctx, bson.M{"token": token})
	if result.Err() != nil {
		return nil, result.Err()
	}

	var refreshToken model.RefreshToken
	if err := result.Decode(&refreshToken); err != nil {
		return nil, err
	}

	return &refreshToken, nil
}

func (r *refreshTokenMongoRepository) ConsumeToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	result := r.db.Collection(refreshTokenCollection).FindOneAndDelete(ctx, bson.M{"token": token})
	if result.Err() != nil {
		return nil, result.Err()
	}

	var refreshToken model.RefreshToken
	if err := result.Decode(&refreshToken); err != nil {
		return nil, err
	}

	return &refreshToken, nil
}

func (r *refreshTokenMongoRepository) DeleteToken(ctx context.Context, token string) error {
	_, err := r.db.Collection(refreshTokenCollection).DeleteOne(ctx, bson.M{"token": token})
	return err
}

func (r *refreshTokenMongoRepository) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	objectID, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return 0, err
	}

	result, err := r.db.Collection(refreshTokenCollection).DeleteMany(ctx, bson.M{"user_id": objectID})
	if err != nil {
		return 0, err
	}

	return result.DeletedCount, nil
}

func (r *refreshTokenMongoRepository) DeleteExpired(ctx context.Context) (int64, error) {
	filter := bson.M{
		"expires_at": bson.M{"$lt": time.Now()},
	}

	result, err := r.db.Collection(refreshTokenCollection).DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}

	return result.DeletedCount, nil
}
