package repositories

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"activity-sync/internal/models"
)

// MongoProfileRepo is a MongoDB implementation of ProfileRepository.
type MongoProfileRepo struct {
	c *mongo.Collection
}

// NewMongoProfileRepo constructs a MongoProfileRepo on the users collection.
func NewMongoProfileRepo(db *mongo.Database) *MongoProfileRepo {
	return &MongoProfileRepo{c: db.Collection("users")}
}

func (r *MongoProfileRepo) GetProfile(ctx context.Context, userID string) (models.UserProfile, error) {
	var p models.UserProfile
	err := r.c.FindOne(ctx, bson.M{"_id": userID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.UserProfile{}, ErrProfileNotFound
	}
	return p, err
}

func (r *MongoProfileRepo) SetDisplayNameLowercase(ctx context.Context, userID, displayNameLowercase string) error {
	res, err := r.c.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": bson.M{"displayName_lowercase": displayNameLowercase}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// AddFriendPair issues both $addToSet updates in one unordered bulk write.
func (r *MongoProfileRepo) AddFriendPair(ctx context.Context, a, b string) error {
	updates := []mongo.WriteModel{
		mongo.NewUpdateOneModel().SetFilter(bson.M{"_id": a}).SetUpdate(bson.M{"$addToSet": bson.M{"friends": b}}),
		mongo.NewUpdateOneModel().SetFilter(bson.M{"_id": b}).SetUpdate(bson.M{"$addToSet": bson.M{"friends": a}}),
	}
	_, err := r.c.BulkWrite(ctx, updates, options.BulkWrite().SetOrdered(false))
	return err
}

// MongoFriendRequestRepo is a MongoDB implementation of FriendRequestRepository.
type MongoFriendRequestRepo struct {
	c *mongo.Collection
}

// NewMongoFriendRequestRepo constructs a MongoFriendRequestRepo on the friendRequests collection.
func NewMongoFriendRequestRepo(db *mongo.Database) *MongoFriendRequestRepo {
	return &MongoFriendRequestRepo{c: db.Collection("friendRequests")}
}

func (r *MongoFriendRequestRepo) GetFriendRequest(ctx context.Context, requestID string) (models.FriendRequest, error) {
	var req models.FriendRequest
	err := r.c.FindOne(ctx, bson.M{"_id": requestID}).Decode(&req)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.FriendRequest{}, ErrFriendRequestNotFound
	}
	return req, err
}
