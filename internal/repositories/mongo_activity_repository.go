package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"activity-sync/internal/models"
)

// MongoActivityRepo is a MongoDB implementation of ActivityRepository.
type MongoActivityRepo struct {
	c *mongo.Collection
}

// NewMongoActivityRepo constructs a MongoActivityRepo on the activities collection.
func NewMongoActivityRepo(db *mongo.Database) *MongoActivityRepo {
	return &MongoActivityRepo{c: db.Collection("activities")}
}

// EnsureIndexes creates the index backing the archival query.
func (r *MongoActivityRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "archived", Value: 1}, {Key: "dateTime", Value: 1}},
		Options: options.Index().SetName("idx_activities_archived_datetime"),
	})
	return err
}

func (r *MongoActivityRepo) GetActivity(ctx context.Context, activityID string) (models.Activity, error) {
	var a models.Activity
	err := r.c.FindOne(ctx, bson.M{"_id": activityID}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Activity{}, ErrActivityNotFound
	}
	if err != nil {
		return models.Activity{}, err
	}
	a.DateTime = a.DateTime.UTC()
	return a, nil
}

func (r *MongoActivityRepo) SetTitleLowercase(ctx context.Context, activityID, titleLowercase string) error {
	res, err := r.c.UpdateOne(ctx, bson.M{"_id": activityID}, bson.M{"$set": bson.M{"title_lowercase": titleLowercase}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrActivityNotFound
	}
	return nil
}

func (r *MongoActivityRepo) InitArchived(ctx context.Context, activityID string) (bool, error) {
	res, err := r.c.UpdateOne(ctx,
		bson.M{"_id": activityID, "archived": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"archived": false}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (r *MongoActivityRepo) SetLastMessageTimestamp(ctx context.Context, activityID string, ts time.Time) error {
	res, err := r.c.UpdateOne(ctx, bson.M{"_id": activityID}, bson.M{"$max": bson.M{"lastMessageTimestamp": ts.UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrActivityNotFound
	}
	return nil
}

func (r *MongoActivityRepo) ListArchivable(ctx context.Context, now time.Time) ([]string, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "dateTime", Value: 1}})
	cur, err := r.c.Find(ctx, bson.M{"archived": false, "dateTime": bson.M{"$lt": now.UTC()}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

func (r *MongoActivityRepo) MarkArchived(ctx context.Context, activityIDs []string) (int64, error) {
	if len(activityIDs) == 0 {
		return 0, nil
	}
	res, err := r.c.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": activityIDs}, "archived": bson.M{"$ne": true}},
		bson.M{"$set": bson.M{"archived": true}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
