package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/sajilotantra/sajilotantra-be/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps activity logs in a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects to uri and prepares the activitylogs collection.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true}))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	coll := client.Database(database).Collection("activitylogs")
	_, err = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "timestamp", Value: -1}}},
	})
	if err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("create activity log indexes: %w", err)
	}
	return &MongoStore{client: client, coll: coll}, nil
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Append implements Store.
func (s *MongoStore) Append(ctx context.Context, entry models.ActivityLog) error {
	_, err := s.coll.InsertOne(ctx, entry)
	return err
}

// List implements Store.
func (s *MongoStore) List(ctx context.Context, f models.ActivityFilter) ([]models.ActivityLog, models.Pagination, error) {
	offset := NormalizePage(&f)
	filter := mongoFilter(f)

	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, models.Pagination{}, fmt.Errorf("count activity logs: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(f.Limit))
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, models.Pagination{}, fmt.Errorf("find activity logs: %w", err)
	}
	logs := []models.ActivityLog{}
	if err := cur.All(ctx, &logs); err != nil {
		return nil, models.Pagination{}, fmt.Errorf("decode activity logs: %w", err)
	}
	return logs, NewPagination(f, total), nil
}

func mongoFilter(f models.ActivityFilter) bson.M {
	filter := bson.M{}
	if f.UserID != "" {
		filter["userId"] = f.UserID
	}
	if f.Action != "" {
		filter["action"] = f.Action
	}
	if f.EntityType != "" {
		filter["entityType"] = f.EntityType
	}
	if f.StartDate != nil || f.EndDate != nil {
		ts := bson.M{}
		if f.StartDate != nil {
			ts["$gte"] = f.StartDate.UTC()
		}
		if f.EndDate != nil {
			ts["$lte"] = f.EndDate.UTC()
		}
		filter["timestamp"] = ts
	}
	return filter
}

// Stats implements Store.
func (s *MongoStore) Stats(ctx context.Context) ([]models.ActivityStat, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{
				{Key: "action", Value: "$action"},
				{Key: "entityType", Value: "$entityType"},
				{Key: "status", Value: "$status"},
			}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "last", Value: bson.D{{Key: "$max", Value: "$timestamp"}}},
		}}},
	}
	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate activity logs: %w", err)
	}
	var rows []struct {
		ID struct {
			Action     models.Action         `bson:"action"`
			EntityType models.EntityType     `bson:"entityType"`
			Status     models.ActivityStatus `bson:"status"`
		} `bson:"_id"`
		Count int64     `bson:"count"`
		Last  time.Time `bson:"last"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode activity stats: %w", err)
	}

	groups := make([]StatRow, 0, len(rows))
	for _, r := range rows {
		groups = append(groups, StatRow{
			Action: r.ID.Action, EntityType: r.ID.EntityType, Status: r.ID.Status,
			Count: r.Count, Last: r.Last,
		})
	}
	return MergeStats(groups), nil
}

// DeleteBefore implements Store.
func (s *MongoStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"timestamp": bson.M{"$lt": cutoff.UTC()}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
