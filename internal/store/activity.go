package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tripook/tripook-backend/internal/models"
)

const activitiesCollection = "login_activities"

// DailyLoginStat is one day of aggregated login counts.
type DailyLoginStat struct {
	Date        string `bson:"date" json:"date"`
	Count       int    `bson:"count" json:"count"`
	UniqueUsers int    `bson:"unique_users" json:"unique_users"`
}

// ActivityStore is the append-only MongoDB store of login activity records.
type ActivityStore struct {
	col *mongo.Collection
}

func NewActivityStore(db *mongo.Database) *ActivityStore {
	return &ActivityStore{col: db.Collection(activitiesCollection)}
}

// EnsureIndexes creates the (user_id, login_timestamp) index that backs
// per-account recent-history reads.
func (s *ActivityStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "login_timestamp", Value: -1},
		},
		Options: options.Index().SetName("idx_user_timestamp"),
	})
	return err
}

func (s *ActivityStore) Append(ctx context.Context, activity models.LoginActivity) error {
	if activity.LoginTimestamp.IsZero() {
		activity.LoginTimestamp = time.Now().UTC()
	}
	_, err := s.col.InsertOne(ctx, activity)
	return err
}

// RecentByUser returns the most recent login records for one account,
// newest first.
func (s *ActivityStore) RecentByUser(ctx context.Context, userID primitive.ObjectID, limit int64) ([]models.LoginActivity, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	cur, err := s.col.Find(ctx,
		bson.M{"user_id": userID},
		options.Find().
			SetSort(bson.D{{Key: "login_timestamp", Value: -1}}).
			SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var activities []models.LoginActivity
	if err := cur.All(ctx, &activities); err != nil {
		return nil, err
	}
	return activities, nil
}

// StatsByDay aggregates login counts and unique users per calendar day over
// the last `days` days. Missing days are filled with zero counts so charts
// render a continuous series.
func (s *ActivityStore) StatsByDay(ctx context.Context, days int) ([]DailyLoginStat, error) {
	if days <= 0 || days > 365 {
		days = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"login_timestamp": bson.M{"$gte": since},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"$dateToString": bson.M{
				"format": "%Y-%m-%d",
				"date":   "$login_timestamp",
			}},
			"count":        bson.M{"$sum": 1},
			"unique_users": bson.M{"$addToSet": "$user_id"},
		}}},
		{{Key: "$project", Value: bson.M{
			"date":         "$_id",
			"count":        1,
			"unique_users": bson.M{"$size": "$unique_users"},
			"_id":          0,
		}}},
		{{Key: "$sort", Value: bson.M{"date": 1}}},
	}

	cur, err := s.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var stats []DailyLoginStat
	if err := cur.All(ctx, &stats); err != nil {
		return nil, err
	}

	return fillMissingDays(stats, since), nil
}

// CountToday returns the total logins since midnight UTC.
func (s *ActivityStore) CountToday(ctx context.Context) (int64, error) {
	todayStart := time.Now().UTC().Truncate(24 * time.Hour)
	return s.col.CountDocuments(ctx, bson.M{
		"login_timestamp": bson.M{"$gte": todayStart},
	})
}

func fillMissingDays(stats []DailyLoginStat, since time.Time) []DailyLoginStat {
	byDate := make(map[string]DailyLoginStat, len(stats))
	for _, st := range stats {
		byDate[st.Date] = st
	}

	var filled []DailyLoginStat
	current := since.Truncate(24 * time.Hour)
	end := time.Now().UTC().Truncate(24 * time.Hour)

	for !current.After(end) {
		dateStr := current.Format("2006-01-02")
		if st, ok := byDate[dateStr]; ok {
			filled = append(filled, st)
		} else {
			filled = append(filled, DailyLoginStat{Date: dateStr})
		}
		current = current.AddDate(0, 0, 1)
	}
	return filled
}
