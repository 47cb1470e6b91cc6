package reports

import (
	"context"
	"time"

	"github.com/openlis/lis-api/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TAT summarizes order turnaround (created to completed) over a window.
type TAT struct {
	Completed int64   `json:"completed" bson:"completed"`
	AvgHours  float64 `json:"avgHours" bson:"avgHours"`
	MaxHours  float64 `json:"maxHours" bson:"maxHours"`
}

// Source runs the read-only aggregations behind the dashboard and exports.
type Source interface {
	OrdersByStatus(ctx context.Context) (map[string]int64, error)
	AppointmentsByStatus(ctx context.Context, from, to time.Time) (map[string]int64, error)
	Turnaround(ctx context.Context, from, to time.Time) (TAT, error)
	CompletedOrders(ctx context.Context, from, to time.Time) ([]models.Order, error)
}

type MongoSource struct {
	orders       *mongo.Collection
	appointments *mongo.Collection
}

func NewMongoSource(orders, appointments *mongo.Collection) *MongoSource {
	return &MongoSource{orders: orders, appointments: appointments}
}

type statusCount struct {
	Status string `bson:"_id"`
	Count  int64  `bson:"count"`
}

func countByStatus(ctx context.Context, col *mongo.Collection, match bson.M) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	}
	cur, err := col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rows []statusCount
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return out, nil
}

func (s *MongoSource) OrdersByStatus(ctx context.Context) (map[string]int64, error) {
	return countByStatus(ctx, s.orders, bson.M{})
}

func (s *MongoSource) AppointmentsByStatus(ctx context.Context, from, to time.Time) (map[string]int64, error) {
	return countByStatus(ctx, s.appointments, bson.M{"scheduledAt": bson.M{"$gte": from, "$lt": to}})
}

func completedMatch(from, to time.Time) bson.M {
	return bson.M{"status": models.OrderCompleted, "completedAt": bson.M{"$gte": from, "$lt": to}}
}

// Turnaround averages completedAt - createdAt server side; date subtraction
// yields milliseconds.
func (s *MongoSource) Turnaround(ctx context.Context, from, to time.Time) (TAT, error) {
	const msPerHour = 3600000
	hours := bson.M{"$divide": bson.A{bson.M{"$subtract": bson.A{"$completedAt", "$createdAt"}}, msPerHour}}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: completedMatch(from, to)}},
		{{Key: "$group", Value: bson.M{
			"_id":       nil,
			"completed": bson.M{"$sum": 1},
			"avgHours":  bson.M{"$avg": hours},
			"maxHours":  bson.M{"$max": hours},
		}}},
	}
	cur, err := s.orders.Aggregate(ctx, pipeline)
	if err != nil {
		return TAT{}, err
	}
	var rows []TAT
	if err := cur.All(ctx, &rows); err != nil {
		return TAT{}, err
	}
	if len(rows) == 0 {
		return TAT{}, nil
	}
	return rows[0], nil
}

func (s *MongoSource) CompletedOrders(ctx context.Context, from, to time.Time) ([]models.Order, error) {
	cur, err := s.orders.Find(ctx, completedMatch(from, to), options.Find().SetSort(bson.D{{Key: "completedAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	out := []models.Order{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
