package auditlog

import (
	"context"
	"time"

	"github.com/openlis/lis-api/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Filter narrows List. Zero values match everything.
type Filter struct {
	EntityType string
	EntityID   string
	UserID     string
	Action     string
	From       *time.Time
	To         *time.Time
	Limit      int64
}

// Repository persists audit entries.
type Repository interface {
	Insert(ctx context.Context, e *models.AuditLog) error
	List(ctx context.Context, f Filter) ([]models.AuditLog, error)
}

// MongoRepository stores entries in the audit_logs collection.
type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Insert(ctx context.Context, e *models.AuditLog) error {
	_, err := r.col.InsertOne(ctx, e)
	return err
}

func (r *MongoRepository) List(ctx context.Context, f Filter) ([]models.AuditLog, error) {
	q := bson.M{}
	if f.EntityType != "" {
		q["entityType"] = f.EntityType
	}
	if f.EntityID != "" {
		q["entityId"] = f.EntityID
	}
	if f.UserID != "" {
		q["userId"] = f.UserID
	}
	if f.Action != "" {
		q["action"] = f.Action
	}
	if f.From != nil || f.To != nil {
		ts := bson.M{}
		if f.From != nil {
			ts["$gte"] = *f.From
		}
		if f.To != nil {
			ts["$lt"] = *f.To
		}
		q["timestamp"] = ts
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(f.Limit)
	cur, err := r.col.Find(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	out := []models.AuditLog{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
