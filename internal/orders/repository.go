package orders

import (
	"context"
	"errors"
	"time"

	"github.com/openlis/lis-api/internal/database"
	"github.com/openlis/lis-api/internal/models"
	"github.com/openlis/lis-api/pkg/apierror"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Filter narrows List. From/To bound createdAt as [From, To).
type Filter struct {
	PatientID *primitive.ObjectID
	Status    string
	Priority  string
	From      *time.Time
	To        *time.Time
	Limit     int64
	Skip      int64
}

// Repository defines persistence operations for orders
type Repository interface {
	Create(ctx context.Context, o *models.Order) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	GetByAccession(ctx context.Context, accession string) (*models.Order, error)
	List(ctx context.Context, f Filter) ([]models.Order, error)
	// Replace stores o if the stored copy still has updatedAt == prev, otherwise
	// it reports a conflict.
	Replace(ctx context.Context, o *models.Order, prev time.Time) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	CountByPatient(ctx context.Context, patientID primitive.ObjectID) (int64, error)
}

var errConcurrentUpdate = apierror.Conflict("order was modified by someone else, reload and retry")

type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, o *models.Order) error {
	if _, err := r.col.InsertOne(ctx, o); err != nil {
		if database.IsDuplicateKey(err) {
			return apierror.Conflict("order number %s already exists", o.OrderNumber)
		}
		return err
	}
	return nil
}

func (r *MongoRepository) findOne(ctx context.Context, q bson.M) (*models.Order, error) {
	var o models.Order
	if err := r.col.FindOne(ctx, q).Decode(&o); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apierror.NotFound("order")
		}
		return nil, err
	}
	return &o, nil
}

func (r *MongoRepository) Get(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoRepository) GetByAccession(ctx context.Context, accession string) (*models.Order, error) {
	return r.findOne(ctx, bson.M{"samples.accessionNumber": accession})
}

func (r *MongoRepository) List(ctx context.Context, f Filter) ([]models.Order, error) {
	q := bson.M{}
	if f.PatientID != nil {
		q["patientId"] = *f.PatientID
	}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.Priority != "" {
		q["priority"] = f.Priority
	}
	if f.From != nil || f.To != nil {
		created := bson.M{}
		if f.From != nil {
			created["$gte"] = *f.From
		}
		if f.To != nil {
			created["$lt"] = *f.To
		}
		q["createdAt"] = created
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(f.Limit).SetSkip(f.Skip)
	cur, err := r.col.Find(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	out := []models.Order{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) Replace(ctx context.Context, o *models.Order, prev time.Time) error {
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": o.ID, "updatedAt": prev}, o)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := r.Get(ctx, o.ID); err != nil {
			return err
		}
		return errConcurrentUpdate
	}
	return nil
}

func (r *MongoRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apierror.NotFound("order")
	}
	return nil
}

func (r *MongoRepository) CountByPatient(ctx context.Context, patientID primitive.ObjectID) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"patientId": patientID})
}
