package patients

import (
	"context"
	"errors"
	"regexp"

	"github.com/openlis/lis-api/internal/database"
	"github.com/openlis/lis-api/internal/models"
	"github.com/openlis/lis-api/pkg/apierror"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Filter for List. Query matches the MRN exactly or either name case-insensitively.
type Filter struct {
	Query string
	Limit int64
	Skip  int64
}

// Repository defines persistence operations for patients
type Repository interface {
	Create(ctx context.Context, p *models.Patient) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.Patient, error)
	GetByMRN(ctx context.Context, mrn string) (*models.Patient, error)
	List(ctx context.Context, f Filter) ([]models.Patient, error)
	Replace(ctx context.Context, p *models.Patient) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

var errDuplicateMRN = apierror.Conflict("a patient with this MRN already exists")

// MongoRepository implements Repository using MongoDB
type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, p *models.Patient) error {
	if _, err := r.col.InsertOne(ctx, p); err != nil {
		if database.IsDuplicateKey(err) {
			return errDuplicateMRN
		}
		return err
	}
	return nil
}

func (r *MongoRepository) findOne(ctx context.Context, q bson.M) (*models.Patient, error) {
	var p models.Patient
	if err := r.col.FindOne(ctx, q).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apierror.NotFound("patient")
		}
		return nil, err
	}
	return &p, nil
}

func (r *MongoRepository) Get(ctx context.Context, id primitive.ObjectID) (*models.Patient, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoRepository) GetByMRN(ctx context.Context, mrn string) (*models.Patient, error) {
	return r.findOne(ctx, bson.M{"mrn": mrn})
}

func (r *MongoRepository) List(ctx context.Context, f Filter) ([]models.Patient, error) {
	q := bson.M{}
	if f.Query != "" {
		rx := primitive.Regex{Pattern: regexp.QuoteMeta(f.Query), Options: "i"}
		q["$or"] = bson.A{
			bson.M{"mrn": f.Query},
			bson.M{"firstName": rx},
			bson.M{"lastName": rx},
		}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "lastName", Value: 1}, {Key: "firstName", Value: 1}}).
		SetLimit(f.Limit).
		SetSkip(f.Skip)
	cur, err := r.col.Find(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	out := []models.Patient{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) Replace(ctx context.Context, p *models.Patient) error {
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	if err != nil {
		if database.IsDuplicateKey(err) {
			return errDuplicateMRN
		}
		return err
	}
	if res.MatchedCount == 0 {
		return apierror.NotFound("patient")
	}
	return nil
}

func (r *MongoRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apierror.NotFound("patient")
	}
	return nil
}
