package catalog

import (
	"context"
	"errors"

	"github.com/openlis/lis-api/internal/database"
	"github.com/openlis/lis-api/internal/models"
	"github.com/openlis/lis-api/pkg/apierror"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TestFilter narrows ListTests.
type TestFilter struct {
	Active     *bool
	Department string
}

// TestRepository stores the orderable test catalog.
type TestRepository interface {
	Create(ctx context.Context, t *models.TestCatalogItem) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.TestCatalogItem, error)
	ByCodes(ctx context.Context, codes []string) ([]models.TestCatalogItem, error)
	List(ctx context.Context, f TestFilter) ([]models.TestCatalogItem, error)
	Replace(ctx context.Context, t *models.TestCatalogItem) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// InstrumentRepository stores analyzers.
type InstrumentRepository interface {
	Create(ctx context.Context, in *models.Instrument) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.Instrument, error)
	List(ctx context.Context, status string) ([]models.Instrument, error)
	Replace(ctx context.Context, in *models.Instrument) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

var errDuplicateCode = apierror.Conflict("a test with this code already exists")

type MongoTestRepository struct {
	col *mongo.Collection
}

func NewMongoTestRepository(col *mongo.Collection) *MongoTestRepository {
	return &MongoTestRepository{col: col}
}

func (r *MongoTestRepository) Create(ctx context.Context, t *models.TestCatalogItem) error {
	if _, err := r.col.InsertOne(ctx, t); err != nil {
		if database.IsDuplicateKey(err) {
			return errDuplicateCode
		}
		return err
	}
	return nil
}

func (r *MongoTestRepository) Get(ctx context.Context, id primitive.ObjectID) (*models.TestCatalogItem, error) {
	var t models.TestCatalogItem
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apierror.NotFound("test")
		}
		return nil, err
	}
	return &t, nil
}

func (r *MongoTestRepository) find(ctx context.Context, q bson.M) ([]models.TestCatalogItem, error) {
	cur, err := r.col.Find(ctx, q, options.Find().SetSort(bson.D{{Key: "code", Value: 1}}))
	if err != nil {
		return nil, err
	}
	out := []models.TestCatalogItem{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoTestRepository) ByCodes(ctx context.Context, codes []string) ([]models.TestCatalogItem, error) {
	return r.find(ctx, bson.M{"code": bson.M{"$in": codes}})
}

func (r *MongoTestRepository) List(ctx context.Context, f TestFilter) ([]models.TestCatalogItem, error) {
	q := bson.M{}
	if f.Active != nil {
		q["active"] = *f.Active
	}
	if f.Department != "" {
		q["department"] = f.Department
	}
	return r.find(ctx, q)
}

func (r *MongoTestRepository) Replace(ctx context.Context, t *models.TestCatalogItem) error {
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": t.ID}, t)
	if err != nil {
		if database.IsDuplicateKey(err) {
			return errDuplicateCode
		}
		return err
	}
	if res.MatchedCount == 0 {
		return apierror.NotFound("test")
	}
	return nil
}

func (r *MongoTestRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apierror.NotFound("test")
	}
	return nil
}

type MongoInstrumentRepository struct {
	col *mongo.Collection
}

func NewMongoInstrumentRepository(col *mongo.Collection) *MongoInstrumentRepository {
	return &MongoInstrumentRepository{col: col}
}

func (r *MongoInstrumentRepository) Create(ctx context.Context, in *models.Instrument) error {
	_, err := r.col.InsertOne(ctx, in)
	return err
}

func (r *MongoInstrumentRepository) Get(ctx context.Context, id primitive.ObjectID) (*models.Instrument, error) {
	var in models.Instrument
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&in); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apierror.NotFound("instrument")
		}
		return nil, err
	}
	return &in, nil
}

func (r *MongoInstrumentRepository) List(ctx context.Context, status string) ([]models.Instrument, error) {
	q := bson.M{}
	if status != "" {
		q["status"] = status
	}
	cur, err := r.col.Find(ctx, q, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	out := []models.Instrument{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoInstrumentRepository) Replace(ctx context.Context, in *models.Instrument) error {
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": in.ID}, in)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apierror.NotFound("instrument")
	}
	return nil
}

func (r *MongoInstrumentRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apierror.NotFound("instrument")
	}
	return nil
}
