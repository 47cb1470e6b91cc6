package inventory

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

type Filter struct {
	LowStock bool
	Category string
}

// Repository stores stocked consumables. Adjust changes the quantity atomically
// and never lets it drop below zero.
type Repository interface {
	Create(ctx context.Context, it *models.InventoryItem) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.InventoryItem, error)
	List(ctx context.Context, f Filter) ([]models.InventoryItem, error)
	Expiring(ctx context.Context, before time.Time) ([]models.InventoryItem, error)
	Replace(ctx context.Context, it *models.InventoryItem) error
	Adjust(ctx context.Context, id primitive.ObjectID, delta int, at time.Time) (*models.InventoryItem, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

var (
	errDuplicateSKU      = apierror.Conflict("an item with this sku already exists")
	errInsufficientStock = apierror.Conflict("adjustment would make the quantity negative")
)

type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, it *models.InventoryItem) error {
	if _, err := r.col.InsertOne(ctx, it); err != nil {
		if database.IsDuplicateKey(err) {
			return errDuplicateSKU
		}
		return err
	}
	return nil
}

func (r *MongoRepository) Get(ctx context.Context, id primitive.ObjectID) (*models.InventoryItem, error) {
	var it models.InventoryItem
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&it); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apierror.NotFound("inventory item")
		}
		return nil, err
	}
	return &it, nil
}

func (r *MongoRepository) find(ctx context.Context, q bson.M, sort bson.D) ([]models.InventoryItem, error) {
	cur, err := r.col.Find(ctx, q, options.Find().SetSort(sort))
	if err != nil {
		return nil, err
	}
	out := []models.InventoryItem{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) List(ctx context.Context, f Filter) ([]models.InventoryItem, error) {
	q := bson.M{}
	if f.LowStock {
		q["$expr"] = bson.M{"$lte": bson.A{"$quantity", "$reorderLevel"}}
	}
	if f.Category != "" {
		q["category"] = f.Category
	}
	return r.find(ctx, q, bson.D{{Key: "name", Value: 1}})
}

func (r *MongoRepository) Expiring(ctx context.Context, before time.Time) ([]models.InventoryItem, error) {
	q := bson.M{"expiresAt": bson.M{"$ne": nil, "$lte": before}}
	return r.find(ctx, q, bson.D{{Key: "expiresAt", Value: 1}})
}

func (r *MongoRepository) Replace(ctx context.Context, it *models.InventoryItem) error {
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": it.ID}, it)
	if err != nil {
		if database.IsDuplicateKey(err) {
			return errDuplicateSKU
		}
		return err
	}
	if res.MatchedCount == 0 {
		return apierror.NotFound("inventory item")
	}
	return nil
}

// Adjust increments quantity by delta in a single FindOneAndUpdate; a negative
// delta only matches documents holding at least -delta units.
func (r *MongoRepository) Adjust(ctx context.Context, id primitive.ObjectID, delta int, at time.Time) (*models.InventoryItem, error) {
	q := bson.M{"_id": id}
	if delta < 0 {
		q["quantity"] = bson.M{"$gte": -delta}
	}
	update := bson.M{"$inc": bson.M{"quantity": delta}, "$set": bson.M{"updatedAt": at}}
	var it models.InventoryItem
	err := r.col.FindOneAndUpdate(ctx, q, update, options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&it)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, errInsufficientStock
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *MongoRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apierror.NotFound("inventory item")
	}
	return nil
}
