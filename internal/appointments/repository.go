package appointments

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

// Filter narrows List and Views. From/To bound scheduledAt as [From, To).
type Filter struct {
	PatientID *primitive.ObjectID
	Status    string
	From      *time.Time
	To        *time.Time
	Limit     int64
}

// Repository defines persistence operations for appointments
type Repository interface {
	Create(ctx context.Context, a *models.Appointment) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.Appointment, error)
	Replace(ctx context.Context, a *models.Appointment) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	List(ctx context.Context, f Filter) ([]models.Appointment, error)
	// FindOverlapping returns blocking appointments other than exclude whose
	// window intersects [start, end).
	FindOverlapping(ctx context.Context, exclude primitive.ObjectID, start, end time.Time) ([]models.Appointment, error)
	View(ctx context.Context, id primitive.ObjectID) (*models.AppointmentView, error)
	Views(ctx context.Context, f Filter) ([]models.AppointmentView, error)
	// MarkNoShows flips scheduled appointments whose end + grace is before now.
	MarkNoShows(ctx context.Context, now time.Time, grace time.Duration) (int64, error)
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, a *models.Appointment) error {
	_, err := r.col.InsertOne(ctx, a)
	return err
}

func (r *MongoRepository) Get(ctx context.Context, id primitive.ObjectID) (*models.Appointment, error) {
	var a models.Appointment
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apierror.NotFound("appointment")
		}
		return nil, err
	}
	return &a, nil
}

func (r *MongoRepository) Replace(ctx context.Context, a *models.Appointment) error {
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": a.ID}, a)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apierror.NotFound("appointment")
	}
	return nil
}

func (r *MongoRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apierror.NotFound("appointment")
	}
	return nil
}

func filterQuery(f Filter) bson.M {
	q := bson.M{}
	if f.PatientID != nil {
		q["patientId"] = *f.PatientID
	}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.From != nil || f.To != nil {
		at := bson.M{}
		if f.From != nil {
			at["$gte"] = *f.From
		}
		if f.To != nil {
			at["$lt"] = *f.To
		}
		q["scheduledAt"] = at
	}
	return q
}

func (r *MongoRepository) List(ctx context.Context, f Filter) ([]models.Appointment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "scheduledAt", Value: 1}}).SetLimit(f.Limit)
	cur, err := r.col.Find(ctx, filterQuery(f), opts)
	if err != nil {
		return nil, err
	}
	out := []models.Appointment{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// overlapQuery matches appointments starting inside [start, end) or starting
// earlier and still running at start. The end time is computed server-side.
func overlapQuery(exclude primitive.ObjectID, start, end time.Time) bson.M {
	endExpr := bson.M{"$add": bson.A{"$scheduledAt", bson.M{"$multiply": bson.A{"$durationMinutes", 60000}}}}
	return bson.M{
		"_id":    bson.M{"$ne": exclude},
		"status": bson.M{"$nin": bson.A{models.AppointmentCancelled, models.AppointmentNoShow}},
		"$or": bson.A{
			bson.M{"scheduledAt": bson.M{"$gte": start, "$lt": end}},
			bson.M{"$expr": bson.M{"$and": bson.A{
				bson.M{"$lte": bson.A{"$scheduledAt", start}},
				bson.M{"$gt": bson.A{endExpr, start}},
			}}},
		},
	}
}

func (r *MongoRepository) FindOverlapping(ctx context.Context, exclude primitive.ObjectID, start, end time.Time) ([]models.Appointment, error) {
	cur, err := r.col.Find(ctx, overlapQuery(exclude, start, end), options.Find().SetSort(bson.D{{Key: "scheduledAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	out := []models.Appointment{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// viewPipeline joins appointment -> patient -> order -> test catalog.
func viewPipeline(match bson.M, limit int64) mongo.Pipeline {
	p := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "scheduledAt", Value: 1}}}},
	}
	if limit > 0 {
		p = append(p, bson.D{{Key: "$limit", Value: limit}})
	}
	return append(p,
		bson.D{{Key: "$lookup", Value: bson.M{
			"from": database.ColPatients, "localField": "patientId", "foreignField": "_id", "as": "patient",
		}}},
		bson.D{{Key: "$unwind", Value: bson.M{"path": "$patient", "preserveNullAndEmptyArrays": true}}},
		bson.D{{Key: "$lookup", Value: bson.M{
			"from": database.ColOrders, "localField": "orderId", "foreignField": "_id", "as": "order",
		}}},
		bson.D{{Key: "$unwind", Value: bson.M{"path": "$order", "preserveNullAndEmptyArrays": true}}},
		// samples.tests.code is an array of arrays; flatten it for the catalog join
		bson.D{{Key: "$addFields", Value: bson.M{"testCodes": bson.M{"$reduce": bson.M{
			"input":        bson.M{"$ifNull": bson.A{"$order.samples.tests.code", bson.A{}}},
			"initialValue": bson.A{},
			"in":           bson.M{"$concatArrays": bson.A{"$$value", "$$this"}},
		}}}}},
		bson.D{{Key: "$lookup", Value: bson.M{
			"from": database.ColTestCatalog,
			"let":  bson.M{"codes": "$testCodes"},
			"pipeline": bson.A{
				bson.M{"$match": bson.M{"$expr": bson.M{"$in": bson.A{"$code", "$$codes"}}}},
				bson.M{"$project": bson.M{"_id": 0, "code": 1, "name": 1, "tubeType": 1, "specimenType": 1, "department": 1, "price": 1}},
			},
			"as": "tests",
		}}},
		bson.D{{Key: "$project", Value: bson.M{"testCodes": 0}}},
	)
}

func (r *MongoRepository) aggregateViews(ctx context.Context, match bson.M, limit int64) ([]models.AppointmentView, error) {
	cur, err := r.col.Aggregate(ctx, viewPipeline(match, limit))
	if err != nil {
		return nil, err
	}
	out := []models.AppointmentView{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	for i := range out {
		sortViewTests(&out[i])
	}
	return out, nil
}

func (r *MongoRepository) View(ctx context.Context, id primitive.ObjectID) (*models.AppointmentView, error) {
	views, err := r.aggregateViews(ctx, bson.M{"_id": id}, 1)
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, apierror.NotFound("appointment")
	}
	return &views[0], nil
}

func (r *MongoRepository) Views(ctx context.Context, f Filter) ([]models.AppointmentView, error) {
	return r.aggregateViews(ctx, filterQuery(f), f.Limit)
}

func (r *MongoRepository) MarkNoShows(ctx context.Context, now time.Time, grace time.Duration) (int64, error) {
	graceMs := grace.Milliseconds()
	q := bson.M{
		"status": models.AppointmentScheduled,
		"$expr": bson.M{"$lt": bson.A{
			bson.M{"$add": bson.A{"$scheduledAt", bson.M{"$multiply": bson.A{"$durationMinutes", 60000}}, graceMs}},
			now,
		}},
	}
	res, err := r.col.UpdateMany(ctx, q, bson.M{"$set": bson.M{"status": models.AppointmentNoShow, "updatedAt": now}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
