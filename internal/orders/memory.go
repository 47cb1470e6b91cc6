package orders

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/openlis/lis-api/internal/database"
	"github.com/openlis/lis-api/internal/models"
	"github.com/openlis/lis-api/pkg/apierror"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MemoryRepository struct {
	col *database.MemCollection[models.Order]
}

func NewMemoryRepository(db *database.MemDB) *MemoryRepository {
	return &MemoryRepository{col: database.Collection[models.Order](db, database.ColOrders)}
}

func mapNotFound(err error) error {
	if errors.Is(err, database.ErrNoDocument) {
		return apierror.NotFound("order")
	}
	return err
}

func (r *MemoryRepository) Create(_ context.Context, o *models.Order) error {
	return r.col.Insert(o.ID, o)
}

func (r *MemoryRepository) Get(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	o, err := r.col.Get(id)
	return o, mapNotFound(err)
}

func (r *MemoryRepository) GetByAccession(_ context.Context, accession string) (*models.Order, error) {
	o, err := r.col.FindOne(func(o *models.Order) bool {
		for _, s := range o.Samples {
			if s.AccessionNumber == accession {
				return true
			}
		}
		return false
	})
	return o, mapNotFound(err)
}

func (r *MemoryRepository) List(_ context.Context, f Filter) ([]models.Order, error) {
	found, err := r.col.Find(func(o *models.Order) bool {
		switch {
		case f.PatientID != nil && o.PatientID != *f.PatientID,
			f.Status != "" && o.Status != f.Status,
			f.Priority != "" && o.Priority != f.Priority,
			f.From != nil && o.CreatedAt.Before(*f.From),
			f.To != nil && !o.CreatedAt.Before(*f.To):
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	// newest first
	for i, j := 0, len(found)-1; i < j; i, j = i+1, j-1 {
		found[i], found[j] = found[j], found[i]
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].CreatedAt.After(found[j].CreatedAt) })
	out := []models.Order{}
	for i, o := range found {
		if int64(i) < f.Skip {
			continue
		}
		if f.Limit > 0 && int64(len(out)) >= f.Limit {
			break
		}
		out = append(out, *o)
	}
	return out, nil
}

func (r *MemoryRepository) Replace(_ context.Context, o *models.Order, prev time.Time) error {
	_, err := r.col.Update(o.ID, func(cur *models.Order) error {
		if !cur.UpdatedAt.Equal(prev) {
			return errConcurrentUpdate
		}
		*cur = *o
		return nil
	})
	return mapNotFound(err)
}

func (r *MemoryRepository) Delete(_ context.Context, id primitive.ObjectID) error {
	return mapNotFound(r.col.Delete(id))
}

func (r *MemoryRepository) CountByPatient(_ context.Context, patientID primitive.ObjectID) (int64, error) {
	found, err := r.col.Find(func(o *models.Order) bool { return o.PatientID == patientID })
	return int64(len(found)), err
}
