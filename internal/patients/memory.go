package patients

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/openlis/lis-api/internal/database"
	"github.com/openlis/lis-api/internal/models"
	"github.com/openlis/lis-api/pkg/apierror"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryRepository is the MemDB-backed Repository. The mutex stands in for the
// unique MRN index.
type MemoryRepository struct {
	mu  sync.Mutex
	col *database.MemCollection[models.Patient]
}

func NewMemoryRepository(db *database.MemDB) *MemoryRepository {
	return &MemoryRepository{col: database.Collection[models.Patient](db, database.ColPatients)}
}

func (r *MemoryRepository) mrnTaken(mrn string, except primitive.ObjectID) (bool, error) {
	found, err := r.col.Find(func(p *models.Patient) bool { return p.MRN == mrn && p.ID != except })
	return len(found) > 0, err
}

func (r *MemoryRepository) Create(_ context.Context, p *models.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	taken, err := r.mrnTaken(p.MRN, primitive.NilObjectID)
	if err != nil {
		return err
	}
	if taken {
		return errDuplicateMRN
	}
	return r.col.Insert(p.ID, p)
}

func notFound(err error) error {
	if errors.Is(err, database.ErrNoDocument) {
		return apierror.NotFound("patient")
	}
	return err
}

func (r *MemoryRepository) Get(_ context.Context, id primitive.ObjectID) (*models.Patient, error) {
	p, err := r.col.Get(id)
	return p, notFound(err)
}

func (r *MemoryRepository) GetByMRN(_ context.Context, mrn string) (*models.Patient, error) {
	p, err := r.col.FindOne(func(p *models.Patient) bool { return p.MRN == mrn })
	return p, notFound(err)
}

func (r *MemoryRepository) List(_ context.Context, f Filter) ([]models.Patient, error) {
	q := strings.ToLower(f.Query)
	found, err := r.col.Find(func(p *models.Patient) bool {
		if q == "" {
			return true
		}
		return p.MRN == f.Query ||
			strings.Contains(strings.ToLower(p.FirstName), q) ||
			strings.Contains(strings.ToLower(p.LastName), q)
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].LastName != found[j].LastName {
			return found[i].LastName < found[j].LastName
		}
		return found[i].FirstName < found[j].FirstName
	})
	out := []models.Patient{}
	for i, p := range found {
		if int64(i) < f.Skip {
			continue
		}
		if f.Limit > 0 && int64(len(out)) >= f.Limit {
			break
		}
		out = append(out, *p)
	}
	return out, nil
}

func (r *MemoryRepository) Replace(_ context.Context, p *models.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	taken, err := r.mrnTaken(p.MRN, p.ID)
	if err != nil {
		return err
	}
	if taken {
		return errDuplicateMRN
	}
	return notFound(r.col.Replace(p.ID, p))
}

func (r *MemoryRepository) Delete(_ context.Context, id primitive.ObjectID) error {
	return notFound(r.col.Delete(id))
}
