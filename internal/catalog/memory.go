package catalog

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/openlis/lis-api/internal/database"
	"github.com/openlis/lis-api/internal/models"
	"github.com/openlis/lis-api/pkg/apierror"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func mapNotFound(err error, entity string) error {
	if errors.Is(err, database.ErrNoDocument) {
		return apierror.NotFound(entity)
	}
	return err
}

type MemoryTestRepository struct {
	mu  sync.Mutex
	col *database.MemCollection[models.TestCatalogItem]
}

func NewMemoryTestRepository(db *database.MemDB) *MemoryTestRepository {
	return &MemoryTestRepository{col: database.Collection[models.TestCatalogItem](db, database.ColTestCatalog)}
}

func (r *MemoryTestRepository) codeTaken(code string, except primitive.ObjectID) (bool, error) {
	found, err := r.col.Find(func(t *models.TestCatalogItem) bool { return t.Code == code && t.ID != except })
	return len(found) > 0, err
}

func (r *MemoryTestRepository) Create(_ context.Context, t *models.TestCatalogItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if taken, err := r.codeTaken(t.Code, primitive.NilObjectID); err != nil || taken {
		if taken {
			return errDuplicateCode
		}
		return err
	}
	return r.col.Insert(t.ID, t)
}

func (r *MemoryTestRepository) Get(_ context.Context, id primitive.ObjectID) (*models.TestCatalogItem, error) {
	t, err := r.col.Get(id)
	return t, mapNotFound(err, "test")
}

func (r *MemoryTestRepository) find(pred func(*models.TestCatalogItem) bool) ([]models.TestCatalogItem, error) {
	found, err := r.col.Find(pred)
	if err != nil {
		return nil, err
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Code < found[j].Code })
	out := make([]models.TestCatalogItem, 0, len(found))
	for _, t := range found {
		out = append(out, *t)
	}
	return out, nil
}

func (r *MemoryTestRepository) ByCodes(_ context.Context, codes []string) ([]models.TestCatalogItem, error) {
	want := make(map[string]bool, len(codes))
	for _, c := range codes {
		want[c] = true
	}
	return r.find(func(t *models.TestCatalogItem) bool { return want[t.Code] })
}

func (r *MemoryTestRepository) List(_ context.Context, f TestFilter) ([]models.TestCatalogItem, error) {
	return r.find(func(t *models.TestCatalogItem) bool {
		if f.Active != nil && t.Active != *f.Active {
			return false
		}
		return f.Department == "" || t.Department == f.Department
	})
}

func (r *MemoryTestRepository) Replace(_ context.Context, t *models.TestCatalogItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if taken, err := r.codeTaken(t.Code, t.ID); err != nil || taken {
		if taken {
			return errDuplicateCode
		}
		return err
	}
	return mapNotFound(r.col.Replace(t.ID, t), "test")
}

func (r *MemoryTestRepository) Delete(_ context.Context, id primitive.ObjectID) error {
	return mapNotFound(r.col.Delete(id), "test")
}

type MemoryInstrumentRepository struct {
	col *database.MemCollection[models.Instrument]
}

func NewMemoryInstrumentRepository(db *database.MemDB) *MemoryInstrumentRepository {
	return &MemoryInstrumentRepository{col: database.Collection[models.Instrument](db, database.ColInstruments)}
}

func (r *MemoryInstrumentRepository) Create(_ context.Context, in *models.Instrument) error {
	return r.col.Insert(in.ID, in)
}

func (r *MemoryInstrumentRepository) Get(_ context.Context, id primitive.ObjectID) (*models.Instrument, error) {
	in, err := r.col.Get(id)
	return in, mapNotFound(err, "instrument")
}

func (r *MemoryInstrumentRepository) List(_ context.Context, status string) ([]models.Instrument, error) {
	found, err := r.col.Find(func(in *models.Instrument) bool { return status == "" || in.Status == status })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].Name < found[j].Name })
	out := make([]models.Instrument, 0, len(found))
	for _, in := range found {
		out = append(out, *in)
	}
	return out, nil
}

func (r *MemoryInstrumentRepository) Replace(_ context.Context, in *models.Instrument) error {
	return mapNotFound(r.col.Replace(in.ID, in), "instrument")
}

func (r *MemoryInstrumentRepository) Delete(_ context.Context, id primitive.ObjectID) error {
	return mapNotFound(r.col.Delete(id), "instrument")
}
