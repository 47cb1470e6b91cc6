package users

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

type MemoryRepository struct {
	mu  sync.Mutex
	col *database.MemCollection[models.User]
}

func NewMemoryRepository(db *database.MemDB) *MemoryRepository {
	return &MemoryRepository{col: database.Collection[models.User](db, database.ColUsers)}
}

func mapNotFound(err error) error {
	if errors.Is(err, database.ErrNoDocument) {
		return apierror.NotFound("user")
	}
	return err
}

func (r *MemoryRepository) taken(username string, except primitive.ObjectID) (bool, error) {
	found, err := r.col.Find(func(u *models.User) bool { return u.Username == username && u.ID != except })
	return len(found) > 0, err
}

func (r *MemoryRepository) Create(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	dup, err := r.taken(u.Username, primitive.NilObjectID)
	if err != nil {
		return err
	}
	if dup {
		return errDuplicateUsername
	}
	return r.col.Insert(u.ID, u)
}

func (r *MemoryRepository) Get(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	u, err := r.col.Get(id)
	return u, mapNotFound(err)
}

func (r *MemoryRepository) GetByUsername(_ context.Context, username string) (*models.User, error) {
	u, err := r.col.FindOne(func(u *models.User) bool { return u.Username == username })
	return u, mapNotFound(err)
}

func (r *MemoryRepository) List(_ context.Context, f Filter) ([]models.User, error) {
	found, err := r.col.Find(func(u *models.User) bool {
		if f.Active != nil && u.Active != *f.Active {
			return false
		}
		return f.Role == "" || u.Role == f.Role
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Username < found[j].Username })
	out := make([]models.User, 0, len(found))
	for _, u := range found {
		out = append(out, *u)
	}
	return out, nil
}

func (r *MemoryRepository) Replace(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	dup, err := r.taken(u.Username, u.ID)
	if err != nil {
		return err
	}
	if dup {
		return errDuplicateUsername
	}
	return mapNotFound(r.col.Replace(u.ID, u))
}

func (r *MemoryRepository) Delete(_ context.Context, id primitive.ObjectID) error {
	return mapNotFound(r.col.Delete(id))
}
