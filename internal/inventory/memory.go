package inventory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/openlis/lis-api/internal/database"
	"github.com/openlis/lis-api/internal/models"
	"github.com/openlis/lis-api/pkg/apierror"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MemoryRepository struct {
	mu  sync.Mutex
	col *database.MemCollection[models.InventoryItem]
}

func NewMemoryRepository(db *database.MemDB) *MemoryRepository {
	return &MemoryRepository{col: database.Collection[models.InventoryItem](db, database.ColInventory)}
}

func mapNotFound(err error) error {
	if errors.Is(err, database.ErrNoDocument) {
		return apierror.NotFound("inventory item")
	}
	return err
}

func (r *MemoryRepository) skuTaken(sku string, except primitive.ObjectID) (bool, error) {
	found, err := r.col.Find(func(it *models.InventoryItem) bool { return it.SKU == sku && it.ID != except })
	return len(found) > 0, err
}

func (r *MemoryRepository) Create(_ context.Context, it *models.InventoryItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	taken, err := r.skuTaken(it.SKU, primitive.NilObjectID)
	if err != nil {
		return err
	}
	if taken {
		return errDuplicateSKU
	}
	return r.col.Insert(it.ID, it)
}

func (r *MemoryRepository) Get(_ context.Context, id primitive.ObjectID) (*models.InventoryItem, error) {
	it, err := r.col.Get(id)
	return it, mapNotFound(err)
}

func values(found []*models.InventoryItem) []models.InventoryItem {
	out := make([]models.InventoryItem, 0, len(found))
	for _, it := range found {
		out = append(out, *it)
	}
	return out
}

func (r *MemoryRepository) List(_ context.Context, f Filter) ([]models.InventoryItem, error) {
	found, err := r.col.Find(func(it *models.InventoryItem) bool {
		if f.LowStock && !it.LowStock() {
			return false
		}
		return f.Category == "" || it.Category == f.Category
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].Name < found[j].Name })
	return values(found), nil
}

func (r *MemoryRepository) Expiring(_ context.Context, before time.Time) ([]models.InventoryItem, error) {
	found, err := r.col.Find(func(it *models.InventoryItem) bool {
		return it.ExpiresAt != nil && !it.ExpiresAt.After(before)
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].ExpiresAt.Before(*found[j].ExpiresAt) })
	return values(found), nil
}

func (r *MemoryRepository) Replace(_ context.Context, it *models.InventoryItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	taken, err := r.skuTaken(it.SKU, it.ID)
	if err != nil {
		return err
	}
	if taken {
		return errDuplicateSKU
	}
	return mapNotFound(r.col.Replace(it.ID, it))
}

func (r *MemoryRepository) Adjust(_ context.Context, id primitive.ObjectID, delta int, at time.Time) (*models.InventoryItem, error) {
	it, err := r.col.Update(id, func(cur *models.InventoryItem) error {
		if cur.Quantity+delta < 0 {
			return errInsufficientStock
		}
		cur.Quantity += delta
		cur.UpdatedAt = at
		return nil
	})
	return it, mapNotFound(err)
}

func (r *MemoryRepository) Delete(_ context.Context, id primitive.ObjectID) error {
	return mapNotFound(r.col.Delete(id))
}
