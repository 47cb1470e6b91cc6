// Package inventory tracks consumable stock: tubes, reagents and controls.
package inventory

import (
	"context"
	"strings"
	"time"

	"github.com/openlis/lis-api/internal/auditlog"
	"github.com/openlis/lis-api/internal/models"
	"github.com/openlis/lis-api/pkg/apierror"
	"github.com/openlis/lis-api/pkg/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const entityType = "inventory"

// Update is a partial update. Quantity is changed only through Adjust.
type Update struct {
	Name         *string    `json:"name"`
	Category     *string    `json:"category"`
	Unit         *string    `json:"unit"`
	ReorderLevel *int       `json:"reorderLevel"`
	Lot          *string    `json:"lot"`
	ExpiresAt    *time.Time `json:"expiresAt"`
	Location     *string    `json:"location"`
}

type Service struct {
	repo  Repository
	audit auditlog.Recorder
}

func NewService(repo Repository, audit auditlog.Recorder) *Service {
	if audit == nil {
		audit = auditlog.Nop{}
	}
	return &Service{repo: repo, audit: audit}
}

func validate(it *models.InventoryItem) error {
	if err := models.Validate(it); err != nil {
		return apierror.Invalid("%v", err)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, it *models.InventoryItem) (*models.InventoryItem, error) {
	it.SKU = strings.ToUpper(strings.TrimSpace(it.SKU))
	it.Name = strings.TrimSpace(it.Name)
	if err := validate(it); err != nil {
		return nil, err
	}
	now := models.Now()
	it.ID = primitive.NewObjectID()
	it.CreatedAt = now
	it.UpdatedAt = now
	if err := s.repo.Create(ctx, it); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, auditlog.ActionCreate, entityType, it.ID.Hex(), map[string]interface{}{"sku": it.SKU, "quantity": it.Quantity})
	return it, nil
}

func (s *Service) Get(ctx context.Context, id primitive.ObjectID) (*models.InventoryItem, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]models.InventoryItem, error) {
	return s.repo.List(ctx, f)
}

// Expiring returns items whose expiry falls within days of now, already expired included.
func (s *Service) Expiring(ctx context.Context, now time.Time, days int) ([]models.InventoryItem, error) {
	if days < 0 || days > 3650 {
		return nil, apierror.Invalid("days must be between 0 and 3650")
	}
	return s.repo.Expiring(ctx, now.AddDate(0, 0, days))
}

func (s *Service) Update(ctx context.Context, id primitive.ObjectID, u Update) (*models.InventoryItem, error) {
	it, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	changes := map[string]interface{}{}
	for field, pair := range map[string][2]*string{
		"name":     {&it.Name, u.Name},
		"category": {&it.Category, u.Category},
		"unit":     {&it.Unit, u.Unit},
		"lot":      {&it.Lot, u.Lot},
		"location": {&it.Location, u.Location},
	} {
		if pair[1] != nil {
			*pair[0] = strings.TrimSpace(*pair[1])
			changes[field] = *pair[0]
		}
	}
	if u.ReorderLevel != nil {
		it.ReorderLevel = *u.ReorderLevel
		changes["reorderLevel"] = it.ReorderLevel
	}
	if u.ExpiresAt != nil {
		at := u.ExpiresAt.UTC()
		it.ExpiresAt = &at
		changes["expiresAt"] = at
	}
	if err := validate(it); err != nil {
		return nil, err
	}
	it.UpdatedAt = models.Now()
	if err := s.repo.Replace(ctx, it); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, auditlog.ActionUpdate, entityType, it.ID.Hex(), changes)
	return it, nil
}

// Adjust adds delta (negative to consume) to the stock level. A result below zero
// fails with ErrConflict and leaves the quantity unchanged.
func (s *Service) Adjust(ctx context.Context, id primitive.ObjectID, delta int, reason string) (*models.InventoryItem, error) {
	reason = strings.TrimSpace(reason)
	if delta == 0 {
		return nil, apierror.Invalid("delta must not be zero")
	}
	if reason == "" {
		return nil, apierror.Invalid("reason is required")
	}
	it, err := s.repo.Adjust(ctx, id, delta, models.Now())
	if err != nil {
		return nil, err
	}
	if delta < 0 && it.LowStock() && it.Quantity-delta > it.ReorderLevel {
		logger.L().Warn().Str("sku", it.SKU).Int("quantity", it.Quantity).Int("reorderLevel", it.ReorderLevel).Msg("inventory item fell to reorder level")
	}
	s.audit.Record(ctx, "adjust", entityType, it.ID.Hex(), map[string]interface{}{"delta": delta, "reason": reason, "quantity": it.Quantity})
	return it, nil
}

func (s *Service) Delete(ctx context.Context, id primitive.ObjectID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, auditlog.ActionDelete, entityType, id.Hex(), nil)
	return nil
}

// Alerts returns low-stock items and items expiring within days, for the nightly sweep.
func (s *Service) Alerts(ctx context.Context, now time.Time, days int) (low, expiring []models.InventoryItem, err error) {
	if low, err = s.repo.List(ctx, Filter{LowStock: true}); err != nil {
		return nil, nil, err
	}
	if expiring, err = s.Expiring(ctx, now, days); err != nil {
		return nil, nil, err
	}
	return low, expiring, nil
}

// LowStockCount is the number of items at or below their reorder level.
func (s *Service) LowStockCount(ctx context.Context) (int, error) {
	low, err := s.repo.List(ctx, Filter{LowStock: true})
	return len(low), err
}
