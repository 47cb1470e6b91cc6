package auditlog

import (
	"context"
	"sort"

	"github.com/openlis/lis-api/internal/database"
	"github.com/openlis/lis-api/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryRepository keeps entries in a database.MemDB.
type MemoryRepository struct {
	col *database.MemCollection[models.AuditLog]
}

func NewMemoryRepository(db *database.MemDB) *MemoryRepository {
	return &MemoryRepository{col: database.Collection[models.AuditLog](db, database.ColAuditLogs)}
}

func (r *MemoryRepository) Insert(_ context.Context, e *models.AuditLog) error {
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	return r.col.Insert(e.ID, e)
}

func (r *MemoryRepository) List(_ context.Context, f Filter) ([]models.AuditLog, error) {
	found, err := r.col.Find(func(e *models.AuditLog) bool {
		switch {
		case f.EntityType != "" && e.EntityType != f.EntityType,
			f.EntityID != "" && e.EntityID != f.EntityID,
			f.UserID != "" && e.UserID != f.UserID,
			f.Action != "" && e.Action != f.Action,
			f.From != nil && e.Timestamp.Before(*f.From),
			f.To != nil && !e.Timestamp.Before(*f.To):
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	// newest first; later inserts win ties
	for i, j := 0, len(found)-1; i < j; i, j = i+1, j-1 {
		found[i], found[j] = found[j], found[i]
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].Timestamp.After(found[j].Timestamp) })
	out := make([]models.AuditLog, 0, len(found))
	for _, e := range found {
		if f.Limit > 0 && int64(len(out)) >= f.Limit {
			break
		}
		out = append(out, *e)
	}
	return out, nil
}
