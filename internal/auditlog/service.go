// Package auditlog records who changed what. Recording is best-effort: a failed
// write is logged and counted but never fails the operation being audited.
package auditlog

import (
	"context"

	"github.com/openlis/lis-api/internal/models"
	"github.com/openlis/lis-api/pkg/logger"
	"github.com/openlis/lis-api/pkg/metrics"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Action names.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Recorder is what the domain services depend on.
type Recorder interface {
	Record(ctx context.Context, action, entityType, entityID string, changes map[string]interface{})
}

// Nop discards every entry.
type Nop struct{}

func (Nop) Record(context.Context, string, string, string, map[string]interface{}) {}

const (
	defaultLimit = 100
	maxLimit     = 1000
)

type Service struct {
	repo Repository
}

func NewService(r Repository) *Service { return &Service{repo: r} }

// Record stores an entry attributed to the principal in ctx ("system" when none).
func (s *Service) Record(ctx context.Context, action, entityType, entityID string, changes map[string]interface{}) {
	e := &models.AuditLog{
		ID:         primitive.NewObjectID(),
		UserID:     models.ActorID(ctx),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Changes:    changes,
		Timestamp:  models.Now(),
	}
	if p, ok := models.PrincipalFrom(ctx); ok {
		e.Role = p.Role
	}
	// the entry outlives a cancelled request
	if err := s.repo.Insert(context.WithoutCancel(ctx), e); err != nil {
		metrics.AuditWriteFailures.Inc()
		logger.Errorf("audit: %s %s/%s by %s not recorded: %v", action, entityType, entityID, e.UserID, err)
	}
}

// List returns entries newest first. Limit defaults to 100 and is capped at 1000.
func (s *Service) List(ctx context.Context, f Filter) ([]models.AuditLog, error) {
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	return s.repo.List(ctx, f)
}
