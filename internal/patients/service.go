// Package patients registers patients and assigns their medical record numbers.
package patients

import (
	"context"
	"strings"
	"time"

	"github.com/openlis/lis-api/internal/auditlog"
	"github.com/openlis/lis-api/internal/counters"
	"github.com/openlis/lis-api/internal/models"
	"github.com/openlis/lis-api/pkg/apierror"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const entityType = "patient"

// OrderChecker reports whether a patient still has orders; such patients cannot be deleted.
type OrderChecker interface {
	PatientHasOrders(ctx context.Context, patientID primitive.ObjectID) (bool, error)
}

// Update is a partial update; nil fields are left unchanged.
type Update struct {
	FirstName   *string    `json:"firstName"`
	LastName    *string    `json:"lastName"`
	DateOfBirth *time.Time `json:"dateOfBirth"`
	Sex         *string    `json:"sex"`
	Phone       *string    `json:"phone"`
	Email       *string    `json:"email"`
	Address     *string    `json:"address"`
}

type Service struct {
	repo   Repository
	ids    *counters.Generator
	audit  auditlog.Recorder
	orders OrderChecker
}

func NewService(repo Repository, ids *counters.Generator, audit auditlog.Recorder) *Service {
	if audit == nil {
		audit = auditlog.Nop{}
	}
	return &Service{repo: repo, ids: ids, audit: audit}
}

// SetOrderChecker enables the has-orders guard on Delete.
func (s *Service) SetOrderChecker(c OrderChecker) { s.orders = c }

func validatePatient(p *models.Patient) error {
	if err := models.Validate(p); err != nil {
		return apierror.Invalid("%v", err)
	}
	if p.DateOfBirth.After(time.Now()) {
		return apierror.Invalid("dateOfBirth is in the future")
	}
	return nil
}

// Create registers p, assigning an MRN when none was supplied.
func (s *Service) Create(ctx context.Context, p *models.Patient) (*models.Patient, error) {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.MRN = strings.TrimSpace(p.MRN)
	if err := validatePatient(p); err != nil {
		return nil, err
	}
	if p.MRN == "" {
		mrn, err := s.ids.NextMRN(ctx)
		if err != nil {
			return nil, err
		}
		p.MRN = mrn
	}
	now := models.Now()
	p.ID = primitive.NewObjectID()
	p.DateOfBirth = p.DateOfBirth.UTC().Truncate(time.Millisecond)
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, auditlog.ActionCreate, entityType, p.ID.Hex(), map[string]interface{}{"mrn": p.MRN})
	return p, nil
}

func (s *Service) Get(ctx context.Context, id primitive.ObjectID) (*models.Patient, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) GetByMRN(ctx context.Context, mrn string) (*models.Patient, error) {
	return s.repo.GetByMRN(ctx, mrn)
}

func (s *Service) List(ctx context.Context, f Filter) ([]models.Patient, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 50
	}
	return s.repo.List(ctx, f)
}

// Update applies u and returns the stored patient.
func (s *Service) Update(ctx context.Context, id primitive.ObjectID, u Update) (*models.Patient, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	changes := map[string]interface{}{}
	setString := func(field string, dst *string, v *string) {
		if v == nil {
			return
		}
		if nv := strings.TrimSpace(*v); nv != *dst {
			*dst = nv
			changes[field] = nv
		}
	}
	setString("firstName", &p.FirstName, u.FirstName)
	setString("lastName", &p.LastName, u.LastName)
	setString("sex", &p.Sex, u.Sex)
	setString("phone", &p.Phone, u.Phone)
	setString("email", &p.Email, u.Email)
	setString("address", &p.Address, u.Address)
	if u.DateOfBirth != nil {
		p.DateOfBirth = u.DateOfBirth.UTC().Truncate(time.Millisecond)
		changes["dateOfBirth"] = p.DateOfBirth
	}
	if err := validatePatient(p); err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return p, nil
	}
	p.UpdatedAt = models.Now()
	if err := s.repo.Replace(ctx, p); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, auditlog.ActionUpdate, entityType, p.ID.Hex(), changes)
	return p, nil
}

// Delete removes a patient that has no orders.
func (s *Service) Delete(ctx context.Context, id primitive.ObjectID) error {
	if s.orders != nil {
		has, err := s.orders.PatientHasOrders(ctx, id)
		if err != nil {
			return err
		}
		if has {
			return apierror.Conflict("patient has orders and cannot be deleted")
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, auditlog.ActionDelete, entityType, id.Hex(), nil)
	return nil
}
