// Package orders handles order entry and the specimen workflow: collection,
// accessioning, rejection, result entry and verification.
package orders

import (
	"context"
	"strings"
	"time"

	"github.com/openlis/lis-api/internal/appointments"
	"github.com/openlis/lis-api/internal/auditlog"
	"github.com/openlis/lis-api/internal/counters"
	"github.com/openlis/lis-api/internal/models"
	"github.com/openlis/lis-api/pkg/apierror"
	"github.com/openlis/lis-api/pkg/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const entityType = "order"

// CatalogLookup is satisfied by catalog.Service.
type CatalogLookup interface {
	Lookup(ctx context.Context, codes []string) (map[string]models.TestCatalogItem, error)
}

// InstrumentChecker is satisfied by catalog.Service.
type InstrumentChecker interface {
	InstrumentSupports(ctx context.Context, id primitive.ObjectID, code string) error
}

// PatientLookup is satisfied by patients.Service.
type PatientLookup interface {
	Get(ctx context.Context, id primitive.ObjectID) (*models.Patient, error)
}

// Scheduler is satisfied by appointments.Service.
type Scheduler interface {
	Create(ctx context.Context, b appointments.Booking) (*models.Appointment, error)
	Update(ctx context.Context, id primitive.ObjectID, u appointments.Update) (*models.Appointment, error)
	SetStatus(ctx context.Context, id primitive.ObjectID, status string) (*models.Appointment, error)
	Get(ctx context.Context, id primitive.ObjectID) (*models.Appointment, error)
}

// Slot requests a collection appointment together with the order.
type Slot struct {
	ScheduledAt     time.Time `json:"scheduledAt"`
	DurationMinutes int       `json:"durationMinutes"`
	Location        string    `json:"location"`
}

type CreateInput struct {
	PatientID         primitive.ObjectID `json:"patientId"`
	TestCodes         []string           `json:"testCodes"`
	Priority          string             `json:"priority"`
	OrderingPhysician string             `json:"orderingPhysician"`
	Notes             string             `json:"notes"`
	Appointment       *Slot              `json:"appointment"`
}

// UpdateInput edits an open order. TestCodes replaces the test list; the time
// fields move the linked appointment, or book one when the order has none.
type UpdateInput struct {
	TestCodes         *[]string  `json:"testCodes"`
	Priority          *string    `json:"priority"`
	OrderingPhysician *string    `json:"orderingPhysician"`
	Notes             *string    `json:"notes"`
	ScheduledAt       *time.Time `json:"scheduledAt"`
	DurationMinutes   *int       `json:"durationMinutes"`
	Location          *string    `json:"location"`
}

type ResultInput struct {
	Value        string              `json:"value"`
	InstrumentID *primitive.ObjectID `json:"instrumentId"`
	Comment      string              `json:"comment"`
}

type Service struct {
	repo        Repository
	catalog     CatalogLookup
	instruments InstrumentChecker
	patients    PatientLookup
	schedule    Scheduler
	ids         *counters.Generator
	audit       auditlog.Recorder
}

func NewService(repo Repository, catalog CatalogLookup, instruments InstrumentChecker, patients PatientLookup, schedule Scheduler, ids *counters.Generator, audit auditlog.Recorder) *Service {
	if audit == nil {
		audit = auditlog.Nop{}
	}
	return &Service{repo: repo, catalog: catalog, instruments: instruments, patients: patients, schedule: schedule, ids: ids, audit: audit}
}

func validPriority(p string) bool {
	return p == models.PriorityRoutine || p == models.PriorityStat
}

func (s *Service) deriveFor(ctx context.Context, codes []string, prior []models.OrderSample) ([]models.OrderSample, error) {
	normalized := make([]string, 0, len(codes))
	for _, c := range codes {
		normalized = append(normalized, strings.ToUpper(strings.TrimSpace(c)))
	}
	items, err := s.catalog.Lookup(ctx, normalized)
	if err != nil {
		return nil, err
	}
	return DeriveSamples(items, normalized, prior)
}

// Create places an order for an existing patient, optionally booking its
// collection appointment. A clashing slot fails the whole request with ErrConflict.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Order, error) {
	if in.PatientID.IsZero() {
		return nil, apierror.Invalid("patientId is required")
	}
	if in.Priority == "" {
		in.Priority = models.PriorityRoutine
	}
	if !validPriority(in.Priority) {
		return nil, apierror.Invalid("priority must be routine or stat")
	}
	if _, err := s.patients.Get(ctx, in.PatientID); err != nil {
		return nil, err
	}
	samples, err := s.deriveFor(ctx, in.TestCodes, nil)
	if err != nil {
		return nil, err
	}
	number, err := s.ids.NextOrderNumber(ctx)
	if err != nil {
		return nil, err
	}
	now := models.Now()
	o := &models.Order{
		ID:                primitive.NewObjectID(),
		OrderNumber:       number,
		PatientID:         in.PatientID,
		OrderingPhysician: strings.TrimSpace(in.OrderingPhysician),
		Priority:          in.Priority,
		Samples:           samples,
		Notes:             in.Notes,
		CreatedBy:         models.ActorID(ctx),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	o.Status = DeriveStatus(o)

	if in.Appointment != nil {
		a, err := s.schedule.Create(ctx, appointments.Booking{
			PatientID:       o.PatientID,
			OrderID:         &o.ID,
			ScheduledAt:     in.Appointment.ScheduledAt,
			DurationMinutes: in.Appointment.DurationMinutes,
			Location:        in.Appointment.Location,
		})
		if err != nil {
			return nil, err
		}
		o.AppointmentID = &a.ID
	}
	if err := s.repo.Create(ctx, o); err != nil {
		if o.AppointmentID != nil {
			s.releaseAppointment(ctx, *o.AppointmentID)
		}
		return nil, err
	}
	s.audit.Record(ctx, auditlog.ActionCreate, entityType, o.ID.Hex(), map[string]interface{}{
		"orderNumber": o.OrderNumber, "tests": o.TestCodes(),
	})
	return o, nil
}

// releaseAppointment cancels an appointment that no longer has an order behind it.
func (s *Service) releaseAppointment(ctx context.Context, id primitive.ObjectID) {
	ctx = context.WithoutCancel(ctx)
	a, err := s.schedule.Get(ctx, id)
	if err != nil || !a.Blocking() || a.Status == models.AppointmentCompleted {
		return
	}
	if _, err := s.schedule.SetStatus(ctx, id, models.AppointmentCancelled); err != nil {
		logger.Warnf("cancel appointment %s: %v", id.Hex(), err)
	}
}

// mutate loads the order, applies fn, re-derives the status and stores it with
// an optimistic check on updatedAt.
func (s *Service) mutate(ctx context.Context, id primitive.ObjectID, action string, fn func(o *models.Order) (map[string]interface{}, error)) (*models.Order, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status == models.OrderCancelled {
		return nil, apierror.Conflict("order %s is cancelled", o.OrderNumber)
	}
	prev := o.UpdatedAt
	changes, err := fn(o)
	if err != nil {
		return nil, err
	}
	now := models.Now()
	if !now.After(prev) {
		now = prev.Add(time.Millisecond)
	}
	o.UpdatedAt = now
	if o.Status != models.OrderCancelled {
		o.Status = DeriveStatus(o)
	}
	if o.Status == models.OrderCompleted && o.CompletedAt == nil {
		o.CompletedAt = &now
	}
	if o.Status != models.OrderCompleted {
		o.CompletedAt = nil
	}
	if err := s.repo.Replace(ctx, o, prev); err != nil {
		return nil, err
	}
	if changes == nil {
		changes = map[string]interface{}{}
	}
	changes["status"] = o.Status
	s.audit.Record(ctx, action, entityType, o.ID.Hex(), changes)
	return o, nil
}

// Update edits an open order. Changing the tests re-derives the samples, keeping
// collection state for tube types that remain. Moving the appointment into an
// occupied slot fails with ErrConflict and leaves the order untouched.
func (s *Service) Update(ctx context.Context, id primitive.ObjectID, in UpdateInput) (*models.Order, error) {
	// undo reverts the appointment change when the order itself is not stored
	var undo func()
	o, err := s.mutate(ctx, id, auditlog.ActionUpdate, func(o *models.Order) (map[string]interface{}, error) {
		if o.Status == models.OrderCompleted {
			return nil, apierror.Conflict("order %s is completed", o.OrderNumber)
		}
		changes := map[string]interface{}{}
		if in.TestCodes != nil {
			samples, err := s.deriveFor(ctx, *in.TestCodes, o.Samples)
			if err != nil {
				return nil, err
			}
			if dropped := DroppedResults(o.Samples, samples); len(dropped) > 0 {
				return nil, apierror.Conflict("tests with results cannot be removed: %s", strings.Join(dropped, ", "))
			}
			o.Samples = samples
			changes["tests"] = o.TestCodes()
		}
		if in.Priority != nil {
			if !validPriority(*in.Priority) {
				return nil, apierror.Invalid("priority must be routine or stat")
			}
			o.Priority = *in.Priority
			changes["priority"] = o.Priority
		}
		if in.OrderingPhysician != nil {
			o.OrderingPhysician = strings.TrimSpace(*in.OrderingPhysician)
			changes["orderingPhysician"] = o.OrderingPhysician
		}
		if in.Notes != nil {
			o.Notes = *in.Notes
			changes["notes"] = o.Notes
		}
		if in.ScheduledAt == nil && in.DurationMinutes == nil && in.Location == nil {
			return changes, nil
		}
		if o.AppointmentID != nil {
			before, err := s.schedule.Get(ctx, *o.AppointmentID)
			if err != nil {
				return nil, err
			}
			a, err := s.schedule.Update(ctx, before.ID, appointments.Update{
				ScheduledAt: in.ScheduledAt, DurationMinutes: in.DurationMinutes, Location: in.Location,
			})
			if err != nil {
				return nil, err
			}
			undo = func() { s.restoreAppointment(ctx, before) }
			changes["scheduledAt"] = a.ScheduledAt
			return changes, nil
		}
		if in.ScheduledAt == nil {
			return nil, apierror.Invalid("order has no appointment; scheduledAt is required to book one")
		}
		b := appointments.Booking{PatientID: o.PatientID, OrderID: &o.ID, ScheduledAt: *in.ScheduledAt}
		if in.DurationMinutes != nil {
			b.DurationMinutes = *in.DurationMinutes
		}
		if in.Location != nil {
			b.Location = *in.Location
		}
		a, err := s.schedule.Create(ctx, b)
		if err != nil {
			return nil, err
		}
		undo = func() { s.releaseAppointment(ctx, a.ID) }
		o.AppointmentID = &a.ID
		changes["appointmentId"] = a.ID.Hex()
		return changes, nil
	})
	if err != nil {
		if undo != nil {
			undo()
		}
		return nil, err
	}
	return o, nil
}

// restoreAppointment moves an appointment back to the window recorded in prev.
func (s *Service) restoreAppointment(ctx context.Context, prev *models.Appointment) {
	ctx = context.WithoutCancel(ctx)
	_, err := s.schedule.Update(ctx, prev.ID, appointments.Update{
		ScheduledAt: &prev.ScheduledAt, DurationMinutes: &prev.DurationMinutes, Location: &prev.Location,
	})
	if err != nil {
		logger.Warnf("restore appointment %s to %s: %v", prev.ID.Hex(), prev.ScheduledAt.Format(time.RFC3339), err)
	}
}

func sampleOf(o *models.Order, tubeType string) (*models.OrderSample, error) {
	smp := o.Sample(tubeType)
	if smp == nil {
		return nil, apierror.NotFound("sample " + tubeType)
	}
	return smp, nil
}

// Collect records specimen collection. A rejected sample may be recollected,
// which clears the rejection and the old accession number.
func (s *Service) Collect(ctx context.Context, id primitive.ObjectID, tubeType string, at *time.Time) (*models.Order, error) {
	return s.mutate(ctx, id, "collect", func(o *models.Order) (map[string]interface{}, error) {
		smp, err := sampleOf(o, tubeType)
		if err != nil {
			return nil, err
		}
		if smp.Status != models.SampleAwaitingCollection && smp.Status != models.SampleRejected {
			return nil, apierror.Conflict("sample %s is already %s", tubeType, smp.Status)
		}
		when := models.Now()
		if at != nil {
			when = at.UTC().Truncate(time.Millisecond)
			if when.After(time.Now().Add(time.Minute)) {
				return nil, apierror.Invalid("collectedAt is in the future")
			}
		}
		smp.Status = models.SampleCollected
		smp.CollectedAt = &when
		smp.CollectedBy = models.ActorID(ctx)
		smp.RejectionReason = ""
		smp.AccessionNumber = ""
		smp.ReceivedAt = nil
		return map[string]interface{}{"tubeType": tubeType, "collectedAt": when}, nil
	})
}

// Accession receives a collected sample in the lab and assigns its accession number.
func (s *Service) Accession(ctx context.Context, id primitive.ObjectID, tubeType string) (*models.Order, error) {
	return s.mutate(ctx, id, "accession", func(o *models.Order) (map[string]interface{}, error) {
		smp, err := sampleOf(o, tubeType)
		if err != nil {
			return nil, err
		}
		if smp.Status != models.SampleCollected {
			return nil, apierror.Conflict("sample %s is %s; only collected samples can be accessioned", tubeType, smp.Status)
		}
		acc, err := s.ids.NextAccession(ctx)
		if err != nil {
			return nil, err
		}
		now := models.Now()
		smp.Status = models.SampleReceived
		smp.AccessionNumber = acc
		smp.ReceivedAt = &now
		return map[string]interface{}{"tubeType": tubeType, "accessionNumber": acc}, nil
	})
}

// Reject marks a collected or received sample unusable. Samples with results cannot be rejected.
func (s *Service) Reject(ctx context.Context, id primitive.ObjectID, tubeType, reason string) (*models.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apierror.Invalid("reason is required")
	}
	return s.mutate(ctx, id, "reject", func(o *models.Order) (map[string]interface{}, error) {
		smp, err := sampleOf(o, tubeType)
		if err != nil {
			return nil, err
		}
		if smp.Status != models.SampleCollected && smp.Status != models.SampleReceived {
			return nil, apierror.Conflict("sample %s is %s and cannot be rejected", tubeType, smp.Status)
		}
		for _, t := range smp.Tests {
			if t.Status != models.TestPending {
				return nil, apierror.Conflict("sample %s already has results", tubeType)
			}
		}
		smp.Status = models.SampleRejected
		smp.RejectionReason = reason
		return map[string]interface{}{"tubeType": tubeType, "reason": reason}, nil
	})
}

func testOf(o *models.Order, code string) (*models.OrderSample, *models.OrderTest, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for i := range o.Samples {
		for j := range o.Samples[i].Tests {
			if o.Samples[i].Tests[j].Code == code {
				return &o.Samples[i], &o.Samples[i].Tests[j], nil
			}
		}
	}
	return nil, nil, apierror.NotFound("test " + code)
}

// EnterResult records (or corrects) a result on a received sample. The flag is
// computed against the catalog reference range at the time of entry.
func (s *Service) EnterResult(ctx context.Context, id primitive.ObjectID, code string, in ResultInput) (*models.Order, error) {
	in.Value = strings.TrimSpace(in.Value)
	if in.Value == "" {
		return nil, apierror.Invalid("value is required")
	}
	return s.mutate(ctx, id, "result", func(o *models.Order) (map[string]interface{}, error) {
		smp, t, err := testOf(o, code)
		if err != nil {
			return nil, err
		}
		if smp.Status != models.SampleReceived {
			return nil, apierror.Conflict("sample %s is %s; results need a received sample", smp.TubeType, smp.Status)
		}
		if t.Status == models.TestVerified {
			return nil, apierror.Conflict("result for %s is already verified", t.Code)
		}
		if in.InstrumentID != nil && s.instruments != nil {
			if err := s.instruments.InstrumentSupports(ctx, *in.InstrumentID, t.Code); err != nil {
				return nil, err
			}
		}
		items, err := s.catalog.Lookup(ctx, []string{t.Code})
		if err != nil {
			return nil, err
		}
		item := items[t.Code]
		num, flag := Flag(in.Value, item.ReferenceRange)
		t.Result = &models.TestResult{
			Value:          in.Value,
			NumericValue:   num,
			Units:          item.Units,
			Flag:           flag,
			ReferenceRange: item.ReferenceRange,
			InstrumentID:   in.InstrumentID,
			Comment:        in.Comment,
			EnteredBy:      models.ActorID(ctx),
			EnteredAt:      models.Now(),
		}
		t.Status = models.TestResulted
		return map[string]interface{}{"code": t.Code, "value": in.Value, "flag": flag}, nil
	})
}

// Verify releases an entered result.
func (s *Service) Verify(ctx context.Context, id primitive.ObjectID, code string) (*models.Order, error) {
	return s.mutate(ctx, id, "verify", func(o *models.Order) (map[string]interface{}, error) {
		_, t, err := testOf(o, code)
		if err != nil {
			return nil, err
		}
		if t.Status != models.TestResulted {
			return nil, apierror.Conflict("test %s is %s; only resulted tests can be verified", t.Code, t.Status)
		}
		now := models.Now()
		t.Status = models.TestVerified
		t.Result.VerifiedBy = models.ActorID(ctx)
		t.Result.VerifiedAt = &now
		return map[string]interface{}{"code": t.Code}, nil
	})
}

// Cancel stops an open order and releases its appointment.
func (s *Service) Cancel(ctx context.Context, id primitive.ObjectID, reason string) (*models.Order, error) {
	o, err := s.mutate(ctx, id, "cancel", func(o *models.Order) (map[string]interface{}, error) {
		if o.Status == models.OrderCompleted {
			return nil, apierror.Conflict("order %s is completed", o.OrderNumber)
		}
		o.Status = models.OrderCancelled
		o.CancelReason = strings.TrimSpace(reason)
		return map[string]interface{}{"reason": o.CancelReason}, nil
	})
	if err != nil {
		return nil, err
	}
	if o.AppointmentID != nil {
		s.releaseAppointment(ctx, *o.AppointmentID)
	}
	return o, nil
}

// Delete removes an order nothing has been collected for yet.
func (s *Service) Delete(ctx context.Context, id primitive.ObjectID) error {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if o.Status != models.OrderPending && o.Status != models.OrderCancelled {
		return apierror.Conflict("order %s is %s; cancel it instead", o.OrderNumber, o.Status)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if o.AppointmentID != nil {
		s.releaseAppointment(ctx, *o.AppointmentID)
	}
	s.audit.Record(ctx, auditlog.ActionDelete, entityType, id.Hex(), map[string]interface{}{"orderNumber": o.OrderNumber})
	return nil
}

func (s *Service) Get(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) GetByAccession(ctx context.Context, accession string) (*models.Order, error) {
	return s.repo.GetByAccession(ctx, strings.ToUpper(strings.TrimSpace(accession)))
}

func (s *Service) List(ctx context.Context, f Filter) ([]models.Order, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	return s.repo.List(ctx, f)
}

// PatientHasOrders implements patients.OrderChecker.
func (s *Service) PatientHasOrders(ctx context.Context, patientID primitive.ObjectID) (bool, error) {
	n, err := s.repo.CountByPatient(ctx, patientID)
	return n > 0, err
}
