// Package appointments books collection visits and guarantees that blocking
// appointments never overlap.
package appointments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openlis/lis-api/internal/auditlog"
	"github.com/openlis/lis-api/internal/models"
	"github.com/openlis/lis-api/pkg/apierror"
	"github.com/openlis/lis-api/pkg/logger"
	"github.com/openlis/lis-api/pkg/metrics"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	entityType = "appointment"
	// one booking lock for the whole lab: there is a single collection schedule
	bookingLockKey  = "lock:appointments:booking"
	maxDurationMins = 8 * 60
)

// PatientLookup is satisfied by patients.Service.
type PatientLookup interface {
	Get(ctx context.Context, id primitive.ObjectID) (*models.Patient, error)
}

// Booking is the input to Create.
type Booking struct {
	PatientID       primitive.ObjectID  `json:"patientId"`
	OrderID         *primitive.ObjectID `json:"orderId"`
	ScheduledAt     time.Time           `json:"scheduledAt"`
	DurationMinutes int                 `json:"durationMinutes"`
	Location        string              `json:"location"`
	Notes           string              `json:"notes"`
}

// Update changes the time window or details of a scheduled appointment.
type Update struct {
	ScheduledAt     *time.Time `json:"scheduledAt"`
	DurationMinutes *int       `json:"durationMinutes"`
	Location        *string    `json:"location"`
	Notes           *string    `json:"notes"`
}

// Options configures the service.
type Options struct {
	DefaultDurationMinutes int
	LockTTL                time.Duration
}

type Service struct {
	repo     Repository
	locker   Locker
	patients PatientLookup
	audit    auditlog.Recorder
	opts     Options
}

func NewService(repo Repository, locker Locker, patients PatientLookup, audit auditlog.Recorder, opts Options) *Service {
	if locker == nil {
		locker = NewLocalLocker()
	}
	if audit == nil {
		audit = auditlog.Nop{}
	}
	if opts.DefaultDurationMinutes <= 0 {
		opts.DefaultDurationMinutes = 15
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 5 * time.Second
	}
	return &Service{repo: repo, locker: locker, patients: patients, audit: audit, opts: opts}
}

func validWindow(start time.Time, minutes int) error {
	if start.IsZero() {
		return apierror.Invalid("scheduledAt is required")
	}
	if minutes <= 0 || minutes > maxDurationMins {
		return apierror.Invalid("durationMinutes must be between 1 and %d", maxDurationMins)
	}
	return nil
}

// checkSlot must be called with the booking lock held.
func (s *Service) checkSlot(ctx context.Context, self primitive.ObjectID, start time.Time, minutes int) error {
	end := start.Add(time.Duration(minutes) * time.Minute)
	clashes, err := s.repo.FindOverlapping(ctx, self, start, end)
	if err != nil {
		return err
	}
	if len(clashes) == 0 {
		return nil
	}
	metrics.SchedulingConflicts.Inc()
	ids := make([]string, 0, len(clashes))
	for _, c := range clashes {
		ids = append(ids, c.ID.Hex())
	}
	return apierror.Conflict("time slot %s to %s overlaps appointment %s",
		start.Format(time.RFC3339), end.Format(time.RFC3339), strings.Join(ids, ", "))
}

func (s *Service) lock(ctx context.Context) (func(), error) {
	return s.locker.Acquire(ctx, bookingLockKey, s.opts.LockTTL)
}

// Create books a new appointment after checking the slot is free.
func (s *Service) Create(ctx context.Context, b Booking) (*models.Appointment, error) {
	if b.DurationMinutes == 0 {
		b.DurationMinutes = s.opts.DefaultDurationMinutes
	}
	if b.PatientID.IsZero() {
		return nil, apierror.Invalid("patientId is required")
	}
	start := b.ScheduledAt.UTC().Truncate(time.Millisecond)
	if err := validWindow(start, b.DurationMinutes); err != nil {
		return nil, err
	}
	if s.patients != nil {
		if _, err := s.patients.Get(ctx, b.PatientID); err != nil {
			return nil, err
		}
	}
	now := models.Now()
	a := &models.Appointment{
		ID:              primitive.NewObjectID(),
		PatientID:       b.PatientID,
		OrderID:         b.OrderID,
		ScheduledAt:     start,
		DurationMinutes: b.DurationMinutes,
		Status:          models.AppointmentScheduled,
		Location:        strings.TrimSpace(b.Location),
		Notes:           b.Notes,
		CreatedBy:       models.ActorID(ctx),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	release, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	if err := s.checkSlot(ctx, a.ID, a.ScheduledAt, a.DurationMinutes); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, auditlog.ActionCreate, entityType, a.ID.Hex(), map[string]interface{}{
		"scheduledAt": a.ScheduledAt, "durationMinutes": a.DurationMinutes,
	})
	return a, nil
}

// Update reschedules or edits a scheduled appointment. A new window is checked
// against every other blocking appointment; a clash returns ErrConflict.
func (s *Service) Update(ctx context.Context, id primitive.ObjectID, u Update) (*models.Appointment, error) {
	release, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	changes := map[string]interface{}{}
	moved := false
	if u.ScheduledAt != nil {
		at := u.ScheduledAt.UTC().Truncate(time.Millisecond)
		if !at.Equal(a.ScheduledAt) {
			a.ScheduledAt = at
			changes["scheduledAt"] = at
			moved = true
		}
	}
	if u.DurationMinutes != nil && *u.DurationMinutes != a.DurationMinutes {
		a.DurationMinutes = *u.DurationMinutes
		changes["durationMinutes"] = a.DurationMinutes
		moved = true
	}
	if u.Location != nil {
		a.Location = strings.TrimSpace(*u.Location)
		changes["location"] = a.Location
	}
	if u.Notes != nil {
		a.Notes = *u.Notes
		changes["notes"] = a.Notes
	}
	if moved {
		if a.Status != models.AppointmentScheduled {
			return nil, apierror.Conflict("cannot reschedule a %s appointment", a.Status)
		}
		if err := validWindow(a.ScheduledAt, a.DurationMinutes); err != nil {
			return nil, err
		}
		if err := s.checkSlot(ctx, a.ID, a.ScheduledAt, a.DurationMinutes); err != nil {
			return nil, err
		}
	}
	if len(changes) == 0 {
		return a, nil
	}
	a.UpdatedAt = models.Now()
	if err := s.repo.Replace(ctx, a); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, auditlog.ActionUpdate, entityType, a.ID.Hex(), changes)
	return a, nil
}

var transitions = map[string][]string{
	models.AppointmentScheduled: {models.AppointmentCheckedIn, models.AppointmentCancelled, models.AppointmentNoShow},
	models.AppointmentCheckedIn: {models.AppointmentCompleted, models.AppointmentCancelled},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// SetStatus moves the appointment through its lifecycle.
func (s *Service) SetStatus(ctx context.Context, id primitive.ObjectID, status string) (*models.Appointment, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(a.Status, status) {
		return nil, apierror.Conflict("cannot move appointment from %s to %s", a.Status, status)
	}
	from := a.Status
	a.Status = status
	a.UpdatedAt = models.Now()
	if err := s.repo.Replace(ctx, a); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, auditlog.ActionUpdate, entityType, a.ID.Hex(), map[string]interface{}{"status": status, "from": from})
	return a, nil
}

func (s *Service) Get(ctx context.Context, id primitive.ObjectID) (*models.Appointment, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]models.Appointment, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) View(ctx context.Context, id primitive.ObjectID) (*models.AppointmentView, error) {
	return s.repo.View(ctx, id)
}

func (s *Service) Views(ctx context.Context, f Filter) ([]models.AppointmentView, error) {
	return s.repo.Views(ctx, f)
}

func (s *Service) Delete(ctx context.Context, id primitive.ObjectID) error {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if a.OrderID != nil && a.Blocking() {
		return apierror.Conflict("appointment belongs to order %s; cancel it instead", a.OrderID.Hex())
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, auditlog.ActionDelete, entityType, id.Hex(), nil)
	return nil
}

// MarkNoShows flips overdue scheduled appointments to no_show and returns how many changed.
func (s *Service) MarkNoShows(ctx context.Context, now time.Time, grace time.Duration) (int64, error) {
	n, err := s.repo.MarkNoShows(ctx, now.UTC().Truncate(time.Millisecond), grace)
	if err != nil {
		return n, fmt.Errorf("mark no-shows: %w", err)
	}
	if n > 0 {
		logger.Infof("marked %d appointment(s) as no-show", n)
		s.audit.Record(ctx, "no_show_sweep", entityType, "*", map[string]interface{}{"count": n})
	}
	return n, nil
}
