package appointments

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/openlis/lis-api/internal/database"
	"github.com/openlis/lis-api/internal/models"
	"github.com/openlis/lis-api/pkg/apierror"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryRepository evaluates the same predicates as the Mongo queries in Go and
// joins views from the shared MemDB collections.
type MemoryRepository struct {
	col      *database.MemCollection[models.Appointment]
	patients *database.MemCollection[models.Patient]
	orders   *database.MemCollection[models.Order]
	catalog  *database.MemCollection[models.TestCatalogItem]
}

func NewMemoryRepository(db *database.MemDB) *MemoryRepository {
	return &MemoryRepository{
		col:      database.Collection[models.Appointment](db, database.ColAppointments),
		patients: database.Collection[models.Patient](db, database.ColPatients),
		orders:   database.Collection[models.Order](db, database.ColOrders),
		catalog:  database.Collection[models.TestCatalogItem](db, database.ColTestCatalog),
	}
}

func mapNotFound(err error) error {
	if errors.Is(err, database.ErrNoDocument) {
		return apierror.NotFound("appointment")
	}
	return err
}

func (r *MemoryRepository) Create(_ context.Context, a *models.Appointment) error {
	return r.col.Insert(a.ID, a)
}

func (r *MemoryRepository) Get(_ context.Context, id primitive.ObjectID) (*models.Appointment, error) {
	a, err := r.col.Get(id)
	return a, mapNotFound(err)
}

func (r *MemoryRepository) Replace(_ context.Context, a *models.Appointment) error {
	return mapNotFound(r.col.Replace(a.ID, a))
}

func (r *MemoryRepository) Delete(_ context.Context, id primitive.ObjectID) error {
	return mapNotFound(r.col.Delete(id))
}

func matches(f Filter, a *models.Appointment) bool {
	switch {
	case f.PatientID != nil && a.PatientID != *f.PatientID,
		f.Status != "" && a.Status != f.Status,
		f.From != nil && a.ScheduledAt.Before(*f.From),
		f.To != nil && !a.ScheduledAt.Before(*f.To):
		return false
	}
	return true
}

func (r *MemoryRepository) find(f Filter) ([]*models.Appointment, error) {
	found, err := r.col.Find(func(a *models.Appointment) bool { return matches(f, a) })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].ScheduledAt.Before(found[j].ScheduledAt) })
	if f.Limit > 0 && int64(len(found)) > f.Limit {
		found = found[:f.Limit]
	}
	return found, nil
}

func (r *MemoryRepository) List(_ context.Context, f Filter) ([]models.Appointment, error) {
	found, err := r.find(f)
	if err != nil {
		return nil, err
	}
	out := make([]models.Appointment, 0, len(found))
	for _, a := range found {
		out = append(out, *a)
	}
	return out, nil
}

func (r *MemoryRepository) FindOverlapping(_ context.Context, exclude primitive.ObjectID, start, end time.Time) ([]models.Appointment, error) {
	found, err := r.col.Find(func(a *models.Appointment) bool {
		if a.ID == exclude || !a.Blocking() {
			return false
		}
		startsInside := !a.ScheduledAt.Before(start) && a.ScheduledAt.Before(end)
		runningAtStart := !a.ScheduledAt.After(start) && a.EndsAt().After(start)
		return startsInside || runningAtStart
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].ScheduledAt.Before(found[j].ScheduledAt) })
	out := make([]models.Appointment, 0, len(found))
	for _, a := range found {
		out = append(out, *a)
	}
	return out, nil
}

func (r *MemoryRepository) join(a *models.Appointment) (models.AppointmentView, error) {
	v := models.AppointmentView{Appointment: *a, Tests: []models.ViewTest{}}
	if p, err := r.patients.Get(a.PatientID); err == nil {
		v.Patient = &models.PatientSummary{
			ID: p.ID, MRN: p.MRN, FirstName: p.FirstName, LastName: p.LastName,
			DateOfBirth: p.DateOfBirth, Sex: p.Sex, Phone: p.Phone,
		}
	} else if !errors.Is(err, database.ErrNoDocument) {
		return v, err
	}
	if a.OrderID == nil {
		return v, nil
	}
	o, err := r.orders.Get(*a.OrderID)
	if errors.Is(err, database.ErrNoDocument) {
		return v, nil
	}
	if err != nil {
		return v, err
	}
	v.Order = &models.OrderSummary{ID: o.ID, OrderNumber: o.OrderNumber, Priority: o.Priority, Status: o.Status, Samples: o.Samples}
	codes := map[string]bool{}
	for _, c := range o.TestCodes() {
		codes[c] = true
	}
	items, err := r.catalog.Find(func(t *models.TestCatalogItem) bool { return codes[t.Code] })
	if err != nil {
		return v, err
	}
	for _, t := range items {
		v.Tests = append(v.Tests, models.ViewTest{
			Code: t.Code, Name: t.Name, TubeType: t.TubeType, SpecimenType: t.SpecimenType,
			Department: t.Department, Price: t.Price,
		})
	}
	sortViewTests(&v)
	return v, nil
}

func (r *MemoryRepository) View(_ context.Context, id primitive.ObjectID) (*models.AppointmentView, error) {
	a, err := r.col.Get(id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	v, err := r.join(a)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *MemoryRepository) Views(_ context.Context, f Filter) ([]models.AppointmentView, error) {
	found, err := r.find(f)
	if err != nil {
		return nil, err
	}
	out := make([]models.AppointmentView, 0, len(found))
	for _, a := range found {
		v, err := r.join(a)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *MemoryRepository) MarkNoShows(_ context.Context, now time.Time, grace time.Duration) (int64, error) {
	due, err := r.col.Find(func(a *models.Appointment) bool {
		return a.Status == models.AppointmentScheduled && a.EndsAt().Add(grace).Before(now)
	})
	if err != nil {
		return 0, err
	}
	var n int64
	for _, a := range due {
		_, err := r.col.Update(a.ID, func(cur *models.Appointment) error {
			if cur.Status != models.AppointmentScheduled {
				return errSkip
			}
			cur.Status = models.AppointmentNoShow
			cur.UpdatedAt = now
			return nil
		})
		switch {
		case err == nil:
			n++
		case errors.Is(err, errSkip), errors.Is(err, database.ErrNoDocument):
		default:
			return n, err
		}
	}
	return n, nil
}

var errSkip = errors.New("skip")

// sortViewTests orders joined catalog entries like the order's tests.
func sortViewTests(v *models.AppointmentView) {
	if v.Tests == nil {
		v.Tests = []models.ViewTest{}
	}
	if v.Order == nil {
		return
	}
	rank := map[string]int{}
	for _, s := range v.Order.Samples {
		for _, t := range s.Tests {
			if _, ok := rank[t.Code]; !ok {
				rank[t.Code] = len(rank)
			}
		}
	}
	sort.SliceStable(v.Tests, func(i, j int) bool { return rank[v.Tests[i].Code] < rank[v.Tests[j].Code] })
}
