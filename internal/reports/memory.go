package reports

import (
	"context"
	"sort"
	"time"

	"github.com/openlis/lis-api/internal/database"
	"github.com/openlis/lis-api/internal/models"
)

type MemorySource struct {
	orders       *database.MemCollection[models.Order]
	appointments *database.MemCollection[models.Appointment]
}

func NewMemorySource(db *database.MemDB) *MemorySource {
	return &MemorySource{
		orders:       database.Collection[models.Order](db, database.ColOrders),
		appointments: database.Collection[models.Appointment](db, database.ColAppointments),
	}
}

func (s *MemorySource) OrdersByStatus(_ context.Context) (map[string]int64, error) {
	all, err := s.orders.Find(nil)
	if err != nil {
		return nil, err
	}
	out := map[string]int64{}
	for _, o := range all {
		out[o.Status]++
	}
	return out, nil
}

func (s *MemorySource) AppointmentsByStatus(_ context.Context, from, to time.Time) (map[string]int64, error) {
	found, err := s.appointments.Find(func(a *models.Appointment) bool {
		return !a.ScheduledAt.Before(from) && a.ScheduledAt.Before(to)
	})
	if err != nil {
		return nil, err
	}
	out := map[string]int64{}
	for _, a := range found {
		out[a.Status]++
	}
	return out, nil
}

func (s *MemorySource) CompletedOrders(_ context.Context, from, to time.Time) ([]models.Order, error) {
	found, err := s.orders.Find(func(o *models.Order) bool {
		return o.Status == models.OrderCompleted && o.CompletedAt != nil &&
			!o.CompletedAt.Before(from) && o.CompletedAt.Before(to)
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].CompletedAt.Before(*found[j].CompletedAt) })
	out := make([]models.Order, 0, len(found))
	for _, o := range found {
		out = append(out, *o)
	}
	return out, nil
}

func (s *MemorySource) Turnaround(ctx context.Context, from, to time.Time) (TAT, error) {
	orders, err := s.CompletedOrders(ctx, from, to)
	if err != nil {
		return TAT{}, err
	}
	var t TAT
	var sum float64
	for _, o := range orders {
		h := turnaroundHours(&o)
		sum += h
		if h > t.MaxHours {
			t.MaxHours = h
		}
	}
	t.Completed = int64(len(orders))
	if t.Completed > 0 {
		t.AvgHours = sum / float64(t.Completed)
	}
	return t, nil
}

func turnaroundHours(o *models.Order) float64 {
	if o.CompletedAt == nil {
		return 0
	}
	return o.CompletedAt.Sub(o.CreatedAt).Hours()
}
