// Package reports builds the operations dashboard and turnaround exports.
package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openlis/lis-api/internal/models"
	"github.com/openlis/lis-api/internal/storage"
	"github.com/openlis/lis-api/pkg/apierror"
	"github.com/openlis/lis-api/pkg/logger"
)

const (
	defaultWindow = 30 * 24 * time.Hour
	maxWindow     = 366 * 24 * time.Hour
	linkTTL       = 15 * time.Minute
)

// LowStockCounter is satisfied by inventory.Service.
type LowStockCounter interface {
	LowStockCount(ctx context.Context) (int, error)
}

type Dashboard struct {
	GeneratedAt       time.Time        `json:"generatedAt"`
	OrdersByStatus    map[string]int64 `json:"ordersByStatus"`
	AppointmentsToday map[string]int64 `json:"appointmentsToday"`
	Turnaround        TAT              `json:"turnaround"`
	WindowDays        int              `json:"windowDays"`
	LowStockItems     int              `json:"lowStockItems"`
}

type Export struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Rows int    `json:"rows"`
}

type Service struct {
	src   Source
	blobs storage.BlobStore
	stock LowStockCounter
}

func NewService(src Source, blobs storage.BlobStore, stock LowStockCounter) *Service {
	return &Service{src: src, blobs: blobs, stock: stock}
}

// Dashboard reports current order counts, today's (UTC) appointments and the
// turnaround of orders completed in the last windowDays.
func (s *Service) Dashboard(ctx context.Context, now time.Time, windowDays int) (*Dashboard, error) {
	if windowDays <= 0 || windowDays > 366 {
		return nil, apierror.Invalid("days must be between 1 and 366")
	}
	now = now.UTC()
	d := &Dashboard{GeneratedAt: now.Truncate(time.Second), WindowDays: windowDays}
	var err error
	if d.OrdersByStatus, err = s.src.OrdersByStatus(ctx); err != nil {
		return nil, err
	}
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if d.AppointmentsToday, err = s.src.AppointmentsByStatus(ctx, day, day.AddDate(0, 0, 1)); err != nil {
		return nil, err
	}
	if d.Turnaround, err = s.src.Turnaround(ctx, now.AddDate(0, 0, -windowDays), now); err != nil {
		return nil, err
	}
	if s.stock != nil {
		if d.LowStockItems, err = s.stock.LowStockCount(ctx); err != nil {
			return nil, err
		}
	}
	return d, nil
}

var csvHeader = []string{"orderNumber", "patientId", "priority", "createdAt", "completedAt", "tatHours", "tests"}

func writeTAT(orders []models.Order) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for i := range orders {
		o := &orders[i]
		row := []string{
			o.OrderNumber,
			o.PatientID.Hex(),
			o.Priority,
			o.CreatedAt.UTC().Format(time.RFC3339),
			o.CompletedAt.UTC().Format(time.RFC3339),
			strconv.FormatFloat(turnaroundHours(o), 'f', 2, 64),
			strings.Join(o.TestCodes(), " "),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ExportTAT writes a CSV of orders completed in [from, to) to the blob store and
// returns its key and a short-lived download link. Zero bounds default to the
// last 30 days.
func (s *Service) ExportTAT(ctx context.Context, now, from, to time.Time) (*Export, error) {
	if to.IsZero() {
		to = now
	}
	if from.IsZero() {
		from = to.Add(-defaultWindow)
	}
	from, to = from.UTC(), to.UTC()
	if !from.Before(to) {
		return nil, apierror.Invalid("from must be before to")
	}
	if to.Sub(from) > maxWindow {
		return nil, apierror.Invalid("export window is limited to 366 days")
	}
	orders, err := s.src.CompletedOrders(ctx, from, to)
	if err != nil {
		return nil, err
	}
	body, err := writeTAT(orders)
	if err != nil {
		return nil, fmt.Errorf("encode tat csv: %w", err)
	}
	key := fmt.Sprintf("tat/%s_%s-%s.csv", from.Format("20060102"), to.Format("20060102"), uuid.NewString()[:8])
	if err := s.blobs.Put(ctx, key, bytes.NewReader(body), int64(len(body)), "text/csv"); err != nil {
		return nil, fmt.Errorf("store %s: %w", key, err)
	}
	url, err := s.blobs.PresignedURL(ctx, key, linkTTL)
	if err != nil {
		return nil, fmt.Errorf("presign %s: %w", key, err)
	}
	logger.L().Info().Str("key", key).Int("rows", len(orders)).Msg("tat export written")
	return &Export{Key: key, URL: url, Rows: len(orders)}, nil
}
