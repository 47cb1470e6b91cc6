// Package catalog manages the orderable test catalog and the instruments that run the tests.
package catalog

import (
	"context"
	"strings"

	"github.com/openlis/lis-api/internal/auditlog"
	"github.com/openlis/lis-api/internal/models"
	"github.com/openlis/lis-api/pkg/apierror"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TestUpdate is a partial update of a catalog item. The code is immutable because
// orders reference tests by code.
type TestUpdate struct {
	Name            *string                `json:"name"`
	Department      *string                `json:"department"`
	SpecimenType    *string                `json:"specimenType"`
	TubeType        *string                `json:"tubeType"`
	Units           *string                `json:"units"`
	ReferenceRange  *models.ReferenceRange `json:"referenceRange"`
	TurnaroundHours *int                   `json:"turnaroundHours"`
	Price           *float64               `json:"price"`
	Active          *bool                  `json:"active"`
}

// InstrumentUpdate is a partial update of an instrument.
type InstrumentUpdate struct {
	Name           *string   `json:"name"`
	Model          *string   `json:"model"`
	SerialNumber   *string   `json:"serialNumber"`
	Department     *string   `json:"department"`
	Status         *string   `json:"status"`
	SupportedTests *[]string `json:"supportedTests"`
}

type Service struct {
	tests       TestRepository
	instruments InstrumentRepository
	audit       auditlog.Recorder
}

func NewService(tests TestRepository, instruments InstrumentRepository, audit auditlog.Recorder) *Service {
	if audit == nil {
		audit = auditlog.Nop{}
	}
	return &Service{tests: tests, instruments: instruments, audit: audit}
}

// NormalizeCode upper-cases and trims a test code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func validateTest(t *models.TestCatalogItem) error {
	if err := models.Validate(t); err != nil {
		return apierror.Invalid("%v", err)
	}
	rr := t.ReferenceRange
	if rr.Low != nil && rr.High != nil && *rr.Low > *rr.High {
		return apierror.Invalid("referenceRange low is above high")
	}
	return nil
}

func (s *Service) CreateTest(ctx context.Context, t *models.TestCatalogItem) (*models.TestCatalogItem, error) {
	t.Code = NormalizeCode(t.Code)
	t.TubeType = strings.TrimSpace(t.TubeType)
	if err := validateTest(t); err != nil {
		return nil, err
	}
	now := models.Now()
	t.ID = primitive.NewObjectID()
	t.CreatedAt = now
	t.UpdatedAt = now
	if err := s.tests.Create(ctx, t); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, auditlog.ActionCreate, "test", t.ID.Hex(), map[string]interface{}{"code": t.Code})
	return t, nil
}

func (s *Service) GetTest(ctx context.Context, id primitive.ObjectID) (*models.TestCatalogItem, error) {
	return s.tests.Get(ctx, id)
}

func (s *Service) ListTests(ctx context.Context, f TestFilter) ([]models.TestCatalogItem, error) {
	return s.tests.List(ctx, f)
}

// Lookup returns the catalog items for codes keyed by code. Missing codes are absent.
func (s *Service) Lookup(ctx context.Context, codes []string) (map[string]models.TestCatalogItem, error) {
	items, err := s.tests.ByCodes(ctx, codes)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.TestCatalogItem, len(items))
	for _, it := range items {
		out[it.Code] = it
	}
	return out, nil
}

func (s *Service) UpdateTest(ctx context.Context, id primitive.ObjectID, u TestUpdate) (*models.TestCatalogItem, error) {
	t, err := s.tests.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	changes := map[string]interface{}{}
	setStr := func(field string, dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
			changes[field] = *dst
		}
	}
	setStr("name", &t.Name, u.Name)
	setStr("department", &t.Department, u.Department)
	setStr("specimenType", &t.SpecimenType, u.SpecimenType)
	setStr("tubeType", &t.TubeType, u.TubeType)
	setStr("units", &t.Units, u.Units)
	if u.ReferenceRange != nil {
		t.ReferenceRange = *u.ReferenceRange
		changes["referenceRange"] = t.ReferenceRange
	}
	if u.TurnaroundHours != nil {
		t.TurnaroundHours = *u.TurnaroundHours
		changes["turnaroundHours"] = t.TurnaroundHours
	}
	if u.Price != nil {
		t.Price = *u.Price
		changes["price"] = t.Price
	}
	if u.Active != nil {
		t.Active = *u.Active
		changes["active"] = t.Active
	}
	if err := validateTest(t); err != nil {
		return nil, err
	}
	t.UpdatedAt = models.Now()
	if err := s.tests.Replace(ctx, t); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, auditlog.ActionUpdate, "test", t.ID.Hex(), changes)
	return t, nil
}

func (s *Service) DeleteTest(ctx context.Context, id primitive.ObjectID) error {
	if err := s.tests.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, auditlog.ActionDelete, "test", id.Hex(), nil)
	return nil
}

func normalizeCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if c = NormalizeCode(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func (s *Service) CreateInstrument(ctx context.Context, in *models.Instrument) (*models.Instrument, error) {
	if in.Status == "" {
		in.Status = models.InstrumentOffline
	}
	in.SupportedTests = normalizeCodes(in.SupportedTests)
	if err := models.Validate(in); err != nil {
		return nil, apierror.Invalid("%v", err)
	}
	now := models.Now()
	in.ID = primitive.NewObjectID()
	in.CreatedAt = now
	in.UpdatedAt = now
	if err := s.instruments.Create(ctx, in); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, auditlog.ActionCreate, "instrument", in.ID.Hex(), map[string]interface{}{"name": in.Name})
	return in, nil
}

func (s *Service) GetInstrument(ctx context.Context, id primitive.ObjectID) (*models.Instrument, error) {
	return s.instruments.Get(ctx, id)
}

func (s *Service) ListInstruments(ctx context.Context, status string) ([]models.Instrument, error) {
	return s.instruments.List(ctx, status)
}

func (s *Service) UpdateInstrument(ctx context.Context, id primitive.ObjectID, u InstrumentUpdate) (*models.Instrument, error) {
	in, err := s.instruments.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	changes := map[string]interface{}{}
	for field, pair := range map[string][2]*string{
		"name":         {&in.Name, u.Name},
		"model":        {&in.Model, u.Model},
		"serialNumber": {&in.SerialNumber, u.SerialNumber},
		"department":   {&in.Department, u.Department},
		"status":       {&in.Status, u.Status},
	} {
		if pair[1] != nil {
			*pair[0] = strings.TrimSpace(*pair[1])
			changes[field] = *pair[0]
		}
	}
	if u.SupportedTests != nil {
		in.SupportedTests = normalizeCodes(*u.SupportedTests)
		changes["supportedTests"] = in.SupportedTests
	}
	if err := models.Validate(in); err != nil {
		return nil, apierror.Invalid("%v", err)
	}
	in.UpdatedAt = models.Now()
	if err := s.instruments.Replace(ctx, in); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, auditlog.ActionUpdate, "instrument", in.ID.Hex(), changes)
	return in, nil
}

// Calibrate stamps the instrument's calibration time.
func (s *Service) Calibrate(ctx context.Context, id primitive.ObjectID) (*models.Instrument, error) {
	in, err := s.instruments.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := models.Now()
	in.LastCalibratedAt = &now
	in.UpdatedAt = now
	if err := s.instruments.Replace(ctx, in); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, "calibrate", "instrument", in.ID.Hex(), map[string]interface{}{"lastCalibratedAt": now})
	return in, nil
}

// InstrumentSupports reports whether the instrument exists, is online and runs code.
// An empty SupportedTests list means the instrument accepts any test.
func (s *Service) InstrumentSupports(ctx context.Context, id primitive.ObjectID, code string) error {
	in, err := s.instruments.Get(ctx, id)
	if err != nil {
		return err
	}
	if in.Status != models.InstrumentOnline {
		return apierror.Conflict("instrument %s is %s", in.Name, in.Status)
	}
	if len(in.SupportedTests) == 0 {
		return nil
	}
	for _, c := range in.SupportedTests {
		if c == code {
			return nil
		}
	}
	return apierror.Invalid("instrument %s does not run %s", in.Name, code)
}

func (s *Service) DeleteInstrument(ctx context.Context, id primitive.ObjectID) error {
	if err := s.instruments.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, auditlog.ActionDelete, "instrument", id.Hex(), nil)
	return nil
}
