package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/openlis/lis-api/internal/database"
	"github.com/openlis/lis-api/internal/models"
	"github.com/openlis/lis-api/pkg/apierror"
	"github.com/openlis/lis-api/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	db := database.NewMemDB()
	return NewService(NewMemoryTestRepository(db), NewMemoryInstrumentRepository(db), nil)
}

func f(v float64) *float64 { return &v }

func glucose() *models.TestCatalogItem {
	return &models.TestCatalogItem{
		Code: " glu ", Name: "Glucose", Department: "chemistry", SpecimenType: "serum", TubeType: "gold",
		Units: "mg/dL", ReferenceRange: models.ReferenceRange{Low: f(70), High: f(99)}, TurnaroundHours: 4, Price: 12.5, Active: true,
	}
}

func TestCreateTestNormalizesAndRejectsDuplicates(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	created, err := svc.CreateTest(ctx, glucose())
	require.NoError(t, err)
	assert.Equal(t, "GLU", created.Code)

	_, err = svc.CreateTest(ctx, glucose())
	require.ErrorIs(t, err, apierror.ErrConflict)

	bad := glucose()
	bad.Code = "GLU2"
	bad.ReferenceRange = models.ReferenceRange{Low: f(100), High: f(10)}
	_, err = svc.CreateTest(ctx, bad)
	require.ErrorIs(t, err, apierror.ErrInvalid)
}

func TestLookupAndActiveFilter(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	_, err := svc.CreateTest(ctx, glucose())
	require.NoError(t, err)
	cbc, err := svc.CreateTest(ctx, &models.TestCatalogItem{Code: "CBC", Name: "Complete blood count", SpecimenType: "whole blood", TubeType: "lavender", Active: true})
	require.NoError(t, err)

	inactive := false
	_, err = svc.UpdateTest(ctx, cbc.ID, TestUpdate{Active: &inactive})
	require.NoError(t, err)

	byCode, err := svc.Lookup(ctx, []string{"GLU", "CBC", "NOPE"})
	require.NoError(t, err)
	require.Len(t, byCode, 2)
	assert.Equal(t, "gold", byCode["GLU"].TubeType)
	assert.False(t, byCode["CBC"].Active)

	active := true
	list, err := svc.ListTests(ctx, TestFilter{Active: &active})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "GLU", list[0].Code)
}

func TestInstrumentLifecycle(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	in, err := svc.CreateInstrument(ctx, &models.Instrument{Name: "Chem-1", SupportedTests: []string{"glu", "bmp"}})
	require.NoError(t, err)
	assert.Equal(t, models.InstrumentOffline, in.Status)
	assert.Equal(t, []string{"GLU", "BMP"}, in.SupportedTests)

	require.ErrorIs(t, svc.InstrumentSupports(ctx, in.ID, "GLU"), apierror.ErrConflict)

	online := models.InstrumentOnline
	_, err = svc.UpdateInstrument(ctx, in.ID, InstrumentUpdate{Status: &online})
	require.NoError(t, err)
	require.NoError(t, svc.InstrumentSupports(ctx, in.ID, "GLU"))
	require.ErrorIs(t, svc.InstrumentSupports(ctx, in.ID, "CBC"), apierror.ErrInvalid)

	bogus := "exploded"
	_, err = svc.UpdateInstrument(ctx, in.ID, InstrumentUpdate{Status: &bogus})
	require.ErrorIs(t, err, apierror.ErrInvalid)

	cal, err := svc.Calibrate(ctx, in.ID)
	require.NoError(t, err)
	require.NotNil(t, cal.LastCalibratedAt)

	require.NoError(t, svc.DeleteInstrument(ctx, in.ID))
	_, err = svc.GetInstrument(ctx, in.ID)
	require.ErrorIs(t, err, apierror.ErrNotFound)
}

func TestHandlerCreateDefaultsActive(t *testing.T) {
	svc := newTestService()
	g := gin.New()
	api := g.Group("/api/v1", func(c *gin.Context) {
		c.Set(middleware.ContextPrincipal, models.Principal{UserID: "m1", Role: models.RoleLabManager})
	})
	NewHandler(svc).Register(api)

	body := `{"code":"TSH","name":"Thyroid stimulating hormone","specimenType":"serum","tubeType":"gold","price":30}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/test-catalog", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	g.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.TestCatalogItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.True(t, created.Active)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/test-catalog", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	g.ServeHTTP(w, req)
	require.Equal(t, http.StatusConflict, w.Code)

	w = httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/test-catalog?active=maybe", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
}
