package auditlog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/openlis/lis-api/internal/database"
	"github.com/openlis/lis-api/internal/models"
	"github.com/openlis/lis-api/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type failingRepo struct{ Repository }

func (failingRepo) Insert(context.Context, *models.AuditLog) error { return errors.New("disk full") }

func TestRecordAttributesPrincipal(t *testing.T) {
	svc := NewService(NewMemoryRepository(database.NewMemDB()))
	ctx := models.WithPrincipal(context.Background(), models.Principal{UserID: "u1", Role: models.RoleReceptionist})

	svc.Record(ctx, ActionCreate, "patient", "p1", map[string]interface{}{"mrn": "MRN000001"})
	svc.Record(context.Background(), ActionUpdate, "appointment", "a1", nil)

	all, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "system", all[0].UserID)
	require.Equal(t, "u1", all[1].UserID)
	require.Equal(t, models.RoleReceptionist, all[1].Role)
	require.Equal(t, "MRN000001", all[1].Changes["mrn"])

	byEntity, err := svc.List(ctx, Filter{EntityType: "patient", EntityID: "p1"})
	require.NoError(t, err)
	require.Len(t, byEntity, 1)

	limited, err := svc.List(ctx, Filter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestRecordFailureIsSwallowed(t *testing.T) {
	before := testutil.ToFloat64(metrics.AuditWriteFailures)
	svc := NewService(failingRepo{})
	require.NotPanics(t, func() { svc.Record(context.Background(), ActionDelete, "order", "o1", nil) })
	require.Equal(t, before+1, testutil.ToFloat64(metrics.AuditWriteFailures))
}

func TestHandlerList(t *testing.T) {
	svc := NewService(NewMemoryRepository(database.NewMemDB()))
	svc.Record(context.Background(), ActionCreate, "order", "o1", nil)
	svc.Record(context.Background(), ActionCreate, "patient", "p1", nil)

	g := gin.New()
	NewHandler(svc).Register(g.Group("/api/v1"))

	w := httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/audit-logs?entityType=order", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var out []models.AuditLog
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out, 1)
	require.Equal(t, "o1", out[0].EntityID)

	w = httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/audit-logs?limit=abc", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
}
