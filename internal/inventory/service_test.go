package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openlis/lis-api/internal/database"
	"github.com/openlis/lis-api/internal/models"
	"github.com/openlis/lis-api/pkg/apierror"
	"github.com/openlis/lis-api/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService() *Service {
	return NewService(NewMemoryRepository(database.NewMemDB()), nil)
}

func tubes(qty int) *models.InventoryItem {
	return &models.InventoryItem{SKU: " tube-gold ", Name: "Gold top tube", Category: "tubes", Quantity: qty, ReorderLevel: 10, Unit: "each"}
}

func TestCreateAndDuplicateSKU(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	it, err := svc.Create(ctx, tubes(50))
	require.NoError(t, err)
	assert.Equal(t, "TUBE-GOLD", it.SKU)

	_, err = svc.Create(ctx, tubes(5))
	require.ErrorIs(t, err, apierror.ErrConflict)

	_, err = svc.Create(ctx, &models.InventoryItem{SKU: "X", Name: "Bad", Quantity: -1})
	require.ErrorIs(t, err, apierror.ErrInvalid)
}

func TestAdjustNeverGoesNegative(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	it, err := svc.Create(ctx, tubes(12))
	require.NoError(t, err)

	it, err = svc.Adjust(ctx, it.ID, -5, "draws")
	require.NoError(t, err)
	assert.Equal(t, 7, it.Quantity)

	_, err = svc.Adjust(ctx, it.ID, -8, "draws")
	require.ErrorIs(t, err, apierror.ErrConflict)
	got, err := svc.Get(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Quantity)

	_, err = svc.Adjust(ctx, it.ID, 3, " ")
	require.ErrorIs(t, err, apierror.ErrInvalid)
	_, err = svc.Adjust(ctx, it.ID, 0, "noop")
	require.ErrorIs(t, err, apierror.ErrInvalid)
}

func TestConcurrentAdjustments(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	it, err := svc.Create(ctx, tubes(20))
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Adjust(ctx, it.ID, -1, "draw"); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, ok)
	got, err := svc.Get(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quantity)
}

func TestLowStockAndExpiring(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	now := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	soon := now.AddDate(0, 0, 5)
	later := now.AddDate(0, 3, 0)

	low, err := svc.Create(ctx, &models.InventoryItem{SKU: "REA-1", Name: "Reagent A", Quantity: 2, ReorderLevel: 5, ExpiresAt: &later})
	require.NoError(t, err)
	exp, err := svc.Create(ctx, &models.InventoryItem{SKU: "CTL-1", Name: "Control 1", Quantity: 40, ReorderLevel: 5, ExpiresAt: &soon})
	require.NoError(t, err)
	_, err = svc.Create(ctx, &models.InventoryItem{SKU: "GLV", Name: "Gloves", Quantity: 400, ReorderLevel: 50})
	require.NoError(t, err)

	list, err := svc.List(ctx, Filter{LowStock: true})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, low.ID, list[0].ID)

	list, err = svc.Expiring(ctx, now, 30)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, exp.ID, list[0].ID)

	_, err = svc.Expiring(ctx, now, -1)
	require.ErrorIs(t, err, apierror.ErrInvalid)

	lowItems, expiring, err := svc.Alerts(ctx, now, 120)
	require.NoError(t, err)
	assert.Len(t, lowItems, 1)
	assert.Len(t, expiring, 2)
	assert.Equal(t, "CTL-1", expiring[0].SKU)
}

func TestUpdateKeepsQuantity(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	it, err := svc.Create(ctx, tubes(30))
	require.NoError(t, err)
	name, level := "Gold SST tube", 15
	it, err = svc.Update(ctx, it.ID, Update{Name: &name, ReorderLevel: &level})
	require.NoError(t, err)
	assert.Equal(t, "Gold SST tube", it.Name)
	assert.Equal(t, 15, it.ReorderLevel)
	assert.Equal(t, 30, it.Quantity)
}

func TestHandlerAdjust(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := newService()
	it, err := svc.Create(context.Background(), tubes(3))
	require.NoError(t, err)

	g := gin.New()
	api := g.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Set(middleware.ContextPrincipal, models.Principal{UserID: "t1", Role: models.RoleTechnician})
	})
	NewHandler(svc).Register(api)

	post := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/inventory/"+it.ID.Hex()+"/adjust", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		g.ServeHTTP(w, req)
		return w
	}
	w := post(`{"delta":-2,"reason":"draws"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got models.InventoryItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 1, got.Quantity)

	assert.Equal(t, http.StatusConflict, post(`{"delta":-2,"reason":"draws"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{"reason":"draws"}`).Code)

	w = httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/inventory", bytes.NewBufferString(`{"sku":"a","name":"b"}`)))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/inventory?lowStock=true", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.InventoryItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}
