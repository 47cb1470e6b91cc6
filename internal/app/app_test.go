package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/openlis/lis-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:     config.ServerConfig{AllowedOrigins: []string{"*"}},
		MongoDB:    config.MongoDBConfig{Database: "lis"},
		JWT:        config.JWTConfig{Secret: "test-secret", Issuer: "lis-api", AccessTokenTTL: 15 * time.Minute, RefreshTokenTTL: time.Hour},
		MinIO:      config.MinIOConfig{Bucket: "lis-reports"},
		Scheduling: config.SchedulingConfig{DefaultDurationMinutes: 15, NoShowGraceMinutes: 30, LockTTL: 5 * time.Second},
		Jobs:       config.JobsConfig{ExpiryWindowDays: 30},
		Bootstrap:  config.BootstrapConfig{AdminUsername: "admin", AdminPassword: "change-me-now"},
	}
}

type client struct {
	t      *testing.T
	router *gin.Engine
	token  string
}

func newClient(t *testing.T, cfg *config.Config) *client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	a, err := New(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(context.Background()) })
	require.NoError(t, a.Bootstrap(ctx))
	// a second run finds the existing account
	require.NoError(t, a.Bootstrap(ctx))
	return &client{t: t, router: a.Handler()}
}

func (c *client) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)
	return w
}

func (c *client) login(username, password string) {
	w := c.do(http.MethodPost, "/api/v1/auth/login", map[string]string{"username": username, "password": password})
	require.Equal(c.t, http.StatusOK, w.Code, w.Body.String())
	var tok struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &tok))
	c.token = tok.AccessToken
}

func decodeID(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var v struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	require.NotEmpty(t, v.ID)
	return v.ID
}

func TestOperationalEndpoints(t *testing.T) {
	c := newClient(t, testConfig())

	w := c.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = c.do(http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ready"`)

	w = c.do(http.MethodGet, "/swagger/doc.json", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = c.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "lis_http_requests_total")

	w = c.do(http.MethodGet, "/api/v1/patients", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOrderWithAppointmentEndToEnd(t *testing.T) {
	c := newClient(t, testConfig())
	c.login("admin", "change-me-now")

	w := c.do(http.MethodPost, "/api/v1/patients", map[string]interface{}{
		"firstName": "Ada", "lastName": "Lovelace", "dateOfBirth": "1985-12-10T00:00:00Z", "sex": "female",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	patientID := decodeID(t, w)

	w = c.do(http.MethodPost, "/api/v1/test-catalog", map[string]interface{}{
		"code": "GLU", "name": "Glucose", "specimenType": "blood", "tubeType": "gray",
		"units": "mg/dL", "referenceRange": map[string]float64{"low": 70, "high": 99},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	slot := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Hour)
	order := map[string]interface{}{
		"patientId": patientID,
		"testCodes": []string{"glu"},
		"appointment": map[string]interface{}{
			"scheduledAt": slot, "durationMinutes": 15, "location": "Draw room 1",
		},
	}
	w = c.do(http.MethodPost, "/api/v1/orders", order)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	orderID := decodeID(t, w)

	// same slot for a second order conflicts
	w = c.do(http.MethodPost, "/api/v1/orders", order)
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	w = c.do(http.MethodGet, "/api/v1/patients/"+patientID+"/orders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), orderID)

	w = c.do(http.MethodDelete, "/api/v1/patients/"+patientID, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = c.do(http.MethodGet, "/api/v1/audit-logs?entityType=order", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), orderID)

	w = c.do(http.MethodGet, "/api/v1/reports/dashboard", nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestRolesAreEnforced(t *testing.T) {
	c := newClient(t, testConfig())
	c.login("admin", "change-me-now")

	w := c.do(http.MethodPost, "/api/v1/users", map[string]string{
		"username": "rita", "name": "Rita Reception", "role": "receptionist", "password": "front-desk-1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	c.login("rita", "front-desk-1")
	assert.Equal(t, http.StatusForbidden, c.do(http.MethodGet, "/api/v1/users", nil).Code)
	assert.Equal(t, http.StatusForbidden, c.do(http.MethodGet, "/api/v1/audit-logs", nil).Code)
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/v1/patients", nil).Code)
}

func TestRedisBackedSessionsAndLogout(t *testing.T) {
	s := mr.RunT(t)
	cfg := testConfig()
	cfg.Redis = config.RedisConfig{Host: s.Host(), Port: s.Port()}
	c := newClient(t, cfg)
	c.login("admin", "change-me-now")

	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/v1/auth/me", nil).Code)
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/ready", nil).Code)

	w := c.do(http.MethodPost, "/api/v1/auth/logout", map[string]string{"refreshToken": "unknown"})
	require.Less(t, w.Code, 300, w.Body.String())
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/api/v1/auth/me", nil).Code)
}

func TestUnreachableRedisFailsStartup(t *testing.T) {
	cfg := testConfig()
	cfg.Redis = config.RedisConfig{Host: "127.0.0.1", Port: "1"}
	_, err := New(context.Background(), cfg)
	require.Error(t, err)
}

func TestRateLimitAppliesToAPIOnly(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 1}
	c := newClient(t, cfg)

	creds := map[string]string{"username": "admin", "password": "wrong-password"}
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodPost, "/api/v1/auth/login", creds).Code)
	assert.Equal(t, http.StatusTooManyRequests, c.do(http.MethodPost, "/api/v1/auth/login", creds).Code)

	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/health", nil).Code)
}
