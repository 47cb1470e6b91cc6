package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestStatusMapping(t *testing.T) {
	cases := map[error]int{
		NotFound("patient"):                     http.StatusNotFound,
		Invalid("bad %s", "date"):               http.StatusBadRequest,
		Conflict("slot taken"):                  http.StatusConflict,
		fmt.Errorf("wrap: %w", ErrForbidden):    http.StatusForbidden,
		fmt.Errorf("wrap: %w", ErrUnauthorized): http.StatusUnauthorized,
		errors.New("mongo: connection reset"):   http.StatusInternalServerError,
	}
	for err, want := range cases {
		require.Equal(t, want, Status(err), err.Error())
	}
}

func TestRespondHidesInternalErrors(t *testing.T) {
	g := gin.New()
	g.GET("/boom", func(c *gin.Context) { Respond(c, errors.New("secret dsn leaked")) })
	g.GET("/missing", func(c *gin.Context) { Respond(c, NotFound("order")) })

	w := httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "internal server error", body["error"])

	w = httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "order not found", body["error"])
}

func TestParseID(t *testing.T) {
	_, err := ParseID("patientId", "nope")
	require.ErrorIs(t, err, ErrInvalid)
	require.Contains(t, err.Error(), "patientId")

	id, err := ParseID("id", "65f1c0ffee0000000000beef")
	require.NoError(t, err)
	require.Equal(t, "65f1c0ffee0000000000beef", id.Hex())
}
