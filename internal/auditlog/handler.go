package auditlog

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openlis/lis-api/pkg/apierror"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// Register mounts GET /audit-logs on rg. Role checks are applied by the caller.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/audit-logs", h.List)
}

func (h *Handler) List(c *gin.Context) {
	f := Filter{
		EntityType: c.Query("entityType"),
		EntityID:   c.Query("entityId"),
		UserID:     c.Query("userId"),
		Action:     c.Query("action"),
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			apierror.Respond(c, apierror.Invalid("limit must be a non-negative integer"))
			return
		}
		f.Limit = n
	}
	for param, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		if v := c.Query(param); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				apierror.Respond(c, apierror.Invalid("%s must be RFC3339", param))
				return
			}
			*dst = &t
		}
	}
	logs, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}
