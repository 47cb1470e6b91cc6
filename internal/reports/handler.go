package reports

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openlis/lis-api/internal/models"
	"github.com/openlis/lis-api/pkg/apierror"
	"github.com/openlis/lis-api/pkg/middleware"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// Register routes under /reports
func (h *Handler) Register(rg *gin.RouterGroup) {
	r := rg.Group("/reports", middleware.RequireRoles(models.RoleLabManager))
	r.GET("/dashboard", h.Dashboard)
	r.POST("/tat-export", h.ExportTAT)
}

func (h *Handler) Dashboard(c *gin.Context) {
	days := 7
	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			apierror.Respond(c, apierror.Invalid("days must be an integer"))
			return
		}
		days = n
	}
	d, err := h.svc.Dashboard(c.Request.Context(), time.Now(), days)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

type exportRequest struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (h *Handler) ExportTAT(c *gin.Context) {
	var req exportRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			apierror.BadRequest(c, err)
			return
		}
	}
	out, err := h.svc.ExportTAT(c.Request.Context(), time.Now().UTC(), req.From, req.To)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}
