package appointments

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

// Register routes under /appointments
func (h *Handler) Register(rg *gin.RouterGroup) {
	write := middleware.RequireRoles(models.RoleReceptionist, models.RolePhlebotomist, models.RoleLabManager)
	a := rg.Group("/appointments")
	a.GET("", h.List)
	a.POST("", write, h.Create)
	a.GET("/:id", h.Get)
	a.GET("/:id/view", h.View)
	a.PATCH("/:id", write, h.Update)
	a.DELETE("/:id", write, h.Delete)
	a.POST("/:id/check-in", write, h.transition(models.AppointmentCheckedIn))
	a.POST("/:id/complete", write, h.transition(models.AppointmentCompleted))
	a.POST("/:id/cancel", write, h.transition(models.AppointmentCancelled))
	a.POST("/:id/no-show", write, h.transition(models.AppointmentNoShow))
}

// parseFilter reads date=YYYY-MM-DD (one UTC day) or from/to (RFC3339), status,
// patientId and limit.
func parseFilter(c *gin.Context) (Filter, error) {
	f := Filter{Status: c.Query("status")}
	if v := c.Query("date"); v != "" {
		day, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, apierror.Invalid("date must be YYYY-MM-DD")
		}
		next := day.Add(24 * time.Hour)
		f.From, f.To = &day, &next
	}
	for param, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		if v := c.Query(param); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return f, apierror.Invalid("%s must be RFC3339", param)
			}
			*dst = &t
		}
	}
	if v := c.Query("patientId"); v != "" {
		id, err := apierror.ParseID("patientId", v)
		if err != nil {
			return f, err
		}
		f.PatientID = &id
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return f, apierror.Invalid("limit must be a non-negative integer")
		}
		f.Limit = n
	}
	return f, nil
}

func (h *Handler) List(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	if c.Query("view") == "full" {
		views, err := h.svc.Views(c.Request.Context(), f)
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, views)
		return
	}
	list, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) Create(c *gin.Context) {
	var b Booking
	if err := c.ShouldBindJSON(&b); err != nil {
		apierror.BadRequest(c, err)
		return
	}
	a, err := h.svc.Create(c.Request.Context(), b)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := apierror.ParseID("id", c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	a, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) View(c *gin.Context) {
	id, err := apierror.ParseID("id", c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	v, err := h.svc.View(c.Request.Context(), id)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *Handler) Update(c *gin.Context) {
	id, err := apierror.ParseID("id", c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	var u Update
	if err := c.ShouldBindJSON(&u); err != nil {
		apierror.BadRequest(c, err)
		return
	}
	a, err := h.svc.Update(c.Request.Context(), id, u)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) transition(status string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := apierror.ParseID("id", c.Param("id"))
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		a, err := h.svc.SetStatus(c.Request.Context(), id, status)
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, a)
	}
}

func (h *Handler) Delete(c *gin.Context) {
	id, err := apierror.ParseID("id", c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		apierror.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
