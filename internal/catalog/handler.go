package catalog

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/openlis/lis-api/internal/models"
	"github.com/openlis/lis-api/pkg/apierror"
	"github.com/openlis/lis-api/pkg/middleware"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// Register routes under /test-catalog and /instruments
func (h *Handler) Register(rg *gin.RouterGroup) {
	manage := middleware.RequireRoles(models.RoleLabManager)

	t := rg.Group("/test-catalog")
	t.GET("", h.ListTests)
	t.POST("", manage, h.CreateTest)
	t.GET("/:id", h.GetTest)
	t.PATCH("/:id", manage, h.UpdateTest)
	t.DELETE("/:id", manage, h.DeleteTest)

	i := rg.Group("/instruments")
	i.GET("", h.ListInstruments)
	i.POST("", manage, h.CreateInstrument)
	i.GET("/:id", h.GetInstrument)
	i.PATCH("/:id", manage, h.UpdateInstrument)
	i.DELETE("/:id", manage, h.DeleteInstrument)
	i.POST("/:id/calibrate", middleware.RequireRoles(models.RoleLabManager, models.RoleTechnician), h.Calibrate)
}

func (h *Handler) ListTests(c *gin.Context) {
	f := TestFilter{Department: c.Query("department")}
	if v := c.Query("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			apierror.Respond(c, apierror.Invalid("active must be true or false"))
			return
		}
		f.Active = &b
	}
	list, err := h.svc.ListTests(c.Request.Context(), f)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) CreateTest(c *gin.Context) {
	var req struct {
		models.TestCatalogItem
		Active *bool `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, err)
		return
	}
	t := req.TestCatalogItem
	t.Active = req.Active == nil || *req.Active
	created, err := h.svc.CreateTest(c.Request.Context(), &t)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetTest(c *gin.Context) {
	id, err := apierror.ParseID("id", c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	t, err := h.svc.GetTest(c.Request.Context(), id)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) UpdateTest(c *gin.Context) {
	id, err := apierror.ParseID("id", c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	var u TestUpdate
	if err := c.ShouldBindJSON(&u); err != nil {
		apierror.BadRequest(c, err)
		return
	}
	t, err := h.svc.UpdateTest(c.Request.Context(), id, u)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) DeleteTest(c *gin.Context) {
	id, err := apierror.ParseID("id", c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	if err := h.svc.DeleteTest(c.Request.Context(), id); err != nil {
		apierror.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListInstruments(c *gin.Context) {
	list, err := h.svc.ListInstruments(c.Request.Context(), c.Query("status"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) CreateInstrument(c *gin.Context) {
	var in models.Instrument
	if err := c.ShouldBindJSON(&in); err != nil {
		apierror.BadRequest(c, err)
		return
	}
	created, err := h.svc.CreateInstrument(c.Request.Context(), &in)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetInstrument(c *gin.Context) {
	id, err := apierror.ParseID("id", c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	in, err := h.svc.GetInstrument(c.Request.Context(), id)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, in)
}

func (h *Handler) UpdateInstrument(c *gin.Context) {
	id, err := apierror.ParseID("id", c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	var u InstrumentUpdate
	if err := c.ShouldBindJSON(&u); err != nil {
		apierror.BadRequest(c, err)
		return
	}
	in, err := h.svc.UpdateInstrument(c.Request.Context(), id, u)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, in)
}

func (h *Handler) Calibrate(c *gin.Context) {
	id, err := apierror.ParseID("id", c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	in, err := h.svc.Calibrate(c.Request.Context(), id)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, in)
}

func (h *Handler) DeleteInstrument(c *gin.Context) {
	id, err := apierror.ParseID("id", c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	if err := h.svc.DeleteInstrument(c.Request.Context(), id); err != nil {
		apierror.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
