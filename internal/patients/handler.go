package patients

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/openlis/lis-api/internal/models"
	"github.com/openlis/lis-api/pkg/apierror"
	"github.com/openlis/lis-api/pkg/middleware"
)

// Handler exposes patients over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// Register routes under /patients
func (h *Handler) Register(rg *gin.RouterGroup) {
	write := middleware.RequireRoles(models.RoleReceptionist, models.RoleLabManager, models.RolePhlebotomist)
	p := rg.Group("/patients")
	p.GET("", h.List)
	p.POST("", write, h.Create)
	p.GET("/:id", h.Get)
	p.PATCH("/:id", write, h.Update)
	p.DELETE("/:id", middleware.RequireRoles(models.RoleLabManager), h.Delete)
}

func (h *Handler) List(c *gin.Context) {
	f := Filter{Query: c.Query("q")}
	if mrn := c.Query("mrn"); mrn != "" {
		p, err := h.svc.GetByMRN(c.Request.Context(), mrn)
		if err != nil {
			apierror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, []models.Patient{*p})
		return
	}
	f.Limit, _ = strconv.ParseInt(c.Query("limit"), 10, 64)
	f.Skip, _ = strconv.ParseInt(c.Query("skip"), 10, 64)
	list, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) Create(c *gin.Context) {
	var p models.Patient
	if err := c.ShouldBindJSON(&p); err != nil {
		apierror.BadRequest(c, err)
		return
	}
	created, err := h.svc.Create(c.Request.Context(), &p)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := apierror.ParseID("id", c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	p, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
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
	p, err := h.svc.Update(c.Request.Context(), id, u)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
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
