package inventory

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

// Register routes under /inventory
func (h *Handler) Register(rg *gin.RouterGroup) {
	manage := middleware.RequireRoles(models.RoleLabManager)
	stock := middleware.RequireRoles(models.RoleLabManager, models.RoleTechnician, models.RolePhlebotomist)
	inv := rg.Group("/inventory")
	inv.GET("", h.List)
	inv.GET("/expiring", h.Expiring)
	inv.POST("", manage, h.Create)
	inv.GET("/:id", h.Get)
	inv.PATCH("/:id", manage, h.Update)
	inv.DELETE("/:id", manage, h.Delete)
	inv.POST("/:id/adjust", stock, h.Adjust)
}

func (h *Handler) List(c *gin.Context) {
	f := Filter{Category: c.Query("category")}
	if v := c.Query("lowStock"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			apierror.Respond(c, apierror.Invalid("lowStock must be a boolean"))
			return
		}
		f.LowStock = b
	}
	items, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) Expiring(c *gin.Context) {
	days := 30
	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			apierror.Respond(c, apierror.Invalid("days must be an integer"))
			return
		}
		days = n
	}
	items, err := h.svc.Expiring(c.Request.Context(), time.Now().UTC(), days)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) Create(c *gin.Context) {
	var it models.InventoryItem
	if err := c.ShouldBindJSON(&it); err != nil {
		apierror.BadRequest(c, err)
		return
	}
	created, err := h.svc.Create(c.Request.Context(), &it)
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
	it, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
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
	it, err := h.svc.Update(c.Request.Context(), id, u)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
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

type adjustRequest struct {
	Delta  int    `json:"delta" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

func (h *Handler) Adjust(c *gin.Context) {
	id, err := apierror.ParseID("id", c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, err)
		return
	}
	it, err := h.svc.Adjust(c.Request.Context(), id, req.Delta, req.Reason)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}
