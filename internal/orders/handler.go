package orders

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

// Register mounts /orders, /accessions and /patients/:id/orders.
func (h *Handler) Register(rg *gin.RouterGroup) {
	entry := middleware.RequireRoles(models.RoleReceptionist, models.RolePhysician, models.RoleLabManager)
	collect := middleware.RequireRoles(models.RolePhlebotomist, models.RoleTechnician)
	bench := middleware.RequireRoles(models.RoleTechnician)
	verify := middleware.RequireRoles(models.RoleTechnician, models.RoleLabManager)

	o := rg.Group("/orders")
	o.GET("", h.List)
	o.POST("", entry, h.Create)
	o.GET("/:id", h.Get)
	o.PATCH("/:id", entry, h.Update)
	o.DELETE("/:id", middleware.RequireRoles(models.RoleLabManager), h.Delete)
	o.POST("/:id/cancel", entry, h.Cancel)
	o.POST("/:id/samples/:tubeType/collect", collect, h.Collect)
	o.POST("/:id/samples/:tubeType/accession", collect, h.Accession)
	o.POST("/:id/samples/:tubeType/reject", bench, h.Reject)
	o.PUT("/:id/tests/:code/result", bench, h.Result)
	o.POST("/:id/tests/:code/verify", verify, h.Verify)

	rg.GET("/accessions/:accession", h.ByAccession)
	rg.GET("/patients/:id/orders", h.ByPatient)
}

func parseFilter(c *gin.Context) (Filter, error) {
	f := Filter{Status: c.Query("status"), Priority: c.Query("priority")}
	if v := c.Query("patientId"); v != "" {
		id, err := apierror.ParseID("patientId", v)
		if err != nil {
			return f, err
		}
		f.PatientID = &id
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
	for param, dst := range map[string]*int64{"limit": &f.Limit, "skip": &f.Skip} {
		if v := c.Query(param); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < 0 {
				return f, apierror.Invalid("%s must be a non-negative integer", param)
			}
			*dst = n
		}
	}
	return f, nil
}

func (h *Handler) List(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	list, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) ByPatient(c *gin.Context) {
	id, err := apierror.ParseID("id", c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	f, err := parseFilter(c)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	f.PatientID = &id
	list, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

type createRequest struct {
	PatientID         string   `json:"patientId" binding:"required"`
	TestCodes         []string `json:"testCodes" binding:"required,min=1"`
	Priority          string   `json:"priority"`
	OrderingPhysician string   `json:"orderingPhysician"`
	Notes             string   `json:"notes"`
	Appointment       *Slot    `json:"appointment"`
}

func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, err)
		return
	}
	pid, err := apierror.ParseID("patientId", req.PatientID)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	o, err := h.svc.Create(c.Request.Context(), CreateInput{
		PatientID:         pid,
		TestCodes:         req.TestCodes,
		Priority:          req.Priority,
		OrderingPhysician: req.OrderingPhysician,
		Notes:             req.Notes,
		Appointment:       req.Appointment,
	})
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := apierror.ParseID("id", c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	o, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) ByAccession(c *gin.Context) {
	o, err := h.svc.GetByAccession(c.Request.Context(), c.Param("accession"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) Update(c *gin.Context) {
	id, err := apierror.ParseID("id", c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	var in UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		apierror.BadRequest(c, err)
		return
	}
	o, err := h.svc.Update(c.Request.Context(), id, in)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
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

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) Cancel(c *gin.Context) {
	id, err := apierror.ParseID("id", c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	var req reasonRequest
	// body is optional
	_ = c.ShouldBindJSON(&req)
	o, err := h.svc.Cancel(c.Request.Context(), id, req.Reason)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

type collectRequest struct {
	CollectedAt *time.Time `json:"collectedAt"`
}

func (h *Handler) Collect(c *gin.Context) {
	id, err := apierror.ParseID("id", c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	var req collectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			apierror.BadRequest(c, err)
			return
		}
	}
	o, err := h.svc.Collect(c.Request.Context(), id, c.Param("tubeType"), req.CollectedAt)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) Accession(c *gin.Context) {
	id, err := apierror.ParseID("id", c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	o, err := h.svc.Accession(c.Request.Context(), id, c.Param("tubeType"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) Reject(c *gin.Context) {
	id, err := apierror.ParseID("id", c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, err)
		return
	}
	o, err := h.svc.Reject(c.Request.Context(), id, c.Param("tubeType"), req.Reason)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) Result(c *gin.Context) {
	id, err := apierror.ParseID("id", c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	var in ResultInput
	if err := c.ShouldBindJSON(&in); err != nil {
		apierror.BadRequest(c, err)
		return
	}
	o, err := h.svc.EnterResult(c.Request.Context(), id, c.Param("code"), in)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) Verify(c *gin.Context) {
	id, err := apierror.ParseID("id", c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	o, err := h.svc.Verify(c.Request.Context(), id, c.Param("code"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}
