package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/application"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/exception"
)

type createExceptionRequest struct {
	TrackingNumber string     `json:"trackingNumber" binding:"required"`
	Type           string     `json:"type" binding:"required"`
	Severity       string     `json:"severity"`
	Description    string     `json:"description"`
	Location       string     `json:"location"`
	ExceptionDate  *time.Time `json:"exceptionDate"`
	ReportedBy     string     `json:"reportedBy"`
	Priority       string     `json:"priority" binding:"omitempty,priority"`
}

type assignRequest struct {
	AssignedTo string `json:"assignedTo" binding:"required"`
}

type restockItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
}

type resolveExceptionRequest struct {
	Type                     string               `json:"type" binding:"required"`
	Description              string               `json:"description"`
	ActionTaken              string               `json:"actionTaken"`
	ResolutionDate           *time.Time           `json:"resolutionDate"`
	ResolvedBy               string               `json:"resolvedBy" binding:"required"`
	SatisfactionRating       int                  `json:"satisfactionRating" binding:"omitempty,min=1,max=5"`
	CompensationAmount       float64              `json:"compensationAmount" binding:"gte=0"`
	ReshipmentTrackingNumber string               `json:"reshipmentTrackingNumber"`
	CostIncurred             float64              `json:"costIncurred" binding:"gte=0"`
	RootCause                string               `json:"rootCause"`
	PreventiveMeasures       string               `json:"preventiveMeasures"`
	Notes                    string               `json:"notes"`
	RestockItems             []restockItemRequest `json:"restockItems" binding:"dive"`
}

func (r resolveExceptionRequest) input() *exception.ResolutionInput {
	items := make([]exception.RestockItem, 0, len(r.RestockItems))
	for _, it := range r.RestockItems {
		items = append(items, exception.RestockItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return &exception.ResolutionInput{
		Type:                     exception.ResolutionType(strings.ToUpper(r.Type)),
		Description:              r.Description,
		ActionTaken:              r.ActionTaken,
		ResolutionDate:           r.ResolutionDate,
		ResolvedBy:               r.ResolvedBy,
		SatisfactionRating:       r.SatisfactionRating,
		CompensationAmount:       r.CompensationAmount,
		ReshipmentTrackingNumber: r.ReshipmentTrackingNumber,
		CostIncurred:             r.CostIncurred,
		RootCause:                r.RootCause,
		PreventiveMeasures:       r.PreventiveMeasures,
		Notes:                    r.Notes,
		RestockItems:             items,
	}
}

func (h *Handler) registerExceptionRoutes(r *gin.RouterGroup) {
	exceptions := r.Group("/exceptions")
	{
		exceptions.POST("", h.CreateException)
		exceptions.GET("", h.ListExceptions)
		exceptions.GET("/:id", h.GetException)
		exceptions.POST("/:id/assign", h.AssignException)
		exceptions.POST("/:id/escalate", h.EscalateException)
		exceptions.POST("/:id/resolve", h.ResolveException)
	}
}

// CreateException handles POST /exceptions
func (h *Handler) CreateException(c *gin.Context) {
	var req createExceptionRequest
	if !h.bind(c, &req) {
		return
	}
	cmd := application.CreateExceptionCommand{
		TrackingNumber: req.TrackingNumber,
		Type:           exception.Type(strings.ToUpper(req.Type)),
		Severity:       exception.Severity(strings.ToUpper(req.Severity)),
		Description:    req.Description,
		Location:       req.Location,
		ReportedBy:     req.ReportedBy,
		Priority:       exception.Priority(strings.ToUpper(req.Priority)),
	}
	if req.ExceptionDate != nil {
		cmd.ExceptionDate = *req.ExceptionDate
	}
	dto, err := h.svc.Exceptions.CreateException(c.Request.Context(), cmd)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto)
}

// ListExceptions handles GET /exceptions
func (h *Handler) ListExceptions(c *gin.Context) {
	page, err := h.svc.Exceptions.ListExceptions(c.Request.Context(), application.ListExceptionsQuery{
		Status:         exception.Status(strings.ToUpper(c.Query("status"))),
		TrackingNumber: c.Query("trackingNumber"),
		Page:           pageFrom(c),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetException handles GET /exceptions/:id
func (h *Handler) GetException(c *gin.Context) {
	dto, err := h.svc.Exceptions.GetException(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

// AssignException handles POST /exceptions/:id/assign
func (h *Handler) AssignException(c *gin.Context) {
	var req assignRequest
	if !h.bind(c, &req) {
		return
	}
	dto, err := h.svc.Exceptions.AssignException(c.Request.Context(), c.Param("id"), req.AssignedTo)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

// EscalateException handles POST /exceptions/:id/escalate
func (h *Handler) EscalateException(c *gin.Context) {
	dto, err := h.svc.Exceptions.EscalateException(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

// ResolveException handles POST /exceptions/:id/resolve
func (h *Handler) ResolveException(c *gin.Context) {
	var req resolveExceptionRequest
	if !h.bind(c, &req) {
		return
	}
	dto, err := h.svc.Exceptions.ResolveException(c.Request.Context(), c.Param("id"), req.input())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}
