package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/application"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/returns"
)

type returnItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
	Condition string `json:"condition"`
}

type requestReturnRequest struct {
	OrderID            string              `json:"orderId" binding:"required"`
	Reason             string              `json:"reason" binding:"required"`
	Type               string              `json:"type"`
	Description        string              `json:"description"`
	Items              []returnItemRequest `json:"items" binding:"required,min=1,dive"`
	RestockingFee      float64             `json:"restockingFee" binding:"gte=0"`
	ShippingCostRefund float64             `json:"shippingCostRefund" binding:"gte=0"`
}

type approveReturnRequest struct {
	ApprovedBy string `json:"approvedBy" binding:"required"`
}

type rejectReturnRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type inspectionItemRequest struct {
	ProductID       string `json:"productId" binding:"required"`
	Condition       string `json:"condition"`
	RestockQuantity int    `json:"restockQuantity" binding:"gte=0"`
	Notes           string `json:"notes"`
}

type inspectReturnRequest struct {
	QualityGrade string                  `json:"qualityGrade" binding:"required"`
	Items        []inspectionItemRequest `json:"items" binding:"dive"`
	Notes        string                  `json:"notes"`
}

type completeReturnRequest struct {
	CompletedBy string `json:"completedBy" binding:"required"`
}

func (h *Handler) registerReturnRoutes(r *gin.RouterGroup) {
	rg := r.Group("/returns")
	{
		rg.POST("", h.RequestReturn)
		rg.GET("", h.ListReturns)
		rg.GET("/:id", h.GetReturn)
		rg.POST("/:id/approve", h.ApproveReturn)
		rg.POST("/:id/reject", h.RejectReturn)
		rg.POST("/:id/receive", h.ReceiveReturn)
		rg.POST("/:id/inspect", h.InspectReturn)
		rg.POST("/:id/complete", h.CompleteReturn)
	}
}

// RequestReturn handles POST /returns
func (h *Handler) RequestReturn(c *gin.Context) {
	var req requestReturnRequest
	if !h.bind(c, &req) {
		return
	}
	items := make([]returns.ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, returns.ItemInput{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Condition: returns.Condition(strings.ToUpper(it.Condition)),
		})
	}
	dto, err := h.svc.Returns.RequestReturn(c.Request.Context(), application.RequestReturnCommand{
		OrderID:            req.OrderID,
		Reason:             returns.Reason(strings.ToUpper(req.Reason)),
		Type:               returns.Type(strings.ToUpper(req.Type)),
		Description:        req.Description,
		Items:              items,
		RestockingFee:      req.RestockingFee,
		ShippingCostRefund: req.ShippingCostRefund,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto)
}

// ListReturns handles GET /returns
func (h *Handler) ListReturns(c *gin.Context) {
	page, err := h.svc.Returns.ListReturns(c.Request.Context(), application.ListReturnsQuery{
		OrderID: c.Query("orderId"),
		Status:  returns.Status(strings.ToUpper(c.Query("status"))),
		Page:    pageFrom(c),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetReturn handles GET /returns/:id
func (h *Handler) GetReturn(c *gin.Context) {
	dto, err := h.svc.Returns.GetReturn(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

// ApproveReturn handles POST /returns/:id/approve
func (h *Handler) ApproveReturn(c *gin.Context) {
	var req approveReturnRequest
	if !h.bind(c, &req) {
		return
	}
	h.respondReturn(c)(h.svc.Returns.ApproveReturn(c.Request.Context(), c.Param("id"), req.ApprovedBy))
}

// RejectReturn handles POST /returns/:id/reject
func (h *Handler) RejectReturn(c *gin.Context) {
	var req rejectReturnRequest
	if !h.bind(c, &req) {
		return
	}
	h.respondReturn(c)(h.svc.Returns.RejectReturn(c.Request.Context(), c.Param("id"), req.Reason))
}

// ReceiveReturn handles POST /returns/:id/receive
func (h *Handler) ReceiveReturn(c *gin.Context) {
	h.respondReturn(c)(h.svc.Returns.ReceiveReturn(c.Request.Context(), c.Param("id")))
}

// InspectReturn handles POST /returns/:id/inspect
func (h *Handler) InspectReturn(c *gin.Context) {
	var req inspectReturnRequest
	if !h.bind(c, &req) {
		return
	}
	items := make([]returns.InspectionItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, returns.InspectionItem{
			ProductID:       it.ProductID,
			Condition:       returns.Condition(strings.ToUpper(it.Condition)),
			RestockQuantity: it.RestockQuantity,
			Notes:           it.Notes,
		})
	}
	h.respondReturn(c)(h.svc.Returns.InspectReturn(c.Request.Context(), application.InspectReturnCommand{
		ReturnID:     c.Param("id"),
		QualityGrade: returns.Grade(strings.ToUpper(req.QualityGrade)),
		Items:        items,
		Notes:        req.Notes,
	}))
}

// CompleteReturn handles POST /returns/:id/complete
func (h *Handler) CompleteReturn(c *gin.Context) {
	var req completeReturnRequest
	if !h.bind(c, &req) {
		return
	}
	h.respondReturn(c)(h.svc.Returns.CompleteReturn(c.Request.Context(), c.Param("id"), req.CompletedBy))
}

func (h *Handler) respondReturn(c *gin.Context) func(*application.ReturnDTO, error) {
	return func(dto *application.ReturnDTO, err error) {
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, dto)
	}
}
