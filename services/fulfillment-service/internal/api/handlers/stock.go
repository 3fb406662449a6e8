package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/application"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/ledger"
)

type registerProductRequest struct {
	ProductID       string  `json:"productId" binding:"required"`
	ProductName     string  `json:"productName" binding:"required"`
	SKU             string  `json:"sku" binding:"omitempty,sku"`
	InitialQuantity int     `json:"initialQuantity" binding:"gte=0"`
	MinimumLevel    *int    `json:"minimumLevel" binding:"omitempty,gte=0"`
	MaximumLevel    *int    `json:"maximumLevel" binding:"omitempty,gte=0"`
	ReorderPoint    *int    `json:"reorderPoint" binding:"omitempty,gte=0"`
	UnitCost        float64 `json:"unitCost" binding:"gte=0"`
	Currency        string  `json:"currency" binding:"omitempty,currency"`
}

type quantityRequest struct {
	Quantity int `json:"quantity" binding:"required,gt=0"`
}

type adjustRequest struct {
	Quantity int    `json:"quantity" binding:"gte=0"`
	Mode     string `json:"mode" binding:"required,oneof=ADD REMOVE SET add remove set"`
}

type levelsRequest struct {
	MinimumLevel int `json:"minimumLevel" binding:"gte=0"`
	MaximumLevel int `json:"maximumLevel" binding:"gte=0"`
	ReorderPoint int `json:"reorderPoint" binding:"gte=0"`
}

type ledgerOp func(*gin.Context, string, int) (*application.StockDTO, error)

func (h *Handler) registerStockRoutes(r *gin.RouterGroup) {
	stock := r.Group("/stock")
	{
		stock.POST("", h.RegisterProduct)
		stock.GET("", h.ListStock)
		stock.GET("/:productId", h.GetStock)
		stock.POST("/:productId/reserve", h.quantityOp(func(c *gin.Context, id string, qty int) (*application.StockDTO, error) {
			return h.svc.Ledger.Reserve(c.Request.Context(), id, qty)
		}))
		stock.POST("/:productId/release", h.quantityOp(func(c *gin.Context, id string, qty int) (*application.StockDTO, error) {
			return h.svc.Ledger.Release(c.Request.Context(), id, qty)
		}))
		stock.POST("/:productId/commit", h.quantityOp(func(c *gin.Context, id string, qty int) (*application.StockDTO, error) {
			return h.svc.Ledger.Commit(c.Request.Context(), id, qty)
		}))
		stock.POST("/:productId/restock", h.quantityOp(func(c *gin.Context, id string, qty int) (*application.StockDTO, error) {
			return h.svc.Ledger.Restock(c.Request.Context(), id, qty)
		}))
		stock.POST("/:productId/adjust", h.AdjustStock)
		stock.POST("/:productId/deactivate", h.DeactivateProduct)
		stock.POST("/:productId/activate", h.ActivateProduct)
		stock.PUT("/:productId/levels", h.UpdateLevels)
	}
}

// RegisterProduct handles POST /stock
func (h *Handler) RegisterProduct(c *gin.Context) {
	var req registerProductRequest
	if !h.bind(c, &req) {
		return
	}

	dto, err := h.svc.Ledger.RegisterProduct(c.Request.Context(), application.RegisterProductCommand{
		ProductID:       req.ProductID,
		ProductName:     req.ProductName,
		SKU:             req.SKU,
		InitialQuantity: req.InitialQuantity,
		MinimumLevel:    req.MinimumLevel,
		MaximumLevel:    req.MaximumLevel,
		ReorderPoint:    req.ReorderPoint,
		UnitCost:        req.UnitCost,
		Currency:        req.Currency,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto)
}

// ListStock handles GET /stock
func (h *Handler) ListStock(c *gin.Context) {
	page, err := h.svc.Ledger.ListStock(c.Request.Context(), application.ListStockQuery{
		Status:     ledger.StockStatus(strings.ToUpper(c.Query("status"))),
		ActiveOnly: queryBool(c, "activeOnly"),
		Page:       pageFrom(c),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetStock handles GET /stock/:productId
func (h *Handler) GetStock(c *gin.Context) {
	dto, err := h.svc.Ledger.GetStock(c.Request.Context(), c.Param("productId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

func (h *Handler) quantityOp(op ledgerOp) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req quantityRequest
		if !h.bind(c, &req) {
			return
		}
		dto, err := op(c, c.Param("productId"), req.Quantity)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, dto)
	}
}

// AdjustStock handles POST /stock/:productId/adjust
func (h *Handler) AdjustStock(c *gin.Context) {
	var req adjustRequest
	if !h.bind(c, &req) {
		return
	}
	dto, err := h.svc.Ledger.Adjust(c.Request.Context(), c.Param("productId"), req.Quantity, ledger.AdjustMode(strings.ToUpper(req.Mode)))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

// DeactivateProduct handles POST /stock/:productId/deactivate
func (h *Handler) DeactivateProduct(c *gin.Context) {
	dto, err := h.svc.Ledger.Deactivate(c.Request.Context(), c.Param("productId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

// ActivateProduct handles POST /stock/:productId/activate
func (h *Handler) ActivateProduct(c *gin.Context) {
	dto, err := h.svc.Ledger.Activate(c.Request.Context(), c.Param("productId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

// UpdateLevels handles PUT /stock/:productId/levels
func (h *Handler) UpdateLevels(c *gin.Context) {
	var req levelsRequest
	if !h.bind(c, &req) {
		return
	}
	dto, err := h.svc.Ledger.UpdateLevels(c.Request.Context(), c.Param("productId"), ledger.Levels{
		MinimumLevel: req.MinimumLevel,
		MaximumLevel: req.MaximumLevel,
		ReorderPoint: req.ReorderPoint,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}
