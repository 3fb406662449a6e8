package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/application"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/order"
)

type addressRequest struct {
	Street     string `json:"street" binding:"required"`
	City       string `json:"city" binding:"required"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode" binding:"required"`
	Country    string `json:"country" binding:"required"`
}

func (a addressRequest) toDomain() order.Address {
	return order.Address{Street: a.Street, City: a.City, State: a.State, PostalCode: a.PostalCode, Country: a.Country}
}

type lineItemRequest struct {
	ProductID            string  `json:"productId" binding:"required"`
	ProductName          string  `json:"productName"`
	SKU                  string  `json:"sku"`
	Quantity             int     `json:"quantity" binding:"required,gt=0"`
	UnitPrice            float64 `json:"unitPrice" binding:"gte=0"`
	WeightKg             float64 `json:"weightKg" binding:"gte=0"`
	IsFragile            bool    `json:"isFragile"`
	RequiresQualityCheck bool    `json:"requiresQualityCheck"`
}

type createOrderRequest struct {
	Customer struct {
		ID    string `json:"id" binding:"required"`
		Name  string `json:"name" binding:"required"`
		Email string `json:"email" binding:"omitempty,email"`
	} `json:"customer" binding:"required"`
	ShippingAddress       addressRequest    `json:"shippingAddress" binding:"required"`
	BillingAddress        *addressRequest   `json:"billingAddress"`
	Currency              string            `json:"currency" binding:"omitempty,currency"`
	PaymentMethod         string            `json:"paymentMethod"`
	Priority              string            `json:"priority" binding:"omitempty,priority"`
	Items                 []lineItemRequest `json:"items" binding:"required,min=1,dive"`
	ShippingCost          float64           `json:"shippingCost" binding:"gte=0"`
	TaxAmount             float64           `json:"taxAmount" binding:"gte=0"`
	DiscountAmount        float64           `json:"discountAmount" binding:"gte=0"`
	EstimatedDeliveryDate *time.Time        `json:"estimatedDeliveryDate"`
}

func (r createOrderRequest) command() application.CreateOrderCommand {
	items := make([]order.LineItemInput, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, order.LineItemInput{
			ProductID:            it.ProductID,
			ProductName:          it.ProductName,
			SKU:                  it.SKU,
			Quantity:             it.Quantity,
			UnitPrice:            it.UnitPrice,
			WeightKg:             it.WeightKg,
			IsFragile:            it.IsFragile,
			RequiresQualityCheck: it.RequiresQualityCheck,
		})
	}
	cmd := application.CreateOrderCommand{
		Customer:              order.Customer{ID: r.Customer.ID, Name: r.Customer.Name, Email: r.Customer.Email},
		ShippingAddress:       r.ShippingAddress.toDomain(),
		Currency:              strings.ToUpper(r.Currency),
		PaymentMethod:         r.PaymentMethod,
		Priority:              order.Priority(strings.ToUpper(r.Priority)),
		Items:                 items,
		ShippingCost:          r.ShippingCost,
		TaxAmount:             r.TaxAmount,
		DiscountAmount:        r.DiscountAmount,
		EstimatedDeliveryDate: r.EstimatedDeliveryDate,
	}
	if r.BillingAddress != nil {
		billing := r.BillingAddress.toDomain()
		cmd.BillingAddress = &billing
	}
	return cmd
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type paymentRequest struct {
	PaymentStatus string `json:"paymentStatus" binding:"required"`
}

func (h *Handler) registerOrderRoutes(r *gin.RouterGroup) {
	orders := r.Group("/orders")
	{
		orders.POST("", h.CreateOrder)
		orders.GET("", h.ListOrders)
		orders.GET("/number/:orderNumber", h.GetOrderByNumber)
		orders.GET("/:orderId", h.GetOrder)
		orders.PUT("/:orderId/status", h.UpdateOrderStatus)
		orders.POST("/:orderId/cancel", h.CancelOrder)
		orders.PUT("/:orderId/payment", h.UpdatePaymentStatus)
		orders.GET("/:orderId/pipeline", h.GetPipeline)
	}
}

// CreateOrder handles POST /orders
func (h *Handler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if !h.bind(c, &req) {
		return
	}
	dto, err := h.svc.Orders.CreateOrder(c.Request.Context(), req.command())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto)
}

// ListOrders handles GET /orders
func (h *Handler) ListOrders(c *gin.Context) {
	page, err := h.svc.Orders.ListOrders(c.Request.Context(), application.ListOrdersQuery{
		Status:     order.Status(strings.ToUpper(c.Query("status"))),
		CustomerID: c.Query("customerId"),
		Page:       pageFrom(c),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetOrder handles GET /orders/:orderId
func (h *Handler) GetOrder(c *gin.Context) {
	dto, err := h.svc.Orders.GetOrder(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

// GetOrderByNumber handles GET /orders/number/:orderNumber
func (h *Handler) GetOrderByNumber(c *gin.Context) {
	dto, err := h.svc.Orders.GetOrderByNumber(c.Request.Context(), c.Param("orderNumber"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

// UpdateOrderStatus handles PUT /orders/:orderId/status
func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	var req updateStatusRequest
	if !h.bind(c, &req) {
		return
	}
	target := order.Status(strings.ToUpper(req.Status))
	dto, err := h.svc.Orders.UpdateOrderStatus(c.Request.Context(), c.Param("orderId"), target, req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

// CancelOrder handles POST /orders/:orderId/cancel
func (h *Handler) CancelOrder(c *gin.Context) {
	var req cancelOrderRequest
	if !h.bindOptional(c, &req) {
		return
	}
	dto, err := h.svc.Orders.CancelOrder(c.Request.Context(), c.Param("orderId"), req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

// UpdatePaymentStatus handles PUT /orders/:orderId/payment
func (h *Handler) UpdatePaymentStatus(c *gin.Context) {
	var req paymentRequest
	if !h.bind(c, &req) {
		return
	}
	status := order.PaymentStatus(strings.ToUpper(req.PaymentStatus))
	dto, err := h.svc.Orders.UpdatePaymentStatus(c.Request.Context(), c.Param("orderId"), status)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

// GetPipeline handles GET /orders/:orderId/pipeline
func (h *Handler) GetPipeline(c *gin.Context) {
	dto, err := h.svc.Pipeline.GetPipeline(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}
