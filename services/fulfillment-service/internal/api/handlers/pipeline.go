package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/application"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/pipeline"
)

type startPickingRequest struct {
	AssignedTo string `json:"assignedTo"`
}

type recordPickRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
}

type completePickingRequest struct {
	// Picked maps product id to picked quantity; omitted lines keep what was recorded
	Picked map[string]int `json:"picked"`
}

type startPackingRequest struct {
	PackageType string                `json:"packageType"`
	PackageSize string                `json:"packageSize"`
	Carrier     string                `json:"carrier"`
	ServiceType string                `json:"serviceType"`
	Flags       pipeline.PackageFlags `json:"flags"`
}

type completePackingRequest struct {
	PackedBy   string              `json:"packedBy" binding:"required"`
	WeightKg   float64             `json:"weightKg" binding:"gt=0"`
	Dimensions pipeline.Dimensions `json:"dimensions"`
}

type startQualityCheckRequest struct {
	InspectorName string `json:"inspectorName"`
	CheckType     string `json:"checkType"`
}

type completeQualityCheckRequest struct {
	Scores            pipeline.Scores `json:"scores"`
	Flags             pipeline.Flags  `json:"flags"`
	IssuesFound       string          `json:"issuesFound"`
	CorrectiveActions string          `json:"correctiveActions"`
	Notes             string          `json:"notes"`
}

type recheckRequest struct {
	Notes string `json:"notes"`
}

type startShipmentRequest struct {
	Carrier     string     `json:"carrier"`
	ServiceType string     `json:"serviceType"`
	ScheduledAt *time.Time `json:"scheduledAt"`
	DockDoor    string     `json:"dockDoor"`
}

type completeShipmentRequest struct {
	DispatchedBy string `json:"dispatchedBy" binding:"required"`
}

type trackingEventRequest struct {
	EventType         string     `json:"eventType" binding:"required"`
	Description       string     `json:"description"`
	Location          string     `json:"location"`
	EventTimestamp    *time.Time `json:"eventTimestamp"`
	Carrier           string     `json:"carrier"`
	CarrierStatusCode string     `json:"carrierStatusCode"`
	SignedBy          string     `json:"signedBy"`
	IsMilestone       bool       `json:"isMilestone"`
}

func (h *Handler) registerPipelineRoutes(r *gin.RouterGroup) {
	r.POST("/orders/:orderId/picklists", h.StartPicking)
	r.POST("/picklists/:id/picks", h.RecordPick)
	r.POST("/picklists/:id/complete", h.CompletePicking)

	r.POST("/orders/:orderId/packages", h.StartPacking)
	r.POST("/packages/:id/complete", h.CompletePacking)

	r.POST("/orders/:orderId/quality-checks", h.StartQualityCheck)
	r.POST("/quality-checks/:id/complete", h.CompleteQualityCheck)
	r.POST("/quality-checks/:id/recheck", h.RequestRecheck)

	r.POST("/orders/:orderId/shipments", h.StartShipment)
	r.POST("/shipments/:id/complete", h.CompleteShipment)

	tracking := r.Group("/tracking/:trackingNumber")
	{
		tracking.POST("/events", h.RecordTrackingEvent)
		tracking.GET("/events", h.ListTrackingEvents)
		tracking.GET("/status", h.GetDeliveryStatus)
	}
}

// StartPicking handles POST /orders/:orderId/picklists
func (h *Handler) StartPicking(c *gin.Context) {
	var req startPickingRequest
	if !h.bindOptional(c, &req) {
		return
	}
	dto, err := h.svc.Pipeline.StartPicking(c.Request.Context(), application.StartPickingCommand{
		OrderID:    c.Param("orderId"),
		AssignedTo: req.AssignedTo,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto)
}

// RecordPick handles POST /picklists/:id/picks
func (h *Handler) RecordPick(c *gin.Context) {
	var req recordPickRequest
	if !h.bind(c, &req) {
		return
	}
	dto, err := h.svc.Pipeline.RecordPick(c.Request.Context(), c.Param("id"), req.ProductID, req.Quantity)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

// CompletePicking handles POST /picklists/:id/complete
func (h *Handler) CompletePicking(c *gin.Context) {
	var req completePickingRequest
	if !h.bindOptional(c, &req) {
		return
	}
	dto, err := h.svc.Pipeline.CompletePicking(c.Request.Context(), c.Param("id"), req.Picked)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

// StartPacking handles POST /orders/:orderId/packages
func (h *Handler) StartPacking(c *gin.Context) {
	var req startPackingRequest
	if !h.bindOptional(c, &req) {
		return
	}
	dto, err := h.svc.Pipeline.StartPacking(c.Request.Context(), application.StartPackingCommand{
		OrderID:     c.Param("orderId"),
		PackageType: pipeline.PackageType(strings.ToUpper(req.PackageType)),
		PackageSize: pipeline.PackageSize(strings.ToUpper(req.PackageSize)),
		Carrier:     req.Carrier,
		ServiceType: req.ServiceType,
		Flags:       req.Flags,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto)
}

// CompletePacking handles POST /packages/:id/complete
func (h *Handler) CompletePacking(c *gin.Context) {
	var req completePackingRequest
	if !h.bind(c, &req) {
		return
	}
	dto, err := h.svc.Pipeline.CompletePacking(c.Request.Context(), application.CompletePackingCommand{
		PackageID:  c.Param("id"),
		PackedBy:   req.PackedBy,
		WeightKg:   req.WeightKg,
		Dimensions: req.Dimensions,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

// StartQualityCheck handles POST /orders/:orderId/quality-checks
func (h *Handler) StartQualityCheck(c *gin.Context) {
	var req startQualityCheckRequest
	if !h.bindOptional(c, &req) {
		return
	}
	dto, err := h.svc.Pipeline.StartQualityCheck(c.Request.Context(), application.StartQualityCheckCommand{
		OrderID:       c.Param("orderId"),
		InspectorName: req.InspectorName,
		CheckType:     pipeline.CheckType(strings.ToUpper(req.CheckType)),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto)
}

// CompleteQualityCheck handles POST /quality-checks/:id/complete
func (h *Handler) CompleteQualityCheck(c *gin.Context) {
	var req completeQualityCheckRequest
	if !h.bind(c, &req) {
		return
	}
	dto, err := h.svc.Pipeline.CompleteQualityCheck(c.Request.Context(), c.Param("id"), pipeline.Inspection{
		Scores:            req.Scores,
		Flags:             req.Flags,
		IssuesFound:       req.IssuesFound,
		CorrectiveActions: req.CorrectiveActions,
		Notes:             req.Notes,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

// RequestRecheck handles POST /quality-checks/:id/recheck
func (h *Handler) RequestRecheck(c *gin.Context) {
	var req recheckRequest
	if !h.bindOptional(c, &req) {
		return
	}
	dto, err := h.svc.Pipeline.RequestRecheck(c.Request.Context(), c.Param("id"), req.Notes)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

// StartShipment handles POST /orders/:orderId/shipments
func (h *Handler) StartShipment(c *gin.Context) {
	var req startShipmentRequest
	if !h.bindOptional(c, &req) {
		return
	}
	cmd := application.StartShipmentCommand{
		OrderID:     c.Param("orderId"),
		Carrier:     req.Carrier,
		ServiceType: req.ServiceType,
		DockDoor:    req.DockDoor,
	}
	if req.ScheduledAt != nil {
		cmd.ScheduledAt = *req.ScheduledAt
	}
	dto, err := h.svc.Pipeline.StartShipment(c.Request.Context(), cmd)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto)
}

// CompleteShipment handles POST /shipments/:id/complete
func (h *Handler) CompleteShipment(c *gin.Context) {
	var req completeShipmentRequest
	if !h.bind(c, &req) {
		return
	}
	dto, err := h.svc.Pipeline.CompleteShipment(c.Request.Context(), c.Param("id"), req.DispatchedBy)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

// RecordTrackingEvent handles POST /tracking/:trackingNumber/events
func (h *Handler) RecordTrackingEvent(c *gin.Context) {
	var req trackingEventRequest
	if !h.bind(c, &req) {
		return
	}
	at := time.Now().UTC()
	if req.EventTimestamp != nil {
		at = *req.EventTimestamp
	}
	dto, err := h.svc.Pipeline.RecordTrackingEvent(c.Request.Context(), application.RecordTrackingEventCommand{
		TrackingNumber: c.Param("trackingNumber"),
		Params: pipeline.TrackingParams{
			EventType:         pipeline.TrackingEventType(strings.ToUpper(req.EventType)),
			Description:       req.Description,
			Location:          req.Location,
			EventTimestamp:    at,
			Carrier:           req.Carrier,
			CarrierStatusCode: req.CarrierStatusCode,
			SignedBy:          req.SignedBy,
			IsMilestone:       req.IsMilestone,
		},
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto)
}

// ListTrackingEvents handles GET /tracking/:trackingNumber/events
func (h *Handler) ListTrackingEvents(c *gin.Context) {
	events, err := h.svc.Pipeline.ListTrackingEvents(c.Request.Context(), c.Param("trackingNumber"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if events == nil {
		events = []*pipeline.TrackingEvent{}
	}
	c.JSON(http.StatusOK, gin.H{"trackingNumber": c.Param("trackingNumber"), "events": events})
}

// GetDeliveryStatus handles GET /tracking/:trackingNumber/status
func (h *Handler) GetDeliveryStatus(c *gin.Context) {
	status, err := h.svc.Pipeline.GetDeliveryStatus(c.Request.Context(), c.Param("trackingNumber"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}
