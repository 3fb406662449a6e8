package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/application"
)

type resolveAlertRequest struct {
	ResolvedBy string `json:"resolvedBy" binding:"required"`
	Notes      string `json:"notes"`
}

func (h *Handler) registerAlertRoutes(r *gin.RouterGroup) {
	alerts := r.Group("/alerts")
	{
		alerts.POST("/scan", h.ScanAlerts)
		alerts.GET("", h.ListAlerts)
		alerts.GET("/:alertId", h.GetAlert)
		alerts.POST("/:alertId/resolve", h.ResolveAlert)
	}
}

// ScanAlerts handles POST /alerts/scan and returns the alerts it opened
func (h *Handler) ScanAlerts(c *gin.Context) {
	opened, err := h.svc.Alerts.RunScan(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if opened == nil {
		opened = []*application.AlertDTO{}
	}
	c.JSON(http.StatusOK, gin.H{"opened": len(opened), "alerts": opened})
}

// ListAlerts handles GET /alerts
func (h *Handler) ListAlerts(c *gin.Context) {
	page, err := h.svc.Alerts.ListAlerts(c.Request.Context(), application.ListAlertsQuery{
		OpenOnly:  queryBool(c, "openOnly"),
		ProductID: c.Query("productId"),
		Page:      pageFrom(c),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetAlert handles GET /alerts/:alertId
func (h *Handler) GetAlert(c *gin.Context) {
	dto, err := h.svc.Alerts.GetAlert(c.Request.Context(), c.Param("alertId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

// ResolveAlert handles POST /alerts/:alertId/resolve
func (h *Handler) ResolveAlert(c *gin.Context) {
	var req resolveAlertRequest
	if !h.bind(c, &req) {
		return
	}
	dto, err := h.svc.Alerts.ResolveAlert(c.Request.Context(), c.Param("alertId"), req.ResolvedBy, req.Notes)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}
