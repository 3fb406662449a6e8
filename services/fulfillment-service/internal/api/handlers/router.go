package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/fulfillment/shared/pkg/logging"
	"github.com/wms-platform/fulfillment/shared/pkg/metrics"
	"github.com/wms-platform/fulfillment/shared/pkg/middleware"
)

// RouterConfig configures the gin engine around the handler
type RouterConfig struct {
	ServiceName   string
	Logger        *logging.Logger
	Metrics       *metrics.Metrics
	EnableTracing bool
	// Ready reports whether the backing stores are reachable
	Ready func(ctx context.Context) error
}

// NewRouter builds the engine with the platform middleware, probes and API routes
func NewRouter(h *Handler, config RouterConfig) *gin.Engine {
	router := gin.New()

	mwConfig := middleware.DefaultConfig(config.ServiceName, config.Logger.Logger)
	mwConfig.Metrics = config.Metrics
	mwConfig.EnableTracing = config.EnableTracing
	middleware.Setup(router, mwConfig)

	ready := config.Ready
	if ready == nil {
		ready = func(context.Context) error { return nil }
	}
	router.GET("/health", middleware.HealthCheck(config.ServiceName))
	router.GET("/ready", middleware.ReadinessCheck(config.ServiceName, ready))
	if config.Metrics != nil {
		router.GET("/metrics", middleware.MetricsEndpoint(config.Metrics))
	}

	h.RegisterRoutes(router.Group("/api/v1"))
	return router
}
