package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/fulfillment/shared/pkg/api"
	"github.com/wms-platform/fulfillment/shared/pkg/logging"
	"github.com/wms-platform/fulfillment/shared/pkg/middleware"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/application"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/common"
)

// Services are the application services exposed over HTTP
type Services struct {
	Ledger     *application.LedgerService
	Alerts     *application.AlertService
	Orders     *application.OrderService
	Pipeline   *application.PipelineService
	Exceptions *application.ExceptionService
	Returns    *application.ReturnService
}

// Handler serves the fulfillment HTTP API
type Handler struct {
	svc    Services
	logger *logging.Logger
}

// New creates a handler over the application services
func New(svc Services, logger *logging.Logger) *Handler {
	return &Handler{svc: svc, logger: logger.WithComponent("http")}
}

// RegisterRoutes registers every route under the given group
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	h.registerStockRoutes(r)
	h.registerAlertRoutes(r)
	h.registerOrderRoutes(r)
	h.registerPipelineRoutes(r)
	h.registerExceptionRoutes(r)
	h.registerReturnRoutes(r)
}

func (h *Handler) fail(c *gin.Context, err error) {
	middleware.NewErrorResponder(c, h.logger.Logger).RespondWithError(err)
}

// bind decodes and validates the body, answering 400 itself on failure
func (h *Handler) bind(c *gin.Context, obj any) bool {
	if appErr := middleware.BindAndValidate(c, obj); appErr != nil {
		middleware.NewErrorResponder(c, h.logger.Logger).RespondWithAppError(appErr)
		return false
	}
	return true
}

// bindOptional is bind for endpoints whose body may be omitted
func (h *Handler) bindOptional(c *gin.Context, obj any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return h.bind(c, obj)
}

func pageFrom(c *gin.Context) common.Page {
	p := api.ParsePagination(c)
	return common.Page{Number: p.Page, Size: p.PageSize}
}

func queryBool(c *gin.Context, key string) bool {
	b, _ := strconv.ParseBool(c.Query(key))
	return b
}
