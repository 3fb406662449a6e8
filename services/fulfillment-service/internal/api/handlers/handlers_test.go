package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/fulfillment/shared/pkg/errors"
	"github.com/wms-platform/fulfillment/shared/pkg/keylock"
	"github.com/wms-platform/fulfillment/shared/pkg/logging"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/application"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/infrastructure/memory"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	router, _, _ := newTestAPI(t)
	return router
}

// newTestAPI wires the router over fresh in-memory repositories
func newTestAPI(t *testing.T) (*gin.Engine, Services, *memory.Repositories) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logging.NewNop()
	locker := keylock.NewLocalLocker(2 * time.Second)
	repos := memory.NewRepositories(nil, nil)

	ledger := application.NewLedgerService(repos.Stock, locker, 5, nil, logger)
	orders := application.NewOrderService(repos.Orders, ledger, repos.Shipments, nil, locker, 5, nil, logger)
	svc := Services{
		Ledger: ledger,
		Alerts: application.NewAlertService(repos.Alerts, repos.Stock, nil, locker, nil, logger),
		Orders: orders,
		Pipeline: application.NewPipelineService(application.PipelineRepositories{
			PickLists:     repos.PickLists,
			Packages:      repos.Packages,
			QualityChecks: repos.QualityChecks,
			Shipments:     repos.Shipments,
			Tracking:      repos.Tracking,
		}, repos.Orders, orders, locker, application.PipelineConfig{RetryAttempts: 5}, nil, logger),
		Exceptions: application.NewExceptionService(repos.Exceptions, repos.Shipments, repos.Orders, ledger, locker, 5, nil, logger),
		Returns:    application.NewReturnService(repos.Returns, repos.Orders, orders, ledger, locker, 5, 0, nil, logger),
	}
	return NewRouter(New(svc, logger), RouterConfig{ServiceName: "fulfillment-service", Logger: logger}), svc, repos
}

func do(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func requireStatus(t *testing.T, w *httptest.ResponseRecorder, status int) map[string]any {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	return decode(t, w)
}

func registerProduct(t *testing.T, router *gin.Engine, productID string, qty int) {
	t.Helper()
	requireStatus(t, do(t, router, http.MethodPost, "/api/v1/stock", gin.H{
		"productId":       productID,
		"productName":     "Product " + productID,
		"sku":             "SKU-" + productID,
		"initialQuantity": qty,
		"unitCost":        2.5,
	}), http.StatusCreated)
}

func orderBody(productID string, qty int) gin.H {
	return gin.H{
		"customer":        gin.H{"id": "CUST-1", "name": "Ada", "email": "ada@example.com"},
		"shippingAddress": gin.H{"street": "1 Main St", "city": "Springfield", "postalCode": "12345", "country": "US"},
		"currency":        "USD",
		"items": []gin.H{
			{"productId": productID, "productName": "Product " + productID, "sku": "SKU-" + productID, "quantity": qty, "unitPrice": 10},
		},
	}
}

func TestProbes(t *testing.T) {
	router := setupRouter(t)

	body := requireStatus(t, do(t, router, http.MethodGet, "/health", nil), http.StatusOK)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "fulfillment-service", body["service"])

	assert.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/ready", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/api/v1/nowhere", nil).Code)
}

func TestStockHandlers(t *testing.T) {
	router := setupRouter(t)
	registerProduct(t, router, "P1", 10)

	t.Run("reserve moves quantity into reserved", func(t *testing.T) {
		body := requireStatus(t, do(t, router, http.MethodPost, "/api/v1/stock/P1/reserve", gin.H{"quantity": 4}), http.StatusOK)
		assert.EqualValues(t, 4, body["reservedQuantity"])
		assert.EqualValues(t, 6, body["availableQuantity"])
	})

	t.Run("over-reservation is a conflict", func(t *testing.T) {
		body := requireStatus(t, do(t, router, http.MethodPost, "/api/v1/stock/P1/reserve", gin.H{"quantity": 7}), http.StatusConflict)
		assert.Equal(t, errors.CodeInsufficientStock, body["code"])
	})

	t.Run("zero quantity fails validation", func(t *testing.T) {
		body := requireStatus(t, do(t, router, http.MethodPost, "/api/v1/stock/P1/reserve", gin.H{"quantity": 0}), http.StatusBadRequest)
		assert.Equal(t, errors.CodeValidationError, body["code"])
	})

	t.Run("duplicate registration conflicts", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/api/v1/stock", gin.H{"productId": "P1", "productName": "again"})
		assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	})

	t.Run("adjust accepts lower-case modes", func(t *testing.T) {
		body := requireStatus(t, do(t, router, http.MethodPost, "/api/v1/stock/P1/adjust", gin.H{"quantity": 20, "mode": "set"}), http.StatusOK)
		assert.EqualValues(t, 20, body["currentQuantity"])
	})

	t.Run("unknown product is not found", func(t *testing.T) {
		body := requireStatus(t, do(t, router, http.MethodGet, "/api/v1/stock/NOPE", nil), http.StatusNotFound)
		assert.Equal(t, errors.CodeNotFound, body["code"])
	})

	t.Run("list pages the ledger", func(t *testing.T) {
		body := requireStatus(t, do(t, router, http.MethodGet, "/api/v1/stock?page=1&pageSize=10", nil), http.StatusOK)
		assert.EqualValues(t, 1, body["totalItems"])
	})
}

func TestOrderHandlers(t *testing.T) {
	router := setupRouter(t)
	registerProduct(t, router, "P1", 5)

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"missing items", gin.H{"customer": gin.H{"id": "C", "name": "N"}}, http.StatusBadRequest, errors.CodeValidationError},
		{"bad currency", func() gin.H { b := orderBody("P1", 1); b["currency"] = "DOLLARS"; return b }(), http.StatusBadRequest, errors.CodeValidationError},
		{"not enough stock", orderBody("P1", 6), http.StatusConflict, errors.CodeInsufficientStock},
		{"unknown product", orderBody("P9", 1), http.StatusNotFound, errors.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := requireStatus(t, do(t, router, http.MethodPost, "/api/v1/orders", tt.body), tt.status)
			assert.Equal(t, tt.code, body["code"])
		})
	}

	created := requireStatus(t, do(t, router, http.MethodPost, "/api/v1/orders", orderBody("P1", 2)), http.StatusCreated)
	orderID := created["orderId"].(string)
	assert.Equal(t, "PENDING", created["status"])
	assert.EqualValues(t, 20, created["subtotal"])

	byNumber := requireStatus(t, do(t, router, http.MethodGet, "/api/v1/orders/number/"+created["orderNumber"].(string), nil), http.StatusOK)
	assert.Equal(t, orderID, byNumber["orderId"])

	body := requireStatus(t, do(t, router, http.MethodPut, "/api/v1/orders/"+orderID+"/status", gin.H{"status": "shipped"}), http.StatusConflict)
	assert.Equal(t, errors.CodeInvalidTransition, body["code"])

	cancelled := requireStatus(t, do(t, router, http.MethodPost, "/api/v1/orders/"+orderID+"/cancel", nil), http.StatusOK)
	assert.Equal(t, "CANCELLED", cancelled["status"])

	stock := requireStatus(t, do(t, router, http.MethodGet, "/api/v1/stock/P1", nil), http.StatusOK)
	assert.EqualValues(t, 0, stock["reservedQuantity"])
}

func TestFulfillmentFlowOverHTTP(t *testing.T) {
	router := setupRouter(t)
	registerProduct(t, router, "P1", 10)

	created := requireStatus(t, do(t, router, http.MethodPost, "/api/v1/orders", orderBody("P1", 2)), http.StatusCreated)
	orderID := created["orderId"].(string)
	requireStatus(t, do(t, router, http.MethodPut, "/api/v1/orders/"+orderID+"/status", gin.H{"status": "CONFIRMED"}), http.StatusOK)

	// shipping before the earlier stages is refused
	body := requireStatus(t, do(t, router, http.MethodPost, "/api/v1/orders/"+orderID+"/shipments", gin.H{"carrier": "ups"}), http.StatusConflict)
	assert.Equal(t, errors.CodePriorStageIncomplete, body["code"])

	pick := requireStatus(t, do(t, router, http.MethodPost, "/api/v1/orders/"+orderID+"/picklists", gin.H{"assignedTo": "picker"}), http.StatusCreated)
	requireStatus(t, do(t, router, http.MethodPost, "/api/v1/picklists/"+pick["pickListId"].(string)+"/complete",
		gin.H{"picked": gin.H{"P1": 2}}), http.StatusOK)

	pkg := requireStatus(t, do(t, router, http.MethodPost, "/api/v1/orders/"+orderID+"/packages", gin.H{"carrier": "ups"}), http.StatusCreated)
	requireStatus(t, do(t, router, http.MethodPost, "/api/v1/packages/"+pkg["packageId"].(string)+"/complete", gin.H{
		"packedBy":   "packer",
		"weightKg":   1.2,
		"dimensions": gin.H{"lengthCm": 20, "widthCm": 15, "heightCm": 10},
	}), http.StatusOK)

	check := requireStatus(t, do(t, router, http.MethodPost, "/api/v1/orders/"+orderID+"/quality-checks", nil), http.StatusCreated)
	requireStatus(t, do(t, router, http.MethodPost, "/api/v1/quality-checks/"+check["checkId"].(string)+"/complete", gin.H{
		"scores": gin.H{"packageIntegrity": 5, "contentAccuracy": 5, "labelAccuracy": 5, "weightAccuracy": 5, "safetyCompliance": 5},
	}), http.StatusOK)

	shipment := requireStatus(t, do(t, router, http.MethodPost, "/api/v1/orders/"+orderID+"/shipments", gin.H{"carrier": "ups"}), http.StatusCreated)
	requireStatus(t, do(t, router, http.MethodPost, "/api/v1/shipments/"+shipment["shipmentId"].(string)+"/complete",
		gin.H{"dispatchedBy": "dock-1"}), http.StatusOK)

	stock := requireStatus(t, do(t, router, http.MethodGet, "/api/v1/stock/P1", nil), http.StatusOK)
	assert.EqualValues(t, 8, stock["currentQuantity"])
	assert.EqualValues(t, 0, stock["reservedQuantity"])

	tracking := shipment["trackingNumber"].(string)
	event := requireStatus(t, do(t, router, http.MethodPost, "/api/v1/tracking/"+tracking+"/events",
		gin.H{"eventType": "delivered", "signedBy": "Ada"}), http.StatusCreated)
	assert.Equal(t, true, event["applied"])

	order := requireStatus(t, do(t, router, http.MethodGet, "/api/v1/orders/"+orderID, nil), http.StatusOK)
	assert.Equal(t, "DELIVERED", order["status"])

	ret := requireStatus(t, do(t, router, http.MethodPost, "/api/v1/returns", gin.H{
		"orderId": orderID,
		"reason":  "size_issue",
		"type":    "refund",
		"items":   []gin.H{{"productId": "P1", "quantity": 2, "condition": "new"}},
	}), http.StatusCreated)
	returnID := ret["returnId"].(string)
	assert.Equal(t, "REQUESTED", ret["status"])

	requireStatus(t, do(t, router, http.MethodPost, "/api/v1/returns/"+returnID+"/approve", gin.H{"approvedBy": "agent"}), http.StatusOK)
	requireStatus(t, do(t, router, http.MethodPost, "/api/v1/returns/"+returnID+"/receive", nil), http.StatusOK)
	requireStatus(t, do(t, router, http.MethodPost, "/api/v1/returns/"+returnID+"/inspect", gin.H{"qualityGrade": "excellent"}), http.StatusOK)
	done := requireStatus(t, do(t, router, http.MethodPost, "/api/v1/returns/"+returnID+"/complete", gin.H{"completedBy": "agent"}), http.StatusOK)
	assert.Equal(t, "COMPLETED", done["status"])
	assert.EqualValues(t, 20, done["refundAmount"])

	stock = requireStatus(t, do(t, router, http.MethodGet, "/api/v1/stock/P1", nil), http.StatusOK)
	assert.EqualValues(t, 10, stock["currentQuantity"])

	order = requireStatus(t, do(t, router, http.MethodGet, "/api/v1/orders/"+orderID, nil), http.StatusOK)
	assert.Equal(t, "REFUNDED", order["status"])
}

func TestExceptionHandlers(t *testing.T) {
	router := setupRouter(t)

	body := requireStatus(t, do(t, router, http.MethodPost, "/api/v1/exceptions", gin.H{
		"trackingNumber": "TRK00000001",
		"type":           "lost",
	}), http.StatusNotFound)
	assert.Equal(t, errors.CodeNotFound, body["code"])

	body = requireStatus(t, do(t, router, http.MethodPost, "/api/v1/exceptions", gin.H{"type": "lost"}), http.StatusBadRequest)
	assert.Equal(t, errors.CodeValidationError, body["code"])

	body = requireStatus(t, do(t, router, http.MethodPost, "/api/v1/exceptions/missing/escalate", nil), http.StatusNotFound)
	assert.Equal(t, errors.CodeNotFound, body["code"])

	list := requireStatus(t, do(t, router, http.MethodGet, "/api/v1/exceptions?status=open", nil), http.StatusOK)
	assert.EqualValues(t, 0, list["totalItems"])
}

func TestAlertHandlers(t *testing.T) {
	router := setupRouter(t)
	registerProduct(t, router, "P1", 0)

	scan := requireStatus(t, do(t, router, http.MethodPost, "/api/v1/alerts/scan", nil), http.StatusOK)
	assert.EqualValues(t, 1, scan["opened"])

	alerts := scan["alerts"].([]any)
	require.Len(t, alerts, 1)
	alertID := alerts[0].(map[string]any)["alertId"].(string)

	resolved := requireStatus(t, do(t, router, http.MethodPost, "/api/v1/alerts/"+alertID+"/resolve",
		gin.H{"resolvedBy": "buyer", "notes": "po raised"}), http.StatusOK)
	assert.Equal(t, true, resolved["resolved"])

	body := requireStatus(t, do(t, router, http.MethodPost, "/api/v1/alerts/"+alertID+"/resolve",
		gin.H{"resolvedBy": "buyer"}), http.StatusConflict)
	assert.Equal(t, errors.CodeAlreadyResolved, body["code"])
}
