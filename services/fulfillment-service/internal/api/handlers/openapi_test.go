package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/fulfillment/shared/pkg/contracts/openapi"
)

const openAPIDocument = "../../../api/openapi.yaml"

var ginParam = regexp.MustCompile(`:(\w+)`)

func loadOpenAPI(t *testing.T) *openapi.Validator {
	t.Helper()
	v, err := openapi.Load(context.Background(), openAPIDocument)
	require.NoError(t, err)
	return v
}

// exchange validates the request body against the document, serves it and
// validates the response, returning the decoded body
func exchange(t *testing.T, router *gin.Engine, v *openapi.Validator, method, path string, body any, status int) map[string]any {
	t.Helper()
	ctx := context.Background()

	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		req := httptest.NewRequest(method, path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		require.NoError(t, v.ValidateRequest(ctx, req))
	}

	w := do(t, router, method, path, body)
	require.Equal(t, status, w.Code, w.Body.String())
	require.NoError(t, v.ValidateResponse(ctx, httptest.NewRequest(method, path, nil), w.Result()))
	return decode(t, w)
}

func TestOpenAPI_DocumentsEveryRoute(t *testing.T) {
	v := loadOpenAPI(t)
	router := setupRouter(t)

	routes := router.Routes()
	require.NotEmpty(t, routes)
	for _, route := range routes {
		path := ginParam.ReplaceAllString(route.Path, "{$1}")
		assert.True(t, v.HasOperation(route.Method, path), "%s %s is not documented", route.Method, path)
	}
}

func TestOpenAPI_ResponsesMatchDocument(t *testing.T) {
	v := loadOpenAPI(t)
	router := setupRouter(t)

	exchange(t, router, v, http.MethodGet, "/health", nil, http.StatusOK)
	exchange(t, router, v, http.MethodGet, "/ready", nil, http.StatusOK)

	stock := exchange(t, router, v, http.MethodPost, "/api/v1/stock", gin.H{
		"productId":       "P1",
		"productName":     "Widget",
		"sku":             "SKU-P1",
		"initialQuantity": 10,
		"unitCost":        2.5,
	}, http.StatusCreated)
	assert.Equal(t, "ACTIVE", stock["status"])

	exchange(t, router, v, http.MethodPost, "/api/v1/stock/P1/reserve", gin.H{"quantity": 2}, http.StatusOK)
	exchange(t, router, v, http.MethodPost, "/api/v1/stock/P1/release", gin.H{"quantity": 2}, http.StatusOK)
	exchange(t, router, v, http.MethodGet, "/api/v1/stock?page=1&pageSize=10", nil, http.StatusOK)

	created := exchange(t, router, v, http.MethodPost, "/api/v1/orders", orderBody("P1", 2), http.StatusCreated)
	orderID, _ := created["orderId"].(string)
	require.NotEmpty(t, orderID)

	exchange(t, router, v, http.MethodGet, "/api/v1/orders/"+orderID, nil, http.StatusOK)
	confirmed := exchange(t, router, v, http.MethodPut, "/api/v1/orders/"+orderID+"/status",
		gin.H{"status": "CONFIRMED", "reason": "payment received"}, http.StatusOK)
	assert.Equal(t, "CONFIRMED", confirmed["status"])
	exchange(t, router, v, http.MethodGet, "/api/v1/orders/"+orderID+"/pipeline", nil, http.StatusOK)
	exchange(t, router, v, http.MethodPost, "/api/v1/orders/"+orderID+"/cancel", gin.H{"reason": "customer request"}, http.StatusOK)

	t.Run("error envelopes", func(t *testing.T) {
		tests := []struct {
			name   string
			method string
			path   string
			body   any
			status int
			code   string
		}{
			{name: "unknown order", method: http.MethodGet, path: "/api/v1/orders/missing", status: http.StatusNotFound, code: "RESOURCE_NOT_FOUND"},
			{name: "unknown product", method: http.MethodGet, path: "/api/v1/stock/nope", status: http.StatusNotFound, code: "RESOURCE_NOT_FOUND"},
			{name: "cancelled order cannot be cancelled", method: http.MethodPost, path: "/api/v1/orders/" + orderID + "/cancel", body: gin.H{"reason": "again"}, status: http.StatusConflict, code: "NOT_CANCELLABLE"},
			{name: "reserve beyond available", method: http.MethodPost, path: "/api/v1/stock/P1/reserve", body: gin.H{"quantity": 99}, status: http.StatusConflict, code: "INSUFFICIENT_STOCK"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				body := exchange(t, router, v, tt.method, tt.path, tt.body, tt.status)
				assert.Equal(t, tt.code, body["code"])
			})
		}
	})
}
