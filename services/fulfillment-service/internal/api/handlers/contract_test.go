package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pact-foundation/pact-go/v2/models"
	"github.com/pact-foundation/pact-go/v2/provider"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/application"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/order"
)

const (
	pactDir      = "../../../../../contracts/pacts"
	contractID   = "ord-1"
	contractLine = 2
)

// seedContractOrder stores order ord-1 holding two units of P1, walked to status
func seedContractOrder(ctx context.Context, svc Services, orders order.Repository, status order.Status) error {
	if _, err := svc.Ledger.RegisterProduct(ctx, application.RegisterProductCommand{
		ProductID:       "P1",
		ProductName:     "Widget",
		SKU:             "SKU-P1",
		InitialQuantity: 10,
		UnitCost:        2.5,
	}); err != nil {
		return err
	}
	if _, err := svc.Ledger.Reserve(ctx, "P1", contractLine); err != nil {
		return err
	}

	o, err := order.NewOrder(order.NewOrderParams{
		Customer:        order.Customer{ID: "CUST-1", Name: "Ada"},
		ShippingAddress: order.Address{Street: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "US"},
		Currency:        "USD",
		Items: []order.LineItemInput{
			{ProductID: "P1", ProductName: "Widget", SKU: "SKU-P1", Quantity: contractLine, UnitPrice: 10},
		},
	})
	if err != nil {
		return err
	}
	o.OrderID = contractID

	var path []order.Status
	switch status {
	case order.StatusConfirmed:
		path = []order.Status{order.StatusConfirmed}
	case order.StatusShipped:
		path = []order.Status{order.StatusConfirmed, order.StatusProcessing, order.StatusShipped}
		if _, err := svc.Ledger.Commit(ctx, "P1", contractLine); err != nil {
			return err
		}
	}
	for _, next := range path {
		if err := o.TransitionTo(next, "contract state"); err != nil {
			return err
		}
	}
	return orders.Create(ctx, o)
}

func TestFulfillmentServiceHonoursOrchestratorContract(t *testing.T) {
	if testing.Short() {
		t.Skip("contract verification needs the pact FFI library")
	}
	dir, err := filepath.Abs(pactDir)
	require.NoError(t, err)
	if _, err := os.Stat(filepath.Join(dir, "fulfillment-orchestrator-fulfillment-service.json")); os.IsNotExist(err) {
		t.Skip("no pact found, run the orchestrator client contract tests first")
	}

	// every provider state starts from a fresh API
	var current atomic.Pointer[gin.Engine]
	router, _, _ := newTestAPI(t)
	current.Store(router)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current.Load().ServeHTTP(w, r)
	}))
	defer server.Close()

	withOrder := func(status order.Status) models.StateHandler {
		return func(setup bool, _ models.ProviderState) (models.ProviderStateResponse, error) {
			if !setup {
				return nil, nil
			}
			router, svc, repos := newTestAPI(t)
			if err := seedContractOrder(context.Background(), svc, repos.Orders, status); err != nil {
				return nil, fmt.Errorf("seed %s order: %w", status, err)
			}
			current.Store(router)
			return nil, nil
		}
	}

	err = provider.NewVerifier().VerifyProvider(t, provider.VerifyRequest{
		Provider:        "fulfillment-service",
		ProviderBaseURL: server.URL,
		PactDirs:        []string{dir},
		StateHandlers: models.StateHandlers{
			"order ord-1 is PENDING":   withOrder(order.StatusPending),
			"order ord-1 is CONFIRMED": withOrder(order.StatusConfirmed),
			"order ord-1 is SHIPPED":   withOrder(order.StatusShipped),
			"no order missing exists": func(setup bool, _ models.ProviderState) (models.ProviderStateResponse, error) {
				if setup {
					router, _, _ := newTestAPI(t)
					current.Store(router)
				}
				return nil, nil
			},
		},
	})
	require.NoError(t, err)
}
