package application

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/fulfillment/shared/pkg/errors"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/common"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/ledger"
)

func TestLedgerService_RegisterProduct(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	minimum := 5
	dto, err := s.ledger.RegisterProduct(ctx, RegisterProductCommand{
		ProductID:       " P1 ",
		ProductName:     "Widget",
		SKU:             "WID-1",
		InitialQuantity: 40,
		MinimumLevel:    &minimum,
		UnitCost:        1.25,
	})
	require.NoError(t, err)
	assert.Equal(t, "P1", dto.ProductID)
	assert.Equal(t, 40, dto.AvailableQuantity)
	assert.Equal(t, 5, dto.MinimumLevel)
	assert.Equal(t, ledger.DefaultReorderPoint, dto.ReorderPoint)
	assert.Equal(t, DefaultCurrency, dto.Currency)

	_, err = s.ledger.RegisterProduct(ctx, RegisterProductCommand{ProductID: "P1", InitialQuantity: 1})
	requireCode(t, err, errors.CodeConflict)

	_, err = s.ledger.RegisterProduct(ctx, RegisterProductCommand{ProductID: "P2", InitialQuantity: -1})
	requireCode(t, err, errors.CodeValidationError)
}

func TestLedgerService_Operations(t *testing.T) {
	tests := []struct {
		name          string
		run           func(ctx context.Context, s *LedgerService) (*StockDTO, error)
		wantCode      string
		wantCurrent   int
		wantReserved  int
		wantAvailable int
	}{
		{
			name:          "reserve",
			run:           func(ctx context.Context, s *LedgerService) (*StockDTO, error) { return s.Reserve(ctx, "P1", 4) },
			wantCurrent:   20,
			wantReserved:  4,
			wantAvailable: 16,
		},
		{
			name:     "reserve more than available",
			run:      func(ctx context.Context, s *LedgerService) (*StockDTO, error) { return s.Reserve(ctx, "P1", 21) },
			wantCode: errors.CodeInsufficientStock,
		},
		{
			name:     "reserve zero",
			run:      func(ctx context.Context, s *LedgerService) (*StockDTO, error) { return s.Reserve(ctx, "P1", 0) },
			wantCode: errors.CodeValidationError,
		},
		{
			name:     "unknown product",
			run:      func(ctx context.Context, s *LedgerService) (*StockDTO, error) { return s.Reserve(ctx, "nope", 1) },
			wantCode: errors.CodeNotFound,
		},
		{
			name: "release floors at zero",
			run: func(ctx context.Context, s *LedgerService) (*StockDTO, error) {
				if _, err := s.Reserve(ctx, "P1", 2); err != nil {
					return nil, err
				}
				return s.Release(ctx, "P1", 5)
			},
			wantCurrent:   20,
			wantReserved:  0,
			wantAvailable: 20,
		},
		{
			name: "commit deducts reserved units",
			run: func(ctx context.Context, s *LedgerService) (*StockDTO, error) {
				if _, err := s.Reserve(ctx, "P1", 6); err != nil {
					return nil, err
				}
				return s.Commit(ctx, "P1", 6)
			},
			wantCurrent:   14,
			wantReserved:  0,
			wantAvailable: 14,
		},
		{
			name:     "commit without reservation",
			run:      func(ctx context.Context, s *LedgerService) (*StockDTO, error) { return s.Commit(ctx, "P1", 1) },
			wantCode: errors.CodeInvalidState,
		},
		{
			name:          "restock",
			run:           func(ctx context.Context, s *LedgerService) (*StockDTO, error) { return s.Restock(ctx, "P1", 5) },
			wantCurrent:   25,
			wantAvailable: 25,
		},
		{
			name: "adjust set below reservation",
			run: func(ctx context.Context, s *LedgerService) (*StockDTO, error) {
				if _, err := s.Reserve(ctx, "P1", 10); err != nil {
					return nil, err
				}
				return s.Adjust(ctx, "P1", 5, ledger.AdjustSet)
			},
			wantCode: errors.CodeInsufficientStock,
		},
		{
			name:     "adjust remove too much",
			run:      func(ctx context.Context, s *LedgerService) (*StockDTO, error) { return s.Adjust(ctx, "P1", 21, ledger.AdjustRemove) },
			wantCode: errors.CodeInsufficientStock,
		},
		{
			name:          "adjust set",
			run:           func(ctx context.Context, s *LedgerService) (*StockDTO, error) { return s.Adjust(ctx, "P1", 7, ledger.AdjustSet) },
			wantCurrent:   7,
			wantAvailable: 7,
		},
		{
			name:     "adjust unknown mode",
			run:      func(ctx context.Context, s *LedgerService) (*StockDTO, error) { return s.Adjust(ctx, "P1", 7, "DOUBLE") },
			wantCode: errors.CodeValidationError,
		},
		{
			name: "reserve on inactive product",
			run: func(ctx context.Context, s *LedgerService) (*StockDTO, error) {
				if _, err := s.Deactivate(ctx, "P1"); err != nil {
					return nil, err
				}
				return s.Reserve(ctx, "P1", 1)
			},
			wantCode: errors.CodeInvalidState,
		},
		{
			name: "deactivate twice",
			run: func(ctx context.Context, s *LedgerService) (*StockDTO, error) {
				if _, err := s.Deactivate(ctx, "P1"); err != nil {
					return nil, err
				}
				return s.Deactivate(ctx, "P1")
			},
			wantCode: errors.CodeInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServices(t)
			s.register(t, "P1", 20)

			dto, err := tt.run(context.Background(), s.ledger)
			if tt.wantCode != "" {
				requireCode(t, err, tt.wantCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCurrent, dto.CurrentQuantity)
			assert.Equal(t, tt.wantReserved, dto.ReservedQuantity)
			assert.Equal(t, tt.wantAvailable, dto.AvailableQuantity)
		})
	}
}

func TestLedgerService_FailedOperationLeavesRecordUnchanged(t *testing.T) {
	s := newServices(t)
	s.register(t, "P1", 10)
	ctx := context.Background()

	_, err := s.ledger.Reserve(ctx, "P1", 3)
	require.NoError(t, err)
	before := s.stock(t, "P1")

	_, err = s.ledger.Reserve(ctx, "P1", 8)
	requireCode(t, err, errors.CodeInsufficientStock)

	after := s.stock(t, "P1")
	assert.Equal(t, before, after)
}

func TestLedgerService_ConcurrentReservationsNeverOversell(t *testing.T) {
	s := newServices(t)
	s.register(t, "P1", 30)
	ctx := context.Background()

	var (
		wg           sync.WaitGroup
		succeeded    atomic.Int32
		insufficient atomic.Int32
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ledger.Reserve(ctx, "P1", 1)
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.HasCode(err, errors.CodeInsufficientStock):
				insufficient.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(30), succeeded.Load())
	assert.Equal(t, int32(20), insufficient.Load())

	dto := s.stock(t, "P1")
	assert.Equal(t, 30, dto.ReservedQuantity)
	assert.Equal(t, 0, dto.AvailableQuantity)
	assert.Equal(t, string(ledger.StatusActive), dto.Status)
}

func TestLedgerService_ListStock(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	s.register(t, "P1", 100)
	s.register(t, "P2", 0)
	s.register(t, "P3", 50)
	_, err := s.ledger.Deactivate(ctx, "P3")
	require.NoError(t, err)

	page, err := s.ledger.ListStock(ctx, ListStockQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.TotalItems)

	page, err = s.ledger.ListStock(ctx, ListStockQuery{ActiveOnly: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.TotalItems)

	page, err = s.ledger.ListStock(ctx, ListStockQuery{Status: ledger.StatusOutOfStock})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "P2", page.Data[0].ProductID)

	page, err = s.ledger.ListStock(ctx, ListStockQuery{Page: common.Page{Number: 2, Size: 2}})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "P1", page.Data[0].ProductID)
}
