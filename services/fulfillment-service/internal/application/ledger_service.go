package application

import (
	"context"
	"strings"

	"github.com/wms-platform/fulfillment/shared/pkg/api"
	"github.com/wms-platform/fulfillment/shared/pkg/errors"
	"github.com/wms-platform/fulfillment/shared/pkg/keylock"
	"github.com/wms-platform/fulfillment/shared/pkg/logging"
	"github.com/wms-platform/fulfillment/shared/pkg/metrics"
	"github.com/wms-platform/fulfillment/shared/pkg/money"
	"github.com/wms-platform/fulfillment/shared/pkg/tracing"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/common"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/ledger"
)

// DefaultCurrency prices registered products when no currency is given
const DefaultCurrency = "USD"

// LedgerService owns every stock quantity. Mutations on one product are
// serialized by the key lock and saved with a version check.
type LedgerService struct {
	repo    ledger.Repository
	guard   *guard
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(
	repo ledger.Repository,
	locker keylock.Locker,
	retryAttempts int,
	m *metrics.Metrics,
	logger *logging.Logger,
) *LedgerService {
	logger = logger.WithComponent("ledger")
	return &LedgerService{
		repo:    repo,
		guard:   newGuard(locker, retryAttempts, m, logger),
		metrics: m,
		logger:  logger,
	}
}

// RegisterProduct adds a product to the ledger
func (s *LedgerService) RegisterProduct(ctx context.Context, cmd RegisterProductCommand) (*StockDTO, error) {
	currency := cmd.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	unitCost, err := money.FromFloat(cmd.UnitCost, currency)
	if err != nil {
		return nil, errors.ErrValidation("unit cost: " + err.Error()).WithEntity("product", cmd.ProductID).Wrap(err)
	}

	record, err := ledger.NewStockRecord(strings.TrimSpace(cmd.ProductID), cmd.ProductName, cmd.SKU, cmd.InitialQuantity, cmd.Levels(), unitCost)
	if err != nil {
		return nil, mapError(err, "product", cmd.ProductID)
	}

	if err := s.repo.Create(ctx, record); err != nil {
		s.logger.WithError(err).Warn("Failed to register product", "productId", record.ProductID)
		return nil, mapError(err, "product", record.ProductID)
	}

	s.logger.Info("Registered product", "productId", record.ProductID, "sku", record.SKU, "quantity", record.CurrentQuantity)
	return ToStockDTO(record), nil
}

// Reserve places a soft hold on qty units
func (s *LedgerService) Reserve(ctx context.Context, productID string, qty int) (*StockDTO, error) {
	return s.mutate(ctx, ledger.OpReserve, productID, qty, func(r *ledger.StockRecord) error {
		return r.Reserve(qty)
	})
}

// Release drops a reservation
func (s *LedgerService) Release(ctx context.Context, productID string, qty int) (*StockDTO, error) {
	return s.mutate(ctx, ledger.OpRelease, productID, qty, func(r *ledger.StockRecord) error {
		return r.Release(qty)
	})
}

// Commit turns reserved units into a permanent deduction
func (s *LedgerService) Commit(ctx context.Context, productID string, qty int) (*StockDTO, error) {
	return s.mutate(ctx, ledger.OpCommit, productID, qty, func(r *ledger.StockRecord) error {
		return r.Commit(qty)
	})
}

// RevertCommit undoes a commit. It is only used to compensate a partially
// applied multi-line commit and has no HTTP route.
func (s *LedgerService) RevertCommit(ctx context.Context, productID string, qty int) (*StockDTO, error) {
	return s.mutate(ctx, ledger.OpRevertCommit, productID, qty, func(r *ledger.StockRecord) error {
		return r.RevertCommit(qty)
	})
}

// Restock adds units to the current quantity
func (s *LedgerService) Restock(ctx context.Context, productID string, qty int) (*StockDTO, error) {
	return s.mutate(ctx, ledger.OpRestock, productID, qty, func(r *ledger.StockRecord) error {
		return r.Restock(qty)
	})
}

// Adjust applies a manual correction
func (s *LedgerService) Adjust(ctx context.Context, productID string, qty int, mode ledger.AdjustMode) (*StockDTO, error) {
	return s.mutate(ctx, ledger.OpAdjust, productID, qty, func(r *ledger.StockRecord) error {
		return r.Adjust(qty, mode)
	})
}

// Deactivate takes a product out of sale
func (s *LedgerService) Deactivate(ctx context.Context, productID string) (*StockDTO, error) {
	return s.mutate(ctx, "deactivate", productID, 0, func(r *ledger.StockRecord) error {
		return r.Deactivate()
	})
}

// Activate puts a product back on sale
func (s *LedgerService) Activate(ctx context.Context, productID string) (*StockDTO, error) {
	return s.mutate(ctx, "activate", productID, 0, func(r *ledger.StockRecord) error {
		return r.Activate()
	})
}

// UpdateLevels replaces the alert thresholds of a product
func (s *LedgerService) UpdateLevels(ctx context.Context, productID string, levels ledger.Levels) (*StockDTO, error) {
	return s.mutate(ctx, "update_levels", productID, 0, func(r *ledger.StockRecord) error {
		return r.UpdateLevels(levels)
	})
}

// GetStock retrieves a stock record
func (s *LedgerService) GetStock(ctx context.Context, productID string) (*StockDTO, error) {
	record, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get stock", "productId", productID)
		return nil, mapError(err, "product", productID)
	}
	if record == nil {
		return nil, errors.ErrNotFoundWithID("product", productID)
	}
	return ToStockDTO(record), nil
}

// ListStock returns a page of stock records
func (s *LedgerService) ListStock(ctx context.Context, query ListStockQuery) (*api.PageResponse[StockDTO], error) {
	page := pageRequest(query.Page)
	records, total, err := s.repo.List(ctx, ledger.Filter{
		Status:     query.Status,
		ActiveOnly: query.ActiveOnly,
		Page:       toPage(page),
	})
	if err != nil {
		s.logger.WithError(err).Error("Failed to list stock")
		return nil, mapError(err, "product", "")
	}

	data := make([]StockDTO, 0, len(records))
	for _, r := range records {
		data = append(data, *ToStockDTO(r))
	}
	resp := api.NewPageResponse(data, page, total)
	return &resp, nil
}

// mutate runs a read-modify-write of one record under the product lock
func (s *LedgerService) mutate(ctx context.Context, op ledger.Operation, productID string, qty int, apply func(*ledger.StockRecord) error) (*StockDTO, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, mapError(ledger.ErrMissingProductID, "product", "")
	}

	attrs := tracing.LedgerSpanAttributes(string(op), productID, qty)
	return tracing.TracedOperation(ctx, tracer, "ledger."+string(op), func(ctx context.Context) (*StockDTO, error) {
		var updated *ledger.StockRecord
		err := s.guard.run(ctx, "stock:"+productID, string(op), func(ctx context.Context) error {
			record, err := s.repo.FindByID(ctx, productID)
			if err != nil {
				return err
			}
			if record == nil {
				return errors.ErrNotFoundWithID("product", productID)
			}
			if err := apply(record); err != nil {
				return err
			}
			if err := s.repo.Update(ctx, record); err != nil {
				return err
			}
			updated = record
			return nil
		})
		if err != nil {
			mapped := mapError(err, "product", productID)
			s.metrics.RecordLedgerOperation(string(op), resultLabel(mapped))
			s.logger.WithContext(ctx).Warn("Ledger operation rejected",
				"operation", op, "productId", productID, "quantity", qty, "error", err)
			return nil, mapped
		}

		s.metrics.RecordLedgerOperation(string(op), "success")
		s.logger.StockMovement(ctx, string(op), productID, qty, updated.CurrentQuantity, updated.ReservedQuantity)
		return ToStockDTO(updated), nil
	}, attrs...)
}

func pageRequest(p common.Page) api.PageRequest {
	return api.PageRequest{Page: p.Number, PageSize: p.Size}.Normalize()
}

func toPage(p api.PageRequest) common.Page {
	return common.Page{Number: p.Page, Size: p.PageSize}
}
