package application

import (
	"context"
	"time"

	"github.com/wms-platform/fulfillment/shared/pkg/api"
	"github.com/wms-platform/fulfillment/shared/pkg/errors"
	"github.com/wms-platform/fulfillment/shared/pkg/keylock"
	"github.com/wms-platform/fulfillment/shared/pkg/logging"
	"github.com/wms-platform/fulfillment/shared/pkg/metrics"
	"github.com/wms-platform/fulfillment/shared/pkg/tracing"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/common"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/order"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/returns"
)

// DefaultReturnWindow is how long after delivery a return may be requested
const DefaultReturnWindow = 30 * 24 * time.Hour

// ReturnService runs the returns flow from request to restock and refund
type ReturnService struct {
	repo        returns.Repository
	orders      order.Repository
	transitions OrderTransitions
	ledger      StockLedger
	guard       *guard
	window      time.Duration
	metrics     *metrics.Metrics
	logger      *logging.Logger
}

// NewReturnService creates a new ReturnService. A non-positive window falls
// back to DefaultReturnWindow.
func NewReturnService(
	repo returns.Repository,
	orders order.Repository,
	transitions OrderTransitions,
	ledger StockLedger,
	locker keylock.Locker,
	retryAttempts int,
	window time.Duration,
	m *metrics.Metrics,
	logger *logging.Logger,
) *ReturnService {
	if window <= 0 {
		window = DefaultReturnWindow
	}
	logger = logger.WithComponent("returns")
	return &ReturnService{
		repo:        repo,
		orders:      orders,
		transitions: transitions,
		ledger:      ledger,
		guard:       newGuard(locker, retryAttempts, m, logger),
		window:      window,
		metrics:     m,
		logger:      logger,
	}
}

// RequestReturn opens a return against a delivered order. The order's other
// returns are read under the order lock so no two returns claim the same units.
func (s *ReturnService) RequestReturn(ctx context.Context, cmd RequestReturnCommand) (*ReturnDTO, error) {
	r, err := guarded(ctx, s.guard, orderKey(cmd.OrderID), "request_return", func(ctx context.Context) (*returns.ReturnOrder, error) {
		o, err := s.orders.FindByID(ctx, cmd.OrderID)
		if err != nil {
			return nil, err
		}
		if o == nil {
			return nil, errors.ErrNotFoundWithID("order", cmd.OrderID)
		}

		claimed, err := s.returnedQuantities(ctx, o.OrderID)
		if err != nil {
			return nil, err
		}

		r, err := returns.New(o, returns.Params{
			Reason:             cmd.Reason,
			Type:               cmd.Type,
			Description:        cmd.Description,
			Items:              cmd.Items,
			RestockingFee:      cmd.RestockingFee,
			ShippingCostRefund: cmd.ShippingCostRefund,
			AlreadyReturned:    claimed,
		}, s.window, time.Now().UTC())
		if err != nil {
			return nil, err
		}
		if err := s.repo.Create(ctx, r); err != nil {
			s.logger.WithError(err).Error("Failed to save return", "orderId", cmd.OrderID)
			return nil, err
		}
		return r, nil
	})
	if err != nil {
		s.logger.WithContext(ctx).Warn("Return request rejected", "orderId", cmd.OrderID, "error", err)
		return nil, mapError(err, "return", cmd.OrderID)
	}

	s.logger.Info("Return requested",
		"returnId", r.ReturnID, "orderId", r.OrderID,
		"reason", r.Reason, "type", r.Type, "refundTotal", r.TotalRefundAmount.Float())
	return ToReturnDTO(r), nil
}

// returnedQuantities walks every return of the order page by page
func (s *ReturnService) returnedQuantities(ctx context.Context, orderID string) (map[string]int, error) {
	const pageSize = 100
	var existing []*returns.ReturnOrder
	for number := int64(1); ; number++ {
		page, total, err := s.repo.List(ctx, returns.Filter{
			OrderID: orderID,
			Page:    common.Page{Number: number, Size: pageSize},
		})
		if err != nil {
			return nil, err
		}
		existing = append(existing, page...)
		if len(page) < pageSize || int64(len(existing)) >= total {
			break
		}
	}
	return returns.ReturnedQuantities(existing), nil
}

// ApproveReturn accepts a pending return
func (s *ReturnService) ApproveReturn(ctx context.Context, returnID, approvedBy string) (*ReturnDTO, error) {
	return s.mutate(ctx, returnID, "approve_return", s.apply(func(r *returns.ReturnOrder) error {
		return r.Approve(approvedBy)
	}))
}

// RejectReturn declines a pending return
func (s *ReturnService) RejectReturn(ctx context.Context, returnID, reason string) (*ReturnDTO, error) {
	return s.mutate(ctx, returnID, "reject_return", s.apply(func(r *returns.ReturnOrder) error {
		return r.Reject(reason)
	}))
}

// ReceiveReturn records that the goods arrived at the warehouse
func (s *ReturnService) ReceiveReturn(ctx context.Context, returnID string) (*ReturnDTO, error) {
	return s.mutate(ctx, returnID, "receive_return", s.apply(func(r *returns.ReturnOrder) error {
		return r.Receive()
	}))
}

// InspectReturn grades the received goods and decides what can be restocked
func (s *ReturnService) InspectReturn(ctx context.Context, cmd InspectReturnCommand) (*ReturnDTO, error) {
	return s.mutate(ctx, cmd.ReturnID, "inspect_return", s.apply(func(r *returns.ReturnOrder) error {
		return r.Inspect(cmd.QualityGrade, cmd.Items, cmd.Notes)
	}))
}

// CompleteReturn closes an inspected return. Restockable goods go back into
// the ledger first, then a refund return moves the order to REFUNDED, and
// only then is the return saved. A failed save removes the restocked units
// again; the refund is idempotent so the retry is safe.
func (s *ReturnService) CompleteReturn(ctx context.Context, returnID, completedBy string) (*ReturnDTO, error) {
	dto, err := tracing.TracedOperation(ctx, tracer, "returns.complete", func(ctx context.Context) (*ReturnDTO, error) {
		return s.mutate(ctx, returnID, "complete_return", func(ctx context.Context, r *returns.ReturnOrder) error {
			if err := r.Complete(completedBy); err != nil {
				return err
			}

			plan := r.RestockPlan()
			lines := make([]restockLine, 0, len(plan))
			for _, item := range plan {
				lines = append(lines, restockLine{ProductID: item.ProductID, Quantity: item.RestockQuantity})
			}
			if err := restockLines(ctx, s.ledger, lines, s.logger); err != nil {
				return err
			}

			if r.RefundsOrder() {
				if err := s.transitions.MarkRefunded(ctx, r.OrderID, "return "+r.ReturnNumber); err != nil {
					undoRestock(ctx, s.ledger, lines, s.logger)
					return err
				}
			}

			if err := s.repo.Update(ctx, r); err != nil {
				undoRestock(ctx, s.ledger, lines, s.logger)
				return err
			}
			return nil
		})
	}, tracing.EntitySpanAttributes("return", returnID)...)
	if err != nil {
		return nil, err
	}

	units := 0
	for _, rec := range dto.RestockRecords {
		units += rec.Quantity
	}
	s.metrics.RecordReturnCompleted(dto.Type, units)
	s.logger.Audit(ctx, "complete", "return", returnID, completedBy, map[string]any{
		"orderId":        dto.OrderID,
		"type":           dto.Type,
		"unitsRestocked": units,
		"refundTotal":    dto.TotalRefundAmount,
	})
	return dto, nil
}

// GetReturn retrieves a return
func (s *ReturnService) GetReturn(ctx context.Context, returnID string) (*ReturnDTO, error) {
	r, err := s.repo.FindByID(ctx, returnID)
	if err != nil {
		return nil, mapError(err, "return", returnID)
	}
	if r == nil {
		return nil, errors.ErrNotFoundWithID("return", returnID)
	}
	return ToReturnDTO(r), nil
}

// ListReturns returns a page of returns
func (s *ReturnService) ListReturns(ctx context.Context, query ListReturnsQuery) (*api.PageResponse[ReturnDTO], error) {
	page := pageRequest(query.Page)
	items, total, err := s.repo.List(ctx, returns.Filter{
		OrderID: query.OrderID,
		Status:  query.Status,
		Page:    toPage(page),
	})
	if err != nil {
		s.logger.WithError(err).Error("Failed to list returns")
		return nil, mapError(err, "return", "")
	}

	data := make([]ReturnDTO, 0, len(items))
	for _, r := range items {
		data = append(data, *ToReturnDTO(r))
	}
	resp := api.NewPageResponse(data, page, total)
	return &resp, nil
}

// apply wraps a plain state change that is saved as is
func (s *ReturnService) apply(change func(*returns.ReturnOrder) error) func(context.Context, *returns.ReturnOrder) error {
	return func(ctx context.Context, r *returns.ReturnOrder) error {
		if err := change(r); err != nil {
			return err
		}
		return s.repo.Update(ctx, r)
	}
}

// mutate loads a return under its lock and hands it to fn, which persists it
func (s *ReturnService) mutate(ctx context.Context, id, op string, fn func(context.Context, *returns.ReturnOrder) error) (*ReturnDTO, error) {
	var from returns.Status
	r, err := guarded(ctx, s.guard, "return:"+id, op, func(ctx context.Context) (*returns.ReturnOrder, error) {
		r, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if r == nil {
			return nil, errors.ErrNotFoundWithID("return", id)
		}
		from = r.Status
		if err := fn(ctx, r); err != nil {
			return nil, err
		}
		return r, nil
	})
	if err != nil {
		s.logger.WithContext(ctx).Warn("Return update rejected", "returnId", id, "operation", op, "error", err)
		return nil, mapError(err, "return", id)
	}

	s.logger.StateTransition(ctx, "return", id, string(from), string(r.Status))
	return ToReturnDTO(r), nil
}
