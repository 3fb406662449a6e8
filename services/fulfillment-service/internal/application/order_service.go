package application

import (
	"context"
	"fmt"

	"github.com/wms-platform/fulfillment/shared/pkg/api"
	"github.com/wms-platform/fulfillment/shared/pkg/errors"
	"github.com/wms-platform/fulfillment/shared/pkg/keylock"
	"github.com/wms-platform/fulfillment/shared/pkg/logging"
	"github.com/wms-platform/fulfillment/shared/pkg/metrics"
	"github.com/wms-platform/fulfillment/shared/pkg/tracing"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/order"
)

// OrderService runs the order state machine. Stock side effects go through
// the ledger before the order is persisted, and are compensated when a later
// step fails.
type OrderService struct {
	repo      order.Repository
	ledger    StockLedger
	shipments ShipmentFinder
	workflows Orchestrator
	guard     *guard
	metrics   *metrics.Metrics
	logger    *logging.Logger
}

// NewOrderService creates a new OrderService. workflows may be nil when
// orders are not orchestrated.
func NewOrderService(
	repo order.Repository,
	ledger StockLedger,
	shipments ShipmentFinder,
	workflows Orchestrator,
	locker keylock.Locker,
	retryAttempts int,
	m *metrics.Metrics,
	logger *logging.Logger,
) *OrderService {
	logger = logger.WithComponent("orders")
	return &OrderService{
		repo:      repo,
		ledger:    ledger,
		shipments: shipments,
		workflows: workflows,
		guard:     newGuard(locker, retryAttempts, m, logger),
		metrics:   m,
		logger:    logger,
	}
}

// CreateOrder validates the order, reserves every line and persists it as
// PENDING. Either every line is reserved or none is.
func (s *OrderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (*OrderDTO, error) {
	return tracing.TracedOperation(ctx, tracer, "order.create", func(ctx context.Context) (*OrderDTO, error) {
		o, err := order.NewOrder(cmd.params())
		if err != nil {
			return nil, mapError(err, "order", "")
		}

		if err := s.reserveLines(ctx, o.Items); err != nil {
			s.logger.WithContext(ctx).Warn("Order rejected, reservation failed", "orderNumber", o.OrderNumber, "error", err)
			return nil, err
		}

		if err := s.repo.Create(ctx, o); err != nil {
			s.logger.WithError(err).Error("Failed to save order, releasing reservations", "orderId", o.OrderID)
			s.releaseLines(ctx, o.Items)
			return nil, mapError(err, "order", o.OrderID)
		}

		s.metrics.RecordOrderCreated(string(o.Priority))
		s.logger.Audit(ctx, "create", "order", o.OrderID, o.Customer.ID, map[string]any{
			"orderNumber": o.OrderNumber,
			"lines":       len(o.Items),
			"finalAmount": o.FinalAmount.Float(),
		})
		if s.workflows != nil {
			if err := s.workflows.StartFulfillment(ctx, o.OrderID); err != nil {
				s.logger.WithError(err).Error("Failed to start fulfillment workflow", "orderId", o.OrderID)
			}
		}
		return ToOrderDTO(o), nil
	})
}

// UpdateOrderStatus moves an order along the transition table. REFUNDED is
// reserved to the returns flow.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID string, target order.Status, reason string) (*OrderDTO, error) {
	if !target.IsValid() {
		return nil, errors.ErrValidation(fmt.Sprintf("unknown order status %q", target)).WithEntity("order", orderID)
	}
	if target == order.StatusRefunded {
		return nil, errors.ErrInvalidTransition("orders are refunded through the returns flow").WithEntity("order", orderID)
	}

	return s.transition(ctx, orderID, "update_status", func(ctx context.Context, o *order.Order) error {
		if !order.CanTransition(o.Status, target) {
			return fmt.Errorf("%w: %s -> %s", order.ErrInvalidTransition, o.Status, target)
		}
		switch target {
		case order.StatusCancelled:
			return s.cancel(ctx, o, reason)
		case order.StatusShipped:
			return s.ship(ctx, o, reason)
		default:
			if err := o.TransitionTo(target, reason); err != nil {
				return err
			}
			return s.repo.Update(ctx, o)
		}
	})
}

// CancelOrder cancels an order that has not shipped yet and releases its stock
func (s *OrderService) CancelOrder(ctx context.Context, orderID, reason string) (*OrderDTO, error) {
	return s.transition(ctx, orderID, "cancel", func(ctx context.Context, o *order.Order) error {
		if err := o.CheckCancellable(); err != nil {
			return err
		}
		return s.cancel(ctx, o, reason)
	})
}

// UpdatePaymentStatus records PAID or FAILED on a live order
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, orderID string, status order.PaymentStatus) (*OrderDTO, error) {
	if !status.IsValid() {
		return nil, errors.ErrValidation(fmt.Sprintf("unknown payment status %q", status)).WithEntity("order", orderID)
	}

	var updated *order.Order
	err := s.guard.run(ctx, orderKey(orderID), "update_payment", func(ctx context.Context) error {
		o, err := s.load(ctx, orderID)
		if err != nil {
			return err
		}
		if err := o.UpdatePaymentStatus(status); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, o); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, mapError(err, "order", orderID)
	}

	s.logger.Info("Updated payment status", "orderId", orderID, "paymentStatus", status)
	return ToOrderDTO(updated), nil
}

// StartProcessing moves a CONFIRMED order to PROCESSING when picking starts
func (s *OrderService) StartProcessing(ctx context.Context, orderID, pickListID string) error {
	_, err := s.transition(ctx, orderID, "start_processing", func(ctx context.Context, o *order.Order) error {
		if o.Status != order.StatusConfirmed {
			return errors.ErrPriorStageIncomplete(fmt.Sprintf("order is %s, picking needs a CONFIRMED order", o.Status)).
				WithEntity("order", orderID)
		}
		o.LinkStage(order.LinkPickList, pickListID)
		if err := o.TransitionTo(order.StatusProcessing, "picking started"); err != nil {
			return err
		}
		return s.repo.Update(ctx, o)
	})
	return err
}

// ConfirmedForPicking loads an order and checks that picking may start
func (s *OrderService) ConfirmedForPicking(ctx context.Context, orderID string) (*order.Order, error) {
	o, err := s.load(ctx, orderID)
	if err != nil {
		return nil, mapError(err, "order", orderID)
	}
	if o.Status != order.StatusConfirmed {
		return nil, errors.ErrPriorStageIncomplete(fmt.Sprintf("order is %s, picking needs a CONFIRMED order", o.Status)).
			WithEntity("order", orderID)
	}
	return o, nil
}

// LinkStage records a pipeline record id on the order
func (s *OrderService) LinkStage(ctx context.Context, orderID string, link order.StageLink, stageID string) error {
	err := s.guard.run(ctx, orderKey(orderID), "link_stage", func(ctx context.Context) error {
		o, err := s.load(ctx, orderID)
		if err != nil {
			return err
		}
		o.LinkStage(link, stageID)
		return s.repo.Update(ctx, o)
	})
	return mapError(err, "order", orderID)
}

// MarkRefunded moves a DELIVERED order to REFUNDED. Calling it on an order
// that is already refunded succeeds without a change.
func (s *OrderService) MarkRefunded(ctx context.Context, orderID, reason string) error {
	_, err := s.transition(ctx, orderID, "refund", func(ctx context.Context, o *order.Order) error {
		if o.Status == order.StatusRefunded {
			return nil
		}
		if err := o.TransitionTo(order.StatusRefunded, reason); err != nil {
			return err
		}
		return s.repo.Update(ctx, o)
	})
	return err
}

// GetOrder retrieves an order
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*OrderDTO, error) {
	o, err := s.load(ctx, orderID)
	if err != nil {
		return nil, mapError(err, "order", orderID)
	}
	return ToOrderDTO(o), nil
}

// GetOrderByNumber retrieves an order by its business number
func (s *OrderService) GetOrderByNumber(ctx context.Context, orderNumber string) (*OrderDTO, error) {
	o, err := s.repo.FindByNumber(ctx, orderNumber)
	if err != nil {
		return nil, mapError(err, "order", orderNumber)
	}
	if o == nil {
		return nil, errors.ErrNotFoundWithID("order", orderNumber)
	}
	return ToOrderDTO(o), nil
}

// ListOrders returns a page of orders
func (s *OrderService) ListOrders(ctx context.Context, query ListOrdersQuery) (*api.PageResponse[OrderDTO], error) {
	page := pageRequest(query.Page)
	orders, total, err := s.repo.List(ctx, order.Filter{
		Status:     query.Status,
		CustomerID: query.CustomerID,
		Page:       toPage(page),
	})
	if err != nil {
		s.logger.WithError(err).Error("Failed to list orders")
		return nil, mapError(err, "order", "")
	}

	data := make([]OrderDTO, 0, len(orders))
	for _, o := range orders {
		data = append(data, *ToOrderDTO(o))
	}
	resp := api.NewPageResponse(data, page, total)
	return &resp, nil
}

// transition runs fn on a freshly loaded order under the order lock and
// records the resulting status change
func (s *OrderService) transition(ctx context.Context, orderID, op string, fn func(context.Context, *order.Order) error) (*OrderDTO, error) {
	return tracing.TracedOperation(ctx, tracer, "order."+op, func(ctx context.Context) (*OrderDTO, error) {
		var (
			updated *order.Order
			from    order.Status
		)
		err := s.guard.run(ctx, orderKey(orderID), op, func(ctx context.Context) error {
			o, err := s.load(ctx, orderID)
			if err != nil {
				return err
			}
			from = o.Status
			if err := fn(ctx, o); err != nil {
				return err
			}
			updated = o
			return nil
		})
		if err != nil {
			mapped := mapError(err, "order", orderID)
			s.logger.WithContext(ctx).Warn("Order transition rejected", "orderId", orderID, "operation", op, "error", err)
			return nil, mapped
		}

		if from != updated.Status {
			s.metrics.RecordOrderTransition(string(from), string(updated.Status))
			s.logger.StateTransition(ctx, "order", orderID, string(from), string(updated.Status))
			s.notifyWorkflow(ctx, updated)
		}
		return ToOrderDTO(updated), nil
	}, tracing.EntitySpanAttributes("order", orderID)...)
}

// notifyWorkflow forwards the facts the fulfillment workflow waits for. The
// order is already persisted, so failures are only logged.
func (s *OrderService) notifyWorkflow(ctx context.Context, o *order.Order) {
	if s.workflows == nil {
		return
	}
	var err error
	switch o.Status {
	case order.StatusShipped:
		err = s.workflows.OrderShipped(ctx, o.OrderID, o.Links.TrackingNumber)
	case order.StatusDelivered:
		at := o.UpdatedAt
		if o.DeliveredAt != nil {
			at = *o.DeliveredAt
		}
		err = s.workflows.OrderDelivered(ctx, o.OrderID, at)
	case order.StatusCancelled:
		err = s.workflows.OrderCancelled(ctx, o.OrderID, o.CancellationReason)
	}
	if err != nil {
		s.logger.WithContext(ctx).Warn("Failed to signal fulfillment workflow", "orderId", o.OrderID, "status", o.Status, "error", err)
	}
}

func (s *OrderService) load(ctx context.Context, orderID string) (*order.Order, error) {
	o, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, errors.ErrNotFoundWithID("order", orderID)
	}
	return o, nil
}

// cancel releases every line and then persists CANCELLED. A failed save
// reserves the released lines again.
func (s *OrderService) cancel(ctx context.Context, o *order.Order, reason string) error {
	released, err := s.applyLines(ctx, o.Items, s.ledger.Release)
	if err != nil {
		s.compensate(ctx, "reserve", released, s.ledger.Reserve)
		return err
	}

	if err := o.Cancel(reason); err != nil {
		s.compensate(ctx, "reserve", released, s.ledger.Reserve)
		return err
	}
	if err := s.repo.Update(ctx, o); err != nil {
		s.compensate(ctx, "reserve", released, s.ledger.Reserve)
		return err
	}
	return nil
}

// ship needs a completed shipment, commits every line and persists SHIPPED
func (s *OrderService) ship(ctx context.Context, o *order.Order, reason string) error {
	shipment, err := s.shipments.FindByOrderID(ctx, o.OrderID)
	if err != nil {
		return err
	}
	if shipment == nil || !shipment.IsCompleted() {
		return errors.ErrPipelineIncomplete("order has no dispatched shipment").WithEntity("order", o.OrderID)
	}

	committed, err := s.applyLines(ctx, o.Items, s.ledger.Commit)
	if err != nil {
		s.compensate(ctx, "revert_commit", committed, s.ledger.RevertCommit)
		return err
	}

	if err := o.TransitionTo(order.StatusShipped, reason); err != nil {
		s.compensate(ctx, "revert_commit", committed, s.ledger.RevertCommit)
		return err
	}
	if err := s.repo.Update(ctx, o); err != nil {
		s.compensate(ctx, "revert_commit", committed, s.ledger.RevertCommit)
		return err
	}
	return nil
}

type lineOp func(ctx context.Context, productID string, qty int) (*StockDTO, error)

// reserveLines reserves every line or none
func (s *OrderService) reserveLines(ctx context.Context, lines []order.LineItem) error {
	reserved, err := s.applyLines(ctx, lines, s.ledger.Reserve)
	if err != nil {
		s.compensate(ctx, "release", reserved, s.ledger.Release)
		return err
	}
	return nil
}

func (s *OrderService) releaseLines(ctx context.Context, lines []order.LineItem) {
	s.compensate(ctx, "release", lines, s.ledger.Release)
}

// applyLines runs op for each line in order and returns the lines it applied
// before the first failure
func (s *OrderService) applyLines(ctx context.Context, lines []order.LineItem, op lineOp) ([]order.LineItem, error) {
	for i, line := range lines {
		if _, err := op(ctx, line.ProductID, line.Quantity); err != nil {
			return lines[:i], err
		}
	}
	return lines, nil
}

// compensate is best effort; each failure is logged and the rest still run
func (s *OrderService) compensate(ctx context.Context, name string, lines []order.LineItem, op lineOp) {
	for _, line := range lines {
		if _, err := op(ctx, line.ProductID, line.Quantity); err != nil {
			s.logger.WithError(err).Error("Compensation failed",
				"compensation", name, "productId", line.ProductID, "quantity", line.Quantity)
		}
	}
}

func orderKey(orderID string) string {
	return "order:" + orderID
}
