package application

import (
	"context"

	"github.com/wms-platform/fulfillment/shared/pkg/api"
	"github.com/wms-platform/fulfillment/shared/pkg/errors"
	"github.com/wms-platform/fulfillment/shared/pkg/keylock"
	"github.com/wms-platform/fulfillment/shared/pkg/logging"
	"github.com/wms-platform/fulfillment/shared/pkg/metrics"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/common"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/exception"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/order"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/pipeline"
)

// ExceptionService handles delivery exceptions
type ExceptionService struct {
	repo      exception.Repository
	shipments pipeline.ShipmentRepository
	orders    order.Repository
	ledger    StockLedger
	guard     *guard
	metrics   *metrics.Metrics
	logger    *logging.Logger
}

// NewExceptionService creates a new ExceptionService
func NewExceptionService(
	repo exception.Repository,
	shipments pipeline.ShipmentRepository,
	orders order.Repository,
	ledger StockLedger,
	locker keylock.Locker,
	retryAttempts int,
	m *metrics.Metrics,
	logger *logging.Logger,
) *ExceptionService {
	logger = logger.WithComponent("exceptions")
	return &ExceptionService{
		repo:      repo,
		shipments: shipments,
		orders:    orders,
		ledger:    ledger,
		guard:     newGuard(locker, retryAttempts, m, logger),
		metrics:   m,
		logger:    logger,
	}
}

// CreateException reports a problem with a shipment
func (s *ExceptionService) CreateException(ctx context.Context, cmd CreateExceptionCommand) (*ExceptionDTO, error) {
	shipment, err := s.shipments.FindByTrackingNumber(ctx, cmd.TrackingNumber)
	if err != nil {
		return nil, mapError(err, "shipment", cmd.TrackingNumber)
	}
	if shipment == nil {
		return nil, errors.ErrNotFoundWithID("shipment", cmd.TrackingNumber)
	}

	e, err := exception.New(shipment, exception.Params{
		Type:          cmd.Type,
		Severity:      cmd.Severity,
		Description:   cmd.Description,
		Location:      cmd.Location,
		ExceptionDate: cmd.ExceptionDate,
		ReportedBy:    cmd.ReportedBy,
		Priority:      cmd.Priority,
	})
	if err != nil {
		return nil, mapError(err, "exception", "")
	}
	if err := s.repo.Create(ctx, e); err != nil {
		s.logger.WithError(err).Error("Failed to save exception", "trackingNumber", cmd.TrackingNumber)
		return nil, mapError(err, "exception", e.ExceptionID)
	}

	s.logger.Info("Reported delivery exception",
		"exceptionId", e.ExceptionID, "trackingNumber", e.TrackingNumber,
		"type", e.Type, "severity", e.Severity)
	return ToExceptionDTO(e), nil
}

// AssignException hands an open exception to an agent
func (s *ExceptionService) AssignException(ctx context.Context, exceptionID, agent string) (*ExceptionDTO, error) {
	return s.mutate(ctx, exceptionID, "assign_exception", s.apply(func(e *exception.DeliveryException) error {
		return e.Assign(agent)
	}))
}

// EscalateException raises an exception being worked on to URGENT
func (s *ExceptionService) EscalateException(ctx context.Context, exceptionID string) (*ExceptionDTO, error) {
	return s.mutate(ctx, exceptionID, "escalate_exception", s.apply(func(e *exception.DeliveryException) error {
		return e.Escalate()
	}))
}

// ResolveException closes an exception. Goods brought back by the carrier
// are checked against the shipped order lines and restocked before the
// resolution is saved.
func (s *ExceptionService) ResolveException(ctx context.Context, exceptionID string, in *exception.ResolutionInput) (*ExceptionDTO, error) {
	dto, err := s.mutate(ctx, exceptionID, "resolve_exception", func(ctx context.Context, e *exception.DeliveryException) error {
		if err := e.Resolve(in); err != nil {
			return err
		}
		if len(e.Resolution.RestockItems) == 0 {
			return s.repo.Update(ctx, e)
		}
		// resolutions of one shipment restock from the same order lines
		return s.guard.run(ctx, "exception-restock:"+e.TrackingNumber, "restock_exception", func(ctx context.Context) error {
			return s.restockAndSave(ctx, e)
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordExceptionResolved(string(dto.Resolution.Type))
	s.logger.Audit(ctx, "resolve", "exception", exceptionID, dto.Resolution.ResolvedBy, map[string]any{
		"resolutionType": dto.Resolution.Type,
		"durationHours":  dto.Resolution.DurationHours,
	})
	return dto, nil
}

func (s *ExceptionService) restockAndSave(ctx context.Context, e *exception.DeliveryException) error {
	o, err := s.orders.FindByID(ctx, e.OrderID)
	if err != nil {
		return err
	}
	if o == nil {
		return errors.ErrNotFoundWithID("order", e.OrderID)
	}
	shipped := make(map[string]int, len(o.Items))
	for _, line := range o.Items {
		shipped[line.ProductID] += line.Quantity
	}
	restocked, err := s.restockedForShipment(ctx, e.TrackingNumber)
	if err != nil {
		return err
	}
	if err := exception.CheckRestock(e.Resolution.RestockItems, shipped, restocked); err != nil {
		return err
	}

	lines := make([]restockLine, 0, len(e.Resolution.RestockItems))
	for _, item := range e.Resolution.RestockItems {
		lines = append(lines, restockLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	if err := restockLines(ctx, s.ledger, lines, s.logger); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, e); err != nil {
		undoRestock(ctx, s.ledger, lines, s.logger)
		return err
	}
	s.metrics.RecordUnitsRestocked(sumUnits(lines))
	return nil
}

func (s *ExceptionService) restockedForShipment(ctx context.Context, trackingNumber string) (map[string]int, error) {
	const pageSize = 100
	var resolved []*exception.DeliveryException
	for number := int64(1); ; number++ {
		page, total, err := s.repo.List(ctx, exception.Filter{
			Status:         exception.StatusResolved,
			TrackingNumber: trackingNumber,
			Page:           common.Page{Number: number, Size: pageSize},
		})
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, page...)
		if len(page) < pageSize || int64(len(resolved)) >= total {
			break
		}
	}
	return exception.RestockedQuantities(resolved), nil
}

// GetException retrieves an exception
func (s *ExceptionService) GetException(ctx context.Context, exceptionID string) (*ExceptionDTO, error) {
	e, err := s.repo.FindByID(ctx, exceptionID)
	if err != nil {
		return nil, mapError(err, "exception", exceptionID)
	}
	if e == nil {
		return nil, errors.ErrNotFoundWithID("exception", exceptionID)
	}
	return ToExceptionDTO(e), nil
}

// ListExceptions returns a page of exceptions
func (s *ExceptionService) ListExceptions(ctx context.Context, query ListExceptionsQuery) (*api.PageResponse[ExceptionDTO], error) {
	page := pageRequest(query.Page)
	items, total, err := s.repo.List(ctx, exception.Filter{
		Status:         query.Status,
		TrackingNumber: query.TrackingNumber,
		Page:           toPage(page),
	})
	if err != nil {
		s.logger.WithError(err).Error("Failed to list exceptions")
		return nil, mapError(err, "exception", "")
	}

	data := make([]ExceptionDTO, 0, len(items))
	for _, e := range items {
		data = append(data, *ToExceptionDTO(e))
	}
	resp := api.NewPageResponse(data, page, total)
	return &resp, nil
}

func (s *ExceptionService) apply(change func(*exception.DeliveryException) error) func(context.Context, *exception.DeliveryException) error {
	return func(ctx context.Context, e *exception.DeliveryException) error {
		if err := change(e); err != nil {
			return err
		}
		return s.repo.Update(ctx, e)
	}
}

func (s *ExceptionService) mutate(ctx context.Context, id, op string, fn func(context.Context, *exception.DeliveryException) error) (*ExceptionDTO, error) {
	var from exception.Status
	e, err := guarded(ctx, s.guard, "exception:"+id, op, func(ctx context.Context) (*exception.DeliveryException, error) {
		e, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if e == nil {
			return nil, errors.ErrNotFoundWithID("exception", id)
		}
		from = e.Status
		if err := fn(ctx, e); err != nil {
			return nil, err
		}
		return e, nil
	})
	if err != nil {
		s.logger.WithContext(ctx).Warn("Exception update rejected", "exceptionId", id, "operation", op, "error", err)
		return nil, mapError(err, "exception", id)
	}

	s.logger.StateTransition(ctx, "exception", id, string(from), string(e.Status))
	return ToExceptionDTO(e), nil
}
