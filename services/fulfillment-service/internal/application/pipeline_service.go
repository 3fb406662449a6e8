package application

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/wms-platform/fulfillment/shared/pkg/errors"
	"github.com/wms-platform/fulfillment/shared/pkg/keylock"
	"github.com/wms-platform/fulfillment/shared/pkg/logging"
	"github.com/wms-platform/fulfillment/shared/pkg/metrics"
	"github.com/wms-platform/fulfillment/shared/pkg/tracing"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/order"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/pipeline"
)

// PipelineRepositories groups the stage record stores
type PipelineRepositories struct {
	PickLists     pipeline.PickListRepository
	Packages      pipeline.PackageRepository
	QualityChecks pipeline.QualityCheckRepository
	Shipments     pipeline.ShipmentRepository
	Tracking      pipeline.TrackingRepository
}

// PipelineConfig holds pipeline tunables
type PipelineConfig struct {
	QualityMinimumScore float64
	RetryAttempts       int
}

// PipelineService moves an order through pick, pack, quality check, shipment
// and tracking. Every stage checks its predecessor and fails fast.
type PipelineService struct {
	repos        PipelineRepositories
	orders       order.Repository
	transitions  OrderTransitions
	guard        *guard
	minimumScore float64
	metrics      *metrics.Metrics
	logger       *logging.Logger
}

// NewPipelineService creates a new PipelineService
func NewPipelineService(
	repos PipelineRepositories,
	orders order.Repository,
	transitions OrderTransitions,
	locker keylock.Locker,
	config PipelineConfig,
	m *metrics.Metrics,
	logger *logging.Logger,
) *PipelineService {
	if config.QualityMinimumScore <= 0 {
		config.QualityMinimumScore = pipeline.DefaultMinimumScore
	}
	logger = logger.WithComponent("pipeline")
	return &PipelineService{
		repos:        repos,
		orders:       orders,
		transitions:  transitions,
		guard:        newGuard(locker, config.RetryAttempts, m, logger),
		minimumScore: config.QualityMinimumScore,
		metrics:      m,
		logger:       logger,
	}
}

// StartPicking creates the pick list of a CONFIRMED order and moves the order
// to PROCESSING. If the order cannot move, the pick list is cancelled.
func (s *PipelineService) StartPicking(ctx context.Context, cmd StartPickingCommand) (*PickListDTO, error) {
	pl, err := guarded(ctx, s.guard, pipelineKey(cmd.OrderID), "start_picking", func(ctx context.Context) (*pipeline.PickList, error) {
		o, err := s.loadOrder(ctx, cmd.OrderID)
		if err != nil {
			return nil, err
		}
		if o.Status != order.StatusConfirmed {
			return nil, priorStage("order is %s, picking needs a CONFIRMED order", o.Status)
		}
		existing, err := s.repos.PickLists.FindByOrderID(ctx, o.OrderID)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.Status != pipeline.PickListCancelled {
			return nil, errors.ErrConflict("order already has a pick list")
		}

		pl := pipeline.NewPickList(o, cmd.AssignedTo)
		if err := s.repos.PickLists.Create(ctx, pl); err != nil {
			return nil, err
		}

		if err := s.transitions.StartProcessing(ctx, o.OrderID, pl.PickListID); err != nil {
			s.logger.WithError(err).Warn("Order could not start processing, cancelling pick list",
				"orderId", o.OrderID, "pickListId", pl.PickListID)
			if cerr := pl.Cancel("order could not start processing"); cerr == nil {
				if uerr := s.repos.PickLists.Update(ctx, pl); uerr != nil {
					s.logger.WithError(uerr).Error("Failed to cancel pick list", "pickListId", pl.PickListID)
				}
			}
			return nil, err
		}
		return pl, nil
	})
	if err != nil {
		return nil, mapError(err, "order", cmd.OrderID)
	}

	s.logger.Info("Started picking", "orderId", cmd.OrderID, "pickListId", pl.PickListID, "assignedTo", cmd.AssignedTo)
	return &PickListDTO{PickList: pl.Clone()}, nil
}

// RecordPick records picked units of one product
func (s *PipelineService) RecordPick(ctx context.Context, pickListID, productID string, qty int) (*PickListDTO, error) {
	pl, err := s.mutatePickList(ctx, pickListID, "record_pick", func(pl *pipeline.PickList) error {
		return pl.RecordPick(productID, qty)
	})
	if err != nil {
		return nil, err
	}
	return &PickListDTO{PickList: pl}, nil
}

// CompletePicking completes a pick list; picked optionally sets final quantities
func (s *PipelineService) CompletePicking(ctx context.Context, pickListID string, picked map[string]int) (*PickListDTO, error) {
	pl, err := s.mutatePickList(ctx, pickListID, "complete_picking", func(pl *pipeline.PickList) error {
		return pl.Complete(picked)
	})
	if err != nil {
		return nil, err
	}
	return &PickListDTO{PickList: pl, Outcome: s.completed(ctx, pipeline.StagePick, pl.PickListID, pl.OrderID, false)}, nil
}

func (s *PipelineService) mutatePickList(ctx context.Context, id, op string, apply func(*pipeline.PickList) error) (*pipeline.PickList, error) {
	pl, err := guarded(ctx, s.guard, "picklist:"+id, op, func(ctx context.Context) (*pipeline.PickList, error) {
		pl, err := s.repos.PickLists.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if pl == nil {
			return nil, errors.ErrNotFoundWithID("pick list", id)
		}
		if err := apply(pl); err != nil {
			return nil, err
		}
		return pl, s.repos.PickLists.Update(ctx, pl)
	})
	if err != nil {
		return nil, mapError(err, "pick list", id)
	}
	return pl.Clone(), nil
}

// StartPacking opens the package once the pick list is completed
func (s *PipelineService) StartPacking(ctx context.Context, cmd StartPackingCommand) (*PackageDTO, error) {
	pkg, err := guarded(ctx, s.guard, pipelineKey(cmd.OrderID), "start_packing", func(ctx context.Context) (*pipeline.Package, error) {
		o, err := s.loadOrder(ctx, cmd.OrderID)
		if err != nil {
			return nil, err
		}
		pl, err := s.repos.PickLists.FindByOrderID(ctx, cmd.OrderID)
		if err != nil {
			return nil, err
		}
		if pl == nil || pl.Status != pipeline.PickListCompleted {
			return nil, priorStage("picking is not completed")
		}
		if err := requireProcessing(o, "packing"); err != nil {
			return nil, err
		}
		existing, err := s.repos.Packages.FindByOrderID(ctx, cmd.OrderID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, errors.ErrConflict("order already has a package")
		}

		pkg, err := pipeline.NewPackage(pl, pipeline.PackageParams{
			PackageType: cmd.PackageType,
			PackageSize: cmd.PackageSize,
			Carrier:     cmd.Carrier,
			ServiceType: cmd.ServiceType,
			Flags:       cmd.Flags,
		})
		if err != nil {
			return nil, err
		}
		return pkg, s.repos.Packages.Create(ctx, pkg)
	})
	if err != nil {
		return nil, mapError(err, "order", cmd.OrderID)
	}

	s.link(ctx, cmd.OrderID, order.LinkPackage, pkg.PackageID)
	s.logger.Info("Started packing", "orderId", cmd.OrderID, "packageId", pkg.PackageID)
	return &PackageDTO{Package: pkg.Clone()}, nil
}

// CompletePacking seals a package
func (s *PipelineService) CompletePacking(ctx context.Context, cmd CompletePackingCommand) (*PackageDTO, error) {
	pkg, err := guarded(ctx, s.guard, "package:"+cmd.PackageID, "complete_packing", func(ctx context.Context) (*pipeline.Package, error) {
		pkg, err := s.repos.Packages.FindByID(ctx, cmd.PackageID)
		if err != nil {
			return nil, err
		}
		if pkg == nil {
			return nil, errors.ErrNotFoundWithID("package", cmd.PackageID)
		}
		if err := pkg.Complete(cmd.PackedBy, cmd.WeightKg, cmd.Dimensions); err != nil {
			return nil, err
		}
		return pkg, s.repos.Packages.Update(ctx, pkg)
	})
	if err != nil {
		return nil, mapError(err, "package", cmd.PackageID)
	}
	return &PackageDTO{Package: pkg.Clone(), Outcome: s.completed(ctx, pipeline.StagePack, pkg.PackageID, pkg.OrderID, false)}, nil
}

// StartQualityCheck opens the inspection of a packed package
func (s *PipelineService) StartQualityCheck(ctx context.Context, cmd StartQualityCheckCommand) (*QualityCheckDTO, error) {
	check, err := guarded(ctx, s.guard, pipelineKey(cmd.OrderID), "start_quality_check", func(ctx context.Context) (*pipeline.QualityCheck, error) {
		o, err := s.loadOrder(ctx, cmd.OrderID)
		if err != nil {
			return nil, err
		}
		pkg, err := s.repos.Packages.FindByOrderID(ctx, cmd.OrderID)
		if err != nil {
			return nil, err
		}
		if pkg == nil || pkg.Status != pipeline.PackagePacked {
			return nil, priorStage("packing is not completed")
		}
		if err := requireProcessing(o, "a quality check"); err != nil {
			return nil, err
		}
		existing, err := s.repos.QualityChecks.FindByOrderID(ctx, cmd.OrderID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, errors.ErrConflict("order already has a quality check")
		}

		check, err := pipeline.NewQualityCheck(pkg, cmd.InspectorName, cmd.CheckType)
		if err != nil {
			return nil, err
		}
		return check, s.repos.QualityChecks.Create(ctx, check)
	})
	if err != nil {
		return nil, mapError(err, "order", cmd.OrderID)
	}

	s.link(ctx, cmd.OrderID, order.LinkQualityCheck, check.CheckID)
	s.logger.Info("Started quality check", "orderId", cmd.OrderID, "checkId", check.CheckID)
	return &QualityCheckDTO{QualityCheck: check.Clone()}, nil
}

// CompleteQualityCheck grades the inspection
func (s *PipelineService) CompleteQualityCheck(ctx context.Context, checkID string, in pipeline.Inspection) (*QualityCheckDTO, error) {
	check, err := s.mutateCheck(ctx, checkID, "complete_quality_check", func(q *pipeline.QualityCheck) error {
		return q.Complete(in, s.minimumScore)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordQualityResult(string(check.OverallResult))
	s.logger.Info("Completed quality check",
		"checkId", checkID, "result", check.OverallResult,
		"score", check.ScorePercentage, "approved", check.ApprovedForShipment)
	return &QualityCheckDTO{QualityCheck: check, Outcome: s.completed(ctx, pipeline.StageQuality, checkID, check.OrderID, false)}, nil
}

// RequestRecheck resets an unapproved check for re-inspection
func (s *PipelineService) RequestRecheck(ctx context.Context, checkID, notes string) (*QualityCheckDTO, error) {
	check, err := s.mutateCheck(ctx, checkID, "request_recheck", func(q *pipeline.QualityCheck) error {
		return q.RequestRecheck(notes)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Requested quality recheck", "checkId", checkID, "recheckCount", check.RecheckCount)
	return &QualityCheckDTO{QualityCheck: check}, nil
}

func (s *PipelineService) mutateCheck(ctx context.Context, id, op string, apply func(*pipeline.QualityCheck) error) (*pipeline.QualityCheck, error) {
	check, err := guarded(ctx, s.guard, "quality:"+id, op, func(ctx context.Context) (*pipeline.QualityCheck, error) {
		q, err := s.repos.QualityChecks.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if q == nil {
			return nil, errors.ErrNotFoundWithID("quality check", id)
		}
		if err := apply(q); err != nil {
			return nil, err
		}
		return q, s.repos.QualityChecks.Update(ctx, q)
	})
	if err != nil {
		return nil, mapError(err, "quality check", id)
	}
	return check.Clone(), nil
}

// StartShipment schedules the shipment of an approved package and opens its
// delivery status
func (s *PipelineService) StartShipment(ctx context.Context, cmd StartShipmentCommand) (*ShipmentDTO, error) {
	shipment, err := guarded(ctx, s.guard, pipelineKey(cmd.OrderID), "start_shipment", func(ctx context.Context) (*pipeline.Shipment, error) {
		o, err := s.loadOrder(ctx, cmd.OrderID)
		if err != nil {
			return nil, err
		}
		check, err := s.repos.QualityChecks.FindByOrderID(ctx, cmd.OrderID)
		if err != nil {
			return nil, err
		}
		if check == nil || !check.ApprovedForShipment {
			return nil, priorStage("quality check is not approved for shipment")
		}
		if err := requireProcessing(o, "shipping"); err != nil {
			return nil, err
		}
		existing, err := s.repos.Shipments.FindByOrderID(ctx, cmd.OrderID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, errors.ErrConflict("order already has a shipment")
		}
		pkg, err := s.repos.Packages.FindByID(ctx, check.PackageID)
		if err != nil {
			return nil, err
		}
		if pkg == nil {
			return nil, priorStage("package %s is missing", check.PackageID)
		}

		shipment, err := pipeline.NewShipment(pkg, check, pipeline.ShipmentParams{
			Carrier:     cmd.Carrier,
			ServiceType: cmd.ServiceType,
			ScheduledAt: cmd.ScheduledAt,
			DockDoor:    cmd.DockDoor,
		})
		if err != nil {
			return nil, err
		}
		return shipment, s.repos.Shipments.Create(ctx, shipment)
	})
	if err != nil {
		return nil, mapError(err, "order", cmd.OrderID)
	}

	if err := s.repos.Tracking.CreateStatus(ctx, pipeline.NewDeliveryStatus(shipment)); err != nil {
		s.logger.WithError(err).Error("Failed to open delivery status", "trackingNumber", shipment.TrackingNumber)
	}
	s.link(ctx, cmd.OrderID, order.LinkShipment, shipment.ShipmentID)
	s.link(ctx, cmd.OrderID, order.LinkTracking, shipment.TrackingNumber)

	s.logger.Info("Scheduled shipment", "orderId", cmd.OrderID,
		"shipmentId", shipment.ShipmentID, "trackingNumber", shipment.TrackingNumber, "carrier", shipment.Carrier)
	return &ShipmentDTO{Shipment: shipment.Clone()}, nil
}

// CompleteShipment dispatches the shipment and marks the order SHIPPED, which
// commits its stock. The dispatch is reverted if the order cannot move.
func (s *PipelineService) CompleteShipment(ctx context.Context, shipmentID, dispatchedBy string) (*ShipmentDTO, error) {
	shipment, err := tracing.TracedOperation(ctx, tracer, "pipeline.complete_shipment", func(ctx context.Context) (*pipeline.Shipment, error) {
		return guarded(ctx, s.guard, "shipment:"+shipmentID, "complete_shipment", func(ctx context.Context) (*pipeline.Shipment, error) {
			shipment, err := s.repos.Shipments.FindByID(ctx, shipmentID)
			if err != nil {
				return nil, err
			}
			if shipment == nil {
				return nil, errors.ErrNotFoundWithID("shipment", shipmentID)
			}
			o, err := s.loadOrder(ctx, shipment.OrderID)
			if err != nil {
				return nil, err
			}
			if err := requireProcessing(o, "shipping"); err != nil {
				return nil, err
			}

			if err := shipment.Dispatch(dispatchedBy); err != nil {
				return nil, err
			}
			if err := s.repos.Shipments.Update(ctx, shipment); err != nil {
				return nil, err
			}

			if _, err := s.transitions.UpdateOrderStatus(ctx, shipment.OrderID, order.StatusShipped, "shipment dispatched"); err != nil {
				s.logger.WithError(err).Warn("Order could not be shipped, reverting dispatch", "shipmentId", shipmentID)
				shipment.RevertDispatch()
				if uerr := s.repos.Shipments.Update(ctx, shipment); uerr != nil {
					s.logger.WithError(uerr).Error("Failed to revert dispatch", "shipmentId", shipmentID)
				}
				return nil, err
			}
			return shipment, nil
		})
	}, tracing.EntitySpanAttributes("shipment", shipmentID)...)
	if err != nil {
		return nil, mapError(err, "shipment", shipmentID)
	}

	outcome := s.completed(ctx, pipeline.StageShipment, shipmentID, shipment.OrderID, true)
	return &ShipmentDTO{Shipment: shipment.Clone(), Outcome: outcome}, nil
}

// RecordTrackingEvent appends a carrier scan. Milestones update the delivery
// status; a DELIVERED milestone also delivers the shipment and the order.
func (s *PipelineService) RecordTrackingEvent(ctx context.Context, cmd RecordTrackingEventCommand) (*TrackingEventDTO, error) {
	shipment, err := s.repos.Shipments.FindByTrackingNumber(ctx, cmd.TrackingNumber)
	if err != nil {
		return nil, mapError(err, "shipment", cmd.TrackingNumber)
	}
	if shipment == nil {
		return nil, errors.ErrNotFoundWithID("shipment", cmd.TrackingNumber)
	}
	if !shipment.IsCompleted() {
		return nil, priorStage("shipment %s has not been dispatched", shipment.ShipmentID).WithEntity("shipment", shipment.ShipmentID)
	}

	ev, err := pipeline.NewTrackingEvent(shipment, cmd.Params)
	if err != nil {
		return nil, mapError(err, "shipment", shipment.ShipmentID)
	}
	if err := s.repos.Tracking.Append(ctx, ev); err != nil {
		return nil, mapError(err, "tracking event", ev.EventID)
	}

	var applied bool
	status, err := guarded(ctx, s.guard, "tracking:"+cmd.TrackingNumber, "apply_tracking", func(ctx context.Context) (*pipeline.DeliveryStatus, error) {
		status, err := s.repos.Tracking.FindStatus(ctx, cmd.TrackingNumber)
		if err != nil {
			return nil, err
		}
		if status == nil {
			status = pipeline.NewDeliveryStatus(shipment)
			if err := s.repos.Tracking.CreateStatus(ctx, status); err != nil {
				return nil, err
			}
		}
		applied = status.Apply(ev)
		if !applied {
			return status, nil
		}
		return status, s.repos.Tracking.UpdateStatus(ctx, status)
	})
	if err != nil {
		return nil, mapError(err, "delivery status", cmd.TrackingNumber)
	}

	result := &TrackingEventDTO{Event: ev, Applied: applied, DeliveryStatus: status.Clone()}
	s.logger.Info("Recorded tracking event", "trackingNumber", cmd.TrackingNumber,
		"eventType", ev.EventType, "milestone", ev.IsMilestone, "applied", applied)

	if applied && status.IsDelivered {
		if err := s.deliver(ctx, shipment.ShipmentID, *status.ActualDelivery); err != nil {
			return nil, err
		}
		result.Outcome = s.completed(ctx, pipeline.StageDelivery, shipment.ShipmentID, shipment.OrderID, true)
	}
	return result, nil
}

func (s *PipelineService) deliver(ctx context.Context, shipmentID string, at time.Time) error {
	shipment, err := guarded(ctx, s.guard, "shipment:"+shipmentID, "deliver_shipment", func(ctx context.Context) (*pipeline.Shipment, error) {
		shipment, err := s.repos.Shipments.FindByID(ctx, shipmentID)
		if err != nil {
			return nil, err
		}
		if shipment == nil {
			return nil, errors.ErrNotFoundWithID("shipment", shipmentID)
		}
		shipment.MarkDelivered(at)
		return shipment, s.repos.Shipments.Update(ctx, shipment)
	})
	if err != nil {
		return mapError(err, "shipment", shipmentID)
	}

	if _, err := s.transitions.UpdateOrderStatus(ctx, shipment.OrderID, order.StatusDelivered, "delivery confirmed"); err != nil {
		if errors.HasCode(err, errors.CodeInvalidTransition) {
			// the order may already have been marked delivered through the order API
			if o, loadErr := s.loadOrder(ctx, shipment.OrderID); loadErr == nil &&
				(o.Status == order.StatusDelivered || o.Status == order.StatusRefunded) {
				s.logger.Info("Order already delivered", "orderId", o.OrderID, "status", o.Status)
				return nil
			}
		}
		s.logger.WithError(err).Error("Delivered shipment but order could not move", "orderId", shipment.OrderID)
		return err
	}
	return nil
}

// GetPipeline returns every stage record of an order
func (s *PipelineService) GetPipeline(ctx context.Context, orderID string) (*PipelineDTO, error) {
	o, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, mapError(err, "order", orderID)
	}

	result := &PipelineDTO{OrderID: o.OrderID, OrderStatus: string(o.Status), TrackingEvents: []*pipeline.TrackingEvent{}}
	if result.PickList, err = s.repos.PickLists.FindByOrderID(ctx, orderID); err != nil {
		return nil, mapError(err, "pick list", "")
	}
	if result.Package, err = s.repos.Packages.FindByOrderID(ctx, orderID); err != nil {
		return nil, mapError(err, "package", "")
	}
	if result.QualityCheck, err = s.repos.QualityChecks.FindByOrderID(ctx, orderID); err != nil {
		return nil, mapError(err, "quality check", "")
	}
	if result.Shipment, err = s.repos.Shipments.FindByOrderID(ctx, orderID); err != nil {
		return nil, mapError(err, "shipment", "")
	}
	if result.Shipment == nil {
		return result, nil
	}

	tn := result.Shipment.TrackingNumber
	if result.DeliveryStatus, err = s.repos.Tracking.FindStatus(ctx, tn); err != nil {
		return nil, mapError(err, "delivery status", tn)
	}
	events, err := s.listEvents(ctx, tn)
	if err != nil {
		return nil, err
	}
	result.TrackingEvents = events
	return result, nil
}

// GetDeliveryStatus returns the current delivery view of a tracking number
func (s *PipelineService) GetDeliveryStatus(ctx context.Context, trackingNumber string) (*pipeline.DeliveryStatus, error) {
	status, err := s.repos.Tracking.FindStatus(ctx, trackingNumber)
	if err != nil {
		return nil, mapError(err, "delivery status", trackingNumber)
	}
	if status == nil {
		return nil, errors.ErrNotFoundWithID("delivery status", trackingNumber)
	}
	return status, nil
}

// ListTrackingEvents returns the scans of a tracking number in event time order
func (s *PipelineService) ListTrackingEvents(ctx context.Context, trackingNumber string) ([]*pipeline.TrackingEvent, error) {
	shipment, err := s.repos.Shipments.FindByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		return nil, mapError(err, "shipment", trackingNumber)
	}
	if shipment == nil {
		return nil, errors.ErrNotFoundWithID("shipment", trackingNumber)
	}
	return s.listEvents(ctx, trackingNumber)
}

func (s *PipelineService) listEvents(ctx context.Context, trackingNumber string) ([]*pipeline.TrackingEvent, error) {
	events, err := s.repos.Tracking.ListEvents(ctx, trackingNumber)
	if err != nil {
		return nil, mapError(err, "tracking event", trackingNumber)
	}
	slices.SortStableFunc(events, func(a, b *pipeline.TrackingEvent) int {
		return a.EventTimestamp.Compare(b.EventTimestamp)
	})
	if events == nil {
		events = []*pipeline.TrackingEvent{}
	}
	return events, nil
}

// requireProcessing fails fast when the order left the pipeline, e.g. was cancelled
func requireProcessing(o *order.Order, stage string) error {
	if o.Status != order.StatusProcessing {
		return errors.ErrInvalidTransition(fmt.Sprintf("order is %s, %s needs a PROCESSING order", o.Status, stage)).
			WithEntity("order", o.OrderID)
	}
	return nil
}

func (s *PipelineService) loadOrder(ctx context.Context, orderID string) (*order.Order, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, errors.ErrNotFoundWithID("order", orderID)
	}
	return o, nil
}

// link records a stage id on the order; the stage itself is already saved
func (s *PipelineService) link(ctx context.Context, orderID string, link order.StageLink, id string) {
	if err := s.transitions.LinkStage(ctx, orderID, link, id); err != nil {
		s.logger.WithError(err).Warn("Failed to link stage to order", "orderId", orderID, "link", link, "stageId", id)
	}
}

// completed builds the outcome signal of a finished stage
func (s *PipelineService) completed(ctx context.Context, kind pipeline.StageKind, stageID, orderID string, advances bool) *pipeline.StageOutcome {
	s.metrics.RecordStageCompleted(string(kind))
	outcome := &pipeline.StageOutcome{
		StageID:       stageID,
		Kind:          kind,
		OrderID:       orderID,
		Completed:     true,
		AdvancesOrder: advances,
	}
	if o, err := s.orders.FindByID(ctx, orderID); err == nil && o != nil {
		outcome.OrderStatus = string(o.Status)
	}
	return outcome
}

func priorStage(format string, args ...any) *errors.AppError {
	return errors.ErrPriorStageIncomplete(fmt.Sprintf(format, args...))
}

func pipelineKey(orderID string) string {
	return "pipeline:" + orderID
}
