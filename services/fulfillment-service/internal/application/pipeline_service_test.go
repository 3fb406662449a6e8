package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/fulfillment/shared/pkg/cloudevents"
	"github.com/wms-platform/fulfillment/shared/pkg/errors"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/order"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/pipeline"
)

func (s *services) countOutbox(eventType string) int {
	n := 0
	for _, e := range s.repos.Outbox.All() {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

func (s *services) orderStatus(t *testing.T, orderID string) string {
	t.Helper()
	o, err := s.orders.GetOrder(context.Background(), orderID)
	require.NoError(t, err)
	return o.Status
}

func TestPipelineService_HappyPath(t *testing.T) {
	s := newServices(t)
	s.register(t, "P1", 10)
	s.register(t, "P2", 10)
	ctx := context.Background()
	o := s.confirmedOrder(t, line("P1", 2), line("P2", 1))

	pl, err := s.pipeline.StartPicking(ctx, StartPickingCommand{OrderID: o.OrderID, AssignedTo: "picker"})
	require.NoError(t, err)
	assert.Equal(t, string(order.StatusProcessing), s.orderStatus(t, o.OrderID), "picking moves the order to PROCESSING")

	_, err = s.pipeline.RecordPick(ctx, pl.PickListID, "P1", 2)
	require.NoError(t, err)
	picked, err := s.pipeline.CompletePicking(ctx, pl.PickListID, map[string]int{"P2": 1})
	require.NoError(t, err)
	require.NotNil(t, picked.Outcome)
	assert.Equal(t, pipeline.StagePick, picked.Outcome.Kind)
	assert.False(t, picked.Outcome.AdvancesOrder)

	pkg, err := s.pipeline.StartPacking(ctx, StartPackingCommand{OrderID: o.OrderID, Carrier: "dhl"})
	require.NoError(t, err)
	_, err = s.pipeline.CompletePacking(ctx, CompletePackingCommand{PackageID: pkg.PackageID, PackedBy: "packer", WeightKg: 2})
	require.NoError(t, err)

	check, err := s.pipeline.StartQualityCheck(ctx, StartQualityCheckCommand{OrderID: o.OrderID, InspectorName: "qa"})
	require.NoError(t, err)
	graded, err := s.pipeline.CompleteQualityCheck(ctx, check.CheckID, perfectInspection())
	require.NoError(t, err)
	assert.True(t, graded.ApprovedForShipment)
	assert.Equal(t, pipeline.ResultPass, graded.OverallResult)

	shipment, err := s.pipeline.StartShipment(ctx, StartShipmentCommand{OrderID: o.OrderID})
	require.NoError(t, err)
	assert.Equal(t, "DHL", shipment.Carrier, "carrier defaults to the packing choice")
	assert.NotEmpty(t, shipment.TrackingNumber)

	status, err := s.pipeline.GetDeliveryStatus(ctx, shipment.TrackingNumber)
	require.NoError(t, err)
	assert.Equal(t, pipeline.DeliveryPending, status.CurrentStatus)

	dispatched, err := s.pipeline.CompleteShipment(ctx, shipment.ShipmentID, "dock-3")
	require.NoError(t, err)
	require.NotNil(t, dispatched.Outcome)
	assert.True(t, dispatched.Outcome.AdvancesOrder)
	assert.Equal(t, string(order.StatusShipped), dispatched.Outcome.OrderStatus)

	p1 := s.stock(t, "P1")
	assert.Equal(t, 8, p1.CurrentQuantity)
	assert.Zero(t, p1.ReservedQuantity)

	delivered, err := s.pipeline.RecordTrackingEvent(ctx, RecordTrackingEventCommand{
		TrackingNumber: shipment.TrackingNumber,
		Params: pipeline.TrackingParams{
			EventType:      pipeline.EventDelivered,
			EventTimestamp: time.Now().UTC(),
			Location:       "Springfield",
			SignedBy:       "Ada",
		},
	})
	require.NoError(t, err)
	assert.True(t, delivered.Applied)
	assert.True(t, delivered.DeliveryStatus.IsDelivered)
	require.NotNil(t, delivered.Outcome)
	assert.Equal(t, pipeline.StageDelivery, delivered.Outcome.Kind)
	assert.Equal(t, string(order.StatusDelivered), s.orderStatus(t, o.OrderID))

	view, err := s.pipeline.GetPipeline(ctx, o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.PickListCompleted, view.PickList.Status)
	assert.Equal(t, pipeline.PackagePacked, view.Package.Status)
	assert.Equal(t, pipeline.ShipmentDelivered, view.Shipment.Status)
	assert.Len(t, view.TrackingEvents, 1)

	current, err := s.orders.GetOrder(ctx, o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, pl.PickListID, current.Links.PickListID)
	assert.Equal(t, shipment.TrackingNumber, current.Links.TrackingNumber)

	assert.Equal(t, 4, s.countOutbox(cloudevents.StageCompleted))
	assert.Equal(t, 1, s.countOutbox(cloudevents.DeliveryConfirmed))
}

func TestPipelineService_StagesMustRunInOrder(t *testing.T) {
	s := newServices(t)
	s.register(t, "P1", 10)
	ctx := context.Background()

	pending, err := s.orders.CreateOrder(ctx, orderCommand(line("P1", 1)))
	require.NoError(t, err)
	_, err = s.pipeline.StartPicking(ctx, StartPickingCommand{OrderID: pending.OrderID})
	requireCode(t, err, errors.CodePriorStageIncomplete)

	o := s.confirmedOrder(t, line("P1", 1))
	_, err = s.pipeline.StartPacking(ctx, StartPackingCommand{OrderID: o.OrderID})
	requireCode(t, err, errors.CodePriorStageIncomplete)
	_, err = s.pipeline.StartQualityCheck(ctx, StartQualityCheckCommand{OrderID: o.OrderID})
	requireCode(t, err, errors.CodePriorStageIncomplete)
	_, err = s.pipeline.StartShipment(ctx, StartShipmentCommand{OrderID: o.OrderID})
	requireCode(t, err, errors.CodePriorStageIncomplete)

	pl, err := s.pipeline.StartPicking(ctx, StartPickingCommand{OrderID: o.OrderID})
	require.NoError(t, err)
	_, err = s.pipeline.StartPicking(ctx, StartPickingCommand{OrderID: o.OrderID})
	requireCode(t, err, errors.CodePriorStageIncomplete)

	_, err = s.pipeline.StartPacking(ctx, StartPackingCommand{OrderID: o.OrderID})
	requireCode(t, err, errors.CodePriorStageIncomplete)

	_, err = s.pipeline.CompletePicking(ctx, pl.PickListID, map[string]int{"P1": 1})
	require.NoError(t, err)
	_, err = s.pipeline.CompletePicking(ctx, pl.PickListID, nil)
	requireCode(t, err, errors.CodeInvalidState)

	_, err = s.pipeline.StartPacking(ctx, StartPackingCommand{OrderID: o.OrderID})
	require.NoError(t, err)
	_, err = s.pipeline.StartPacking(ctx, StartPackingCommand{OrderID: o.OrderID})
	requireCode(t, err, errors.CodeConflict)

	_, err = s.pipeline.StartPacking(ctx, StartPackingCommand{OrderID: "missing"})
	requireCode(t, err, errors.CodeNotFound)
}

func TestPipelineService_PickingValidation(t *testing.T) {
	s := newServices(t)
	s.register(t, "P1", 10)
	ctx := context.Background()
	o := s.confirmedOrder(t, line("P1", 3))
	pl, err := s.pipeline.StartPicking(ctx, StartPickingCommand{OrderID: o.OrderID})
	require.NoError(t, err)

	_, err = s.pipeline.RecordPick(ctx, pl.PickListID, "P1", 4)
	requireCode(t, err, errors.CodeValidationError)
	_, err = s.pipeline.RecordPick(ctx, pl.PickListID, "P9", 1)
	requireCode(t, err, errors.CodeValidationError)
	_, err = s.pipeline.CompletePicking(ctx, pl.PickListID, map[string]int{"P1": 2})
	requireCode(t, err, errors.CodeValidationError)
	_, err = s.pipeline.RecordPick(ctx, "missing", "P1", 1)
	requireCode(t, err, errors.CodeNotFound)
}

func TestPipelineService_QualityRecheck(t *testing.T) {
	s := newServices(t)
	s.register(t, "P1", 10)
	ctx := context.Background()
	o := s.confirmedOrder(t, line("P1", 1))

	pl, err := s.pipeline.StartPicking(ctx, StartPickingCommand{OrderID: o.OrderID})
	require.NoError(t, err)
	_, err = s.pipeline.CompletePicking(ctx, pl.PickListID, map[string]int{"P1": 1})
	require.NoError(t, err)
	pkg, err := s.pipeline.StartPacking(ctx, StartPackingCommand{OrderID: o.OrderID})
	require.NoError(t, err)
	_, err = s.pipeline.CompletePacking(ctx, CompletePackingCommand{PackageID: pkg.PackageID, PackedBy: "packer", WeightKg: 1})
	require.NoError(t, err)
	check, err := s.pipeline.StartQualityCheck(ctx, StartQualityCheckCommand{OrderID: o.OrderID})
	require.NoError(t, err)

	damaged := perfectInspection()
	damaged.Flags.Damaged = true
	failed, err := s.pipeline.CompleteQualityCheck(ctx, check.CheckID, damaged)
	require.NoError(t, err)
	assert.Equal(t, pipeline.ResultFail, failed.OverallResult)
	assert.False(t, failed.ApprovedForShipment)

	_, err = s.pipeline.StartShipment(ctx, StartShipmentCommand{OrderID: o.OrderID})
	requireCode(t, err, errors.CodePriorStageIncomplete)

	rechecked, err := s.pipeline.RequestRecheck(ctx, check.CheckID, "repacked")
	require.NoError(t, err)
	assert.Equal(t, 1, rechecked.RecheckCount)
	assert.Equal(t, pipeline.QualityPending, rechecked.Status)

	_, err = s.pipeline.CompleteQualityCheck(ctx, check.CheckID, pipeline.Inspection{})
	requireCode(t, err, errors.CodeValidationError)

	passed, err := s.pipeline.CompleteQualityCheck(ctx, check.CheckID, perfectInspection())
	require.NoError(t, err)
	assert.True(t, passed.ApprovedForShipment)

	_, err = s.pipeline.RequestRecheck(ctx, check.CheckID, "again")
	requireCode(t, err, errors.CodeInvalidState)

	_, err = s.pipeline.StartShipment(ctx, StartShipmentCommand{OrderID: o.OrderID})
	require.NoError(t, err)
}

func TestPipelineService_Tracking(t *testing.T) {
	s := newServices(t)
	s.register(t, "P1", 10)
	ctx := context.Background()
	o, shipment := s.dispatchedOrder(t, line("P1", 1))
	tn := shipment.TrackingNumber
	base := time.Now().UTC().Add(-time.Hour)

	record := func(eventType pipeline.TrackingEventType, at time.Time) *TrackingEventDTO {
		t.Helper()
		dto, err := s.pipeline.RecordTrackingEvent(ctx, RecordTrackingEventCommand{
			TrackingNumber: tn,
			Params:         pipeline.TrackingParams{EventType: eventType, EventTimestamp: at, Description: string(eventType)},
		})
		require.NoError(t, err)
		return dto
	}

	shipped := record(pipeline.EventShipped, base.Add(10*time.Minute))
	assert.True(t, shipped.Applied)
	assert.Equal(t, pipeline.DeliveryShipped, shipped.DeliveryStatus.CurrentStatus)

	transit := record(pipeline.EventInTransit, base.Add(20*time.Minute))
	assert.False(t, transit.Applied, "non-milestone scans are stored only")
	assert.Equal(t, pipeline.DeliveryShipped, transit.DeliveryStatus.CurrentStatus)

	late := record(pipeline.EventException, base)
	assert.False(t, late.Applied, "older milestones lose")

	delivered := record(pipeline.EventDelivered, base.Add(30*time.Minute))
	assert.True(t, delivered.Applied)
	assert.Equal(t, string(order.StatusDelivered), s.orderStatus(t, o.OrderID))

	after := record(pipeline.EventException, base.Add(40*time.Minute))
	assert.False(t, after.Applied, "a delivered status is final")
	assert.True(t, after.DeliveryStatus.IsDelivered)

	events, err := s.pipeline.ListTrackingEvents(ctx, tn)
	require.NoError(t, err)
	require.Len(t, events, 5)
	for i := 1; i < len(events); i++ {
		assert.False(t, events[i].EventTimestamp.Before(events[i-1].EventTimestamp))
	}

	_, err = s.pipeline.RecordTrackingEvent(ctx, RecordTrackingEventCommand{
		TrackingNumber: tn,
		Params:         pipeline.TrackingParams{EventType: "TELEPORTED", EventTimestamp: base},
	})
	requireCode(t, err, errors.CodeValidationError)

	_, err = s.pipeline.RecordTrackingEvent(ctx, RecordTrackingEventCommand{TrackingNumber: "missing"})
	requireCode(t, err, errors.CodeNotFound)
}

func TestPipelineService_TrackingNeedsDispatch(t *testing.T) {
	s := newServices(t)
	s.register(t, "P1", 10)
	ctx := context.Background()
	o := s.confirmedOrder(t, line("P1", 1))

	pl, err := s.pipeline.StartPicking(ctx, StartPickingCommand{OrderID: o.OrderID})
	require.NoError(t, err)
	_, err = s.pipeline.CompletePicking(ctx, pl.PickListID, map[string]int{"P1": 1})
	require.NoError(t, err)
	pkg, err := s.pipeline.StartPacking(ctx, StartPackingCommand{OrderID: o.OrderID})
	require.NoError(t, err)
	_, err = s.pipeline.CompletePacking(ctx, CompletePackingCommand{PackageID: pkg.PackageID, PackedBy: "packer", WeightKg: 1})
	require.NoError(t, err)
	check, err := s.pipeline.StartQualityCheck(ctx, StartQualityCheckCommand{OrderID: o.OrderID})
	require.NoError(t, err)
	_, err = s.pipeline.CompleteQualityCheck(ctx, check.CheckID, perfectInspection())
	require.NoError(t, err)
	shipment, err := s.pipeline.StartShipment(ctx, StartShipmentCommand{OrderID: o.OrderID})
	require.NoError(t, err)

	_, err = s.pipeline.RecordTrackingEvent(ctx, RecordTrackingEventCommand{
		TrackingNumber: shipment.TrackingNumber,
		Params:         pipeline.TrackingParams{EventType: pipeline.EventShipped, EventTimestamp: time.Now()},
	})
	requireCode(t, err, errors.CodePriorStageIncomplete)

	_, err = s.pipeline.CompleteShipment(ctx, shipment.ShipmentID, "dock")
	require.NoError(t, err)
	_, err = s.pipeline.CompleteShipment(ctx, shipment.ShipmentID, "dock")
	requireCode(t, err, errors.CodeInvalidTransition)
}

func TestPipelineService_DeliveredEventAfterOrderDelivered(t *testing.T) {
	s := newServices(t)
	s.register(t, "P1", 10)
	ctx := context.Background()
	o, shipment := s.dispatchedOrder(t, line("P1", 1))

	_, err := s.orders.UpdateOrderStatus(ctx, o.OrderID, order.StatusDelivered, "customer confirmed")
	require.NoError(t, err)

	dto, err := s.pipeline.RecordTrackingEvent(ctx, RecordTrackingEventCommand{
		TrackingNumber: shipment.TrackingNumber,
		Params:         pipeline.TrackingParams{EventType: pipeline.EventDelivered, EventTimestamp: time.Now().UTC()},
	})
	require.NoError(t, err)
	assert.True(t, dto.Applied)
	assert.True(t, dto.DeliveryStatus.IsDelivered)
	assert.Equal(t, string(order.StatusDelivered), s.orderStatus(t, o.OrderID))
}

func TestPipelineService_CancelledOrderStopsPipeline(t *testing.T) {
	s := newServices(t)
	s.register(t, "P1", 10)
	ctx := context.Background()
	o := s.confirmedOrder(t, line("P1", 1))

	pl, err := s.pipeline.StartPicking(ctx, StartPickingCommand{OrderID: o.OrderID})
	require.NoError(t, err)
	_, err = s.pipeline.CompletePicking(ctx, pl.PickListID, map[string]int{"P1": 1})
	require.NoError(t, err)
	_, err = s.orders.CancelOrder(ctx, o.OrderID, "customer changed their mind")
	require.NoError(t, err)

	_, err = s.pipeline.StartPacking(ctx, StartPackingCommand{OrderID: o.OrderID, Carrier: "ups"})
	requireCode(t, err, errors.CodeInvalidTransition)

	pkg, err := s.repos.Packages.FindByOrderID(ctx, o.OrderID)
	require.NoError(t, err)
	assert.Nil(t, pkg, "no package is opened for a cancelled order")
}

func TestPipelineService_CancelledAfterPackingStopsPipeline(t *testing.T) {
	s := newServices(t)
	s.register(t, "P1", 10)
	ctx := context.Background()
	o := s.processingOrder(t, line("P1", 1))

	check, err := s.pipeline.StartQualityCheck(ctx, StartQualityCheckCommand{OrderID: o.OrderID, InspectorName: "qa"})
	require.NoError(t, err)
	_, err = s.pipeline.CompleteQualityCheck(ctx, check.CheckID, perfectInspection())
	require.NoError(t, err)
	_, err = s.orders.CancelOrder(ctx, o.OrderID, "fraud")
	require.NoError(t, err)

	_, err = s.pipeline.StartShipment(ctx, StartShipmentCommand{OrderID: o.OrderID, Carrier: "ups"})
	requireCode(t, err, errors.CodeInvalidTransition)
	shipment, err := s.repos.Shipments.FindByOrderID(ctx, o.OrderID)
	require.NoError(t, err)
	assert.Nil(t, shipment)
}
