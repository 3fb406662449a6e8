package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/fulfillment/shared/pkg/cloudevents"
	"github.com/wms-platform/fulfillment/shared/pkg/errors"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/order"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/returns"
)

func (s *services) requestReturn(t *testing.T, orderID string, typ returns.Type, items ...returns.ItemInput) *ReturnDTO {
	t.Helper()
	dto, err := s.returns.RequestReturn(context.Background(), RequestReturnCommand{
		OrderID: orderID,
		Reason:  returns.ReasonSizeIssue,
		Type:    typ,
		Items:   items,
	})
	require.NoError(t, err)
	return dto
}

// inspectedReturn approves, receives and inspects a requested return
func (s *services) inspectedReturn(t *testing.T, returnID string, grade returns.Grade, verdicts ...returns.InspectionItem) {
	t.Helper()
	ctx := context.Background()
	_, err := s.returns.ApproveReturn(ctx, returnID, "supervisor")
	require.NoError(t, err)
	_, err = s.returns.ReceiveReturn(ctx, returnID)
	require.NoError(t, err)
	_, err = s.returns.InspectReturn(ctx, InspectReturnCommand{ReturnID: returnID, QualityGrade: grade, Items: verdicts})
	require.NoError(t, err)
}

func TestReturnService_RefundFlow(t *testing.T) {
	s := newServices(t)
	s.register(t, "P1", 10)
	s.register(t, "P2", 10)
	ctx := context.Background()
	o, _ := s.deliveredOrder(t, line("P1", 2), line("P2", 1))
	assert.Equal(t, 8, s.stock(t, "P1").CurrentQuantity)

	r := s.requestReturn(t, o.OrderID, returns.TypeRefund,
		returns.ItemInput{ProductID: "P1", Quantity: 2},
		returns.ItemInput{ProductID: "P2", Quantity: 1})
	assert.Equal(t, string(returns.StatusRequested), r.Status)
	assert.Equal(t, 30.0, r.RefundAmount)

	s.inspectedReturn(t, r.ReturnID, returns.GradeGood,
		returns.InspectionItem{ProductID: "P1", RestockQuantity: 1},
		returns.InspectionItem{ProductID: "P2", Condition: returns.ConditionDamaged})

	done, err := s.returns.CompleteReturn(ctx, r.ReturnID, "clerk")
	require.NoError(t, err)
	assert.Equal(t, string(returns.StatusCompleted), done.Status)
	require.Len(t, done.RestockRecords, 1)
	assert.Equal(t, "P1", done.RestockRecords[0].ProductID)
	assert.Equal(t, 1, done.RestockRecords[0].Quantity)

	assert.Equal(t, 9, s.stock(t, "P1").CurrentQuantity)
	assert.Equal(t, 9, s.stock(t, "P2").CurrentQuantity, "damaged goods are not restocked")
	assert.Equal(t, string(order.StatusRefunded), s.orderStatus(t, o.OrderID))
	assert.Equal(t, 1, s.countOutbox(cloudevents.ReturnCompleted))

	_, err = s.returns.CompleteReturn(ctx, r.ReturnID, "clerk")
	requireCode(t, err, errors.CodeInvalidTransition)
}

func TestReturnService_ExchangeDoesNotRefund(t *testing.T) {
	s := newServices(t)
	s.register(t, "P1", 10)
	o, _ := s.deliveredOrder(t, line("P1", 1))

	r := s.requestReturn(t, o.OrderID, returns.TypeExchange, returns.ItemInput{ProductID: "P1", Quantity: 1, Condition: returns.ConditionNew})
	s.inspectedReturn(t, r.ReturnID, returns.GradeExcellent)

	_, err := s.returns.CompleteReturn(context.Background(), r.ReturnID, "clerk")
	require.NoError(t, err)
	assert.Equal(t, string(order.StatusDelivered), s.orderStatus(t, o.OrderID))
	assert.Equal(t, 10, s.stock(t, "P1").CurrentQuantity, "unlisted items are restocked in full")
}

func TestReturnService_PoorGradeRestocksNothing(t *testing.T) {
	s := newServices(t)
	s.register(t, "P1", 10)
	o, _ := s.deliveredOrder(t, line("P1", 3))

	r := s.requestReturn(t, o.OrderID, returns.TypeStoreCredit, returns.ItemInput{ProductID: "P1", Quantity: 3})
	s.inspectedReturn(t, r.ReturnID, returns.GradePoor)

	done, err := s.returns.CompleteReturn(context.Background(), r.ReturnID, "clerk")
	require.NoError(t, err)
	assert.Empty(t, done.RestockRecords)
	assert.False(t, done.IsRestockable)
	assert.Equal(t, 7, s.stock(t, "P1").CurrentQuantity)
}

func TestReturnService_RefundIsIdempotentAcrossReturns(t *testing.T) {
	s := newServices(t)
	s.register(t, "P1", 10)
	s.register(t, "P2", 10)
	ctx := context.Background()
	o, _ := s.deliveredOrder(t, line("P1", 1), line("P2", 1))

	first := s.requestReturn(t, o.OrderID, returns.TypeRefund, returns.ItemInput{ProductID: "P1", Quantity: 1})
	second := s.requestReturn(t, o.OrderID, returns.TypeRefund, returns.ItemInput{ProductID: "P2", Quantity: 1})
	s.inspectedReturn(t, first.ReturnID, returns.GradeGood)
	s.inspectedReturn(t, second.ReturnID, returns.GradeGood)

	_, err := s.returns.CompleteReturn(ctx, first.ReturnID, "clerk")
	require.NoError(t, err)
	_, err = s.returns.CompleteReturn(ctx, second.ReturnID, "clerk")
	require.NoError(t, err)

	assert.Equal(t, string(order.StatusRefunded), s.orderStatus(t, o.OrderID))
	assert.Equal(t, 10, s.stock(t, "P2").CurrentQuantity)

	list, err := s.returns.ListReturns(ctx, ListReturnsQuery{OrderID: o.OrderID, Status: returns.StatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, int64(2), list.TotalItems)
}

func TestReturnService_RestockFailureIsCompensated(t *testing.T) {
	s := newServices(t)
	s.register(t, "P1", 10)
	s.register(t, "P2", 10)
	ctx := context.Background()
	o, _ := s.deliveredOrder(t, line("P1", 2), line("P2", 1))
	s.returns.ledger = &failingLedger{StockLedger: s.ledger, op: "restock", productID: "P2"}

	r := s.requestReturn(t, o.OrderID, returns.TypeRefund,
		returns.ItemInput{ProductID: "P1", Quantity: 2},
		returns.ItemInput{ProductID: "P2", Quantity: 1})
	s.inspectedReturn(t, r.ReturnID, returns.GradeGood)

	_, err := s.returns.CompleteReturn(ctx, r.ReturnID, "clerk")
	require.Error(t, err)

	assert.Equal(t, 8, s.stock(t, "P1").CurrentQuantity)
	assert.Equal(t, string(order.StatusDelivered), s.orderStatus(t, o.OrderID), "order is not refunded")
	stored, err := s.returns.GetReturn(ctx, r.ReturnID)
	require.NoError(t, err)
	assert.Equal(t, string(returns.StatusInspecting), stored.Status)
}

func TestReturnService_RequestValidation(t *testing.T) {
	s := newServices(t)
	s.register(t, "P1", 10)
	ctx := context.Background()
	shippedOrder, _ := s.dispatchedOrder(t, line("P1", 2))
	delivered, _ := s.deliveredOrder(t, line("P1", 2))

	tests := []struct {
		name     string
		cmd      RequestReturnCommand
		wantCode string
	}{
		{
			name:     "unknown order",
			cmd:      RequestReturnCommand{OrderID: "missing", Reason: returns.ReasonDamaged},
			wantCode: errors.CodeNotFound,
		},
		{
			name:     "order not delivered",
			cmd:      RequestReturnCommand{OrderID: shippedOrder.OrderID, Reason: returns.ReasonDamaged, Items: []returns.ItemInput{{ProductID: "P1", Quantity: 1}}},
			wantCode: errors.CodeInvalidTransition,
		},
		{
			name:     "more than ordered",
			cmd:      RequestReturnCommand{OrderID: delivered.OrderID, Reason: returns.ReasonDamaged, Items: []returns.ItemInput{{ProductID: "P1", Quantity: 3}}},
			wantCode: errors.CodeValidationError,
		},
		{
			name: "duplicate lines",
			cmd: RequestReturnCommand{OrderID: delivered.OrderID, Reason: returns.ReasonDamaged, Items: []returns.ItemInput{
				{ProductID: "P1", Quantity: 1}, {ProductID: "P1", Quantity: 1},
			}},
			wantCode: errors.CodeValidationError,
		},
		{
			name:     "product not on the order",
			cmd:      RequestReturnCommand{OrderID: delivered.OrderID, Reason: returns.ReasonDamaged, Items: []returns.ItemInput{{ProductID: "P9", Quantity: 1}}},
			wantCode: errors.CodeValidationError,
		},
		{
			name:     "unknown reason",
			cmd:      RequestReturnCommand{OrderID: delivered.OrderID, Reason: "BORED", Items: []returns.ItemInput{{ProductID: "P1", Quantity: 1}}},
			wantCode: errors.CodeValidationError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.returns.RequestReturn(ctx, tt.cmd)
			requireCode(t, err, tt.wantCode)
		})
	}
}

func TestReturnService_RejectedReturnIsFinal(t *testing.T) {
	s := newServices(t)
	s.register(t, "P1", 10)
	ctx := context.Background()
	o, _ := s.deliveredOrder(t, line("P1", 1))
	r := s.requestReturn(t, o.OrderID, returns.TypeRefund, returns.ItemInput{ProductID: "P1", Quantity: 1})

	_, err := s.returns.RejectReturn(ctx, r.ReturnID, "")
	requireCode(t, err, errors.CodeValidationError)

	rejected, err := s.returns.RejectReturn(ctx, r.ReturnID, "outside policy")
	require.NoError(t, err)
	assert.Equal(t, string(returns.StatusRejected), rejected.Status)
	assert.Equal(t, "outside policy", rejected.RejectionReason)

	_, err = s.returns.ApproveReturn(ctx, r.ReturnID, "supervisor")
	requireCode(t, err, errors.CodeInvalidTransition)
	_, err = s.returns.ReceiveReturn(ctx, r.ReturnID)
	requireCode(t, err, errors.CodeInvalidTransition)
}

func TestReturnService_ReturnsCannotClaimMoreThanOrdered(t *testing.T) {
	s := newServices(t)
	s.register(t, "P1", 10)
	ctx := context.Background()
	o, _ := s.deliveredOrder(t, line("P1", 2))
	require.Equal(t, 8, s.stock(t, "P1").CurrentQuantity)

	first := s.requestReturn(t, o.OrderID, returns.TypeExchange, returns.ItemInput{ProductID: "P1", Quantity: 2})
	s.inspectedReturn(t, first.ReturnID, returns.GradeExcellent)
	_, err := s.returns.CompleteReturn(ctx, first.ReturnID, "clerk")
	require.NoError(t, err)

	_, err = s.returns.RequestReturn(ctx, RequestReturnCommand{
		OrderID: o.OrderID,
		Reason:  returns.ReasonSizeIssue,
		Type:    returns.TypeExchange,
		Items:   []returns.ItemInput{{ProductID: "P1", Quantity: 2}},
	})
	requireCode(t, err, errors.CodeValidationError)
	assert.Equal(t, 10, s.stock(t, "P1").CurrentQuantity, "only the delivered units came back")
}

func TestReturnService_OpenReturnsShareTheLine(t *testing.T) {
	s := newServices(t)
	s.register(t, "P1", 10)
	ctx := context.Background()
	o, _ := s.deliveredOrder(t, line("P1", 2))

	first := s.requestReturn(t, o.OrderID, returns.TypeRefund, returns.ItemInput{ProductID: "P1", Quantity: 1})
	s.requestReturn(t, o.OrderID, returns.TypeStoreCredit, returns.ItemInput{ProductID: "P1", Quantity: 1})

	request := RequestReturnCommand{
		OrderID: o.OrderID,
		Reason:  returns.ReasonSizeIssue,
		Items:   []returns.ItemInput{{ProductID: "P1", Quantity: 1}},
	}
	_, err := s.returns.RequestReturn(ctx, request)
	requireCode(t, err, errors.CodeValidationError)

	_, err = s.returns.RejectReturn(ctx, first.ReturnID, "outside policy")
	require.NoError(t, err)
	_, err = s.returns.RequestReturn(ctx, request)
	require.NoError(t, err, "a rejected return frees its units")
}
