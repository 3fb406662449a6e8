package application

import (
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/alert"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/exception"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/ledger"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/order"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/returns"
)

// ToStockDTO converts a domain StockRecord to StockDTO
func ToStockDTO(s *ledger.StockRecord) *StockDTO {
	if s == nil {
		return nil
	}
	return &StockDTO{
		ProductID:         s.ProductID,
		ProductName:       s.ProductName,
		SKU:               s.SKU,
		CurrentQuantity:   s.CurrentQuantity,
		ReservedQuantity:  s.ReservedQuantity,
		AvailableQuantity: s.Available(),
		MinimumLevel:      s.MinimumLevel,
		MaximumLevel:      s.MaximumLevel,
		ReorderPoint:      s.ReorderPoint,
		UnitCost:          s.UnitCost.Float(),
		Currency:          s.UnitCost.Currency(),
		Active:            s.Active,
		Status:            string(s.Status),
		LastRestockedAt:   s.LastRestockedAt,
		LastSoldAt:        s.LastSoldAt,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

// ToAlertDTO converts a domain StockAlert to AlertDTO
func ToAlertDTO(a *alert.StockAlert) *AlertDTO {
	if a == nil {
		return nil
	}
	return &AlertDTO{
		AlertID:         a.AlertID,
		ProductID:       a.ProductID,
		ProductName:     a.ProductName,
		SKU:             a.SKU,
		AlertType:       string(a.AlertType),
		AlertLevel:      string(a.AlertLevel),
		CurrentStock:    a.CurrentStock,
		ThresholdStock:  a.ThresholdStock,
		Message:         a.Message,
		SuggestedAction: a.SuggestedAction,
		Resolved:        a.Resolved,
		ResolvedBy:      a.ResolvedBy,
		ResolutionNotes: a.ResolutionNotes,
		ResolvedAt:      a.ResolvedAt,
		CreatedAt:       a.CreatedAt,
	}
}

// ToOrderDTO converts a domain Order to OrderDTO
func ToOrderDTO(o *order.Order) *OrderDTO {
	if o == nil {
		return nil
	}

	items := make([]OrderLineDTO, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderLineDTO{
			LineID:               item.LineID,
			ProductID:            item.ProductID,
			ProductName:          item.ProductName,
			SKU:                  item.SKU,
			Quantity:             item.Quantity,
			UnitPrice:            item.UnitPrice.Float(),
			LineTotal:            item.LineTotal.Float(),
			WeightKg:             item.WeightKg,
			IsFragile:            item.IsFragile,
			RequiresQualityCheck: item.RequiresQualityCheck,
		})
	}

	return &OrderDTO{
		OrderID:               o.OrderID,
		OrderNumber:           o.OrderNumber,
		Customer:              o.Customer,
		ShippingAddress:       o.ShippingAddress,
		BillingAddress:        o.BillingAddress,
		Currency:              o.Currency,
		PaymentMethod:         o.PaymentMethod,
		Priority:              string(o.Priority),
		Items:                 items,
		Subtotal:              o.Subtotal.Float(),
		ShippingCost:          o.ShippingCost.Float(),
		TaxAmount:             o.TaxAmount.Float(),
		DiscountAmount:        o.DiscountAmount.Float(),
		FinalAmount:           o.FinalAmount.Float(),
		Status:                string(o.Status),
		PaymentStatus:         string(o.PaymentStatus),
		Links:                 o.Links,
		StatusHistory:         append([]order.StatusChange(nil), o.StatusHistory...),
		CancellationReason:    o.CancellationReason,
		EstimatedDeliveryDate: o.EstimatedDeliveryDate,
		DeliveredAt:           o.DeliveredAt,
		CreatedAt:             o.CreatedAt,
		UpdatedAt:             o.UpdatedAt,
	}
}

// ToExceptionDTO converts a domain DeliveryException to ExceptionDTO
func ToExceptionDTO(e *exception.DeliveryException) *ExceptionDTO {
	if e == nil {
		return nil
	}
	dto := &ExceptionDTO{DeliveryException: e.Clone()}
	if e.Resolution != nil {
		dto.PerformanceRating = e.Resolution.Performance()
	}
	return dto
}

// ToReturnDTO converts a domain ReturnOrder to ReturnDTO
func ToReturnDTO(r *returns.ReturnOrder) *ReturnDTO {
	if r == nil {
		return nil
	}

	items := make([]ReturnItemDTO, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, ReturnItemDTO{
			ProductID:        item.ProductID,
			ProductName:      item.ProductName,
			SKU:              item.SKU,
			ReturnQuantity:   item.ReturnQuantity,
			OriginalQuantity: item.OriginalQuantity,
			UnitPrice:        item.UnitPrice.Float(),
			Condition:        string(item.Condition),
			IsRestockable:    item.IsRestockable,
			RestockQuantity:  item.RestockQuantity,
			QualityNotes:     item.QualityNotes,
		})
	}

	records := r.RestockRecords
	if records == nil {
		records = []returns.RestockRecord{}
	}

	return &ReturnDTO{
		ReturnID:           r.ReturnID,
		ReturnNumber:       r.ReturnNumber,
		OrderID:            r.OrderID,
		OrderNumber:        r.OrderNumber,
		CustomerID:         r.CustomerID,
		Reason:             string(r.Reason),
		Type:               string(r.Type),
		Description:        r.Description,
		Status:             string(r.Status),
		Currency:           r.Currency,
		Items:              items,
		RestockingFee:      r.RestockingFee.Float(),
		ShippingCostRefund: r.ShippingCostRefund.Float(),
		RefundAmount:       r.RefundAmount.Float(),
		TotalRefundAmount:  r.TotalRefundAmount.Float(),
		QualityGrade:       string(r.QualityGrade),
		IsRestockable:      r.IsRestockable,
		ApprovedBy:         r.ApprovedBy,
		ApprovedAt:         r.ApprovedAt,
		RejectionReason:    r.RejectionReason,
		ReceivedAt:         r.ReceivedAt,
		InspectedAt:        r.InspectedAt,
		CompletedBy:        r.CompletedBy,
		CompletedAt:        r.CompletedAt,
		RestockRecords:     records,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}
