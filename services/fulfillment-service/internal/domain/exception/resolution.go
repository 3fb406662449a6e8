package exception

import (
	"fmt"
	"strings"
	"time"
)

// ResolutionType is how an exception was settled
type ResolutionType string

const (
	ResolutionReship        ResolutionType = "RESHIP"
	ResolutionRefund        ResolutionType = "REFUND"
	ResolutionCompensation  ResolutionType = "COMPENSATION"
	ResolutionExchange      ResolutionType = "EXCHANGE"
	ResolutionDeliveryRetry ResolutionType = "DELIVERY_RETRY"
	ResolutionCancellation  ResolutionType = "CANCELLATION"
)

// IsValid checks if the resolution type is valid
func (t ResolutionType) IsValid() bool {
	switch t {
	case ResolutionReship, ResolutionRefund, ResolutionCompensation,
		ResolutionExchange, ResolutionDeliveryRetry, ResolutionCancellation:
		return true
	default:
		return false
	}
}

// RestockItem is goods the carrier brought back to the warehouse
type RestockItem struct {
	ProductID string `bson:"productId" json:"productId"`
	Quantity  int    `bson:"quantity" json:"quantity"`
}

// ResolutionInput is the resolution as submitted. ResolutionDate defaults to now.
type ResolutionInput struct {
	Type                     ResolutionType
	Description              string
	ActionTaken              string
	ResolutionDate           *time.Time
	ResolvedBy               string
	SatisfactionRating       int
	CompensationAmount       float64
	ReshipmentTrackingNumber string
	CostIncurred             float64
	RootCause                string
	PreventiveMeasures       string
	Notes                    string
	RestockItems             []RestockItem
}

// Resolution is the record attached to a resolved exception
type Resolution struct {
	Type                     ResolutionType `bson:"type" json:"type"`
	Description              string         `bson:"description,omitempty" json:"description,omitempty"`
	ActionTaken              string         `bson:"actionTaken,omitempty" json:"actionTaken,omitempty"`
	ResolutionDate           time.Time      `bson:"resolutionDate" json:"resolutionDate"`
	ResolvedBy               string         `bson:"resolvedBy" json:"resolvedBy"`
	SatisfactionRating       int            `bson:"satisfactionRating,omitempty" json:"satisfactionRating,omitempty"`
	CompensationAmount       float64        `bson:"compensationAmount" json:"compensationAmount"`
	ReshipmentTrackingNumber string         `bson:"reshipmentTrackingNumber,omitempty" json:"reshipmentTrackingNumber,omitempty"`
	CostIncurred             float64        `bson:"costIncurred" json:"costIncurred"`
	RootCause                string         `bson:"rootCause,omitempty" json:"rootCause,omitempty"`
	PreventiveMeasures       string         `bson:"preventiveMeasures,omitempty" json:"preventiveMeasures,omitempty"`
	Notes                    string         `bson:"notes,omitempty" json:"notes,omitempty"`
	DurationHours            int            `bson:"durationHours" json:"durationHours"`
	RestockItems             []RestockItem  `bson:"restockItems,omitempty" json:"restockItems,omitempty"`
}

func newResolution(in *ResolutionInput, exceptionDate time.Time) (*Resolution, error) {
	if !in.Type.IsValid() {
		return nil, ErrResolutionType
	}
	if strings.TrimSpace(in.ResolvedBy) == "" {
		return nil, ErrResolverRequired
	}
	if in.SatisfactionRating != 0 && (in.SatisfactionRating < 1 || in.SatisfactionRating > 5) {
		return nil, ErrInvalidRating
	}
	if in.CompensationAmount < 0 || in.CostIncurred < 0 {
		return nil, ErrNegativeAmount
	}
	for _, item := range in.RestockItems {
		if item.ProductID == "" || item.Quantity < 1 {
			return nil, ErrInvalidRestock
		}
	}

	resolvedAt := time.Now().UTC()
	if in.ResolutionDate != nil {
		resolvedAt = in.ResolutionDate.UTC()
	}
	if resolvedAt.Before(exceptionDate) {
		return nil, ErrResolutionDate
	}

	return &Resolution{
		Type:                     in.Type,
		Description:              in.Description,
		ActionTaken:              in.ActionTaken,
		ResolutionDate:           resolvedAt,
		ResolvedBy:               in.ResolvedBy,
		SatisfactionRating:       in.SatisfactionRating,
		CompensationAmount:       in.CompensationAmount,
		ReshipmentTrackingNumber: in.ReshipmentTrackingNumber,
		CostIncurred:             in.CostIncurred,
		RootCause:                in.RootCause,
		PreventiveMeasures:       in.PreventiveMeasures,
		Notes:                    in.Notes,
		DurationHours:            durationHours(exceptionDate, resolvedAt),
		RestockItems:             append([]RestockItem(nil), in.RestockItems...),
	}, nil
}

// Performance rates how quickly the exception was resolved
func (r *Resolution) Performance() string {
	switch {
	case r.DurationHours <= 24:
		return "EXCELLENT"
	case r.DurationHours <= 72:
		return "GOOD"
	case r.DurationHours <= 168:
		return "AVERAGE"
	default:
		return "POOR"
	}
}

// RestockedQuantities sums the units per product already restocked by
// resolved exceptions
func RestockedQuantities(resolved []*DeliveryException) map[string]int {
	restocked := make(map[string]int)
	for _, e := range resolved {
		if e.Status != StatusResolved || e.Resolution == nil {
			continue
		}
		for _, item := range e.Resolution.RestockItems {
			restocked[item.ProductID] += item.Quantity
		}
	}
	return restocked
}

// CheckRestock verifies goods brought back against the shipped units per
// product, less what earlier resolutions of the shipment restocked
func CheckRestock(items []RestockItem, shipped, restocked map[string]int) error {
	requested := make(map[string]int, len(items))
	for _, item := range items {
		if _, ok := shipped[item.ProductID]; !ok {
			return fmt.Errorf("%w: %s", ErrRestockNotShipped, item.ProductID)
		}
		requested[item.ProductID] += item.Quantity
	}
	for productID, qty := range requested {
		if left := shipped[productID] - restocked[productID]; qty > left {
			return fmt.Errorf("%w: %s has %d of %d left", ErrRestockExceeds, productID, max(left, 0), shipped[productID])
		}
	}
	return nil
}
