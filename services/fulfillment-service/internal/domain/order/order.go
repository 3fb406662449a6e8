package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wms-platform/fulfillment/shared/pkg/money"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/common"
)

// Errors
var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotCancellable    = errors.New("order cannot be cancelled")
	ErrInvalidState      = errors.New("invalid order state")
	ErrValidation        = errors.New("invalid order")

	ErrNoItems         = fmt.Errorf("%w: at least one line item is required", ErrValidation)
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	ErrInvalidPrice    = fmt.Errorf("%w: unit price must be greater than 0", ErrValidation)
	ErrInvalidCurrency = fmt.Errorf("%w: currency must be a 3-letter code", ErrValidation)
	ErrNegativeCharge  = fmt.Errorf("%w: charges must not be negative", ErrValidation)
	ErrMissingCustomer = fmt.Errorf("%w: customer id is required", ErrValidation)
	ErrMissingProduct  = fmt.Errorf("%w: product id is required", ErrValidation)
	ErrInvalidPriority = fmt.Errorf("%w: unknown priority", ErrValidation)
)

// Address is a postal address
type Address struct {
	Street     string `bson:"street" json:"street"`
	City       string `bson:"city" json:"city"`
	State      string `bson:"state,omitempty" json:"state,omitempty"`
	PostalCode string `bson:"postalCode" json:"postalCode"`
	Country    string `bson:"country" json:"country"`
}

// Customer identifies who placed the order
type Customer struct {
	ID    string `bson:"id" json:"id"`
	Name  string `bson:"name" json:"name"`
	Email string `bson:"email,omitempty" json:"email,omitempty"`
}

// LineItem is owned by value by its order
type LineItem struct {
	LineID               string      `bson:"lineId" json:"lineId"`
	ProductID            string      `bson:"productId" json:"productId"`
	ProductName          string      `bson:"productName" json:"productName"`
	SKU                  string      `bson:"sku" json:"sku"`
	Quantity             int         `bson:"quantity" json:"quantity"`
	UnitPrice            money.Money `bson:"unitPrice" json:"unitPrice"`
	LineTotal            money.Money `bson:"lineTotal" json:"lineTotal"`
	WeightKg             float64     `bson:"weightKg" json:"weightKg"`
	IsFragile            bool        `bson:"isFragile" json:"isFragile"`
	RequiresQualityCheck bool        `bson:"requiresQualityCheck" json:"requiresQualityCheck"`
}

// StatusChange is one step of the observed path through the transition graph
type StatusChange struct {
	From   Status    `bson:"from" json:"from"`
	To     Status    `bson:"to" json:"to"`
	At     time.Time `bson:"at" json:"at"`
	Reason string    `bson:"reason,omitempty" json:"reason,omitempty"`
}

// StageLinks references the pipeline records produced for the order
type StageLinks struct {
	PickListID     string `bson:"pickListId,omitempty" json:"pickListId,omitempty"`
	PackageID      string `bson:"packageId,omitempty" json:"packageId,omitempty"`
	QualityCheckID string `bson:"qualityCheckId,omitempty" json:"qualityCheckId,omitempty"`
	ShipmentID     string `bson:"shipmentId,omitempty" json:"shipmentId,omitempty"`
	TrackingNumber string `bson:"trackingNumber,omitempty" json:"trackingNumber,omitempty"`
}

// Order is the aggregate root of the order state machine
type Order struct {
	OrderID               string         `bson:"_id" json:"orderId"`
	OrderNumber           string         `bson:"orderNumber" json:"orderNumber"`
	Customer              Customer       `bson:"customer" json:"customer"`
	ShippingAddress       Address        `bson:"shippingAddress" json:"shippingAddress"`
	BillingAddress        Address        `bson:"billingAddress" json:"billingAddress"`
	Currency              string         `bson:"currency" json:"currency"`
	PaymentMethod         string         `bson:"paymentMethod,omitempty" json:"paymentMethod,omitempty"`
	Priority              Priority       `bson:"priority" json:"priority"`
	Items                 []LineItem     `bson:"items" json:"items"`
	Subtotal              money.Money    `bson:"subtotal" json:"subtotal"`
	ShippingCost          money.Money    `bson:"shippingCost" json:"shippingCost"`
	TaxAmount             money.Money    `bson:"taxAmount" json:"taxAmount"`
	DiscountAmount        money.Money    `bson:"discountAmount" json:"discountAmount"`
	FinalAmount           money.Money    `bson:"finalAmount" json:"finalAmount"`
	Status                Status         `bson:"status" json:"status"`
	PaymentStatus         PaymentStatus  `bson:"paymentStatus" json:"paymentStatus"`
	Links                 StageLinks     `bson:"links" json:"links"`
	StatusHistory         []StatusChange `bson:"statusHistory" json:"statusHistory"`
	CancellationReason    string         `bson:"cancellationReason,omitempty" json:"cancellationReason,omitempty"`
	EstimatedDeliveryDate *time.Time     `bson:"estimatedDeliveryDate,omitempty" json:"estimatedDeliveryDate,omitempty"`
	DeliveredAt           *time.Time     `bson:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
	Version               int            `bson:"version" json:"version"`
	CreatedAt             time.Time      `bson:"createdAt" json:"createdAt"`
	UpdatedAt             time.Time      `bson:"updatedAt" json:"updatedAt"`

	common.EventRecorder `bson:"-" json:"-"`
}

// LineItemInput describes one requested line of a new order
type LineItemInput struct {
	ProductID            string
	ProductName          string
	SKU                  string
	Quantity             int
	UnitPrice            float64
	WeightKg             float64
	IsFragile            bool
	RequiresQualityCheck bool
}

// NewOrderParams carries everything needed to place an order. Priority
// defaults to MEDIUM and the billing address to the shipping address.
type NewOrderParams struct {
	Customer              Customer
	ShippingAddress       Address
	BillingAddress        *Address
	Currency              string
	PaymentMethod         string
	Priority              Priority
	Items                 []LineItemInput
	ShippingCost          float64
	TaxAmount             float64
	DiscountAmount        float64
	EstimatedDeliveryDate *time.Time
}

func amount(value float64, currency string) (money.Money, error) {
	m, err := money.FromFloat(value, currency)
	switch {
	case errors.Is(err, money.ErrInvalidCurrency):
		return money.Money{}, ErrInvalidCurrency
	case err != nil:
		return money.Money{}, ErrNegativeCharge
	}
	return m, nil
}

// NewOrder validates params and builds a PENDING order with computed totals.
// No stock is touched here.
func NewOrder(params NewOrderParams) (*Order, error) {
	if strings.TrimSpace(params.Customer.ID) == "" {
		return nil, ErrMissingCustomer
	}
	if len(params.Items) == 0 {
		return nil, ErrNoItems
	}
	currency := strings.ToUpper(strings.TrimSpace(params.Currency))
	if _, err := money.New(0, currency); err != nil {
		return nil, ErrInvalidCurrency
	}

	priority := params.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.IsValid() {
		return nil, ErrInvalidPriority
	}

	shipping, err := amount(params.ShippingCost, currency)
	if err != nil {
		return nil, err
	}
	tax, err := amount(params.TaxAmount, currency)
	if err != nil {
		return nil, err
	}
	discount, err := amount(params.DiscountAmount, currency)
	if err != nil {
		return nil, err
	}

	items := make([]LineItem, 0, len(params.Items))
	for i, in := range params.Items {
		if strings.TrimSpace(in.ProductID) == "" {
			return nil, fmt.Errorf("line %d: %w", i+1, ErrMissingProduct)
		}
		if in.Quantity < 1 {
			return nil, fmt.Errorf("line %d: %w", i+1, ErrInvalidQuantity)
		}
		if in.UnitPrice <= 0 {
			return nil, fmt.Errorf("line %d: %w", i+1, ErrInvalidPrice)
		}
		unitPrice, err := amount(in.UnitPrice, currency)
		if err != nil || unitPrice.IsZero() {
			return nil, fmt.Errorf("line %d: %w", i+1, ErrInvalidPrice)
		}
		items = append(items, LineItem{
			LineID:               common.NewID(),
			ProductID:            in.ProductID,
			ProductName:          in.ProductName,
			SKU:                  in.SKU,
			Quantity:             in.Quantity,
			UnitPrice:            unitPrice,
			WeightKg:             in.WeightKg,
			IsFragile:            in.IsFragile,
			RequiresQualityCheck: in.RequiresQualityCheck,
		})
	}

	billing := params.ShippingAddress
	if params.BillingAddress != nil {
		billing = *params.BillingAddress
	}

	now := time.Now().UTC()
	o := &Order{
		OrderID:               common.NewID(),
		OrderNumber:           common.NewNumber("ORD", now),
		Customer:              params.Customer,
		ShippingAddress:       params.ShippingAddress,
		BillingAddress:        billing,
		Currency:              currency,
		PaymentMethod:         params.PaymentMethod,
		Priority:              priority,
		Items:                 items,
		ShippingCost:          shipping,
		TaxAmount:             tax,
		DiscountAmount:        discount,
		Status:                StatusPending,
		PaymentStatus:         PaymentPending,
		StatusHistory:         []StatusChange{},
		EstimatedDeliveryDate: params.EstimatedDeliveryDate,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := o.Recalculate(); err != nil {
		return nil, err
	}

	o.Record(&OrderCreatedEvent{
		OrderID:     o.OrderID,
		OrderNumber: o.OrderNumber,
		CustomerID:  o.Customer.ID,
		Priority:    o.Priority,
		ItemCount:   len(o.Items),
		FinalAmount: o.FinalAmount.Float(),
		Currency:    o.Currency,
		CreatedAt:   now,
	})
	return o, nil
}

// Recalculate recomputes line totals, subtotal and
// final = max(0, subtotal + shipping + tax - discount).
func (o *Order) Recalculate() error {
	subtotal := money.Zero(o.Currency)
	for i := range o.Items {
		lineTotal, err := o.Items[i].UnitPrice.Multiply(o.Items[i].Quantity)
		if err != nil {
			return err
		}
		o.Items[i].LineTotal = lineTotal
		if subtotal, err = subtotal.Add(lineTotal); err != nil {
			return err
		}
	}

	gross, err := subtotal.Add(o.ShippingCost)
	if err != nil {
		return err
	}
	if gross, err = gross.Add(o.TaxAmount); err != nil {
		return err
	}
	final, err := gross.SubtractFloor(o.DiscountAmount)
	if err != nil {
		return err
	}

	o.Subtotal = subtotal
	o.FinalAmount = final
	return nil
}

// TransitionTo moves the order along the transition table and records the step
func (o *Order) TransitionTo(target Status, reason string) error {
	if !CanTransition(o.Status, target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, target)
	}

	now := time.Now().UTC()
	from := o.Status
	o.Status = target
	o.StatusHistory = append(o.StatusHistory, StatusChange{From: from, To: target, At: now, Reason: reason})
	o.UpdatedAt = now

	switch target {
	case StatusDelivered:
		o.DeliveredAt = &now
	case StatusCancelled:
		o.CancellationReason = reason
	case StatusRefunded:
		o.PaymentStatus = PaymentRefunded
	}

	o.Record(&OrderStatusChangedEvent{
		OrderID:        o.OrderID,
		OrderNumber:    o.OrderNumber,
		PreviousStatus: from,
		NewStatus:      target,
		Reason:         reason,
		ChangedAt:      now,
	})
	return nil
}

// CheckCancellable fails with ErrNotCancellable once the point of no return is passed
func (o *Order) CheckCancellable() error {
	if !o.Status.IsCancellable() {
		return fmt.Errorf("%w: order is %s", ErrNotCancellable, o.Status)
	}
	return nil
}

// Cancel moves a cancellable order to CANCELLED
func (o *Order) Cancel(reason string) error {
	if err := o.CheckCancellable(); err != nil {
		return err
	}
	return o.TransitionTo(StatusCancelled, reason)
}

// UpdatePaymentStatus records a payment outcome. Only PAID and FAILED can be
// set directly and only while the order is not terminal; refunds go through
// the returns path.
func (o *Order) UpdatePaymentStatus(status PaymentStatus) error {
	if status != PaymentPaid && status != PaymentFailed {
		return fmt.Errorf("%w: payment status %q cannot be set directly", ErrInvalidState, status)
	}
	if o.Status.IsTerminal() {
		return fmt.Errorf("%w: order is %s", ErrInvalidState, o.Status)
	}
	o.PaymentStatus = status
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// LinkStage records the id of a pipeline record produced for the order
func (o *Order) LinkStage(link StageLink, id string) {
	switch link {
	case LinkPickList:
		o.Links.PickListID = id
	case LinkPackage:
		o.Links.PackageID = id
	case LinkQualityCheck:
		o.Links.QualityCheckID = id
	case LinkShipment:
		o.Links.ShipmentID = id
	case LinkTracking:
		o.Links.TrackingNumber = id
	}
	o.UpdatedAt = time.Now().UTC()
}

// Line returns the line item for a product
func (o *Order) Line(productID string) (LineItem, bool) {
	for _, item := range o.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return LineItem{}, false
}

// Clone returns a deep copy without pending events
func (o *Order) Clone() *Order {
	c := *o
	c.EventRecorder = common.EventRecorder{}
	c.Items = append([]LineItem(nil), o.Items...)
	c.StatusHistory = append([]StatusChange(nil), o.StatusHistory...)
	if o.EstimatedDeliveryDate != nil {
		t := *o.EstimatedDeliveryDate
		c.EstimatedDeliveryDate = &t
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		c.DeliveredAt = &t
	}
	return &c
}
