package returns

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wms-platform/fulfillment/shared/pkg/cloudevents"
	"github.com/wms-platform/fulfillment/shared/pkg/money"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/common"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/order"
)

// DefaultWindow is how long after delivery a return may be requested
const DefaultWindow = 30 * 24 * time.Hour

// Errors
var (
	ErrInvalidTransition = errors.New("invalid return transition")
	ErrValidation        = errors.New("invalid return input")

	ErrOrderNotDelivered = fmt.Errorf("%w: order has not been delivered", ErrInvalidTransition)
	ErrWindowExpired     = fmt.Errorf("%w: return window has expired", ErrValidation)
	ErrNoItems           = fmt.Errorf("%w: at least one item is required", ErrValidation)
	ErrUnknownProduct    = fmt.Errorf("%w: product is not part of the order", ErrValidation)
	ErrDuplicateItem     = fmt.Errorf("%w: product listed twice", ErrValidation)
	ErrInvalidQuantity   = fmt.Errorf("%w: quantity must be between 1 and the ordered quantity", ErrValidation)
	ErrUnknownReason     = fmt.Errorf("%w: unknown return reason", ErrValidation)
	ErrUnknownType       = fmt.Errorf("%w: unknown return type", ErrValidation)
	ErrUnknownCondition  = fmt.Errorf("%w: unknown item condition", ErrValidation)
	ErrUnknownGrade      = fmt.Errorf("%w: unknown quality grade", ErrValidation)
	ErrRestockExceeds    = fmt.Errorf("%w: restock quantity exceeds the returned quantity", ErrValidation)
	ErrNegativeAmount    = fmt.Errorf("%w: fees and refunds must not be negative", ErrValidation)
	ErrReasonRequired    = fmt.Errorf("%w: a rejection reason is required", ErrValidation)
	ErrAlreadyReturned   = fmt.Errorf("%w: quantity exceeds what is left to return", ErrValidation)
)

// ItemInput is one requested return line
type ItemInput struct {
	ProductID string
	Quantity  int
	Condition Condition
}

// InspectionItem is the inspector's verdict on one returned product
type InspectionItem struct {
	ProductID       string
	Condition       Condition
	RestockQuantity int
	Notes           string
}

// Item is a returned product line
type Item struct {
	ProductID        string      `bson:"productId" json:"productId"`
	ProductName      string      `bson:"productName" json:"productName"`
	SKU              string      `bson:"sku" json:"sku"`
	ReturnQuantity   int         `bson:"returnQuantity" json:"returnQuantity"`
	OriginalQuantity int         `bson:"originalQuantity" json:"originalQuantity"`
	UnitPrice        money.Money `bson:"unitPrice" json:"unitPrice"`
	Condition        Condition   `bson:"condition" json:"condition"`
	IsRestockable    bool        `bson:"isRestockable" json:"isRestockable"`
	RestockQuantity  int         `bson:"restockQuantity" json:"restockQuantity"`
	QualityNotes     string      `bson:"qualityNotes,omitempty" json:"qualityNotes,omitempty"`
}

// RestockRecord documents goods put back into the ledger
type RestockRecord struct {
	RestockID    string    `bson:"restockId" json:"restockId"`
	ProductID    string    `bson:"productId" json:"productId"`
	ProductName  string    `bson:"productName" json:"productName"`
	SKU          string    `bson:"sku" json:"sku"`
	Quantity     int       `bson:"quantity" json:"quantity"`
	Condition    Condition `bson:"condition" json:"condition"`
	QualityGrade Grade     `bson:"qualityGrade" json:"qualityGrade"`
	RestockedBy  string    `bson:"restockedBy" json:"restockedBy"`
	RestockedAt  time.Time `bson:"restockedAt" json:"restockedAt"`
}

// Params is a return request
type Params struct {
	Reason             Reason
	Type               Type
	Description        string
	Items              []ItemInput
	RestockingFee      float64
	ShippingCostRefund float64
	// AlreadyReturned holds the units per product claimed by the order's
	// other returns; see ReturnedQuantities
	AlreadyReturned map[string]int
}

// ReturnedQuantities sums the units per product claimed by returns that were
// not rejected
func ReturnedQuantities(existing []*ReturnOrder) map[string]int {
	claimed := make(map[string]int)
	for _, r := range existing {
		if r.Status == StatusRejected {
			continue
		}
		for _, item := range r.Items {
			claimed[item.ProductID] += item.ReturnQuantity
		}
	}
	return claimed
}

// ReturnOrder is the aggregate root of the returns flow
type ReturnOrder struct {
	ReturnID           string          `bson:"_id" json:"returnId"`
	ReturnNumber       string          `bson:"returnNumber" json:"returnNumber"`
	OrderID            string          `bson:"orderId" json:"orderId"`
	OrderNumber        string          `bson:"orderNumber" json:"orderNumber"`
	CustomerID         string          `bson:"customerId" json:"customerId"`
	Reason             Reason          `bson:"reason" json:"reason"`
	Type               Type            `bson:"type" json:"type"`
	Description        string          `bson:"description,omitempty" json:"description,omitempty"`
	Status             Status          `bson:"status" json:"status"`
	Currency           string          `bson:"currency" json:"currency"`
	Items              []Item          `bson:"items" json:"items"`
	RestockingFee      money.Money     `bson:"restockingFee" json:"restockingFee"`
	ShippingCostRefund money.Money     `bson:"shippingCostRefund" json:"shippingCostRefund"`
	RefundAmount       money.Money     `bson:"refundAmount" json:"refundAmount"`
	TotalRefundAmount  money.Money     `bson:"totalRefundAmount" json:"totalRefundAmount"`
	QualityGrade       Grade           `bson:"qualityGrade,omitempty" json:"qualityGrade,omitempty"`
	IsRestockable      bool            `bson:"isRestockable" json:"isRestockable"`
	ApprovedBy         string          `bson:"approvedBy,omitempty" json:"approvedBy,omitempty"`
	ApprovedAt         *time.Time      `bson:"approvedAt,omitempty" json:"approvedAt,omitempty"`
	RejectionReason    string          `bson:"rejectionReason,omitempty" json:"rejectionReason,omitempty"`
	ReceivedAt         *time.Time      `bson:"receivedAt,omitempty" json:"receivedAt,omitempty"`
	InspectedAt        *time.Time      `bson:"inspectedAt,omitempty" json:"inspectedAt,omitempty"`
	CompletedBy        string          `bson:"completedBy,omitempty" json:"completedBy,omitempty"`
	CompletedAt        *time.Time      `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	RestockRecords     []RestockRecord `bson:"restockRecords" json:"restockRecords"`
	Version            int             `bson:"version" json:"version"`
	CreatedAt          time.Time       `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time       `bson:"updatedAt" json:"updatedAt"`

	common.EventRecorder `bson:"-" json:"-"`
}

// New validates a return request against a delivered order
func New(o *order.Order, params Params, window time.Duration, now time.Time) (*ReturnOrder, error) {
	if o.Status != order.StatusDelivered {
		return nil, fmt.Errorf("%w: order is %s", ErrOrderNotDelivered, o.Status)
	}
	if o.DeliveredAt != nil && now.After(o.DeliveredAt.Add(window)) {
		return nil, ErrWindowExpired
	}
	if !params.Reason.IsValid() {
		return nil, ErrUnknownReason
	}
	if params.Type == "" {
		params.Type = TypeRefund
	}
	if !params.Type.IsValid() {
		return nil, ErrUnknownType
	}
	if len(params.Items) == 0 {
		return nil, ErrNoItems
	}

	fee, err := money.FromFloat(params.RestockingFee, o.Currency)
	if err != nil {
		return nil, ErrNegativeAmount
	}
	shippingRefund, err := money.FromFloat(params.ShippingCostRefund, o.Currency)
	if err != nil {
		return nil, ErrNegativeAmount
	}

	seen := make(map[string]bool, len(params.Items))
	items := make([]Item, 0, len(params.Items))
	for _, in := range params.Items {
		line, ok := o.Line(in.ProductID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProduct, in.ProductID)
		}
		if seen[in.ProductID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateItem, in.ProductID)
		}
		seen[in.ProductID] = true
		if in.Quantity < 1 || in.Quantity > line.Quantity {
			return nil, fmt.Errorf("%w: %s", ErrInvalidQuantity, in.ProductID)
		}
		if claimed := params.AlreadyReturned[in.ProductID]; claimed+in.Quantity > line.Quantity {
			return nil, fmt.Errorf("%w: %s has %d of %d left", ErrAlreadyReturned, in.ProductID, max(line.Quantity-claimed, 0), line.Quantity)
		}
		condition := in.Condition
		if condition == "" {
			condition = ConditionUsed
		}
		if !condition.IsValid() {
			return nil, ErrUnknownCondition
		}
		items = append(items, Item{
			ProductID:        line.ProductID,
			ProductName:      line.ProductName,
			SKU:              line.SKU,
			ReturnQuantity:   in.Quantity,
			OriginalQuantity: line.Quantity,
			UnitPrice:        line.UnitPrice,
			Condition:        condition,
		})
	}

	now = now.UTC()
	r := &ReturnOrder{
		ReturnID:           common.NewID(),
		ReturnNumber:       common.NewNumber("RET", now),
		OrderID:            o.OrderID,
		OrderNumber:        o.OrderNumber,
		CustomerID:         o.Customer.ID,
		Reason:             params.Reason,
		Type:               params.Type,
		Description:        params.Description,
		Status:             StatusRequested,
		Currency:           o.Currency,
		Items:              items,
		RestockingFee:      fee,
		ShippingCostRefund: shippingRefund,
		RestockRecords:     []RestockRecord{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := r.calculateRefund(); err != nil {
		return nil, err
	}
	r.Record(&ReturnRequestedEvent{
		ReturnID:    r.ReturnID,
		OrderID:     r.OrderID,
		Type:        r.Type,
		Reason:      r.Reason,
		RefundTotal: r.TotalRefundAmount.Float(),
		RequestedAt: now,
	})
	return r, nil
}

// calculateRefund computes max(0, sum(qty * unitPrice) - restockingFee + shippingCostRefund)
func (r *ReturnOrder) calculateRefund() error {
	subtotal := money.Zero(r.Currency)
	for _, item := range r.Items {
		line, err := item.UnitPrice.Multiply(item.ReturnQuantity)
		if err != nil {
			return err
		}
		if subtotal, err = subtotal.Add(line); err != nil {
			return err
		}
	}
	gross, err := subtotal.Add(r.ShippingCostRefund)
	if err != nil {
		return err
	}
	total, err := gross.SubtractFloor(r.RestockingFee)
	if err != nil {
		return err
	}
	r.RefundAmount = subtotal
	r.TotalRefundAmount = total
	return nil
}

func (r *ReturnOrder) move(from, to Status) error {
	if r.Status != from {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, to)
	}
	r.Status = to
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// Approve accepts a requested return
func (r *ReturnOrder) Approve(approvedBy string) error {
	if err := r.move(StatusRequested, StatusApproved); err != nil {
		return err
	}
	at := r.UpdatedAt
	r.ApprovedBy = approvedBy
	r.ApprovedAt = &at
	return nil
}

// Reject declines a requested return
func (r *ReturnOrder) Reject(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return ErrReasonRequired
	}
	if err := r.move(StatusRequested, StatusRejected); err != nil {
		return err
	}
	r.RejectionReason = reason
	return nil
}

// Receive records the goods arriving at the warehouse
func (r *ReturnOrder) Receive() error {
	if err := r.move(StatusApproved, StatusReceived); err != nil {
		return err
	}
	at := r.UpdatedAt
	r.ReceivedAt = &at
	return nil
}

// Inspect grades the received goods. Items not listed keep their requested
// condition and are restocked in full unless damaged.
func (r *ReturnOrder) Inspect(grade Grade, verdicts []InspectionItem, notes string) error {
	if r.Status != StatusReceived {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, StatusInspecting)
	}
	if !grade.IsValid() {
		return ErrUnknownGrade
	}

	items := append([]Item(nil), r.Items...)
	for i := range items {
		items[i].RestockQuantity = items[i].ReturnQuantity
	}
	for _, v := range verdicts {
		idx := -1
		for i := range items {
			if items[i].ProductID == v.ProductID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrUnknownProduct, v.ProductID)
		}
		if v.Condition != "" {
			if !v.Condition.IsValid() {
				return ErrUnknownCondition
			}
			items[idx].Condition = v.Condition
		}
		if v.RestockQuantity < 0 || v.RestockQuantity > items[idx].ReturnQuantity {
			return fmt.Errorf("%w: %s", ErrRestockExceeds, v.ProductID)
		}
		items[idx].RestockQuantity = v.RestockQuantity
		items[idx].QualityNotes = v.Notes
	}

	restockable := grade.IsRestockable()
	for i := range items {
		if items[i].Condition == ConditionDamaged || !restockable {
			items[i].RestockQuantity = 0
		}
		items[i].IsRestockable = items[i].RestockQuantity > 0
	}

	if err := r.move(StatusReceived, StatusInspecting); err != nil {
		return err
	}
	at := r.UpdatedAt
	r.Items = items
	r.QualityGrade = grade
	r.IsRestockable = restockable
	r.InspectedAt = &at
	if notes != "" {
		r.Description = strings.TrimSpace(r.Description + "\n" + notes)
	}
	return nil
}

// RestockPlan lists the goods that go back into the ledger on completion
func (r *ReturnOrder) RestockPlan() []Item {
	if !r.IsRestockable {
		return nil
	}
	var plan []Item
	for _, item := range r.Items {
		if item.IsRestockable && item.RestockQuantity > 0 {
			plan = append(plan, item)
		}
	}
	return plan
}

// RefundsOrder reports whether completing the return refunds the order
func (r *ReturnOrder) RefundsOrder() bool {
	return r.Type == TypeRefund
}

// Complete closes an inspected return and records the restocked goods
func (r *ReturnOrder) Complete(completedBy string) error {
	if r.Status != StatusInspecting {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, StatusCompleted)
	}
	now := time.Now().UTC()
	units := 0
	records := make([]RestockRecord, 0)
	for _, item := range r.RestockPlan() {
		units += item.RestockQuantity
		records = append(records, RestockRecord{
			RestockID:    common.NewID(),
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			SKU:          item.SKU,
			Quantity:     item.RestockQuantity,
			Condition:    item.Condition,
			QualityGrade: r.QualityGrade,
			RestockedBy:  completedBy,
			RestockedAt:  now,
		})
	}

	r.Status = StatusCompleted
	r.CompletedBy = completedBy
	r.CompletedAt = &now
	r.RestockRecords = append(r.RestockRecords, records...)
	r.UpdatedAt = now
	r.Record(&ReturnCompletedEvent{
		ReturnID:       r.ReturnID,
		OrderID:        r.OrderID,
		Type:           r.Type,
		RefundTotal:    r.TotalRefundAmount.Float(),
		UnitsRestocked: units,
		CompletedAt:    now,
	})
	return nil
}

// UnitsRestocked sums the restock records
func (r *ReturnOrder) UnitsRestocked() int {
	n := 0
	for _, rec := range r.RestockRecords {
		n += rec.Quantity
	}
	return n
}

// Clone returns a deep copy without pending events
func (r *ReturnOrder) Clone() *ReturnOrder {
	c := *r
	c.EventRecorder = common.EventRecorder{}
	c.Items = append([]Item(nil), r.Items...)
	c.RestockRecords = append([]RestockRecord(nil), r.RestockRecords...)
	return &c
}

// ReturnRequestedEvent is raised when a return is requested
type ReturnRequestedEvent struct {
	ReturnID    string    `json:"returnId"`
	OrderID     string    `json:"orderId"`
	Type        Type      `json:"type"`
	Reason      Reason    `json:"reason"`
	RefundTotal float64   `json:"refundTotal"`
	RequestedAt time.Time `json:"requestedAt"`
}

func (e *ReturnRequestedEvent) EventType() string     { return cloudevents.ReturnRequested }
func (e *ReturnRequestedEvent) OccurredAt() time.Time { return e.RequestedAt }

// ReturnCompletedEvent is raised when a return is completed
type ReturnCompletedEvent struct {
	ReturnID       string    `json:"returnId"`
	OrderID        string    `json:"orderId"`
	Type           Type      `json:"type"`
	RefundTotal    float64   `json:"refundTotal"`
	UnitsRestocked int       `json:"unitsRestocked"`
	CompletedAt    time.Time `json:"completedAt"`
}

func (e *ReturnCompletedEvent) EventType() string     { return cloudevents.ReturnCompleted }
func (e *ReturnCompletedEvent) OccurredAt() time.Time { return e.CompletedAt }
