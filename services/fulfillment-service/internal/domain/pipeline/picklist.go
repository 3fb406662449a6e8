package pipeline

import (
	"fmt"
	"time"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/common"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/order"
)

// PickListStatus represents the status of a pick list
type PickListStatus string

const (
	PickListPending    PickListStatus = "PENDING"
	PickListInProgress PickListStatus = "IN_PROGRESS"
	PickListCompleted  PickListStatus = "COMPLETED"
	PickListCancelled  PickListStatus = "CANCELLED"
)

// PickItem is one order line to be picked
type PickItem struct {
	ProductID        string     `bson:"productId" json:"productId"`
	ProductName      string     `bson:"productName" json:"productName"`
	SKU              string     `bson:"sku" json:"sku"`
	RequiredQuantity int        `bson:"requiredQuantity" json:"requiredQuantity"`
	PickedQuantity   int        `bson:"pickedQuantity" json:"pickedQuantity"`
	WeightKg         float64    `bson:"weightKg" json:"weightKg"`
	PickedAt         *time.Time `bson:"pickedAt,omitempty" json:"pickedAt,omitempty"`
}

// IsPicked reports whether the item is fully picked
func (i PickItem) IsPicked() bool {
	return i.PickedQuantity >= i.RequiredQuantity
}

// PickList is the first stage of the pipeline
type PickList struct {
	PickListID     string         `bson:"_id" json:"pickListId"`
	PickListNumber string         `bson:"pickListNumber" json:"pickListNumber"`
	OrderID        string         `bson:"orderId" json:"orderId"`
	OrderNumber    string         `bson:"orderNumber" json:"orderNumber"`
	AssignedTo     string         `bson:"assignedTo,omitempty" json:"assignedTo,omitempty"`
	Priority       order.Priority `bson:"priority" json:"priority"`
	Status         PickListStatus `bson:"status" json:"status"`
	Items          []PickItem     `bson:"items" json:"items"`
	Notes          string         `bson:"notes,omitempty" json:"notes,omitempty"`
	StartedAt      *time.Time     `bson:"startedAt,omitempty" json:"startedAt,omitempty"`
	CompletedAt    *time.Time     `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	Version        int            `bson:"version" json:"version"`
	CreatedAt      time.Time      `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time      `bson:"updatedAt" json:"updatedAt"`

	common.EventRecorder `bson:"-" json:"-"`
}

// NewPickList copies the order lines into a PENDING pick list
func NewPickList(o *order.Order, assignedTo string) *PickList {
	now := time.Now().UTC()
	items := make([]PickItem, 0, len(o.Items))
	for _, line := range o.Items {
		items = append(items, PickItem{
			ProductID:        line.ProductID,
			ProductName:      line.ProductName,
			SKU:              line.SKU,
			RequiredQuantity: line.Quantity,
			WeightKg:         line.WeightKg,
		})
	}
	return &PickList{
		PickListID:     common.NewID(),
		PickListNumber: common.NewNumber("PL", now),
		OrderID:        o.OrderID,
		OrderNumber:    o.OrderNumber,
		AssignedTo:     assignedTo,
		Priority:       o.Priority,
		Status:         PickListPending,
		Items:          items,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (p *PickList) checkOpen() error {
	switch p.Status {
	case PickListCompleted:
		return ErrStageCompleted
	case PickListCancelled:
		return ErrStageCancelled
	}
	return nil
}

func (p *PickList) item(productID string) (*PickItem, error) {
	for i := range p.Items {
		if p.Items[i].ProductID == productID {
			return &p.Items[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownItem, productID)
}

// RecordPick adds qty picked units of a product
func (p *PickList) RecordPick(productID string, qty int) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	if qty < 1 {
		return ErrInvalidQuantity
	}
	item, err := p.item(productID)
	if err != nil {
		return err
	}
	if item.PickedQuantity+qty > item.RequiredQuantity {
		return fmt.Errorf("%w: %s", ErrOverPick, productID)
	}

	now := time.Now().UTC()
	item.PickedQuantity += qty
	if item.IsPicked() {
		item.PickedAt = &now
	}
	if p.Status == PickListPending {
		p.Status = PickListInProgress
		p.StartedAt = &now
	}
	p.UpdatedAt = now
	return nil
}

// Complete applies optional final picked quantities and completes the list.
// Every item must end up fully picked.
func (p *PickList) Complete(picked map[string]int) error {
	if err := p.checkOpen(); err != nil {
		return err
	}

	updated := make([]PickItem, len(p.Items))
	copy(updated, p.Items)
	now := time.Now().UTC()
	for productID, qty := range picked {
		found := false
		for i := range updated {
			if updated[i].ProductID != productID {
				continue
			}
			found = true
			if qty < 0 || qty > updated[i].RequiredQuantity {
				return fmt.Errorf("%w: %s", ErrOverPick, productID)
			}
			updated[i].PickedQuantity = qty
		}
		if !found {
			return fmt.Errorf("%w: %s", ErrUnknownItem, productID)
		}
	}
	for i := range updated {
		if !updated[i].IsPicked() {
			return fmt.Errorf("%w: %s picked %d of %d", ErrIncompletePick,
				updated[i].ProductID, updated[i].PickedQuantity, updated[i].RequiredQuantity)
		}
		if updated[i].PickedAt == nil {
			updated[i].PickedAt = &now
		}
	}

	p.Items = updated
	p.Status = PickListCompleted
	if p.StartedAt == nil {
		p.StartedAt = &now
	}
	p.CompletedAt = &now
	p.UpdatedAt = now
	p.Record(&StageCompletedEvent{OrderID: p.OrderID, StageID: p.PickListID, Kind: StagePick, CompletedAt: now})
	return nil
}

// Cancel abandons an open pick list
func (p *PickList) Cancel(reason string) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	p.Status = PickListCancelled
	p.Notes = reason
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// Clone returns a deep copy without pending events
func (p *PickList) Clone() *PickList {
	c := *p
	c.EventRecorder = common.EventRecorder{}
	c.Items = append([]PickItem(nil), p.Items...)
	return &c
}
