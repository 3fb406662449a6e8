package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/wms-platform/fulfillment/shared/pkg/money"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/common"
)

// Errors
var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidState      = errors.New("invalid stock state")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInvalidLevels     = errors.New("invalid stock levels")
	ErrInvalidAdjustMode = errors.New("invalid adjust mode")
	ErrMissingProductID  = errors.New("product id is required")

	ErrProductInactive  = fmt.Errorf("%w: product is inactive", ErrInvalidState)
	ErrCommitExceeds    = fmt.Errorf("%w: commit exceeds reserved quantity", ErrInvalidState)
	ErrAlreadyInactive  = fmt.Errorf("%w: product already inactive", ErrInvalidState)
	ErrAlreadyActive    = fmt.Errorf("%w: product already active", ErrInvalidState)
	ErrBelowReservation = fmt.Errorf("%w: quantity would fall below reserved", ErrInsufficientStock)
)

// Registration defaults applied when a level is omitted
const (
	DefaultMinimumLevel = 10
	DefaultMaximumLevel = 1000
	DefaultReorderPoint = 20
)

// StockStatus is the derived status of a stock record
type StockStatus string

const (
	StatusActive     StockStatus = "ACTIVE"
	StatusLowStock   StockStatus = "LOW_STOCK"
	StatusOutOfStock StockStatus = "OUT_OF_STOCK"
	StatusInactive   StockStatus = "INACTIVE"
)

// IsValid checks if the status is valid
func (s StockStatus) IsValid() bool {
	switch s {
	case StatusActive, StatusLowStock, StatusOutOfStock, StatusInactive:
		return true
	default:
		return false
	}
}

// AdjustMode selects how Adjust interprets its quantity
type AdjustMode string

const (
	AdjustAdd    AdjustMode = "ADD"
	AdjustRemove AdjustMode = "REMOVE"
	AdjustSet    AdjustMode = "SET"
)

// IsValid checks if the mode is valid
func (m AdjustMode) IsValid() bool {
	switch m {
	case AdjustAdd, AdjustRemove, AdjustSet:
		return true
	default:
		return false
	}
}

// Operation names the ledger mutation that produced a movement
type Operation string

const (
	OpReserve      Operation = "reserve"
	OpRelease      Operation = "release"
	OpCommit       Operation = "commit"
	OpRevertCommit Operation = "revert_commit"
	OpRestock      Operation = "restock"
	OpAdjust       Operation = "adjust"
)

// StockRecord is the aggregate root of the stock ledger. Invariant:
// 0 <= ReservedQuantity <= CurrentQuantity and
// AvailableQuantity == CurrentQuantity - ReservedQuantity.
type StockRecord struct {
	ProductID         string      `bson:"_id" json:"productId"`
	ProductName       string      `bson:"productName" json:"productName"`
	SKU               string      `bson:"sku" json:"sku"`
	CurrentQuantity   int         `bson:"currentQuantity" json:"currentQuantity"`
	ReservedQuantity  int         `bson:"reservedQuantity" json:"reservedQuantity"`
	AvailableQuantity int         `bson:"availableQuantity" json:"availableQuantity"`
	MinimumLevel      int         `bson:"minimumLevel" json:"minimumLevel"`
	MaximumLevel      int         `bson:"maximumLevel" json:"maximumLevel"`
	ReorderPoint      int         `bson:"reorderPoint" json:"reorderPoint"`
	UnitCost          money.Money `bson:"unitCost" json:"unitCost"`
	Active            bool        `bson:"active" json:"active"`
	Status            StockStatus `bson:"status" json:"status"`
	Version           int         `bson:"version" json:"version"`
	LastRestockedAt   *time.Time  `bson:"lastRestockedAt,omitempty" json:"lastRestockedAt,omitempty"`
	LastSoldAt        *time.Time  `bson:"lastSoldAt,omitempty" json:"lastSoldAt,omitempty"`
	CreatedAt         time.Time   `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time   `bson:"updatedAt" json:"updatedAt"`

	common.EventRecorder `bson:"-" json:"-"`
}

// Levels are the thresholds that drive status and alerts
type Levels struct {
	MinimumLevel int
	MaximumLevel int
	ReorderPoint int
}

// DefaultLevels returns the registration defaults
func DefaultLevels() Levels {
	return Levels{
		MinimumLevel: DefaultMinimumLevel,
		MaximumLevel: DefaultMaximumLevel,
		ReorderPoint: DefaultReorderPoint,
	}
}

// Validate checks the levels are non-negative and ordered
func (l Levels) Validate() error {
	if l.MinimumLevel < 0 || l.MaximumLevel < 0 || l.ReorderPoint < 0 {
		return fmt.Errorf("%w: levels must not be negative", ErrInvalidLevels)
	}
	if l.MaximumLevel > 0 && l.MinimumLevel > l.MaximumLevel {
		return fmt.Errorf("%w: minimum level exceeds maximum level", ErrInvalidLevels)
	}
	return nil
}

// NewStockRecord registers a product with the ledger
func NewStockRecord(productID, productName, sku string, initialQuantity int, levels Levels, unitCost money.Money) (*StockRecord, error) {
	if productID == "" {
		return nil, ErrMissingProductID
	}
	if initialQuantity < 0 {
		return nil, fmt.Errorf("%w: initial quantity must not be negative", ErrInvalidQuantity)
	}
	if err := levels.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	record := &StockRecord{
		ProductID:       productID,
		ProductName:     productName,
		SKU:             sku,
		CurrentQuantity: initialQuantity,
		MinimumLevel:    levels.MinimumLevel,
		MaximumLevel:    levels.MaximumLevel,
		ReorderPoint:    levels.ReorderPoint,
		UnitCost:        unitCost,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	record.Status = record.deriveStatus()
	record.AvailableQuantity = record.CurrentQuantity

	record.Record(&StockRegisteredEvent{
		ProductID:    productID,
		SKU:          sku,
		Quantity:     initialQuantity,
		Status:       record.Status,
		RegisteredAt: now,
	})
	return record, nil
}

func requirePositive(qty int) error {
	if qty < 1 {
		return fmt.Errorf("%w: quantity must be at least 1, got %d", ErrInvalidQuantity, qty)
	}
	return nil
}

// Reserve places a soft hold on qty units
func (s *StockRecord) Reserve(qty int) error {
	if err := requirePositive(qty); err != nil {
		return err
	}
	if !s.Active {
		return ErrProductInactive
	}
	if s.Available() < qty {
		return fmt.Errorf("%w: requested %d, available %d", ErrInsufficientStock, qty, s.Available())
	}

	s.ReservedQuantity += qty
	s.applied(OpReserve, qty)
	return nil
}

// Release drops up to qty units of reservation; the reservation never goes negative
func (s *StockRecord) Release(qty int) error {
	if err := requirePositive(qty); err != nil {
		return err
	}

	s.ReservedQuantity -= qty
	if s.ReservedQuantity < 0 {
		s.ReservedQuantity = 0
	}
	s.applied(OpRelease, qty)
	return nil
}

// Commit turns qty reserved units into a permanent deduction
func (s *StockRecord) Commit(qty int) error {
	if err := requirePositive(qty); err != nil {
		return err
	}
	if s.ReservedQuantity < qty {
		return fmt.Errorf("%w: requested %d, reserved %d", ErrCommitExceeds, qty, s.ReservedQuantity)
	}

	s.ReservedQuantity -= qty
	s.CurrentQuantity -= qty
	now := time.Now().UTC()
	s.LastSoldAt = &now
	s.applied(OpCommit, qty)
	return nil
}

// RevertCommit undoes a Commit of qty units. It only compensates a partially
// applied multi-line commit and is not exposed to callers outside the service.
func (s *StockRecord) RevertCommit(qty int) error {
	if err := requirePositive(qty); err != nil {
		return err
	}

	s.CurrentQuantity += qty
	s.ReservedQuantity += qty
	s.applied(OpRevertCommit, qty)
	return nil
}

// Restock adds qty units to the current quantity
func (s *StockRecord) Restock(qty int) error {
	if err := requirePositive(qty); err != nil {
		return err
	}

	s.CurrentQuantity += qty
	now := time.Now().UTC()
	s.LastRestockedAt = &now
	s.applied(OpRestock, qty)
	return nil
}

// Adjust applies a manual correction
func (s *StockRecord) Adjust(qty int, mode AdjustMode) error {
	var target int
	switch mode {
	case AdjustAdd:
		if err := requirePositive(qty); err != nil {
			return err
		}
		target = s.CurrentQuantity + qty
	case AdjustRemove:
		if err := requirePositive(qty); err != nil {
			return err
		}
		target = s.CurrentQuantity - qty
		if target < 0 {
			return fmt.Errorf("%w: cannot remove %d from %d", ErrInsufficientStock, qty, s.CurrentQuantity)
		}
	case AdjustSet:
		if qty < 0 {
			return fmt.Errorf("%w: quantity must not be negative", ErrInvalidQuantity)
		}
		target = qty
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAdjustMode, mode)
	}

	if target < s.ReservedQuantity {
		return fmt.Errorf("%w: target %d, reserved %d", ErrBelowReservation, target, s.ReservedQuantity)
	}

	previous := s.CurrentQuantity
	s.CurrentQuantity = target
	s.applied(OpAdjust, qty)
	s.Record(&StockAdjustedEvent{
		ProductID:        s.ProductID,
		Mode:             mode,
		Quantity:         qty,
		PreviousQuantity: previous,
		NewQuantity:      target,
		AdjustedAt:       s.UpdatedAt,
	})
	return nil
}

// Deactivate takes the product out of sale; the record is kept
func (s *StockRecord) Deactivate() error {
	if !s.Active {
		return ErrAlreadyInactive
	}
	s.Active = false
	s.touch()
	return nil
}

// Activate puts a deactivated product back on sale
func (s *StockRecord) Activate() error {
	if s.Active {
		return ErrAlreadyActive
	}
	s.Active = true
	s.touch()
	return nil
}

// UpdateLevels replaces the alert thresholds
func (s *StockRecord) UpdateLevels(levels Levels) error {
	if err := levels.Validate(); err != nil {
		return err
	}
	s.MinimumLevel = levels.MinimumLevel
	s.MaximumLevel = levels.MaximumLevel
	s.ReorderPoint = levels.ReorderPoint
	s.touch()
	return nil
}

// Available returns current minus reserved quantity
func (s *StockRecord) Available() int {
	return s.CurrentQuantity - s.ReservedQuantity
}

func (s *StockRecord) deriveStatus() StockStatus {
	switch {
	case !s.Active:
		return StatusInactive
	case s.CurrentQuantity == 0:
		return StatusOutOfStock
	case s.CurrentQuantity <= s.ReorderPoint:
		return StatusLowStock
	default:
		return StatusActive
	}
}

// touch recomputes derived fields after every mutation
func (s *StockRecord) touch() {
	s.AvailableQuantity = s.Available()
	s.UpdatedAt = time.Now().UTC()

	previous := s.Status
	s.Status = s.deriveStatus()
	if previous != s.Status {
		s.Record(&StockStatusChangedEvent{
			ProductID:      s.ProductID,
			PreviousStatus: previous,
			NewStatus:      s.Status,
			ChangedAt:      s.UpdatedAt,
		})
	}
}

func (s *StockRecord) applied(op Operation, qty int) {
	s.touch()
	if op == OpAdjust {
		return
	}
	s.Record(&StockMovementEvent{
		ProductID:         s.ProductID,
		Operation:         op,
		Quantity:          qty,
		CurrentQuantity:   s.CurrentQuantity,
		ReservedQuantity:  s.ReservedQuantity,
		AvailableQuantity: s.AvailableQuantity,
		MovedAt:           s.UpdatedAt,
	})
}

// Clone returns a deep copy without pending events
func (s *StockRecord) Clone() *StockRecord {
	c := *s
	c.EventRecorder = common.EventRecorder{}
	if s.LastRestockedAt != nil {
		t := *s.LastRestockedAt
		c.LastRestockedAt = &t
	}
	if s.LastSoldAt != nil {
		t := *s.LastSoldAt
		c.LastSoldAt = &t
	}
	return &c
}
