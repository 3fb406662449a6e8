package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/fulfillment/shared/pkg/money"
)

func newRecord(t *testing.T, current, reorderPoint int) *StockRecord {
	t.Helper()
	levels := DefaultLevels()
	levels.ReorderPoint = reorderPoint
	levels.MinimumLevel = 0
	record, err := NewStockRecord("PROD-1", "Widget", "WID-1", current, levels, money.Zero("USD"))
	require.NoError(t, err)
	record.ClearDomainEvents()
	return record
}

func assertInvariant(t *testing.T, s *StockRecord) {
	t.Helper()
	assert.GreaterOrEqual(t, s.ReservedQuantity, 0)
	assert.LessOrEqual(t, s.ReservedQuantity, s.CurrentQuantity)
	assert.Equal(t, s.CurrentQuantity-s.ReservedQuantity, s.AvailableQuantity)
}

func TestNewStockRecord(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		qty     int
		levels  Levels
		wantErr error
		status  StockStatus
	}{
		{name: "defaults", id: "P", qty: 100, levels: DefaultLevels(), status: StatusActive},
		{name: "at reorder point", id: "P", qty: 20, levels: DefaultLevels(), status: StatusLowStock},
		{name: "empty", id: "P", qty: 0, levels: DefaultLevels(), status: StatusOutOfStock},
		{name: "missing id", id: "", qty: 1, levels: DefaultLevels(), wantErr: ErrMissingProductID},
		{name: "negative qty", id: "P", qty: -1, levels: DefaultLevels(), wantErr: ErrInvalidQuantity},
		{name: "min above max", id: "P", qty: 1, levels: Levels{MinimumLevel: 50, MaximumLevel: 10}, wantErr: ErrInvalidLevels},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, err := NewStockRecord(tt.id, "Widget", "WID", tt.qty, tt.levels, money.Zero("USD"))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.status, record.Status)
			assert.True(t, record.Active)
			assertInvariant(t, record)
			require.Len(t, record.DomainEvents(), 1)
			assert.IsType(t, &StockRegisteredEvent{}, record.DomainEvents()[0])
		})
	}
}

func TestReserve(t *testing.T) {
	s := newRecord(t, 10, 5)

	require.NoError(t, s.Reserve(7))
	assert.Equal(t, 3, s.Available())
	assertInvariant(t, s)

	err := s.Reserve(5)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 7, s.ReservedQuantity, "failed reserve must not change the record")

	assert.ErrorIs(t, s.Reserve(0), ErrInvalidQuantity)
}

func TestReserve_InactiveProduct(t *testing.T) {
	s := newRecord(t, 10, 5)
	require.NoError(t, s.Deactivate())
	assert.Equal(t, StatusInactive, s.Status)

	err := s.Reserve(1)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.ErrorIs(t, err, ErrProductInactive)
}

func TestReserveReleaseRoundTrip(t *testing.T) {
	s := newRecord(t, 10, 5)
	before := *s.Clone()

	require.NoError(t, s.Reserve(4))
	require.NoError(t, s.Release(4))

	assert.Equal(t, before.CurrentQuantity, s.CurrentQuantity)
	assert.Equal(t, before.ReservedQuantity, s.ReservedQuantity)
	assert.Equal(t, before.Status, s.Status)
}

func TestRelease_FlooredAtZero(t *testing.T) {
	s := newRecord(t, 10, 5)
	require.NoError(t, s.Reserve(2))
	require.NoError(t, s.Release(5))
	assert.Equal(t, 0, s.ReservedQuantity)
	assertInvariant(t, s)
}

func TestCommit(t *testing.T) {
	s := newRecord(t, 10, 5)
	require.NoError(t, s.Reserve(6))

	require.NoError(t, s.Commit(6))
	assert.Equal(t, 4, s.CurrentQuantity)
	assert.Equal(t, 0, s.ReservedQuantity)
	assert.Equal(t, StatusLowStock, s.Status)
	assert.NotNil(t, s.LastSoldAt)
	assertInvariant(t, s)

	assert.ErrorIs(t, s.Commit(1), ErrInvalidState)
}

func TestRevertCommit(t *testing.T) {
	s := newRecord(t, 10, 5)
	require.NoError(t, s.Reserve(3))
	require.NoError(t, s.Commit(3))
	require.NoError(t, s.RevertCommit(3))

	assert.Equal(t, 10, s.CurrentQuantity)
	assert.Equal(t, 3, s.ReservedQuantity)
	assertInvariant(t, s)
}

func TestRestock_FromOutOfStock(t *testing.T) {
	tests := []struct {
		name         string
		reorderPoint int
		want         StockStatus
	}{
		{name: "below reorder point", reorderPoint: 5, want: StatusLowStock},
		{name: "above reorder point", reorderPoint: 2, want: StatusActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newRecord(t, 0, tt.reorderPoint)
			require.Equal(t, StatusOutOfStock, s.Status)

			require.NoError(t, s.Restock(3))
			assert.Equal(t, 3, s.CurrentQuantity)
			assert.Equal(t, 0, s.ReservedQuantity)
			assert.Equal(t, tt.want, s.Status)
			assert.NotNil(t, s.LastRestockedAt)

			var changed *StockStatusChangedEvent
			for _, e := range s.DomainEvents() {
				if ev, ok := e.(*StockStatusChangedEvent); ok {
					changed = ev
				}
			}
			require.NotNil(t, changed)
			assert.Equal(t, StatusOutOfStock, changed.PreviousStatus)
		})
	}
}

func TestAdjust(t *testing.T) {
	tests := []struct {
		name     string
		reserved int
		qty      int
		mode     AdjustMode
		want     int
		wantErr  error
	}{
		{name: "add", qty: 5, mode: AdjustAdd, want: 15},
		{name: "remove", qty: 4, mode: AdjustRemove, want: 6},
		{name: "remove below zero", qty: 11, mode: AdjustRemove, wantErr: ErrInsufficientStock},
		{name: "remove below reserved", reserved: 8, qty: 3, mode: AdjustRemove, wantErr: ErrInsufficientStock},
		{name: "set", qty: 42, mode: AdjustSet, want: 42},
		{name: "set zero", qty: 0, mode: AdjustSet, want: 0},
		{name: "set below reserved", reserved: 5, qty: 4, mode: AdjustSet, wantErr: ErrBelowReservation},
		{name: "add zero", qty: 0, mode: AdjustAdd, wantErr: ErrInvalidQuantity},
		{name: "unknown mode", qty: 1, mode: "MULTIPLY", wantErr: ErrInvalidAdjustMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newRecord(t, 10, 5)
			if tt.reserved > 0 {
				require.NoError(t, s.Reserve(tt.reserved))
			}

			err := s.Adjust(tt.qty, tt.mode)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, 10, s.CurrentQuantity)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.CurrentQuantity)
			assertInvariant(t, s)
		})
	}
}

func TestActivateDeactivate(t *testing.T) {
	s := newRecord(t, 10, 5)
	assert.ErrorIs(t, s.Activate(), ErrAlreadyActive)
	require.NoError(t, s.Deactivate())
	assert.ErrorIs(t, s.Deactivate(), ErrAlreadyInactive)
	require.NoError(t, s.Activate())
	assert.Equal(t, StatusActive, s.Status)
}

func TestMovementEventTypes(t *testing.T) {
	s := newRecord(t, 10, 5)
	require.NoError(t, s.Reserve(2))
	require.NoError(t, s.Commit(1))
	require.NoError(t, s.Release(1))

	var types []string
	for _, e := range s.DomainEvents() {
		types = append(types, e.EventType())
	}
	assert.Equal(t, []string{
		"wms.fulfillment.stock-reserved",
		"wms.fulfillment.stock-committed",
		"wms.fulfillment.stock-released",
	}, types)
}

func TestClone_IsIndependent(t *testing.T) {
	s := newRecord(t, 10, 5)
	require.NoError(t, s.Restock(1))
	c := s.Clone()
	c.CurrentQuantity = 99
	*c.LastRestockedAt = c.LastRestockedAt.AddDate(1, 0, 0)

	assert.Equal(t, 11, s.CurrentQuantity)
	assert.NotEqual(t, *s.LastRestockedAt, *c.LastRestockedAt)
	assert.Empty(t, c.DomainEvents())
}
