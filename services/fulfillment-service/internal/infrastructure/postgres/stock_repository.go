package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wms-platform/fulfillment/shared/pkg/money"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/common"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/ledger"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/infrastructure/messaging"
)

// StockRepository implements ledger.Repository on the stock_records table
type StockRepository struct {
	db     *sql.DB
	mapper *messaging.OutboxMapper
}

// NewStockRepository creates a new StockRepository
func NewStockRepository(db *sql.DB, mapper *messaging.OutboxMapper) *StockRepository {
	if mapper == nil {
		mapper = messaging.NewOutboxMapper(nil)
	}
	return &StockRepository{db: db, mapper: mapper}
}

const stockColumns = `product_id, product_name, sku, current_quantity, reserved_quantity, available_quantity,
	minimum_level, maximum_level, reorder_point, unit_cost_cents, currency, active, status, version,
	last_restocked_at, last_sold_at, created_at, updated_at`

// Create inserts a new record together with its registration event
func (r *StockRepository) Create(ctx context.Context, s *ledger.StockRecord) error {
	err := r.inTx(ctx, s, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO stock_records (`+stockColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		`, s.ProductID, s.ProductName, s.SKU, s.CurrentQuantity, s.ReservedQuantity, s.AvailableQuantity,
			s.MinimumLevel, s.MaximumLevel, s.ReorderPoint, s.UnitCost.Amount(), s.UnitCost.Currency(),
			s.Active, string(s.Status), s.Version,
			nullTime(s.LastRestockedAt), nullTime(s.LastSoldAt), s.CreatedAt, s.UpdatedAt)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: stock %s", common.ErrDuplicate, s.ProductID)
		}
		return err
	})
	return err
}

// Update writes the record if the stored version still matches
func (r *StockRepository) Update(ctx context.Context, s *ledger.StockRecord) error {
	expected := s.Version
	err := r.inTx(ctx, s, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE stock_records SET
				product_name = $3, sku = $4, current_quantity = $5, reserved_quantity = $6,
				available_quantity = $7, minimum_level = $8, maximum_level = $9, reorder_point = $10,
				unit_cost_cents = $11, currency = $12, active = $13, status = $14, version = version + 1,
				last_restocked_at = $15, last_sold_at = $16, updated_at = $17
			WHERE product_id = $1 AND version = $2
		`, s.ProductID, expected, s.ProductName, s.SKU, s.CurrentQuantity, s.ReservedQuantity,
			s.AvailableQuantity, s.MinimumLevel, s.MaximumLevel, s.ReorderPoint,
			s.UnitCost.Amount(), s.UnitCost.Currency(), s.Active, string(s.Status),
			nullTime(s.LastRestockedAt), nullTime(s.LastSoldAt), s.UpdatedAt)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: stock %s", common.ErrVersionConflict, s.ProductID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.Version = expected + 1
	return nil
}

// inTx runs write and the outbox insert for the pending events of s in one
// transaction, clearing the events on commit
func (r *StockRepository) inTx(ctx context.Context, s *ledger.StockRecord, write func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := write(tx); err != nil {
		return err
	}

	rows, err := r.mapper.Map(ctx, messaging.AggregateStock, s.ProductID, s.DomainEvents())
	if err != nil {
		return err
	}
	if err := saveOutbox(ctx, tx, rows); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.ClearDomainEvents()
	return nil
}

// FindByID returns nil when the product is unknown
func (r *StockRepository) FindByID(ctx context.Context, productID string) (*ledger.StockRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+stockColumns+` FROM stock_records WHERE product_id = $1`, productID)
	s, err := scanStock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// List returns one page newest first
func (r *StockRepository) List(ctx context.Context, filter ledger.Filter) ([]*ledger.StockRecord, int64, error) {
	const where = `WHERE ($1 = false OR active) AND ($2 = '' OR status = $2)`
	args := []any{filter.ActiveOnly, string(filter.Status)}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM stock_records `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	var limit sql.NullInt64
	if filter.Page.Size > 0 {
		limit = sql.NullInt64{Int64: filter.Page.Size, Valid: true}
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+stockColumns+`
		FROM stock_records `+where+`
		ORDER BY created_at DESC, product_id DESC
		LIMIT $3 OFFSET $4
	`, append(args, limit, filter.Page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	records := make([]*ledger.StockRecord, 0)
	for rows.Next() {
		s, err := scanStock(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, s)
	}
	return records, total, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStock(row scanner) (*ledger.StockRecord, error) {
	var s ledger.StockRecord
	var status, currency string
	var cents int64
	var restocked, sold sql.NullTime
	err := row.Scan(&s.ProductID, &s.ProductName, &s.SKU, &s.CurrentQuantity, &s.ReservedQuantity,
		&s.AvailableQuantity, &s.MinimumLevel, &s.MaximumLevel, &s.ReorderPoint, &cents, &currency,
		&s.Active, &status, &s.Version, &restocked, &sold, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}

	cost, err := money.New(cents, currency)
	if err != nil {
		return nil, fmt.Errorf("stock %s has an invalid unit cost: %w", s.ProductID, err)
	}
	s.UnitCost = cost
	s.Status = ledger.StockStatus(status)
	s.LastRestockedAt = timePtr(restocked)
	s.LastSoldAt = timePtr(sold)
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return &s, nil
}

var _ ledger.Repository = (*StockRepository)(nil)
