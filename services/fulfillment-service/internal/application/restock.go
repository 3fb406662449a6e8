package application

import (
	"context"

	"github.com/wms-platform/fulfillment/shared/pkg/logging"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/ledger"
)

type restockLine struct {
	ProductID string
	Quantity  int
}

// restockLines puts goods back into the ledger. On failure the lines already
// restocked are removed again and the ledger error is returned.
func restockLines(ctx context.Context, stock StockLedger, lines []restockLine, logger *logging.Logger) error {
	for i, line := range lines {
		if _, err := stock.Restock(ctx, line.ProductID, line.Quantity); err != nil {
			undoRestock(ctx, stock, lines[:i], logger)
			return err
		}
	}
	return nil
}

// undoRestock is best effort; failures are logged
func undoRestock(ctx context.Context, stock StockLedger, lines []restockLine, logger *logging.Logger) {
	for _, line := range lines {
		if _, err := stock.Adjust(ctx, line.ProductID, line.Quantity, ledger.AdjustRemove); err != nil {
			logger.WithError(err).Error("Compensation failed",
				"compensation", "remove_restock", "productId", line.ProductID, "quantity", line.Quantity)
		}
	}
}

func sumUnits(lines []restockLine) int {
	n := 0
	for _, line := range lines {
		n += line.Quantity
	}
	return n
}
