package application

import (
	"context"
	stderrors "errors"

	"github.com/wms-platform/fulfillment/shared/pkg/errors"
	"github.com/wms-platform/fulfillment/shared/pkg/keylock"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/alert"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/common"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/exception"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/ledger"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/order"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/pipeline"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/returns"
)

func isAny(err error, targets ...error) bool {
	for _, t := range targets {
		if stderrors.Is(err, t) {
			return true
		}
	}
	return false
}

// mapError translates domain and repository failures into AppErrors that keep
// the original error reachable through errors.Is.
func mapError(err error, entity, id string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr
	}

	var appErr *errors.AppError
	switch {
	case isAny(err, ledger.ErrInsufficientStock):
		appErr = errors.ErrInsufficientStock(err.Error())
	case isAny(err, order.ErrNotCancellable):
		appErr = errors.ErrNotCancellable(err.Error())
	case isAny(err, order.ErrInvalidTransition, exception.ErrInvalidTransition, returns.ErrInvalidTransition):
		appErr = errors.ErrInvalidTransition(err.Error())
	case isAny(err, alert.ErrAlreadyResolved, exception.ErrAlreadyResolved):
		appErr = errors.ErrAlreadyResolved(err.Error())
	case isAny(err, ledger.ErrInvalidState, order.ErrInvalidState, pipeline.ErrInvalidState):
		appErr = errors.ErrInvalidState(err.Error())
	case isAny(err,
		ledger.ErrInvalidQuantity, ledger.ErrInvalidLevels, ledger.ErrInvalidAdjustMode, ledger.ErrMissingProductID,
		alert.ErrResolverRequired, order.ErrValidation, pipeline.ErrValidation,
		exception.ErrValidation, returns.ErrValidation):
		appErr = errors.ErrValidation(err.Error())
	case isAny(err, common.ErrDuplicate):
		appErr = errors.ErrConflict(entity + " already exists")
	case isAny(err, common.ErrVersionConflict, keylock.ErrLockTimeout):
		appErr = errors.ErrTransientFailure(entity + " is busy, retry later")
	case isAny(err, context.DeadlineExceeded, context.Canceled):
		appErr = errors.ErrTimeout(entity + " operation")
	default:
		appErr = errors.ErrInternal("")
	}
	return appErr.WithEntity(entity, id).Wrap(err)
}

func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr.Code
	}
	return errors.CodeInternalError
}
