package services

import (
	"errors"
	"fmt"

	"bakery-orders/internal/repository"
)

// Error kinds. Every error returned by the services wraps exactly one of them.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrConflict           = errors.New("conflict")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func newError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

var (
	ErrOrderNotFound     = newError(ErrNotFound, "order not found")
	ErrOrderItemNotFound = newError(ErrNotFound, "order item not found")
	ErrProductNotFound   = newError(ErrNotFound, "product not found")
	ErrPromotionNotFound = newError(ErrNotFound, "promotion not found")

	ErrInvalidStatus        = newError(ErrInvalidInput, "invalid order status")
	ErrInvalidPaymentStatus = newError(ErrInvalidInput, "invalid payment status")
	ErrInvalidTransition    = newError(ErrInvalidInput, "status transition not allowed")
	ErrInvalidQuantity      = newError(ErrInvalidInput, "quantity must be positive")
	ErrInvalidOrder         = newError(ErrInvalidInput, "invalid order")
	ErrInvalidPromotion     = newError(ErrInvalidInput, "invalid promotion")

	ErrProductUnavailable           = newError(ErrPreconditionFailed, "product unavailable")
	ErrPromotionInactive            = newError(ErrPreconditionFailed, "promotion is not active")
	ErrPromotionExpiredOrNotStarted = newError(ErrPreconditionFailed, "promotion expired or not started")
	ErrPromotionNotApplicable       = newError(ErrPreconditionFailed, "promotion cannot be applied to this order")
	ErrPromotionAlreadyApplied      = newError(ErrPreconditionFailed, "order already has a promotion")
	ErrOrderHasDependents           = newError(ErrPreconditionFailed, "order has items or a review")

	ErrConcurrentModification = newError(ErrConflict, "order was modified concurrently")
)

// detail attaches context to a specific error while keeping errors.Is working
// for both the specific error and its kind.
func detail(err error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...))
}

func mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrConflict) {
		return ErrConcurrentModification
	}
	return err
}
