package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrNotFound               = errors.New("not found")
	ErrValidation             = errors.New("validation failed")
	// ErrConflict is returned when the store aborted a write because another
	// request was touching the same item at the same time. Safe to retry.
	ErrConflict = errors.New("concurrent update conflict")
	// ErrCompensationFailed means reserved stock could not be given back.
	// Stock stays under-counted until an operator fixes it.
	ErrCompensationFailed = errors.New("stock compensation failed")

	ErrProductNotFound     = fmt.Errorf("product %w", ErrNotFound)
	ErrSaleNotFound        = fmt.Errorf("sale %w", ErrNotFound)
	ErrReservationNotFound = fmt.Errorf("reservation %w", ErrNotFound)
)

type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

type InvalidTransitionError struct {
	SaleID string
	From   Status
	Event  Event
}

func (e *InvalidTransitionError) Error() string {
	if e.SaleID == "" {
		return fmt.Sprintf("cannot apply %s to a sale in status %s", e.Event, e.From)
	}
	return fmt.Sprintf("cannot apply %s to sale %s in status %s", e.Event, e.SaleID, e.From)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
