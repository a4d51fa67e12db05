package services

import "errors"

var (
	ErrInvalidTransition        = errors.New("status transition not allowed for this channel")
	ErrOrderNotFound            = errors.New("order not found")
	ErrMenuItemNotFound         = errors.New("menu item not found")
	ErrMenuItemUnavailable      = errors.New("menu item not available")
	ErrInvalidQuantity          = errors.New("quantity must be at least 1")
	ErrEmptyOrder               = errors.New("order has no items")
	ErrInvalidChannel           = errors.New("unknown order channel")
	ErrInvalidPaymentStatus     = errors.New("unknown payment status")
	ErrPaymentNotFinalized      = errors.New("order total not finalized")
	ErrAllocationRace           = errors.New("placeholder number collision")
	ErrOrderCreationFailed      = errors.New("order creation failed")
	ErrNumberingReconcile       = errors.New("order number reconciliation failed")
	ErrAggregationInconsistency = errors.New("incremental figures diverged from recompute")
)
