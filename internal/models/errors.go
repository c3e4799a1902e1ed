package models

import (
	"errors"
	"fmt"
)

// Common errors returned by the ledger and order store
var (
	ErrProductNotFound = errors.New("product not found")
	ErrOrderNotFound   = errors.New("order not found")
)

// InsufficientStockError reports the first shortfall found while
// checking a reservation. When it is returned no stock was mutated.
type InsufficientStockError struct {
	ProductID string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available=%d, requested=%d",
		e.ProductID, e.Available, e.Requested)
}

// InvalidRequestError rejects a malformed checkout or admin request
// before any state is touched.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return "invalid request: " + e.Reason
}

// PersistenceError wraps an infrastructure fault during a durable
// write. It is retryable from the caller's point of view; any stock
// already reserved has been compensated (or queued for compensation)
// by the time it is returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
