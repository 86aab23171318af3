package shop

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound: no row for the given key.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateOrder: the orders table rejected an insert because the
	// trade number already exists. Callers treat this as "already
	// processed", not as a failure.
	ErrDuplicateOrder = errors.New("order already exists")
)

// InsufficientStockError: the allocator could not claim the requested
// number of cards. Nothing was claimed.
type InsufficientStockError struct {
	ProdName  string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: requested %d, available %d", e.ProdName, e.Requested, e.Available)
}

func IsInsufficientStock(err error) bool {
	var ise *InsufficientStockError
	return errors.As(err, &ise)
}
