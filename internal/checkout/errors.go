package checkout

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart             = errors.New("cart is empty")
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrConcurrentConflict    = errors.New("checkout conflicted with concurrent updates, try again")
	ErrPaymentReferenceInUse = errors.New("payment reference is attached to another order")

	// ErrStockChanged and ErrDuplicatePaymentReference are returned by a Tx
	// when a concurrent transaction won a race. Both end the attempt and
	// trigger a fresh one.
	ErrStockChanged              = errors.New("stock changed since it was read")
	ErrDuplicatePaymentReference = errors.New("payment reference inserted concurrently")
)

// InsufficientStockError names the product that blocked the order.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
