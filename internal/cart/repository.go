package cart

import (
	"context"
	"errors"
	"math"
)

// MaxQuantity is the largest line quantity cart_items.quantity can hold.
const MaxQuantity = math.MaxInt32

var (
	ErrInvalidQuantity = errors.New("quantity must be between 1 and 2147483647")
	ErrInvalidProduct  = errors.New("invalid productId")
)

// Repository owns the cart_items rows. Every mutation is a single
// conditional statement on the (user_id, product_id) key so concurrent
// calls for the same pair never lose an update.
type Repository interface {
	Lines(ctx context.Context, userID int64) ([]Line, error)
	// Increment creates the line with qty or adds qty to the existing one.
	// A sum above MaxQuantity fails with ErrInvalidQuantity.
	Increment(ctx context.Context, userID, productID int64, qty int) (Line, error)
	// SetQuantity overwrites an existing line. Absent lines are left absent.
	SetQuantity(ctx context.Context, userID, productID int64, qty int) error
	Remove(ctx context.Context, userID, productID int64) error
	Clear(ctx context.Context, userID int64) error
}
