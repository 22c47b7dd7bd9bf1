package order

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("order not found")
)

// Repository is the read side of the ledger. Orders are only written by
// checkout and only re-statused by payment confirmation.
type Repository interface {
	// ListByUser returns the user's orders newest first, lines included.
	ListByUser(ctx context.Context, userID int64) ([]Order, error)
	ListAll(ctx context.Context) ([]Order, error)
	GetByID(ctx context.Context, id int64) (Order, error)
}
