package product

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("product not found")
)

// Repository is the read-only view of the catalog. Retired (inactive)
// products are filtered out by every implementation.
type Repository interface {
	GetByID(ctx context.Context, id int64) (Product, error)
	// ListByIDs returns the active products among ids, in id order. Unknown or
	// retired ids are simply absent from the result.
	ListByIDs(ctx context.Context, ids []int64) ([]Product, error)
}

// Seeder replaces catalog rows for local development.
type Seeder interface {
	Seed(ctx context.Context, products []Product) error
}
