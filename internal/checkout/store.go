package checkout

import (
	"context"

	"github.com/wichananm65/shop-checkout/internal/cart"
	"github.com/wichananm65/shop-checkout/internal/order"
	"github.com/wichananm65/shop-checkout/internal/outbox"
	"github.com/wichananm65/shop-checkout/internal/product"
)

// Store opens the unit of work a checkout attempt runs in. If fn returns an
// error nothing it did is kept.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

type Tx interface {
	// LockPaymentReference serializes work on one payment reference with
	// concurrent webhook deliveries.
	LockPaymentReference(ctx context.Context, ref string) error
	// OrderByPaymentReference returns order.ErrNotFound when ref is unused.
	OrderByPaymentReference(ctx context.Context, ref string) (order.Order, error)
	// PaymentOutcome returns Paid if any recorded event for ref says so,
	// otherwise the earliest recorded outcome.
	PaymentOutcome(ctx context.Context, ref string) (order.Status, bool, error)

	// CartLines reads the user's lines in product id order and holds them
	// until the transaction ends.
	CartLines(ctx context.Context, userID int64) ([]cart.Line, error)
	// Products re-reads the active products among ids. Retired or unknown
	// ids are absent.
	Products(ctx context.Context, ids []int64) ([]product.Product, error)
	// DecrementStock subtracts qty only if the product still has version and
	// at least qty units. It reports whether the row was updated.
	DecrementStock(ctx context.Context, productID, version int64, qty int) (bool, error)

	// InsertOrder returns ErrDuplicatePaymentReference if another order
	// claimed the reference first.
	InsertOrder(ctx context.Context, o order.Order) (order.Order, error)
	// ConsumeCart deletes exactly the given products from the user's cart.
	ConsumeCart(ctx context.Context, userID int64, productIDs []int64) error
	EnqueueEvent(ctx context.Context, e outbox.Event) error
}
