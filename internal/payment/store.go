package payment

import (
	"context"

	"github.com/wichananm65/shop-checkout/internal/order"
)

// Store applies a confirmed outcome exactly once per event id.
type Store interface {
	ApplyOutcome(ctx context.Context, eventID, ref string, outcome order.Status) (Applied, error)
}
