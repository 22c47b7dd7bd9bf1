package inmemory

import (
	"context"

	"github.com/wichananm65/shop-checkout/internal/cart"
	"github.com/wichananm65/shop-checkout/internal/checkout"
	"github.com/wichananm65/shop-checkout/internal/order"
	"github.com/wichananm65/shop-checkout/internal/outbox"
	"github.com/wichananm65/shop-checkout/internal/product"
)

// WithinTx holds the store's write lock for the whole attempt and stages
// every write, applying them only if fn succeeds and ctx is still live.
func (s *Store) WithinTx(ctx context.Context, fn func(checkout.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{
		s:           s,
		products:    make(map[int64]product.Product),
		consumed:    make(map[int64][]int64),
		nextOrderID: s.nextOrderID,
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.commit()
	return nil
}

type memTx struct {
	s *Store

	products    map[int64]product.Product
	orders      []order.Order
	consumed    map[int64][]int64
	events      []outbox.Event
	nextOrderID int64
}

func (t *memTx) LockPaymentReference(ctx context.Context, ref string) error {
	return nil
}

func (t *memTx) OrderByPaymentReference(ctx context.Context, ref string) (order.Order, error) {
	for _, o := range t.orders {
		if o.PaymentReference == ref {
			return copyOrder(o), nil
		}
	}
	if id, ok := t.s.ordersByRef[ref]; ok {
		return copyOrder(t.s.orders[id]), nil
	}
	return order.Order{}, order.ErrNotFound
}

func (t *memTx) PaymentOutcome(ctx context.Context, ref string) (order.Status, bool, error) {
	var (
		first order.Status
		seq   int64
	)
	for _, e := range t.s.paymentEvents {
		if e.ref != ref {
			continue
		}
		if first == "" || outcomeRank(e.outcome) < outcomeRank(first) ||
			outcomeRank(e.outcome) == outcomeRank(first) && e.seq < seq {
			first, seq = e.outcome, e.seq
		}
	}
	return first, first != "", nil
}

// outcomeRank orders Paid ahead of anything else.
func outcomeRank(st order.Status) int {
	if st == order.StatusPaid {
		return 0
	}
	return 1
}

func (t *memTx) CartLines(ctx context.Context, userID int64) ([]cart.Line, error) {
	return t.s.cartLines(userID), nil
}

func (t *memTx) Products(ctx context.Context, ids []int64) ([]product.Product, error) {
	out := t.s.activeProducts(ids)
	for i, p := range out {
		if staged, ok := t.products[p.ID]; ok {
			out[i] = staged
		}
	}
	return out, nil
}

func (t *memTx) DecrementStock(ctx context.Context, productID, version int64, qty int) (bool, error) {
	p, ok := t.products[productID]
	if !ok {
		p, ok = t.s.products[productID]
	}
	if !ok || !p.Active || p.Version != version || p.StockQuantity < qty {
		return false, nil
	}
	p.StockQuantity -= qty
	p.Version++
	p.UpdatedAt = t.s.now()
	t.products[productID] = p
	return true, nil
}

func (t *memTx) InsertOrder(ctx context.Context, o order.Order) (order.Order, error) {
	if o.PaymentReference != "" {
		if _, err := t.OrderByPaymentReference(ctx, o.PaymentReference); err == nil {
			return order.Order{}, checkout.ErrDuplicatePaymentReference
		}
	}

	now := t.s.now()
	o.ID = t.nextOrderID
	t.nextOrderID++
	o.CreatedAt = now
	o.UpdatedAt = now
	o.Lines = append([]order.Line(nil), o.Lines...)
	for i := range o.Lines {
		o.Lines[i].OrderID = o.ID
	}
	t.orders = append(t.orders, o)
	return copyOrder(o), nil
}

func (t *memTx) ConsumeCart(ctx context.Context, userID int64, productIDs []int64) error {
	t.consumed[userID] = append(t.consumed[userID], productIDs...)
	return nil
}

func (t *memTx) EnqueueEvent(ctx context.Context, e outbox.Event) error {
	t.events = append(t.events, e)
	return nil
}

func (t *memTx) commit() {
	s := t.s
	for id, p := range t.products {
		s.products[id] = p
	}
	for _, o := range t.orders {
		s.orders[o.ID] = o
		if o.PaymentReference != "" {
			s.ordersByRef[o.PaymentReference] = o.ID
		}
	}
	s.nextOrderID = t.nextOrderID
	for userID, ids := range t.consumed {
		for _, id := range ids {
			delete(s.carts[userID], id)
		}
	}
	for _, e := range t.events {
		s.appendEvent(e)
	}
}
