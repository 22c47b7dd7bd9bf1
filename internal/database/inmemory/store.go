// Package inmemory backs every repository with process memory. It is used
// when no DATABASE_URL is configured and by tests.
package inmemory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/wichananm65/shop-checkout/internal/cart"
	"github.com/wichananm65/shop-checkout/internal/checkout"
	"github.com/wichananm65/shop-checkout/internal/order"
	"github.com/wichananm65/shop-checkout/internal/outbox"
	"github.com/wichananm65/shop-checkout/internal/payment"
	"github.com/wichananm65/shop-checkout/internal/product"
)

type paymentEvent struct {
	seq     int64
	ref     string
	outcome order.Status
}

type Store struct {
	mu sync.RWMutex

	products map[int64]product.Product
	carts    map[int64]map[int64]cart.Line

	orders      map[int64]order.Order
	ordersByRef map[string]int64
	nextOrderID int64

	paymentEvents map[string]paymentEvent
	paymentSeq    int64

	events    []outbox.Event
	nextEvent int64

	now func() time.Time
}

var (
	_ product.Repository = ProductRepository{}
	_ product.Seeder     = ProductRepository{}
	_ cart.Repository    = CartRepository{}
	_ order.Repository   = OrderRepository{}
	_ checkout.Store     = (*Store)(nil)
	_ payment.Store      = (*Store)(nil)
	_ outbox.Store       = (*Store)(nil)
)

func New() *Store {
	return &Store{
		products:      make(map[int64]product.Product),
		carts:         make(map[int64]map[int64]cart.Line),
		orders:        make(map[int64]order.Order),
		ordersByRef:   make(map[string]int64),
		nextOrderID:   1,
		paymentEvents: make(map[string]paymentEvent),
		nextEvent:     1,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// ProductRepository, CartRepository and OrderRepository are views over one
// Store so checkout sees every write they make.
type ProductRepository struct{ s *Store }

type CartRepository struct{ s *Store }

type OrderRepository struct{ s *Store }

func (s *Store) Products() ProductRepository { return ProductRepository{s} }

func (s *Store) Carts() CartRepository { return CartRepository{s} }

func (s *Store) Orders() OrderRepository { return OrderRepository{s} }

// Seed replaces the given products, bumping their version.
func (r ProductRepository) Seed(ctx context.Context, products []product.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	for _, p := range products {
		if prev, ok := r.s.products[p.ID]; ok {
			p.Version = prev.Version + 1
			p.CreatedAt = prev.CreatedAt
		} else {
			p.Version = 1
			p.CreatedAt = now
		}
		p.UpdatedAt = now
		r.s.products[p.ID] = p
	}
	return nil
}

// Stock reports the raw stock counter, retired products included.
func (s *Store) Stock(productID int64) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[productID]
	return p.StockQuantity, ok
}

func (r ProductRepository) GetByID(ctx context.Context, id int64) (product.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.products[id]
	if !ok || !p.Active {
		return product.Product{}, product.ErrNotFound
	}
	return p, nil
}

func (r ProductRepository) ListByIDs(ctx context.Context, ids []int64) ([]product.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.activeProducts(ids), nil
}

// activeProducts must be called with s.mu held.
func (s *Store) activeProducts(ids []int64) []product.Product {
	out := make([]product.Product, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := s.products[id]; ok && p.Active {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// cart store

func (r CartRepository) Lines(ctx context.Context, userID int64) ([]cart.Line, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.cartLines(userID), nil
}

func (s *Store) cartLines(userID int64) []cart.Line {
	lines := make([]cart.Line, 0, len(s.carts[userID]))
	for _, l := range s.carts[userID] {
		lines = append(lines, l)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines
}

func (r CartRepository) Increment(ctx context.Context, userID, productID int64, qty int) (cart.Line, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if qty <= 0 || r.s.carts[userID][productID].Quantity > cart.MaxQuantity-qty {
		return cart.Line{}, cart.ErrInvalidQuantity
	}

	now := r.s.now()
	lines, ok := r.s.carts[userID]
	if !ok {
		lines = make(map[int64]cart.Line)
		r.s.carts[userID] = lines
	}
	l, ok := lines[productID]
	if !ok {
		l = cart.Line{UserID: userID, ProductID: productID, CreatedAt: now}
	}
	l.Quantity += qty
	l.UpdatedAt = now
	lines[productID] = l
	return l, nil
}

func (r CartRepository) SetQuantity(ctx context.Context, userID, productID int64, qty int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if qty > cart.MaxQuantity {
		return cart.ErrInvalidQuantity
	}
	l, ok := r.s.carts[userID][productID]
	if !ok {
		return nil
	}
	l.Quantity = qty
	l.UpdatedAt = r.s.now()
	r.s.carts[userID][productID] = l
	return nil
}

func (r CartRepository) Remove(ctx context.Context, userID, productID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.carts[userID], productID)
	return nil
}

func (r CartRepository) Clear(ctx context.Context, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.carts, userID)
	return nil
}

// order ledger

func (r OrderRepository) ListByUser(ctx context.Context, userID int64) ([]order.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.sortedOrders(func(o order.Order) bool { return o.UserID == userID }), nil
}

func (r OrderRepository) ListAll(ctx context.Context) ([]order.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.sortedOrders(func(order.Order) bool { return true }), nil
}

func (r OrderRepository) GetByID(ctx context.Context, id int64) (order.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	o, ok := r.s.orders[id]
	if !ok {
		return order.Order{}, order.ErrNotFound
	}
	return copyOrder(o), nil
}

func (s *Store) sortedOrders(keep func(order.Order) bool) []order.Order {
	out := []order.Order{}
	for _, o := range s.orders {
		if keep(o) {
			out = append(out, copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func copyOrder(o order.Order) order.Order {
	o.Lines = append([]order.Line(nil), o.Lines...)
	if o.Lines == nil {
		o.Lines = []order.Line{}
	}
	return o
}

// outbox

func (s *Store) Pending(ctx context.Context, limit int) ([]outbox.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.events)
	if limit > 0 && limit < n {
		n = limit
	}
	return append([]outbox.Event(nil), s.events[:n]...), nil
}

// MarkSent drops the event; only unsent events are retained.
func (s *Store) MarkSent(ctx context.Context, seq int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = slices.DeleteFunc(s.events, func(e outbox.Event) bool { return e.Seq == seq })
	return nil
}

// appendEvent must be called with s.mu held.
func (s *Store) appendEvent(e outbox.Event) {
	e.Seq = s.nextEvent
	s.nextEvent++
	s.events = append(s.events, e)
}
