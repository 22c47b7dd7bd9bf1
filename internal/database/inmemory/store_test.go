package inmemory

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wichananm65/shop-checkout/internal/cart"
	"github.com/wichananm65/shop-checkout/internal/checkout"
	"github.com/wichananm65/shop-checkout/internal/order"
	"github.com/wichananm65/shop-checkout/internal/outbox"
	"github.com/wichananm65/shop-checkout/internal/product"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	s := New()
	require.NoError(t, s.Products().Seed(context.Background(), product.SampleProducts()))
	return s
}

func TestProducts_HidesRetired(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	retired := product.SampleProducts()[2]
	retired.Active = false
	require.NoError(t, s.Products().Seed(ctx, []product.Product{retired}))

	_, err := s.Products().GetByID(ctx, 3)
	assert.ErrorIs(t, err, product.ErrNotFound)

	list, err := s.Products().ListByIDs(ctx, []int64{4, 3, 1, 1})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(1), list[0].ID)
	assert.Equal(t, int64(4), list[1].ID)

	stock, ok := s.Stock(3)
	assert.True(t, ok)
	assert.Equal(t, 10, stock)
}

func TestCarts(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	carts := s.Carts()

	_, err := carts.Increment(ctx, 1, 2, 1)
	require.NoError(t, err)
	l, err := carts.Increment(ctx, 1, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, l.Quantity)

	require.NoError(t, carts.SetQuantity(ctx, 1, 9, 5))
	lines, _ := carts.Lines(ctx, 1)
	require.Len(t, lines, 1, "setting an absent line is a no-op")

	require.NoError(t, carts.SetQuantity(ctx, 1, 2, 7))
	lines, _ = carts.Lines(ctx, 1)
	assert.Equal(t, 7, lines[0].Quantity)

	require.NoError(t, carts.Remove(ctx, 1, 2))
	lines, _ = carts.Lines(ctx, 1)
	assert.Empty(t, lines)

	_, _ = carts.Increment(ctx, 1, 1, 1)
	require.NoError(t, carts.Clear(ctx, 1))
	lines, _ = carts.Lines(ctx, 1)
	assert.Empty(t, lines)
}

func TestCarts_IncrementRejectsOverflow(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	carts := s.Carts()

	_, err := carts.Increment(ctx, 1, 2, cart.MaxQuantity)
	require.NoError(t, err)
	_, err = carts.Increment(ctx, 1, 2, math.MaxInt)
	assert.ErrorIs(t, err, cart.ErrInvalidQuantity)
	_, err = carts.Increment(ctx, 1, 2, 1)
	assert.ErrorIs(t, err, cart.ErrInvalidQuantity)
	assert.ErrorIs(t, carts.SetQuantity(ctx, 1, 2, cart.MaxQuantity+1), cart.ErrInvalidQuantity)

	lines, _ := carts.Lines(ctx, 1)
	require.Len(t, lines, 1)
	assert.Equal(t, cart.MaxQuantity, lines[0].Quantity)
}

func TestWithinTx_DiscardsOnError(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(tx checkout.Tx) error {
		ok, err := tx.DecrementStock(ctx, 1, 1, 5)
		require.NoError(t, err)
		require.True(t, ok)
		_, err = tx.InsertOrder(ctx, order.Order{UserID: 1, Status: order.StatusPending, TotalAmount: decimal.NewFromInt(1)})
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	stock, _ := s.Stock(1)
	assert.Equal(t, 25, stock)
	all, _ := s.Orders().ListAll(ctx)
	assert.Empty(t, all)
}

func TestWithinTx_VersionGuard(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	err := s.WithinTx(ctx, func(tx checkout.Tx) error {
		ok, err := tx.DecrementStock(ctx, 1, 1, 1)
		require.NoError(t, err)
		assert.True(t, ok)

		// the staged write bumped the version
		ok, _ = tx.DecrementStock(ctx, 1, 1, 1)
		assert.False(t, ok)

		ok, _ = tx.DecrementStock(ctx, 4, 1, 2)
		assert.False(t, ok, "more than in stock")
		return nil
	})
	require.NoError(t, err)

	stock, _ := s.Stock(1)
	assert.Equal(t, 24, stock)
}

func TestWithinTx_CancelledContextCommitsNothing(t *testing.T) {
	s := seeded(t)
	ctx, cancel := context.WithCancel(context.Background())

	err := s.WithinTx(ctx, func(tx checkout.Tx) error {
		_, _ = tx.DecrementStock(ctx, 1, 1, 1)
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	stock, _ := s.Stock(1)
	assert.Equal(t, 25, stock)
}

func TestOrders_NewestFirst(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	for _, user := range []int64{1, 2, 1} {
		require.NoError(t, s.WithinTx(ctx, func(tx checkout.Tx) error {
			_, err := tx.InsertOrder(ctx, order.Order{UserID: user, Status: order.StatusPending})
			return err
		}))
	}

	mine, err := s.Orders().ListByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, int64(3), mine[0].ID)
	assert.Equal(t, int64(1), mine[1].ID)

	all, _ := s.Orders().ListAll(ctx)
	require.Len(t, all, 3)
	assert.Equal(t, int64(3), all[0].ID)

	_, err = s.Orders().GetByID(ctx, 99)
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestInsertOrder_DuplicateReference(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	insert := func() error {
		return s.WithinTx(ctx, func(tx checkout.Tx) error {
			_, err := tx.InsertOrder(ctx, order.Order{UserID: 1, Status: order.StatusPending, PaymentReference: "pi_1"})
			return err
		})
	}
	require.NoError(t, insert())
	assert.ErrorIs(t, insert(), checkout.ErrDuplicatePaymentReference)
}

func TestOutbox_PendingAndMarkSent(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	_, err := s.ApplyOutcome(ctx, "evt_1", "pi_none", order.StatusPaid)
	require.NoError(t, err)
	pending, _ := s.Pending(ctx, 10)
	assert.Empty(t, pending, "recording an outcome publishes nothing")

	require.NoError(t, s.WithinTx(ctx, func(tx checkout.Tx) error {
		_, err := tx.InsertOrder(ctx, order.Order{UserID: 1, Status: order.StatusPending, PaymentReference: "pi_2"})
		return err
	}))
	_, err = s.ApplyOutcome(ctx, "evt_2", "pi_2", order.StatusPaid)
	require.NoError(t, err)

	pending, _ = s.Pending(ctx, 10)
	require.Len(t, pending, 1)
	assert.Equal(t, order.EventStatusChanged, pending[0].Type)

	require.NoError(t, s.MarkSent(ctx, pending[0].Seq))
	pending, _ = s.Pending(ctx, 10)
	assert.Empty(t, pending)
}

func TestOutbox_MarkSentReleasesEvents(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		require.NoError(t, s.WithinTx(ctx, func(tx checkout.Tx) error {
			e, err := outbox.NewEvent(order.EventCreated, "1", map[string]int{"n": i})
			if err != nil {
				return err
			}
			return tx.EnqueueEvent(ctx, e)
		}))
		pending, err := s.Pending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		require.NoError(t, s.MarkSent(ctx, pending[0].Seq))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	assert.Empty(t, s.events, "sent events are not retained")
}
