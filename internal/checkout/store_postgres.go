package checkout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/wichananm65/shop-checkout/internal/cart"
	"github.com/wichananm65/shop-checkout/internal/database"
	"github.com/wichananm65/shop-checkout/internal/order"
	"github.com/wichananm65/shop-checkout/internal/outbox"
	"github.com/wichananm65/shop-checkout/internal/product"
)

const (
	productsForCheckoutQuery = product.SelectColumns + ` WHERE id = ANY($1::bigint[]) AND ` + product.ActiveFilter + ` ORDER BY id`

	decrementStockQuery = `
		UPDATE products
		SET stock_quantity = stock_quantity - $3, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2 AND stock_quantity >= $3
	`

	firstPaymentOutcomeQuery = `
		SELECT outcome FROM payment_events
		WHERE payment_reference = $1
		ORDER BY outcome = 'Paid' DESC, received_at, event_id
		LIMIT 1
	`
)

type PostgresStore struct {
	db          *sql.DB
	lockTimeout time.Duration
}

// NewPostgresStore runs each attempt at READ COMMITTED with lock_timeout
// bounding how long a decrement may wait on a competing row lock.
func NewPostgresStore(db *sql.DB, lockTimeout time.Duration) *PostgresStore {
	return &PostgresStore{db: db, lockTimeout: lockTimeout}
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(Tx) error) error {
	return database.WithinTx(ctx, s.db, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, func(tx *sql.Tx) error {
		if s.lockTimeout > 0 {
			// SET cannot take bind parameters
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
				return fmt.Errorf("set lock_timeout: %w", err)
			}
		}
		return fn(&postgresTx{
			tx:     tx,
			carts:  cart.NewPostgresRepository(tx),
			orders: order.NewPostgresRepository(tx),
		})
	})
}

type postgresTx struct {
	tx     *sql.Tx
	carts  *cart.PostgresRepository
	orders *order.PostgresRepository
}

func (t *postgresTx) LockPaymentReference(ctx context.Context, ref string) error {
	return database.AdvisoryLock(ctx, t.tx, "payment:"+ref)
}

func (t *postgresTx) OrderByPaymentReference(ctx context.Context, ref string) (order.Order, error) {
	return t.orders.GetByPaymentReference(ctx, ref)
}

func (t *postgresTx) PaymentOutcome(ctx context.Context, ref string) (order.Status, bool, error) {
	var outcome string
	err := t.tx.QueryRowContext(ctx, firstPaymentOutcomeQuery, ref).Scan(&outcome)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("payment outcome: %w", err)
	}
	return order.Status(outcome), true, nil
}

func (t *postgresTx) CartLines(ctx context.Context, userID int64) ([]cart.Line, error) {
	return t.carts.LockLines(ctx, userID)
}

func (t *postgresTx) Products(ctx context.Context, ids []int64) ([]product.Product, error) {
	rows, err := t.tx.QueryContext(ctx, productsForCheckoutQuery, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("read products: %w", err)
	}
	defer rows.Close()

	out := make([]product.Product, 0, len(ids))
	for rows.Next() {
		p, err := product.ScanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *postgresTx) DecrementStock(ctx context.Context, productID, version int64, qty int) (bool, error) {
	res, err := t.tx.ExecContext(ctx, decrementStockQuery, productID, version, qty)
	if err != nil {
		return false, fmt.Errorf("decrement stock %d: %w", productID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (t *postgresTx) InsertOrder(ctx context.Context, o order.Order) (order.Order, error) {
	created, err := t.orders.Insert(ctx, o)
	if database.IsUniqueViolation(err, order.PaymentReferenceConstraint) {
		return order.Order{}, ErrDuplicatePaymentReference
	}
	return created, err
}

func (t *postgresTx) ConsumeCart(ctx context.Context, userID int64, productIDs []int64) error {
	return t.carts.Consume(ctx, userID, productIDs)
}

func (t *postgresTx) EnqueueEvent(ctx context.Context, e outbox.Event) error {
	return outbox.Insert(ctx, t.tx, e)
}
