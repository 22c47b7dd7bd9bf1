package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/wichananm65/shop-checkout/internal/database"
)

type PostgresRepository struct {
	db database.DBTX
}

const (
	orderColumns = `id, user_id, total_amount, status, payment_reference, created_at, updated_at`

	listOrdersByUserQuery = `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	listAllOrdersQuery    = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC, id DESC`
	getOrderByIDQuery     = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	getOrderByRefQuery    = `SELECT ` + orderColumns + ` FROM orders WHERE payment_reference = $1`

	listLinesQuery = `
		SELECT order_id, product_id, product_name, quantity, unit_price_at_purchase
		FROM order_lines
		WHERE order_id = ANY($1::bigint[])
		ORDER BY order_id, product_id
	`

	insertOrderQuery = `
		INSERT INTO orders (user_id, total_amount, status, payment_reference, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING id, created_at, updated_at
	`
	insertLineQuery = `
		INSERT INTO order_lines (order_id, product_id, product_name, quantity, unit_price_at_purchase)
		VALUES ($1, $2, $3, $4, $5)
	`

	transitionStatusQuery = `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE payment_reference = $1 AND status = 'Pending'
		RETURNING ` + orderColumns
)

// PaymentReferenceConstraint is the partial unique index on orders.payment_reference.
const PaymentReferenceConstraint = "orders_payment_reference_key"

// NewPostgresRepository accepts a *sql.DB or a *sql.Tx.
func NewPostgresRepository(db database.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64) ([]Order, error) {
	return r.list(ctx, listOrdersByUserQuery, userID)
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]Order, error) {
	return r.list(ctx, listAllOrdersQuery)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (Order, error) {
	return r.getOne(ctx, getOrderByIDQuery, id)
}

// GetByPaymentReference returns ErrNotFound when no order carries ref.
func (r *PostgresRepository) GetByPaymentReference(ctx context.Context, ref string) (Order, error) {
	return r.getOne(ctx, getOrderByRefQuery, ref)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	orders := []Order{o}
	if err := r.attachLines(ctx, orders); err != nil {
		return Order{}, err
	}
	return orders[0], nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *PostgresRepository) attachLines(ctx context.Context, orders []Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
		orders[i].Lines = []Line{}
	}

	rows, err := r.db.QueryContext(ctx, listLinesQuery, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("list order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.OrderID, &l.ProductID, &l.ProductName, &l.Quantity, &l.UnitPriceAtPurchase); err != nil {
			return fmt.Errorf("scan order line: %w", err)
		}
		l.LineTotal = l.UnitPriceAtPurchase.Mul(decimal.NewFromInt(int64(l.Quantity)))
		if i, ok := index[l.OrderID]; ok {
			orders[i].Lines = append(orders[i].Lines, l)
		}
	}
	return rows.Err()
}

// Insert writes the order and its lines. Callers must run it inside a
// transaction; on success the returned order carries its id and timestamps.
func (r *PostgresRepository) Insert(ctx context.Context, o Order) (Order, error) {
	var ref sql.NullString
	if o.PaymentReference != "" {
		ref = sql.NullString{String: o.PaymentReference, Valid: true}
	}

	if err := r.db.QueryRowContext(ctx, insertOrderQuery, o.UserID, o.TotalAmount, string(o.Status), ref).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}

	for i := range o.Lines {
		l := &o.Lines[i]
		l.OrderID = o.ID
		if _, err := r.db.ExecContext(ctx, insertLineQuery, o.ID, l.ProductID, l.ProductName, l.Quantity, l.UnitPriceAtPurchase); err != nil {
			return Order{}, fmt.Errorf("insert order line %d: %w", l.ProductID, err)
		}
	}
	return o, nil
}

// TransitionPending moves the order carrying ref out of Pending. ok is false
// when no Pending order matched, which covers both "unknown reference" and
// "already transitioned".
func (r *PostgresRepository) TransitionPending(ctx context.Context, ref string, to Status) (Order, bool, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, transitionStatusQuery, ref, string(to)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, false, nil
		}
		return Order{}, false, fmt.Errorf("transition order: %w", err)
	}
	return o, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(scanner rowScanner) (Order, error) {
	var (
		o      Order
		status string
		ref    sql.NullString
	)
	if err := scanner.Scan(&o.ID, &o.UserID, &o.TotalAmount, &status, &ref, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	o.PaymentReference = ref.String
	return o, nil
}
