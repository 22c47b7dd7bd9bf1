package cart

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/wichananm65/shop-checkout/internal/database"
)

type PostgresRepository struct {
	db database.DBTX
}

const (
	lineColumns = `user_id, product_id, quantity, created_at, updated_at`

	getLinesQuery  = `SELECT ` + lineColumns + ` FROM cart_items WHERE user_id = $1 ORDER BY product_id`
	lockLinesQuery = getLinesQuery + ` FOR UPDATE`

	incrementLineQuery = `
		INSERT INTO cart_items (user_id, product_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (user_id, product_id) DO UPDATE
		SET quantity = cart_items.quantity + EXCLUDED.quantity,
			updated_at = now()
		RETURNING ` + lineColumns

	setQuantityQuery  = `UPDATE cart_items SET quantity = $3, updated_at = now() WHERE user_id = $1 AND product_id = $2`
	removeLineQuery   = `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`
	clearCartQuery    = `DELETE FROM cart_items WHERE user_id = $1`
	consumeLinesQuery = `DELETE FROM cart_items WHERE user_id = $1 AND product_id = ANY($2::bigint[])`
)

// NewPostgresRepository accepts a *sql.DB or a *sql.Tx.
func NewPostgresRepository(db database.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Lines(ctx context.Context, userID int64) ([]Line, error) {
	return r.queryLines(ctx, getLinesQuery, userID)
}

// LockLines reads the user's lines with row locks held until the enclosing
// transaction ends. Only meaningful on a repository bound to a *sql.Tx.
func (r *PostgresRepository) LockLines(ctx context.Context, userID int64) ([]Line, error) {
	return r.queryLines(ctx, lockLinesQuery, userID)
}

func (r *PostgresRepository) queryLines(ctx context.Context, query string, userID int64) ([]Line, error) {
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart %d: %w", userID, err)
	}
	defer rows.Close()

	lines := []Line{}
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *PostgresRepository) Increment(ctx context.Context, userID, productID int64, qty int) (Line, error) {
	l, err := scanLine(r.db.QueryRowContext(ctx, incrementLineQuery, userID, productID, qty))
	if database.IsOutOfRange(err) {
		return Line{}, ErrInvalidQuantity
	}
	if err != nil {
		return Line{}, fmt.Errorf("add cart line: %w", err)
	}
	return l, nil
}

func (r *PostgresRepository) SetQuantity(ctx context.Context, userID, productID int64, qty int) error {
	if _, err := r.db.ExecContext(ctx, setQuantityQuery, userID, productID, qty); err != nil {
		if database.IsOutOfRange(err) {
			return ErrInvalidQuantity
		}
		return fmt.Errorf("set cart quantity: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Remove(ctx context.Context, userID, productID int64) error {
	if _, err := r.db.ExecContext(ctx, removeLineQuery, userID, productID); err != nil {
		return fmt.Errorf("remove cart line: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Clear(ctx context.Context, userID int64) error {
	if _, err := r.db.ExecContext(ctx, clearCartQuery, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// Consume deletes exactly the given products from the user's cart. Lines
// added after the caller's snapshot are left alone.
func (r *PostgresRepository) Consume(ctx context.Context, userID int64, productIDs []int64) error {
	if len(productIDs) == 0 {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, consumeLinesQuery, userID, pq.Array(productIDs)); err != nil {
		return fmt.Errorf("consume cart lines: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLine(scanner rowScanner) (Line, error) {
	var l Line
	if err := scanner.Scan(&l.UserID, &l.ProductID, &l.Quantity, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return Line{}, err
	}
	return l, nil
}
