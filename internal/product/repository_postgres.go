package product

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

type PostgresRepository struct {
	db *sql.DB
}

// SelectColumns and ActiveFilter are shared with the checkout store so the
// "retired products are invisible" rule lives in exactly one place.
const (
	SelectColumns = `SELECT id, name, price, stock_quantity, active, version, created_at, updated_at FROM products`
	ActiveFilter  = `active`

	getProductByIDQuery = SelectColumns + ` WHERE id = $1 AND ` + ActiveFilter
	listByIDsQuery      = SelectColumns + ` WHERE id = ANY($1::bigint[]) AND ` + ActiveFilter + ` ORDER BY id`

	upsertProductQuery = `
		INSERT INTO products (id, name, price, stock_quantity, active, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 1, now(), now())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			price = EXCLUDED.price,
			stock_quantity = EXCLUDED.stock_quantity,
			active = EXCLUDED.active,
			version = products.version + 1,
			updated_at = now()
	`
	resetProductSequenceQuery = `SELECT setval(pg_get_serial_sequence('products', 'id'), GREATEST((SELECT MAX(id) FROM products), 1))`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (Product, error) {
	p, err := ScanProduct(r.db.QueryRowContext(ctx, getProductByIDQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

func (r *PostgresRepository) ListByIDs(ctx context.Context, ids []int64) ([]Product, error) {
	if len(ids) == 0 {
		return []Product{}, nil
	}

	rows, err := r.db.QueryContext(ctx, listByIDsQuery, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	out := make([]Product, 0, len(ids))
	for rows.Next() {
		p, err := ScanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Seed upserts the given products in a single transaction.
func (r *PostgresRepository) Seed(ctx context.Context, products []Product) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, p := range products {
		if _, err := tx.ExecContext(ctx, upsertProductQuery, p.ID, p.Name, p.Price, p.StockQuantity, p.Active); err != nil {
			return fmt.Errorf("seed product %d: %w", p.ID, err)
		}
	}
	if _, err := tx.ExecContext(ctx, resetProductSequenceQuery); err != nil {
		return fmt.Errorf("reset product sequence: %w", err)
	}

	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

// ScanProduct reads one row in SelectColumns order.
func ScanProduct(scanner rowScanner) (Product, error) {
	var p Product
	if err := scanner.Scan(
		&p.ID,
		&p.Name,
		&p.Price,
		&p.StockQuantity,
		&p.Active,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return Product{}, err
	}
	return p, nil
}
