package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
)

var (
	orderColumnNames = []string{"id", "user_id", "total_amount", "status", "payment_reference", "created_at", "updated_at"}
	lineColumnNames  = []string{"order_id", "product_id", "product_name", "quantity", "unit_price_at_purchase"}
)

func TestListByUser_NewestFirstWithLines(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewPostgresRepository(db)

	now := time.Now()
	mock.ExpectQuery(`FROM orders WHERE user_id = \$1 ORDER BY created_at DESC, id DESC`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(orderColumnNames).
			AddRow(12, 7, "100.00", "Paid", "pi_1", now, now).
			AddRow(11, 7, "30.00", "Pending", nil, now.Add(-time.Hour), now.Add(-time.Hour)))
	mock.ExpectQuery(`FROM order_lines\s+WHERE order_id = ANY`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(lineColumnNames).
			AddRow(11, 2, "Bowl", 3, "10.00").
			AddRow(12, 1, "Bed", 1, "100.00"))

	orders, err := repo.ListByUser(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orders) != 2 || orders[0].ID != 12 {
		t.Fatalf("expected newest order first, got %+v", orders)
	}
	if orders[0].PaymentReference != "pi_1" || orders[1].PaymentReference != "" {
		t.Fatalf("unexpected payment references: %q %q", orders[0].PaymentReference, orders[1].PaymentReference)
	}
	if len(orders[1].Lines) != 1 || orders[1].Lines[0].LineTotal.String() != "30" {
		t.Fatalf("unexpected lines for order 11: %+v", orders[1].Lines)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestListAll_EmptySkipsLineQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock error: %v", err)
	}
	defer db.Close()
	repo := NewPostgresRepository(db)

	mock.ExpectQuery(`FROM orders ORDER BY created_at DESC`).WillReturnRows(sqlmock.NewRows(orderColumnNames))

	orders, err := repo.ListAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if orders == nil || len(orders) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", orders)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock error: %v", err)
	}
	defer db.Close()
	repo := NewPostgresRepository(db)

	mock.ExpectQuery(`FROM orders WHERE id = \$1`).WithArgs(int64(5)).WillReturnRows(sqlmock.NewRows(orderColumnNames))

	if _, err := repo.GetByID(context.Background(), 5); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInsert_WritesOrderAndLines(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock error: %v", err)
	}
	defer db.Close()
	repo := NewPostgresRepository(db)

	lines := []Line{
		NewLine(1, "Bed", 2, decimal.RequireFromString("10.50")),
		NewLine(3, "Sweater", 1, decimal.RequireFromString("4.00")),
	}
	now := time.Now()
	mock.ExpectQuery(`INSERT INTO orders`).
		WithArgs(int64(7), sqlmock.AnyArg(), "Pending", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(40, now, now))
	mock.ExpectExec(`INSERT INTO order_lines`).WithArgs(int64(40), int64(1), "Bed", 2, sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO order_lines`).WithArgs(int64(40), int64(3), "Sweater", 1, sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))

	o, err := repo.Insert(context.Background(), Order{UserID: 7, TotalAmount: SumLines(lines), Status: StatusPending, Lines: lines})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.ID != 40 || o.Lines[1].OrderID != 40 {
		t.Fatalf("expected ids assigned, got %+v", o)
	}
	if o.TotalAmount.String() != "25" {
		t.Fatalf("expected total 25, got %s", o.TotalAmount)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestTransitionPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock error: %v", err)
	}
	defer db.Close()
	repo := NewPostgresRepository(db)

	now := time.Now()
	mock.ExpectQuery(`UPDATE orders SET status = \$2.*WHERE payment_reference = \$1 AND status = 'Pending'`).
		WithArgs("pi_9", "Paid").
		WillReturnRows(sqlmock.NewRows(orderColumnNames).AddRow(3, 7, "5.00", "Paid", "pi_9", now, now))
	mock.ExpectQuery(`UPDATE orders SET status`).
		WithArgs("pi_9", "Paid").
		WillReturnRows(sqlmock.NewRows(orderColumnNames))

	o, ok, err := repo.TransitionPending(context.Background(), "pi_9", StatusPaid)
	if err != nil || !ok || o.Status != StatusPaid {
		t.Fatalf("expected transition, got %+v %v %v", o, ok, err)
	}
	_, ok, err = repo.TransitionPending(context.Background(), "pi_9", StatusPaid)
	if err != nil || ok {
		t.Fatalf("expected no-op on second transition, got %v %v", ok, err)
	}
}
