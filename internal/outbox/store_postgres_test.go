package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
)

func TestPostgresStore_PendingAndMarkSent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock error: %v", err)
	}
	defer db.Close()
	store := NewPostgresStore(db)

	id := uuid.New()
	now := time.Now()
	mock.ExpectQuery(`FROM outbox WHERE sent_at IS NULL ORDER BY id LIMIT \$1`).WithArgs(50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_id", "event_type", "key", "payload", "created_at", "sent_at"}).
			AddRow(int64(3), id.String(), "order.created", "9", []byte(`{"orderId":9}`), now, nil))
	mock.ExpectExec(`UPDATE outbox SET sent_at = now\(\) WHERE id = \$1`).WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	events, err := store.Pending(context.Background(), 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Seq != 3 || events[0].ID != id || events[0].SentAt != nil {
		t.Fatalf("unexpected events %+v", events)
	}
	if string(events[0].Payload) != `{"orderId":9}` {
		t.Fatalf("unexpected payload %s", events[0].Payload)
	}

	if err := store.MarkSent(context.Background(), events[0].Seq); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock error: %v", err)
	}
	defer db.Close()

	e := mustEvent(t, "5")
	mock.ExpectExec(`INSERT INTO outbox`).
		WithArgs(e.ID.String(), "order.created", "5", []byte(e.Payload), e.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := Insert(context.Background(), db, e); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
