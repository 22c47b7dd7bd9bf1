package outbox

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wichananm65/shop-checkout/internal/database"
)

const (
	insertEventQuery   = `INSERT INTO outbox (event_id, event_type, key, payload, created_at) VALUES ($1, $2, $3, $4, $5)`
	pendingEventsQuery = `SELECT id, event_id, event_type, key, payload, created_at, sent_at FROM outbox WHERE sent_at IS NULL ORDER BY id LIMIT $1`
	markSentQuery      = `UPDATE outbox SET sent_at = now() WHERE id = $1`
)

// Insert writes e through db, normally the caller's transaction.
func Insert(ctx context.Context, db database.DBTX, e Event) error {
	if _, err := db.ExecContext(ctx, insertEventQuery, e.ID, e.Type, e.Key, []byte(e.Payload), e.CreatedAt); err != nil {
		return fmt.Errorf("insert outbox event %s: %w", e.Type, err)
	}
	return nil
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Pending(ctx context.Context, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, pendingEventsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e       Event
			payload []byte
			sentAt  sql.NullTime
		)
		if err := rows.Scan(&e.Seq, &e.ID, &e.Type, &e.Key, &payload, &e.CreatedAt, &sentAt); err != nil {
			return nil, fmt.Errorf("scan outbox: %w", err)
		}
		e.Payload = payload
		if sentAt.Valid {
			e.SentAt = &sentAt.Time
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkSent(ctx context.Context, seq int64) error {
	if _, err := s.db.ExecContext(ctx, markSentQuery, seq); err != nil {
		return fmt.Errorf("mark outbox %d sent: %w", seq, err)
	}
	return nil
}
