package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/wichananm65/shop-checkout/internal/database"
	"github.com/wichananm65/shop-checkout/internal/order"
	"github.com/wichananm65/shop-checkout/internal/outbox"
)

const recordEventQuery = `
	INSERT INTO payment_events (event_id, payment_reference, outcome, received_at)
	VALUES ($1, $2, $3, now())
	ON CONFLICT (event_id) DO NOTHING
`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ApplyOutcome(ctx context.Context, eventID, ref string, outcome order.Status) (Applied, error) {
	var applied Applied
	err := database.WithinTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		// same key checkout takes, so an order being created for ref is
		// either fully visible here or not yet started
		if err := database.AdvisoryLock(ctx, tx, "payment:"+ref); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, recordEventQuery, eventID, ref, string(outcome))
		if err != nil {
			return fmt.Errorf("record payment event: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			applied = AppliedDuplicate
			return nil
		}

		orders := order.NewPostgresRepository(tx)
		o, ok, err := orders.TransitionPending(ctx, ref, outcome)
		if err != nil {
			return err
		}
		if !ok {
			if _, err := orders.GetByPaymentReference(ctx, ref); err == nil {
				applied = AppliedAlreadyFinal
			} else if errors.Is(err, order.ErrNotFound) {
				applied = AppliedRecorded
			} else {
				return err
			}
			return nil
		}

		evt, err := outbox.NewEvent(order.EventStatusChanged, strconv.FormatInt(o.ID, 10), order.StatusChanged{
			OrderID:          o.ID,
			UserID:           o.UserID,
			From:             order.StatusPending,
			To:               o.Status,
			PaymentReference: ref,
			ChangedAt:        o.UpdatedAt,
		})
		if err != nil {
			return err
		}
		if err := outbox.Insert(ctx, tx, evt); err != nil {
			return err
		}
		applied = AppliedTransitioned
		return nil
	})
	if err != nil {
		return "", err
	}
	return applied, nil
}
