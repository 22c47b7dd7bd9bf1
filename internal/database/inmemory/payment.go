package inmemory

import (
	"context"
	"strconv"

	"github.com/wichananm65/shop-checkout/internal/order"
	"github.com/wichananm65/shop-checkout/internal/outbox"
	"github.com/wichananm65/shop-checkout/internal/payment"
)

func (s *Store) ApplyOutcome(ctx context.Context, eventID, ref string, outcome order.Status) (payment.Applied, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.paymentEvents[eventID]; seen {
		return payment.AppliedDuplicate, nil
	}

	id, ok := s.ordersByRef[ref]
	var evt outbox.Event
	if ok && s.orders[id].Status == order.StatusPending {
		o := s.orders[id]
		o.Status = outcome
		o.UpdatedAt = s.now()

		var err error
		evt, err = outbox.NewEvent(order.EventStatusChanged, strconv.FormatInt(o.ID, 10), order.StatusChanged{
			OrderID:          o.ID,
			UserID:           o.UserID,
			From:             order.StatusPending,
			To:               outcome,
			PaymentReference: ref,
			ChangedAt:        o.UpdatedAt,
		})
		if err != nil {
			return "", err
		}
		s.orders[id] = o
	}

	s.paymentSeq++
	s.paymentEvents[eventID] = paymentEvent{seq: s.paymentSeq, ref: ref, outcome: outcome}

	switch {
	case !ok:
		return payment.AppliedRecorded, nil
	case evt.Type == "":
		return payment.AppliedAlreadyFinal, nil
	default:
		s.appendEvent(evt)
		return payment.AppliedTransitioned, nil
	}
}
