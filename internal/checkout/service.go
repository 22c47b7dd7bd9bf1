package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/wichananm65/shop-checkout/internal/cart"
	"github.com/wichananm65/shop-checkout/internal/database"
	"github.com/wichananm65/shop-checkout/internal/metrics"
	"github.com/wichananm65/shop-checkout/internal/order"
	"github.com/wichananm65/shop-checkout/internal/outbox"
	"github.com/wichananm65/shop-checkout/internal/payment"
	"github.com/wichananm65/shop-checkout/internal/product"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultMaxAttempts = 3

// CartInvalidator drops cached cart views once a checkout commits.
type CartInvalidator interface {
	Invalidate(ctx context.Context, userID int64)
}

type Options struct {
	MaxAttempts int
	// Backoff is the base pause between attempts; it grows linearly with
	// jitter. Zero disables sleeping.
	Backoff time.Duration
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Tracer  trace.Tracer
}

type Service struct {
	store       Store
	carts       CartInvalidator
	maxAttempts int
	backoff     time.Duration
	log         *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

func NewService(store Store, carts CartInvalidator, opts Options) *Service {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("github.com/wichananm65/shop-checkout/internal/checkout")
	}
	return &Service{
		store:       store,
		carts:       carts,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
		log:         opts.Logger,
		metrics:     opts.Metrics,
		tracer:      opts.Tracer,
	}
}

// Checkout turns the user's cart into an order. Either every effect (stock
// decrement, order and lines, cart consumption, outbox event) commits or
// none does.
//
// With a non-empty paymentRef the call is idempotent: if the reference is
// already on one of the user's orders that order is returned unchanged.
func (s *Service) Checkout(ctx context.Context, userID int64, paymentRef string) (order.Order, error) {
	paymentRef = strings.TrimSpace(paymentRef)

	ctx, span := s.tracer.Start(ctx, "checkout.Checkout", trace.WithAttributes(
		attribute.Int64("user.id", userID),
		attribute.Bool("payment_reference.present", paymentRef != ""),
	))
	defer span.End()

	start := time.Now()
	o, replayed, attempts, err := s.run(ctx, userID, paymentRef)
	outcome := outcomeOf(err)
	if replayed {
		outcome = "replayed"
	}
	s.metrics.CheckoutFinished(outcome, time.Since(start))
	span.SetAttributes(attribute.Int("checkout.attempts", attempts), attribute.String("checkout.outcome", outcome))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		s.log.InfoContext(ctx, "checkout rejected", "user_id", userID, "outcome", outcome, "attempts", attempts, "error", err)
		return order.Order{}, err
	}

	if replayed {
		s.log.InfoContext(ctx, "checkout replayed", "user_id", userID, "order_id", o.ID, "status", string(o.Status))
		return o, nil
	}

	s.carts.Invalidate(ctx, userID)
	s.log.InfoContext(ctx, "checkout committed",
		"user_id", userID,
		"order_id", o.ID,
		"status", string(o.Status),
		"total", o.TotalAmount.StringFixed(2),
		"attempts", attempts,
	)
	return o, nil
}

func (s *Service) run(ctx context.Context, userID int64, paymentRef string) (order.Order, bool, int, error) {
	for attempt := 1; ; attempt++ {
		s.metrics.CheckoutAttempt()

		o, replayed, err := s.attempt(ctx, userID, paymentRef)
		if err == nil {
			return o, replayed, attempt, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return order.Order{}, false, attempt, ctxErr
		}
		if !retryable(err) {
			return order.Order{}, false, attempt, err
		}
		if attempt >= s.maxAttempts {
			s.log.WarnContext(ctx, "checkout retries exhausted", "user_id", userID, "attempts", attempt, "error", err)
			return order.Order{}, false, attempt, ErrConcurrentConflict
		}
		if err := s.pause(ctx, attempt); err != nil {
			return order.Order{}, false, attempt, err
		}
	}
}

// attempt runs one transaction. replayed is true when paymentRef already
// belonged to one of the user's orders and nothing was written.
func (s *Service) attempt(ctx context.Context, userID int64, paymentRef string) (result order.Order, replayed bool, err error) {
	status := order.StatusPending

	err = s.store.WithinTx(ctx, func(tx Tx) error {
		if paymentRef != "" {
			if err := tx.LockPaymentReference(ctx, paymentRef); err != nil {
				return err
			}
			existing, err := tx.OrderByPaymentReference(ctx, paymentRef)
			switch {
			case err == nil:
				if existing.UserID != userID {
					return ErrPaymentReferenceInUse
				}
				result, replayed = existing, true
				return nil
			case !errors.Is(err, order.ErrNotFound):
				return err
			}

			// a rejected payment leaves stock and cart untouched
			outcome, found, err := tx.PaymentOutcome(ctx, paymentRef)
			if err != nil {
				return err
			}
			if found {
				if outcome != order.StatusPaid {
					return payment.ErrPaymentNotConfirmed
				}
				status = order.StatusPaid
			}
		}

		lines, err := tx.CartLines(ctx, userID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		ids := make([]int64, len(lines))
		for i, l := range lines {
			ids[i] = l.ProductID
		}
		products, err := tx.Products(ctx, ids)
		if err != nil {
			return err
		}
		byID := make(map[int64]product.Product, len(products))
		for _, p := range products {
			byID[p.ID] = p
		}

		// every line must be satisfiable before any stock is touched
		for _, l := range lines {
			if l.Quantity <= 0 || l.Quantity > cart.MaxQuantity {
				return fmt.Errorf("product %d: %w", l.ProductID, cart.ErrInvalidQuantity)
			}
			p, ok := byID[l.ProductID]
			if !ok {
				return &InsufficientStockError{ProductID: l.ProductID, Requested: l.Quantity}
			}
			if p.StockQuantity < l.Quantity {
				return &InsufficientStockError{ProductID: l.ProductID, Requested: l.Quantity, Available: p.StockQuantity}
			}
		}

		orderLines := make([]order.Line, 0, len(lines))
		for _, l := range lines {
			p := byID[l.ProductID]
			ok, err := tx.DecrementStock(ctx, p.ID, p.Version, l.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return ErrStockChanged
			}
			orderLines = append(orderLines, order.NewLine(p.ID, p.Name, l.Quantity, p.Price))
		}

		created, err := tx.InsertOrder(ctx, order.Order{
			UserID:           userID,
			TotalAmount:      order.SumLines(orderLines),
			Status:           status,
			PaymentReference: paymentRef,
			Lines:            orderLines,
		})
		if err != nil {
			return err
		}

		if err := tx.ConsumeCart(ctx, userID, ids); err != nil {
			return err
		}

		evt, err := outbox.NewEvent(order.EventCreated, strconv.FormatInt(created.ID, 10), created)
		if err != nil {
			return err
		}
		if err := tx.EnqueueEvent(ctx, evt); err != nil {
			return err
		}

		result = created
		return nil
	})
	if err != nil {
		return order.Order{}, false, err
	}
	return result, replayed, nil
}

func (s *Service) pause(ctx context.Context, attempt int) error {
	if s.backoff <= 0 {
		return nil
	}
	d := time.Duration(attempt)*s.backoff + time.Duration(rand.Int63n(int64(s.backoff)))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func retryable(err error) bool {
	return errors.Is(err, ErrStockChanged) ||
		errors.Is(err, ErrDuplicatePaymentReference) ||
		database.IsRetryable(err)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "committed"
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrConcurrentConflict):
		return "conflict"
	case errors.Is(err, ErrPaymentReferenceInUse):
		return "payment_reference_in_use"
	case errors.Is(err, payment.ErrPaymentNotConfirmed):
		return "payment_not_confirmed"
	case errors.Is(err, cart.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
