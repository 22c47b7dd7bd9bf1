package payment

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/wichananm65/shop-checkout/internal/metrics"
	"github.com/wichananm65/shop-checkout/internal/order"
)

type Service struct {
	gateway         Gateway
	store           Store
	signer          *Signer
	defaultCurrency string
	metrics         *metrics.Metrics
	log             *slog.Logger
}

func NewService(gateway Gateway, store Store, signer *Signer, defaultCurrency string, m *metrics.Metrics, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if defaultCurrency == "" {
		defaultCurrency = "usd"
	}
	return &Service{
		gateway:         gateway,
		store:           store,
		signer:          signer,
		defaultCurrency: strings.ToLower(defaultCurrency),
		metrics:         m,
		log:             log,
	}
}

// CreateIntent asks the gateway for an intent in minor units.
func (s *Service) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string) (Intent, error) {
	minorAmount := amount.Shift(2).Round(0)
	if !minorAmount.IsPositive() || minorAmount.GreaterThan(decimal.NewFromInt(MaxAmountMinor)) {
		return Intent{}, ErrInvalidAmount
	}
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		currency = s.defaultCurrency
	}
	if len(currency) != 3 {
		return Intent{}, ErrInvalidCurrency
	}

	minor := minorAmount.IntPart()
	intent, err := s.gateway.CreateIntent(ctx, minor, currency)
	if err != nil {
		return Intent{}, err
	}
	intent.Amount = decimal.New(minor, -2)
	return intent, nil
}

// HandleWebhook verifies and applies one gateway delivery. Deliveries are
// at-least-once; repeated events are reported as AppliedDuplicate with no
// further effect.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (Applied, error) {
	if err := s.signer.Verify(payload, signature); err != nil {
		s.metrics.WebhookEvent("invalid_signature")
		return "", err
	}

	var evt webhookEvent
	if err := json.Unmarshal(payload, &evt); err != nil || evt.ID == "" {
		s.metrics.WebhookEvent("invalid_payload")
		return "", ErrInvalidWebhookPayload
	}

	var outcome order.Status
	switch evt.Type {
	case EventPaymentSucceeded:
		outcome = order.StatusPaid
	case EventPaymentFailed:
		outcome = order.StatusFailed
	default:
		s.metrics.WebhookEvent("ignored")
		return "", ErrPaymentNotConfirmed
	}
	if evt.Data.PaymentReference == "" {
		s.metrics.WebhookEvent("invalid_payload")
		return "", ErrInvalidWebhookPayload
	}

	applied, err := s.store.ApplyOutcome(ctx, evt.ID, evt.Data.PaymentReference, outcome)
	if err != nil {
		s.metrics.WebhookEvent("error")
		return "", err
	}
	s.metrics.WebhookEvent(string(applied))
	s.log.InfoContext(ctx, "payment webhook applied",
		"event_id", evt.ID,
		"payment_reference", evt.Data.PaymentReference,
		"outcome", string(outcome),
		"applied", string(applied),
	)
	return applied, nil
}
