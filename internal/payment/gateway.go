package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
)

// Gateway creates payment intents at the provider.
type Gateway interface {
	CreateIntent(ctx context.Context, amountMinor int64, currency string) (Intent, error)
}

// DevGateway issues references locally. It stands in for a provider client
// in development and tests.
type DevGateway struct{}

func (DevGateway) CreateIntent(ctx context.Context, amountMinor int64, currency string) (Intent, error) {
	ref := "pi_" + uuid.NewString()
	return Intent{
		Reference:    ref,
		ClientSecret: ref + "_secret_" + uuid.NewString(),
		AmountMinor:  amountMinor,
		Currency:     currency,
	}, nil
}

// BreakerGateway stops calling a failing provider for a while instead of
// piling requests onto it.
type BreakerGateway struct {
	next Gateway
	cb   *gobreaker.CircuitBreaker[Intent]
}

func NewBreakerGateway(next Gateway) *BreakerGateway {
	settings := gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &BreakerGateway{next: next, cb: gobreaker.NewCircuitBreaker[Intent](settings)}
}

func (g *BreakerGateway) CreateIntent(ctx context.Context, amountMinor int64, currency string) (Intent, error) {
	intent, err := g.cb.Execute(func() (Intent, error) {
		return g.next.CreateIntent(ctx, amountMinor, currency)
	})
	if err != nil {
		return Intent{}, fmt.Errorf("create payment intent: %w", err)
	}
	return intent, nil
}

func (g *BreakerGateway) State() gobreaker.State {
	return g.cb.State()
}
