package payment

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrWebhookSignatureInvalid = errors.New("webhook signature invalid")
	ErrPaymentNotConfirmed     = errors.New("event does not confirm or reject a payment")
	ErrInvalidWebhookPayload   = errors.New("invalid webhook payload")
	ErrInvalidAmount           = errors.New("amount must be between 0.01 and 999999.99")
	ErrInvalidCurrency         = errors.New("currency must be a three letter code")
)

// MaxAmountMinor is the largest intent amount in minor units the gateway
// accepts for a single charge.
const MaxAmountMinor = 99_999_999

// Intent is what a client needs to complete payment with the gateway. The
// reference is later passed to checkout and echoed back by webhooks.
type Intent struct {
	Reference    string          `json:"paymentReference"`
	ClientSecret string          `json:"clientSecret"`
	Amount       decimal.Decimal `json:"amount"`
	AmountMinor  int64           `json:"amountMinor"`
	Currency     string          `json:"currency"`
}

// Applied describes what a webhook delivery did.
type Applied string

const (
	// AppliedTransitioned moved a Pending order to Paid or Failed.
	AppliedTransitioned Applied = "transitioned"
	// AppliedDuplicate means the event id was seen before.
	AppliedDuplicate Applied = "duplicate"
	// AppliedAlreadyFinal means the order had already left Pending.
	AppliedAlreadyFinal Applied = "already_final"
	// AppliedRecorded means no order carries the reference yet; checkout
	// will pick the outcome up.
	AppliedRecorded Applied = "recorded"
)

type webhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		PaymentReference string `json:"paymentReference"`
	} `json:"data"`
}

const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
)
