package order

import "time"

const (
	EventCreated       = "order.created"
	EventStatusChanged = "order.status_changed"
)

type StatusChanged struct {
	OrderID          int64     `json:"orderId"`
	UserID           int64     `json:"userId"`
	From             Status    `json:"from"`
	To               Status    `json:"to"`
	PaymentReference string    `json:"paymentReference"`
	ChangedAt        time.Time `json:"changedAt"`
}
