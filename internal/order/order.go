package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "Pending"
	StatusPaid      Status = "Paid"
	StatusFailed    Status = "Failed"
	StatusCancelled Status = "Cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s != StatusPending
}

// Line snapshots what was bought. It never reads live catalog state.
type Line struct {
	OrderID             int64           `json:"orderId"`
	ProductID           int64           `json:"productId"`
	ProductName         string          `json:"productName"`
	Quantity            int             `json:"quantity"`
	UnitPriceAtPurchase decimal.Decimal `json:"unitPriceAtPurchase"`
	LineTotal           decimal.Decimal `json:"lineTotal"`
}

func NewLine(productID int64, name string, qty int, unitPrice decimal.Decimal) Line {
	return Line{
		ProductID:           productID,
		ProductName:         name,
		Quantity:            qty,
		UnitPriceAtPurchase: unitPrice,
		LineTotal:           unitPrice.Mul(decimal.NewFromInt(int64(qty))),
	}
}

type Order struct {
	ID               int64           `json:"orderId"`
	UserID           int64           `json:"userId"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	Status           Status          `json:"status"`
	PaymentReference string          `json:"paymentReference,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
	Lines            []Line          `json:"lines"`
}

// SumLines is the only way an order total is computed.
func SumLines(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.UnitPriceAtPurchase.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}
