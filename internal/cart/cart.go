package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

// Line is one persisted (user, product) pair. Quantity is always >= 1.
type Line struct {
	UserID    int64     `json:"userId"`
	ProductID int64     `json:"productId"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Item is a cart line resolved against the catalog for display. Prices here
// are informational; checkout re-reads them.
type Item struct {
	ProductID     int64           `json:"productId"`
	ProductName   string          `json:"productName"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	StockQuantity int             `json:"stockQuantity"`
	Quantity      int             `json:"quantity"`
	// Available is false when the product was retired after being added.
	Available bool `json:"available"`
}

type View struct {
	UserID   int64           `json:"userId"`
	Items    []Item          `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
}
