package product

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the read side of the catalog as the checkout engine sees it:
// a price and an available-quantity counter. Only checkout decrements
// StockQuantity; Version changes on every stock write.
type Product struct {
	ID            int64           `json:"productId"`
	Name          string          `json:"productName"`
	Price         decimal.Decimal `json:"productPrice"`
	StockQuantity int             `json:"stockQuantity"`
	Active        bool            `json:"active"`
	Version       int64           `json:"-"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// SampleProducts is the dev seed used when SEED_PRODUCTS=1.
func SampleProducts() []Product {
	return []Product{
		{ID: 1, Name: "Cat Scratcher Bed", Price: decimal.RequireFromString("840.00"), StockQuantity: 25, Active: true},
		{ID: 2, Name: "Double Food Bowl", Price: decimal.RequireFromString("420.00"), StockQuantity: 40, Active: true},
		{ID: 3, Name: "Cat Sweater", Price: decimal.RequireFromString("260.50"), StockQuantity: 10, Active: true},
		{ID: 4, Name: "Cheese Cat House", Price: decimal.RequireFromString("399.00"), StockQuantity: 1, Active: true},
	}
}
