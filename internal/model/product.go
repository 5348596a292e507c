package model

import "github.com/shopspring/decimal"

// Product is an immutable snapshot fetched from the product service.
// Stock is advisory until the sale is submitted.
type Product struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Stock      int             `json:"stock"`
	MinStock   int             `json:"min_stock"`
	HasSizes   bool            `json:"has_sizes"`
	CategoryID *string         `json:"category_id"` // Nullable
}
