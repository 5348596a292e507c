package model

import "github.com/shopspring/decimal"

// CartLine is one cart row: a product/size combination with a quantity.
// UnitPrice is captured when the line is created or merged, not re-read live.
// Stock is the latest known stock for the product (or size) backing the line;
// push-channel events keep it current.
type CartLine struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Size      *string         `json:"size"` // Nullable
	Stock     int             `json:"stock"`
}

// Matches reports whether a product/size pair belongs to this line.
// Two lines are the same iff product id and size variant match.
func (l *CartLine) Matches(productID string, size *string) bool {
	if l.ProductID != productID {
		return false
	}
	if l.Size == nil || size == nil {
		return l.Size == nil && size == nil
	}
	return *l.Size == *size
}

// LineTotal is unit price times quantity.
func (l *CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
