package cart

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/fekuna/omnipos-checkout-service/internal/model"
)

var (
	ErrOutOfStock        = errors.New("product is out of stock")
	ErrInsufficientStock = errors.New("insufficient stock for requested quantity")
	ErrLineNotFound      = errors.New("cart line not found")
)

type UseCase interface {
	// AddItem merges into an existing product/size line or creates a new one.
	// sizeStock, when present, carries per-size stock for sized products and
	// takes precedence over product.Stock for validation.
	AddItem(product *model.Product, size *string, quantity int, sizeStock map[string]int) error

	// UpdateQuantity sets a line's quantity. quantity <= 0 removes the line.
	UpdateQuantity(lineID string, quantity int, sizeStock map[string]int) error

	RemoveItem(lineID string) error
	Clear()

	// Lines returns a snapshot copy in insertion order.
	Lines() []model.CartLine
	Subtotal() decimal.Decimal

	// ApplyStockChange revalidates in-cart lines against a pushed stock value.
	ApplyStockChange(productID string, newStock int)
}
