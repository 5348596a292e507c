package dto

import (
	"github.com/shopspring/decimal"

	"github.com/fekuna/omnipos-checkout-service/internal/model"
)

// SubmitSaleInput is what the checkout wizard hands over on confirmation.
// Totals are recomputed at the moment of confirmation, never reused from a
// stale render.
type SubmitSaleInput struct {
	SaleType  string
	Selection model.PaymentSelection
	Items     []model.CartLine
	Totals    model.Totals
}

// SubmitSaleRequest is the wire payload for the sale submission endpoint.
type SubmitSaleRequest struct {
	SaleType         string              `json:"sale_type"`
	PaymentMethod    model.PaymentMethod `json:"payment_method"`
	CardSubType      *model.CardSubType  `json:"card_sub_type,omitempty"`
	InstallmentCount *int                `json:"installment_count,omitempty"`
	SurchargePct     decimal.Decimal     `json:"surcharge_percentage"`
	Items            []SaleItemRequest   `json:"items"`
	Total            decimal.Decimal     `json:"total"`
}

type SaleItemRequest struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Size      *string         `json:"size,omitempty"`
}
