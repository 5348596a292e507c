package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Totals is derived from a cart and a payment selection, never stored
// independently of its inputs. Percentages are included for display.
type Totals struct {
	Subtotal         decimal.Decimal `json:"subtotal"`
	Surcharge        decimal.Decimal `json:"surcharge"`
	Tax              decimal.Decimal `json:"tax"`
	Total            decimal.Decimal `json:"total"`
	SurchargePercent decimal.Decimal `json:"surcharge_percent"`
	TaxPercent       decimal.Decimal `json:"tax_percent"`
}

// Sale is a submitted, backend-accepted sale as recorded in the local journal.
type Sale struct {
	ID               string          `db:"id" json:"id"`
	SaleType         string          `db:"sale_type" json:"sale_type"`
	PaymentMethod    PaymentMethod   `db:"payment_method" json:"payment_method"`
	CardSubType      *CardSubType    `db:"card_sub_type" json:"card_sub_type"`
	InstallmentCount *int            `db:"installment_count" json:"installment_count"`
	SurchargePct     decimal.Decimal `db:"surcharge_percentage" json:"surcharge_percentage"`
	Total            decimal.Decimal `db:"total" json:"total"`
	Items            []SaleItem      `db:"-" json:"items"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}

type SaleItem struct {
	ID        string          `db:"id" json:"id"`
	SaleID    string          `db:"sale_id" json:"sale_id"`
	ProductID string          `db:"product_id" json:"product_id"`
	Quantity  int             `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
	Size      *string         `db:"size" json:"size"`
}
