package model

import "github.com/shopspring/decimal"

// PaymentMethod is the closed set of payment methods the wizard offers.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
)

var paymentMethodLabels = map[PaymentMethod]string{
	PaymentCash:     "Cash",
	PaymentCard:     "Card",
	PaymentTransfer: "Transfer",
}

func (m PaymentMethod) Valid() bool {
	_, ok := paymentMethodLabels[m]
	return ok
}

func (m PaymentMethod) Label() string {
	return paymentMethodLabels[m]
}

// CardSubType categorizes a card payment for surcharge/installment rules.
type CardSubType string

const (
	CardBankAffiliated    CardSubType = "bank_affiliated"
	CardNonBankAffiliated CardSubType = "non_bank_affiliated"
	CardStoreBranded      CardSubType = "store_branded"
)

var cardSubTypeLabels = map[CardSubType]string{
	CardBankAffiliated:    "Bank card",
	CardNonBankAffiliated: "Non-bank card",
	CardStoreBranded:      "Store card",
}

func (t CardSubType) Valid() bool {
	_, ok := cardSubTypeLabels[t]
	return ok
}

func (t CardSubType) Label() string {
	return cardSubTypeLabels[t]
}

// AllCardSubTypes returns the fixed sub-type list in wizard display order.
// The wizard offers all three regardless of which have configured rates.
func AllCardSubTypes() []CardSubType {
	return []CardSubType{CardBankAffiliated, CardNonBankAffiliated, CardStoreBranded}
}

// PaymentRateConfig is one backend-configured surcharge rule. Active configs
// keyed by (card_sub_type, installment_count) determine which installment
// options exist for each sub-type.
type PaymentRateConfig struct {
	PaymentType      PaymentMethod   `json:"payment_type"`
	CardSubType      *CardSubType    `json:"card_sub_type"` // Nullable
	InstallmentCount int             `json:"installment_count"`
	SurchargePct     decimal.Decimal `json:"surcharge_percentage"`
	IsActive         bool            `json:"is_active"`
	Description      *string         `json:"description"`
}

// PaymentSelection is the wizard's in-progress (then finalized) choice.
// CardSubType and Installments are meaningful only when Method is card.
type PaymentSelection struct {
	Method       PaymentMethod `json:"method"`
	CardSubType  CardSubType   `json:"card_sub_type,omitempty"`
	Installments int           `json:"installments"`
}

// DefaultSelection is the state a freshly opened wizard starts from.
func DefaultSelection() PaymentSelection {
	return PaymentSelection{Method: PaymentCash, Installments: 1}
}
