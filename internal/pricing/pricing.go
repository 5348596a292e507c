// Package pricing computes checkout totals from cart contents and the
// selected payment configuration. Everything here is pure: no state, no
// side effects, identical inputs yield identical outputs.
package pricing

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/fekuna/omnipos-checkout-service/internal/model"
)

var hundred = decimal.NewFromInt(100)

// ComputeTotals derives subtotal, surcharge, tax and total.
// Tax base is the subtotal alone, not subtotal+surcharge. Surcharge, tax and
// total are rounded half-up to 2 decimal places.
func ComputeTotals(lines []model.CartLine, sel model.PaymentSelection, configs []model.PaymentRateConfig, taxRatePercent decimal.Decimal) model.Totals {
	subtotal := decimal.Zero
	for i := range lines {
		subtotal = subtotal.Add(lines[i].LineTotal())
	}

	surchargePct, _ := ResolveSurcharge(sel, configs)
	surcharge := subtotal.Mul(surchargePct).Div(hundred).Round(2)
	tax := subtotal.Mul(taxRatePercent).Div(hundred).Round(2)

	return model.Totals{
		Subtotal:         subtotal,
		Surcharge:        surcharge,
		Tax:              tax,
		Total:            subtotal.Add(surcharge).Add(tax).Round(2),
		SurchargePercent: surchargePct,
		TaxPercent:       taxRatePercent,
	}
}

// ResolveSurcharge returns the surcharge percentage for a selection: zero
// unless the method is card and an active config matches the selected
// (sub-type, installment count) pair. The bool reports whether a config
// matched.
func ResolveSurcharge(sel model.PaymentSelection, configs []model.PaymentRateConfig) (decimal.Decimal, bool) {
	if sel.Method != model.PaymentCard {
		return decimal.Zero, false
	}
	for i := range configs {
		c := &configs[i]
		if !c.IsActive || c.CardSubType == nil {
			continue
		}
		if *c.CardSubType == sel.CardSubType && c.InstallmentCount == sel.Installments {
			return c.SurchargePct, true
		}
	}
	return decimal.Zero, false
}

// ConfigsFor returns the active rate configs for a card sub-type, ascending
// by installment count.
func ConfigsFor(subType model.CardSubType, configs []model.PaymentRateConfig) []model.PaymentRateConfig {
	var out []model.PaymentRateConfig
	for i := range configs {
		c := configs[i]
		if c.IsActive && c.CardSubType != nil && *c.CardSubType == subType {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].InstallmentCount < out[j].InstallmentCount
	})
	return out
}

// LowestInstallment returns the smallest configured installment count for a
// sub-type, or 1 when none is configured.
func LowestInstallment(subType model.CardSubType, configs []model.PaymentRateConfig) int {
	cfgs := ConfigsFor(subType, configs)
	if len(cfgs) == 0 {
		return 1
	}
	return cfgs[0].InstallmentCount
}

// HasInstallmentOptions reports whether a sub-type has any active config with
// more than one installment, which is what makes the installment step worth
// showing.
func HasInstallmentOptions(subType model.CardSubType, configs []model.PaymentRateConfig) bool {
	for _, c := range ConfigsFor(subType, configs) {
		if c.InstallmentCount > 1 {
			return true
		}
	}
	return false
}

// MergeRateConfigs overlays operator-defined overrides on the standard set,
// keyed by (card sub-type, installment count). Override wins.
func MergeRateConfigs(standard, overrides []model.PaymentRateConfig) []model.PaymentRateConfig {
	type key struct {
		sub          model.CardSubType
		installments int
	}
	keyOf := func(c *model.PaymentRateConfig) key {
		k := key{installments: c.InstallmentCount}
		if c.CardSubType != nil {
			k.sub = *c.CardSubType
		}
		return k
	}

	merged := make([]model.PaymentRateConfig, 0, len(standard)+len(overrides))
	replaced := make(map[key]int, len(standard))
	for _, c := range standard {
		replaced[keyOf(&c)] = len(merged)
		merged = append(merged, c)
	}
	for _, c := range overrides {
		if idx, ok := replaced[keyOf(&c)]; ok {
			merged[idx] = c
			continue
		}
		merged = append(merged, c)
	}
	return merged
}
