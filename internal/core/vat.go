package core

import "github.com/shopspring/decimal"

// VATSplit is the decomposition of a tax-inclusive amount.
type VATSplit struct {
	Subtotal  Money `json:"subtotal"`
	VATAmount Money `json:"vat_amount"`
}

// Round2 rounds half-up (away from zero) to two decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// SplitVAT splits a gross amount into subtotal and VAT for a rate given in
// percent. The subtotal is rounded and the VAT takes the difference, so
// Subtotal + VATAmount always equals gross to the cent.
func SplitVAT(gross Money, ratePercent decimal.Decimal) VATSplit {
	if !ratePercent.IsPositive() {
		return VATSplit{Subtotal: gross}
	}
	divisor := decimal.NewFromInt(1).Add(ratePercent.Div(hundred))
	subtotal := MoneyFromDecimal(gross.Decimal().Div(divisor))
	return VATSplit{Subtotal: subtotal, VATAmount: gross.Sub(subtotal)}
}

// Percentage returns part/total*100 rounded to two places, zero when total is zero.
func Percentage(part, total Money) decimal.Decimal {
	if total.Cents == 0 {
		return decimal.Zero
	}
	return Round2(part.Decimal().Mul(hundred).Div(total.Decimal()))
}
