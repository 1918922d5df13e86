package services

import "github.com/shopspring/decimal"

var (
	taxRate               = decimal.RequireFromString("0.10")
	freeShippingThreshold = decimal.NewFromInt(100)
	flatShippingCost      = decimal.NewFromInt(10)
)

// Totals holds the monetary breakdown of an order.
type Totals struct {
	Subtotal     decimal.Decimal
	Tax          decimal.Decimal
	ShippingCost decimal.Decimal
	Total        decimal.Decimal
}

// ComputeTotals applies the flat 10% tax, rounded to cents, and the flat
// shipping fee that is waived when the subtotal is strictly above 100.
func ComputeTotals(subtotal decimal.Decimal) Totals {
	tax := subtotal.Mul(taxRate).Round(2)

	shipping := flatShippingCost
	if subtotal.GreaterThan(freeShippingThreshold) {
		shipping = decimal.Zero
	}

	return Totals{
		Subtotal:     subtotal,
		Tax:          tax,
		ShippingCost: shipping,
		Total:        subtotal.Add(tax).Add(shipping),
	}
}
