package checkout

import "github.com/shopspring/decimal"

var (
	// FlatShipping is charged on every order with a positive subtotal.
	FlatShipping = decimal.RequireFromString("5.99")
	TaxRate      = decimal.RequireFromString("0.08")
)

type Totals struct {
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// ComputeTotals applies the flat shipping fee and the fixed tax rate.
// Tax is rounded half away from zero to cents.
func ComputeTotals(subtotal decimal.Decimal) Totals {
	shipping := decimal.Zero
	if subtotal.GreaterThan(decimal.Zero) {
		shipping = FlatShipping
	}
	tax := subtotal.Mul(TaxRate).Round(2)

	return Totals{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal.Add(shipping).Add(tax),
	}
}
